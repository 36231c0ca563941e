package stream

import (
	"github.com/omniboard/livefeed/pkg/feed"
)

// AlertLevel is the presentation style of an in-app alert.
type AlertLevel string

const (
	AlertError   AlertLevel = "error"
	AlertWarning AlertLevel = "warning"
	AlertInfo    AlertLevel = "info"
	AlertSuccess AlertLevel = "success"
)

// AlertSurface is the in-app toast/alert collaborator. It is called by the
// dispatcher only, never by the connection controller.
type AlertSurface interface {
	ShowAlert(message string, level AlertLevel, autoDismiss bool)
}

// NativeAlerter is the permission-gated OS-level notification collaborator.
// Post is best-effort; failures are swallowed by the caller.
type NativeAlerter interface {
	IsPermitted() bool
	Post(title, body, dedupeKey string) error
}

// PresentationFor maps a record priority to its alert presentation.
// The mapping is a pure function of priority and is identical regardless of
// the record's source: urgent alerts never auto-dismiss.
func PresentationFor(p feed.Priority) (level AlertLevel, autoDismiss bool) {
	switch p {
	case feed.PriorityUrgent:
		return AlertError, false
	case feed.PriorityHigh:
		return AlertWarning, true
	case feed.PriorityMedium:
		return AlertInfo, true
	default:
		return AlertSuccess, true
	}
}

// NopAlertSurface discards alerts. Used when no UI surface is wired.
type NopAlertSurface struct{}

func (NopAlertSurface) ShowAlert(message string, level AlertLevel, autoDismiss bool) {}

// NopNativeAlerter reports no permission and never posts.
type NopNativeAlerter struct{}

func (NopNativeAlerter) IsPermitted() bool { return false }

func (NopNativeAlerter) Post(title, body, dedupeKey string) error { return nil }

package stream

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/omniboard/livefeed/pkg/feed"
	"github.com/omniboard/livefeed/pkg/logger"
)

// Titles for records synthesized from payloads that carry none.
const (
	titleBroadcast      = "System Broadcast"
	titleSystemAlert    = "System Alert"
	titleDocumentUpdate = "Document Updated"
)

// FrameHandler consumes classified inbound frames. The controller depends on
// this interface so the read loop is testable without a real dispatcher.
type FrameHandler interface {
	Dispatch(env Envelope)
}

// Dispatcher decodes inbound envelopes, derives feed records from them, and
// forwards alerting side effects. Decoding failures are logged and dropped;
// nothing escapes Dispatch, so a bad frame can never kill the connection.
type Dispatcher struct {
	store  *feed.Store
	alerts AlertSurface
	native NativeAlerter
	logger *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAlertSurface sets the in-app alert collaborator.
func WithAlertSurface(s AlertSurface) DispatcherOption {
	return func(d *Dispatcher) {
		if s != nil {
			d.alerts = s
		}
	}
}

// WithNativeAlerter sets the OS-level notification collaborator.
func WithNativeAlerter(n NativeAlerter) DispatcherOption {
	return func(d *Dispatcher) {
		if n != nil {
			d.native = n
		}
	}
}

// WithDispatcherLogger sets the logger for the Dispatcher.
func WithDispatcherLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.logger = log
		}
	}
}

// NewDispatcher creates a dispatcher feeding the given store. Missing
// collaborators default to no-ops.
func NewDispatcher(store *feed.Store, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:  store,
		alerts: NopAlertSurface{},
		native: NopNativeAlerter{},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// notificationPayload is the typed payload of a "notification" frame.
type notificationPayload struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Priority string         `json:"priority"`
	Metadata map[string]any `json:"metadata"`
}

// announcementPayload is the shared payload shape of the synthetic record
// types (broadcast, system_alert, document_update).
type announcementPayload struct {
	Message  string         `json:"message"`
	Priority string         `json:"priority"`
	Metadata map[string]any `json:"metadata"`
}

// Dispatch classifies one inbound envelope and applies its effects: a record
// inserted at the head of the feed, an in-app alert, and a best-effort native
// notification. Unknown types are ignored.
func (d *Dispatcher) Dispatch(env Envelope) {
	ctx := context.Background()

	var rec feed.Record
	switch env.Type {
	case MessageTypeNotification:
		var p notificationPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			d.dropMalformed(ctx, env.Type, err)
			return
		}
		rec = feed.Record{
			ID:       p.ID,
			Title:    p.Title,
			Message:  p.Message,
			Source:   feed.SourceNotification,
			Priority: feed.ParsePriority(p.Priority),
			Metadata: p.Metadata,
		}

	case MessageTypeBroadcast:
		var p announcementPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			d.dropMalformed(ctx, env.Type, err)
			return
		}
		rec = feed.Record{
			Title:    titleBroadcast,
			Message:  p.Message,
			Source:   feed.SourceBroadcast,
			Priority: feed.ParsePriority(p.Priority),
			Metadata: p.Metadata,
		}

	case MessageTypeSystemAlert:
		var p announcementPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			d.dropMalformed(ctx, env.Type, err)
			return
		}
		// System alerts are always urgent so they never auto-dismiss,
		// regardless of what the payload claims.
		rec = feed.Record{
			Title:    titleSystemAlert,
			Message:  p.Message,
			Source:   feed.SourceSystemAlert,
			Priority: feed.PriorityUrgent,
			Metadata: p.Metadata,
		}

	case MessageTypeDocumentUpdate:
		var p announcementPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			d.dropMalformed(ctx, env.Type, err)
			return
		}
		rec = feed.Record{
			Title:    titleDocumentUpdate,
			Message:  p.Message,
			Source:   feed.SourceDocumentUpdate,
			Priority: feed.PriorityLow,
			Metadata: p.Metadata,
		}

	default:
		d.logger.LogAttrs(ctx, slog.LevelDebug, "Ignoring frame of unknown type",
			logger.EventType(env.Type),
		)
		return
	}

	rec = d.store.Add(rec)

	level, autoDismiss := PresentationFor(rec.Priority)
	d.alerts.ShowAlert(rec.Message, level, autoDismiss)

	if d.native.IsPermitted() {
		// Best effort: a failed native post must not affect the store or
		// the in-app alert that already happened.
		if err := d.native.Post(rec.Title, rec.Message, rec.ID); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelDebug, "Native notification post failed",
				logger.NotificationID(rec.ID),
				logger.Error(err),
			)
		}
	}
}

func (d *Dispatcher) dropMalformed(ctx context.Context, msgType string, err error) {
	d.logger.LogAttrs(ctx, slog.LevelWarn, "Dropping malformed frame",
		logger.EventType(msgType),
		logger.Error(err),
	)
}

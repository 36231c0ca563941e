package feed

import (
	"time"
)

// Source identifies which message taxonomy a record was derived from.
type Source string

const (
	SourceNotification   Source = "notification"
	SourceBroadcast      Source = "broadcast"
	SourceSystemAlert    Source = "system_alert"
	SourceDocumentUpdate Source = "document_update"
)

// Priority represents the notification priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority maps a wire value to a Priority, defaulting to medium for
// unknown or absent values.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Record is a stored, UI-facing notification derived from an inbound frame.
type Record struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Source    Source         `json:"source_type"`
	Priority  Priority       `json:"priority"`
	CreatedAt time.Time      `json:"created_at"`
	Read      bool           `json:"read"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// MarkAsRead marks the record as read.
func (r *Record) MarkAsRead() {
	r.Read = true
}

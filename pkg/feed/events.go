package feed

// EventKind identifies what kind of store mutation an Event describes.
type EventKind string

const (
	// EventAdded is published when a record is inserted at the head of the feed.
	EventAdded EventKind = "added"
	// EventRead is published when a single record is marked read.
	EventRead EventKind = "read"
	// EventAllRead is published when every record is marked read at once.
	EventAllRead EventKind = "all_read"
	// EventCleared is published when the feed is emptied.
	EventCleared EventKind = "cleared"
)

// Event describes a single committed store mutation. The counters are a
// consistent snapshot taken under the same lock as the mutation, so consumers
// never observe intermediate state.
type Event struct {
	Kind   EventKind
	Record *Record // set for added and read events
	Unread int
	Size   int
}

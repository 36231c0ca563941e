package feed

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/omniboard/livefeed/pkg/broadcast"
)

// DefaultCapacity bounds the feed so a long-lived session cannot grow memory
// without limit.
const DefaultCapacity = 100

// defaultEventBuffer is the per-subscriber buffer for store change events.
const defaultEventBuffer = 16

// Store is a bounded, ordered collection of notification records with
// read/unread accounting. Records are kept newest-first; when capacity is
// exceeded the oldest records are evicted. Every mutation keeps the size and
// unread invariants consistent atomically.
type Store struct {
	mu       sync.RWMutex
	records  []Record // newest first
	capacity int
	unread   int
	events   *broadcast.MemoryBroadcaster[Event]
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCapacity overrides the maximum number of retained records.
// Non-positive values are ignored.
func WithCapacity(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewStore creates an empty feed store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = broadcast.NewMemoryBroadcaster[Event](defaultEventBuffer)
	return s
}

// Add inserts the record at the head of the feed as unread, evicting the
// oldest records if the capacity is exceeded. Missing ID and CreatedAt fields
// are filled in. Returns the stored record.
func (s *Store) Add(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.Read = false

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append([]Record{rec}, s.records...)
	if len(s.records) > s.capacity {
		for _, evicted := range s.records[s.capacity:] {
			if !evicted.Read {
				s.unread--
			}
		}
		s.records = s.records[:s.capacity]
	}
	s.unread++

	s.publish(Event{Kind: EventAdded, Record: &rec})
	return rec
}

// MarkRead marks the record with the given id as read. It is a no-op when the
// id is unknown or the record is already read. Reports whether a record
// changed state.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		if s.records[i].Read {
			return false
		}
		s.records[i].MarkAsRead()
		if s.unread > 0 {
			s.unread--
		}
		rec := s.records[i]
		s.publish(Event{Kind: EventRead, Record: &rec})
		return true
	}
	return false
}

// MarkAllRead marks every record as read and zeroes the unread counter.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		s.records[i].MarkAsRead()
	}
	s.unread = 0

	s.publish(Event{Kind: EventAllRead})
}

// Clear empties the feed and zeroes the unread counter.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.unread = 0

	s.publish(Event{Kind: EventCleared})
}

// Get retrieves a single record by id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// List returns a copy of the feed, newest first.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of retained records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// UnreadCount returns the number of unread records.
func (s *Store) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unread
}

// Subscribe returns a subscriber delivering store change events. UI layers
// use this to re-render the feed without polling.
func (s *Store) Subscribe(ctx context.Context) broadcast.Subscriber[Event] {
	return s.events.Subscribe(ctx)
}

// Close shuts down the event broadcaster and releases all subscribers.
func (s *Store) Close() error {
	return s.events.Close()
}

// publish is called with s.mu held so events are observed in mutation order.
// The broadcaster never blocks, so holding the lock here is safe.
func (s *Store) publish(ev Event) {
	ev.Unread = s.unread
	ev.Size = len(s.records)
	_ = s.events.Broadcast(context.Background(), broadcast.Message[Event]{Data: ev})
}

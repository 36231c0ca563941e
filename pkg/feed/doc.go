// Package feed provides the bounded, ordered notification feed consumed by
// the UI.
//
// Records are kept newest-first with a hard capacity (100 by default); the
// oldest records are evicted on overflow. The unread counter is updated under
// the same lock as every mutation, so readers never observe a feed whose
// counter disagrees with its records.
//
//	store := feed.NewStore()
//	store.Add(feed.Record{Title: "Deploy finished", Priority: feed.PriorityHigh})
//	n := store.UnreadCount()
//
// Change events stream through Subscribe so a UI can re-render reactively:
//
//	sub := store.Subscribe(ctx)
//	for ev := range sub.Receive(ctx) {
//	    refreshBadge(ev.Data.Unread)
//	}
package feed

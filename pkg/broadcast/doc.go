// Package broadcast provides type-safe fan-out of messages to multiple
// subscribers.
//
// It is used to push state changes and feed updates to UI consumers without
// coupling the producers to any rendering concern. Delivery is best-effort:
// a subscriber that cannot keep up is dropped rather than allowed to stall
// the producer.
//
//	b := broadcast.NewMemoryBroadcaster[feed.Event](16)
//	sub := b.Subscribe(ctx)
//	for msg := range sub.Receive(ctx) {
//	    render(msg.Data)
//	}
package broadcast

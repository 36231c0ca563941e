// Package stream implements the real-time notification session manager: a
// persistent connection to the server-pushed event stream with automatic
// reconnection, message classification, and a bounded notification feed.
//
// # Architecture
//
//   - Controller: owns the socket and the connection state machine
//     (disconnected, connecting, connected, reconnecting, failed) with
//     capped exponential backoff and an attempt limit.
//   - Dispatcher: decodes inbound envelopes, derives feed records by message
//     type, and triggers in-app and native alerting.
//   - feed.Store: the bounded, ordered notification feed the UI consumes.
//
// # Basic Usage
//
//	store := feed.NewStore()
//	dispatcher := stream.NewDispatcher(store,
//	    stream.WithAlertSurface(toasts),
//	    stream.WithNativeAlerter(desktop),
//	)
//
//	var cfg stream.Config
//	config.MustLoad(&cfg)
//
//	ctrl := stream.New(cfg, sessionProvider, dispatcher)
//	if err := ctrl.Connect(); err != nil {
//	    // no authenticated session yet
//	}
//	defer ctrl.Close()
//
// The controller is owned by the authenticated-session lifecycle: create it
// when a session becomes active, Close it when the session ends. StateFailed
// is terminal for a controller instance; a fresh login builds a fresh one.
//
// # Delivery Semantics
//
// At-most-once. Messages arriving while disconnected are lost, outbound sends
// while disconnected are dropped with a warning, and no deduplication is
// attempted on re-delivery after reconnect.
package stream

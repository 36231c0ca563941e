// Package statemachine provides a finite state machine with guarded
// transitions and transition actions.
//
// A machine is declared as a transition table rather than as callback
// spaghetti, which keeps lifecycle logic unit-testable without the resource
// it drives (socket, timer, job):
//
//	const (
//	    Disconnected = statemachine.StringState("disconnected")
//	    Connecting   = statemachine.StringState("connecting")
//	    Connected    = statemachine.StringState("connected")
//	)
//
//	const (
//	    Open  = statemachine.StringEvent("open")
//	    Close = statemachine.StringEvent("close")
//	)
//
//	sm := statemachine.MustNew(Disconnected,
//	    statemachine.WithTransition(Disconnected, Connecting, Open,
//	        statemachine.WithGuard(hasIdentity),
//	    ),
//	    statemachine.WithTransition(Connecting, Connected, Open),
//	    statemachine.WithTransition(Connected, Disconnected, Close,
//	        statemachine.WithAction(closeSocket),
//	    ),
//	)
//
// Multiple transitions may share a (from, event) pair; the first one whose
// guards all pass wins. That allows attempt-cap style branching: retry while
// under the cap, fail once over it.
//
// Actions run before the state change and abort it on error. Guards must be
// side-effect free.
package statemachine

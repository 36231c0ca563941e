package stream

import "errors"

var (
	// ErrNoActiveSession is returned when a connect is attempted without an
	// authenticated principal.
	ErrNoActiveSession = errors.New("no active authenticated session")

	// ErrNotConnected is returned by transport operations on a connection
	// that has already been closed.
	ErrNotConnected = errors.New("not connected")
)

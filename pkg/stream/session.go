package stream

// SessionProvider exposes the authenticated session to the stream layer.
// The session manager never authenticates by itself; it only observes the
// session owned by the application's auth layer.
type SessionProvider interface {
	// Identity returns the authenticated principal's identifier.
	// ok is false when no principal is authenticated.
	Identity() (id string, ok bool)

	// IsActive reports whether the session is currently active.
	IsActive() bool
}

// StaticSession is a fixed SessionProvider, useful for tests and for
// applications whose session does not change for the process lifetime.
type StaticSession struct {
	UserID string
	Active bool
}

func (s StaticSession) Identity() (string, bool) {
	return s.UserID, s.UserID != ""
}

func (s StaticSession) IsActive() bool {
	return s.Active
}

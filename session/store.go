package session

// Store persists the current session. Implementations are best-effort:
// malformed persisted content must degrade to "no session" (or an
// access-token-only legacy session) rather than fail.
type Store interface {
	// Load returns the persisted session, or nil when none exists.
	Load() (*Session, error)

	// Save writes the session, or removes the persisted record when nil.
	// Saving also purges any legacy-format record, so migration happens at
	// most once.
	Save(*Session) error
}

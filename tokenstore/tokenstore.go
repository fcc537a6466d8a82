// Package tokenstore persists the single bearer token held by a client.
package tokenstore

const (
	// Bucket and Key name the one persisted record.
	Bucket = "fitx"
	Key    = "session_token"
)

// Store holds at most one bearer token. Implementations are safe for
// concurrent use; writes are last-writer-wins.
type Store interface {
	// Save overwrites any existing token. Failures are logged, not returned.
	// Saving an empty token is equivalent to Clear.
	Save(token string)
	// Load returns the token, or false if none was saved or it was cleared.
	Load() (string, bool)
	// Clear removes the token. It is idempotent.
	Clear()
}

// Package memory provides a process-lifetime tokenstore.Store. The token is
// kept in a memguard enclave, so it is encrypted while resident and the
// plaintext only exists for the duration of a Load.
package memory

import (
	"sync"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/fitx/tokenstore"
)

// Store is a thread-safe in-memory tokenstore.Store.
// The token is lost when the process exits.
type Store struct {
	mu      sync.Mutex
	enclave *memguard.Enclave
}

var _ tokenstore.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

func (s *Store) Save(token string) {
	if token == "" {
		s.Clear()
		return
	}
	// NewEnclave wipes the buffer it is given.
	enclave := memguard.NewEnclave([]byte(token))
	s.mu.Lock()
	s.enclave = enclave
	s.mu.Unlock()
}

func (s *Store) Load() (string, bool) {
	s.mu.Lock()
	enclave := s.enclave
	s.mu.Unlock()
	if enclave == nil {
		return "", false
	}
	buf, err := enclave.Open()
	if err != nil {
		return "", false
	}
	defer buf.Destroy()
	return string(buf.Bytes()), true
}

func (s *Store) Clear() {
	s.mu.Lock()
	s.enclave = nil
	s.mu.Unlock()
}

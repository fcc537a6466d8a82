// Package storetest provides a conformance suite for tokenstore.Store
// implementations.
package storetest

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/fitx/tokenstore"
)

// Run exercises the Store contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) tokenstore.Store) {
	t.Helper()

	t.Run("LoadEmpty", func(t *testing.T) {
		s := newStore(t)
		tok, ok := s.Load()
		assert.False(t, ok)
		assert.Empty(t, tok)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		s := newStore(t)
		s.Save("tok-1")
		tok, ok := s.Load()
		require.True(t, ok)
		assert.Equal(t, "tok-1", tok)
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := newStore(t)
		s.Save("tok-v1")
		s.Save("tok-v2")
		tok, ok := s.Load()
		require.True(t, ok)
		assert.Equal(t, "tok-v2", tok)
	})

	t.Run("LoadTwice", func(t *testing.T) {
		s := newStore(t)
		s.Save("tok-twice")
		for i := 0; i < 2; i++ {
			tok, ok := s.Load()
			require.True(t, ok)
			assert.Equal(t, "tok-twice", tok)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		s := newStore(t)
		s.Save("tok-clear")
		s.Clear()
		_, ok := s.Load()
		assert.False(t, ok)
	})

	t.Run("ClearIdempotent", func(t *testing.T) {
		s := newStore(t)
		s.Clear()
		s.Clear()
		_, ok := s.Load()
		assert.False(t, ok)
	})

	t.Run("SaveEmptyClears", func(t *testing.T) {
		s := newStore(t)
		s.Save("tok-x")
		s.Save("")
		_, ok := s.Load()
		assert.False(t, ok)
	})

	t.Run("ConcurrentWriters", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.Save("tok-concurrent")
				s.Load()
			}()
		}
		wg.Wait()
		tok, ok := s.Load()
		require.True(t, ok)
		assert.Equal(t, "tok-concurrent", tok)
	})
}

// Package bbolt provides a BBolt-backed tokenstore.Store that survives
// process restarts. The token is sealed with an externally provided
// wrapping key before it touches disk.
package bbolt

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/fitx/internal/util"
	"github.com/jmcleod/fitx/tokenstore"
)

// Store implements tokenstore.Store backed by a BBolt database.
type Store struct {
	db        *bbolt.DB
	key       []byte
	logger    *slog.Logger
	closeOnce sync.Once
}

var _ tokenstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used to report best-effort write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New returns a Store using db. wrappingKey must be 32 bytes; it is copied.
func New(db *bbolt.DB, wrappingKey []byte, opts ...Option) (*Store, error) {
	if len(wrappingKey) != util.AESKeySize {
		return nil, fmt.Errorf("wrapping key must be exactly %d bytes, got %d", util.AESKeySize, len(wrappingKey))
	}
	s := &Store{
		db:     db,
		key:    util.CopyBytes(wrappingKey),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Open opens a BBolt database at path and returns a Store over it.
func Open(path string, wrappingKey []byte, opts ...Option) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	s, err := New(db, wrappingKey, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close wipes the wrapping key and closes the underlying database.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		util.WipeBytes(s.key)
		err = s.db.Close()
	})
	return err
}

func (s *Store) Save(token string) {
	if token == "" {
		s.Clear()
		return
	}
	env, err := tokenstore.Seal(s.key, token)
	if err != nil {
		s.logger.Error("sealing token failed", "error", err)
		return
	}
	data, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("encoding token envelope failed", "error", err)
		return
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(tokenstore.Bucket))
		if err != nil {
			return err
		}
		return b.Put([]byte(tokenstore.Key), data)
	})
	if err != nil {
		s.logger.Error("persisting token failed", "error", err)
	}
}

func (s *Store) Load() (string, bool) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(tokenstore.Bucket))
		if b == nil {
			return nil
		}
		// Values returned by Get are only valid for the life of the transaction.
		if v := b.Get([]byte(tokenstore.Key)); v != nil {
			data = util.CopyBytes(v)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("reading token failed", "error", err)
		return "", false
	}
	if data == nil {
		return "", false
	}

	var env tokenstore.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.logger.Warn("discarding corrupt token record", "error", err)
		s.Clear()
		return "", false
	}
	token, err := tokenstore.Open(s.key, &env)
	if err != nil {
		// Wrong wrapping key or tampered record: the token is unrecoverable.
		s.logger.Warn("discarding unreadable token record", "error", err)
		s.Clear()
		return "", false
	}
	return token, true
}

func (s *Store) Clear() {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(tokenstore.Bucket))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(tokenstore.Key))
	})
	if err != nil {
		s.logger.Error("clearing token failed", "error", err)
	}
}

// Package cache provides key→bytes stores for fetched tile responses.
//
// Keys are derived from request URLs with Key. Backends:
//   - FSStore keeps one file per response under a root directory.
//   - SQLiteStore keeps responses in a single SQLite database.
//   - MemoryStore is a bounded in-process LRU.
//
// Layered chains them so that a fast store sits in front of a persistent one.
//
// Note: User must properly initialize the sqlite3 library generic driver
// (e.g. import _ "github.com/mattn/go-sqlite3") before using SQLiteStore.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

var ErrUnknownBackend = errors.New("tileview: unknown cache backend")

// Store is a key→bytes cache with no mandated eviction policy.
type Store interface {
	// Get returns the bytes stored under key.
	// A missing key is reported with ok == false and no error.
	Get(key string) (data []byte, ok bool, err error)

	Put(key string, data []byte) error
}

// Key returns the store key for a request URL.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// Layered reads through its stores in order and back-fills the faster ones on a hit.
// Put writes to every store.
type Layered struct {
	stores []Store
	logger *slog.Logger
}

type config struct {
	Logger *slog.Logger
}

type Option func(*config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.Logger = logger }
}

func newConfig(opts []Option) config {
	c := config{Logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// NewLayered returns a store that consults stores front to back.
func NewLayered(stores []Store, opts ...Option) *Layered {
	return &Layered{stores: stores, logger: newConfig(opts).Logger}
}

func (l *Layered) Get(key string) ([]byte, bool, error) {
	for i, s := range l.stores {
		data, ok, err := s.Get(key)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		for _, front := range l.stores[:i] {
			if err := front.Put(key, data); err != nil {
				l.logger.Warn("tileview: cache back-fill failed", "key", key, "error", err)
			}
		}
		return data, true, nil
	}
	return nil, false, nil
}

func (l *Layered) Put(key string, data []byte) error {
	var errs []error
	for _, s := range l.stores {
		errs = append(errs, s.Put(key, data))
	}
	return errors.Join(errs...)
}

// Close closes every store that implements io.Closer.
func (l *Layered) Close() error {
	var errs []error
	for _, s := range l.stores {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

// Open builds the store for a configured backend ("fs", "sqlite" or "memory").
// Persistent backends get a memory layer of memoryEntries in front when it is positive.
func Open(backend, path string, memoryEntries int, opts ...Option) (Store, error) {
	var persistent Store
	var err error
	switch backend {
	case "fs":
		persistent, err = NewFSStore(path, opts...)
	case "sqlite":
		persistent, err = NewSQLiteStore(path, opts...)
	case "memory":
		return NewMemoryStore(memoryEntries), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
	if err != nil {
		return nil, err
	}
	if memoryEntries <= 0 {
		return persistent, nil
	}
	return NewLayered([]Store{NewMemoryStore(memoryEntries), persistent}, opts...), nil
}

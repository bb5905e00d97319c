package cache

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/timshannon/badgerhold/v4"
)

// Entry is one cached payload. Entries are never mutated in place: they are
// written once and removed by TTL expiry or explicit refresh.
type Entry struct {
	Fingerprint string        `json:"fingerprint" badgerhold:"key"`
	Stage       Stage         `json:"stage"`
	Payload     []byte        `json:"payload"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
}

// Expired reports whether the entry's TTL has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.CreatedAt.Add(e.TTL))
}

// Store is the persistent disk tier, a Badger KV database. Writes are atomic
// per key and survive process restart.
type Store struct {
	db     *badgerhold.Store
	logger zerolog.Logger
}

// OpenStore opens (creating if needed) the Badger store under dir.
func OpenStore(dir string, logger zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	logger.Debug().Str("dir", dir).Msg("cache store opened")
	return &Store{db: db, logger: logger.With().Str("component", "cache-store").Logger()}, nil
}

// Get returns the entry for a fingerprint, or nil on miss. Expired entries
// are deleted lazily and reported as misses.
func (s *Store) Get(fingerprint string) (*Entry, error) {
	var entry Entry
	err := s.db.Get(fingerprint, &entry)
	if err == badgerhold.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache read failed: %w", err)
	}
	if entry.Expired(time.Now()) {
		_ = s.Delete(fingerprint)
		return nil, nil
	}
	return &entry, nil
}

// Set writes an entry. Upsert keeps the write atomic per key.
func (s *Store) Set(entry *Entry) error {
	if err := s.db.Upsert(entry.Fingerprint, entry); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Delete removes an entry; deleting an absent key is not an error.
func (s *Store) Delete(fingerprint string) error {
	err := s.db.Delete(fingerprint, &Entry{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Count returns the number of persisted entries (expired included).
func (s *Store) Count() (int, error) {
	n, err := s.db.Count(&Entry{}, nil)
	if err != nil {
		return 0, fmt.Errorf("cache count failed: %w", err)
	}
	return int(n), nil
}

// RunGC triggers a Badger value-log garbage collection cycle. Badger returns
// ErrNoRewrite when there is nothing to collect; that is not a failure.
func (s *Store) RunGC() {
	err := s.db.Badger().RunValueLogGC(0.5)
	switch err {
	case nil:
		s.logger.Debug().Msg("badger value log GC rewrote a file")
	case badger.ErrNoRewrite:
	default:
		s.logger.Warn().Err(err).Msg("badger value log GC failed")
	}
}

// Close releases the store.
func (s *Store) Close() error {
	return s.db.Close()
}

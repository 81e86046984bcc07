package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultKey is the blob key the Context is persisted under.
const DefaultKey = "context"

// Store is the process-wide Context. It implements ports.ContextStore.
type Store struct {
	blobs ports.BlobStore
	key   string

	mu     sync.Mutex
	memory domain.Context

	locks   *keyLocks
	locker  ports.DistributedLocker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithKey sets the blob key.
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// WithLocker enables distributed locking of merges.
func WithLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *Store) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithLogger configures a logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithInitial seeds the in-memory Context.
func WithInitial(initial domain.Context) Option {
	return func(s *Store) {
		s.memory = domain.Merge(s.memory, initial)
	}
}

// New creates a Store persisting to blobs. A nil blobs keeps the Context in memory only.
func New(blobs ports.BlobStore, opts ...Option) *Store {
	s := &Store{
		blobs:   blobs,
		key:     DefaultKey,
		memory:  domain.Context{},
		locks:   processLocks,
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the blob key.
func (s *Store) Key() string {
	return s.key
}

// Read re-merges the persisted blob under the in-memory Context and returns a copy.
func (s *Store) Read(ctx context.Context) domain.Context {
	persisted := s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory = domain.Merge(persisted, s.memory)
	return s.memory.Clone()
}

// Merge applies persisted ⊕ in-memory ⊕ patch, persists the result and returns a copy.
// Merges of the same blob key never interleave.
func (s *Store) Merge(ctx context.Context, patch domain.Context) domain.Context {
	var result domain.Context
	s.locks.with(s.key, func() {
		unlock := s.lockDistributed(ctx)
		defer unlock()

		persisted := s.load(ctx)

		s.mu.Lock()
		s.memory = domain.Merge(persisted, s.memory, patch)
		result = s.memory.Clone()
		s.mu.Unlock()

		s.save(ctx, result)
	})
	return result
}

// RegisterHandler stores fn as a regular Context entry. It is never persisted.
func (s *Store) RegisterHandler(key string, fn any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memory[key] = fn
}

func (s *Store) lockDistributed(ctx context.Context) func() {
	if s.locker == nil {
		return func() {}
	}
	unlock, err := s.locker.Lock(ctx, s.key, s.lockTTL)
	if err != nil {
		s.logger.Warn("Failed to acquire distributed lock, merging locally",
			"key", s.key,
			"err", err,
		)
		return func() {}
	}
	return func() {
		if err := unlock(ctx); err != nil {
			s.logger.Warn("Failed to release distributed lock (will expire via TTL)",
				"key", s.key,
				"err", err,
			)
		}
	}
}

func (s *Store) load(ctx context.Context) domain.Context {
	if s.blobs == nil {
		return nil
	}
	data, err := s.blobs.Load(ctx, s.key)
	if err != nil {
		if !errors.Is(err, domain.ErrBlobNotFound) {
			s.warn(&domain.PersistenceError{Op: "load", Key: s.key, Err: err})
		}
		return nil
	}
	c, err := decode(data)
	if err != nil {
		s.warn(&domain.PersistenceError{Op: "decode", Key: s.key, Err: err})
		return nil
	}
	return c
}

func (s *Store) save(ctx context.Context, c domain.Context) {
	if s.blobs == nil {
		return
	}
	data, skipped, err := encode(c)
	if err != nil {
		s.warn(&domain.PersistenceError{Op: "encode", Key: s.key, Err: err})
		return
	}
	if len(skipped) > 0 {
		s.logger.Debug("Context entries not persisted", "key", s.key, "entries", skipped)
	}
	if err := s.blobs.Save(ctx, s.key, data); err != nil {
		s.warn(&domain.PersistenceError{Op: "save", Key: s.key, Err: err})
	}
}

func (s *Store) warn(err *domain.PersistenceError) {
	s.logger.Warn("Context persistence failed", "op", err.Op, "key", err.Key, "err", err.Err)
}

package store

import (
	"fmt"
	"sync"

	"github.com/cryptonote-tools/lws-go/internal/kv"
)

const (
	// defaultMaxPendingRequests bounds the requests table (invariant 6);
	// overflow fails with CreateQueueMax.
	defaultMaxPendingRequests = 10_000

	// defaultBlockBufferSize bounds the blocks ring (spec.md §3: "N
	// bounded; overflow is error ExceededBlockchainBuffer" describes
	// retention, not overflow — a full ring simply drops its oldest
	// entry, mirrored here as a fixed window size).
	defaultBlockBufferSize = 10_000
)

// Store is the process-wide handle onto the account KV environment.
// Mirrors the teacher's rocksdb.Store: one mutex serialises all writers
// (spec.md §5's "writers serialise via a single writer mutex"), readers
// are unrestricted and concurrent.
type Store struct {
	env    *kv.Env
	schema *schema

	mu sync.Mutex

	maxPendingRequests int
	blockBufferSize    int
}

// Option configures optional Store behaviour.
type Option func(*Store)

// WithMaxPendingRequests overrides the default pending-request queue bound.
func WithMaxPendingRequests(n int) Option {
	return func(s *Store) { s.maxPendingRequests = n }
}

// WithBlockBufferSize overrides the default recent-block-hash ring size.
func WithBlockBufferSize(n int) Option {
	return func(s *Store) { s.blockBufferSize = n }
}

// Open opens (creating if absent) the account store at path.
func Open(path string, opts ...Option) (*Store, error) {
	env, err := kv.Open(path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	s := &Store{
		env:                env,
		schema:             newSchema(),
		maxPendingRequests: defaultMaxPendingRequests,
		blockBufferSize:    defaultBlockBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	if err := s.env.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// StartRead borrows a new read snapshot (spec.md §4.C4). Callers must
// call Reader.Finish before making any upstream oracle call.
func (s *Store) StartRead() *Reader {
	return &Reader{kvr: s.env.NewReader(), schema: s.schema}
}

// WithWrite serialises fn against every other writer (spec.md §4.C5,
// §5's single writer mutex) and commits its batch atomically on success.
// If fn returns an error, the batch is discarded and no observable state
// changes, satisfying the "mutations are atomic" invariant.
func (s *Store) WithWrite(fn func(*Writer) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kvw := s.env.NewWriter()
	w := &Writer{
		kvw:                kvw,
		schema:             s.schema,
		maxPendingRequests: s.maxPendingRequests,
		blockBufferSize:    s.blockBufferSize,
	}
	if err := fn(w); err != nil {
		_ = kvw.Close()
		return err
	}
	if err := kvw.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

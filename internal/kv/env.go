// Package kv is the ordered key-value abstraction the account store is
// built on (spec.md §4.C2). It generalises the teacher's direct use of
// cockroachdb/pebble in internal/store/rocksdb/rocksdb.go into a typed,
// table-oriented layer: named tables are either unique-key maps or
// duplicate-key tables whose values form an ordered, fixed-size sequence
// per key, each exposed through generic cursors instead of raw byte
// slices.
//
// Go has no move-only types, so the "a cursor drops its handle on
// destruction, advancing a key-iterator invalidates live value-iterators"
// contract from the original C++ LMDB wrapper is enforced at runtime via a
// generation counter (see dup_table.go) rather than at compile time.
package kv

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Env owns the single underlying pebble database for the account store.
// Writers are serialised by the caller (internal/store.Store holds the
// mutex, mirroring the teacher's rocksdb.Store); Env itself does no
// locking.
type Env struct {
	db *pebble.DB
}

// Open opens (creating if absent) the pebble database at path.
func Open(path string) (*Env, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}
	return &Env{db: db}, nil
}

func (e *Env) Close() error {
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("kv: close: %w", err)
	}
	return nil
}

// NewReader borrows a new MVCC snapshot, satisfying spec.md §4.C4: every
// cursor obtained from the returned Reader observes this one snapshot,
// independent of concurrent writers.
func (e *Env) NewReader() *Reader {
	return &Reader{snap: e.db.NewSnapshot()}
}

// NewWriter opens an indexed batch for a single serialised mutation
// (spec.md §4.C5). Callers are responsible for serialising calls to
// NewWriter themselves (internal/store does this with a mutex), matching
// the teacher's single-writer-mutex discipline.
func (e *Env) NewWriter() *Writer {
	return &Writer{batch: e.db.NewIndexedBatch()}
}

// prefixUpperBound returns the smallest key that is strictly greater than
// every key with the given prefix, for use as an iterator UpperBound.
// Adapted from the teacher's rocksdb.go helper of the same name.
func prefixUpperBound(prefix []byte) []byte {
	out := append([]byte{}, prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xFF {
			out[i]++
			return out[:i+1]
		}
	}
	return []byte{0xFF}
}

package kv

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Table is a unique-key named table: one value per key, physically keyed
// as prefix||encodeKey(K). Corresponds to the "plain ordered map" table
// kind in spec.md §4.C2 (accounts_by_address, accounts_by_id, requests).
type Table[K any, V any] struct {
	prefix    []byte
	encodeKey func(K) []byte
	decodeKey func([]byte) (K, error)
	encodeVal func(V) []byte
	decodeVal func([]byte) (V, error)
}

// NewTable constructs a Table. prefix must be unique among all tables
// sharing one Env, since they all live in the same pebble keyspace.
func NewTable[K any, V any](
	prefix string,
	encodeKey func(K) []byte,
	decodeKey func([]byte) (K, error),
	encodeVal func(V) []byte,
	decodeVal func([]byte) (V, error),
) *Table[K, V] {
	return &Table[K, V]{
		prefix:    []byte(prefix),
		encodeKey: encodeKey,
		decodeKey: decodeKey,
		encodeVal: encodeVal,
		decodeVal: decodeVal,
	}
}

func (t *Table[K, V]) physicalKey(k K) []byte {
	return Concat(t.prefix, t.encodeKey(k))
}

// Get reads the value for k as observed by r's snapshot.
func (t *Table[K, V]) Get(r *Reader, k K) (V, bool, error) {
	return t.get(r.pebbleReader(), k)
}

// GetW reads the value for k as observed within an in-flight writer
// batch, i.e. including writes already staged on w but not yet committed.
func (t *Table[K, V]) GetW(w *Writer, k K) (V, bool, error) {
	return t.get(w.pebbleReader(), k)
}

func (t *Table[K, V]) get(pr pebble.Reader, k K) (V, bool, error) {
	var zero V
	val, closer, err := pr.Get(t.physicalKey(k))
	if errors.Is(err, pebble.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("kv: get: %w", err)
	}
	defer closer.Close()
	v, err := t.decodeVal(val)
	if err != nil {
		return zero, false, fixedWidthError("value", err)
	}
	return v, true, nil
}

// Put writes (k, v), overwriting any existing value.
func (t *Table[K, V]) Put(w *Writer, k K, v V) error {
	if err := w.pebbleWriter().Set(t.physicalKey(k), t.encodeVal(v), nil); err != nil {
		return fmt.Errorf("kv: put: %w", err)
	}
	return nil
}

// Delete removes k, a no-op if absent.
func (t *Table[K, V]) Delete(w *Writer, k K) error {
	if err := w.pebbleWriter().Delete(t.physicalKey(k), nil); err != nil {
		return fmt.Errorf("kv: delete: %w", err)
	}
	return nil
}

// TableCursor walks every (K, V) pair in a Table in key order, optionally
// restricted to keys sharing a caller-supplied physical sub-prefix (e.g.
// accounts_by_id scoped to one status byte, so the scan stays contiguous
// per spec.md §4.C3's note on accounts_by_id).
type TableCursor[K any, V any] struct {
	table *Table[K, V]
	iter  *pebble.Iterator
}

// NewCursor opens a cursor over the whole table.
func (t *Table[K, V]) NewCursor(r *Reader) (*TableCursor[K, V], error) {
	return t.newCursor(r.pebbleReader(), t.prefix)
}

// NewCursorW opens a cursor over the whole table as observed within an
// in-flight writer batch, including writes already staged on it.
func (t *Table[K, V]) NewCursorW(w *Writer) (*TableCursor[K, V], error) {
	return t.newCursor(w.pebbleReader(), t.prefix)
}

// NewCursorWithSubPrefix opens a cursor restricted to physical keys
// beginning with prefix||sub.
func (t *Table[K, V]) NewCursorWithSubPrefix(r *Reader, sub []byte) (*TableCursor[K, V], error) {
	return t.newCursor(r.pebbleReader(), Concat(t.prefix, sub))
}

func (t *Table[K, V]) newCursor(pr pebble.Reader, lower []byte) (*TableCursor[K, V], error) {
	iter, err := pr.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: prefixUpperBound(lower),
	})
	if err != nil {
		return nil, fmt.Errorf("kv: new cursor: %w", err)
	}
	return &TableCursor[K, V]{table: t, iter: iter}, nil
}

// SeekFirst positions the cursor at the first entry, returning false if
// the table (or sub-prefix range) is empty.
func (c *TableCursor[K, V]) SeekFirst() (K, V, bool, error) {
	if !c.iter.First() {
		return c.zero()
	}
	return c.decodeCurrent()
}

// Next advances to the following entry.
func (c *TableCursor[K, V]) Next() (K, V, bool, error) {
	if !c.iter.Next() {
		return c.zero()
	}
	return c.decodeCurrent()
}

func (c *TableCursor[K, V]) zero() (K, V, bool, error) {
	var k K
	var v V
	if err := c.iter.Error(); err != nil {
		return k, v, false, fmt.Errorf("kv: cursor: %w", err)
	}
	return k, v, false, nil
}

func (c *TableCursor[K, V]) decodeCurrent() (K, V, bool, error) {
	var zeroK K
	var zeroV V
	rawKey := c.iter.Key()[len(c.table.prefix):]
	k, err := c.table.decodeKey(rawKey)
	if err != nil {
		return zeroK, zeroV, false, fixedWidthError("key", err)
	}
	v, err := c.table.decodeVal(c.iter.Value())
	if err != nil {
		return zeroK, zeroV, false, fixedWidthError("value", err)
	}
	return k, v, true, nil
}

// Close releases the underlying iterator.
func (c *TableCursor[K, V]) Close() error {
	if err := c.iter.Close(); err != nil {
		return fmt.Errorf("kv: close cursor: %w", err)
	}
	return nil
}

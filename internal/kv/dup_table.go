package kv

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// DupTable is a duplicate-key table: each key K is associated with an
// ordered set of fixed-size values V, physically keyed as
// prefix||encodeKey(K)||sortSuffix(V). Used for outputs, spends and
// images (spec.md §4.C3): all three are "one account/output maps to many
// ordered records" tables.
//
// sortSuffix must be a fixed-width encoding of exactly the fields the
// table's Invariant 2 sort order is defined over (e.g. output.id for
// outputs, (link, source) for spends), encoded so that byte-wise
// comparison equals the required ascending order — see codec.go.
type DupTable[K any, V any] struct {
	prefix     []byte
	encodeKey  func(K) []byte
	sortSuffix func(V) []byte
	encodeVal  func(V) []byte
	decodeVal  func([]byte) (V, error)
}

// NewDupTable constructs a DupTable.
func NewDupTable[K any, V any](
	prefix string,
	encodeKey func(K) []byte,
	sortSuffix func(V) []byte,
	encodeVal func(V) []byte,
	decodeVal func([]byte) (V, error),
) *DupTable[K, V] {
	return &DupTable[K, V]{
		prefix:     []byte(prefix),
		encodeKey:  encodeKey,
		sortSuffix: sortSuffix,
		encodeVal:  encodeVal,
		decodeVal:  decodeVal,
	}
}

func (t *DupTable[K, V]) keyPrefix(k K) []byte {
	return Concat(t.prefix, t.encodeKey(k))
}

func (t *DupTable[K, V]) physicalKey(k K, v V) []byte {
	return Concat(t.keyPrefix(k), t.sortSuffix(v))
}

// Append inserts v under k, or overwrites the existing value at the same
// sort position (same k and sortSuffix(v)) if one exists. Callers enforce
// any stronger uniqueness (e.g. "at most one key-image per output" is not
// assumed — spec.md §3 explicitly tolerates more than one during reorg
// transitional states) before calling Append.
func (t *DupTable[K, V]) Append(w *Writer, k K, v V) error {
	if err := w.pebbleWriter().Set(t.physicalKey(k, v), t.encodeVal(v), nil); err != nil {
		return fmt.Errorf("kv: dup append: %w", err)
	}
	return nil
}

// Remove deletes the single (k, v) entry at v's sort position.
func (t *DupTable[K, V]) Remove(w *Writer, k K, v V) error {
	if err := w.pebbleWriter().Delete(t.physicalKey(k, v), nil); err != nil {
		return fmt.Errorf("kv: dup remove: %w", err)
	}
	return nil
}

// RemoveAll deletes every value stored under k.
func (t *DupTable[K, V]) RemoveAll(w *Writer, k K) error {
	lower := t.keyPrefix(k)
	upper := prefixUpperBound(lower)
	if err := w.pebbleWriter().DeleteRange(lower, upper, nil); err != nil {
		return fmt.Errorf("kv: dup remove all: %w", err)
	}
	return nil
}

// ExistsW reports whether the exact physical key prefix||encodeKey(k)||suffix
// is present, as observed within an in-flight writer batch. Used to check
// a duplicate-key table's invariants (e.g. "the spend's source output
// exists") without decoding the whole record.
func (t *DupTable[K, V]) ExistsW(w *Writer, k K, suffix []byte) (bool, error) {
	key := Concat(t.keyPrefix(k), suffix)
	_, closer, err := w.pebbleReader().Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("kv: dup exists: %w", err)
	}
	defer closer.Close()
	return true, nil
}

// ValueCursor opens a cursor over the ordered value range stored under k,
// as observed by r's snapshot. This is the primitive the handlers in
// spec.md §4.C7 use directly: each request already knows its account_id
// (K), and walks the per-account value range once.
func (t *DupTable[K, V]) ValueCursor(r *Reader, k K) (*ValueCursor[K, V], error) {
	return t.newValueCursor(r.pebbleReader(), k)
}

// ValueCursorW opens a value cursor against an in-flight writer batch,
// observing writes already staged on it.
func (t *DupTable[K, V]) ValueCursorW(w *Writer, k K) (*ValueCursor[K, V], error) {
	return t.newValueCursor(w.pebbleReader(), k)
}

func (t *DupTable[K, V]) newValueCursor(pr pebble.Reader, k K) (*ValueCursor[K, V], error) {
	lower := t.keyPrefix(k)
	upper := prefixUpperBound(lower)
	iter, err := pr.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, fmt.Errorf("kv: new value cursor: %w", err)
	}
	return &ValueCursor[K, V]{table: t, iter: iter, generation: -1}, nil
}

// ValueCursor is a lazy, restartable iterator over one key's ordered
// value range (spec.md §4.C2's "value-iterator"). A ValueCursor obtained
// directly from a DupTable (rather than from a KeyCursor) is never
// invalidated by anything but its own Close.
type ValueCursor[K any, V any] struct {
	table *DupTable[K, V]
	iter  *pebble.Iterator

	// parent/generation implement the "advancing a key-iterator
	// invalidates all live value-iterators" rule from spec.md §4.C2 for
	// value cursors obtained via KeyCursor.Values. generation == -1 means
	// this cursor has no parent key-cursor and is never invalidated that
	// way.
	parent     *KeyCursor[K, V]
	generation int
}

// ErrCursorInvalidated is returned by ValueCursor.Next when the owning
// KeyCursor has advanced past the key this value cursor was opened for.
var ErrCursorInvalidated = fmt.Errorf("kv: cursor invalidated by key advance")

func (c *ValueCursor[K, V]) checkGeneration() error {
	if c.parent == nil {
		return nil
	}
	if c.parent.generation != c.generation {
		return ErrCursorInvalidated
	}
	return nil
}

// SeekFirst positions at the first value in the range.
func (c *ValueCursor[K, V]) SeekFirst() (V, bool, error) {
	var zero V
	if err := c.checkGeneration(); err != nil {
		return zero, false, err
	}
	if !c.iter.First() {
		return c.zero()
	}
	return c.decodeCurrent()
}

// Next advances to the following value.
func (c *ValueCursor[K, V]) Next() (V, bool, error) {
	var zero V
	if err := c.checkGeneration(); err != nil {
		return zero, false, err
	}
	if !c.iter.Next() {
		return c.zero()
	}
	return c.decodeCurrent()
}

func (c *ValueCursor[K, V]) zero() (V, bool, error) {
	var v V
	if err := c.iter.Error(); err != nil {
		return v, false, fmt.Errorf("kv: value cursor: %w", err)
	}
	return v, false, nil
}

func (c *ValueCursor[K, V]) decodeCurrent() (V, bool, error) {
	v, err := c.table.decodeVal(c.iter.Value())
	if err != nil {
		return v, false, fixedWidthError("value", err)
	}
	return v, true, nil
}

// Close releases the underlying iterator.
func (c *ValueCursor[K, V]) Close() error {
	if err := c.iter.Close(); err != nil {
		return fmt.Errorf("kv: close value cursor: %w", err)
	}
	return nil
}

// KeyCursor walks the distinct keys present in a DupTable (spec.md
// §4.C2's "key-iterator"), handing out a ValueCursor over each key's
// range. Used by maintenance sweeps that must visit every account rather
// than one known account_id (the per-request handlers in §4.C7 already
// know their account_id and use DupTable.ValueCursor directly instead).
type KeyCursor[K any, V any] struct {
	table      *DupTable[K, V]
	reader     pebble.Reader
	iter       *pebble.Iterator
	curKey     K
	curKeyPfx  []byte
	generation int
}

// NewKeyCursor opens a key cursor over the whole table, as observed by
// r's snapshot.
func (t *DupTable[K, V]) NewKeyCursor(r *Reader) (*KeyCursor[K, V], error) {
	iter, err := r.pebbleReader().NewIter(&pebble.IterOptions{
		LowerBound: t.prefix,
		UpperBound: prefixUpperBound(t.prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("kv: new key cursor: %w", err)
	}
	return &KeyCursor[K, V]{table: t, reader: r.pebbleReader(), iter: iter}, nil
}

// SeekFirst positions at the table's first key and decodes it from the
// physical key bytes with the caller-supplied decodeKey (DupTable itself
// holds no key decoder). It returns the decoded key and whether any entry
// was found.
func (kc *KeyCursor[K, V]) SeekFirst(decodeKey func([]byte) (K, error)) (K, bool, error) {
	var zero K
	if !kc.iter.First() {
		return zero, false, kc.iterErr()
	}
	return kc.captureKey(decodeKey)
}

// AdvanceKey skips to the first physical key strictly beyond the current
// key's range and invalidates any ValueCursor handed out via Values for
// the previous key.
func (kc *KeyCursor[K, V]) AdvanceKey(decodeKey func([]byte) (K, error)) (K, bool, error) {
	var zero K
	kc.generation++
	if kc.curKeyPfx == nil {
		return kc.SeekFirst(decodeKey)
	}
	upper := prefixUpperBound(kc.curKeyPfx)
	if !kc.iter.SeekGE(upper) {
		return zero, false, kc.iterErr()
	}
	return kc.captureKey(decodeKey)
}

func (kc *KeyCursor[K, V]) captureKey(decodeKey func([]byte) (K, error)) (K, bool, error) {
	var zero K
	rawKey := kc.iter.Key()
	keyPart := rawKey[len(kc.table.prefix):]
	// The sort suffix is table-specific and of variable interpretation;
	// KeyCursor only needs the key-prefix boundary, which it recomputes
	// by re-encoding the decoded key below.
	k, err := decodeKey(keyPart)
	if err != nil {
		return zero, false, fixedWidthError("key", err)
	}
	kc.curKey = k
	kc.curKeyPfx = Concat(kc.table.prefix, kc.table.encodeKey(k))
	return k, true, nil
}

func (kc *KeyCursor[K, V]) iterErr() error {
	if err := kc.iter.Error(); err != nil {
		return fmt.Errorf("kv: key cursor: %w", err)
	}
	return nil
}

// Values opens a ValueCursor over the current key's range, tied to this
// KeyCursor's generation: a subsequent AdvanceKey call invalidates it.
func (kc *KeyCursor[K, V]) Values() (*ValueCursor[K, V], error) {
	vc, err := kc.table.newValueCursor(kc.reader, kc.curKey)
	if err != nil {
		return nil, err
	}
	vc.parent = kc
	vc.generation = kc.generation
	return vc, nil
}

// Close releases the underlying iterator.
func (kc *KeyCursor[K, V]) Close() error {
	if err := kc.iter.Close(); err != nil {
		return fmt.Errorf("kv: close key cursor: %w", err)
	}
	return nil
}

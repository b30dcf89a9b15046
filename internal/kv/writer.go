package kv

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Writer wraps one indexed batch: a single serialised mutation (spec.md
// §4.C5). All Table/DupTable writes against it are visible to later reads
// through the same Writer (it is an IndexedBatch), and become durable
// atomically on Commit — either every write in the batch is observable
// afterwards or none are.
type Writer struct {
	batch     *pebble.Batch
	committed bool
}

// Commit makes every write in the batch atomically visible. Mirrors the
// teacher's batch.Commit(pebble.NoSync): durability is relaxed (no fsync
// per commit) since the account store is a cache rebuildable from the
// upstream chain, not a source of truth.
func (w *Writer) Commit() error {
	if w.committed {
		return fmt.Errorf("kv: writer already committed")
	}
	w.committed = true
	if err := w.batch.Commit(pebble.NoSync); err != nil {
		return fmt.Errorf("kv: commit: %w", err)
	}
	return nil
}

// Close discards the batch without committing. Safe to call after a
// successful Commit (no-op).
func (w *Writer) Close() error {
	if w.committed {
		return nil
	}
	return w.batch.Close()
}

func (w *Writer) pebbleReader() pebble.Reader { return w.batch }
func (w *Writer) pebbleWriter() pebble.Writer { return w.batch }

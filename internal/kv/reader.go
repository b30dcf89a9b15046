package kv

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Reader borrows one MVCC snapshot (spec.md §4.C4). All Tables/DupTables
// opened against it via their Key/Get/Cursor methods observe that single
// snapshot. Only one Reader should be live per concurrent request; the
// caller must call Finish before making any upstream oracle call, so a
// snapshot is never held pinned across network I/O.
type Reader struct {
	snap    *pebble.Snapshot
	finished bool
}

// Finish releases the snapshot early. Safe to call more than once.
func (r *Reader) Finish() error {
	if r.finished {
		return nil
	}
	r.finished = true
	if err := r.snap.Close(); err != nil {
		return fmt.Errorf("kv: finish reader: %w", err)
	}
	return nil
}

func (r *Reader) pebbleReader() pebble.Reader { return r.snap }

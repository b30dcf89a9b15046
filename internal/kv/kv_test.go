package kv

import (
	"errors"
	"path/filepath"
	"testing"
)

type accountID uint32

func encodeAccountID(id accountID) []byte { return PutUint32(uint32(id)) }
func decodeAccountID(b []byte) (accountID, error) {
	n, err := GetUint32(b)
	return accountID(n), err
}

type record struct {
	seq  uint64
	note string
}

func encodeRecordSuffix(r record) []byte { return PutUint64(r.seq) }

func encodeRecord(r record) []byte {
	return Concat(PutUint64(r.seq), []byte(r.note))
}

func decodeRecord(b []byte) (record, error) {
	if len(b) < 8 {
		return record{}, ErrShortBuffer
	}
	seq, _ := GetUint64(b[:8])
	return record{seq: seq, note: string(b[8:])}, nil
}

func openTestEnv(t *testing.T) *Env {
	t.Helper()
	env, err := Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = env.Close() })
	return env
}

func TestTablePutGetDelete(t *testing.T) {
	env := openTestEnv(t)
	tbl := NewTable[accountID, record]("acct/", encodeAccountID, decodeAccountID, encodeRecord, decodeRecord)

	w := env.NewWriter()
	if err := tbl.Put(w, 7, record{seq: 1, note: "hello"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := env.NewReader()
	defer r.Finish()

	got, ok, err := tbl.Get(r, 7)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.note != "hello" || got.seq != 1 {
		t.Fatalf("unexpected record: %+v", got)
	}

	_, ok, err = tbl.Get(r, 8)
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if ok {
		t.Fatalf("expected missing key to report ok=false")
	}
}

func TestTableReaderSeesSnapshotNotLaterWrites(t *testing.T) {
	env := openTestEnv(t)
	tbl := NewTable[accountID, record]("acct/", encodeAccountID, decodeAccountID, encodeRecord, decodeRecord)

	w := env.NewWriter()
	if err := tbl.Put(w, 1, record{seq: 1, note: "a"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := env.NewReader()
	defer r.Finish()

	w2 := env.NewWriter()
	if err := tbl.Put(w2, 2, record{seq: 1, note: "b"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := w2.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	if _, ok, _ := tbl.Get(r, 2); ok {
		t.Fatalf("reader opened before the second commit must not observe it")
	}

	r2 := env.NewReader()
	defer r2.Finish()
	if _, ok, err := tbl.Get(r2, 2); err != nil || !ok {
		t.Fatalf("a fresh reader must observe the second commit: ok=%v err=%v", ok, err)
	}
}

func TestDupTableOrderingAndValueCursor(t *testing.T) {
	env := openTestEnv(t)
	dup := NewDupTable[accountID, record]("out/", encodeAccountID, encodeRecordSuffix, encodeRecord, decodeRecord)

	w := env.NewWriter()
	for _, seq := range []uint64{5, 1, 3} {
		if err := dup.Append(w, 42, record{seq: seq, note: "x"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := env.NewReader()
	defer r.Finish()

	vc, err := dup.ValueCursor(r, 42)
	if err != nil {
		t.Fatalf("ValueCursor: %v", err)
	}
	defer vc.Close()

	var seqs []uint64
	v, ok, err := vc.SeekFirst()
	for ok {
		if err != nil {
			t.Fatalf("cursor error: %v", err)
		}
		seqs = append(seqs, v.seq)
		v, ok, err = vc.Next()
	}
	if err != nil {
		t.Fatalf("cursor error: %v", err)
	}

	want := []uint64{1, 3, 5}
	if len(seqs) != len(want) {
		t.Fatalf("got %v, want %v", seqs, want)
	}
	for i := range want {
		if seqs[i] != want[i] {
			t.Fatalf("got %v, want %v", seqs, want)
		}
	}
}

func TestDupTableValueCursorScopedToKey(t *testing.T) {
	env := openTestEnv(t)
	dup := NewDupTable[accountID, record]("out/", encodeAccountID, encodeRecordSuffix, encodeRecord, decodeRecord)

	w := env.NewWriter()
	_ = dup.Append(w, 1, record{seq: 10})
	_ = dup.Append(w, 2, record{seq: 20})
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := env.NewReader()
	defer r.Finish()

	vc, err := dup.ValueCursor(r, 1)
	if err != nil {
		t.Fatalf("ValueCursor: %v", err)
	}
	defer vc.Close()

	v, ok, err := vc.SeekFirst()
	if err != nil || !ok {
		t.Fatalf("SeekFirst: ok=%v err=%v", ok, err)
	}
	if v.seq != 10 {
		t.Fatalf("expected seq 10 for key 1, got %d", v.seq)
	}

	_, ok, err = vc.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatalf("expected only one value under key 1, key 2's value leaked into range")
	}
}

func TestKeyCursorAdvanceInvalidatesValueCursor(t *testing.T) {
	env := openTestEnv(t)
	dup := NewDupTable[accountID, record]("out/", encodeAccountID, encodeRecordSuffix, encodeRecord, decodeRecord)

	w := env.NewWriter()
	_ = dup.Append(w, 1, record{seq: 1})
	_ = dup.Append(w, 2, record{seq: 1})
	if err := w.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r := env.NewReader()
	defer r.Finish()

	kc, err := dup.NewKeyCursor(r)
	if err != nil {
		t.Fatalf("NewKeyCursor: %v", err)
	}
	defer kc.Close()

	k, ok, err := kc.SeekFirst(decodeAccountID)
	if err != nil || !ok || k != 1 {
		t.Fatalf("SeekFirst: k=%v ok=%v err=%v", k, ok, err)
	}

	vc, err := kc.Values()
	if err != nil {
		t.Fatalf("Values: %v", err)
	}

	if _, ok, err = kc.AdvanceKey(decodeAccountID); err != nil || !ok {
		t.Fatalf("AdvanceKey: ok=%v err=%v", ok, err)
	}

	if _, _, err := vc.Next(); !errors.Is(err, ErrCursorInvalidated) {
		t.Fatalf("expected ErrCursorInvalidated after AdvanceKey, got %v", err)
	}
}

package kv

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned by fixed-width decoders when the physical
// value is shorter than the record's declared width.
var ErrShortBuffer = errors.New("kv: short buffer")

// Sortable suffix/key encodings are big-endian fixed-width: pebble orders
// keys byte-wise, and big-endian integer encoding makes that byte order
// equal to numeric order. The teacher's rocksdb.go reaches the same
// property with zero-padded 20-digit ASCII decimal strings
// (appendUint64Fixed20/parseFixed20Int64); this package uses compact
// binary big-endian words instead, which is the same technique applied to
// a narrower, fixed-width encoding rather than a decimal string.

// PutUint32 encodes n as 4 big-endian bytes.
func PutUint32(n uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return b[:]
}

// PutUint64 encodes n as 8 big-endian bytes.
func PutUint64(n uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], n)
	return b[:]
}

func GetUint32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint32(b), nil
}

func GetUint64(b []byte) (uint64, error) {
	if len(b) < 8 {
		return 0, ErrShortBuffer
	}
	return binary.BigEndian.Uint64(b), nil
}

// Concat copies and concatenates byte slices into one new slice, used to
// build physical keys from a table prefix and one or more encoded fields.
func Concat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// fixedWidthError annotates a decode failure with the table/field it
// occurred in, used by Table/DupTable decode wrappers.
func fixedWidthError(field string, err error) error {
	return fmt.Errorf("kv: decode %s: %w", field, err)
}

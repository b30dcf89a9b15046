package store

import (
	"encoding/binary"

	"github.com/cryptonote-tools/lws-go/internal/kv"
)

// Persisted record VALUES use fixed-width little-endian encoding per
// spec.md §3, matching the source's native on-disk format. Physical KEY
// suffixes inside duplicate-key tables use big-endian (see
// internal/kv/codec.go) so pebble's byte-wise order equals the required
// numeric/lexicographic order; this is purely a KV-layer detail invisible
// to the data model.

func le32(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func le64(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func getLE32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }
func getLE64(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

// ---- accounts_by_address ----

type addressRecord struct {
	Status    AccountStatus
	AccountID uint32
}

func encodeAddress(a Address) []byte {
	return kv.Concat(a.SpendPublic[:], a.ViewPublic[:])
}

func decodeAddress(b []byte) (Address, error) {
	var a Address
	if len(b) < 64 {
		return a, kv.ErrShortBuffer
	}
	copy(a.SpendPublic[:], b[0:32])
	copy(a.ViewPublic[:], b[32:64])
	return a, nil
}

func encodeAddressRecord(r addressRecord) []byte {
	return kv.Concat([]byte{byte(r.Status)}, le32(r.AccountID))
}

func decodeAddressRecord(b []byte) (addressRecord, error) {
	if len(b) < 5 {
		return addressRecord{}, kv.ErrShortBuffer
	}
	return addressRecord{Status: AccountStatus(b[0]), AccountID: getLE32(b[1:5])}, nil
}

// ---- accounts_by_id ----

type accountIDKey struct {
	Status    AccountStatus
	AccountID uint32
}

func encodeAccountIDKey(k accountIDKey) []byte {
	return kv.Concat([]byte{byte(k.Status)}, le32(k.AccountID))
}

func decodeAccountIDKey(b []byte) (accountIDKey, error) {
	if len(b) < 5 {
		return accountIDKey{}, kv.ErrShortBuffer
	}
	return accountIDKey{Status: AccountStatus(b[0]), AccountID: getLE32(b[1:5])}, nil
}

const accountRecordLen = 4 + 32 + 32 + 32 + 1 + 8 + 8 + 4 + 4 + 1

func encodeAccount(a Account) []byte {
	buf := make([]byte, 0, accountRecordLen)
	buf = append(buf, le32(a.ID)...)
	buf = append(buf, a.Address.SpendPublic[:]...)
	buf = append(buf, a.Address.ViewPublic[:]...)
	buf = append(buf, a.ViewKey[:]...)
	buf = append(buf, byte(a.Status))
	buf = append(buf, le64(a.ScanHeight)...)
	buf = append(buf, le64(a.StartHeight)...)
	buf = append(buf, le32(a.AccessTime)...)
	buf = append(buf, le32(a.CreationTime)...)
	if a.GeneratedLocally {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeAccount(b []byte) (Account, error) {
	var a Account
	if len(b) < accountRecordLen {
		return a, kv.ErrShortBuffer
	}
	off := 0
	a.ID = getLE32(b[off : off+4])
	off += 4
	copy(a.Address.SpendPublic[:], b[off:off+32])
	off += 32
	copy(a.Address.ViewPublic[:], b[off:off+32])
	off += 32
	copy(a.ViewKey[:], b[off:off+32])
	off += 32
	a.Status = AccountStatus(b[off])
	off++
	a.ScanHeight = getLE64(b[off : off+8])
	off += 8
	a.StartHeight = getLE64(b[off : off+8])
	off += 8
	a.AccessTime = getLE32(b[off : off+4])
	off += 4
	a.CreationTime = getLE32(b[off : off+4])
	off += 4
	a.GeneratedLocally = b[off] != 0
	return a, nil
}

// ---- outputs ----

func encodeAccountID(id uint32) []byte { return le32Big(id) }

// le32Big/le64Big are the big-endian key-side counterparts used only for
// physical key bytes (never record values); see internal/kv's doc comment
// on sortable suffix encoding.
func le32Big(v uint32) []byte { return kv.PutUint32(v) }
func le64Big(v uint64) []byte { return kv.PutUint64(v) }

func decodeAccountIDFromKey(b []byte) (uint32, error) { return kv.GetUint32(b) }

func outputSortSuffix(o Output) []byte {
	return kv.Concat(le64Big(o.ID.BlockHeight), le64Big(o.ID.Low))
}

const outputRecordLen = 8 + 8 + 8 + 32 + 4 + 8 + 4 + 8 + 32 + 32 + 8 + 1 + 1 + 32 + 32

func encodeOutput(o Output) []byte {
	buf := make([]byte, 0, outputRecordLen)
	buf = append(buf, le64(o.ID.BlockHeight)...)
	buf = append(buf, le64(o.ID.Low)...)
	buf = append(buf, le64(o.Link.Height)...)
	buf = append(buf, o.Link.TxHash[:]...)
	buf = append(buf, le32(o.Index)...)
	buf = append(buf, le64(o.Amount)...)
	buf = append(buf, le32(o.MixinCount)...)
	buf = append(buf, le64(o.Timestamp)...)
	buf = append(buf, o.TxPublic[:]...)
	buf = append(buf, o.TxPrefixHash[:]...)
	buf = append(buf, le64(o.UnlockTime)...)
	var flags byte
	if o.Extra.Coinbase {
		flags |= 1
	}
	if o.Extra.Ringct {
		flags |= 2
	}
	buf = append(buf, flags, byte(o.Extra.PaymentIDLen))
	buf = append(buf, o.RingCTMask[:]...)
	buf = append(buf, o.PaymentID[:]...)
	return buf
}

func decodeOutput(b []byte) (Output, error) {
	var o Output
	if len(b) < outputRecordLen {
		return o, kv.ErrShortBuffer
	}
	off := 0
	o.ID.BlockHeight = getLE64(b[off : off+8])
	off += 8
	o.ID.Low = getLE64(b[off : off+8])
	off += 8
	o.Link.Height = getLE64(b[off : off+8])
	off += 8
	copy(o.Link.TxHash[:], b[off:off+32])
	off += 32
	o.Index = getLE32(b[off : off+4])
	off += 4
	o.Amount = getLE64(b[off : off+8])
	off += 8
	o.MixinCount = getLE32(b[off : off+4])
	off += 4
	o.Timestamp = getLE64(b[off : off+8])
	off += 8
	copy(o.TxPublic[:], b[off:off+32])
	off += 32
	copy(o.TxPrefixHash[:], b[off:off+32])
	off += 32
	o.UnlockTime = getLE64(b[off : off+8])
	off += 8
	flags := b[off]
	o.Extra.Coinbase = flags&1 != 0
	o.Extra.Ringct = flags&2 != 0
	off++
	o.Extra.PaymentIDLen = PaymentIDLen(b[off])
	off++
	copy(o.RingCTMask[:], b[off:off+32])
	off += 32
	copy(o.PaymentID[:], b[off:off+32])
	return o, nil
}

// ---- spends ----

func spendSortSuffix(s Spend) []byte {
	return kv.Concat(
		le64Big(s.Link.Height),
		s.Link.TxHash[:],
		le64Big(s.Source.BlockHeight),
		le64Big(s.Source.Low),
	)
}

const spendRecordLen = 8 + 8 + 8 + 32 + 32 + 4 + 8 + 8

func encodeSpend(s Spend) []byte {
	buf := make([]byte, 0, spendRecordLen)
	buf = append(buf, le64(s.Source.BlockHeight)...)
	buf = append(buf, le64(s.Source.Low)...)
	buf = append(buf, le64(s.Link.Height)...)
	buf = append(buf, s.Link.TxHash[:]...)
	buf = append(buf, s.Image[:]...)
	buf = append(buf, le32(s.MixinCount)...)
	buf = append(buf, le64(s.Timestamp)...)
	buf = append(buf, le64(s.UnlockTime)...)
	return buf
}

func decodeSpend(b []byte) (Spend, error) {
	var s Spend
	if len(b) < spendRecordLen {
		return s, kv.ErrShortBuffer
	}
	off := 0
	s.Source.BlockHeight = getLE64(b[off : off+8])
	off += 8
	s.Source.Low = getLE64(b[off : off+8])
	off += 8
	s.Link.Height = getLE64(b[off : off+8])
	off += 8
	copy(s.Link.TxHash[:], b[off:off+32])
	off += 32
	copy(s.Image[:], b[off:off+32])
	off += 32
	s.MixinCount = getLE32(b[off : off+4])
	off += 4
	s.Timestamp = getLE64(b[off : off+8])
	off += 8
	s.UnlockTime = getLE64(b[off : off+8])
	return s, nil
}

// ---- images ----

func encodeOutputIDKey(id OutputID) []byte {
	return kv.Concat(le64Big(id.BlockHeight), le64Big(id.Low))
}

func decodeOutputIDFromKey(b []byte) (OutputID, error) {
	if len(b) < 16 {
		return OutputID{}, kv.ErrShortBuffer
	}
	bh, _ := kv.GetUint64(b[0:8])
	low, _ := kv.GetUint64(b[8:16])
	return OutputID{BlockHeight: bh, Low: low}, nil
}

type keyImage [32]byte

func imageSortSuffix(img keyImage) []byte { return img[:] }

func encodeImage(img keyImage) []byte { return img[:] }

func decodeImage(b []byte) (keyImage, error) {
	var img keyImage
	if len(b) < 32 {
		return img, kv.ErrShortBuffer
	}
	copy(img[:], b[:32])
	return img, nil
}

// ---- requests ----

type requestKeyBytes struct {
	Kind    RequestKind
	Address Address
}

func encodeRequestKey(k requestKeyBytes) []byte {
	return kv.Concat([]byte{byte(k.Kind)}, encodeAddress(k.Address))
}

func decodeRequestKey(b []byte) (requestKeyBytes, error) {
	if len(b) < 65 {
		return requestKeyBytes{}, kv.ErrShortBuffer
	}
	addr, err := decodeAddress(b[1:65])
	if err != nil {
		return requestKeyBytes{}, err
	}
	return requestKeyBytes{Kind: RequestKind(b[0]), Address: addr}, nil
}

const requestRecordLen = 32 + 8

func encodeRequestValue(r PendingRequest) []byte {
	buf := make([]byte, 0, requestRecordLen)
	buf = append(buf, r.ViewKey[:]...)
	buf = append(buf, le64(r.StartHeight)...)
	return buf
}

func decodeRequestValue(b []byte) (PendingRequest, error) {
	var r PendingRequest
	if len(b) < requestRecordLen {
		return r, kv.ErrShortBuffer
	}
	copy(r.ViewKey[:], b[0:32])
	r.StartHeight = getLE64(b[32:40])
	return r, nil
}

// ---- blocks ----

func encodeHeightKey(h uint64) []byte { return le64Big(h) }
func decodeHeightKey(b []byte) (uint64, error) { return kv.GetUint64(b) }

func encodeBlockHash(h [32]byte) []byte { return h[:] }
func decodeBlockHash(b []byte) ([32]byte, error) {
	var h [32]byte
	if len(b) < 32 {
		return h, kv.ErrShortBuffer
	}
	copy(h[:], b[:32])
	return h, nil
}

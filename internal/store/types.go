// Package store implements the account store schema (spec.md §4.C3), the
// read-snapshot abstraction (§4.C4) and the serialised writer (§4.C5) on
// top of internal/kv. It plays the role the teacher's
// internal/store/rocksdb package played for the Zcash wallet schema, but
// for the CryptoNote account/output/spend schema this server actually
// needs.
package store

import "fmt"

// AccountStatus is the visibility/scan state of an Account.
type AccountStatus uint8

const (
	StatusActive AccountStatus = iota
	StatusInactive
	StatusHidden
)

// Address is the public half of a CryptoNote address: a spend/view public
// key pair, 32 bytes each.
type Address struct {
	SpendPublic [32]byte
	ViewPublic  [32]byte
}

// Account is the full record in accounts_by_id (spec.md §3).
type Account struct {
	ID             uint32
	Address        Address
	ViewKey        [32]byte // secret, never serialised to the wire
	Status         AccountStatus
	ScanHeight     uint64
	StartHeight    uint64
	AccessTime     uint32
	CreationTime   uint32
	GeneratedLocally bool
}

// BlockRef is one entry in the bounded recent-block-hash ring used for
// reorg detection.
type BlockRef struct {
	Height uint64
	Hash   [32]byte
}

// OutputID identifies a received output: the block it appeared in plus
// its amount-index within that account's output stream. Per the Open
// Question resolution in DESIGN.md, Low doubles as both tx_id and
// global_index on the wire.
type OutputID struct {
	BlockHeight uint64
	Low         uint64
}

// Compare returns -1, 0, or 1 as id sorts before, at, or after other,
// matching invariant 2's "outputs sorted by output.id ascending".
func (id OutputID) Compare(other OutputID) int {
	if id.BlockHeight != other.BlockHeight {
		if id.BlockHeight < other.BlockHeight {
			return -1
		}
		return 1
	}
	if id.Low != other.Low {
		if id.Low < other.Low {
			return -1
		}
		return 1
	}
	return 0
}

// Link identifies the transaction an output or spend belongs to.
type Link struct {
	Height uint64
	TxHash [32]byte
}

// Compare orders two Links by (height, tx_hash), matching the spend sort
// key's leading components.
func (l Link) Compare(other Link) int {
	if l.Height != other.Height {
		if l.Height < other.Height {
			return -1
		}
		return 1
	}
	for i := range l.TxHash {
		if l.TxHash[i] != other.TxHash[i] {
			if l.TxHash[i] < other.TxHash[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// PaymentIDLen is the declared length of an output's embedded payment ID.
type PaymentIDLen uint8

const (
	PaymentIDNone  PaymentIDLen = 0
	PaymentIDShort PaymentIDLen = 8
	PaymentIDLong  PaymentIDLen = 32
)

// OutputExtra packs the Coinbase/Ringct flags and the payment-ID length
// discriminant, mirroring the source's bitfield encoding.
type OutputExtra struct {
	Coinbase     bool
	Ringct       bool
	PaymentIDLen PaymentIDLen
}

// Output is a received output, spec.md §3's "Output (received)" entity.
type Output struct {
	ID            OutputID
	Link          Link
	Index         uint32
	Amount        uint64
	MixinCount    uint32
	Timestamp     uint64
	TxPublic      [32]byte
	TxPrefixHash  [32]byte
	UnlockTime    uint64
	Extra         OutputExtra
	RingCTMask    [32]byte
	PaymentID     [32]byte // only the leading Extra.PaymentIDLen bytes are meaningful
}

// Spend is a recorded spend against a previously received output.
type Spend struct {
	Source     OutputID
	Link       Link
	Image      [32]byte
	MixinCount uint32
	Timestamp  uint64
	UnlockTime uint64
}

// RequestKind distinguishes the two pending-request kinds.
type RequestKind uint8

const (
	RequestCreateAccount RequestKind = iota
	RequestImportScan
)

// PendingRequest is an admin-queue entry awaiting out-of-core approval.
type PendingRequest struct {
	Kind        RequestKind
	Address     Address
	ViewKey     [32]byte
	StartHeight uint64
}

func (a Address) String() string {
	return fmt.Sprintf("%x%x", a.SpendPublic[:4], a.ViewPublic[:4])
}

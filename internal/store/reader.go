package store

import (
	"fmt"

	"github.com/cryptonote-tools/lws-go/internal/kv"
)

// Reader borrows one read snapshot (spec.md §4.C4). Every cursor it hands
// out observes the same point-in-time view. Callers MUST call Finish
// before any upstream oracle call (spec.md §9's snapshot-lifetime note).
type Reader struct {
	kvr    *kv.Reader
	schema *schema
}

// Finish releases the underlying snapshot. Safe to call more than once.
func (r *Reader) Finish() error {
	if err := r.kvr.Finish(); err != nil {
		return fmt.Errorf("store: finish reader: %w", err)
	}
	return nil
}

// AccountByAddress looks up an account by its public address, returning
// the full record regardless of status — callers that must honour the
// "Hidden is indistinguishable from absent" rule (spec.md §4.C6) apply
// that check themselves (internal/auth does this).
func (r *Reader) AccountByAddress(addr Address) (Account, bool, error) {
	rec, ok, err := r.schema.accountsByAddress.Get(r.kvr, addr)
	if err != nil {
		return Account{}, false, fmt.Errorf("store: accounts_by_address: %w", err)
	}
	if !ok {
		return Account{}, false, nil
	}
	acct, ok, err := r.schema.accountsByID.Get(r.kvr, accountIDKey{Status: rec.Status, AccountID: rec.AccountID})
	if err != nil {
		return Account{}, false, fmt.Errorf("store: accounts_by_id: %w", err)
	}
	if !ok {
		// accounts_by_address pointed at a record accounts_by_id doesn't
		// have: the two tables are out of sync, a fatal internal defect.
		return Account{}, false, fmt.Errorf("store: dangling accounts_by_address entry for account %d", rec.AccountID)
	}
	return acct, true, nil
}

// OutputCursor opens a value cursor over account_id's outputs, ordered by
// output.id ascending (invariant 2).
func (r *Reader) OutputCursor(accountID uint32) (*kv.ValueCursor[uint32, Output], error) {
	vc, err := r.schema.outputs.ValueCursor(r.kvr, accountID)
	if err != nil {
		return nil, fmt.Errorf("store: outputs cursor: %w", err)
	}
	return vc, nil
}

// SpendCursor opens a value cursor over account_id's spends, ordered by
// (link, source) ascending (invariant 2).
func (r *Reader) SpendCursor(accountID uint32) (*kv.ValueCursor[uint32, Spend], error) {
	vc, err := r.schema.spends.ValueCursor(r.kvr, accountID)
	if err != nil {
		return nil, fmt.Errorf("store: spends cursor: %w", err)
	}
	return vc, nil
}

// Images returns every key-image recorded against the given output,
// ordered ascending (invariant 2). Normally exactly one; the store
// tolerates more during reorg transitional states (spec.md §3).
func (r *Reader) Images(outputID OutputID) ([][32]byte, error) {
	vc, err := r.schema.images.ValueCursor(r.kvr, outputID)
	if err != nil {
		return nil, fmt.Errorf("store: images cursor: %w", err)
	}
	defer vc.Close()

	var out [][32]byte
	img, ok, err := vc.SeekFirst()
	for ok {
		if err != nil {
			return nil, fmt.Errorf("store: images cursor: %w", err)
		}
		out = append(out, [32]byte(img))
		img, ok, err = vc.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("store: images cursor: %w", err)
	}
	return out, nil
}

// RecentBlocks returns the retained block-hash ring, ascending by height.
func (r *Reader) RecentBlocks() ([]BlockRef, error) {
	cur, err := r.schema.blocks.NewCursor(r.kvr)
	if err != nil {
		return nil, fmt.Errorf("store: blocks cursor: %w", err)
	}
	defer cur.Close()

	var out []BlockRef
	h, hash, ok, err := cur.SeekFirst()
	for ok {
		if err != nil {
			return nil, fmt.Errorf("store: blocks cursor: %w", err)
		}
		out = append(out, BlockRef{Height: h, Hash: hash})
		h, hash, ok, err = cur.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("store: blocks cursor: %w", err)
	}
	return out, nil
}

// Tip returns the highest retained block, if any.
func (r *Reader) Tip() (BlockRef, bool, error) {
	blocks, err := r.RecentBlocks()
	if err != nil {
		return BlockRef{}, false, err
	}
	if len(blocks) == 0 {
		return BlockRef{}, false, nil
	}
	return blocks[len(blocks)-1], true, nil
}

// HashAtHeight looks up the retained hash for height, if still in the
// window.
func (r *Reader) HashAtHeight(height uint64) ([32]byte, bool, error) {
	hash, ok, err := r.schema.blocks.Get(r.kvr, height)
	if err != nil {
		return [32]byte{}, false, fmt.Errorf("store: blocks: %w", err)
	}
	return hash, ok, nil
}

// RequestByKey looks up a pending request by (kind, address).
func (r *Reader) RequestByKey(kind RequestKind, addr Address) (PendingRequest, bool, error) {
	val, ok, err := r.schema.requests.Get(r.kvr, requestKeyBytes{Kind: kind, Address: addr})
	if err != nil {
		return PendingRequest{}, false, fmt.Errorf("store: requests: %w", err)
	}
	if !ok {
		return PendingRequest{}, false, nil
	}
	val.Kind = kind
	val.Address = addr
	return val, true, nil
}

// ListPendingRequests walks the whole requests table, filling in each
// record's Kind/Address from its key (the stored value omits them, see
// encodeRequestValue). Used by internal/requestbus to publish the
// pending-request outbox to the admin approval channel.
func (r *Reader) ListPendingRequests() ([]PendingRequest, error) {
	cur, err := r.schema.requests.NewCursor(r.kvr)
	if err != nil {
		return nil, fmt.Errorf("store: requests cursor: %w", err)
	}
	defer cur.Close()

	var out []PendingRequest
	key, val, ok, err := cur.SeekFirst()
	for ok {
		if err != nil {
			return nil, fmt.Errorf("store: requests cursor: %w", err)
		}
		val.Kind = key.Kind
		val.Address = key.Address
		out = append(out, val)
		key, val, ok, err = cur.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("store: requests cursor: %w", err)
	}
	return out, nil
}

// CountRequests walks the whole requests table, used to enforce
// invariant 6 (bounded pending-request count) before an insert.
func (r *Reader) CountRequests() (int, error) {
	cur, err := r.schema.requests.NewCursor(r.kvr)
	if err != nil {
		return 0, fmt.Errorf("store: requests cursor: %w", err)
	}
	defer cur.Close()

	n := 0
	_, _, ok, err := cur.SeekFirst()
	for ok {
		if err != nil {
			return 0, fmt.Errorf("store: requests cursor: %w", err)
		}
		n++
		_, _, ok, err = cur.Next()
	}
	if err != nil {
		return 0, fmt.Errorf("store: requests cursor: %w", err)
	}
	return n, nil
}

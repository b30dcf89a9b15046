package store

import (
	"fmt"

	"github.com/cryptonote-tools/lws-go/internal/kv"
	"github.com/cryptonote-tools/lws-go/internal/lwserr"
)

// Writer wraps one batch of serialised mutations (spec.md §4.C5). Every
// method either fully applies or, on error, leaves the batch (and
// therefore the store, once Store.WithWrite discards it) unchanged.
type Writer struct {
	kvw    *kv.Writer
	schema *schema

	maxPendingRequests int
	blockBufferSize    int
}

// CreationRequest queues a CreateAccount request. Fails with
// DuplicateRequest if one is already queued, AccountExists if the address
// is already a promoted account, or CreateQueueMax if the queue is full
// (spec.md §4.C5, invariants 4-6).
func (w *Writer) CreationRequest(addr Address, viewKey [32]byte) error {
	key := requestKeyBytes{Kind: RequestCreateAccount, Address: addr}

	if _, ok, err := w.schema.requests.GetW(w.kvw, key); err != nil {
		return fmt.Errorf("store: creation request: %w", err)
	} else if ok {
		return lwserr.New(lwserr.DuplicateRequest)
	}

	if _, ok, err := w.schema.accountsByAddress.GetW(w.kvw, addr); err != nil {
		return fmt.Errorf("store: creation request: %w", err)
	} else if ok {
		return lwserr.New(lwserr.AccountExists)
	}

	if err := w.checkQueueRoom(); err != nil {
		return err
	}

	if err := w.schema.requests.Put(w.kvw, key, PendingRequest{ViewKey: viewKey}); err != nil {
		return fmt.Errorf("store: creation request: %w", err)
	}
	return nil
}

// ImportRequest queues an ImportScan request for an already-promoted
// account. Same duplicate/queue-bound semantics as CreationRequest.
func (w *Writer) ImportRequest(addr Address, startHeight uint64) error {
	key := requestKeyBytes{Kind: RequestImportScan, Address: addr}

	if _, ok, err := w.schema.requests.GetW(w.kvw, key); err != nil {
		return fmt.Errorf("store: import request: %w", err)
	} else if ok {
		return lwserr.New(lwserr.DuplicateRequest)
	}

	if err := w.checkQueueRoom(); err != nil {
		return err
	}

	if err := w.schema.requests.Put(w.kvw, key, PendingRequest{StartHeight: startHeight}); err != nil {
		return fmt.Errorf("store: import request: %w", err)
	}
	return nil
}

func (w *Writer) checkQueueRoom() error {
	n, err := w.countRequestsW()
	if err != nil {
		return err
	}
	if n >= w.maxPendingRequests {
		return lwserr.New(lwserr.CreateQueueMax)
	}
	return nil
}

func (w *Writer) countRequestsW() (int, error) {
	cur, err := w.schema.requests.NewCursorW(w.kvw)
	if err != nil {
		return 0, fmt.Errorf("store: count requests: %w", err)
	}
	defer cur.Close()

	n := 0
	_, _, ok, err := cur.SeekFirst()
	for ok {
		if err != nil {
			return 0, fmt.Errorf("store: count requests: %w", err)
		}
		n++
		_, _, ok, err = cur.Next()
	}
	if err != nil {
		return 0, fmt.Errorf("store: count requests: %w", err)
	}
	return n, nil
}

func (w *Writer) nextAccountID() (uint32, error) {
	current, ok, err := w.schema.meta.GetW(w.kvw, metaNextAccountID)
	if err != nil {
		return 0, fmt.Errorf("store: next account id: %w", err)
	}
	id := uint32(1)
	if ok {
		id = current
	}
	if err := w.schema.meta.Put(w.kvw, metaNextAccountID, id+1); err != nil {
		return 0, fmt.Errorf("store: next account id: %w", err)
	}
	return id, nil
}

// ApproveCreateAccount is the out-of-core admin approval path's write
// side: it promotes a queued CreateAccount request into a real Active
// account and removes the request. Not reachable from any HTTP handler —
// spec.md §3 describes this path as living "outside this core".
func (w *Writer) ApproveCreateAccount(addr Address, viewKey [32]byte, now uint32, generatedLocally bool) (Account, error) {
	key := requestKeyBytes{Kind: RequestCreateAccount, Address: addr}
	if _, ok, err := w.schema.requests.GetW(w.kvw, key); err != nil {
		return Account{}, fmt.Errorf("store: approve create account: %w", err)
	} else if !ok {
		return Account{}, fmt.Errorf("store: no pending create-account request for this address")
	}

	id, err := w.nextAccountID()
	if err != nil {
		return Account{}, err
	}

	acct := Account{
		ID:               id,
		Address:          addr,
		ViewKey:          viewKey,
		Status:           StatusActive,
		ScanHeight:        0,
		StartHeight:      0,
		AccessTime:       now,
		CreationTime:     now,
		GeneratedLocally: generatedLocally,
	}

	if err := w.schema.accountsByID.Put(w.kvw, accountIDKey{Status: acct.Status, AccountID: acct.ID}, acct); err != nil {
		return Account{}, fmt.Errorf("store: approve create account: %w", err)
	}
	if err := w.schema.accountsByAddress.Put(w.kvw, addr, addressRecord{Status: acct.Status, AccountID: acct.ID}); err != nil {
		return Account{}, fmt.Errorf("store: approve create account: %w", err)
	}
	if err := w.schema.requests.Delete(w.kvw, key); err != nil {
		return Account{}, fmt.Errorf("store: approve create account: %w", err)
	}
	return acct, nil
}

// ApproveImportScan is the admin approval path for a queued ImportScan
// request: it sets the account's start/scan height and removes the
// request.
func (w *Writer) ApproveImportScan(addr Address, startHeight uint64) error {
	key := requestKeyBytes{Kind: RequestImportScan, Address: addr}
	if _, ok, err := w.schema.requests.GetW(w.kvw, key); err != nil {
		return fmt.Errorf("store: approve import scan: %w", err)
	} else if !ok {
		return fmt.Errorf("store: no pending import-scan request for this address")
	}

	addrRec, ok, err := w.schema.accountsByAddress.GetW(w.kvw, addr)
	if err != nil {
		return fmt.Errorf("store: approve import scan: %w", err)
	}
	if !ok {
		return lwserr.New(lwserr.NoSuchAccount)
	}
	acctKey := accountIDKey{Status: addrRec.Status, AccountID: addrRec.AccountID}
	acct, ok, err := w.schema.accountsByID.GetW(w.kvw, acctKey)
	if err != nil {
		return fmt.Errorf("store: approve import scan: %w", err)
	}
	if !ok {
		return fmt.Errorf("store: dangling accounts_by_address entry for account %d", addrRec.AccountID)
	}

	acct.StartHeight = startHeight
	acct.ScanHeight = startHeight
	if err := w.schema.accountsByID.Put(w.kvw, acctKey, acct); err != nil {
		return fmt.Errorf("store: approve import scan: %w", err)
	}
	if err := w.schema.requests.Delete(w.kvw, key); err != nil {
		return fmt.Errorf("store: approve import scan: %w", err)
	}
	return nil
}

// RejectRequest discards a pending request without promoting it.
func (w *Writer) RejectRequest(kind RequestKind, addr Address) error {
	if err := w.schema.requests.Delete(w.kvw, requestKeyBytes{Kind: kind, Address: addr}); err != nil {
		return fmt.Errorf("store: reject request: %w", err)
	}
	return nil
}

// SetScanHeight updates account's scan_height (the only field the
// scanner, rather than an HTTP handler, is allowed to mutate — spec.md
// §3's lifecycle rule). The caller supplies the full Account record as
// most recently read, since accounts_by_id is keyed by (status,
// account_id) and the status is needed to address the record.
func (w *Writer) SetScanHeight(account Account, height uint64) error {
	account.ScanHeight = height
	if err := w.schema.accountsByID.Put(w.kvw, accountIDKey{Status: account.Status, AccountID: account.ID}, account); err != nil {
		return fmt.Errorf("store: set scan height: %w", err)
	}
	return nil
}

// PutOutput records a newly scanned output for account_id. Only the
// external scanner calls this (spec.md §3: "Output written only by the
// external scanner ... the core reads only").
func (w *Writer) PutOutput(accountID uint32, output Output) error {
	if err := w.schema.outputs.Append(w.kvw, accountID, output); err != nil {
		return fmt.Errorf("store: put output: %w", err)
	}
	return nil
}

// AppendSpend records a spend against a previously-scanned output.
// Enforces invariant 1: the source output must already exist for this
// account; its absence is a fatal internal defect; it's never expected to
// fire unless the scanner itself is buggy or a caller passed the wrong
// account_id.
func (w *Writer) AppendSpend(accountID uint32, spend Spend) error {
	exists, err := w.schema.outputs.ExistsW(w.kvw, accountID, outputSortSuffix(Output{ID: spend.Source}))
	if err != nil {
		return fmt.Errorf("store: append spend: %w", err)
	}
	if !exists {
		return fmt.Errorf("store: invariant violation: spend source %+v missing for account %d", spend.Source, accountID)
	}
	if err := w.schema.spends.Append(w.kvw, accountID, spend); err != nil {
		return fmt.Errorf("store: append spend: %w", err)
	}
	return nil
}

// AppendKeyImage records that image consumed outputID. Tolerates more
// than one image per output during reorg transitional states (spec.md
// §3).
func (w *Writer) AppendKeyImage(outputID OutputID, image [32]byte) error {
	if err := w.schema.images.Append(w.kvw, outputID, keyImage(image)); err != nil {
		return fmt.Errorf("store: append key image: %w", err)
	}
	return nil
}

// PutBlock records the chain's hash at height, evicting the oldest
// retained entry once the ring exceeds blockBufferSize. Design decision:
// spec.md §3's "N bounded; overflow is ExceededBlockchainBuffer"
// is read as describing the ring's retention policy (a sliding window),
// not a hard failure on every block past the Nth — a perpetually-growing
// chain must keep advancing the ring, so eviction rather than rejection
// is the only sustainable reading.
func (w *Writer) PutBlock(ref BlockRef) error {
	if err := w.schema.blocks.Put(w.kvw, ref.Height, ref.Hash); err != nil {
		return fmt.Errorf("store: put block: %w", err)
	}

	cur, err := w.schema.blocks.NewCursorW(w.kvw)
	if err != nil {
		return fmt.Errorf("store: put block: %w", err)
	}
	defer cur.Close()

	var heights []uint64
	h, _, ok, err := cur.SeekFirst()
	for ok {
		if err != nil {
			return fmt.Errorf("store: put block: %w", err)
		}
		heights = append(heights, h)
		h, _, ok, err = cur.Next()
	}
	if err != nil {
		return fmt.Errorf("store: put block: %w", err)
	}

	for len(heights) > w.blockBufferSize {
		if err := w.schema.blocks.Delete(w.kvw, heights[0]); err != nil {
			return fmt.Errorf("store: put block: %w", err)
		}
		heights = heights[1:]
	}
	return nil
}

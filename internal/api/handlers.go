package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/cryptonote-tools/lws-go/internal/auth"
	"github.com/cryptonote-tools/lws-go/internal/base58"
	"github.com/cryptonote-tools/lws-go/internal/lwserr"
	"github.com/cryptonote-tools/lws-go/internal/oracle"
	"github.com/cryptonote-tools/lws-go/internal/project"
	"github.com/cryptonote-tools/lws-go/internal/store"
)

// maxBlockNumber is CRYPTONOTE_MAX_BLOCK_NUMBER, the protocol constant
// is_locked uses to tell a block-height unlock_time from a unix-timestamp
// one. Not defined anywhere in the retrieval pack; this is the well-known
// public CryptoNote value rather than anything pack-grounded (see
// DESIGN.md).
const maxBlockNumber = 500_000_000

// isLocked reports whether an output/spend with the given unlock_time is
// still locked at chainHeight, per spec.md §4.C7's general form: values
// above maxBlockNumber are unix timestamps compared to wall clock, values
// at or below it are block heights compared to the current tip.
func isLocked(unlockTime, chainHeight uint64) bool {
	if unlockTime > maxBlockNumber {
		return unlockTime > uint64(time.Now().Unix())
	}
	return unlockTime > chainHeight
}

func parseAddressAndKey(addrStr, viewKeyHex string) (store.Address, [32]byte, error) {
	addr, err := base58.DecodeAddress(addrStr, base58.DefaultTag)
	if err != nil {
		return store.Address{}, [32]byte{}, lwserr.New(lwserr.BadAddress)
	}
	viewKey, err := decodeHex32(viewKeyHex)
	if err != nil {
		return store.Address{}, [32]byte{}, lwserr.NewJSONError(lwserr.JInvalidHex, "view_key")
	}
	return addr, viewKey, nil
}

func paymentIDBytes(o store.Output) []byte {
	n := int(o.Extra.PaymentIDLen)
	if n == 0 {
		return nil
	}
	return o.PaymentID[:n]
}

func chainHeight(r *store.Reader) (uint64, error) {
	tip, ok, err := r.Tip()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	return tip.Height, nil
}

// ---- /login ----

type loginRequest struct {
	Address       string `json:"address"`
	ViewKey       string `json:"view_key"`
	CreateAccount bool   `json:"create_account"`
}

type loginResponse struct {
	NewAddress bool `json:"new_address"`
}

// handleLogin is spec.md §4.C7's login operation. The auth predicate
// (key_check) runs regardless of whether the account already exists; only
// a NoSuchAccount result with create_account=true queues a new creation
// request, and doing so never sets logged_in (original_source never marks
// a freshly-queued account's connection authenticated).
func (s *Server) handleLogin(r *http.Request, body []byte) (any, error) {
	var req loginRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, lwserr.NewJSONError(lwserr.JInvalid, "")
	}
	addr, viewKey, err := parseAddressAndKey(req.Address, req.ViewKey)
	if err != nil {
		return nil, err
	}

	reader := s.st.StartRead()
	_, err = auth.Authenticate(reader, addr, viewKey)
	finishErr := reader.Finish()
	if err != nil {
		if !errors.Is(err, lwserr.New(lwserr.NoSuchAccount)) || !req.CreateAccount {
			return nil, err
		}
		if werr := s.st.WithWrite(func(w *store.Writer) error {
			return w.CreationRequest(addr, viewKey)
		}); werr != nil {
			return nil, werr
		}
		return loginResponse{NewAddress: true}, nil
	}
	if finishErr != nil {
		return nil, finishErr
	}

	connStateFrom(r).setLoggedIn()
	return loginResponse{NewAddress: false}, nil
}

// ---- /import_request ----

type importRequestRequest struct {
	Address string `json:"address"`
	ViewKey string `json:"view_key"`
}

type importRequestResponse struct {
	ImportFee        u64string `json:"import_fee"`
	NewRequest       bool      `json:"new_request"`
	RequestFulfilled bool      `json:"request_fulfilled"`
	Status           string    `json:"status"`
}

// handleImportRequest is spec.md §4.C7's import_request operation. An
// account already scanning from genesis (start_height == 0) needs no
// import and reports request_fulfilled=true. Otherwise a pending
// ImportScan request is looked up (and queued if absent, new_request=true);
// import_fee is always literally 0, matching original_source (no fee
// computation on this path). A successful auth marks the connection
// logged_in unconditionally, same as original_source's import_request
// handler.
func (s *Server) handleImportRequest(r *http.Request, body []byte) (any, error) {
	var req importRequestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, lwserr.NewJSONError(lwserr.JInvalid, "")
	}
	addr, viewKey, err := parseAddressAndKey(req.Address, req.ViewKey)
	if err != nil {
		return nil, err
	}

	reader := s.st.StartRead()
	acct, err := auth.Authenticate(reader, addr, viewKey)
	if err != nil {
		reader.Finish()
		return nil, err
	}
	connStateFrom(r).setLoggedIn()

	fulfilled := acct.StartHeight == 0
	newRequest := false
	if !fulfilled {
		_, ok, rerr := reader.RequestByKey(store.RequestImportScan, addr)
		if rerr != nil {
			reader.Finish()
			return nil, rerr
		}
		newRequest = !ok
	}
	if err := reader.Finish(); err != nil {
		return nil, err
	}

	if newRequest {
		if werr := s.st.WithWrite(func(w *store.Writer) error {
			return w.ImportRequest(addr, 0)
		}); werr != nil {
			return nil, werr
		}
	}

	status := "Waiting for Approval"
	switch {
	case newRequest:
		status = "Accepted, waiting for approval"
	case fulfilled:
		status = "Approved"
	}
	return importRequestResponse{
		ImportFee:        0,
		NewRequest:       newRequest,
		RequestFulfilled: fulfilled,
		Status:           status,
	}, nil
}

// ---- /get_address_info ----

type spentOutputWire struct {
	Amount   u64string `json:"amount"`
	KeyImage hexBytes  `json:"key_image"`
	TxPubKey hexBytes  `json:"tx_pub_key"`
	OutIndex uint32    `json:"out_index"`
	Mixin    uint32    `json:"mixin"`
}

type getAddressInfoResponse struct {
	LockedFunds        u64string         `json:"locked_funds"`
	TotalReceived      u64string         `json:"total_received"`
	TotalSent          u64string         `json:"total_sent"`
	ScannedHeight      uint64            `json:"scanned_height"`
	ScannedBlockHeight uint64            `json:"scanned_block_height"`
	StartHeight        uint64            `json:"start_height"`
	TransactionHeight  uint64            `json:"transaction_height"`
	BlockchainHeight   uint64            `json:"blockchain_height"`
	SpentOutputs       []spentOutputWire `json:"spent_outputs"`
	Rates              oracle.Rates      `json:"rates,omitempty"`
}

type addressInfoRequest struct {
	Address string `json:"address"`
	ViewKey string `json:"view_key"`
}

// outputMeta records one received output, keyed by its id, while walking
// get_address_info's output cursor, mirroring original_source's sorted
// `metas` vector that the spend walk binary-searches into.
type outputMeta struct {
	id     store.OutputID
	output store.Output
}

func findOutputMeta(metas []outputMeta, id store.OutputID) (outputMeta, bool) {
	i := sort.Search(len(metas), func(i int) bool { return metas[i].id.Compare(id) >= 0 })
	if i < len(metas) && metas[i].id.Compare(id) == 0 {
		return metas[i], true
	}
	return outputMeta{}, false
}

// handleGetAddressInfo is spec.md §4.C7's get_address_info operation: walk
// outputs accumulating received/locked totals, then walk spends joining
// each one back to its source output (a miss is a fatal internal-defect,
// invariant 1 violation), then best-effort attach exchange rates.
func (s *Server) handleGetAddressInfo(r *http.Request, body []byte) (any, error) {
	var req addressInfoRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, lwserr.NewJSONError(lwserr.JInvalid, "")
	}
	addr, viewKey, err := parseAddressAndKey(req.Address, req.ViewKey)
	if err != nil {
		return nil, err
	}

	reader := s.st.StartRead()
	acct, err := auth.Authenticate(reader, addr, viewKey)
	if err != nil {
		reader.Finish()
		return nil, err
	}
	connStateFrom(r).setLoggedIn()

	height, err := chainHeight(reader)
	if err != nil {
		reader.Finish()
		return nil, err
	}

	outCursor, err := reader.OutputCursor(acct.ID)
	if err != nil {
		reader.Finish()
		return nil, err
	}
	defer outCursor.Close()

	var metas []outputMeta
	var received, locked uint64
	out, ok, err := outCursor.SeekFirst()
	for ok {
		if err != nil {
			reader.Finish()
			return nil, err
		}
		metas = append(metas, outputMeta{id: out.ID, output: out})
		received += out.Amount
		if isLocked(out.UnlockTime, height) {
			locked += out.Amount
		}
		out, ok, err = outCursor.Next()
	}
	if err != nil {
		reader.Finish()
		return nil, err
	}

	spendCursor, err := reader.SpendCursor(acct.ID)
	if err != nil {
		reader.Finish()
		return nil, err
	}
	defer spendCursor.Close()

	var spentWire []spentOutputWire
	var totalSent uint64
	spend, ok, err := spendCursor.SeekFirst()
	for ok {
		if err != nil {
			reader.Finish()
			return nil, err
		}
		meta, found := findOutputMeta(metas, spend.Source)
		if !found {
			reader.Finish()
			return nil, errors.New("api: serious database error, no receive for spend")
		}
		totalSent += meta.output.Amount
		spentWire = append(spentWire, spentOutputWire{
			Amount:   u64string(meta.output.Amount),
			KeyImage: spend.Image[:],
			TxPubKey: meta.output.TxPublic[:],
			OutIndex: meta.output.Index,
			Mixin:    spend.MixinCount,
		})
		spend, ok, err = spendCursor.Next()
	}
	if err != nil {
		reader.Finish()
		return nil, err
	}

	if err := reader.Finish(); err != nil {
		return nil, err
	}
	if spentWire == nil {
		spentWire = []spentOutputWire{}
	}

	resp := getAddressInfoResponse{
		LockedFunds:        u64string(locked),
		TotalReceived:      u64string(received),
		TotalSent:          u64string(totalSent),
		ScannedHeight:      acct.ScanHeight,
		ScannedBlockHeight: acct.ScanHeight,
		StartHeight:        acct.StartHeight,
		TransactionHeight:  height,
		BlockchainHeight:   height,
		SpentOutputs:       spentWire,
	}

	if s.ratesEnabled {
		rates, err := s.oracle.Rates(r.Context())
		if err != nil {
			s.logf("api: get_address_info: rates fetch failed: %v", err)
		} else {
			resp.Rates = rates
		}
	}
	return resp, nil
}

// ---- /get_address_txs ----

type txEntryWire struct {
	ID            uint64            `json:"id"`
	Hash          hexBytes          `json:"hash"`
	Timestamp     string            `json:"timestamp"`
	TotalReceived u64string         `json:"total_received"`
	TotalSent     u64string         `json:"total_sent"`
	UnlockTime    uint64            `json:"unlock_time"`
	Height        uint64            `json:"height"`
	SpentOutputs  []spentOutputWire `json:"spent_outputs"`
	PaymentID     hexBytes          `json:"payment_id,omitempty"`
	Coinbase      bool              `json:"coinbase"`
	Mixin         uint32            `json:"mixin"`
	Mempool       bool              `json:"mempool"`
}

type getAddressTxsResponse struct {
	TotalReceived      u64string     `json:"total_received"`
	ScannedHeight      uint64        `json:"scanned_height"`
	ScannedBlockHeight uint64        `json:"scanned_block_height"`
	StartHeight        uint64        `json:"start_height"`
	TransactionHeight  uint64        `json:"transaction_height"`
	Transactions       []txEntryWire `json:"transactions"`
	BlockchainHeight   uint64        `json:"blockchain_height"`
}

// handleGetAddressTxs is spec.md §4.C7's get_address_txs operation: a
// lockstep merge of the output and spend cursors, ordered by (height,
// tx_hash), grouping same-transaction entries together.
func (s *Server) handleGetAddressTxs(r *http.Request, body []byte) (any, error) {
	var req addressInfoRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, lwserr.NewJSONError(lwserr.JInvalid, "")
	}
	addr, viewKey, err := parseAddressAndKey(req.Address, req.ViewKey)
	if err != nil {
		return nil, err
	}

	reader := s.st.StartRead()
	acct, err := auth.Authenticate(reader, addr, viewKey)
	if err != nil {
		reader.Finish()
		return nil, err
	}
	connStateFrom(r).setLoggedIn()

	height, err := chainHeight(reader)
	if err != nil {
		reader.Finish()
		return nil, err
	}

	outCursor, err := reader.OutputCursor(acct.ID)
	if err != nil {
		reader.Finish()
		return nil, err
	}
	defer outCursor.Close()

	// A first pass over outputs builds the (id -> output) index spends
	// join against below, mirroring get_address_info's metas vector;
	// outputs arrive in the same cursor pass as the lockstep merge's
	// ordering source, so collect them into a slice up front rather than
	// re-seeking a second cursor.
	var outs []store.Output
	var metas []outputMeta
	out, ok, err := outCursor.SeekFirst()
	for ok {
		if err != nil {
			reader.Finish()
			return nil, err
		}
		outs = append(outs, out)
		metas = append(metas, outputMeta{id: out.ID, output: out})
		out, ok, err = outCursor.Next()
	}
	if err != nil {
		reader.Finish()
		return nil, err
	}

	spendCursor, err := reader.SpendCursor(acct.ID)
	if err != nil {
		reader.Finish()
		return nil, err
	}
	defer spendCursor.Close()

	var spends []store.Spend
	spend, ok, err := spendCursor.SeekFirst()
	for ok {
		if err != nil {
			reader.Finish()
			return nil, err
		}
		spends = append(spends, spend)
		spend, ok, err = spendCursor.Next()
	}
	if err != nil {
		reader.Finish()
		return nil, err
	}

	var txs []*txEntryWire
	var lastLink store.Link
	haveLast := false
	var received uint64

	tailFor := func(link store.Link) (*txEntryWire, bool) {
		if len(txs) > 0 && bytesEqual32(txs[len(txs)-1].Hash, link.TxHash[:]) {
			return txs[len(txs)-1], false
		}
		e := &txEntryWire{
			ID:     uint64(len(txs)),
			Hash:   link.TxHash[:],
			Height: link.Height,
		}
		txs = append(txs, e)
		return e, true
	}

	advance := func(link store.Link) error {
		if haveLast && link.Compare(lastLink) < 0 {
			return errors.New("api: outputs/spends not in expected sort order")
		}
		lastLink = link
		haveLast = true
		return nil
	}

	oi, si := 0, 0
	for oi < len(outs) || si < len(spends) {
		var useOutput bool
		switch {
		case oi < len(outs) && si < len(spends):
			useOutput = outs[oi].Link.Compare(spends[si].Link) <= 0
		case oi < len(outs):
			useOutput = true
		default:
			useOutput = false
		}

		if useOutput {
			o := outs[oi]
			if err := advance(o.Link); err != nil {
				reader.Finish()
				return nil, err
			}
			e, created := tailFor(o.Link)
			e.TotalReceived += u64string(o.Amount)
			if created {
				e.Timestamp = formatTimestamp(o.Timestamp)
				e.UnlockTime = o.UnlockTime
				e.Coinbase = o.Extra.Coinbase
				e.Mixin = o.MixinCount
				if pid := paymentIDBytes(o); len(pid) > 0 {
					e.PaymentID = pid
				}
			}
			received += o.Amount
			oi++
			continue
		}

		sp := spends[si]
		if err := advance(sp.Link); err != nil {
			reader.Finish()
			return nil, err
		}
		meta, found := findOutputMeta(metas, sp.Source)
		if !found {
			reader.Finish()
			return nil, errors.New("api: serious database error, no receive for spend")
		}
		e, created := tailFor(sp.Link)
		e.TotalSent += u64string(meta.output.Amount)
		if created {
			e.Timestamp = formatTimestamp(sp.Timestamp)
			e.UnlockTime = sp.UnlockTime
			e.Mixin = sp.MixinCount
		}
		e.SpentOutputs = append(e.SpentOutputs, spentOutputWire{
			Amount:   u64string(meta.output.Amount),
			KeyImage: sp.Image[:],
			TxPubKey: meta.output.TxPublic[:],
			OutIndex: meta.output.Index,
			Mixin:    sp.MixinCount,
		})
		si++
	}

	if err := reader.Finish(); err != nil {
		return nil, err
	}

	flat := make([]txEntryWire, len(txs))
	for i, e := range txs {
		flat[i] = *e
		if flat[i].SpentOutputs == nil {
			flat[i].SpentOutputs = []spentOutputWire{}
		}
	}

	return getAddressTxsResponse{
		TotalReceived:      u64string(received),
		ScannedHeight:      acct.ScanHeight,
		ScannedBlockHeight: acct.ScanHeight,
		StartHeight:        acct.StartHeight,
		TransactionHeight:  height,
		Transactions:       flat,
		BlockchainHeight:   height,
	}, nil
}

func bytesEqual32(hb hexBytes, b []byte) bool {
	if len(hb) != len(b) {
		return false
	}
	for i := range hb {
		if hb[i] != b[i] {
			return false
		}
	}
	return true
}

// ---- /get_unspent_outs ----

type unspentOutputWire struct {
	Amount         u64string  `json:"amount"`
	PublicKey      hexBytes   `json:"public_key"`
	Index          uint32     `json:"index"`
	GlobalIndex    uint64     `json:"global_index"`
	TxID           uint64     `json:"tx_id"`
	TxHash         hexBytes   `json:"tx_hash"`
	TxPrefixHash   hexBytes   `json:"tx_prefix_hash"`
	TxPubKey       hexBytes   `json:"tx_pub_key"`
	Timestamp      string     `json:"timestamp"`
	Height         uint64     `json:"height"`
	SpendKeyImages []hexBytes `json:"spend_key_images"`
	RingCT         *rctWire   `json:"rct,omitempty"`
}

type rctWire struct {
	Commitment hexBytes `json:"commitment"`
	Mask       hexBytes `json:"mask"`
	Amount     hexBytes `json:"amount"`
}

type getUnspentOutsRequest struct {
	Address       string     `json:"address"`
	ViewKey       string     `json:"view_key"`
	Amount        u64string  `json:"amount"`
	Mixin         *uint32    `json:"mixin"`
	UseDust       *bool      `json:"use_dust"`
	DustThreshold *u64string `json:"dust_threshold"`
}

type getUnspentOutsResponse struct {
	PerKBFee uint64              `json:"per_kb_fee"`
	Amount   u64string           `json:"amount"`
	Outputs  []unspentOutputWire `json:"outputs"`
}

type feeResult struct {
	fee uint64
	err error
}

// handleGetUnspentOuts is spec.md §4.C7's get_unspent_outs operation.
// Dispatches the fee-estimate oracle call before opening the read
// snapshot so that by the time the handler needs the fee it has already
// been in flight for the duration of the DB walk (spec.md §9's
// "snapshot lifetime across oracle I/O").
func (s *Server) handleGetUnspentOuts(r *http.Request, body []byte) (any, error) {
	var req getUnspentOutsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, lwserr.NewJSONError(lwserr.JInvalid, "")
	}
	addr, viewKey, err := parseAddressAndKey(req.Address, req.ViewKey)
	if err != nil {
		return nil, err
	}

	feeCh := make(chan feeResult, 1)
	go func() {
		fee, ferr := s.oracle.FeeEstimate(context.Background())
		feeCh <- feeResult{fee: fee, err: ferr}
	}()
	await := func() (uint64, error) {
		res := <-feeCh
		return res.fee, res.err
	}

	reader := s.st.StartRead()
	acct, err := auth.Authenticate(reader, addr, viewKey)
	if err != nil {
		reader.Finish()
		await()
		return nil, err
	}
	connStateFrom(r).setLoggedIn()

	outCursor, err := reader.OutputCursor(acct.ID)
	if err != nil {
		reader.Finish()
		await()
		return nil, err
	}
	defer outCursor.Close()

	var mixin uint32
	if req.Mixin != nil {
		mixin = *req.Mixin
	}
	var threshold uint64
	if !(req.UseDust != nil && *req.UseDust) && req.DustThreshold != nil {
		threshold = uint64(*req.DustThreshold)
	}

	var candidates []store.Output
	var received uint64
	out, ok, err := outCursor.SeekFirst()
	for ok {
		if err != nil {
			reader.Finish()
			await()
			return nil, err
		}
		if out.Amount >= threshold && out.MixinCount >= mixin {
			candidates = append(candidates, out)
			received += out.Amount
		}
		out, ok, err = outCursor.Next()
	}
	if err != nil {
		reader.Finish()
		await()
		return nil, err
	}
	if received < uint64(req.Amount) {
		reader.Finish()
		await()
		return nil, lwserr.New(lwserr.NoSuchAccount)
	}

	var wireOuts []unspentOutputWire
	for _, o := range candidates {
		images, ierr := reader.Images(o.ID)
		if ierr != nil {
			reader.Finish()
			await()
			return nil, ierr
		}
		projected, perr := project.Output(o, acct.ViewKey, acct.Address.SpendPublic, images)
		if perr != nil {
			reader.Finish()
			await()
			return nil, lwserr.Wrap(lwserr.CryptoFailure, perr)
		}
		entry := unspentOutputWire{
			Amount:       u64string(o.Amount),
			PublicKey:    projected.PublicKey[:],
			Index:        o.Index,
			GlobalIndex:  o.ID.Low,
			TxID:         o.ID.Low,
			TxHash:       o.Link.TxHash[:],
			TxPrefixHash: o.TxPrefixHash[:],
			TxPubKey:     o.TxPublic[:],
			Timestamp:    formatTimestamp(o.Timestamp),
			Height:       o.Link.Height,
		}
		for _, img := range images {
			entry.SpendKeyImages = append(entry.SpendKeyImages, hexBytes(img[:]))
		}
		if entry.SpendKeyImages == nil {
			entry.SpendKeyImages = []hexBytes{}
		}
		if o.Extra.Ringct {
			entry.RingCT = &rctWire{
				Commitment: projected.Commitment[:],
				Mask:       projected.MaskEnc[:],
				Amount:     u64ToHex(projected.AmountEnc),
			}
		}
		wireOuts = append(wireOuts, entry)
	}

	if err := reader.Finish(); err != nil {
		await()
		return nil, err
	}

	fee, ferr := await()
	if ferr != nil {
		return nil, ferr
	}

	if wireOuts == nil {
		wireOuts = []unspentOutputWire{}
	}
	return getUnspentOutsResponse{
		PerKBFee: fee,
		Amount:   u64string(received),
		Outputs:  wireOuts,
	}, nil
}

func u64ToHex(v uint64) hexBytes {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b[:]
}

// ---- /get_random_outs ----

const (
	maxRandomOutsCount   = 50
	maxRandomOutsAmounts = 10
)

type getRandomOutsRequest struct {
	Amounts []u64string `json:"amounts"`
	Count   uint64      `json:"count"`
}

type randomOutEntry struct {
	PublicKey   hexBytes  `json:"public_key"`
	GlobalIndex u64string `json:"global_index"`
	RCT         hexBytes  `json:"rct"`
}

type randomAmountOuts struct {
	Amount  u64string        `json:"amount"`
	Outputs []randomOutEntry `json:"outputs"`
}

type getRandomOutsResponse struct {
	AmountOuts []randomAmountOuts `json:"amount_outs"`
}

// handleGetRandomOuts is spec.md §4.C7's get_random_outs operation: two
// sequential oracle calls, the second's (public_key, mask) pairs joined
// back onto the first's (global_index, public_key) candidates by a
// binary search over public keys.
func (s *Server) handleGetRandomOuts(r *http.Request, body []byte) (any, error) {
	if !connStateFrom(r).isLoggedIn() {
		return nil, lwserr.New(lwserr.NoSuchAccount)
	}

	var req getRandomOutsRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, lwserr.NewJSONError(lwserr.JInvalid, "")
	}
	if req.Count > maxRandomOutsCount || len(req.Amounts) > maxRandomOutsAmounts {
		return nil, lwserr.New(lwserr.ExceededRestRequestLimit)
	}

	amounts := make([]uint64, len(req.Amounts))
	for i, a := range req.Amounts {
		amounts[i] = uint64(a)
	}

	candidates, err := s.oracle.RandomOutputs(r.Context(), amounts, req.Count)
	if err != nil {
		return nil, err
	}

	var pairs []oracle.OutputKey
	for _, amountOuts := range candidates {
		for _, o := range amountOuts.Outputs {
			pairs = append(pairs, oracle.OutputKey{Amount: amountOuts.Amount, GlobalIndex: o.GlobalIndex})
		}
	}

	resolved, err := s.oracle.OutputKeys(r.Context(), pairs)
	if err != nil {
		return nil, err
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].PublicKey < resolved[j].PublicKey })

	lookup := func(pubkey string) (oracle.OutputKey, bool) {
		i := sort.Search(len(resolved), func(i int) bool { return resolved[i].PublicKey >= pubkey })
		if i < len(resolved) && resolved[i].PublicKey == pubkey {
			return resolved[i], true
		}
		return oracle.OutputKey{}, false
	}

	resp := getRandomOutsResponse{}
	for _, amountOuts := range candidates {
		wire := randomAmountOuts{Amount: u64string(amountOuts.Amount)}
		for _, o := range amountOuts.Outputs {
			match, found := lookup(o.PublicKey)
			if !found {
				return nil, lwserr.New(lwserr.BadDaemonResponse)
			}
			pubBytes, perr := hex.DecodeString(o.PublicKey)
			if perr != nil {
				return nil, lwserr.Wrap(lwserr.BadDaemonResponse, perr)
			}
			maskBytes, merr := hex.DecodeString(match.Mask)
			if merr != nil {
				return nil, lwserr.Wrap(lwserr.BadDaemonResponse, merr)
			}
			wire.Outputs = append(wire.Outputs, randomOutEntry{
				PublicKey:   pubBytes,
				GlobalIndex: u64string(o.GlobalIndex),
				RCT:         maskBytes,
			})
		}
		if wire.Outputs == nil {
			wire.Outputs = []randomOutEntry{}
		}
		resp.AmountOuts = append(resp.AmountOuts, wire)
	}
	if resp.AmountOuts == nil {
		resp.AmountOuts = []randomAmountOuts{}
	}
	return resp, nil
}

// ---- /submit_raw_tx ----

type submitRawTxRequest struct {
	Tx string `json:"tx"`
}

type submitRawTxResponse struct {
	Status string `json:"status"`
}

// validateRawTx performs the minimal structural validation this server
// can do without a full CryptoNote transaction-parsing library: none of
// the retrieval pack's dependencies parse monero tx blobs (see
// DESIGN.md). It rejects an empty blob or one whose leading varint isn't
// a plausible transaction format version, leaving real validation to the
// daemon's relay call.
func validateRawTx(raw []byte) error {
	if len(raw) == 0 {
		return errors.New("api: empty transaction blob")
	}
	if raw[0] == 0 || raw[0] > 2 {
		return errors.New("api: unrecognised transaction format version")
	}
	return nil
}

// handleSubmitRawTx is spec.md §4.C7's submit_raw_tx operation:
// hex-decode, structurally validate, then relay to the oracle.
func (s *Server) handleSubmitRawTx(r *http.Request, body []byte) (any, error) {
	if !connStateFrom(r).isLoggedIn() {
		return nil, lwserr.New(lwserr.NoSuchAccount)
	}

	var req submitRawTxRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, lwserr.NewJSONError(lwserr.JInvalid, "")
	}

	raw, err := hex.DecodeString(req.Tx)
	if err != nil {
		return nil, lwserr.NewJSONError(lwserr.JInvalidHex, "tx")
	}
	if err := validateRawTx(raw); err != nil {
		return nil, lwserr.Wrap(lwserr.BadClientTx, err)
	}

	if err := s.oracle.RelayTx(r.Context(), req.Tx); err != nil {
		return nil, err
	}
	return submitRawTxResponse{Status: "OK"}, nil
}

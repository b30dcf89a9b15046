package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cryptonote-tools/lws-go/internal/base58"
	"github.com/cryptonote-tools/lws-go/internal/cryptoutil"
	"github.com/cryptonote-tools/lws-go/internal/oracle"
	"github.com/cryptonote-tools/lws-go/internal/store"
)

// scalarFromByte builds a small, trivially-canonical ed25519 scalar for
// test key material (full 32-byte little-endian with only the low byte
// set is always < L).
func scalarFromByte(b byte) [32]byte {
	var s [32]byte
	s[0] = b
	return s
}

func newKeypair(t *testing.T, secretByte byte) (secret, public [32]byte) {
	t.Helper()
	secret = scalarFromByte(secretByte)
	pub, err := cryptoutil.DerivePublic(secret)
	if err != nil {
		t.Fatalf("DerivePublic: %v", err)
	}
	return secret, pub
}

type testEnv struct {
	st      *store.Store
	srv     *Server
	oracle  *httptest.Server
	httpSrv *httptest.Server
}

// handlers lets each test override just the json_rpc methods it
// exercises; unlisted methods 500.
func newTestEnv(t *testing.T, handlers map[string]func(params json.RawMessage) (any, error)) *testEnv {
	t.Helper()
	return newTestEnvWithTimeout(t, handlers, 5*time.Second)
}

func newTestEnvWithTimeout(t *testing.T, handlers map[string]func(params json.RawMessage) (any, error), receiveTimeout time.Duration) *testEnv {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	oracleSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     string          `json:"id"`
			Method string          `json:"method"`
			Params json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		fn, ok := handlers[req.Method]
		if !ok {
			http.Error(w, "unexpected method "+req.Method, http.StatusInternalServerError)
			return
		}
		result, ferr := fn(req.Params)
		if ferr != nil {
			http.Error(w, ferr.Error(), http.StatusInternalServerError)
			return
		}
		resultBytes, _ := json.Marshal(result)
		_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{
			"jsonrpc": json.RawMessage(`"2.0"`),
			"id":      json.RawMessage(`"` + req.ID + `"`),
			"result":  resultBytes,
		})
	}))

	oc := oracle.New(oracleSrv.URL, "", "", receiveTimeout)
	srv, err := New(st, oc)
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}

	httpSrv := httptest.NewUnstartedServer(srv.Handler())
	httpSrv.Config.ConnContext = srv.ConnContext
	httpSrv.Start()

	t.Cleanup(func() {
		oracleSrv.Close()
		httpSrv.Close()
		_ = st.Close()
	})

	return &testEnv{st: st, srv: srv, oracle: oracleSrv, httpSrv: httpSrv}
}

func (e *testEnv) post(t *testing.T, client *http.Client, path string, req any) (*http.Response, []byte) {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := client.Post(e.httpSrv.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

// sameConnClient returns an *http.Client pinned to a single TCP
// connection, so that connState (keyed per-connection) is shared across
// requests the way a real keep-alive client would see it.
func sameConnClient() *http.Client {
	return &http.Client{Transport: &http.Transport{MaxConnsPerHost: 1, DisableKeepAlives: false}}
}

func createActiveAccount(t *testing.T, st *store.Store, spendSecretByte, viewSecretByte byte, startHeight uint64) (store.Address, [32]byte, store.Account) {
	t.Helper()
	_, spendPub := newKeypair(t, spendSecretByte)
	viewSecret, viewPub := newKeypair(t, viewSecretByte)
	addr := store.Address{SpendPublic: spendPub, ViewPublic: viewPub}

	if err := st.WithWrite(func(w *store.Writer) error {
		return w.CreationRequest(addr, viewSecret)
	}); err != nil {
		t.Fatalf("CreationRequest: %v", err)
	}

	var acct store.Account
	if err := st.WithWrite(func(w *store.Writer) error {
		a, err := w.ApproveCreateAccount(addr, viewSecret, 1000, false)
		acct = a
		return err
	}); err != nil {
		t.Fatalf("ApproveCreateAccount: %v", err)
	}
	if startHeight != 0 {
		if err := st.WithWrite(func(w *store.Writer) error {
			return w.ImportRequest(addr, startHeight)
		}); err != nil {
			t.Fatalf("ImportRequest: %v", err)
		}
		if err := st.WithWrite(func(w *store.Writer) error {
			return w.ApproveImportScan(addr, startHeight)
		}); err != nil {
			t.Fatalf("ApproveImportScan: %v", err)
		}
		acct.StartHeight = startHeight
		acct.ScanHeight = startHeight
	}
	return addr, viewSecret, acct
}

func addressString(addr store.Address) string {
	return base58.EncodeAddress(base58.DefaultTag, addr)
}

func TestLoginFreshAddressThenInfoBefore403(t *testing.T) {
	env := newTestEnv(t, nil)
	client := sameConnClient()

	_, spendPub := newKeypair(t, 1)
	viewSecret, viewPub := newKeypair(t, 2)
	addr := store.Address{SpendPublic: spendPub, ViewPublic: viewPub}

	resp, body := env.post(t, client, "/login", loginRequest{
		Address:       addressString(addr),
		ViewKey:       hex.EncodeToString(viewSecret[:]),
		CreateAccount: true,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d body %s", resp.StatusCode, body)
	}
	var loginResp loginResponse
	if err := json.Unmarshal(body, &loginResp); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}
	if !loginResp.NewAddress {
		t.Fatalf("expected new_address=true, got %+v", loginResp)
	}

	resp, _ = env.post(t, client, "/get_address_info", addressInfoRequest{
		Address: addressString(addr),
		ViewKey: hex.EncodeToString(viewSecret[:]),
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("get_address_info before approval: status %d, want 403", resp.StatusCode)
	}
}

func TestGetAddressInfoWithOutputAndSpend(t *testing.T) {
	env := newTestEnv(t, nil)
	client := sameConnClient()

	addr, viewSecret, acct := createActiveAccount(t, env.st, 10, 11, 0)

	var txHash [32]byte
	txHash[0] = 0xaa
	outputID := store.OutputID{BlockHeight: 5, Low: 0}
	out := store.Output{
		ID:         outputID,
		Link:       store.Link{Height: 5, TxHash: txHash},
		Index:      0,
		Amount:     1000,
		MixinCount: 3,
		Timestamp:  1700000000,
		UnlockTime: 0,
	}
	if err := env.st.WithWrite(func(w *store.Writer) error {
		if err := w.PutBlock(store.BlockRef{Height: 5, Hash: txHash}); err != nil {
			return err
		}
		return w.PutOutput(acct.ID, out)
	}); err != nil {
		t.Fatalf("PutOutput: %v", err)
	}

	var spendImage [32]byte
	spendImage[0] = 0x01
	var spendTxHash [32]byte
	spendTxHash[0] = 0xbb
	spend := store.Spend{
		Source:     outputID,
		Link:       store.Link{Height: 6, TxHash: spendTxHash},
		Image:      spendImage,
		MixinCount: 4,
		Timestamp:  1700000100,
	}
	if err := env.st.WithWrite(func(w *store.Writer) error {
		if err := w.PutBlock(store.BlockRef{Height: 6, Hash: spendTxHash}); err != nil {
			return err
		}
		return w.AppendSpend(acct.ID, spend)
	}); err != nil {
		t.Fatalf("AppendSpend: %v", err)
	}

	resp, body := env.post(t, client, "/get_address_info", addressInfoRequest{
		Address: addressString(addr),
		ViewKey: hex.EncodeToString(viewSecret[:]),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get_address_info: status %d body %s", resp.StatusCode, body)
	}
	var info getAddressInfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		t.Fatalf("unmarshal: %v body=%s", err, body)
	}
	if uint64(info.TotalReceived) != 1000 {
		t.Fatalf("total_received = %d, want 1000", info.TotalReceived)
	}
	if uint64(info.TotalSent) != 1000 {
		t.Fatalf("total_sent = %d, want 1000", info.TotalSent)
	}
	if info.BlockchainHeight != info.TransactionHeight {
		t.Fatalf("transaction_height (%d) must equal blockchain_height (%d)", info.TransactionHeight, info.BlockchainHeight)
	}
	if len(info.SpentOutputs) != 1 {
		t.Fatalf("expected 1 spent output, got %d", len(info.SpentOutputs))
	}
	if info.SpentOutputs[0].OutIndex != out.Index {
		t.Fatalf("spent out_index = %d, want %d", info.SpentOutputs[0].OutIndex, out.Index)
	}
	if info.SpentOutputs[0].Mixin != spend.MixinCount {
		t.Fatalf("spent mixin = %d, want %d", info.SpentOutputs[0].Mixin, spend.MixinCount)
	}
}

func TestUnknownAddressAndBadViewKeyBoth403(t *testing.T) {
	env := newTestEnv(t, nil)
	client := sameConnClient()

	addr, viewSecret, _ := createActiveAccount(t, env.st, 20, 21, 0)

	resp, _ := env.post(t, client, "/login", loginRequest{
		Address: addressString(addr),
		ViewKey: hex.EncodeToString(viewSecret[:]),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login for active account: status %d", resp.StatusCode)
	}

	// An address with no account at all, and the real address with the
	// wrong view key, must be indistinguishable: both 403, same reason.
	_, unknownSpendPub := newKeypair(t, 22)
	_, unknownViewPub := newKeypair(t, 23)
	unknownAddr := store.Address{SpendPublic: unknownSpendPub, ViewPublic: unknownViewPub}

	resp, unknownBody := env.post(t, client, "/login", loginRequest{
		Address: addressString(unknownAddr),
		ViewKey: hex.EncodeToString(viewSecret[:]),
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("login with unknown address: status %d, want 403", resp.StatusCode)
	}

	wrongViewSecret := scalarFromByte(99)
	resp, wrongKeyBody := env.post(t, client, "/login", loginRequest{
		Address: addressString(addr),
		ViewKey: hex.EncodeToString(wrongViewSecret[:]),
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("login with bad view key: status %d, want 403", resp.StatusCode)
	}
	if string(unknownBody) != string(wrongKeyBody) {
		t.Fatalf("unknown address and bad view key must be indistinguishable: %q vs %q", unknownBody, wrongKeyBody)
	}
}

func TestGetRandomOutsCountBoundary(t *testing.T) {
	handlers := map[string]func(json.RawMessage) (any, error){
		"get_random_outs": func(json.RawMessage) (any, error) {
			return map[string]any{"amount_outs": []any{}}, nil
		},
		"get_outs": func(json.RawMessage) (any, error) {
			return map[string]any{"outs": []any{}}, nil
		},
	}
	env := newTestEnv(t, handlers)
	client := sameConnClient()

	// get_random_outs requires an authenticated connection; any successful
	// auth on this connection sets logged_in.
	addr, viewSecret, _ := createActiveAccount(t, env.st, 30, 31, 0)
	resp, _ := env.post(t, client, "/login", loginRequest{
		Address: addressString(addr),
		ViewKey: hex.EncodeToString(viewSecret[:]),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}

	amounts := make([]u64string, 10)
	for i := range amounts {
		amounts[i] = u64string(i + 1)
	}

	resp, body := env.post(t, client, "/get_random_outs", getRandomOutsRequest{Amounts: amounts, Count: 50})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("count=50: status %d body %s", resp.StatusCode, body)
	}

	resp, _ = env.post(t, client, "/get_random_outs", getRandomOutsRequest{Amounts: amounts, Count: 51})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("count=51: status %d, want 400", resp.StatusCode)
	}

	tooManyAmounts := make([]u64string, 11)
	resp, _ = env.post(t, client, "/get_random_outs", getRandomOutsRequest{Amounts: tooManyAmounts, Count: 50})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("amounts=11: status %d, want 400", resp.StatusCode)
	}
}

func TestSubmitRawTxBodySizeBoundary(t *testing.T) {
	handlers := map[string]func(json.RawMessage) (any, error){
		"send_raw_transaction": func(json.RawMessage) (any, error) {
			return map[string]any{"status": "OK", "not_relayed": false}, nil
		},
	}
	env := newTestEnv(t, handlers)
	client := sameConnClient()

	addr, viewSecret, _ := createActiveAccount(t, env.st, 40, 41, 0)
	resp, _ := env.post(t, client, "/login", loginRequest{
		Address: addressString(addr),
		ViewKey: hex.EncodeToString(viewSecret[:]),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}

	// A small tx fits the endpoint's 50KiB body cap and is relayed; a 60KiB
	// tx, hex-encoded to a request of about 120KiB, is rejected with 400.
	rawTx := make([]byte, 1)
	rawTx[0] = 1
	fitting := submitRawTxRequest{Tx: hex.EncodeToString(rawTx)}
	resp, body := env.post(t, client, "/submit_raw_tx", fitting)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("small tx: status %d body %s", resp.StatusCode, body)
	}

	pad := make([]byte, 60*1024)
	oversized := submitRawTxRequest{Tx: hex.EncodeToString(pad)}
	resp, _ = env.post(t, client, "/submit_raw_tx", oversized)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized tx: status %d, want 400", resp.StatusCode)
	}
}

func TestOracleTimeoutOnRelayMaps503(t *testing.T) {
	blockCh := make(chan struct{})
	handlers := map[string]func(json.RawMessage) (any, error){
		"send_raw_transaction": func(json.RawMessage) (any, error) {
			<-blockCh
			return map[string]any{"status": "OK", "not_relayed": false}, nil
		},
	}
	env := newTestEnvWithTimeout(t, handlers, 50*time.Millisecond)
	// Registered after the env so it runs first: the oracle server's Close
	// waits for the blocked handler to return.
	t.Cleanup(func() { close(blockCh) })
	client := sameConnClient()

	addr, viewSecret, _ := createActiveAccount(t, env.st, 50, 51, 0)
	resp, _ := env.post(t, client, "/login", loginRequest{
		Address: addressString(addr),
		ViewKey: hex.EncodeToString(viewSecret[:]),
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d", resp.StatusCode)
	}

	resp, _ = env.post(t, client, "/submit_raw_tx", submitRawTxRequest{Tx: "01"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("relay timeout: status %d, want 503", resp.StatusCode)
	}
}

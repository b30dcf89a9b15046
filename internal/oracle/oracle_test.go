package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cryptonote-tools/lws-go/internal/lwserr"
)

func jsonRPCHandler(t *testing.T, result any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		raw, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("marshal result: %v", err)
		}
		resp := rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: raw}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestFeeEstimate(t *testing.T) {
	srv := httptest.NewServer(jsonRPCHandler(t, FeeEstimateResult{EstimatedFeePerKB: 2000}))
	defer srv.Close()

	c := New(srv.URL, "", "", 0)
	fee, err := c.FeeEstimate(context.Background())
	if err != nil {
		t.Fatalf("FeeEstimate: %v", err)
	}
	if fee != 2000 {
		t.Fatalf("fee = %d, want 2000", fee)
	}
}

func TestCallMapsTimeoutToDaemonTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer func() {
		close(blocked)
		srv.Close()
	}()

	c := New(srv.URL, "", "", 10*time.Millisecond)
	err := c.Call(context.Background(), "get_fee_estimate", struct{}{}, nil)
	if !errors.Is(err, lwserr.New(lwserr.DaemonTimeout)) {
		t.Fatalf("expected DaemonTimeout, got %v", err)
	}
}

func TestCallMapsMalformedBodyToBadDaemonResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := New(srv.URL, "", "", time.Second)
	err := c.Call(context.Background(), "get_fee_estimate", struct{}{}, nil)
	if !errors.Is(err, lwserr.New(lwserr.BadDaemonResponse)) {
		t.Fatalf("expected BadDaemonResponse, got %v", err)
	}
}

func TestRelayTxSurfacesTxRelayFailed(t *testing.T) {
	srv := httptest.NewServer(jsonRPCHandler(t, relayResult{Status: "OK", NotRelayed: true}))
	defer srv.Close()

	c := New(srv.URL, "", "", 0)
	err := c.RelayTx(context.Background(), "deadbeef")
	if !errors.Is(err, lwserr.New(lwserr.TxRelayFailed)) {
		t.Fatalf("expected TxRelayFailed, got %v", err)
	}
}

func TestRelayTxSucceedsWhenRelayed(t *testing.T) {
	srv := httptest.NewServer(jsonRPCHandler(t, relayResult{Status: "OK", NotRelayed: false}))
	defer srv.Close()

	c := New(srv.URL, "", "", 0)
	if err := c.RelayTx(context.Background(), "deadbeef"); err != nil {
		t.Fatalf("RelayTx: %v", err)
	}
}

func TestCloneIsIndependentOfReceiveTimeoutMutation(t *testing.T) {
	c := New("http://example.invalid", "", "", 5*time.Second)
	clone := c.WithReceiveTimeout(time.Minute)
	if c.receive == clone.receive {
		t.Fatalf("expected clone's receive timeout to differ from original")
	}
}

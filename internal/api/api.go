// Package api implements the HTTP dispatcher spec.md §6 describes: one
// handler per wallet operation, registered against a small static table
// mirroring original_source's constexpr `endpoints[]` array in
// rest_server.cpp (name, handler, max body size), including its
// unimplemented `/get_txt_records` entry kept solely to exercise the 501
// path. The per-request flow (404 unknown path -> 501 unimplemented -> 400
// oversized body -> 405 wrong method -> 400 malformed JSON -> handler ->
// 403/503/500 mapped from the handler's error) follows the same order
// rest_server.cpp's handle_http_request checks them in. A handler only
// runs once it acquires a slot from the Server's worker gate, a buffered
// channel sized from the CLI -workers flag (see WithWorkers).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/cryptonote-tools/lws-go/internal/lwserr"
	"github.com/cryptonote-tools/lws-go/internal/oracle"
	"github.com/cryptonote-tools/lws-go/internal/store"
)

// Server is the spec.md §6 HTTP dispatcher. Handlers authenticate via
// internal/auth and read through internal/store, and finish their read
// snapshot before waiting on any internal/oracle response, per spec.md §9's
// snapshot-lifetime rule.
type Server struct {
	st           *store.Store
	oracle       *oracle.Client
	ratesEnabled bool
	logf         func(string, ...any)
	sem          chan struct{}
}

// defaultWorkers mirrors config.FromFlags's own -workers default, used
// only when New is called directly (e.g. in tests) without WithWorkers.
const defaultWorkers = 4

// Option configures optional Server behaviour.
type Option func(*Server)

// WithRatesEnabled turns on get_address_info's optional oracle-backed
// exchange-rate field (SPEC_FULL.md's restored "rates" field).
func WithRatesEnabled(enabled bool) Option {
	return func(s *Server) { s.ratesEnabled = enabled }
}

// WithLogger overrides the default log.Printf-based logger.
func WithLogger(logf func(string, ...any)) Option {
	return func(s *Server) {
		if logf != nil {
			s.logf = logf
		}
	}
}

// WithWorkers bounds the number of requests dispatch handles
// concurrently (spec.md §6's "worker thread count", SPEC_FULL.md §5's
// buffered-channel gate), sized from the CLI -workers flag. n <= 0
// falls back to defaultWorkers.
func WithWorkers(n int) Option {
	if n <= 0 {
		n = defaultWorkers
	}
	return func(s *Server) { s.sem = make(chan struct{}, n) }
}

// New constructs a Server against an open account store and oracle client.
func New(st *store.Store, oc *oracle.Client, opts ...Option) (*Server, error) {
	if st == nil {
		return nil, errors.New("api: store is nil")
	}
	if oc == nil {
		return nil, errors.New("api: oracle client is nil")
	}
	s := &Server{st: st, oracle: oc, logf: log.Printf, sem: make(chan struct{}, defaultWorkers)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

type endpointHandler func(s *Server, r *http.Request, body []byte) (any, error)

type endpoint struct {
	maxBody int64
	handler endpointHandler // nil => 501 Not Implemented
}

// endpoints mirrors original_source's dispatch table (rest_server.cpp),
// including the unimplemented /get_txt_records entry.
var endpoints = map[string]endpoint{
	"/login":            {2 * 1024, (*Server).handleLogin},
	"/get_address_info": {2 * 1024, (*Server).handleGetAddressInfo},
	"/get_address_txs":  {2 * 1024, (*Server).handleGetAddressTxs},
	"/get_unspent_outs": {2 * 1024, (*Server).handleGetUnspentOuts},
	"/get_random_outs":  {2 * 1024, (*Server).handleGetRandomOuts},
	"/import_request":   {2 * 1024, (*Server).handleImportRequest},
	"/submit_raw_tx":    {50 * 1024, (*Server).handleSubmitRawTx},
	"/get_txt_records":  {0, nil},
}

// Handler returns the single http.Handler that dispatches every endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.dispatch)
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	ep, ok := endpoints[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if ep.handler == nil {
		http.Error(w, "not implemented", http.StatusNotImplemented)
		return
	}

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	body, err := io.ReadAll(io.LimitReader(r.Body, ep.maxBody+1))
	if err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if int64(len(body)) > ep.maxBody {
		s.logf("api: client exceeded maximum body size (%d bytes) on %s", ep.maxBody, r.URL.Path)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !json.Valid(body) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	resp, err := ep.handler(s, r, body)
	if err != nil {
		status, reason := statusAndReason(err)
		s.logf("api: %s from %s on %s", reason, r.RemoteAddr, r.URL.Path)
		http.Error(w, reason, status)
		return
	}
	writeJSON(w, resp)
}

// statusAndReason maps a handler error to its HTTP status and a short
// wire-level reason string, per spec.md §6/§7: NoSuchAccount (and its
// BadViewKey twin) -> 403, timeouts -> 503, JSON decode errors -> 400,
// everything else -> 500.
func statusAndReason(err error) (int, string) {
	var lwsErr *lwserr.Error
	if errors.As(err, &lwsErr) {
		return lwsErr.HTTPStatus(), lwsErr.Name()
	}
	var jsonErr *lwserr.JSONError
	if errors.As(err, &jsonErr) {
		return jsonErr.HTTPStatus(), jsonErr.Error()
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

// connState tracks the "logged_in" flag spec.md §4.C7 describes, scoped to
// one TCP connection rather than one request: original_source's context
// is a per-connection epee::net_utils::connection_context_base, so a
// prior successful /login or /get_address_info on the same keep-alive
// connection is enough to satisfy get_random_outs/submit_raw_tx's "require
// logged_in" rule without re-authenticating.
type connState struct {
	mu       sync.Mutex
	loggedIn bool
}

type connStateKey struct{}

// ConnContext must be installed as the owning http.Server's ConnContext
// hook (see cmd/lws-server) so that logged_in state is attached once per
// connection and observed by every request on it.
func (s *Server) ConnContext(ctx context.Context, _ net.Conn) context.Context {
	return context.WithValue(ctx, connStateKey{}, &connState{})
}

func connStateFrom(r *http.Request) *connState {
	if cs, ok := r.Context().Value(connStateKey{}).(*connState); ok {
		return cs
	}
	// No ConnContext hook installed (e.g. a bare httptest.NewServer in a
	// unit test not wiring one up): fall back to a request-scoped state,
	// which only affects tests that don't exercise cross-request login.
	return &connState{}
}

func (cs *connState) setLoggedIn() {
	cs.mu.Lock()
	cs.loggedIn = true
	cs.mu.Unlock()
}

func (cs *connState) isLoggedIn() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.loggedIn
}

// Package lwserr implements the categorised error carrier used throughout
// the light-wallet server core. It plays the role of the original server's
// expect<T>/lws::error pair (see monero's common/expect.h and
// light_wallet_server/error.h) using plain Go error values instead of a
// template result type.
package lwserr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code identifies one of the core's categorised error conditions. The
// numeric values are stable and must not be renumbered once assigned.
type Code int

const (
	// InvalidErrorCode is what a zero-value Code coerces to; it is never
	// intentionally constructed.
	InvalidErrorCode Code = iota

	AccountExists
	BadAddress
	BadViewKey
	BadBlockchain
	BadClientTx
	BadDaemonResponse
	BlockchainReorg
	CreateQueueMax
	DaemonTimeout
	DuplicateRequest
	ExceededBlockchainBuffer
	ExceededRestRequestLimit
	ExchangeRatesDisabled
	ExchangeRatesFetch
	ExchangeRatesOld
	NoSuchAccount
	SignalAbortProcess
	SignalAbortScan
	SignalUnknown
	SystemClockInvalidRange
	TxRelayFailed

	// CryptoFailure is not in the original enum's public surface but is
	// referenced by name in spec.md §4.C8/§7; it is the stealth-address /
	// ringct-decode failure code.
	CryptoFailure
)

type codeInfo struct {
	name       string
	httpStatus int
	// generic reports the std errc-like condition this code is
	// considered equivalent to for Matches, mirroring the "generic
	// equivalence" comparisons original_source's expect<T> supports via
	// std::error_condition.
	generic condition
}

type condition int

const (
	conditionNone condition = iota
	conditionTimedOut
	conditionInterrupted
	conditionNotFound
	conditionExists
	conditionInvalidArgument
)

// codeTable is the module-private constant table mapping Code to its
// name, HTTP status, and generic equivalence condition. Per spec.md §9,
// this is intentionally static rather than dynamically registered.
var codeTable = map[Code]codeInfo{
	InvalidErrorCode:         {"invalid_error_code", http.StatusInternalServerError, conditionNone},
	AccountExists:            {"account_exists", http.StatusConflict, conditionExists},
	BadAddress:               {"bad_address", http.StatusBadRequest, conditionInvalidArgument},
	BadViewKey:               {"bad_view_key", http.StatusForbidden, conditionInvalidArgument},
	BadBlockchain:            {"bad_blockchain", http.StatusInternalServerError, conditionNone},
	BadClientTx:              {"bad_client_tx", http.StatusBadRequest, conditionInvalidArgument},
	BadDaemonResponse:        {"bad_daemon_response", http.StatusInternalServerError, conditionNone},
	BlockchainReorg:          {"blockchain_reorg", http.StatusInternalServerError, conditionNone},
	CreateQueueMax:           {"create_queue_max", http.StatusServiceUnavailable, conditionNone},
	DaemonTimeout:            {"daemon_timeout", http.StatusServiceUnavailable, conditionTimedOut},
	DuplicateRequest:         {"duplicate_request", http.StatusConflict, conditionExists},
	ExceededBlockchainBuffer: {"exceeded_blockchain_buffer", http.StatusInternalServerError, conditionNone},
	ExceededRestRequestLimit: {"exceeded_rest_request_limit", http.StatusBadRequest, conditionInvalidArgument},
	ExchangeRatesDisabled:    {"exchange_rates_disabled", http.StatusOK, conditionNone},
	ExchangeRatesFetch:       {"exchange_rates_fetch", http.StatusOK, conditionNone},
	ExchangeRatesOld:         {"exchange_rates_old", http.StatusOK, conditionNone},
	NoSuchAccount:            {"no_such_account", http.StatusForbidden, conditionNotFound},
	SignalAbortProcess:       {"signal_abort_process", http.StatusInternalServerError, conditionInterrupted},
	SignalAbortScan:          {"signal_abort_scan", http.StatusInternalServerError, conditionInterrupted},
	SignalUnknown:            {"signal_unknown", http.StatusInternalServerError, conditionInterrupted},
	SystemClockInvalidRange:  {"system_clock_invalid_range", http.StatusInternalServerError, conditionNone},
	TxRelayFailed:            {"tx_relay_failed", http.StatusInternalServerError, conditionNone},
	CryptoFailure:            {"crypto_failure", http.StatusInternalServerError, conditionNone},
}

// Error is the concrete error type returned for every Code. It is
// comparable by Code via errors.Is (see Is below), and carries an optional
// wrapped cause for %w chains, mirroring the teacher's
// fmt.Errorf("pkg: op: %w", err) convention.
type Error struct {
	Code  Code
	cause error
}

// New constructs an *Error for code, with no wrapped cause.
func New(code Code) *Error {
	if _, ok := codeTable[code]; !ok {
		code = InvalidErrorCode
	}
	return &Error{Code: code}
}

// Wrap constructs an *Error for code that wraps cause, preserving it for
// %w-style unwrapping and logging.
func Wrap(code Code, cause error) *Error {
	e := New(code)
	e.cause = cause
	return e
}

func (e *Error) Error() string {
	info := codeTable[e.Code]
	if e.cause != nil {
		return fmt.Sprintf("lws: %s: %v", info.name, e.cause)
	}
	return fmt.Sprintf("lws: %s", info.name)
}

func (e *Error) Unwrap() error { return e.cause }

// Is implements errors.Is comparison: two *Error values are equal iff
// their Codes match, regardless of wrapped cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// HTTPStatus returns the status code §6/§7 assign to this error.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusOK
	}
	return codeTable[e.Code].httpStatus
}

// Name returns the stable lower_snake_case identifier for the code, used
// as the wire-level error string in JSON responses.
func (e *Error) Name() string {
	if e == nil {
		return ""
	}
	return codeTable[e.Code].name
}

// Matches reports whether err (any error, not necessarily *Error) is
// semantically equivalent to the generic POSIX-like condition code names,
// mirroring expect<T>'s std::error_condition comparisons. A DaemonTimeout
// matches a plain context.DeadlineExceeded, for instance, so callers that
// receive a raw stdlib error from a lower layer can still classify it.
func Matches(err error, code Code) bool {
	if err == nil {
		return false
	}

	var lwsErr *Error
	if errors.As(err, &lwsErr) {
		return lwsErr.Code == code || codeTable[lwsErr.Code].generic == codeTable[code].generic && codeTable[code].generic != conditionNone
	}

	switch codeTable[code].generic {
	case conditionTimedOut:
		return errors.Is(err, context.DeadlineExceeded)
	case conditionInterrupted:
		return errors.Is(err, context.Canceled)
	default:
		return false
	}
}

// CodeOf extracts the Code from err, or InvalidErrorCode if err is nil or
// not an *Error.
func CodeOf(err error) Code {
	var lwsErr *Error
	if errors.As(err, &lwsErr) {
		return lwsErr.Code
	}
	return InvalidErrorCode
}

// HTTPStatusOf maps any error (an *Error or not) to the status code the
// handler dispatcher should return, per spec.md §6/§7: NoSuchAccount (and
// its BadViewKey twin, deliberately indistinguishable) -> 403, timeouts ->
// 503, everything else -> 500.
func HTTPStatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var lwsErr *Error
	if errors.As(err, &lwsErr) {
		return lwsErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

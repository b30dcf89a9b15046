package lwserr

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestErrorIsByCode(t *testing.T) {
	a := New(NoSuchAccount)
	b := New(NoSuchAccount)
	c := New(BadViewKey)

	if !errors.Is(a, b) {
		t.Fatalf("expected same-code errors to be errors.Is equal")
	}
	if errors.Is(a, c) {
		t.Fatalf("expected different-code errors not to be errors.Is equal")
	}
}

func TestHTTPStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{New(NoSuchAccount), http.StatusForbidden},
		{New(BadViewKey), http.StatusForbidden},
		{New(DaemonTimeout), http.StatusServiceUnavailable},
		{New(BadDaemonResponse), http.StatusInternalServerError},
		{nil, http.StatusOK},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := HTTPStatusOf(tc.err); got != tc.want {
			t.Errorf("HTTPStatusOf(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAuthFailureIndistinguishableFromNoSuchAccount(t *testing.T) {
	// spec.md §7: failed authentication must be deliberately
	// indistinguishable from "no such account" at the HTTP layer.
	badKey := New(BadViewKey)
	noAccount := New(NoSuchAccount)
	if badKey.HTTPStatus() != noAccount.HTTPStatus() {
		t.Fatalf("BadViewKey and NoSuchAccount must map to the same HTTP status")
	}
}

func TestMatchesGenericTimeout(t *testing.T) {
	if !Matches(context.DeadlineExceeded, DaemonTimeout) {
		t.Fatalf("expected context.DeadlineExceeded to match DaemonTimeout")
	}
	if Matches(context.DeadlineExceeded, NoSuchAccount) {
		t.Fatalf("did not expect context.DeadlineExceeded to match NoSuchAccount")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	wrapped := Wrap(DaemonTimeout, cause)
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected Unwrap chain to reach cause")
	}
	if CodeOf(wrapped) != DaemonTimeout {
		t.Fatalf("expected CodeOf to recover DaemonTimeout")
	}
}

func TestInvalidCodeCoercion(t *testing.T) {
	e := New(Code(9999))
	if e.Code != InvalidErrorCode {
		t.Fatalf("expected unknown code to coerce to InvalidErrorCode")
	}
}

package auth

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/cryptonote-tools/lws-go/internal/cryptoutil"
	"github.com/cryptonote-tools/lws-go/internal/lwserr"
	"github.com/cryptonote-tools/lws-go/internal/store"
)

func scalarBytes(b byte) [32]byte {
	var raw [32]byte
	raw[0] = b
	return raw
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedAccount(t *testing.T, st *store.Store, viewSecret [32]byte, status store.AccountStatus) store.Address {
	t.Helper()
	viewPublic, err := cryptoutil.DerivePublic(viewSecret)
	if err != nil {
		t.Fatalf("DerivePublic: %v", err)
	}
	addr := store.Address{ViewPublic: viewPublic}
	addr.SpendPublic[0] = 0xAA

	if err := st.WithWrite(func(w *store.Writer) error {
		return w.CreationRequest(addr, viewSecret)
	}); err != nil {
		t.Fatalf("CreationRequest: %v", err)
	}
	var acct store.Account
	if err := st.WithWrite(func(w *store.Writer) error {
		var err error
		acct, err = w.ApproveCreateAccount(addr, viewSecret, 1, true)
		return err
	}); err != nil {
		t.Fatalf("ApproveCreateAccount: %v", err)
	}
	if status != store.StatusActive {
		acct.Status = status
		if err := st.WithWrite(func(w *store.Writer) error {
			return w.SetScanHeight(acct, acct.ScanHeight)
		}); err != nil {
			t.Fatalf("updating status: %v", err)
		}
	}
	return addr
}

func TestAuthenticateSuccess(t *testing.T) {
	st := openTestStore(t)
	viewSecret := scalarBytes(7)
	addr := seedAccount(t, st, viewSecret, store.StatusActive)

	r := st.StartRead()
	defer r.Finish()

	acct, err := Authenticate(r, addr, viewSecret)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if acct.Status != store.StatusActive {
		t.Fatalf("unexpected status: %v", acct.Status)
	}
}

func TestAuthenticateBadViewKeyAndMissingAccountAreIndistinguishable(t *testing.T) {
	st := openTestStore(t)
	viewSecret := scalarBytes(7)
	addr := seedAccount(t, st, viewSecret, store.StatusActive)

	r := st.StartRead()
	defer r.Finish()

	_, badErr := Authenticate(r, addr, scalarBytes(9))
	if !errors.Is(badErr, lwserr.New(lwserr.BadViewKey)) {
		t.Fatalf("expected BadViewKey, got %v", badErr)
	}

	unknownAddr := addr
	unknownAddr.SpendPublic[1] = 0xFF
	viewSecretForUnknown := scalarBytes(42)
	unknownAddr.ViewPublic, _ = cryptoutil.DerivePublic(viewSecretForUnknown)
	_, missingErr := Authenticate(r, unknownAddr, viewSecretForUnknown)
	if !errors.Is(missingErr, lwserr.New(lwserr.NoSuchAccount)) {
		t.Fatalf("expected NoSuchAccount, got %v", missingErr)
	}

	if lwserr.HTTPStatusOf(badErr) != lwserr.HTTPStatusOf(missingErr) {
		t.Fatalf("BadViewKey and NoSuchAccount must map to the same HTTP status")
	}
}

func TestAuthenticateHiddenAccountLooksMissing(t *testing.T) {
	st := openTestStore(t)
	viewSecret := scalarBytes(3)
	addr := seedAccount(t, st, viewSecret, store.StatusHidden)

	r := st.StartRead()
	defer r.Finish()

	_, err := Authenticate(r, addr, viewSecret)
	if !errors.Is(err, lwserr.New(lwserr.NoSuchAccount)) {
		t.Fatalf("expected hidden account to report NoSuchAccount, got %v", err)
	}
}

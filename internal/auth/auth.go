// Package auth implements the authentication predicate (spec.md §4.C6):
// derive_public(secret) == stored_view_public gates every address-bearing
// request, and Hidden accounts are treated as nonexistent.
package auth

import (
	"github.com/cryptonote-tools/lws-go/internal/cryptoutil"
	"github.com/cryptonote-tools/lws-go/internal/lwserr"
	"github.com/cryptonote-tools/lws-go/internal/store"
)

// Authenticate verifies that viewSecret derives addr's public view key,
// then resolves addr to its Account via r. BadViewKey and NoSuchAccount
// (including the Hidden-account case) both map to HTTP 403 (spec.md §7);
// the two remain distinct lwserr codes with distinct names.
func Authenticate(r *store.Reader, addr store.Address, viewSecret [32]byte) (store.Account, error) {
	derived, err := cryptoutil.DerivePublic(viewSecret)
	if err != nil {
		return store.Account{}, err
	}
	if !cryptoutil.ConstantTimeEqual(derived, addr.ViewPublic) {
		return store.Account{}, lwserr.New(lwserr.BadViewKey)
	}

	acct, ok, err := r.AccountByAddress(addr)
	if err != nil {
		return store.Account{}, err
	}
	if !ok {
		return store.Account{}, lwserr.New(lwserr.NoSuchAccount)
	}
	if acct.Status == store.StatusHidden {
		return store.Account{}, lwserr.New(lwserr.NoSuchAccount)
	}
	return acct, nil
}

// Package project implements the output projector (spec.md §4.C8): thin
// orchestration over internal/cryptoutil that turns a stored Output plus
// an authenticated account's keys into the wire-ready projection the
// get_unspent_outs handler emits.
package project

import (
	"github.com/cryptonote-tools/lws-go/internal/cryptoutil"
	"github.com/cryptonote-tools/lws-go/internal/store"
)

// Projected is one fully-derived output, ready for JSON encoding.
type Projected struct {
	Output     store.Output
	PublicKey  [32]byte
	Commitment [32]byte
	MaskEnc    [32]byte
	AmountEnc  uint64
	KeyImages  [][32]byte
}

// Output runs the four steps of spec.md §4.C8 against o, using the
// account's view secret and spend public key, and attaching the output's
// already-recorded key-image set.
func Output(o store.Output, viewKey [32]byte, spendPublic [32]byte, keyImages [][32]byte) (Projected, error) {
	derivation, err := cryptoutil.KeyDerivation(o.TxPublic, viewKey)
	if err != nil {
		return Projected{}, err
	}

	publicKey, err := cryptoutil.DerivePublicKey(derivation, o.Index, spendPublic)
	if err != nil {
		return Projected{}, err
	}

	p := Projected{Output: o, PublicKey: publicKey, KeyImages: keyImages}

	if !o.Extra.Ringct {
		return p, nil
	}

	s, err := cryptoutil.DerivationToScalar(derivation, o.Index)
	if err != nil {
		return Projected{}, err
	}
	maskEnc, amountEnc := cryptoutil.ECDHEncode(s, cryptoutil.ECDHTuple{Mask: o.RingCTMask, Amount: o.Amount})
	p.MaskEnc = maskEnc
	p.AmountEnc = amountEnc

	commitment, err := cryptoutil.PedersenCommit(o.Amount, o.RingCTMask)
	if err != nil {
		return Projected{}, err
	}
	p.Commitment = commitment

	return p, nil
}

package cryptoutil

import (
	"testing"

	"filippo.io/edwards25519"
)

func scalarFromByte(b byte) (*edwards25519.Scalar, [32]byte) {
	var raw [32]byte
	raw[0] = b
	s, err := edwards25519.NewScalar().SetCanonicalBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return s, raw
}

func publicOf(s *edwards25519.Scalar) [32]byte {
	var out [32]byte
	copy(out[:], edwards25519.NewIdentityPoint().ScalarBaseMult(s).Bytes())
	return out
}

func TestKeyDerivationIsDiffieHellmanSymmetric(t *testing.T) {
	r, _ := scalarFromByte(7)
	a, aRaw := scalarFromByte(11)

	R := publicOf(r)
	A := publicOf(a)

	d1, err := KeyDerivation(R, aRaw)
	if err != nil {
		t.Fatalf("KeyDerivation(R, a): %v", err)
	}
	var rRaw [32]byte
	copy(rRaw[:], r.Bytes())
	d2, err := KeyDerivation(A, rRaw)
	if err != nil {
		t.Fatalf("KeyDerivation(A, r): %v", err)
	}
	if d1 != d2 {
		t.Fatalf("expected symmetric derivation, got %x vs %x", d1, d2)
	}
}

func TestDerivePublicKeyMatchesSpendPlusScalarTimesG(t *testing.T) {
	r, _ := scalarFromByte(3)
	_, aRaw := scalarFromByte(5)
	b, _ := scalarFromByte(13)

	R := publicOf(r)
	B := publicOf(b)

	D, err := KeyDerivation(R, aRaw)
	if err != nil {
		t.Fatalf("KeyDerivation: %v", err)
	}

	stealth, err := DerivePublicKey(D, 0, B)
	if err != nil {
		t.Fatalf("DerivePublicKey: %v", err)
	}

	s, err := DerivationToScalar(D, 0)
	if err != nil {
		t.Fatalf("DerivationToScalar: %v", err)
	}
	want := edwards25519.NewIdentityPoint().Add(
		edwards25519.NewIdentityPoint().ScalarBaseMult(b),
		edwards25519.NewIdentityPoint().ScalarBaseMult(s),
	)
	var wantBytes [32]byte
	copy(wantBytes[:], want.Bytes())

	if stealth != wantBytes {
		t.Fatalf("stealth address mismatch: got %x want %x", stealth, wantBytes)
	}
}

func TestECDHRoundTrip(t *testing.T) {
	s, err := HashToScalar([]byte("shared secret seed"))
	if err != nil {
		t.Fatalf("HashToScalar: %v", err)
	}

	tuple := ECDHTuple{Amount: 123456789}
	tuple.Mask[0] = 0xAB
	tuple.Mask[31] = 0xCD

	maskEnc, amountEnc := ECDHEncode(s, tuple)
	got := ECDHDecode(s, maskEnc, amountEnc)

	if got.Amount != tuple.Amount {
		t.Fatalf("amount mismatch: got %d want %d", got.Amount, tuple.Amount)
	}
	if got.Mask != tuple.Mask {
		t.Fatalf("mask mismatch: got %x want %x", got.Mask, tuple.Mask)
	}
}

func TestPedersenCommitDeterministic(t *testing.T) {
	var mask [32]byte
	mask[0] = 1
	c1, err := PedersenCommit(1000, mask)
	if err != nil {
		t.Fatalf("PedersenCommit: %v", err)
	}
	c2, err := PedersenCommit(1000, mask)
	if err != nil {
		t.Fatalf("PedersenCommit: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("expected deterministic commitment")
	}

	c3, err := PedersenCommit(1001, mask)
	if err != nil {
		t.Fatalf("PedersenCommit: %v", err)
	}
	if c1 == c3 {
		t.Fatalf("expected different amounts to yield different commitments")
	}
}

func TestDerivePublicRejectsNonCanonicalScalar(t *testing.T) {
	var bad [32]byte
	for i := range bad {
		bad[i] = 0xFF
	}
	if _, err := DerivePublic(bad); err == nil {
		t.Fatalf("expected CryptoFailure for non-canonical scalar")
	}
}

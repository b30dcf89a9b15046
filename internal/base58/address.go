package base58

import (
	"fmt"

	"github.com/cryptonote-tools/lws-go/internal/cryptoutil"
	"github.com/cryptonote-tools/lws-go/internal/store"
)

// DefaultTag is the network byte prepended to every encoded address, one
// of CryptoNote's arbitrary-but-fixed per-network address prefixes.
const DefaultTag = 0x12

const checksumLen = 4

// EncodeAddress encodes addr under tag as
// base58(tag || spend_public || view_public || checksum[:4]), the
// standard CryptoNote public-address wire format, where checksum is
// Keccak256 of everything preceding it.
func EncodeAddress(tag byte, addr store.Address) string {
	payload := make([]byte, 0, 1+32+32)
	payload = append(payload, tag)
	payload = append(payload, addr.SpendPublic[:]...)
	payload = append(payload, addr.ViewPublic[:]...)

	sum := cryptoutil.Keccak256(payload)
	payload = append(payload, sum[:checksumLen]...)
	return Encode(payload)
}

// DecodeAddress reverses EncodeAddress, verifying the embedded checksum
// and the network tag.
func DecodeAddress(s string, wantTag byte) (store.Address, error) {
	raw, err := Decode(s)
	if err != nil {
		return store.Address{}, fmt.Errorf("base58: decode address: %w", err)
	}
	if len(raw) != 1+32+32+checksumLen {
		return store.Address{}, fmt.Errorf("base58: address has unexpected length %d", len(raw))
	}
	if raw[0] != wantTag {
		return store.Address{}, fmt.Errorf("base58: address tag %#x, want %#x", raw[0], wantTag)
	}

	payload := raw[:len(raw)-checksumLen]
	wantSum := raw[len(raw)-checksumLen:]
	sum := cryptoutil.Keccak256(payload)
	for i := 0; i < checksumLen; i++ {
		if sum[i] != wantSum[i] {
			return store.Address{}, fmt.Errorf("base58: address checksum mismatch")
		}
	}

	var addr store.Address
	copy(addr.SpendPublic[:], raw[1:33])
	copy(addr.ViewPublic[:], raw[33:65])
	return addr, nil
}

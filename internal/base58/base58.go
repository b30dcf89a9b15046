// Package base58 implements CryptoNote's block-based base58 encoding
// (spec.md §1, "address base58 codec"): the declared external collaborator
// the core delegates address parsing to.
//
// No retrieved example implements this exact variant — Bitcoin-style
// base58 encodes its whole byte string as one big integer, but CryptoNote
// encodes fixed 8-byte blocks independently (with a final short block),
// which changes both the padding rule and the alphabet-table sizing per
// block. This is built from the well-known CryptoNote block-size table
// rather than any pack file.
package base58

import (
	"fmt"
	"math/big"
)

const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

const fullBlockSize = 8

// encodedBlockSizes[n] is the encoded character count for an n-byte
// input block, n in [0,8]. CryptoNote's base58 pads each encoded block
// to this width rather than trimming leading-zero characters the way
// whole-buffer base58 does.
var encodedBlockSizes = [fullBlockSize + 1]int{0, 2, 3, 5, 6, 7, 9, 10, 11}

var (
	alphabetIndex [256]int
	radix         = big.NewInt(int64(len(alphabet)))
)

func init() {
	for i := range alphabetIndex {
		alphabetIndex[i] = -1
	}
	for i, c := range alphabet {
		alphabetIndex[byte(c)] = i
	}
}

// Encode converts data to CryptoNote block-base58 text.
func Encode(data []byte) string {
	var out []byte
	full := len(data) / fullBlockSize
	for i := 0; i < full; i++ {
		out = append(out, encodeBlock(data[i*fullBlockSize:(i+1)*fullBlockSize])...)
	}
	if rem := len(data) % fullBlockSize; rem > 0 {
		out = append(out, encodeBlock(data[full*fullBlockSize:])...)
	}
	return string(out)
}

func encodeBlock(block []byte) []byte {
	size := encodedBlockSizes[len(block)]
	n := new(big.Int).SetBytes(block)
	enc := make([]byte, size)
	mod := new(big.Int)
	for i := size - 1; i >= 0; i-- {
		n.DivMod(n, radix, mod)
		enc[i] = alphabet[mod.Int64()]
	}
	return enc
}

// Decode reverses Encode. It returns an error if s contains a character
// outside the alphabet or a block whose encoded length isn't one of
// CryptoNote's valid block sizes.
func Decode(s string) ([]byte, error) {
	fullChars := encodedBlockSizes[fullBlockSize]
	full := len(s) / fullChars
	rem := len(s) % fullChars

	remBytes, ok := blockSizeForChars(rem)
	if rem != 0 && !ok {
		return nil, fmt.Errorf("base58: invalid encoded length %d", len(s))
	}

	out := make([]byte, 0, full*fullBlockSize+remBytes)
	for i := 0; i < full; i++ {
		block, err := decodeBlock(s[i*fullChars:(i+1)*fullChars], fullBlockSize)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	if rem > 0 {
		block, err := decodeBlock(s[full*fullChars:], remBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, block...)
	}
	return out, nil
}

func blockSizeForChars(chars int) (int, bool) {
	for n, c := range encodedBlockSizes {
		if c == chars {
			return n, true
		}
	}
	return 0, false
}

func decodeBlock(s string, byteLen int) ([]byte, error) {
	n := new(big.Int)
	for i := 0; i < len(s); i++ {
		idx := alphabetIndex[s[i]]
		if idx < 0 {
			return nil, fmt.Errorf("base58: invalid character %q", s[i])
		}
		n.Mul(n, radix)
		n.Add(n, big.NewInt(int64(idx)))
	}
	raw := n.Bytes()
	if len(raw) > byteLen {
		return nil, fmt.Errorf("base58: block overflows %d bytes", byteLen)
	}
	out := make([]byte, byteLen)
	copy(out[byteLen-len(raw):], raw)
	return out, nil
}

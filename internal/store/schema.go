package store

import "github.com/cryptonote-tools/lws-go/internal/kv"

// schema groups the seven named tables from spec.md §4.C3 plus a small
// meta table of store-wide counters. One schema is
// constructed per Store and shared by every Reader/Writer it hands out.
type schema struct {
	accountsByAddress *kv.Table[Address, addressRecord]
	accountsByID      *kv.Table[accountIDKey, Account]
	outputs           *kv.DupTable[uint32, Output]
	spends            *kv.DupTable[uint32, Spend]
	images            *kv.DupTable[OutputID, keyImage]
	requests          *kv.Table[requestKeyBytes, PendingRequest]
	blocks            *kv.Table[uint64, [32]byte]
	meta              *kv.Table[uint8, uint32]
}

func newSchema() *schema {
	return &schema{
		accountsByAddress: kv.NewTable[Address, addressRecord](
			"accounts_by_address/", encodeAddress, decodeAddress, encodeAddressRecord, decodeAddressRecord),
		accountsByID: kv.NewTable[accountIDKey, Account](
			"accounts_by_id/", encodeAccountIDKey, decodeAccountIDKey, encodeAccount, decodeAccount),
		outputs: kv.NewDupTable[uint32, Output](
			"outputs/", encodeAccountID, outputSortSuffix, encodeOutput, decodeOutput),
		spends: kv.NewDupTable[uint32, Spend](
			"spends/", encodeAccountID, spendSortSuffix, encodeSpend, decodeSpend),
		images: kv.NewDupTable[OutputID, keyImage](
			"images/", encodeOutputIDKey, imageSortSuffix, encodeImage, decodeImage),
		requests: kv.NewTable[requestKeyBytes, PendingRequest](
			"requests/", encodeRequestKey, decodeRequestKey, encodeRequestValue, decodeRequestValue),
		blocks: kv.NewTable[uint64, [32]byte](
			"blocks/", encodeHeightKey, decodeHeightKey, encodeBlockHash, decodeBlockHash),
		meta: kv.NewTable[uint8, uint32](
			"meta/", encodeMetaKey, decodeMetaKey, le32, decodeMetaValue),
	}
}

// metaNextAccountID is the single key under the meta table holding the
// next account ID to assign.
const metaNextAccountID uint8 = 0

func encodeMetaKey(k uint8) []byte    { return []byte{k} }
func decodeMetaKey(b []byte) (uint8, error) {
	if len(b) < 1 {
		return 0, kv.ErrShortBuffer
	}
	return b[0], nil
}
func decodeMetaValue(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, kv.ErrShortBuffer
	}
	return getLE32(b), nil
}

package api

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// u64string is a uint64 that marshals/unmarshals as a decimal string, per
// spec.md §6's JSON conventions ("large integers ... serialised as decimal
// strings"), mirroring original_source's uint64_json_string_ formatter.
type u64string uint64

func (n u64string) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("%d", uint64(n)))
}

func (n *u64string) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	var v uint64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return err
	}
	*n = u64string(v)
	return nil
}

// hexBytes is a fixed or variable-length byte slice that marshals as
// lowercase unprefixed hex, per spec.md §6.
type hexBytes []byte

func (b hexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

func (b *hexBytes) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// formatTimestamp renders unix seconds as "YYYY-MM-DDTHH:MM:SS.0-00:00" in
// UTC, matching original_source's timestamp_json_ formatter exactly
// (including its literal ".0-00:00" suffix rather than a numeric offset).
func formatTimestamp(unixSeconds uint64) string {
	t := time.Unix(int64(unixSeconds), 0).UTC()
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d.0-00:00",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("api: expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

func hexString(b [32]byte) string { return hex.EncodeToString(b[:]) }

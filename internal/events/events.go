// Package events defines the wire payloads published for pending account
// requests (spec.md §4.C5's creation_request/import_request outbox),
// replacing the teacher's Zcash deposit/spend/outgoing-output event
// catalogue with this server's two request kinds.
package events

const (
	KindCreateAccountRequested = "create_account_requested"
	KindImportScanRequested    = "import_scan_requested"
)

// CreateAccountRequestPayload is published once per queued creation_request
// (spec.md §4.C5), for whatever external admin tooling approves or
// rejects the account.
type CreateAccountRequestPayload struct {
	Address     string `json:"address"`
	ViewKey     string `json:"view_key"`
	RequestedAt uint32 `json:"requested_at,omitempty"`
}

// ImportScanRequestPayload is published once per queued import_request.
type ImportScanRequestPayload struct {
	Address     string `json:"address"`
	ViewKey     string `json:"view_key"`
	StartHeight uint64 `json:"start_height"`
	RequestedAt uint32 `json:"requested_at,omitempty"`
}

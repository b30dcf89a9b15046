package broker

import "encoding/json"

// Envelope is the wire shape published for one pending account request
// (spec.md §4.C5's creation_request/import_request outbox), consumed by
// whatever external admin-approval tooling decides Approve/Reject.
type Envelope struct {
	Version     string          `json:"version"`
	Kind        string          `json:"kind"`
	Address     string          `json:"address"`
	StartHeight uint64          `json:"start_height,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

// Package requestbus polls the account store's pending-request outbox
// (spec.md §4.C5: queued creation_request/import_request entries) and
// publishes each one through internal/broker for external admin-approval
// tooling to consume, replacing the teacher's per-wallet deposit-event
// outbox poller (internal/publisher/publisher.go) with the same
// poll-and-publish shape.
package requestbus

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cryptonote-tools/lws-go/internal/base58"
	"github.com/cryptonote-tools/lws-go/internal/broker"
	"github.com/cryptonote-tools/lws-go/internal/events"
	"github.com/cryptonote-tools/lws-go/internal/store"
)

// Config configures the polling cadence and batch size, mirroring the
// teacher's Publisher.Config.
type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// RequestBus polls the pending-request table and republishes each entry
// that hasn't been seen before.
//
// Unlike the teacher's SQL outbox (a monotonically-increasing event log
// with a per-wallet publish cursor persisted in the store), the KV
// schema's requests table has no append-only log: a request exists only
// while pending and disappears the moment it's approved or rejected
// (internal/store/writer.go). There is nothing to persist a byte-offset
// cursor against, so RequestBus instead tracks which (kind, address)
// pairs it has already published in memory; once a request is resolved
// it vanishes from the table and its entry here is naturally pruned on
// the next poll. A process restart may re-publish in-flight requests,
// which is safe because admin approval is idempotent per spec.md
// invariant 5 (duplicate creation_request is rejected, not double
// applied).
type RequestBus struct {
	st *store.Store
	br broker.Broker

	pollInterval time.Duration
	batchSize    int

	published map[publishedKey]struct{}
}

type publishedKey struct {
	kind store.RequestKind
	addr store.Address
}

func New(st *store.Store, br broker.Broker, cfg Config) (*RequestBus, error) {
	if st == nil {
		return nil, errors.New("requestbus: store is nil")
	}
	if br == nil {
		return nil, errors.New("requestbus: broker is nil")
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > 5000 {
		batchSize = 1000
	}

	return &RequestBus{
		st:           st,
		br:           br,
		pollInterval: poll,
		batchSize:    batchSize,
		published:    make(map[publishedKey]struct{}),
	}, nil
}

// Run polls until ctx is cancelled.
func (b *RequestBus) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		if err := b.publishOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *RequestBus) publishOnce(ctx context.Context) error {
	r := b.st.StartRead()
	requests, err := r.ListPendingRequests()
	finishErr := r.Finish()
	if err != nil {
		return fmt.Errorf("requestbus: list pending requests: %w", err)
	}
	if finishErr != nil {
		return fmt.Errorf("requestbus: finish reader: %w", finishErr)
	}

	seen := make(map[publishedKey]struct{}, len(requests))
	count := 0
	for _, req := range requests {
		key := publishedKey{kind: req.Kind, addr: req.Address}
		seen[key] = struct{}{}
		if _, ok := b.published[key]; ok {
			continue
		}
		if count >= b.batchSize {
			break
		}

		env, err := envelopeFor(req)
		if err != nil {
			return fmt.Errorf("requestbus: build envelope: %w", err)
		}
		value, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("requestbus: marshal envelope: %w", err)
		}
		if err := b.br.Publish(ctx, env.Address, value); err != nil {
			return fmt.Errorf("requestbus: publish: %w", err)
		}
		b.published[key] = struct{}{}
		count++
	}

	// Prune resolved requests from the in-memory publish set so a later
	// re-queue of the same address is published again.
	for key := range b.published {
		if _, ok := seen[key]; !ok {
			delete(b.published, key)
		}
	}

	return nil
}

func envelopeFor(req store.PendingRequest) (broker.Envelope, error) {
	addr := base58.EncodeAddress(base58.DefaultTag, req.Address)
	viewKey := hex.EncodeToString(req.ViewKey[:])

	switch req.Kind {
	case store.RequestCreateAccount:
		payload, err := json.Marshal(events.CreateAccountRequestPayload{Address: addr, ViewKey: viewKey})
		if err != nil {
			return broker.Envelope{}, err
		}
		return broker.Envelope{Version: "v1", Kind: events.KindCreateAccountRequested, Address: addr, Payload: payload}, nil
	case store.RequestImportScan:
		payload, err := json.Marshal(events.ImportScanRequestPayload{Address: addr, ViewKey: viewKey, StartHeight: req.StartHeight})
		if err != nil {
			return broker.Envelope{}, err
		}
		return broker.Envelope{Version: "v1", Kind: events.KindImportScanRequested, Address: addr, StartHeight: req.StartHeight, Payload: payload}, nil
	default:
		return broker.Envelope{}, fmt.Errorf("requestbus: unknown request kind %d", req.Kind)
	}
}

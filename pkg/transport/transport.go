// Package transport defines how the verifier talks to an untrusted node.
// Nothing received through a Transport is trusted until it has been verified
// against a committee.
package transport

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// ErrSubscriptionClosed is reported by helpers that read from a subscription
// which ended without an error.
var ErrSubscriptionClosed = errors.New("subscription closed")

// LogFilter selects logs by emitting contract and topics. Topics are matched
// positionally; an empty position matches any topic.
type LogFilter struct {
	Addresses []common.Address
	Topics    [][]common.Hash
	FromTime  *types.Timestamp
	ToTime    *types.Timestamp
}

// DefaultPageLimit is the page size nodes use when a request sets none.
const DefaultPageLimit = 100

// PageRequest selects one page of a cursor-paginated query. An empty Cursor
// asks for the first page. NewestFirst only applies to the first page; later
// pages follow the direction encoded in the cursor.
type PageRequest struct {
	Cursor      string
	Limit       int
	NewestFirst bool
}

// Page is one page of results. A nil Cursor means there are no more pages.
type Page[T any] struct {
	Items  []T     `json:"items"`
	Cursor *string `json:"cursor"`
}

// HasMore reports whether another page can be requested.
func (p *Page[T]) HasMore() bool {
	return p.Cursor != nil && *p.Cursor != ""
}

// Next returns the request for the page after p.
func (p *Page[T]) Next(limit int) PageRequest {
	req := PageRequest{Limit: limit}
	if p.Cursor != nil {
		req.Cursor = *p.Cursor
	}
	return req
}

// Subscription is a live feed of items. Items are delivered in order. When
// the feed ends, Items is closed; a value on Err explains why, and a closed
// Err with no value means a clean end.
type Subscription[T any] interface {
	Items() <-chan T
	Err() <-chan error
	Unsubscribe()
}

// Transport is the narrow set of node operations the verifier depends on.
type Transport interface {
	GetCommittee(ctx context.Context) (*committee.Committee, error)
	GetVerifiableLogs(ctx context.Context, filter LogFilter) ([]*ledger.VerifiableLog, error)
	SubscribeVerifiableLogs(ctx context.Context, filter LogFilter) (Subscription[*ledger.VerifiableLog], error)
	// GetReceipts lists receipts of transactions involving address, or all
	// receipts when address is nil, confirmed since the given time.
	GetReceipts(ctx context.Context, address *common.Address, since types.Timestamp, page PageRequest) (*Page[*ledger.ReceiptResponse], error)
	SubscribeReceipts(ctx context.Context, address *common.Address, since types.Timestamp) (Subscription[*ledger.ReceiptResponse], error)
	SubscribePastPerfectTime(ctx context.Context, ts types.Timestamp) (Subscription[types.Timestamp], error)
	SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error)
	Close()
}

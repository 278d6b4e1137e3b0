// Package rpc implements transport.Transport over a node's JSON-RPC endpoint
// using the go-ethereum RPC client. Subscriptions need a websocket or IPC
// endpoint; plain HTTP supports queries only.
package rpc

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/transport"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

const (
	methodGetCommittee       = "pod_getCommittee"
	methodGetLogs            = "eth_getLogs"
	methodListReceipts       = "pod_listReceipts"
	methodSendRawTransaction = "eth_sendRawTransaction"

	subscriptionLogs            = "logs"
	subscriptionReceipts        = "pod_receipts"
	subscriptionPastPerfectTime = "pod_pastPerfectTime"

	subscriptionBuffer = 16
)

// RetryConfig configures retry behavior for queries
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  100 * time.Millisecond,
	MaxBackoff:      5 * time.Second,
	BackoffMultiple: 2.0,
}

// AdapterConfig configures an Adapter
type AdapterConfig struct {
	Retry RetryConfig

	// RequestsPerSecond limits query throughput. Zero disables limiting.
	RequestsPerSecond float64
	Burst             int
}

// DefaultAdapterConfig returns the default adapter settings
func DefaultAdapterConfig() *AdapterConfig {
	return &AdapterConfig{
		Retry:             DefaultRetryConfig,
		RequestsPerSecond: 20,
		Burst:             5,
	}
}

// Adapter is a transport.Transport backed by a JSON-RPC connection
type Adapter struct {
	client  *gethrpc.Client
	config  *AdapterConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ transport.Transport = (*Adapter)(nil)

// Dial connects to a node. The URL scheme selects HTTP, websocket or IPC.
func Dial(ctx context.Context, url string, cfg *AdapterConfig, logger *zap.Logger) (*Adapter, error) {
	client, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial node at %s", url)
	}
	return NewAdapter(client, cfg, logger), nil
}

// NewAdapter wraps an existing RPC client
func NewAdapter(client *gethrpc.Client, cfg *AdapterConfig, logger *zap.Logger) *Adapter {
	if cfg == nil {
		cfg = DefaultAdapterConfig()
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}

	return &Adapter{
		client:  client,
		config:  cfg,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// call performs a query with rate limiting and exponential backoff.
func (a *Adapter) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	retry := a.config.Retry
	backoff := retry.InitialBackoff

	var lastErr error
	for attempt := 0; attempt < retry.MaxAttempts; attempt++ {
		if err := a.limiter.Wait(ctx); err != nil {
			return errors.Wrapf(err, "rate limiter wait for %s", method)
		}

		lastErr = a.client.CallContext(ctx, result, method, args...)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return errors.Wrapf(lastErr, "%s failed", method)
		}

		a.logger.Sugar().Debugw("RPC call failed, retrying",
			"method", method,
			"attempt", attempt+1,
			"error", lastErr,
		)

		if attempt < retry.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = time.Duration(float64(backoff) * retry.BackoffMultiple)
			if backoff > retry.MaxBackoff {
				backoff = retry.MaxBackoff
			}
		}
	}

	return errors.Wrapf(lastErr, "%s failed after %d attempts", method, retry.MaxAttempts)
}

// isRetryable reports whether err is a connection problem rather than an
// answer from the node.
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rpcErr gethrpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}
	var httpErr gethrpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}
	var jsonErr *json.UnmarshalTypeError
	return !errors.As(err, &jsonErr)
}

// GetCommittee fetches the current committee
func (a *Adapter) GetCommittee(ctx context.Context) (*committee.Committee, error) {
	var c committee.Committee
	if err := a.call(ctx, &c, methodGetCommittee); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetVerifiableLogs fetches historical logs with their certifying receipts
func (a *Adapter) GetVerifiableLogs(ctx context.Context, filter transport.LogFilter) ([]*ledger.VerifiableLog, error) {
	var logs []*ledger.VerifiableLog
	if err := a.call(ctx, &logs, methodGetLogs, toFilterArg(filter)); err != nil {
		return nil, err
	}
	return logs, nil
}

// GetReceipts fetches one page of receipt history. A nil address matches
// every account.
func (a *Adapter) GetReceipts(ctx context.Context, address *common.Address, since types.Timestamp, page transport.PageRequest) (*transport.Page[*ledger.ReceiptResponse], error) {
	var result transport.Page[*ledger.ReceiptResponse]
	if err := a.call(ctx, &result, methodListReceipts, address, since.Micros(), toPageArg(page)); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendRawTransaction submits a signed transaction
func (a *Adapter) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	var hash common.Hash
	if err := a.call(ctx, &hash, methodSendRawTransaction, hexutil.Bytes(rawTx)); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// SubscribeVerifiableLogs opens a live log feed
func (a *Adapter) SubscribeVerifiableLogs(ctx context.Context, filter transport.LogFilter) (transport.Subscription[*ledger.VerifiableLog], error) {
	ch := make(chan *ledger.VerifiableLog, subscriptionBuffer)
	sub, err := a.client.EthSubscribe(ctx, ch, subscriptionLogs, toFilterArg(filter))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to %s", subscriptionLogs)
	}
	return pump[*ledger.VerifiableLog, *ledger.VerifiableLog](sub, ch, identity[*ledger.VerifiableLog]), nil
}

// SubscribeReceipts opens a live receipt feed. A nil address matches every
// account.
func (a *Adapter) SubscribeReceipts(ctx context.Context, address *common.Address, since types.Timestamp) (transport.Subscription[*ledger.ReceiptResponse], error) {
	ch := make(chan *ledger.ReceiptResponse, subscriptionBuffer)
	sub, err := a.client.EthSubscribe(ctx, ch, subscriptionReceipts, address, since.Micros())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to %s", subscriptionReceipts)
	}
	return pump[*ledger.ReceiptResponse, *ledger.ReceiptResponse](sub, ch, identity[*ledger.ReceiptResponse]), nil
}

// SubscribePastPerfectTime opens a feed that notifies once ts is past
// perfect.
func (a *Adapter) SubscribePastPerfectTime(ctx context.Context, ts types.Timestamp) (transport.Subscription[types.Timestamp], error) {
	ch := make(chan json.RawMessage, 1)
	sub, err := a.client.EthSubscribe(ctx, ch, subscriptionPastPerfectTime, ts.Micros())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to %s", subscriptionPastPerfectTime)
	}
	return pump[json.RawMessage, types.Timestamp](sub, ch, func(raw json.RawMessage) types.Timestamp {
		return parseNotificationTime(raw, ts)
	}), nil
}

// Close closes the underlying connection
func (a *Adapter) Close() {
	a.client.Close()
}

type clientSubscription interface {
	Err() <-chan error
	Unsubscribe()
}

func identity[T any](v T) T { return v }

// pump forwards items from a go-ethereum subscription channel to a stream
// until either side ends.
func pump[R any, T any](sub clientSubscription, ch <-chan R, convert func(R) T) *transport.Stream[T] {
	stream := transport.NewStream[T](subscriptionBuffer, nil)

	go func() {
		defer sub.Unsubscribe()
		for {
			select {
			case raw := <-ch:
				if !stream.Send(convert(raw)) {
					stream.Close(nil)
					return
				}
			case err := <-sub.Err():
				stream.Close(err)
				return
			case <-stream.Done():
				stream.Close(nil)
				return
			}
		}
	}()

	return stream
}

// parseNotificationTime reads the timestamp carried by a past-perfect
// notification. Nodes may send a number of micros, a hex string or an
// arbitrary marker; anything unrecognized counts as the requested time.
func parseNotificationTime(raw json.RawMessage, requested types.Timestamp) types.Timestamp {
	var micros uint64
	if err := json.Unmarshal(raw, &micros); err == nil {
		return types.FromMicros(micros)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseUint(s, 0, 64); err == nil {
			return types.FromMicros(v)
		}
	}
	return requested
}

type filterArg struct {
	Address   []common.Address `json:"address,omitempty"`
	Topics    [][]common.Hash  `json:"topics,omitempty"`
	FromBlock *hexutil.Uint64  `json:"fromBlock,omitempty"`
	ToBlock   *hexutil.Uint64  `json:"toBlock,omitempty"`
}

// toFilterArg encodes a filter. Block bounds are timestamps in seconds.
func toFilterArg(f transport.LogFilter) filterArg {
	arg := filterArg{Address: f.Addresses, Topics: f.Topics}
	if f.FromTime != nil {
		v := hexutil.Uint64(f.FromTime.Seconds())
		arg.FromBlock = &v
	}
	if f.ToTime != nil {
		v := hexutil.Uint64(f.ToTime.Seconds())
		arg.ToBlock = &v
	}
	return arg
}

type pageArg struct {
	Cursor      *string `json:"cursor"`
	Limit       int     `json:"limit"`
	NewestFirst *bool   `json:"newest_first,omitempty"`
}

// toPageArg encodes a page request. Nodes reject a direction together with a
// cursor, so NewestFirst is only sent for the first page.
func toPageArg(p transport.PageRequest) pageArg {
	arg := pageArg{Limit: p.Limit}
	if arg.Limit <= 0 {
		arg.Limit = transport.DefaultPageLimit
	}
	if p.Cursor != "" {
		cursor := p.Cursor
		arg.Cursor = &cursor
	} else if p.NewestFirst {
		newestFirst := true
		arg.NewestFirst = &newestFirst
	}
	return arg
}

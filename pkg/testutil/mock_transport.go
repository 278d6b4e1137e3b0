package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/transport"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

const mockStreamBuffer = 64

// MockTransport implements transport.Transport for testing.
// Subscriptions are fed manually through the Emit methods instead of a node.
type MockTransport struct {
	mu     sync.Mutex
	logger *zap.Logger

	committee    *committee.Committee
	committeeErr error
	logs         []*ledger.VerifiableLog
	receipts     []*ledger.ReceiptResponse
	sentTxs      [][]byte

	// SubscribeErr, when set, fails every subscribe call.
	subscribeErr error

	logSubs         []*transport.Stream[*ledger.VerifiableLog]
	receiptSubs     []*transport.Stream[*ledger.ReceiptResponse]
	pastPerfectSubs []*transport.Stream[types.Timestamp]

	committeeCalls    int
	pastPerfectOpened int
	closed            bool
}

var _ transport.Transport = (*MockTransport)(nil)

// NewMockTransport creates a mock transport serving c as the committee.
func NewMockTransport(c *committee.Committee, logger *zap.Logger) *MockTransport {
	return &MockTransport{
		committee: c,
		logger:    logger,
	}
}

func (m *MockTransport) SetCommittee(c *committee.Committee, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committee = c
	m.committeeErr = err
}

// SetLogs sets the logs returned by GetVerifiableLogs.
func (m *MockTransport) SetLogs(logs []*ledger.VerifiableLog) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = logs
}

// SetReceipts sets the receipt history served by GetReceipts.
func (m *MockTransport) SetReceipts(receipts []*ledger.ReceiptResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts = receipts
}

func (m *MockTransport) SetSubscribeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribeErr = err
}

func (m *MockTransport) GetCommittee(ctx context.Context) (*committee.Committee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committeeCalls++
	return m.committee, m.committeeErr
}

// GetVerifiableLogs returns the configured logs emitted by one of the filter
// addresses. Topic and time filters are not applied. Nil entries are passed
// through as a node answering with null would.
func (m *MockTransport) GetVerifiableLogs(ctx context.Context, filter transport.LogFilter) ([]*ledger.VerifiableLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*ledger.VerifiableLog, 0, len(m.logs))
	for _, vl := range m.logs {
		if vl == nil || matchesAddress(filter.Addresses, vl.Address) {
			out = append(out, vl)
		}
	}
	return out, nil
}

// GetReceipts pages through the configured receipts involving address. The
// cursor is the offset of the next item; since and NewestFirst are not
// applied. Nil entries are passed through.
func (m *MockTransport) GetReceipts(ctx context.Context, address *common.Address, since types.Timestamp, page transport.PageRequest) (*transport.Page[*ledger.ReceiptResponse], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	matching := make([]*ledger.ReceiptResponse, 0, len(m.receipts))
	for _, rr := range m.receipts {
		if rr == nil || address == nil || rr.From == *address || (rr.To != nil && *rr.To == *address) {
			matching = append(matching, rr)
		}
	}

	start := 0
	if page.Cursor != "" {
		offset, err := strconv.Atoi(page.Cursor)
		if err != nil || offset < 0 || offset > len(matching) {
			return nil, fmt.Errorf("invalid cursor %q", page.Cursor)
		}
		start = offset
	}
	limit := page.Limit
	if limit <= 0 {
		limit = transport.DefaultPageLimit
	}
	end := start + limit
	if end > len(matching) {
		end = len(matching)
	}

	result := &transport.Page[*ledger.ReceiptResponse]{Items: append([]*ledger.ReceiptResponse(nil), matching[start:end]...)}
	if end < len(matching) {
		next := strconv.Itoa(end)
		result.Cursor = &next
	}
	return result, nil
}

func (m *MockTransport) SubscribeVerifiableLogs(ctx context.Context, filter transport.LogFilter) (transport.Subscription[*ledger.VerifiableLog], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}

	var s *transport.Stream[*ledger.VerifiableLog]
	s = transport.NewStream[*ledger.VerifiableLog](mockStreamBuffer, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.logSubs = removeStream(m.logSubs, s)
	})
	m.logSubs = append(m.logSubs, s)
	return s, nil
}

func (m *MockTransport) SubscribeReceipts(ctx context.Context, address *common.Address, since types.Timestamp) (transport.Subscription[*ledger.ReceiptResponse], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}

	var s *transport.Stream[*ledger.ReceiptResponse]
	s = transport.NewStream[*ledger.ReceiptResponse](mockStreamBuffer, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.receiptSubs = removeStream(m.receiptSubs, s)
	})
	m.receiptSubs = append(m.receiptSubs, s)
	return s, nil
}

func (m *MockTransport) SubscribePastPerfectTime(ctx context.Context, ts types.Timestamp) (transport.Subscription[types.Timestamp], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}

	var s *transport.Stream[types.Timestamp]
	s = transport.NewStream[types.Timestamp](mockStreamBuffer, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.pastPerfectSubs = removeStream(m.pastPerfectSubs, s)
	})
	m.pastPerfectSubs = append(m.pastPerfectSubs, s)
	m.pastPerfectOpened++
	m.logger.Sugar().Debugw("MockTransport past perfect subscription opened", "timestamp", ts, "count", m.pastPerfectOpened)
	return s, nil
}

// SendRawTransaction records the payload and returns its keccak hash.
func (m *MockTransport) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentTxs = append(m.sentTxs, append([]byte(nil), rawTx...))
	return types.HashBytes(rawTx), nil
}

func (m *MockTransport) Close() {
	m.DropSubscriptions(nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// EmitLog delivers vl to every open log subscription and returns how many
// received it.
func (m *MockTransport) EmitLog(vl *ledger.VerifiableLog) int {
	m.mu.Lock()
	subs := append([]*transport.Stream[*ledger.VerifiableLog](nil), m.logSubs...)
	m.mu.Unlock()
	return emit(subs, vl)
}

func (m *MockTransport) EmitReceipt(rr *ledger.ReceiptResponse) int {
	m.mu.Lock()
	subs := append([]*transport.Stream[*ledger.ReceiptResponse](nil), m.receiptSubs...)
	m.mu.Unlock()
	return emit(subs, rr)
}

func (m *MockTransport) EmitPastPerfectTime(ts types.Timestamp) int {
	m.mu.Lock()
	subs := append([]*transport.Stream[types.Timestamp](nil), m.pastPerfectSubs...)
	m.mu.Unlock()
	return emit(subs, ts)
}

// DropSubscriptions ends every open subscription with err, nil for a clean
// end, as a dropped connection would.
func (m *MockTransport) DropSubscriptions(err error) {
	m.mu.Lock()
	logSubs, receiptSubs, ppSubs := m.logSubs, m.receiptSubs, m.pastPerfectSubs
	m.logSubs, m.receiptSubs, m.pastPerfectSubs = nil, nil, nil
	m.mu.Unlock()

	for _, s := range logSubs {
		s.Close(err)
	}
	for _, s := range receiptSubs {
		s.Close(err)
	}
	for _, s := range ppSubs {
		s.Close(err)
	}
	m.logger.Sugar().Debugw("MockTransport dropped subscriptions",
		"logs", len(logSubs), "receipts", len(receiptSubs), "pastPerfect", len(ppSubs))
}

func (m *MockTransport) CommitteeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committeeCalls
}

// PastPerfectSubscriptions returns how many past perfect subscriptions were
// ever opened.
func (m *MockTransport) PastPerfectSubscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pastPerfectOpened
}

// OpenSubscriptions returns the number of currently open log, receipt and
// past perfect subscriptions.
func (m *MockTransport) OpenSubscriptions() (logs, receipts, pastPerfect int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.logSubs), len(m.receiptSubs), len(m.pastPerfectSubs)
}

func (m *MockTransport) SentTransactions() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sentTxs...)
}

func (m *MockTransport) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func emit[T any](subs []*transport.Stream[T], item T) int {
	delivered := 0
	for _, s := range subs {
		if s.Send(item) {
			delivered++
		}
	}
	return delivered
}

func removeStream[T any](subs []*transport.Stream[T], target *transport.Stream[T]) []*transport.Stream[T] {
	for i, s := range subs {
		if s == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

func matchesAddress(addresses []common.Address, address common.Address) bool {
	if len(addresses) == 0 {
		return true
	}
	for _, a := range addresses {
		if a == address {
			return true
		}
	}
	return false
}

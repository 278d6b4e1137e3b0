// Package client verifies everything an untrusted node serves before handing
// it to the application. Logs and receipts are checked against the committee,
// certified results are cached in the trust store, and WaitPastPerfectTime
// blocks until the network can no longer attest to earlier events.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/certified"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/committee"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/persistence"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/transport"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

var (
	// ErrNotCertified is returned when an item lacks a committee quorum.
	ErrNotCertified = errors.New("not certified by a committee quorum")

	// ErrLogMismatch is returned when a log differs from the log at its
	// claimed index in the certified receipt.
	ErrLogMismatch = errors.New("log does not match its certified receipt")

	// ErrMalformedItem is returned for an item the node sent in a shape that
	// cannot be verified at all, such as a JSON null.
	ErrMalformedItem = errors.New("malformed item from node")
)

type Client struct {
	transport transport.Transport
	store     persistence.IVerifierPersistence
	clock     types.Clock
	logger    *zap.Logger

	mu        sync.RWMutex
	committee *committee.Committee
}

type Option func(*Client)

// WithClock overrides the clock used to stamp cached records.
func WithClock(clock types.Clock) Option {
	return func(c *Client) {
		c.clock = clock
	}
}

func NewClient(t transport.Transport, store persistence.IVerifierPersistence, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		transport: t,
		store:     store,
		clock:     types.SystemClock{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Committee returns the committee used as trust anchor. It is taken from
// memory, then from the trust store, and only then fetched from the node.
func (c *Client) Committee(ctx context.Context) (*committee.Committee, error) {
	c.mu.RLock()
	cached := c.committee
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	stored, err := c.store.LoadCommittee()
	if err != nil {
		return nil, fmt.Errorf("failed to load committee: %w", err)
	}
	if stored != nil {
		c.setCommittee(stored)
		return stored, nil
	}

	return c.RefreshCommittee(ctx)
}

// RefreshCommittee fetches the committee from the node and caches it.
func (c *Client) RefreshCommittee(ctx context.Context) (*committee.Committee, error) {
	fetched, err := c.transport.GetCommittee(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch committee: %w", err)
	}
	if err := c.SetCommittee(fetched); err != nil {
		return nil, err
	}
	return fetched, nil
}

// SetCommittee pins a committee obtained out of band.
func (c *Client) SetCommittee(comm *committee.Committee) error {
	if comm == nil {
		return fmt.Errorf("committee cannot be nil")
	}
	if err := c.store.SaveCommittee(comm); err != nil {
		return fmt.Errorf("failed to save committee: %w", err)
	}
	c.setCommittee(comm)

	c.logger.Sugar().Infow("Committee updated",
		"size", comm.Size(),
		"quorum", comm.QuorumSize(),
		"faultTolerance", comm.FaultTolerance(),
	)
	return nil
}

func (c *Client) setCommittee(comm *committee.Committee) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.committee = comm
}

// VerifyLog checks that vl is certified by the committee and consistent with
// its receipt. Verified receipts are cached in the trust store.
func (c *Client) VerifyLog(ctx context.Context, vl *ledger.VerifiableLog) error {
	comm, err := c.Committee(ctx)
	if err != nil {
		return err
	}
	return c.verifyLog(comm, vl)
}

func (c *Client) verifyLog(comm *committee.Committee, vl *ledger.VerifiableLog) error {
	if vl == nil {
		return fmt.Errorf("%w: nil log", ErrMalformedItem)
	}
	ok, err := vl.Verify(comm)
	if err != nil {
		return fmt.Errorf("failed to verify log attestations: %w", err)
	}
	if !ok {
		return ErrNotCertified
	}
	if !vl.MatchesReceipt() {
		return ErrLogMismatch
	}

	confirmed, err := vl.ConfirmationTime()
	if err != nil {
		return err
	}
	c.saveRecord(&vl.Metadata.Receipt, certified.CertifiedReceiptFromLog(vl), confirmed)
	return nil
}

// VerifyReceipt checks that rr is certified by the committee.
func (c *Client) VerifyReceipt(ctx context.Context, rr *ledger.ReceiptResponse) error {
	comm, err := c.Committee(ctx)
	if err != nil {
		return err
	}
	return c.verifyReceipt(comm, rr)
}

func (c *Client) verifyReceipt(comm *committee.Committee, rr *ledger.ReceiptResponse) error {
	if rr == nil {
		return fmt.Errorf("%w: nil receipt", ErrMalformedItem)
	}
	ok, err := rr.Verify(comm)
	if err != nil {
		return fmt.Errorf("failed to verify receipt attestations: %w", err)
	}
	if !ok {
		return ErrNotCertified
	}

	confirmed, err := rr.ConfirmationTime()
	if err != nil {
		return err
	}
	c.saveRecord(rr.Receipt(), certified.CertifiedReceiptFromResponse(rr), confirmed)
	return nil
}

// saveRecord caches a verified receipt. A cache failure never fails the
// verification itself.
func (c *Client) saveRecord(receipt *ledger.Receipt, cr certified.CertifiedReceipt, confirmed types.Timestamp) {
	record := &persistence.CertifiedReceiptRecord{
		TxHash:           receipt.TxHash,
		Receipt:          receipt,
		Certified:        cr,
		ConfirmationTime: confirmed,
		VerifiedAt:       int64(c.clock.Now().Seconds()),
	}
	if err := c.store.SaveCertifiedReceipt(record); err != nil {
		c.logger.Sugar().Warnw("Failed to cache certified receipt", "txHash", receipt.TxHash.Hex(), "error", err)
	}
}

// GetVerifiedLogs fetches logs matching filter and returns those that
// verify. Logs that fail verification are logged and dropped.
func (c *Client) GetVerifiedLogs(ctx context.Context, filter transport.LogFilter) ([]*ledger.VerifiableLog, error) {
	comm, err := c.Committee(ctx)
	if err != nil {
		return nil, err
	}

	logs, err := c.transport.GetVerifiableLogs(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch logs: %w", err)
	}

	verified := make([]*ledger.VerifiableLog, 0, len(logs))
	for _, vl := range logs {
		if err := c.verifyLog(comm, vl); err != nil {
			fields := []interface{}{"error", err}
			if vl != nil {
				fields = append(fields, "txHash", vl.TxHash.Hex(), "address", vl.Address.Hex())
			}
			c.logger.Sugar().Warnw("Dropping unverifiable log", fields...)
			continue
		}
		verified = append(verified, vl)
	}

	c.logger.Sugar().Debugw("Fetched logs", "received", len(logs), "verified", len(verified))
	return verified, nil
}

// GetVerifiedReceipts fetches one page of receipt history and keeps the
// receipts that verify. The returned page carries the node's cursor, so the
// next page can be requested even when every receipt on this one was dropped.
func (c *Client) GetVerifiedReceipts(ctx context.Context, address *common.Address, since types.Timestamp, page transport.PageRequest) (*transport.Page[*ledger.ReceiptResponse], error) {
	comm, err := c.Committee(ctx)
	if err != nil {
		return nil, err
	}

	fetched, err := c.transport.GetReceipts(ctx, address, since, page)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receipts: %w", err)
	}
	if fetched == nil {
		return nil, fmt.Errorf("%w: nil receipt page", ErrMalformedItem)
	}

	verified := make([]*ledger.ReceiptResponse, 0, len(fetched.Items))
	for _, rr := range fetched.Items {
		if err := c.verifyReceipt(comm, rr); err != nil {
			fields := []interface{}{"error", err}
			if rr != nil {
				fields = append(fields, "txHash", rr.TxHash.Hex())
			}
			c.logger.Sugar().Warnw("Dropping unverifiable receipt", fields...)
			continue
		}
		verified = append(verified, rr)
	}

	c.logger.Sugar().Debugw("Fetched receipts",
		"received", len(fetched.Items),
		"verified", len(verified),
		"hasMore", fetched.HasMore(),
	)
	return &transport.Page[*ledger.ReceiptResponse]{Items: verified, Cursor: fetched.Cursor}, nil
}

// CertifyLog verifies vl and packages it into the compact form a third party
// can check with only the committee.
func (c *Client) CertifyLog(ctx context.Context, vl *ledger.VerifiableLog) (*certified.CertifiedLog, error) {
	if err := c.VerifyLog(ctx, vl); err != nil {
		return nil, err
	}
	return certified.FromVerifiableLog(vl)
}

// CertifiedReceipt returns a previously verified receipt from the trust
// store, or nil if it was never verified.
func (c *Client) CertifiedReceipt(txHash common.Hash) (*persistence.CertifiedReceiptRecord, error) {
	return c.store.LoadCertifiedReceipt(txHash)
}

// SendRawTransaction forwards a signed transaction to the node.
func (c *Client) SendRawTransaction(ctx context.Context, rawTx []byte) (common.Hash, error) {
	txHash, err := c.transport.SendRawTransaction(ctx, rawTx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	c.logger.Sugar().Infow("Transaction submitted", "txHash", txHash.Hex())
	return txHash, nil
}

// Close closes the transport and the trust store.
func (c *Client) Close() error {
	c.transport.Close()
	return c.store.Close()
}

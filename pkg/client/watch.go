package client

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/ledger"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/transport"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// WatchVerifiedLogs subscribes to logs matching filter and calls handle for
// every log that verifies, in delivery order. It runs until ctx is done or the
// subscription ends; a clean end is reported as transport.ErrSubscriptionClosed.
func (c *Client) WatchVerifiedLogs(ctx context.Context, filter transport.LogFilter, handle func(*ledger.VerifiableLog)) error {
	comm, err := c.Committee(ctx)
	if err != nil {
		return err
	}

	sub, err := c.transport.SubscribeVerifiableLogs(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to subscribe to logs: %w", err)
	}

	w := c.newWatch("logs")
	return runWatch(ctx, w, sub, func(vl *ledger.VerifiableLog) error {
		return c.verifyLog(comm, vl)
	}, handle)
}

// WatchReceipts subscribes to receipts of transactions involving address, or
// all receipts when address is nil, confirmed since the given time.
func (c *Client) WatchReceipts(ctx context.Context, address *common.Address, since types.Timestamp, handle func(*ledger.ReceiptResponse)) error {
	comm, err := c.Committee(ctx)
	if err != nil {
		return err
	}

	sub, err := c.transport.SubscribeReceipts(ctx, address, since)
	if err != nil {
		return fmt.Errorf("failed to subscribe to receipts: %w", err)
	}

	w := c.newWatch("receipts")
	return runWatch(ctx, w, sub, func(rr *ledger.ReceiptResponse) error {
		return c.verifyReceipt(comm, rr)
	}, handle)
}

type watch struct {
	id     string
	kind   string
	logger *zap.SugaredLogger
}

func (c *Client) newWatch(kind string) *watch {
	id := uuid.NewString()
	return &watch{
		id:     id,
		kind:   kind,
		logger: c.logger.Sugar().With("watchId", id, "kind", kind),
	}
}

func runWatch[T any](
	ctx context.Context,
	w *watch,
	sub transport.Subscription[T],
	verify func(T) error,
	handle func(T),
) error {
	defer sub.Unsubscribe()

	handler := NewHandler[T](w.kind, defaultHandlerCapacity, w.logger.Desugar())
	listenCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	listenerDone := make(chan struct{})
	go func() {
		defer close(listenerDone)
		handler.ListenToChannel(listenCtx, handle)
	}()

	w.logger.Infow("Watch started")

	var delivered, dropped int
	for {
		select {
		case item, ok := <-sub.Items():
			if !ok {
				w.logger.Infow("Watch subscription ended", "delivered", delivered, "dropped", dropped)
				// Let the consumer finish what was already verified.
				close(handler.Channel)
				<-listenerDone
				return subscriptionEnd(sub)
			}
			if err := verify(item); err != nil {
				dropped++
				w.logger.Warnw("Dropping unverifiable item", "error", err)
				continue
			}
			if err := handler.Handle(ctx, item); err != nil {
				return err
			}
			delivered++
		case <-ctx.Done():
			w.logger.Infow("Watch stopped", "delivered", delivered, "dropped", dropped)
			return ctx.Err()
		}
	}
}

// subscriptionEnd returns the error that ended sub, or ErrSubscriptionClosed
// for a clean end.
func subscriptionEnd[T any](sub transport.Subscription[T]) error {
	if err, ok := <-sub.Err(); ok && err != nil {
		return err
	}
	return transport.ErrSubscriptionClosed
}

package client

import (
	"context"
	"fmt"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

// WaitPastPerfectTime blocks until the network reports that ts is past
// perfect: no validator will attest to anything dated at or before ts.
//
// Each attempt opens a subscription and waits for its first notification.
// If the subscription ends first, a new one is opened right away. There is no
// timeout and no backoff; callers bound the wait with ctx. An error opening a
// subscription is returned as is.
//
// Reached times are remembered per committee, so a later wait for an earlier
// time returns without asking the node.
func (c *Client) WaitPastPerfectTime(ctx context.Context, ts types.Timestamp) error {
	comm, err := c.Committee(ctx)
	if err != nil {
		return err
	}
	scope := comm.ID()

	watermark, err := c.store.GetPastPerfectWatermark(scope)
	if err != nil {
		c.logger.Sugar().Warnw("Failed to read past perfect watermark", "error", err)
	} else if watermark >= ts && watermark > 0 {
		return nil
	}

	for attempt := 1; ; attempt++ {
		reached, err := c.awaitPastPerfect(ctx, ts)
		if err != nil {
			return err
		}
		if reached {
			if err := c.store.SetPastPerfectWatermark(scope, ts); err != nil {
				c.logger.Sugar().Warnw("Failed to store past perfect watermark", "timestamp", ts, "error", err)
			}
			c.logger.Sugar().Debugw("Past perfect time reached", "timestamp", ts, "attempts", attempt)
			return nil
		}
		c.logger.Sugar().Infow("Past perfect subscription ended before notification, resubscribing",
			"timestamp", ts,
			"attempt", attempt,
		)
	}
}

// awaitPastPerfect runs one subscription. It reports true on the first
// notification and false if the stream ended without one.
func (c *Client) awaitPastPerfect(ctx context.Context, ts types.Timestamp) (bool, error) {
	sub, err := c.transport.SubscribePastPerfectTime(ctx, ts)
	if err != nil {
		return false, fmt.Errorf("failed to subscribe to past perfect time: %w", err)
	}
	defer sub.Unsubscribe()

	select {
	case _, ok := <-sub.Items():
		if ok {
			return true, nil
		}
		if err, ok := <-sub.Err(); ok && err != nil {
			c.logger.Sugar().Warnw("Past perfect subscription failed", "timestamp", ts, "error", err)
		}
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

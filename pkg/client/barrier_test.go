package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/quorum-verifier-go/pkg/testutil"
	"github.com/Layr-Labs/quorum-verifier-go/pkg/types"
)

func openPastPerfect(mt *testutil.MockTransport, want int) func() bool {
	return func() bool {
		_, _, pp := mt.OpenSubscriptions()
		return pp == want
	}
}

func waitResult(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("Timeout waiting for past perfect time")
		return nil
	}
}

func TestWaitPastPerfectTime(t *testing.T) {
	ts := types.FromSeconds(1_700_000_100)

	t.Run("ReturnsOnFirstNotification", func(t *testing.T) {
		c, network, store := newTestClient(t)
		mt := network.Transport

		done := make(chan error, 1)
		go func() { done <- c.WaitPastPerfectTime(context.Background(), ts) }()

		require.Eventually(t, openPastPerfect(mt, 1), waitTimeout, 10*time.Millisecond)
		assert.Equal(t, 1, mt.EmitPastPerfectTime(ts))

		require.NoError(t, waitResult(t, done))
		assert.Equal(t, 1, mt.PastPerfectSubscriptions())

		watermark, err := store.GetPastPerfectWatermark(network.Committee.ID())
		require.NoError(t, err)
		assert.Equal(t, ts, watermark)

		// The subscription is released once the wait is over.
		require.Eventually(t, openPastPerfect(mt, 0), waitTimeout, 10*time.Millisecond)
	})

	t.Run("ResubscribesAfterCleanEnd", func(t *testing.T) {
		c, network, _ := newTestClient(t)
		mt := network.Transport

		done := make(chan error, 1)
		go func() { done <- c.WaitPastPerfectTime(context.Background(), ts) }()

		for i := 1; i <= 2; i++ {
			require.Eventually(t, func() bool {
				return openPastPerfect(mt, 1)() && mt.PastPerfectSubscriptions() == i
			}, waitTimeout, 10*time.Millisecond)
			mt.DropSubscriptions(nil)
		}

		require.Eventually(t, func() bool {
			return openPastPerfect(mt, 1)() && mt.PastPerfectSubscriptions() == 3
		}, waitTimeout, 10*time.Millisecond)

		select {
		case err := <-done:
			t.Fatalf("Wait returned before notification: %v", err)
		default:
		}

		mt.EmitPastPerfectTime(ts)
		require.NoError(t, waitResult(t, done))
		assert.Equal(t, 3, mt.PastPerfectSubscriptions())
	})

	t.Run("ResubscribesAfterStreamError", func(t *testing.T) {
		c, network, _ := newTestClient(t)
		mt := network.Transport

		done := make(chan error, 1)
		go func() { done <- c.WaitPastPerfectTime(context.Background(), ts) }()

		require.Eventually(t, openPastPerfect(mt, 1), waitTimeout, 10*time.Millisecond)
		mt.DropSubscriptions(errors.New("websocket closed"))

		require.Eventually(t, func() bool {
			return openPastPerfect(mt, 1)() && mt.PastPerfectSubscriptions() == 2
		}, waitTimeout, 10*time.Millisecond)

		mt.EmitPastPerfectTime(ts)
		require.NoError(t, waitResult(t, done))
	})

	t.Run("SubscribeErrorIsReturned", func(t *testing.T) {
		c, network, _ := newTestClient(t)
		subErr := errors.New("method not found")
		network.Transport.SetSubscribeError(subErr)

		err := c.WaitPastPerfectTime(context.Background(), ts)
		require.ErrorIs(t, err, subErr)
	})

	t.Run("ContextCancel", func(t *testing.T) {
		c, network, store := newTestClient(t)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err := c.WaitPastPerfectTime(ctx, ts)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, network.Transport.PastPerfectSubscriptions())

		watermark, err := store.GetPastPerfectWatermark(network.Committee.ID())
		require.NoError(t, err)
		assert.Zero(t, watermark)
	})

	t.Run("StoredWatermarkShortCircuits", func(t *testing.T) {
		c, network, store := newTestClient(t)
		require.NoError(t, store.SetPastPerfectWatermark(network.Committee.ID(), ts))

		require.NoError(t, c.WaitPastPerfectTime(context.Background(), ts))
		require.NoError(t, c.WaitPastPerfectTime(context.Background(), ts.Sub(30*time.Second)))
		assert.Equal(t, 0, network.Transport.PastPerfectSubscriptions())
	})

	t.Run("WatermarkOfOtherCommitteeIsIgnored", func(t *testing.T) {
		c, network, store := newTestClient(t)
		mt := network.Transport

		other := testutil.CreateTestCommittee(t, testutil.CreateTestSigners(t, 4), 3)
		require.NotEqual(t, network.Committee.ID(), other.ID())
		require.NoError(t, store.SetPastPerfectWatermark(other.ID(), ts))

		done := make(chan error, 1)
		go func() { done <- c.WaitPastPerfectTime(context.Background(), ts) }()

		require.Eventually(t, openPastPerfect(mt, 1), waitTimeout, 10*time.Millisecond)
		mt.EmitPastPerfectTime(ts)
		require.NoError(t, waitResult(t, done))
		assert.Equal(t, 1, mt.PastPerfectSubscriptions())

		// Switching to the other committee picks up its watermark.
		require.NoError(t, c.SetCommittee(other))
		require.NoError(t, c.WaitPastPerfectTime(context.Background(), ts))
		assert.Equal(t, 1, mt.PastPerfectSubscriptions())
	})

	t.Run("CommitteeErrorIsReturned", func(t *testing.T) {
		c, network, _ := newTestClient(t)
		network.Transport.SetCommittee(nil, errors.New("node unavailable"))

		err := c.WaitPastPerfectTime(context.Background(), ts)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to fetch committee")
		assert.Equal(t, 0, network.Transport.PastPerfectSubscriptions())
	})

	t.Run("ConcurrentWaiters", func(t *testing.T) {
		c, network, _ := newTestClient(t)
		mt := network.Transport

		const waiters = 5
		var wg sync.WaitGroup
		errs := make(chan error, waiters)
		for i := 0; i < waiters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- c.WaitPastPerfectTime(context.Background(), ts)
			}()
		}

		require.Eventually(t, openPastPerfect(mt, waiters), waitTimeout, 10*time.Millisecond)
		assert.Equal(t, waiters, mt.EmitPastPerfectTime(ts))

		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
	})
}

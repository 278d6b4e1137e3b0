package client

import (
	"context"

	"go.uber.org/zap"
)

// defaultHandlerCapacity bounds how many verified items may wait for the
// consumer callback before the watcher stops reading from the node.
const defaultHandlerCapacity = 100

// Handler decouples reading a subscription from running the consumer
// callback. The watcher pushes verified items with Handle and a separate
// goroutine drains them with ListenToChannel.
type Handler[T any] struct {
	Channel chan T
	logger  *zap.Logger
	name    string
}

func NewHandler[T any](name string, capacity int, logger *zap.Logger) *Handler[T] {
	return &Handler[T]{
		Channel: make(chan T, capacity),
		logger:  logger,
		name:    name,
	}
}

// ListenToChannel calls handleFunc for every item until ctx is done or the
// channel is closed.
func (h *Handler[T]) ListenToChannel(ctx context.Context, handleFunc func(T)) {
	for {
		select {
		case item, ok := <-h.Channel:
			if !ok {
				return
			}
			handleFunc(item)
		case <-ctx.Done():
			h.logger.Sugar().Debugw("Handler channel listener exiting due to context done", "handler", h.name)
			return
		}
	}
}

// Handle queues item for the listener. Verified items are never dropped, so
// a full channel blocks until there is room or ctx is done.
func (h *Handler[T]) Handle(ctx context.Context, item T) error {
	select {
	case h.Channel <- item:
		return nil
	default:
	}

	h.logger.Sugar().Warnw("Handler channel is full, waiting for consumer", "handler", h.name, "capacity", cap(h.Channel))
	select {
	case h.Channel <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

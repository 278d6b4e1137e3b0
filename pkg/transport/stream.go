package transport

import "sync"

// Stream is a channel backed Subscription for adapters and tests. The
// producer calls Send for every item and Close exactly once when done.
type Stream[T any] struct {
	items chan T
	errs  chan error
	quit  chan struct{}

	closeOnce sync.Once
	unsubOnce sync.Once
	onUnsub   func()
}

// NewStream creates a stream with the given item buffer. onUnsubscribe, if
// set, runs once when the consumer unsubscribes.
func NewStream[T any](buffer int, onUnsubscribe func()) *Stream[T] {
	return &Stream[T]{
		items:   make(chan T, buffer),
		errs:    make(chan error, 1),
		quit:    make(chan struct{}),
		onUnsub: onUnsubscribe,
	}
}

func (s *Stream[T]) Items() <-chan T {
	return s.items
}

func (s *Stream[T]) Err() <-chan error {
	return s.errs
}

// Send delivers item unless the consumer has unsubscribed. It reports false
// once delivery is no longer possible.
func (s *Stream[T]) Send(item T) bool {
	select {
	case <-s.quit:
		return false
	default:
	}
	select {
	case s.items <- item:
		return true
	case <-s.quit:
		return false
	}
}

// Close ends the stream. A nil err is a clean end.
func (s *Stream[T]) Close(err error) {
	s.closeOnce.Do(func() {
		if err != nil {
			s.errs <- err
		}
		close(s.errs)
		close(s.items)
	})
}

// Done is closed when the consumer unsubscribes.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.quit
}

func (s *Stream[T]) Unsubscribe() {
	s.unsubOnce.Do(func() {
		close(s.quit)
		if s.onUnsub != nil {
			s.onUnsub()
		}
	})
}

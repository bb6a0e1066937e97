package board

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Subscription represents an active Pub/Sub subscription to one of a board's
// event channels. Caller must call Close() when done to clean up resources.
type Subscription[T any] struct {
	events <-chan T
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of decoded events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription[T]) Events() <-chan T {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors are decoding failures; the offending message is skipped and the
// subscription keeps running.
func (s *Subscription[T]) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription[T]) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// subscribe opens a Pub/Sub subscription on channel and pumps decoded payloads
// into a buffered events channel. It returns only once Redis has confirmed the
// subscription, so writes issued after it returns are guaranteed to be seen.
func subscribe[T any](ctx context.Context, rdb *redis.Client, channel string, decode func(string) (T, error)) (*Subscription[T], error) {
	pubsub := rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	eventsChan := make(chan T, 64)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				event, err := decode(msg.Payload)
				if err != nil {
					select {
					case errorsChan <- err:
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription[T]{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// Package bus implements the typed event bus that coordinates the pipeline
// stages: in-process publish/subscribe plus durable fan-out over a pub/sub
// transport so that worker processes other than the publisher can react.
package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/vidscribe/vidscribe/internal/events"
	"github.com/vidscribe/vidscribe/internal/ids"
	"github.com/vidscribe/vidscribe/internal/logging"
	"github.com/vidscribe/vidscribe/internal/transport"
)

// MetadataEventName carries the event wire name in message metadata.
const MetadataEventName = "event_name"

// DefaultRetryInterval is how long the listener waits after a transport error
// before resubscribing.
const DefaultRetryInterval = 5 * time.Second

// Handler reacts to a decoded domain event. Errors are recorded and never
// propagate to the publisher or to other handlers of the same event.
type Handler func(ctx context.Context, event events.Event) error

// EventBus dispatches domain events to local handlers and writes every
// publish to the durable transport keyed by event name. Construct one per
// process and pass it by reference; it holds no business data, only handler
// registrations.
type EventBus struct {
	logger     logging.ServiceLogger
	publisher  message.Publisher
	subscriber message.Subscriber

	retryInterval time.Duration

	mu       sync.RWMutex
	handlers map[string][]Handler

	listenerMu     sync.Mutex
	listenerCancel context.CancelFunc
	listenerDone   chan struct{}
}

// Option tunes the bus.
type Option func(*EventBus)

// WithRetryInterval overrides the listener's backoff after transport errors.
func WithRetryInterval(d time.Duration) Option {
	return func(b *EventBus) {
		if d > 0 {
			b.retryInterval = d
		}
	}
}

// New creates an event bus on top of the supplied transport.
func New(tr transport.Transport, logger logging.ServiceLogger, opts ...Option) *EventBus {
	b := &EventBus{
		logger:        logger,
		publisher:     tr.Publisher,
		subscriber:    tr.Subscriber,
		retryInterval: DefaultRetryInterval,
		handlers:      make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for the given event name. Handlers must be
// registered before StartListener so the durable subscription covers their
// topics.
func (b *EventBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// On registers a typed handler for the event type T. Events arriving from the
// durable transport are decoded as pointers; locally published events keep
// their value form. Both are normalised before the handler runs.
func On[T events.Event](b *EventBus, handler func(ctx context.Context, event T) error) {
	var zero T
	b.Subscribe(zero.EventName(), func(ctx context.Context, event events.Event) error {
		switch v := any(event).(type) {
		case T:
			return handler(ctx, v)
		case *T:
			return handler(ctx, *v)
		default:
			return fmt.Errorf("vidscribe: handler for %q received %T", zero.EventName(), event)
		}
	})
}

// Publish serializes the event, fires local handlers as supervised background
// goroutines and writes the payload to the durable transport topic named
// after the event. The call returns once the transport acknowledges the
// write; it never waits for local handlers, so a slow subscriber cannot
// block the publisher.
func (b *EventBus) Publish(ctx context.Context, event events.Event) error {
	name := event.EventName()

	payload, err := events.Marshal(event)
	if err != nil {
		return err
	}

	b.dispatchLocal(ctx, name, event)

	msg := message.NewMessage(ids.NewMessageID(), payload)
	msg.Metadata.Set(MetadataEventName, name)
	msg.SetContext(ctx)

	if err := b.publisher.Publish(name, msg); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}

	b.logger.Debug("event published", logging.LogFields{
		"event":        name,
		"message_uuid": msg.UUID,
	})
	return nil
}

// dispatchLocal runs every registered handler for the event concurrently.
// A panicking or failing handler is logged and isolated from the others.
func (b *EventBus) dispatchLocal(ctx context.Context, name string, event events.Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[name]))
	copy(handlers, b.handlers[name])
	b.mu.RUnlock()

	for _, handler := range handlers {
		go b.runHandler(ctx, name, event, handler)
	}
}

func (b *EventBus) runHandler(ctx context.Context, name string, event events.Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", fmt.Errorf("panic: %v", r), logging.LogFields{"event": name})
		}
	}()

	if err := handler(ctx, event); err != nil {
		b.logger.Error("event handler failed", err, logging.LogFields{"event": name})
	}
}

// StartListener starts the background loop that consumes the durable
// transport and dispatches to local handlers exactly as Publish does. It
// subscribes to the union of all locally registered topics. Calling it twice
// is a no-op.
func (b *EventBus) StartListener(ctx context.Context) {
	b.listenerMu.Lock()
	defer b.listenerMu.Unlock()

	if b.listenerCancel != nil {
		return
	}

	listenCtx, cancel := context.WithCancel(ctx)
	b.listenerCancel = cancel
	done := make(chan struct{})
	b.listenerDone = done

	topics := b.subscribedTopics()
	b.logger.Info("starting event listener", logging.LogFields{"topics": topics})

	// Subscriptions are established before returning so an event published
	// right after startup cannot be lost. A failed subscription is retried by
	// the drain goroutine.
	var wg sync.WaitGroup
	for _, topic := range topics {
		messages, err := b.subscriber.Subscribe(listenCtx, topic)
		if err != nil {
			b.logger.Error("listener subscribe failed, will retry", err, logging.LogFields{"topic": topic})
			messages = nil
		}
		wg.Add(1)
		go func(topic string, messages <-chan *message.Message) {
			defer wg.Done()
			b.consumeTopic(listenCtx, topic, messages)
		}(topic, messages)
	}
	go func() {
		wg.Wait()
		close(done)
	}()
}

// consumeTopic dispatches from messages until the context is cancelled,
// resubscribing whenever the channel closes or the transport errors. A nil
// messages channel means the initial subscription failed and is retried here.
func (b *EventBus) consumeTopic(ctx context.Context, topic string, messages <-chan *message.Message) {
	for {
		if messages == nil {
			var err error
			messages, err = b.subscriber.Subscribe(ctx, topic)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				b.logger.Error("listener subscribe failed, retrying", err, logging.LogFields{
					"topic":   topic,
					"backoff": b.retryInterval.String(),
				})
				select {
				case <-time.After(b.retryInterval):
					continue
				case <-ctx.Done():
					return
				}
			}
		}

		open := b.drain(ctx, topic, messages)
		messages = nil
		if ctx.Err() != nil {
			return
		}
		if !open {
			// Channel closed underneath us; resubscribe after the backoff.
			b.logger.Info("listener channel closed, resubscribing", logging.LogFields{"topic": topic})
			select {
			case <-time.After(b.retryInterval):
			case <-ctx.Done():
				return
			}
		}
	}
}

// drain consumes messages until the channel closes or the context ends.
// Returns false if the channel was closed by the transport.
func (b *EventBus) drain(ctx context.Context, topic string, messages <-chan *message.Message) bool {
	for {
		select {
		case <-ctx.Done():
			return true
		case msg, ok := <-messages:
			if !ok {
				return false
			}
			b.handleIncoming(ctx, topic, msg)
		}
	}
}

func (b *EventBus) handleIncoming(ctx context.Context, topic string, msg *message.Message) {
	event, err := events.Unmarshal(topic, msg.Payload)
	if err != nil {
		// Undecodable payloads are acked: redelivery cannot fix them.
		b.logger.Error("listener failed to decode event", err, logging.LogFields{
			"topic":        topic,
			"message_uuid": msg.UUID,
		})
		msg.Ack()
		return
	}

	b.dispatchLocal(ctx, topic, event)
	msg.Ack()
}

// StopListener cancels the listener loop. It blocks until the loop exits and
// is safe to call even if the listener was never started; repeated calls are
// no-ops.
func (b *EventBus) StopListener() {
	b.listenerMu.Lock()
	cancel := b.listenerCancel
	done := b.listenerDone
	b.listenerCancel = nil
	b.listenerDone = nil
	b.listenerMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// Close stops the listener and releases the transport connections.
func (b *EventBus) Close() error {
	b.StopListener()
	var firstErr error
	if err := b.publisher.Close(); err != nil {
		firstErr = err
	}
	if err := b.subscriber.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (b *EventBus) subscribedTopics() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	topics := make([]string, 0, len(b.handlers))
	for topic := range b.handlers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}

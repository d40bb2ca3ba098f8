// Package resilience guards calls to unreliable external services with
// per-provider circuit breakers. Breakers are keyed "{stage}_{provider}",
// created lazily on first use and memoized for the process lifetime.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vidscribe/vidscribe/internal/logging"
)

// ErrCircuitOpen is returned when a breaker rejects a call without invoking
// the wrapped function. Callers should back off; the task runner may retry.
var ErrCircuitOpen = errors.New("vidscribe: circuit breaker open")

const (
	// DefaultFailureThreshold trips the breaker after this many consecutive
	// failures.
	DefaultFailureThreshold = 5
	// DefaultResetTimeout is how long the breaker stays open before allowing
	// a single trial call.
	DefaultResetTimeout = 60 * time.Second
)

// Key builds the registry key for a pipeline stage and provider name.
func Key(stage, provider string) string {
	return stage + "_" + provider
}

// Breaker wraps a single circuit breaker around arbitrary calls.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// Do invokes fn through the breaker. When the breaker is open the call fails
// immediately with ErrCircuitOpen and fn is not invoked. In half-open state
// exactly one trial call is allowed through.
func (b *Breaker) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State reports the breaker state, for introspection and tests.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Registry hands out breakers by key. First access per key constructs the
// breaker; steady-state reads hit the memoized instance.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*Breaker

	threshold uint32
	timeout   time.Duration
	logger    logging.ServiceLogger
}

// Option tunes the registry defaults.
type Option func(*Registry)

// WithFailureThreshold overrides the consecutive-failure trip threshold.
func WithFailureThreshold(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.threshold = uint32(n)
		}
	}
}

// WithResetTimeout overrides how long breakers stay open.
func WithResetTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewRegistry creates a breaker registry with the supplied logger and options.
func NewRegistry(logger logging.ServiceLogger, opts ...Option) *Registry {
	r := &Registry{
		breakers:  make(map[string]*Breaker),
		threshold: DefaultFailureThreshold,
		timeout:   DefaultResetTimeout,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the breaker for key, creating it on first use.
func (r *Registry) Get(key string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.breakers[key]; ok {
		return b
	}

	threshold := r.threshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 1,
		Timeout:     r.timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if r.logger != nil {
				r.logger.Info("circuit breaker state change", logging.LogFields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				})
			}
		},
	})

	b := &Breaker{cb: cb}
	r.breakers[key] = b
	if r.logger != nil {
		r.logger.Debug("circuit breaker created", logging.LogFields{"breaker": key})
	}
	return b
}

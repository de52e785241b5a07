package action

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is reported when a program's circuit breaker rejects a run.
var ErrCircuitOpen = errors.New("circuit open for program")

// RetryConfig controls re-running command actions that exit non-zero.
// MaxRetries of zero disables retries.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration // default 100ms
	MaxInterval     time.Duration // default 5s
}

// DefaultRetryConfig returns the configuration used when none is given: no retries.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

func (c RetryConfig) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.InitialInterval
	if exp.InitialInterval <= 0 {
		exp.InitialInterval = 100 * time.Millisecond
	}
	exp.MaxInterval = c.MaxInterval
	if exp.MaxInterval <= 0 {
		exp.MaxInterval = 5 * time.Second
	}
	exp.MaxElapsedTime = 0 // bounded by MaxRetries instead

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(c.MaxRetries)), ctx)
}

// BreakerConfig controls the per-program circuit breakers. A Threshold of zero
// disables them.
type BreakerConfig struct {
	Threshold uint32        // Consecutive failures before the breaker opens
	Timeout   time.Duration // How long the breaker stays open, default 30s
}

// BreakerRegistry hands out one circuit breaker per program name, so a broken
// tool stops being invoked for the rest of the build.
type BreakerRegistry struct {
	cfg BreakerConfig

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates a registry. It returns nil when cfg disables breakers.
func NewBreakerRegistry(cfg BreakerConfig) *BreakerRegistry {
	if cfg.Threshold == 0 {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &BreakerRegistry{
		cfg:      cfg,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// Get returns the breaker for program, creating it on first use.
func (r *BreakerRegistry) Get(program string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[program]; ok {
		return cb
	}

	threshold := r.cfg.Threshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        program,
		MaxRequests: 1,
		Timeout:     r.cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker changed state", "program", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Cancellation says nothing about the tool itself
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
	})
	r.breakers[program] = cb
	return cb
}

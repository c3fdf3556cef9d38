// Package resilience wraps calls to external dependencies with a retry,
// circuit-breaker, bulkhead and (optionally) rate-limiter policy. It knows
// nothing about the callers' domains; clients map its errors to their own.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

var (
	// ErrCircuitOpen: the breaker rejected the call without attempting it
	ErrCircuitOpen = errors.New("circuit breaker is open")

	// ErrBulkheadFull: the dependency's concurrency ceiling is exhausted
	ErrBulkheadFull = errors.New("bulkhead is full")

	// ErrRateLimited: the local outbound rate cap rejected the call
	ErrRateLimited = errors.New("rate limit exceeded")
)

type Config struct {
	// Name identifies the protected dependency in breaker state
	Name string

	// Retry: total attempts including the first; backoff grows
	// exponentially from InitialInterval up to MaxInterval
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Retryable classifies errors worth another attempt.
	// When nil every error is retried.
	Retryable func(error) bool

	// IgnoreFailure marks errors the breaker should not count against the
	// dependency's health (e.g. a quota rejection is not an outage).
	// When nil every error counts.
	IgnoreFailure func(error) bool

	// Breaker thresholds: trip when FailureRatio is reached over at least
	// MinRequests calls within Interval; stay open for OpenTimeout, then
	// admit HalfOpenMaxCalls probes
	MinRequests      uint32
	FailureRatio     float64
	Interval         time.Duration
	OpenTimeout      time.Duration
	HalfOpenMaxCalls uint32

	// MaxConcurrent bounds in-flight calls (0 disables the bulkhead)
	MaxConcurrent int64

	// RatePerSecond caps outbound call rate (0 disables the limiter)
	RatePerSecond float64
	RateBurst     int
}

// DefaultConfig provides balanced settings for an external HTTP API
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		MaxAttempts:      3,
		InitialInterval:  100 * time.Millisecond,
		MaxInterval:      2 * time.Second,
		MinRequests:      5,
		FailureRatio:     0.5,
		Interval:         1 * time.Minute,
		OpenTimeout:      10 * time.Second,
		HalfOpenMaxCalls: 2,
		MaxConcurrent:    10,
	}
}

// Executor runs operations under the configured policy.
// Safe for concurrent use.
type Executor struct {
	cfg     Config
	breaker *gobreaker.CircuitBreaker
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

func NewExecutor(cfg Config) *Executor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 2 * time.Second
	}

	e := &Executor{cfg: cfg}

	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxCalls,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return cfg.IgnoreFailure != nil && cfg.IgnoreFailure(err)
		},
	})

	if cfg.MaxConcurrent > 0 {
		e.sem = semaphore.NewWeighted(cfg.MaxConcurrent)
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	return e
}

// Do runs fn under the policy. Attempt order per call: bulkhead admission,
// rate-limiter admission, then retry loop where every attempt passes through
// the circuit breaker. A denied admission or an open breaker fails without
// touching the dependency.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if e.sem != nil {
		if !e.sem.TryAcquire(1) {
			return ErrBulkheadFull
		}
		defer e.sem.Release(1)
	}

	if e.limiter != nil && !e.limiter.Allow() {
		return ErrRateLimited
	}

	operation := func() error {
		_, err := e.breaker.Execute(func() (any, error) {
			return nil, fn(ctx)
		})

		switch {
		case err == nil:
			return nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			// Open breaker: fail fast, retrying inside the cooldown window
			// cannot help
			return backoff.Permanent(ErrCircuitOpen)
		case e.cfg.Retryable != nil && !e.cfg.Retryable(err):
			return backoff.Permanent(err)
		default:
			return err
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.InitialInterval
	bo.MaxInterval = e.cfg.MaxInterval

	return backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(e.cfg.MaxAttempts-1)),
		ctx,
	))
}

// State exposes the breaker state for health reporting
func (e *Executor) State() gobreaker.State {
	return e.breaker.State()
}

package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/sony/gobreaker"

	"github.com/codeready-toolchain/brain/pkg/config"
)

// BreakerConfig tunes the circuit breaker wrapping the LLM backend.
type BreakerConfig struct {
	Name                string
	MaxRequestsHalfOpen uint32
	OpenTimeout         time.Duration
	ConsecutiveTrips    uint32

	// OnStateChange, if set, is called in addition to the default log line
	// on every breaker transition — used to raise/clear an ops warning.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig holds conservative defaults for
// upstream integrations: trip after 5 consecutive failures, stay open 30s.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{Name: name, MaxRequestsHalfOpen: 1, OpenTimeout: 30 * time.Second, ConsecutiveTrips: 5}
}

// BreakingClient wraps a Client with a sony/gobreaker circuit breaker and
// bounded exponential-backoff retries. When the breaker is open, calls fail fast with
// config.ErrorKindUpstreamUnavailable instead of waiting out a timeout.
type BreakingClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
}

// NewBreakingClient wraps inner with a circuit breaker using cfg.
func NewBreakingClient(inner Client, cfg BreakerConfig) *BreakingClient {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequestsHalfOpen,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveTrips
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("llm circuit breaker state change", "breaker", name, "from", from, "to", to)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from, to)
			}
		},
	}
	return &BreakingClient{inner: inner, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the breaker's current state, surfaced on the /health endpoint.
func (b *BreakingClient) State() gobreaker.State {
	return b.breaker.State()
}

// Complete retries transient failures with jittered exponential backoff
// inside the breaker's accounting, then surfaces an upstream-unavailable
// taxonomy error once retries and the breaker are both exhausted.
func (b *BreakingClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	result, err := withRetry(ctx, 3, func() (any, error) {
		return b.breaker.Execute(func() (any, error) {
			return b.inner.Complete(ctx, req)
		})
	})
	if err != nil {
		return nil, taxonomize(err)
	}
	return result.(*CompletionResponse), nil
}

// Embed behaves like Complete.
func (b *BreakingClient) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	result, err := withRetry(ctx, 3, func() (any, error) {
		return b.breaker.Execute(func() (any, error) {
			return b.inner.Embed(ctx, req)
		})
	})
	if err != nil {
		return nil, taxonomize(err)
	}
	return result.(*EmbeddingResponse), nil
}

func taxonomize(err error) error {
	return &upstreamError{kind: config.ErrorKindUpstreamUnavailable, err: err}
}

// upstreamError is a minimal local wrapper — pkg/llm cannot import
// pkg/brainerr without creating an import cycle (brainerr imports
// pkg/config only, so this is safe to keep local and simple instead).
type upstreamError struct {
	kind config.ErrorKind
	err  error
}

func (e *upstreamError) Error() string { return e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }
func (e *upstreamError) Kind() config.ErrorKind { return e.kind }

// withRetry runs fn up to attempts times with exponential backoff and
// ±50% jitter between tries, stopping early on context cancellation.
func withRetry(ctx context.Context, attempts int, fn func() (any, error)) (any, error) {
	var lastErr error
	backoff := 200 * time.Millisecond
	for i := 0; i < attempts; i++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if i == attempts-1 {
			break
		}
		jitter := 1 + (rand.Float64()-0.5) // ±50%
		delay := time.Duration(float64(backoff) * jitter)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
	return nil, lastErr
}

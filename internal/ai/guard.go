package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"rag-docqa-platform/internal/logger"
	"rag-docqa-platform/internal/telemetry"
)

// RateLimits are the per-provider request and token budgets.
type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// TokenCounter tracks usage inside rolling minute and day windows.
type TokenCounter struct {
	mu              sync.Mutex
	limits          RateLimits
	minuteTokens    int
	dailyTokens     int
	minuteRequests  int
	dailyRequests   int
	lastMinuteReset time.Time
	lastDayReset    time.Time
	now             func() time.Time
}

func NewTokenCounter(limits RateLimits) *TokenCounter {
	return &TokenCounter{limits: limits, now: time.Now}
}

func (tc *TokenCounter) CanConsume(tokens, requests int) bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	now := tc.now()
	if now.Sub(tc.lastMinuteReset) >= time.Minute {
		tc.minuteTokens = 0
		tc.minuteRequests = 0
		tc.lastMinuteReset = now
	}
	if now.Sub(tc.lastDayReset) >= 24*time.Hour {
		tc.dailyTokens = 0
		tc.dailyRequests = 0
		tc.lastDayReset = now
	}

	if tc.minuteRequests+requests > tc.limits.RPM {
		return false
	}
	if tc.minuteTokens+tokens > tc.limits.TPM {
		return false
	}
	if tc.dailyRequests+requests > tc.limits.RPD {
		return false
	}
	return true
}

func (tc *TokenCounter) RecordUsage(tokens, requests int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	tc.minuteTokens += tokens
	tc.minuteRequests += requests
	tc.dailyTokens += tokens
	tc.dailyRequests += requests
}

// guard applies the token budget, the request rate limiter and the circuit
// breaker around a provider call.
type guard struct {
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	tokens      *TokenCounter
}

func newGuard(name, tier string, metrics *telemetry.Metrics) *guard {
	limits := getRateLimits(tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), max(limits.RPM/10, 1))

	return &guard{breaker: breaker, rateLimiter: rateLimiter, tokens: NewTokenCounter(limits)}
}

// do runs call when the budgets allow it. call reports the tokens it used.
func (g *guard) do(ctx context.Context, estimatedTokens int, call func() (string, int, error)) (string, error) {
	if !g.tokens.CanConsume(estimatedTokens, 1) {
		return "", fmt.Errorf("%w: token budget exhausted", ErrUnavailable)
	}
	if err := g.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		text, used, err := call()
		if err != nil {
			return nil, err
		}
		g.tokens.RecordUsage(used, 1)
		return text, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return "", err
	}
	return result.(string), nil
}

// estimateTokens uses the rough 4 characters per token ratio.
func estimateTokens(text string) int {
	return max(len(text)/4, 1)
}

// Package ratelimit bounds model traffic with a token bucket and a concurrency cap.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/config"
	"scicontent/pkg/logx"
	"scicontent/pkg/utils"
)

// Refill cadence: a tenth of the per-minute budget every six seconds.
const (
	refillInterval = 6 * time.Second
	refillDivisor  = 10
	pollInterval   = 100 * time.Millisecond
)

// Limiter hands out token budget and concurrency slots.
type Limiter interface {
	// Acquire blocks until tokens and a slot are both available, ctx is done,
	// or the limiter gives up. The returned release func must be called once.
	Acquire(ctx context.Context, tokens int, caller string) (release func(), err error)

	// GetStats returns current limiter statistics.
	GetStats() Stats
}

// TokenEstimator estimates the number of tokens needed for a request.
type TokenEstimator interface {
	EstimatePrompt(req llm.CompletionRequest) int
}

// Config defines the budget for one provider.
type Config struct {
	TokensPerMinute int
	MaxConcurrency  int
	// MaxWait caps how long Acquire polls before failing. Zero waits until ctx is done.
	MaxWait time.Duration
	// StaleAfter force-releases slots held longer than this. Zero disables cleanup.
	StaleAfter time.Duration
}

// FromConfig converts the rate_limit config section for a provider whose
// requests time out after requestTimeout.
func FromConfig(rc config.RateLimitConfig, requestTimeout time.Duration) Config {
	return Config{
		TokensPerMinute: rc.TokensPerMinute,
		MaxConcurrency:  rc.MaxConcurrency,
		MaxWait:         rc.MaxWait(),
		StaleAfter:      2 * requestTimeout,
	}
}

// TiktokenEstimator counts prompt tokens with the shared GPT-4 encoding.
type TiktokenEstimator struct{}

// EstimatePrompt counts message text, tool results and tool descriptions.
//
//nolint:gocritic // request passed by value to match the client signature
func (TiktokenEstimator) EstimatePrompt(req llm.CompletionRequest) int {
	var sb strings.Builder
	for i := range req.Messages {
		sb.WriteString(req.Messages[i].Content)
		sb.WriteByte('\n')
		for _, r := range req.Messages[i].ToolResults {
			sb.WriteString(r.Content)
			sb.WriteByte('\n')
		}
	}
	for i := range req.Tools {
		sb.WriteString(req.Tools[i].Description)
		sb.WriteByte('\n')
	}
	return utils.CountTokensSimple(sb.String())
}

type acquisition struct {
	at     time.Time
	caller string
}

// TokenBucketLimiter implements Limiter. Tokens are consumed on acquire and
// never refunded; slots are returned by the release func.
//
//nolint:govet // fieldalignment: grouped for readability
type TokenBucketLimiter struct {
	mu sync.Mutex

	provider string
	logger   *logx.Logger
	now      func() time.Time

	availableTokens int
	tokensPerRefill int
	maxCapacity     int

	activeRequests int
	maxConcurrency int
	acquisitions   []*acquisition
	staleAfter     time.Duration
	maxWait        time.Duration

	tokenLimitHits  int64
	concurrencyHits int64
}

// Stats is a point-in-time view of a limiter.
type Stats struct {
	Provider        string `json:"provider"`
	AvailableTokens int    `json:"available_tokens"`
	MaxCapacity     int    `json:"max_capacity"`
	ActiveRequests  int    `json:"active_requests"`
	MaxConcurrency  int    `json:"max_concurrency"`
	TokenLimitHits  int64  `json:"token_limit_hits"`
	ConcurrencyHits int64  `json:"concurrency_hits"`
}

// NewTokenBucketLimiter creates a limiter with a full bucket. Call Start to
// begin refilling.
func NewTokenBucketLimiter(provider string, cfg Config, logger *logx.Logger) *TokenBucketLimiter {
	if logger == nil {
		logger = logx.NewLogger("ratelimit")
	}
	maxCapacity := int(float64(cfg.TokensPerMinute) * config.RateLimitBufferFactor)
	concurrency := cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &TokenBucketLimiter{
		provider:        provider,
		logger:          logger,
		now:             time.Now,
		availableTokens: maxCapacity,
		tokensPerRefill: cfg.TokensPerMinute / refillDivisor,
		maxCapacity:     maxCapacity,
		maxConcurrency:  concurrency,
		acquisitions:    make([]*acquisition, 0),
		staleAfter:      cfg.StaleAfter,
		maxWait:         cfg.MaxWait,
	}
}

// Start refills the bucket in the background until ctx is done.
func (l *TokenBucketLimiter) Start(ctx context.Context) {
	ticker := time.NewTicker(refillInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.refill()
			}
		}
	}()
}

// Acquire implements Limiter.
func (l *TokenBucketLimiter) Acquire(ctx context.Context, tokens int, caller string) (func(), error) {
	if tokens > l.maxCapacity {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeBadPrompt,
			fmt.Sprintf("request needs ~%d tokens but the %s budget holds at most %d per minute", tokens, l.provider, l.maxCapacity))
	}

	firstAttempt := true
	start := l.now()
	for {
		l.mu.Lock()

		if l.activeRequests >= l.maxConcurrency {
			l.cleanStaleAcquisitions()
		}

		hasTokens := l.availableTokens >= tokens
		hasSlot := l.activeRequests < l.maxConcurrency

		if hasTokens && hasSlot {
			l.availableTokens -= tokens
			l.activeRequests++
			acq := &acquisition{at: l.now(), caller: caller}
			l.acquisitions = append(l.acquisitions, acq)
			l.mu.Unlock()

			var once sync.Once
			return func() { once.Do(func() { l.release(acq) }) }, nil
		}

		if elapsed := l.now().Sub(start); l.maxWait > 0 && elapsed > l.maxWait {
			l.mu.Unlock()
			return nil, fmt.Errorf("rate limit wait exceeded %v (requested %d tokens, provider %s, caller %s)",
				l.maxWait, tokens, l.provider, caller)
		}

		// Log only once per call.
		if firstAttempt {
			if !hasTokens {
				l.tokenLimitHits++
				l.logger.Info("⏳ %s token budget exhausted, waiting for refill (need %d, have %d, caller %s)",
					l.provider, tokens, l.availableTokens, caller)
			}
			if !hasSlot {
				l.concurrencyHits++
				l.logger.Info("⏳ %s concurrency limit hit, waiting for a slot (active %d/%d, caller %s)",
					l.provider, l.activeRequests, l.maxConcurrency, caller)
			}
			firstAttempt = false
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err() //nolint:wrapcheck // caller cancellation passes through
		case <-time.After(pollInterval):
		}
	}
}

func (l *TokenBucketLimiter) release(acq *acquisition) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, a := range l.acquisitions {
		if a == acq {
			l.acquisitions = append(l.acquisitions[:i], l.acquisitions[i+1:]...)
			l.activeRequests--
			return
		}
	}
	// Already force-released as stale.
}

// cleanStaleAcquisitions must be called with mu held.
func (l *TokenBucketLimiter) cleanStaleAcquisitions() {
	if l.staleAfter <= 0 {
		return
	}
	now := l.now()
	valid := l.acquisitions[:0]
	for _, acq := range l.acquisitions {
		if now.Sub(acq.at) > l.staleAfter {
			l.activeRequests--
			l.logger.Warn("Force-released stale %s slot held by %s for over %v", l.provider, acq.caller, l.staleAfter)
			continue
		}
		valid = append(valid, acq)
	}
	l.acquisitions = valid
}

func (l *TokenBucketLimiter) refill() {
	l.mu.Lock()
	defer l.mu.Unlock()

	old := l.availableTokens
	l.availableTokens = min(l.availableTokens+l.tokensPerRefill, l.maxCapacity)
	if l.availableTokens != old {
		l.logger.Debug("%s bucket refilled: %d -> %d tokens (max %d)", l.provider, old, l.availableTokens, l.maxCapacity)
	}
}

// GetStats implements Limiter.
func (l *TokenBucketLimiter) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Provider:        l.provider,
		AvailableTokens: l.availableTokens,
		MaxCapacity:     l.maxCapacity,
		ActiveRequests:  l.activeRequests,
		MaxConcurrency:  l.maxConcurrency,
		TokenLimitHits:  l.tokenLimitHits,
		ConcurrencyHits: l.concurrencyHits,
	}
}

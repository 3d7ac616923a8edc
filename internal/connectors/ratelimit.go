package connectors

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

const (
	// DefaultRate is the proactive throttle rate (~1.2 req/sec = 4320/hr).
	DefaultRate = 1.2

	// MinBuffer is the minimum remaining requests before waiting for reset.
	MinBuffer = 10

	// MaxResetWait caps how long a page waits for a rate limit reset.
	MaxResetWait = 2 * time.Minute

	HeaderRetryAfter = "Retry-After"
)

// Rate limit headers, GitHub/Bitbucket style then GitLab style.
var (
	remainingHeaders = []string{"X-RateLimit-Remaining", "RateLimit-Remaining"}
	limitHeaders     = []string{"X-RateLimit-Limit", "RateLimit-Limit"}
	resetHeaders     = []string{"X-RateLimit-Reset", "RateLimit-Reset"}
)

// RateLimitError reports a rate-limited response.
type RateLimitError struct {
	Provider  domain.ProviderType
	ResetAt   time.Time
	Remaining int
	Limit     int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded, resets at %s",
		e.Provider.DisplayName(), e.ResetAt.Format(time.RFC3339))
}

// Is makes RateLimitError match domain.ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == domain.ErrRateLimited
}

// RateLimiter combines a proactive token bucket with the quota the provider
// reports in response headers.
type RateLimiter struct {
	provider domain.ProviderType

	mu        sync.Mutex
	remaining int
	limit     int
	resetTime time.Time
	bucket    *rate.Limiter
	minBuffer int
}

// NewRateLimiter creates a limiter allowing perSecond requests per second.
// A non-positive rate disables proactive throttling.
func NewRateLimiter(provider domain.ProviderType, perSecond float64) *RateLimiter {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &RateLimiter{
		provider:  provider,
		remaining: -1,
		limit:     -1,
		bucket:    rate.NewLimiter(limit, 1),
		minBuffer: MinBuffer,
	}
}

// Wait blocks until it's safe to make a request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.bucket.Wait(ctx); err != nil {
		return err
	}

	r.mu.Lock()
	remaining := r.remaining
	resetTime := r.resetTime
	r.mu.Unlock()

	if remaining >= 0 && remaining < r.minBuffer && time.Now().Before(resetTime) {
		return sleep(ctx, minDuration(time.Until(resetTime), MaxResetWait))
	}
	return nil
}

// UpdateFromResponse updates rate limit state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if val, ok := intHeader(resp.Header, remainingHeaders); ok {
		r.remaining = val
	}
	if val, ok := intHeader(resp.Header, limitHeaders); ok {
		r.limit = val
	}
	if val, ok := intHeader(resp.Header, resetHeaders); ok {
		r.resetTime = time.Unix(int64(val), 0)
	}
}

// CheckRateLimit updates state from resp and returns a *RateLimitError when
// the response is a rate-limit rejection (429, or 403 with no quota left).
func (r *RateLimiter) CheckRateLimit(resp *http.Response) error {
	if resp == nil {
		return nil
	}
	r.UpdateFromResponse(resp)

	r.mu.Lock()
	resetTime := r.resetTime
	remaining := r.remaining
	limit := r.limit
	r.mu.Unlock()

	if resp.StatusCode != http.StatusTooManyRequests &&
		(resp.StatusCode != http.StatusForbidden || remaining != 0) {
		return nil
	}

	if retryAfter := resp.Header.Get(HeaderRetryAfter); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			resetTime = time.Now().Add(time.Duration(seconds) * time.Second)
		}
	}

	return &RateLimitError{
		Provider:  r.provider,
		ResetAt:   resetTime,
		Remaining: remaining,
		Limit:     limit,
	}
}

// Remaining returns the last reported remaining quota, or -1 if unknown.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// WaitUntil waits until t or at most MaxResetWait. It reports false when
// the wait would exceed the cap.
func WaitUntil(ctx context.Context, t time.Time) (bool, error) {
	d := time.Until(t)
	if d > MaxResetWait {
		return false, nil
	}
	if d <= 0 {
		return true, nil
	}
	return true, sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func intHeader(h http.Header, names []string) (int, bool) {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n, true
			}
		}
	}
	return 0, false
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

package connectors

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/logger"
	"github.com/custodia-labs/remotesync/internal/metrics"
)

const (
	// maxPageBytes bounds how much of a page body is read.
	maxPageBytes = 32 << 20

	// excerptBytes is how much of a failed body goes into the log.
	excerptBytes = 512
)

// Page failure reasons, used as metric labels.
const (
	reasonTransport   = "transport"
	reasonStatus      = "status"
	reasonDecode      = "decode"
	reasonRateLimited = "rate_limited"
	reasonLoop        = "loop"
	reasonRevoked     = "revoked"
)

// errPageFailed ends a walk early without failing it.
var errPageFailed = errors.New("page failed")

var _ driven.Paginator = (*Paginator)(nil)

// Paginator walks paginated provider collections.
type Paginator struct {
	perSecond float64

	mu       sync.Mutex
	limiters map[domain.ProviderType]*RateLimiter
}

// NewPaginator creates a paginator pacing each provider at perSecond
// requests per second. Zero disables proactive pacing.
func NewPaginator(perSecond float64) *Paginator {
	return &Paginator{
		perSecond: perSecond,
		limiters:  make(map[domain.ProviderType]*RateLimiter),
	}
}

func (p *Paginator) limiter(provider domain.ProviderType) *RateLimiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[provider]
	if !ok {
		l = NewRateLimiter(provider, p.perSecond)
		p.limiters[provider] = l
	}
	return l
}

// Paginate fetches startURL and every following page, accumulating items in
// provider order. A 401 or a rejected token refresh returns a
// *domain.ProviderError. Any other page failure stops the walk and returns
// what was gathered with Complete set to false.
func (p *Paginator) Paginate(
	ctx context.Context, sess driven.Session, decoder driven.PageDecoder,
	provider domain.ProviderType, startURL string,
) (domain.Listing, error) {
	listing := domain.Listing{Complete: true}
	limiter := p.limiter(provider)
	client := sess.Client()
	log := logger.L().With().
		Str("provider", string(provider)).
		Str("account", sess.Account().ID).
		Logger()

	seen := make(map[string]struct{})
	next := startURL
	for next != "" {
		if err := ctx.Err(); err != nil {
			return listing, err
		}
		if _, dup := seen[next]; dup {
			log.Warn().Str("url", next).Msg("pagination loop detected, stopping")
			metrics.PageFailures.WithLabelValues(string(provider), reasonLoop).Inc()
			listing.Complete = false
			break
		}
		seen[next] = struct{}{}

		page, err := p.fetchPage(ctx, client, decoder, provider, limiter, next, log)
		if errors.Is(err, errPageFailed) {
			listing.Complete = false
			break
		}
		if err != nil {
			return listing, err
		}

		listing.Items = append(listing.Items, page.Items...)
		listing.Pages++
		next = resolve(next, page.Next)
	}
	return listing, nil
}

// fetchPage fetches and decodes one page. A rate-limited response is retried
// once after the reset when the reset is near.
func (p *Paginator) fetchPage(
	ctx context.Context, client *http.Client, decoder driven.PageDecoder,
	provider domain.ProviderType, limiter *RateLimiter, pageURL string, log zerolog.Logger,
) (driven.Page, error) {
	for attempt := 0; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return driven.Page{}, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			log.Warn().Err(err).Str("url", pageURL).Msg("invalid page url")
			return driven.Page{}, pageFailure(provider, reasonTransport)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			var perr *domain.ProviderError
			if errors.As(err, &perr) {
				return driven.Page{}, perr
			}
			if ctx.Err() != nil {
				return driven.Page{}, ctx.Err()
			}
			log.Warn().Err(err).Str("url", pageURL).Msg("page request failed")
			return driven.Page{}, pageFailure(provider, reasonTransport)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
		resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized {
			metrics.PageFailures.WithLabelValues(string(provider), reasonRevoked).Inc()
			return driven.Page{}, domain.NewProviderError(provider, domain.ErrAccessRevoked)
		}

		var rlErr *RateLimitError
		if err := limiter.CheckRateLimit(resp); errors.As(err, &rlErr) {
			if attempt == 0 {
				waited, err := WaitUntil(ctx, rlErr.ResetAt)
				if err != nil {
					return driven.Page{}, err
				}
				if waited {
					continue
				}
			}
			logFailure(log, pageURL, resp.StatusCode, body, "rate limited")
			return driven.Page{}, pageFailure(provider, reasonRateLimited)
		}

		if readErr != nil {
			log.Warn().Err(readErr).Str("url", pageURL).Int("status", resp.StatusCode).Msg("reading page body failed")
			return driven.Page{}, pageFailure(provider, reasonTransport)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			logFailure(log, pageURL, resp.StatusCode, body, "unexpected page status")
			return driven.Page{}, pageFailure(provider, reasonStatus)
		}

		page, err := decoder.DecodePage(resp, body)
		if err != nil {
			logFailure(log.With().Err(err).Logger(), pageURL, resp.StatusCode, body, "undecodable page")
			return driven.Page{}, pageFailure(provider, reasonDecode)
		}

		metrics.PagesFetched.WithLabelValues(string(provider)).Inc()
		return page, nil
	}
}

func pageFailure(provider domain.ProviderType, reason string) error {
	metrics.PageFailures.WithLabelValues(string(provider), reason).Inc()
	return errPageFailed
}

func logFailure(log zerolog.Logger, pageURL string, status int, body []byte, msg string) {
	log.Warn().
		Str("url", pageURL).
		Int("status", status).
		Str("body", Excerpt(body)).
		Msg(msg)
}

// Excerpt returns the start of body for diagnostics.
func Excerpt(body []byte) string {
	if len(body) > excerptBytes {
		return string(body[:excerptBytes]) + "..."
	}
	return string(body)
}

// resolve turns a possibly relative next pointer into an absolute URL.
func resolve(current, next string) string {
	if next == "" {
		return ""
	}
	base, err := url.Parse(current)
	if err != nil {
		return next
	}
	ref, err := url.Parse(next)
	if err != nil {
		return next
	}
	return base.ResolveReference(ref).String()
}

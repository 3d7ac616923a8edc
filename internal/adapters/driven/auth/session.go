// Package auth builds authenticated HTTP sessions for connected accounts.
//
// A session wraps the account's stored OAuth token in an oauth2 token
// source. When the token expires and a refresh token exists, the next
// request refreshes it and the new token is persisted before the request
// proceeds.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/remotesync/internal/adapters/driven/oauth"
	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/logger"
	"github.com/custodia-labs/remotesync/internal/metrics"
)

var _ driven.SessionFactory = (*SessionManager)(nil)

// RefreshFunc folds a refreshed oauth2 token into a credential.
type RefreshFunc func(cred domain.Credential, tok *oauth2.Token) (domain.Credential, error)

// DefaultRefresh copies the token fields onto the credential.
func DefaultRefresh(cred domain.Credential, tok *oauth2.Token) (domain.Credential, error) {
	return cred.Refreshed(oauth.FromToken(tok), time.Now()), nil
}

// Option configures a SessionManager.
type Option func(*SessionManager)

// WithRefreshFunc replaces the callback run on every token refresh.
func WithRefreshFunc(fn RefreshFunc) Option {
	return func(m *SessionManager) { m.onRefresh = fn }
}

// WithTransport sets the base transport used by sessions and refreshes.
func WithTransport(rt http.RoundTripper) Option {
	return func(m *SessionManager) { m.transport = rt }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *SessionManager) { m.now = now }
}

// SessionManager implements driven.SessionFactory.
type SessionManager struct {
	apps      driven.AppStore
	creds     driven.CredentialsStore
	timeout   time.Duration
	transport http.RoundTripper
	onRefresh RefreshFunc
	now       func() time.Time
}

// NewSessionManager creates a session manager. Sessions time out requests
// after timeout.
func NewSessionManager(
	apps driven.AppStore, creds driven.CredentialsStore, timeout time.Duration, opts ...Option,
) *SessionManager {
	m := &SessionManager{
		apps:      apps,
		creds:     creds,
		timeout:   timeout,
		onRefresh: DefaultRefresh,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewSession loads the account's credential and builds a session.
// Returns nil and no error when the account has no credential.
func (m *SessionManager) NewSession(ctx context.Context, account domain.Account) (driven.Session, error) {
	cred, err := m.creds.GetByAccount(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred == nil {
		return nil, nil
	}
	return m.SessionFromCredential(ctx, account, *cred)
}

// SessionFromCredential builds a session for a credential the caller holds.
func (m *SessionManager) SessionFromCredential(
	ctx context.Context, account domain.Account, cred domain.Credential,
) (driven.Session, error) {
	app, err := m.apps.Get(ctx, cred.AppID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAppNotConfigured, cred.AppID)
	}
	if err != nil {
		return nil, fmt.Errorf("load oauth app: %w", err)
	}

	if cred.IsExpired(m.now()) && !cred.CanRefresh() {
		return nil, domain.NewProviderError(account.Provider, domain.ErrReauthRequired)
	}

	// Refreshes outlive the caller's deadline; the session keeps its values only.
	refreshCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, &http.Client{
		Timeout:   m.timeout,
		Transport: m.transport,
	})
	src := &persistingSource{
		base:      oauth.Config(*app, "").TokenSource(refreshCtx, oauth.ToToken(cred)),
		cred:      cred,
		provider:  account.Provider,
		store:     m.creds,
		onRefresh: m.onRefresh,
		ctx:       refreshCtx,
	}

	return &session{
		account: account,
		client: &http.Client{
			Timeout:   m.timeout,
			Transport: &oauth2.Transport{Source: src, Base: m.transport},
		},
	}, nil
}

type session struct {
	account domain.Account
	client  *http.Client
}

func (s *session) Client() *http.Client    { return s.client }
func (s *session) Account() domain.Account { return s.account }

// persistingSource saves every refreshed token through the credentials
// store. A failed save fails the request that triggered the refresh.
type persistingSource struct {
	base      oauth2.TokenSource
	provider  domain.ProviderType
	store     driven.CredentialsStore
	onRefresh RefreshFunc
	ctx       context.Context

	mu   sync.Mutex
	cred domain.Credential
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		metrics.TokenRefresh.WithLabelValues(string(s.provider), metrics.OutcomeFailed).Inc()
		return nil, classifyRefreshError(s.provider, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.cred.AccessToken {
		return tok, nil
	}

	updated, err := s.onRefresh(s.cred, tok)
	if err != nil {
		return nil, fmt.Errorf("apply refreshed token: %w", err)
	}
	if err := s.store.Save(s.ctx, updated); err != nil {
		return nil, fmt.Errorf("persist refreshed token: %w", err)
	}
	s.cred = updated

	metrics.TokenRefresh.WithLabelValues(string(s.provider), metrics.OutcomeSuccess).Inc()
	logger.Debug("refreshed %s token for account %s", s.provider.DisplayName(), updated.AccountID)
	return tok, nil
}

// reauthMarkers are OAuth error codes meaning the grant itself is dead.
var reauthMarkers = []string{"invalid_grant", "invalid_client", "unauthorized_client", "revoked"}

// classifyRefreshError maps a rejected refresh to ErrReauthRequired.
// Other failures (network, provider 5xx) are returned wrapped and are not fatal.
func classifyRefreshError(provider domain.ProviderType, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if isReauthCode(retrieveErr.ErrorCode) {
			return domain.NewProviderError(provider, domain.ErrReauthRequired)
		}
		if retrieveErr.Response != nil {
			switch retrieveErr.Response.StatusCode {
			case http.StatusBadRequest, http.StatusUnauthorized:
				return domain.NewProviderError(provider, domain.ErrReauthRequired)
			}
		}
	}
	if isReauthCode(err.Error()) {
		return domain.NewProviderError(provider, domain.ErrReauthRequired)
	}
	return fmt.Errorf("refresh %s token: %w", provider.DisplayName(), err)
}

func isReauthCode(s string) bool {
	s = strings.ToLower(s)
	for _, marker := range reauthMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

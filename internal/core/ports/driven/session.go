package driven

import (
	"context"
	"net/http"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// Session is an authenticated HTTP session bound to one account's credential.
// Token refresh, when the credential supports it, happens inside Client.
type Session interface {
	// Client returns the HTTP client carrying the account's token.
	Client() *http.Client

	// Account returns the account the session acts for.
	Account() domain.Account
}

// SessionFactory builds sessions for accounts.
type SessionFactory interface {
	// NewSession loads the account's credential and builds a session.
	// Returns nil and no error when the account has no credential, which
	// callers treat as "nothing to sync".
	NewSession(ctx context.Context, account domain.Account) (Session, error)

	// SessionFromCredential builds a session for a credential the caller
	// already holds.
	SessionFromCredential(ctx context.Context, account domain.Account, cred domain.Credential) (Session, error)
}

// Authorizer runs the OAuth authorization-code exchange.
type Authorizer interface {
	// AuthCodeURL returns the provider URL the user is sent to.
	AuthCodeURL(app domain.OAuthApp, redirectURI, state, codeVerifier string) string

	// Exchange trades an authorization code for a token.
	Exchange(ctx context.Context, app domain.OAuthApp, code, redirectURI, codeVerifier string) (domain.TokenGrant, error)
}

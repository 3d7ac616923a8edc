// Package oauth runs the OAuth 2.0 authorization-code flow against the
// supported providers on top of golang.org/x/oauth2.
package oauth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

var _ driven.Authorizer = (*Authorizer)(nil)

// Config builds the oauth2 configuration of an app.
func Config(app domain.OAuthApp, redirectURI string) *oauth2.Config {
	ep := app.Endpoint()
	return &oauth2.Config{
		ClientID:     app.ClientID,
		ClientSecret: app.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  ep.AuthURL,
			TokenURL: ep.TokenURL,
		},
		RedirectURL: redirectURI,
		Scopes:      app.EffectiveScopes(),
	}
}

// ToToken converts a stored credential to an oauth2 token.
func ToToken(cred domain.Credential) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
		TokenType:    cred.TokenType,
		Expiry:       cred.ExpiresAt,
	}
}

// FromToken converts an oauth2 token to a grant.
func FromToken(tok *oauth2.Token) domain.TokenGrant {
	return domain.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
}

// Authorizer implements driven.Authorizer with PKCE (S256).
type Authorizer struct {
	client *http.Client
}

// NewAuthorizer creates an authorizer whose token requests time out after timeout.
func NewAuthorizer(timeout time.Duration) *Authorizer {
	return &Authorizer{client: &http.Client{Timeout: timeout}}
}

// AuthCodeURL returns the provider consent URL.
func (a *Authorizer) AuthCodeURL(app domain.OAuthApp, redirectURI, state, codeVerifier string) string {
	opts := []oauth2.AuthCodeOption{oauth2.AccessTypeOffline}
	if codeVerifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(codeVerifier))
	}
	return Config(app, redirectURI).AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a token.
func (a *Authorizer) Exchange(
	ctx context.Context, app domain.OAuthApp, code, redirectURI, codeVerifier string,
) (domain.TokenGrant, error) {
	var opts []oauth2.AuthCodeOption
	if codeVerifier != "" {
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	tok, err := Config(app, redirectURI).Exchange(ctx, code, opts...)
	if err != nil {
		return domain.TokenGrant{}, fmt.Errorf("exchange code for %s token: %w", app.Provider.DisplayName(), err)
	}
	return FromToken(tok), nil
}

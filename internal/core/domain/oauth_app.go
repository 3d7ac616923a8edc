package domain

import "time"

// OAuthApp is the client registration used to authorise accounts and to
// refresh their tokens. One app serves every account of its provider.
type OAuthApp struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`
	// Name is the user-friendly name (e.g., "Docs GitHub App").
	Name string `json:"name"`
	// Provider identifies the source-control host.
	Provider ProviderType `json:"provider"`
	// ClientID is the OAuth client ID from the developer console.
	ClientID string `json:"client_id"`
	// ClientSecret is the OAuth client secret from the developer console.
	ClientSecret string `json:"client_secret"`
	// Scopes are the OAuth scopes to request.
	Scopes []string `json:"scopes"`
	// AuthURL overrides the provider's authorization endpoint (self-hosted instances).
	AuthURL string `json:"auth_url,omitempty"`
	// TokenURL overrides the provider's token endpoint (self-hosted instances).
	TokenURL string `json:"token_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the fields required to run an OAuth flow.
func (a *OAuthApp) Validate() error {
	if a.ID == "" || a.ClientID == "" || a.ClientSecret == "" || !a.Provider.IsValid() {
		return ErrInvalidInput
	}
	return nil
}

// Endpoint returns the app's OAuth endpoint, falling back to the provider
// defaults for any URL not overridden.
func (a *OAuthApp) Endpoint() OAuthEndpoint {
	ep := a.Provider.DefaultOAuthEndpoint()
	if a.AuthURL != "" {
		ep.AuthURL = a.AuthURL
	}
	if a.TokenURL != "" {
		ep.TokenURL = a.TokenURL
	}
	return ep
}

// EffectiveScopes returns the configured scopes or the provider defaults.
func (a *OAuthApp) EffectiveScopes() []string {
	if len(a.Scopes) > 0 {
		return a.Scopes
	}
	return a.Provider.DefaultScopes()
}

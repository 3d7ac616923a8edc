package domain

import "time"

// Credential stores the OAuth token of one connected account.
// Each Account has at most one Credential.
type Credential struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`
	// AccountID links to the Account this credential belongs to (1:1).
	AccountID string `json:"account_id"`
	// AppID links to the OAuthApp used to obtain and refresh the token.
	AppID string `json:"app_id"`

	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`
	// ExpiresAt is when the access token expires. Zero means it never does.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenGrant is a token payload returned by a provider, either from an
// authorization-code exchange or from a refresh.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
}

// HasExpiry returns true if the access token carries an expiry.
func (c *Credential) HasExpiry() bool {
	return !c.ExpiresAt.IsZero()
}

// IsExpired returns true if the access token has expired at now.
func (c *Credential) IsExpired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(c.ExpiresAt)
}

// CanRefresh returns true if a refresh token is available.
func (c *Credential) CanRefresh() bool {
	return c.RefreshToken != ""
}

// Usable reports whether the credential can authenticate a request at now,
// either directly or after a refresh.
func (c *Credential) Usable(now time.Time) bool {
	if c.AccessToken == "" && !c.CanRefresh() {
		return false
	}
	return !c.IsExpired(now) || c.CanRefresh()
}

// Refreshed returns a copy of c carrying the refreshed token fields.
// Providers that do not rotate refresh tokens return an empty one, in which
// case the stored refresh token is kept.
func (c Credential) Refreshed(grant TokenGrant, now time.Time) Credential {
	c.AccessToken = grant.AccessToken
	if grant.RefreshToken != "" {
		c.RefreshToken = grant.RefreshToken
	}
	if grant.TokenType != "" {
		c.TokenType = grant.TokenType
	}
	c.ExpiresAt = grant.ExpiresAt
	c.UpdatedAt = now
	return c
}

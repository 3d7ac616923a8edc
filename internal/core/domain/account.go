package domain

import "time"

// Account is a user's connection to one provider identity.
// Unique on (Provider, UID).
type Account struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`
	// UserID is the local user owning this connection.
	UserID string `json:"user_id"`
	// Provider identifies the source-control host.
	Provider ProviderType `json:"provider"`
	// UID is the provider's stable user identifier.
	UID string `json:"uid"`
	// Username is the provider login, for display.
	Username string `json:"username"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthorizationRequest is the pending state of an authorization-code flow.
type AuthorizationRequest struct {
	AppID        string
	Provider     ProviderType
	URL          string
	State        string
	CodeVerifier string
	RedirectURI  string
}

// Identity is the provider-side description of the authenticated user.
type Identity struct {
	UID      string
	Username string
}

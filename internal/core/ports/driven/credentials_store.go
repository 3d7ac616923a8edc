package driven

import (
	"context"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// CredentialsStore persists account tokens. An account has at most one
// credential; Save on an account that already has one replaces it in place.
type CredentialsStore interface {
	// Save stores a credential. Creates if new, updates if exists.
	Save(ctx context.Context, cred domain.Credential) error

	// Get retrieves a credential by ID.
	Get(ctx context.Context, id string) (*domain.Credential, error)

	// GetByAccount retrieves the credential of an account.
	// Returns nil and no error if the account has none.
	GetByAccount(ctx context.Context, accountID string) (*domain.Credential, error)

	// Delete removes a credential by ID.
	Delete(ctx context.Context, id string) error
}

package driven

import (
	"context"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// AccountStore persists connected provider accounts.
type AccountStore interface {
	// Save stores an account, keyed by (provider, uid). When an account with
	// the same identity exists its ID is kept and written back to account.
	Save(ctx context.Context, account *domain.Account) error

	// Get retrieves an account by ID.
	Get(ctx context.Context, id string) (*domain.Account, error)

	// List returns all accounts.
	List(ctx context.Context) ([]domain.Account, error)

	// ListByUser returns the accounts of a user.
	ListByUser(ctx context.Context, userID string) ([]domain.Account, error)

	// Delete removes an account and, through it, its credential and relations.
	Delete(ctx context.Context, id string) error
}

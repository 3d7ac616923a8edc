package driving

import (
	"context"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// SyncOrchestrator mirrors the repositories and organizations visible to
// connected accounts.
type SyncOrchestrator interface {
	// Sync runs one pass for an account.
	Sync(ctx context.Context, accountID string) (*domain.SyncResult, error)

	// SyncUser runs one pass for every account of a user.
	SyncUser(ctx context.Context, userID string) ([]domain.SyncResult, error)

	// SyncAll runs one pass for every account.
	SyncAll(ctx context.Context) ([]domain.SyncResult, error)

	// Status returns sync status for an account.
	Status(ctx context.Context, accountID string) (*SyncStatus, error)

	// SetDeletionPolicy changes the policy applied by later passes.
	SetDeletionPolicy(policy domain.DeletionPolicy)
}

// SyncStatus represents the current state of a sync pass.
type SyncStatus struct {
	// AccountID identifies the account.
	AccountID string

	// Running indicates if a pass is currently in progress.
	Running bool

	// Stage names the step in progress (repositories, organizations, relations, prune).
	Stage string

	// ItemsProcessed is the count of payload items handled so far.
	ItemsProcessed int

	// ErrorCount is the number of items that failed to map.
	ErrorCount int
}

package driven

import (
	"context"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// AppStore persists OAuth app registrations.
type AppStore interface {
	// Save stores an app. Creates if new, updates if exists.
	Save(ctx context.Context, app domain.OAuthApp) error

	// Get retrieves an app by ID.
	Get(ctx context.Context, id string) (*domain.OAuthApp, error)

	// List returns all apps.
	List(ctx context.Context) ([]domain.OAuthApp, error)

	// ListByProvider returns the apps registered for a provider.
	ListByProvider(ctx context.Context, provider domain.ProviderType) ([]domain.OAuthApp, error)

	// Delete removes an app by ID.
	// Returns domain.ErrAppInUse while credentials still reference it.
	Delete(ctx context.Context, id string) error
}

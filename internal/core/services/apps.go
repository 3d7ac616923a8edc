package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/core/ports/driving"
)

// Ensure AppService implements the interface.
var _ driving.AppService = (*AppService)(nil)

// AppService manages OAuth app registrations.
type AppService struct {
	store driven.AppStore
}

// NewAppService creates a new app service.
func NewAppService(store driven.AppStore) *AppService {
	return &AppService{store: store}
}

// Save creates or updates an app.
func (s *AppService) Save(ctx context.Context, app domain.OAuthApp) error {
	if err := app.Validate(); err != nil {
		return fmt.Errorf("app %q: %w", app.ID, err)
	}
	return s.store.Save(ctx, app)
}

// Get retrieves an app by ID.
func (s *AppService) Get(ctx context.Context, id string) (*domain.OAuthApp, error) {
	return s.store.Get(ctx, id)
}

// List returns all apps.
func (s *AppService) List(ctx context.Context) ([]domain.OAuthApp, error) {
	return s.store.List(ctx)
}

// Delete removes an app.
// Returns domain.ErrAppInUse while an account credential still uses it.
func (s *AppService) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Get(ctx, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

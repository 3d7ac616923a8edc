package driving

import (
	"context"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// AccountService connects provider accounts and lists what they mirror.
type AccountService interface {
	// BeginConnect starts an authorization-code flow with an app.
	BeginConnect(ctx context.Context, appID, redirectURI string) (*domain.AuthorizationRequest, error)

	// CompleteConnect exchanges the code, resolves the provider identity and
	// stores the account with its credential.
	CompleteConnect(
		ctx context.Context, userID string, req domain.AuthorizationRequest, code string,
	) (*domain.Account, error)

	// List returns the accounts of a user.
	List(ctx context.Context, userID string) ([]domain.Account, error)

	// Disconnect removes an account, its credential and its relations.
	Disconnect(ctx context.Context, accountID string) error

	// Repositories returns the repositories a user sees.
	Repositories(ctx context.Context, userID string) ([]domain.LinkedRepository, error)

	// Organizations returns the organizations a user belongs to.
	Organizations(ctx context.Context, userID string) ([]domain.RemoteOrganization, error)
}

// AppService manages OAuth app registrations.
type AppService interface {
	Save(ctx context.Context, app domain.OAuthApp) error
	Get(ctx context.Context, id string) (*domain.OAuthApp, error)
	List(ctx context.Context) ([]domain.OAuthApp, error)
	Delete(ctx context.Context, id string) error
}

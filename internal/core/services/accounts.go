package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/core/ports/driving"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// Ensure AccountService implements the interface.
var _ driving.AccountService = (*AccountService)(nil)

// AccountService connects provider accounts to local users.
type AccountService struct {
	apps       driven.AppStore
	accounts   driven.AccountStore
	creds      driven.CredentialsStore
	remotes    driven.RemoteStore
	sessions   driven.SessionFactory
	providers  driven.ProviderRegistry
	authorizer driven.Authorizer
	now        func() time.Time
}

// NewAccountService creates a new account service.
func NewAccountService(
	apps driven.AppStore,
	accounts driven.AccountStore,
	creds driven.CredentialsStore,
	remotes driven.RemoteStore,
	sessions driven.SessionFactory,
	providers driven.ProviderRegistry,
	authorizer driven.Authorizer,
) *AccountService {
	return &AccountService{
		apps:       apps,
		accounts:   accounts,
		creds:      creds,
		remotes:    remotes,
		sessions:   sessions,
		providers:  providers,
		authorizer: authorizer,
		now:        time.Now,
	}
}

// BeginConnect prepares a PKCE authorization-code flow for an app.
func (s *AccountService) BeginConnect(
	ctx context.Context, appID, redirectURI string,
) (*domain.AuthorizationRequest, error) {
	app, err := s.apps.Get(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	if err := app.Validate(); err != nil {
		return nil, fmt.Errorf("app %s: %w", appID, err)
	}
	if _, err := s.providers.Get(app.Provider); err != nil {
		return nil, err
	}

	verifier, err := generateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}
	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	return &domain.AuthorizationRequest{
		AppID:        app.ID,
		Provider:     app.Provider,
		URL:          s.authorizer.AuthCodeURL(*app, redirectURI, state, verifier),
		State:        state,
		CodeVerifier: verifier,
		RedirectURI:  redirectURI,
	}, nil
}

// CompleteConnect exchanges the code, looks up who the token belongs to and
// stores the account. Reconnecting the same provider user updates the
// existing account and replaces its credential.
func (s *AccountService) CompleteConnect(
	ctx context.Context, userID string, req domain.AuthorizationRequest, code string,
) (*domain.Account, error) {
	if userID == "" || code == "" {
		return nil, domain.ErrInvalidInput
	}
	app, err := s.apps.Get(ctx, req.AppID)
	if err != nil {
		return nil, fmt.Errorf("get app: %w", err)
	}
	provider, err := s.providers.Get(app.Provider)
	if err != nil {
		return nil, err
	}

	grant, err := s.authorizer.Exchange(ctx, *app, code, req.RedirectURI, req.CodeVerifier)
	if err != nil {
		return nil, err
	}

	now := s.now()
	account := domain.Account{ID: uuid.NewString(), UserID: userID, Provider: app.Provider}
	cred := domain.Credential{
		ID:           uuid.NewString(),
		AccountID:    account.ID,
		AppID:        app.ID,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		TokenType:    grant.TokenType,
		ExpiresAt:    grant.ExpiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	sess, err := s.sessions.SessionFromCredential(ctx, account, cred)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	identity, err := provider.Identity(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("resolve %s identity: %w", app.Provider.DisplayName(), err)
	}
	account.UID = identity.UID
	account.Username = identity.Username

	if err := s.accounts.Save(ctx, &account); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	if account.UserID != userID {
		return nil, fmt.Errorf("%w: %s account %s is connected to another user",
			domain.ErrAlreadyExists, app.Provider.DisplayName(), account.Username)
	}

	cred.AccountID = account.ID
	if err := s.creds.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}

	logger.Info("Connected %s account %s for user %s", app.Provider.DisplayName(), account.Username, userID)
	return &account, nil
}

// List returns the accounts of a user, or every account for "".
func (s *AccountService) List(ctx context.Context, userID string) ([]domain.Account, error) {
	return s.accounts.ListByUser(ctx, userID)
}

// Disconnect removes an account with its credential and the relations it
// asserted. Canonical repositories and organizations are kept.
func (s *AccountService) Disconnect(ctx context.Context, accountID string) error {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return err
	}

	if _, err := s.remotes.DeleteStaleRelations(ctx, account.UserID, account.ID, nil); err != nil {
		return fmt.Errorf("delete relations: %w", err)
	}
	if _, err := s.remotes.DeleteStaleOrganizationRelations(ctx, account.UserID, account.ID, nil); err != nil {
		return fmt.Errorf("delete organization relations: %w", err)
	}

	cred, err := s.creds.GetByAccount(ctx, account.ID)
	if err != nil {
		return fmt.Errorf("get credential: %w", err)
	}
	if cred != nil {
		if err := s.creds.Delete(ctx, cred.ID); err != nil {
			return fmt.Errorf("delete credential: %w", err)
		}
	}

	if err := s.accounts.Delete(ctx, account.ID); err != nil {
		return err
	}
	logger.Info("Disconnected %s account %s", account.Provider.DisplayName(), account.Username)
	return nil
}

// Repositories returns the repositories a user sees through any account.
func (s *AccountService) Repositories(ctx context.Context, userID string) ([]domain.LinkedRepository, error) {
	return s.remotes.ListUserRepositories(ctx, userID)
}

// Organizations returns the organizations a user belongs to.
func (s *AccountService) Organizations(ctx context.Context, userID string) ([]domain.RemoteOrganization, error) {
	return s.remotes.ListUserOrganizations(ctx, userID)
}

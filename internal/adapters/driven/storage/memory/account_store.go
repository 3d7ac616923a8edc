package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

var (
	_ driven.AppStore         = (*AppStore)(nil)
	_ driven.AccountStore     = (*AccountStore)(nil)
	_ driven.CredentialsStore = (*CredentialsStore)(nil)
)

// AppStore is an in-memory implementation of driven.AppStore.
type AppStore struct {
	mu    sync.RWMutex
	apps  map[string]domain.OAuthApp
	creds *CredentialsStore
}

// NewAppStore creates an in-memory app store. When creds is non-nil,
// Delete refuses apps still referenced by a credential.
func NewAppStore(creds *CredentialsStore) *AppStore {
	return &AppStore{
		apps:  make(map[string]domain.OAuthApp),
		creds: creds,
	}
}

// Save stores or updates an OAuth app.
func (s *AppStore) Save(_ context.Context, app domain.OAuthApp) error {
	if app.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.apps[app.ID]; ok {
		app.CreatedAt = existing.CreatedAt
	}
	stamp(&app.CreatedAt, &app.UpdatedAt)
	s.apps[app.ID] = app
	return nil
}

// Get retrieves an OAuth app by ID.
func (s *AppStore) Get(_ context.Context, id string) (*domain.OAuthApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &app, nil
}

// List returns all OAuth apps ordered by name.
func (s *AppStore) List(ctx context.Context) ([]domain.OAuthApp, error) {
	return s.ListByProvider(ctx, "")
}

// ListByProvider returns the apps of a provider, or all apps for "".
func (s *AppStore) ListByProvider(_ context.Context, provider domain.ProviderType) ([]domain.OAuthApp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.OAuthApp, 0, len(s.apps))
	for _, app := range s.apps {
		if provider == "" || app.Provider == provider {
			result = append(result, app)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// Delete removes an OAuth app.
func (s *AppStore) Delete(_ context.Context, id string) error {
	if s.creds != nil {
		if n := s.creds.countByApp(id); n > 0 {
			return fmt.Errorf("%w: %d credential(s)", domain.ErrAppInUse, n)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apps, id)
	return nil
}

// AccountStore is an in-memory implementation of driven.AccountStore.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
}

// NewAccountStore creates an in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]domain.Account)}
}

// Save upserts on (provider, uid), writing the stored ID and owner back.
func (s *AccountStore) Save(_ context.Context, account *domain.Account) error {
	if account == nil || account.ID == "" || account.UserID == "" || account.UID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.accounts {
		if existing.Provider == account.Provider && existing.UID == account.UID {
			existing.Username = account.Username
			existing.UpdatedAt = time.Now()
			s.accounts[id] = existing
			*account = existing
			return nil
		}
	}

	stamp(&account.CreatedAt, &account.UpdatedAt)
	s.accounts[account.ID] = *account
	return nil
}

// Get retrieves an account by ID.
func (s *AccountStore) Get(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &account, nil
}

// List returns all accounts.
func (s *AccountStore) List(ctx context.Context) ([]domain.Account, error) {
	return s.ListByUser(ctx, "")
}

// ListByUser returns the accounts of a user, or all accounts for "".
func (s *AccountStore) ListByUser(_ context.Context, userID string) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		if userID == "" || account.UserID == userID {
			result = append(result, account)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].UserID != result[j].UserID {
			return result[i].UserID < result[j].UserID
		}
		if result[i].Provider != result[j].Provider {
			return result[i].Provider < result[j].Provider
		}
		return result[i].Username < result[j].Username
	})
	return result, nil
}

// Delete removes an account.
func (s *AccountStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accounts, id)
	return nil
}

// CredentialsStore is an in-memory implementation of driven.CredentialsStore.
// It keeps one credential per account.
type CredentialsStore struct {
	mu    sync.RWMutex
	creds map[string]domain.Credential // keyed by account ID
}

// NewCredentialsStore creates an in-memory credentials store.
func NewCredentialsStore() *CredentialsStore {
	return &CredentialsStore{creds: make(map[string]domain.Credential)}
}

// Save upserts the credential of an account.
func (s *CredentialsStore) Save(_ context.Context, cred domain.Credential) error {
	if cred.ID == "" || cred.AccountID == "" || cred.AppID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.creds[cred.AccountID]; ok {
		cred.ID = existing.ID
		cred.CreatedAt = existing.CreatedAt
	}
	if cred.TokenType == "" {
		cred.TokenType = "Bearer"
	}
	stamp(&cred.CreatedAt, &cred.UpdatedAt)
	s.creds[cred.AccountID] = cred
	return nil
}

// Get retrieves a credential by ID.
func (s *CredentialsStore) Get(_ context.Context, id string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cred := range s.creds {
		if cred.ID == id {
			return &cred, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetByAccount retrieves the credential of an account, or nil if none.
func (s *CredentialsStore) GetByAccount(_ context.Context, accountID string) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[accountID]
	if !ok {
		return nil, nil
	}
	return &cred, nil
}

// Delete removes a credential by ID.
func (s *CredentialsStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for accountID, cred := range s.creds {
		if cred.ID == id {
			delete(s.creds, accountID)
		}
	}
	return nil
}

func (s *CredentialsStore) countByApp(appID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, cred := range s.creds {
		if cred.AppID == appID {
			n++
		}
	}
	return n
}

// stamp fills created/updated timestamps before a write.
func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

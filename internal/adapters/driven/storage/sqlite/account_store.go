package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

// ==================== App Store ====================

type appStore struct {
	store *Store
}

var _ driven.AppStore = (*appStore)(nil)

const appColumns = `id, name, provider, client_id, client_secret, scopes, auth_url, token_url, created_at, updated_at`

// Save stores or updates an OAuth app.
func (s *appStore) Save(ctx context.Context, app domain.OAuthApp) error {
	if app.ID == "" {
		return domain.ErrInvalidInput
	}
	stamp(&app.CreatedAt, &app.UpdatedAt, time.Now())

	scopesJSON, err := json.Marshal(app.Scopes)
	if err != nil {
		return fmt.Errorf("marshalling scopes: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO oauth_apps (`+appColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			provider = excluded.provider,
			client_id = excluded.client_id,
			client_secret = excluded.client_secret,
			scopes = excluded.scopes,
			auth_url = excluded.auth_url,
			token_url = excluded.token_url,
			updated_at = excluded.updated_at
	`, app.ID, app.Name, string(app.Provider), app.ClientID, app.ClientSecret, string(scopesJSON),
		nullString(app.AuthURL), nullString(app.TokenURL), formatTime(app.CreatedAt), formatTime(app.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving oauth app: %w", err)
	}
	return nil
}

// Get retrieves an OAuth app by ID.
func (s *appStore) Get(ctx context.Context, id string) (*domain.OAuthApp, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+appColumns+` FROM oauth_apps WHERE id = ?`, id)
	return scanApp(row)
}

// List returns all OAuth apps.
func (s *appStore) List(ctx context.Context) ([]domain.OAuthApp, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+appColumns+` FROM oauth_apps ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("querying oauth apps: %w", err)
	}
	defer rows.Close()
	return scanApps(rows)
}

// ListByProvider returns the OAuth apps of a provider.
func (s *appStore) ListByProvider(ctx context.Context, provider domain.ProviderType) ([]domain.OAuthApp, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+appColumns+` FROM oauth_apps WHERE provider = ? ORDER BY name`, string(provider))
	if err != nil {
		return nil, fmt.Errorf("querying oauth apps by provider: %w", err)
	}
	defer rows.Close()
	return scanApps(rows)
}

// Delete removes an OAuth app unless credentials still use it.
func (s *appStore) Delete(ctx context.Context, id string) error {
	var count int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM credentials WHERE app_id = ?", id).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking app usage: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %d credential(s)", domain.ErrAppInUse, count)
	}

	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM oauth_apps WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting oauth app: %w", err)
	}
	return nil
}

func scanApp(row rowScanner) (*domain.OAuthApp, error) {
	var app domain.OAuthApp
	var provider, scopesJSON, createdAt, updatedAt string
	var authURL, tokenURL sql.NullString

	if err := row.Scan(&app.ID, &app.Name, &provider, &app.ClientID, &app.ClientSecret,
		&scopesJSON, &authURL, &tokenURL, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning oauth app: %w", err)
	}

	app.Provider = domain.ProviderType(provider)
	app.AuthURL = authURL.String
	app.TokenURL = tokenURL.String
	app.CreatedAt = parseTime(createdAt)
	app.UpdatedAt = parseTime(updatedAt)
	if err := json.Unmarshal([]byte(scopesJSON), &app.Scopes); err != nil {
		return nil, fmt.Errorf("unmarshalling scopes: %w", err)
	}
	return &app, nil
}

func scanApps(rows *sql.Rows) ([]domain.OAuthApp, error) {
	var apps []domain.OAuthApp //nolint:prealloc // size unknown from query
	for rows.Next() {
		app, err := scanApp(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating oauth apps: %w", err)
	}
	return apps, nil
}

// ==================== Account Store ====================

type accountStore struct {
	store *Store
}

var _ driven.AccountStore = (*accountStore)(nil)

const accountColumns = `id, user_id, provider, uid, username, created_at, updated_at`

// Save upserts an account on (provider, uid). The owning user of an existing
// account is never changed; the stored ID and user are written back.
func (s *accountStore) Save(ctx context.Context, account *domain.Account) error {
	if account == nil || account.ID == "" || account.UserID == "" || account.UID == "" {
		return domain.ErrInvalidInput
	}
	stamp(&account.CreatedAt, &account.UpdatedAt, time.Now())

	var id, userID, createdAt string
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, uid) DO UPDATE SET
			username = excluded.username,
			updated_at = excluded.updated_at
		RETURNING id, user_id, created_at
	`, account.ID, account.UserID, string(account.Provider), account.UID, account.Username,
		formatTime(account.CreatedAt), formatTime(account.UpdatedAt)).Scan(&id, &userID, &createdAt)
	if err != nil {
		return fmt.Errorf("saving account: %w", err)
	}

	account.ID = id
	account.UserID = userID
	account.CreatedAt = parseTime(createdAt)
	return nil
}

// Get retrieves an account by ID.
func (s *accountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	return scanAccount(row)
}

// List returns all accounts.
func (s *accountStore) List(ctx context.Context) ([]domain.Account, error) {
	rows, err := s.store.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY user_id, provider, username`)
	if err != nil {
		return nil, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// ListByUser returns the accounts of a user.
func (s *accountStore) ListByUser(ctx context.Context, userID string) ([]domain.Account, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY provider, username`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying accounts by user: %w", err)
	}
	defer rows.Close()
	return scanAccounts(rows)
}

// Delete removes an account; its credential and relations cascade.
func (s *accountStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return nil
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var account domain.Account
	var provider, createdAt, updatedAt string

	if err := row.Scan(&account.ID, &account.UserID, &provider, &account.UID, &account.Username,
		&createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning account: %w", err)
	}

	account.Provider = domain.ProviderType(provider)
	account.CreatedAt = parseTime(createdAt)
	account.UpdatedAt = parseTime(updatedAt)
	return &account, nil
}

func scanAccounts(rows *sql.Rows) ([]domain.Account, error) {
	var accounts []domain.Account //nolint:prealloc // size unknown from query
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating accounts: %w", err)
	}
	return accounts, nil
}

// ==================== Credentials Store ====================

type credentialsStore struct {
	store *Store
}

var _ driven.CredentialsStore = (*credentialsStore)(nil)

const credentialColumns = `id, account_id, app_id, access_token, refresh_token, token_type, expires_at, created_at, updated_at`

// Save upserts the credential of an account. An account keeps a single row:
// a save for an account that already has one updates it in place.
func (s *credentialsStore) Save(ctx context.Context, cred domain.Credential) error {
	if cred.ID == "" || cred.AccountID == "" || cred.AppID == "" {
		return domain.ErrInvalidInput
	}
	stamp(&cred.CreatedAt, &cred.UpdatedAt, time.Now())
	if cred.TokenType == "" {
		cred.TokenType = "Bearer"
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO credentials (`+credentialColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			app_id = excluded.app_id,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`, cred.ID, cred.AccountID, cred.AppID, cred.AccessToken, nullString(cred.RefreshToken),
		cred.TokenType, formatNullableTime(cred.ExpiresAt), formatTime(cred.CreatedAt), formatTime(cred.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving credential: %w", err)
	}
	return nil
}

// Get retrieves a credential by ID.
func (s *credentialsStore) Get(ctx context.Context, id string) (*domain.Credential, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+credentialColumns+` FROM credentials WHERE id = ?`, id)
	return scanCredential(row)
}

// GetByAccount retrieves the credential of an account, or nil if none.
func (s *credentialsStore) GetByAccount(ctx context.Context, accountID string) (*domain.Credential, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE account_id = ?`, accountID)

	cred, err := scanCredential(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return cred, err
}

// Delete removes a credential by ID.
func (s *credentialsStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, "DELETE FROM credentials WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

func scanCredential(row rowScanner) (*domain.Credential, error) {
	var cred domain.Credential
	var refreshToken, expiresAt sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&cred.ID, &cred.AccountID, &cred.AppID, &cred.AccessToken, &refreshToken,
		&cred.TokenType, &expiresAt, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning credential: %w", err)
	}

	cred.RefreshToken = refreshToken.String
	cred.ExpiresAt = parseNullableTime(expiresAt)
	cred.CreatedAt = parseTime(createdAt)
	cred.UpdatedAt = parseTime(updatedAt)
	return &cred, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

// remoteStore implements driven.RemoteStore.
type remoteStore struct {
	store *Store
}

var _ driven.RemoteStore = (*remoteStore)(nil)

const repositoryColumns = `id, provider, remote_id, full_name, name, description, private, clone_url,
	ssh_url, html_url, avatar_url, vcs, default_branch, organization_id, json, created_at, updated_at`

const organizationColumns = `id, provider, remote_id, slug, name, email, url, avatar_url, json, created_at, updated_at`

// ==================== Repositories ====================

// GetRepository retrieves a repository by provider and full name.
func (s *remoteStore) GetRepository(
	ctx context.Context, provider domain.ProviderType, fullName string,
) (*domain.RemoteRepository, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+repositoryColumns+` FROM remote_repositories WHERE provider = ? AND full_name = ?`,
		string(provider), fullName)
	return scanRepository(row)
}

// GetRepositoryByID retrieves a repository by ID.
func (s *remoteStore) GetRepositoryByID(ctx context.Context, id string) (*domain.RemoteRepository, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+repositoryColumns+` FROM remote_repositories WHERE id = ?`, id)
	return scanRepository(row)
}

// UpsertRepository creates or updates the repository keyed by (provider, full_name).
func (s *remoteStore) UpsertRepository(ctx context.Context, repo *domain.RemoteRepository) error {
	if repo == nil || repo.ID == "" || repo.FullName == "" || !repo.Provider.IsValid() {
		return domain.ErrInvalidInput
	}
	stamp(&repo.CreatedAt, &repo.UpdatedAt, time.Now())
	if repo.VCS == "" {
		repo.VCS = domain.VCSGit
	}

	var id, createdAt string
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO remote_repositories (`+repositoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, full_name) DO UPDATE SET
			remote_id = excluded.remote_id,
			name = excluded.name,
			description = excluded.description,
			private = excluded.private,
			clone_url = excluded.clone_url,
			ssh_url = excluded.ssh_url,
			html_url = excluded.html_url,
			avatar_url = excluded.avatar_url,
			vcs = excluded.vcs,
			default_branch = excluded.default_branch,
			organization_id = excluded.organization_id,
			json = excluded.json,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, repo.ID, string(repo.Provider), repo.RemoteID, repo.FullName, repo.Name,
		nullString(repo.Description), boolToInt(repo.Private), repo.CloneURL,
		nullString(repo.SSHURL), nullString(repo.HTMLURL), nullString(repo.AvatarURL),
		repo.VCS, nullString(repo.DefaultBranch), nullString(repo.OrganizationID), nullJSON(repo.JSON),
		formatTime(repo.CreatedAt), formatTime(repo.UpdatedAt)).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("upserting repository %s: %w", repo.FullName, err)
	}

	repo.ID = id
	repo.CreatedAt = parseTime(createdAt)
	return nil
}

// ==================== Organizations ====================

// GetOrganization retrieves an organization by provider and slug.
func (s *remoteStore) GetOrganization(
	ctx context.Context, provider domain.ProviderType, slug string,
) (*domain.RemoteOrganization, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+organizationColumns+` FROM remote_organizations WHERE provider = ? AND slug = ?`,
		string(provider), slug)
	return scanOrganization(row)
}

// UpsertOrganization creates or updates the organization keyed by (provider, slug).
func (s *remoteStore) UpsertOrganization(ctx context.Context, org *domain.RemoteOrganization) error {
	if org == nil || org.ID == "" || org.Slug == "" || !org.Provider.IsValid() {
		return domain.ErrInvalidInput
	}
	stamp(&org.CreatedAt, &org.UpdatedAt, time.Now())

	var id, createdAt string
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO remote_organizations (`+organizationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, slug) DO UPDATE SET
			remote_id = excluded.remote_id,
			name = excluded.name,
			email = excluded.email,
			url = excluded.url,
			avatar_url = excluded.avatar_url,
			json = excluded.json,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, org.ID, string(org.Provider), org.RemoteID, org.Slug, org.Name,
		nullString(org.Email), nullString(org.URL), nullString(org.AvatarURL), nullJSON(org.JSON),
		formatTime(org.CreatedAt), formatTime(org.UpdatedAt)).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("upserting organization %s: %w", org.Slug, err)
	}

	org.ID = id
	org.CreatedAt = parseTime(createdAt)
	return nil
}

// ==================== Relations ====================

// EnsureRelation gets or creates the relation keyed by (repository, user).
func (s *remoteStore) EnsureRelation(ctx context.Context, rel *domain.RemoteRelation) error {
	if rel == nil || rel.ID == "" || rel.RepositoryID == "" || rel.UserID == "" || rel.AccountID == "" {
		return domain.ErrInvalidInput
	}
	stamp(&rel.CreatedAt, &rel.UpdatedAt, time.Now())

	var id, createdAt string
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO remote_relations (id, repository_id, user_id, account_id, admin, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository_id, user_id) DO UPDATE SET
			account_id = excluded.account_id,
			admin = excluded.admin,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, rel.ID, rel.RepositoryID, rel.UserID, rel.AccountID, boolToInt(rel.Admin),
		formatTime(rel.CreatedAt), formatTime(rel.UpdatedAt)).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("ensuring relation: %w", err)
	}

	rel.ID = id
	rel.CreatedAt = parseTime(createdAt)
	return nil
}

// EnsureOrganizationRelation gets or creates the relation keyed by (organization, user).
func (s *remoteStore) EnsureOrganizationRelation(ctx context.Context, rel *domain.OrganizationRelation) error {
	if rel == nil || rel.ID == "" || rel.OrganizationID == "" || rel.UserID == "" || rel.AccountID == "" {
		return domain.ErrInvalidInput
	}
	stamp(&rel.CreatedAt, &rel.UpdatedAt, time.Now())

	var id, createdAt string
	err := s.store.db.QueryRowContext(ctx, `
		INSERT INTO organization_relations (id, organization_id, user_id, account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(organization_id, user_id) DO UPDATE SET
			account_id = excluded.account_id,
			updated_at = excluded.updated_at
		RETURNING id, created_at
	`, rel.ID, rel.OrganizationID, rel.UserID, rel.AccountID,
		formatTime(rel.CreatedAt), formatTime(rel.UpdatedAt)).Scan(&id, &createdAt)
	if err != nil {
		return fmt.Errorf("ensuring organization relation: %w", err)
	}

	rel.ID = id
	rel.CreatedAt = parseTime(createdAt)
	return nil
}

// DeleteStaleRelations deletes the (user, account) relations whose
// repository full name is not in keep.
func (s *remoteStore) DeleteStaleRelations(ctx context.Context, userID, accountID string, keep []string) (int, error) {
	return s.deleteStale(ctx, `
		SELECT rel.id, repo.full_name
		FROM remote_relations rel
		JOIN remote_repositories repo ON repo.id = rel.repository_id
		WHERE rel.user_id = ? AND rel.account_id = ?
	`, "DELETE FROM remote_relations WHERE id = ?", userID, accountID, keep)
}

// DeleteStaleOrganizationRelations deletes the (user, account) organization
// relations whose slug is not in keep.
func (s *remoteStore) DeleteStaleOrganizationRelations(
	ctx context.Context, userID, accountID string, keep []string,
) (int, error) {
	return s.deleteStale(ctx, `
		SELECT rel.id, org.slug
		FROM organization_relations rel
		JOIN remote_organizations org ON org.id = rel.organization_id
		WHERE rel.user_id = ? AND rel.account_id = ?
	`, "DELETE FROM organization_relations WHERE id = ?", userID, accountID, keep)
}

// deleteStale selects (id, key) pairs scoped to one user and account and
// deletes the rows whose key is not kept, in a single transaction.
func (s *remoteStore) deleteStale(
	ctx context.Context, selectQuery, deleteQuery, userID, accountID string, keep []string,
) (int, error) {
	kept := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		kept[k] = struct{}{}
	}

	deleted := 0
	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, selectQuery, userID, accountID)
		if err != nil {
			return fmt.Errorf("querying relations: %w", err)
		}

		var stale []string
		for rows.Next() {
			var id, key string
			if err := rows.Scan(&id, &key); err != nil {
				rows.Close()
				return fmt.Errorf("scanning relation: %w", err)
			}
			if _, ok := kept[key]; !ok {
				stale = append(stale, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return fmt.Errorf("iterating relations: %w", err)
		}
		rows.Close()

		for _, id := range stale {
			if _, err := tx.ExecContext(ctx, deleteQuery, id); err != nil {
				return fmt.Errorf("deleting relation: %w", err)
			}
		}
		deleted = len(stale)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// ListRelations returns the relations of a user, optionally for one account.
func (s *remoteStore) ListRelations(ctx context.Context, userID, accountID string) ([]domain.RemoteRelation, error) {
	query := `SELECT id, repository_id, user_id, account_id, admin, created_at, updated_at
		FROM remote_relations WHERE user_id = ?`
	args := []any{userID}
	if accountID != "" {
		query += " AND account_id = ?"
		args = append(args, accountID)
	}
	return s.queryRelations(ctx, query+" ORDER BY created_at, id", args...)
}

// ListRepositoryRelations returns every relation pointing at a repository.
func (s *remoteStore) ListRepositoryRelations(ctx context.Context, repositoryID string) ([]domain.RemoteRelation, error) {
	return s.queryRelations(ctx, `SELECT id, repository_id, user_id, account_id, admin, created_at, updated_at
		FROM remote_relations WHERE repository_id = ? ORDER BY admin DESC, created_at, id`, repositoryID)
}

func (s *remoteStore) queryRelations(ctx context.Context, query string, args ...any) ([]domain.RemoteRelation, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying relations: %w", err)
	}
	defer rows.Close()

	var relations []domain.RemoteRelation //nolint:prealloc // size unknown from query
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, err
		}
		relations = append(relations, *rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating relations: %w", err)
	}
	return relations, nil
}

// ListOrganizationRelations returns the organization relations of a user.
func (s *remoteStore) ListOrganizationRelations(
	ctx context.Context, userID, accountID string,
) ([]domain.OrganizationRelation, error) {
	query := `SELECT id, organization_id, user_id, account_id, created_at, updated_at
		FROM organization_relations WHERE user_id = ?`
	args := []any{userID}
	if accountID != "" {
		query += " AND account_id = ?"
		args = append(args, accountID)
	}

	rows, err := s.store.db.QueryContext(ctx, query+" ORDER BY created_at, id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying organization relations: %w", err)
	}
	defer rows.Close()

	var relations []domain.OrganizationRelation //nolint:prealloc // size unknown from query
	for rows.Next() {
		var rel domain.OrganizationRelation
		var createdAt, updatedAt string
		if err := rows.Scan(&rel.ID, &rel.OrganizationID, &rel.UserID, &rel.AccountID,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning organization relation: %w", err)
		}
		rel.CreatedAt = parseTime(createdAt)
		rel.UpdatedAt = parseTime(updatedAt)
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating organization relations: %w", err)
	}
	return relations, nil
}

// ListUserRepositories returns the repositories a user sees with their relation.
func (s *remoteStore) ListUserRepositories(ctx context.Context, userID string) ([]domain.LinkedRepository, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT repo.id, repo.provider, repo.remote_id, repo.full_name, repo.name, repo.description,
			repo.private, repo.clone_url, repo.ssh_url, repo.html_url, repo.avatar_url, repo.vcs,
			repo.default_branch, repo.organization_id, repo.json, repo.created_at, repo.updated_at,
			rel.id, rel.repository_id, rel.user_id, rel.account_id, rel.admin, rel.created_at, rel.updated_at
		FROM remote_relations rel
		JOIN remote_repositories repo ON repo.id = rel.repository_id
		WHERE rel.user_id = ?
		ORDER BY repo.full_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user repositories: %w", err)
	}
	defer rows.Close()

	var linked []domain.LinkedRepository //nolint:prealloc // size unknown from query
	for rows.Next() {
		var item domain.LinkedRepository
		repoDest, repoFinish := repositoryScanTargets(&item.Repository)
		relDest, relFinish := relationScanTargets(&item.Relation)
		if err := rows.Scan(append(repoDest, relDest...)...); err != nil {
			return nil, fmt.Errorf("scanning user repository: %w", err)
		}
		repoFinish()
		relFinish()
		linked = append(linked, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user repositories: %w", err)
	}
	return linked, nil
}

// ListUserOrganizations returns the organizations a user belongs to.
func (s *remoteStore) ListUserOrganizations(ctx context.Context, userID string) ([]domain.RemoteOrganization, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT org.id, org.provider, org.remote_id, org.slug, org.name, org.email, org.url,
			org.avatar_url, org.json, org.created_at, org.updated_at
		FROM organization_relations rel
		JOIN remote_organizations org ON org.id = rel.organization_id
		WHERE rel.user_id = ?
		ORDER BY org.slug
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user organizations: %w", err)
	}
	defer rows.Close()

	var orgs []domain.RemoteOrganization //nolint:prealloc // size unknown from query
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, *org)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user organizations: %w", err)
	}
	return orgs, nil
}

// ==================== Scanning ====================

// repositoryScanTargets returns scan destinations for repositoryColumns and a
// func that copies the nullable columns into repo once Scan succeeds.
func repositoryScanTargets(repo *domain.RemoteRepository) ([]any, func()) {
	var provider, createdAt, updatedAt string
	var description, sshURL, htmlURL, avatarURL, defaultBranch, orgID, raw sql.NullString
	var private int

	dest := []any{&repo.ID, &provider, &repo.RemoteID, &repo.FullName, &repo.Name, &description,
		&private, &repo.CloneURL, &sshURL, &htmlURL, &avatarURL, &repo.VCS, &defaultBranch,
		&orgID, &raw, &createdAt, &updatedAt}

	return dest, func() {
		repo.Provider = domain.ProviderType(provider)
		repo.Description = description.String
		repo.Private = private == 1
		repo.SSHURL = sshURL.String
		repo.HTMLURL = htmlURL.String
		repo.AvatarURL = avatarURL.String
		repo.DefaultBranch = defaultBranch.String
		repo.OrganizationID = orgID.String
		repo.JSON = rawJSON(raw)
		repo.CreatedAt = parseTime(createdAt)
		repo.UpdatedAt = parseTime(updatedAt)
	}
}

func relationScanTargets(rel *domain.RemoteRelation) ([]any, func()) {
	var createdAt, updatedAt string
	var admin int

	dest := []any{&rel.ID, &rel.RepositoryID, &rel.UserID, &rel.AccountID, &admin, &createdAt, &updatedAt}
	return dest, func() {
		rel.Admin = admin == 1
		rel.CreatedAt = parseTime(createdAt)
		rel.UpdatedAt = parseTime(updatedAt)
	}
}

func scanRepository(row rowScanner) (*domain.RemoteRepository, error) {
	var repo domain.RemoteRepository
	dest, finish := repositoryScanTargets(&repo)
	if err := row.Scan(dest...); err != nil {
		return nil, notFound(err)
	}
	finish()
	return &repo, nil
}

func scanRelation(row rowScanner) (*domain.RemoteRelation, error) {
	var rel domain.RemoteRelation
	dest, finish := relationScanTargets(&rel)
	if err := row.Scan(dest...); err != nil {
		return nil, fmt.Errorf("scanning relation: %w", err)
	}
	finish()
	return &rel, nil
}

func scanOrganization(row rowScanner) (*domain.RemoteOrganization, error) {
	var org domain.RemoteOrganization
	var provider, createdAt, updatedAt string
	var email, url, avatarURL, raw sql.NullString

	if err := row.Scan(&org.ID, &provider, &org.RemoteID, &org.Slug, &org.Name,
		&email, &url, &avatarURL, &raw, &createdAt, &updatedAt); err != nil {
		return nil, notFound(err)
	}

	org.Provider = domain.ProviderType(provider)
	org.Email = email.String
	org.URL = url.String
	org.AvatarURL = avatarURL.String
	org.JSON = rawJSON(raw)
	org.CreatedAt = parseTime(createdAt)
	org.UpdatedAt = parseTime(updatedAt)
	return &org, nil
}

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

// projectStore implements driven.ProjectStore.
type projectStore struct {
	store *Store
}

var _ driven.ProjectStore = (*projectStore)(nil)

// GetProject retrieves a project by ID.
func (s *projectStore) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var project domain.Project
	var remoteID sql.NullString
	var usersJSON string

	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, slug, name, repo_url, remote_repository_id, users FROM projects WHERE id = ?
	`, id).Scan(&project.ID, &project.Slug, &project.Name, &project.RepoURL, &remoteID, &usersJSON)
	if err != nil {
		return nil, notFound(err)
	}

	project.RemoteRepositoryID = remoteID.String
	if err := json.Unmarshal([]byte(usersJSON), &project.Users); err != nil {
		return nil, fmt.Errorf("unmarshalling project users: %w", err)
	}
	return &project, nil
}

// SaveProject creates or updates a project.
func (s *projectStore) SaveProject(ctx context.Context, project domain.Project) error {
	if project.ID == "" || project.Slug == "" {
		return domain.ErrInvalidInput
	}
	users := project.Users
	if users == nil {
		users = []string{}
	}
	usersJSON, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("marshalling project users: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO projects (id, slug, name, repo_url, remote_repository_id, users)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			slug = excluded.slug,
			name = excluded.name,
			repo_url = excluded.repo_url,
			remote_repository_id = excluded.remote_repository_id,
			users = excluded.users
	`, project.ID, project.Slug, project.Name, project.RepoURL,
		nullString(project.RemoteRepositoryID), string(usersJSON))
	if err != nil {
		return fmt.Errorf("saving project: %w", err)
	}
	return nil
}

// GetIntegration retrieves an integration by ID.
func (s *projectStore) GetIntegration(ctx context.Context, id string) (*domain.Integration, error) {
	var integration domain.Integration
	var secret, providerData sql.NullString
	var updatedAt string

	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, project_id, kind, secret, provider_data, updated_at FROM integrations WHERE id = ?
	`, id).Scan(&integration.ID, &integration.ProjectID, &integration.Kind, &secret, &providerData, &updatedAt)
	if err != nil {
		return nil, notFound(err)
	}

	integration.Secret = secret.String
	integration.ProviderData = rawJSON(providerData)
	integration.UpdatedAt = parseTime(updatedAt)
	return &integration, nil
}

// SaveIntegration creates or updates an integration.
func (s *projectStore) SaveIntegration(ctx context.Context, integration domain.Integration) error {
	if integration.ID == "" || integration.ProjectID == "" {
		return domain.ErrInvalidInput
	}
	integration.UpdatedAt = time.Now()

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO integrations (id, project_id, kind, secret, provider_data, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			kind = excluded.kind,
			secret = excluded.secret,
			provider_data = excluded.provider_data,
			updated_at = excluded.updated_at
	`, integration.ID, integration.ProjectID, integration.Kind, nullString(integration.Secret),
		nullJSON(integration.ProviderData), formatTime(integration.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving integration: %w", err)
	}
	return nil
}

// GetBuild retrieves a build by ID.
func (s *projectStore) GetBuild(ctx context.Context, id string) (*domain.Build, error) {
	var build domain.Build
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, project_id, commit_sha, url, docs_url FROM builds WHERE id = ?
	`, id).Scan(&build.ID, &build.ProjectID, &build.Commit, &build.URL, &build.DocsURL)
	if err != nil {
		return nil, notFound(err)
	}
	return &build, nil
}

// SaveBuild creates or updates a build.
func (s *projectStore) SaveBuild(ctx context.Context, build domain.Build) error {
	if build.ID == "" || build.ProjectID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO builds (id, project_id, commit_sha, url, docs_url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			project_id = excluded.project_id,
			commit_sha = excluded.commit_sha,
			url = excluded.url,
			docs_url = excluded.docs_url
	`, build.ID, build.ProjectID, build.Commit, build.URL, build.DocsURL)
	if err != nil {
		return fmt.Errorf("saving build: %w", err)
	}
	return nil
}

package driven

import (
	"context"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// RemoteStore persists canonical repository/organization records and the
// per-(user, account) relation rows pointing at them.
//
// Upserts are atomic get-or-create operations: concurrent calls for the same
// key end with exactly one row.
type RemoteStore interface {
	// GetRepository retrieves a repository by provider and full name.
	// Returns domain.ErrNotFound if absent.
	GetRepository(ctx context.Context, provider domain.ProviderType, fullName string) (*domain.RemoteRepository, error)

	// GetRepositoryByID retrieves a repository by ID.
	GetRepositoryByID(ctx context.Context, id string) (*domain.RemoteRepository, error)

	// UpsertRepository creates or updates the row keyed by (provider, full
	// name) and writes the stored ID and timestamps back into repo.
	UpsertRepository(ctx context.Context, repo *domain.RemoteRepository) error

	// GetOrganization retrieves an organization by provider and slug.
	GetOrganization(ctx context.Context, provider domain.ProviderType, slug string) (*domain.RemoteOrganization, error)

	// UpsertOrganization creates or updates the row keyed by (provider, slug).
	UpsertOrganization(ctx context.Context, org *domain.RemoteOrganization) error

	// EnsureRelation gets or creates the relation keyed by (repository, user)
	// and records the asserting account and admin flag on it.
	EnsureRelation(ctx context.Context, rel *domain.RemoteRelation) error

	// EnsureOrganizationRelation gets or creates the relation keyed by
	// (organization, user) and records the asserting account on it.
	EnsureOrganizationRelation(ctx context.Context, rel *domain.OrganizationRelation) error

	// DeleteStaleRelations deletes the relations of (user, account) whose
	// repository full name is not in keep. Returns the number deleted.
	DeleteStaleRelations(ctx context.Context, userID, accountID string, keep []string) (int, error)

	// DeleteStaleOrganizationRelations deletes the organization relations of
	// (user, account) whose organization slug is not in keep.
	DeleteStaleOrganizationRelations(ctx context.Context, userID, accountID string, keep []string) (int, error)

	// ListRelations returns the relations of a user, optionally narrowed to
	// one account when accountID is not empty.
	ListRelations(ctx context.Context, userID, accountID string) ([]domain.RemoteRelation, error)

	// ListOrganizationRelations returns the organization relations of a user,
	// optionally narrowed to one account.
	ListOrganizationRelations(ctx context.Context, userID, accountID string) ([]domain.OrganizationRelation, error)

	// ListRepositoryRelations returns every relation pointing at a repository.
	ListRepositoryRelations(ctx context.Context, repositoryID string) ([]domain.RemoteRelation, error)

	// ListUserRepositories returns the repositories a user sees, with the
	// relation granting each one, ordered by full name.
	ListUserRepositories(ctx context.Context, userID string) ([]domain.LinkedRepository, error)

	// ListUserOrganizations returns the organizations a user belongs to,
	// ordered by slug.
	ListUserOrganizations(ctx context.Context, userID string) ([]domain.RemoteOrganization, error)
}

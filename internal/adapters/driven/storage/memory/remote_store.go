package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

var _ driven.RemoteStore = (*RemoteStore)(nil)

type remoteKey struct {
	provider domain.ProviderType
	name     string
}

type relationKey struct {
	target string
	userID string
}

// RemoteStore is an in-memory implementation of driven.RemoteStore.
// A single lock makes every upsert an atomic get-or-create.
type RemoteStore struct {
	mu        sync.RWMutex
	repos     map[remoteKey]domain.RemoteRepository
	orgs      map[remoteKey]domain.RemoteOrganization
	relations map[relationKey]domain.RemoteRelation
	orgRels   map[relationKey]domain.OrganizationRelation
}

// NewRemoteStore creates an in-memory remote store.
func NewRemoteStore() *RemoteStore {
	return &RemoteStore{
		repos:     make(map[remoteKey]domain.RemoteRepository),
		orgs:      make(map[remoteKey]domain.RemoteOrganization),
		relations: make(map[relationKey]domain.RemoteRelation),
		orgRels:   make(map[relationKey]domain.OrganizationRelation),
	}
}

// GetRepository retrieves a repository by provider and full name.
func (s *RemoteStore) GetRepository(
	_ context.Context, provider domain.ProviderType, fullName string,
) (*domain.RemoteRepository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	repo, ok := s.repos[remoteKey{provider, fullName}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &repo, nil
}

// GetRepositoryByID retrieves a repository by ID.
func (s *RemoteStore) GetRepositoryByID(_ context.Context, id string) (*domain.RemoteRepository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if repo, ok := s.repoByID(id); ok {
		return &repo, nil
	}
	return nil, domain.ErrNotFound
}

func (s *RemoteStore) repoByID(id string) (domain.RemoteRepository, bool) {
	for _, repo := range s.repos {
		if repo.ID == id {
			return repo, true
		}
	}
	return domain.RemoteRepository{}, false
}

// UpsertRepository creates or updates the repository keyed by (provider, full name).
func (s *RemoteStore) UpsertRepository(_ context.Context, repo *domain.RemoteRepository) error {
	if repo == nil || repo.ID == "" || repo.FullName == "" || !repo.Provider.IsValid() {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := remoteKey{repo.Provider, repo.FullName}
	if existing, ok := s.repos[key]; ok {
		repo.ID = existing.ID
		repo.CreatedAt = existing.CreatedAt
	}
	if repo.VCS == "" {
		repo.VCS = domain.VCSGit
	}
	stamp(&repo.CreatedAt, &repo.UpdatedAt)

	stored := *repo
	stored.ViewerAdmin = false
	s.repos[key] = stored
	return nil
}

// GetOrganization retrieves an organization by provider and slug.
func (s *RemoteStore) GetOrganization(
	_ context.Context, provider domain.ProviderType, slug string,
) (*domain.RemoteOrganization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, ok := s.orgs[remoteKey{provider, slug}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &org, nil
}

// UpsertOrganization creates or updates the organization keyed by (provider, slug).
func (s *RemoteStore) UpsertOrganization(_ context.Context, org *domain.RemoteOrganization) error {
	if org == nil || org.ID == "" || org.Slug == "" || !org.Provider.IsValid() {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := remoteKey{org.Provider, org.Slug}
	if existing, ok := s.orgs[key]; ok {
		org.ID = existing.ID
		org.CreatedAt = existing.CreatedAt
	}
	stamp(&org.CreatedAt, &org.UpdatedAt)
	s.orgs[key] = *org
	return nil
}

// EnsureRelation gets or creates the relation keyed by (repository, user).
func (s *RemoteStore) EnsureRelation(_ context.Context, rel *domain.RemoteRelation) error {
	if rel == nil || rel.ID == "" || rel.RepositoryID == "" || rel.UserID == "" || rel.AccountID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := relationKey{rel.RepositoryID, rel.UserID}
	if existing, ok := s.relations[key]; ok {
		rel.ID = existing.ID
		rel.CreatedAt = existing.CreatedAt
	}
	stamp(&rel.CreatedAt, &rel.UpdatedAt)
	s.relations[key] = *rel
	return nil
}

// EnsureOrganizationRelation gets or creates the relation keyed by (organization, user).
func (s *RemoteStore) EnsureOrganizationRelation(_ context.Context, rel *domain.OrganizationRelation) error {
	if rel == nil || rel.ID == "" || rel.OrganizationID == "" || rel.UserID == "" || rel.AccountID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := relationKey{rel.OrganizationID, rel.UserID}
	if existing, ok := s.orgRels[key]; ok {
		rel.ID = existing.ID
		rel.CreatedAt = existing.CreatedAt
	}
	stamp(&rel.CreatedAt, &rel.UpdatedAt)
	s.orgRels[key] = *rel
	return nil
}

// DeleteStaleRelations deletes the (user, account) relations whose
// repository full name is not in keep.
func (s *RemoteStore) DeleteStaleRelations(_ context.Context, userID, accountID string, keep []string) (int, error) {
	kept := toSet(keep)
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for key, rel := range s.relations {
		if rel.UserID != userID || rel.AccountID != accountID {
			continue
		}
		repo, ok := s.repoByID(rel.RepositoryID)
		if ok {
			if _, keepIt := kept[repo.FullName]; keepIt {
				continue
			}
		}
		delete(s.relations, key)
		deleted++
	}
	return deleted, nil
}

// DeleteStaleOrganizationRelations deletes the (user, account) organization
// relations whose slug is not in keep.
func (s *RemoteStore) DeleteStaleOrganizationRelations(
	_ context.Context, userID, accountID string, keep []string,
) (int, error) {
	kept := toSet(keep)
	s.mu.Lock()
	defer s.mu.Unlock()

	slugs := make(map[string]string, len(s.orgs))
	for _, org := range s.orgs {
		slugs[org.ID] = org.Slug
	}

	deleted := 0
	for key, rel := range s.orgRels {
		if rel.UserID != userID || rel.AccountID != accountID {
			continue
		}
		if _, keepIt := kept[slugs[rel.OrganizationID]]; keepIt {
			continue
		}
		delete(s.orgRels, key)
		deleted++
	}
	return deleted, nil
}

// ListRelations returns the relations of a user, optionally for one account.
func (s *RemoteStore) ListRelations(_ context.Context, userID, accountID string) ([]domain.RemoteRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.RemoteRelation
	for _, rel := range s.relations {
		if rel.UserID == userID && (accountID == "" || rel.AccountID == accountID) {
			result = append(result, rel)
		}
	}
	sortRelations(result)
	return result, nil
}

// ListOrganizationRelations returns the organization relations of a user.
func (s *RemoteStore) ListOrganizationRelations(
	_ context.Context, userID, accountID string,
) ([]domain.OrganizationRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.OrganizationRelation
	for _, rel := range s.orgRels {
		if rel.UserID == userID && (accountID == "" || rel.AccountID == accountID) {
			result = append(result, rel)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// ListRepositoryRelations returns every relation pointing at a repository,
// admins first.
func (s *RemoteStore) ListRepositoryRelations(_ context.Context, repositoryID string) ([]domain.RemoteRelation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.RemoteRelation
	for _, rel := range s.relations {
		if rel.RepositoryID == repositoryID {
			result = append(result, rel)
		}
	}
	sortRelations(result)
	sort.SliceStable(result, func(i, j int) bool { return result[i].Admin && !result[j].Admin })
	return result, nil
}

// ListUserRepositories returns the repositories a user sees with their relation.
func (s *RemoteStore) ListUserRepositories(_ context.Context, userID string) ([]domain.LinkedRepository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.LinkedRepository
	for _, rel := range s.relations {
		if rel.UserID != userID {
			continue
		}
		if repo, ok := s.repoByID(rel.RepositoryID); ok {
			result = append(result, domain.LinkedRepository{Repository: repo, Relation: rel})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Repository.FullName < result[j].Repository.FullName
	})
	return result, nil
}

// ListUserOrganizations returns the organizations a user belongs to.
func (s *RemoteStore) ListUserOrganizations(_ context.Context, userID string) ([]domain.RemoteOrganization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.RemoteOrganization
	for _, rel := range s.orgRels {
		if rel.UserID != userID {
			continue
		}
		for _, org := range s.orgs {
			if org.ID == rel.OrganizationID {
				result = append(result, org)
			}
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Slug < result[j].Slug })
	return result, nil
}

func sortRelations(rels []domain.RemoteRelation) {
	sort.Slice(rels, func(i, j int) bool {
		if !rels[i].CreatedAt.Equal(rels[j].CreatedAt) {
			return rels[i].CreatedAt.Before(rels[j].CreatedAt)
		}
		return rels[i].ID < rels[j].ID
	})
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}

// Counts returns the number of stored repositories, organizations, relations
// and organization relations.
func (s *RemoteStore) Counts() (repos, orgs, relations, orgRelations int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.repos), len(s.orgs), len(s.relations), len(s.orgRels)
}

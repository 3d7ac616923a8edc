package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

func saveRepo(t *testing.T, store *Store, id, fullName string) *domain.RemoteRepository {
	t.Helper()
	repo := &domain.RemoteRepository{
		ID:       id,
		Provider: domain.ProviderGitHub,
		FullName: fullName,
		Name:     fullName,
		CloneURL: "https://github.com/" + fullName + ".git",
	}
	require.NoError(t, store.RemoteStore().UpsertRepository(context.Background(), repo))
	return repo
}

func relate(t *testing.T, store *Store, id, repoID, userID, accountID string, admin bool) {
	t.Helper()
	require.NoError(t, store.RemoteStore().EnsureRelation(context.Background(), &domain.RemoteRelation{
		ID: id, RepositoryID: repoID, UserID: userID, AccountID: accountID, Admin: admin,
	}))
}

func TestRemoteStore_UpsertRepository(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	remotes := store.RemoteStore()

	repo := &domain.RemoteRepository{
		ID:          "repo-1",
		Provider:    domain.ProviderGitHub,
		RemoteID:    "100",
		FullName:    "a/one",
		Name:        "one",
		Description: "first",
		CloneURL:    "https://github.com/a/one.git",
		SSHURL:      "git@github.com:a/one.git",
		JSON:        json.RawMessage(`{"id":100}`),
	}
	require.NoError(t, remotes.UpsertRepository(ctx, repo))
	assert.Equal(t, domain.VCSGit, repo.VCS)

	update := &domain.RemoteRepository{
		ID:       "ignored",
		Provider: domain.ProviderGitHub,
		FullName: "a/one",
		Name:     "one",
		Private:  true,
		CloneURL: "git@github.com:a/one.git",
	}
	require.NoError(t, remotes.UpsertRepository(ctx, update))
	assert.Equal(t, "repo-1", update.ID)

	got, err := remotes.GetRepository(ctx, domain.ProviderGitHub, "a/one")
	require.NoError(t, err)
	assert.True(t, got.Private)
	assert.Empty(t, got.Description)
	assert.Equal(t, "git@github.com:a/one.git", got.CloneURL)

	byID, err := remotes.GetRepositoryByID(ctx, "repo-1")
	require.NoError(t, err)
	assert.Equal(t, "a/one", byID.FullName)

	_, err = remotes.GetRepository(ctx, domain.ProviderGitLab, "a/one")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoteStore_OrganizationAndNullableLink(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	remotes := store.RemoteStore()

	org := &domain.RemoteOrganization{ID: "org-1", Provider: domain.ProviderGitHub, Slug: "acme", Name: "Acme"}
	require.NoError(t, remotes.UpsertOrganization(ctx, org))

	repo := &domain.RemoteRepository{
		ID: "repo-1", Provider: domain.ProviderGitHub, FullName: "acme/tool", OrganizationID: org.ID,
	}
	require.NoError(t, remotes.UpsertRepository(ctx, repo))

	got, err := remotes.GetRepository(ctx, domain.ProviderGitHub, "acme/tool")
	require.NoError(t, err)
	assert.Equal(t, "org-1", got.OrganizationID)

	// Re-importing outside the organization clears the link.
	repo.OrganizationID = ""
	require.NoError(t, remotes.UpsertRepository(ctx, repo))
	got, err = remotes.GetRepository(ctx, domain.ProviderGitHub, "acme/tool")
	require.NoError(t, err)
	assert.Empty(t, got.OrganizationID)

	fetched, err := remotes.GetOrganization(ctx, domain.ProviderGitHub, "acme")
	require.NoError(t, err)
	assert.Equal(t, "Acme", fetched.Name)
}

func TestRemoteStore_EnsureRelationUpdatesAccount(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	createTestAccount(t, store, "acct-1", "alice")
	createTestAccount(t, store, "acct-2", "alice")
	repo := saveRepo(t, store, "repo-1", "a/one")

	relate(t, store, "rel-1", repo.ID, "alice", "acct-1", false)
	relate(t, store, "rel-2", repo.ID, "alice", "acct-2", true)

	rels, err := store.RemoteStore().ListRelations(ctx, "alice", "")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "rel-1", rels[0].ID)
	assert.Equal(t, "acct-2", rels[0].AccountID)
	assert.True(t, rels[0].Admin)
}

func TestRemoteStore_DeleteStaleRelationsScoped(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	remotes := store.RemoteStore()
	createTestAccount(t, store, "acct-1", "alice")
	createTestAccount(t, store, "acct-2", "alice")
	createTestAccount(t, store, "acct-3", "bob")

	one := saveRepo(t, store, "repo-1", "a/one")
	two := saveRepo(t, store, "repo-2", "a/two")
	three := saveRepo(t, store, "repo-3", "a/three")

	relate(t, store, "rel-1", one.ID, "alice", "acct-1", false)
	relate(t, store, "rel-2", two.ID, "alice", "acct-1", false)
	relate(t, store, "rel-3", three.ID, "alice", "acct-2", false)
	relate(t, store, "rel-4", two.ID, "bob", "acct-3", false)

	deleted, err := remotes.DeleteStaleRelations(ctx, "alice", "acct-1", []string{"a/one"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	alice, err := remotes.ListUserRepositories(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, alice, 2)
	assert.Equal(t, "a/one", alice[0].Repository.FullName)
	assert.Equal(t, "a/three", alice[1].Repository.FullName)
	assert.Equal(t, "acct-2", alice[1].Relation.AccountID)

	bob, err := remotes.ListRelations(ctx, "bob", "acct-3")
	require.NoError(t, err)
	assert.Len(t, bob, 1)

	// The canonical repository survives losing a relation.
	_, err = remotes.GetRepository(ctx, domain.ProviderGitHub, "a/two")
	require.NoError(t, err)

	shared, err := remotes.ListRepositoryRelations(ctx, two.ID)
	require.NoError(t, err)
	assert.Len(t, shared, 1)
}

func TestRemoteStore_OrganizationRelations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	remotes := store.RemoteStore()
	createTestAccount(t, store, "acct-1", "alice")

	for _, slug := range []string{"acme", "zeta"} {
		org := &domain.RemoteOrganization{ID: "org-" + slug, Provider: domain.ProviderGitHub, Slug: slug}
		require.NoError(t, remotes.UpsertOrganization(ctx, org))
		require.NoError(t, remotes.EnsureOrganizationRelation(ctx, &domain.OrganizationRelation{
			ID: "orel-" + slug, OrganizationID: org.ID, UserID: "alice", AccountID: "acct-1",
		}))
	}

	orgs, err := remotes.ListUserOrganizations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, orgs, 2)
	assert.Equal(t, "acme", orgs[0].Slug)

	deleted, err := remotes.DeleteStaleOrganizationRelations(ctx, "alice", "acct-1", []string{"zeta"})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	rels, err := remotes.ListOrganizationRelations(ctx, "alice", "acct-1")
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "org-zeta", rels[0].OrganizationID)
}

func TestRemoteStore_InvalidInput(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	remotes := store.RemoteStore()

	assert.ErrorIs(t, remotes.UpsertRepository(ctx, &domain.RemoteRepository{ID: "x"}), domain.ErrInvalidInput)
	assert.ErrorIs(t, remotes.UpsertOrganization(ctx, nil), domain.ErrInvalidInput)
	assert.ErrorIs(t, remotes.EnsureRelation(ctx, &domain.RemoteRelation{ID: "x"}), domain.ErrInvalidInput)
}

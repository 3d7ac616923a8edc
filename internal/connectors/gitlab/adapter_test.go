package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/remotesync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/remotesync/internal/connectors"
	"github.com/custodia-labs/remotesync/internal/core/domain"
)

type testSession struct {
	client *http.Client
}

func (s *testSession) Client() *http.Client { return s.client }

func (s *testSession) Account() domain.Account {
	return domain.Account{ID: "acct-gl", Provider: domain.ProviderGitLab}
}

func newAdapter(t *testing.T, apiURL string) (*Adapter, *memory.RemoteStore) {
	t.Helper()
	remotes := memory.NewRemoteStore()
	return New(remotes, connectors.Config{
		APIURL:   apiURL,
		BaseURL:  "https://docs.example.com",
		PageSize: 50,
		Avatars: domain.AvatarSettings{
			DefaultUserAvatarURL: "https://docs.example.com/user.png",
			DefaultOrgAvatarURL:  "https://docs.example.com/org.png",
		},
	}), remotes
}

func TestNew_URLs(t *testing.T) {
	a, _ := newAdapter(t, "")

	assert.Equal(t, domain.ProviderGitLab, a.Type())
	assert.Equal(t, "https://gitlab.com/api/v4/projects?membership=true&per_page=50", a.RepositoriesURL())
	assert.Equal(t, "https://gitlab.com/api/v4/groups?per_page=50", a.OrganizationsURL())
	assert.Equal(t, "https://gitlab.com/api/v4/groups/42/projects?per_page=50",
		a.OrganizationRepositoriesURL(domain.RemoteOrganization{RemoteID: "42", Slug: "group"}))
	assert.Equal(t, "https://gitlab.com/api/v4/groups/group%2Fsub/projects?per_page=50",
		a.OrganizationRepositoriesURL(domain.RemoteOrganization{Slug: "group/sub"}))
	assert.True(t, a.IsProjectService(domain.Project{RepoURL: "https://gitlab.com/group/project"}))
	assert.False(t, a.IsProjectService(domain.Project{RepoURL: "https://github.com/group/project"}))
}

func TestAdapter_CreateRepository(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		payload    string
		privacy    domain.Privacy
		wantNil    bool
		wantAdmin  bool
		wantClone  string
		wantAvatar string
	}{
		{
			name: "public project with maintainer access",
			payload: `{"id": 7, "name": "proj", "path_with_namespace": "group/proj", "visibility": "public",
				"http_url_to_repo": "https://gitlab.com/group/proj.git", "ssh_url_to_repo": "git@gitlab.com:group/proj.git",
				"avatar_url": "https://gitlab.com/proj.png",
				"permissions": {"project_access": {"access_level": 40}, "group_access": null}}`,
			privacy:    domain.PrivacyPublic,
			wantAdmin:  true,
			wantClone:  "https://gitlab.com/group/proj.git",
			wantAvatar: "https://gitlab.com/proj.png",
		},
		{
			name: "group owner is admin",
			payload: `{"id": 8, "path_with_namespace": "group/owned", "visibility": "public",
				"namespace": {"avatar_url": "https://gitlab.com/group.png"},
				"permissions": {"project_access": {"access_level": 30}, "group_access": {"access_level": 50}}}`,
			privacy:    domain.PrivacyPublic,
			wantAdmin:  true,
			wantAvatar: "https://gitlab.com/group.png",
		},
		{
			name: "developer is not admin",
			payload: `{"id": 9, "path_with_namespace": "group/dev", "visibility": "public",
				"permissions": {"project_access": {"access_level": 30}}}`,
			privacy:    domain.PrivacyPublic,
			wantAvatar: "https://docs.example.com/user.png",
		},
		{
			name:    "internal project skipped at public privacy",
			payload: `{"id": 10, "path_with_namespace": "group/internal", "visibility": "internal"}`,
			privacy: domain.PrivacyPublic,
			wantNil: true,
		},
		{
			name: "private project cloned over ssh",
			payload: `{"id": 11, "path_with_namespace": "group/private", "visibility": "private",
				"http_url_to_repo": "https://gitlab.com/group/private.git", "ssh_url_to_repo": "git@gitlab.com:group/private.git"}`,
			privacy:    domain.PrivacyPrivate,
			wantClone:  "git@gitlab.com:group/private.git",
			wantAvatar: "https://docs.example.com/user.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newAdapter(t, "")

			repo, err := a.CreateRepository(ctx, json.RawMessage(tt.payload), tt.privacy, nil)

			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, repo)
				return
			}
			require.NotNil(t, repo)
			assert.Equal(t, tt.wantAdmin, repo.ViewerAdmin)
			if tt.wantClone != "" {
				assert.Equal(t, tt.wantClone, repo.CloneURL)
			}
			assert.Equal(t, tt.wantAvatar, repo.AvatarURL)
		})
	}

	t.Run("malformed", func(t *testing.T) {
		a, _ := newAdapter(t, "")
		for _, payload := range []string{`{"id": 1}`, `{"path_with_namespace": "a/b"}`, `{"id": {}, "path_with_namespace": "a/b"}`} {
			_, err := a.CreateRepository(ctx, json.RawMessage(payload), domain.PrivacyPrivate, nil)
			assert.ErrorIs(t, err, domain.ErrMappingFailed, payload)
		}
	})
}

func TestAdapter_CreateOrganization(t *testing.T) {
	ctx := context.Background()
	a, remotes := newAdapter(t, "")

	org, err := a.CreateOrganization(ctx, json.RawMessage(
		`{"id": 42, "name": "Sub", "path": "sub", "full_path": "group/sub", "web_url": "https://gitlab.com/groups/group/sub", "avatar_url": null}`))

	require.NoError(t, err)
	assert.Equal(t, "group/sub", org.Slug)
	assert.Equal(t, "42", org.RemoteID)
	assert.Equal(t, "https://docs.example.com/org.png", org.AvatarURL)

	_, err = remotes.GetOrganization(ctx, domain.ProviderGitLab, "group/sub")
	require.NoError(t, err)

	_, err = a.CreateOrganization(ctx, json.RawMessage(`{"id": 1, "name": "nameless"}`))
	assert.ErrorIs(t, err, domain.ErrMappingFailed)
}

func TestAdapter_Identity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/user", r.URL.Path)
		fmt.Fprint(w, `{"id": 1, "username": "root"}`)
	}))
	defer srv.Close()
	a, _ := newAdapter(t, srv.URL+"/api/v4")

	id, err := a.Identity(context.Background(), &testSession{client: srv.Client()})

	require.NoError(t, err)
	assert.Equal(t, &domain.Identity{UID: "1", Username: "root"}, id)
}

func readJSON(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var v map[string]any
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/remotesync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/remotesync/internal/core/domain"
)

func newTestBase(remotes *memory.RemoteStore) Base {
	return NewBase(domain.ProviderGitHub, remotes, Config{
		APIURL:  "https://api.github.com/",
		WebURL:  "https://github.com",
		BaseURL: "https://docs.example.com/",
		Avatars: domain.AvatarSettings{
			DefaultUserAvatarURL: "https://docs.example.com/user.png",
			DefaultOrgAvatarURL:  "https://docs.example.com/org.png",
		},
	}, regexp.MustCompile(`github\.com`))
}

func TestNewBase_Defaults(t *testing.T) {
	b := newTestBase(memory.NewRemoteStore())

	assert.Equal(t, domain.ProviderGitHub, b.Type())
	assert.Equal(t, "https://api.github.com", b.Config.APIURL)
	assert.Equal(t, domain.DefaultPageSize, b.Config.PageSize)
}

func TestBase_APIURL(t *testing.T) {
	b := newTestBase(memory.NewRemoteStore())

	assert.Equal(t, "https://api.github.com/user/repos", b.APIURL("/user/repos", nil))
	assert.Equal(t, "https://api.github.com/user/repos?per_page=100",
		b.APIURL("user/repos", map[string][]string{"per_page": {"100"}}))
}

func TestBase_WebhookURL(t *testing.T) {
	b := newTestBase(memory.NewRemoteStore())

	got := b.WebhookURL(domain.Project{Slug: "pip"}, &domain.Integration{ID: "42"})

	assert.Equal(t, "https://docs.example.com/api/v2/webhook/pip/42/", got)
}

func TestBase_IsProjectService(t *testing.T) {
	b := newTestBase(memory.NewRemoteStore())

	assert.True(t, b.IsProjectService(domain.Project{RepoURL: "https://github.com/pypa/pip"}))
	assert.False(t, b.IsProjectService(domain.Project{RepoURL: "https://gitlab.com/pypa/pip"}))
}

func TestBase_UnsupportedHooks(t *testing.T) {
	b := newTestBase(memory.NewRemoteStore())
	ctx := context.Background()

	_, err := b.SetupWebhook(ctx, nil, domain.Project{}, &domain.Integration{})
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	_, err = b.UpdateWebhook(ctx, nil, domain.Project{}, &domain.Integration{})
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	_, err = b.GetProviderData(ctx, nil, domain.Project{}, &domain.Integration{})
	assert.ErrorIs(t, err, domain.ErrUnsupported)
	_, err = b.SendBuildStatus(ctx, nil, domain.Project{}, domain.Build{}, domain.BuildStateSuccess, false)
	assert.ErrorIs(t, err, domain.ErrUnsupported)
}

func TestParseRepoPath(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://github.com/pypa/pip", "pypa/pip", true},
		{"https://github.com/pypa/pip.git", "pypa/pip", true},
		{"https://github.com/pypa/pip/", "pypa/pip", true},
		{"git@github.com:pypa/pip.git", "pypa/pip", true},
		{"ssh://git@gitlab.com/group/sub/project.git", "group/sub/project", true},
		{"https://user@bitbucket.org/team/repo.git", "team/repo", true},
		{"https://github.com/pypa", "", false},
		{"not a url", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := ParseRepoPath(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBase_RepositoryPath(t *testing.T) {
	remotes := memory.NewRemoteStore()
	b := newTestBase(remotes)
	ctx := context.Background()

	linked := &domain.RemoteRepository{ID: "r1", Provider: domain.ProviderGitHub, FullName: "canonical/name"}
	require.NoError(t, remotes.UpsertRepository(ctx, linked))

	t.Run("linked repository wins", func(t *testing.T) {
		path, err := b.RepositoryPath(ctx, domain.Project{RepoURL: "https://github.com/old/name", RemoteRepositoryID: "r1"})
		require.NoError(t, err)
		assert.Equal(t, "canonical/name", path)
	})

	t.Run("falls back to url", func(t *testing.T) {
		path, err := b.RepositoryPath(ctx, domain.Project{RepoURL: "https://github.com/old/name", RemoteRepositoryID: "gone"})
		require.NoError(t, err)
		assert.Equal(t, "old/name", path)
	})

	t.Run("unparseable url", func(t *testing.T) {
		_, err := b.RepositoryPath(ctx, domain.Project{RepoURL: "nope"})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}

func TestBase_UpsertRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("public repository is imported with defaults", func(t *testing.T) {
		remotes := memory.NewRemoteStore()
		b := newTestBase(remotes)

		repo, err := b.UpsertRepository(ctx, &domain.RemoteRepository{
			FullName: "a/one", CloneURL: "https://github.com/a/one.git", SSHURL: "git@github.com:a/one.git",
		}, domain.PrivacyPublic, nil)

		require.NoError(t, err)
		require.NotNil(t, repo)
		assert.NotEmpty(t, repo.ID)
		assert.Equal(t, domain.ProviderGitHub, repo.Provider)
		assert.Equal(t, "https://github.com/a/one.git", repo.CloneURL)
		assert.Equal(t, "https://docs.example.com/user.png", repo.AvatarURL)
		assert.Equal(t, domain.VCSGit, repo.VCS)

		stored, err := remotes.GetRepository(ctx, domain.ProviderGitHub, "a/one")
		require.NoError(t, err)
		assert.Equal(t, repo.ID, stored.ID)
	})

	t.Run("private repository skipped at public privacy", func(t *testing.T) {
		remotes := memory.NewRemoteStore()
		b := newTestBase(remotes)

		repo, err := b.UpsertRepository(ctx, &domain.RemoteRepository{FullName: "a/secret", Private: true},
			domain.PrivacyPublic, nil)

		require.NoError(t, err)
		assert.Nil(t, repo)
		_, err = remotes.GetRepository(ctx, domain.ProviderGitHub, "a/secret")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("private repository clones over ssh", func(t *testing.T) {
		b := newTestBase(memory.NewRemoteStore())

		repo, err := b.UpsertRepository(ctx, &domain.RemoteRepository{
			FullName: "a/secret", Private: true,
			CloneURL: "https://github.com/a/secret.git", SSHURL: "git@github.com:a/secret.git",
		}, domain.PrivacyPrivate, nil)

		require.NoError(t, err)
		require.NotNil(t, repo)
		assert.Equal(t, "git@github.com:a/secret.git", repo.CloneURL)
	})

	t.Run("existing repository keeps its id", func(t *testing.T) {
		b := newTestBase(memory.NewRemoteStore())

		first, err := b.UpsertRepository(ctx, &domain.RemoteRepository{FullName: "a/one"}, domain.PrivacyPublic, nil)
		require.NoError(t, err)
		second, err := b.UpsertRepository(ctx, &domain.RemoteRepository{FullName: "a/one", Description: "new"},
			domain.PrivacyPublic, nil)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "new", second.Description)
	})

	t.Run("owned by another organization is skipped", func(t *testing.T) {
		b := newTestBase(memory.NewRemoteStore())
		orgA, err := b.UpsertOrganization(ctx, &domain.RemoteOrganization{Slug: "org-a"})
		require.NoError(t, err)
		orgB, err := b.UpsertOrganization(ctx, &domain.RemoteOrganization{Slug: "org-b"})
		require.NoError(t, err)

		_, err = b.UpsertRepository(ctx, &domain.RemoteRepository{FullName: "org-a/x"}, domain.PrivacyPublic, orgA)
		require.NoError(t, err)

		repo, err := b.UpsertRepository(ctx, &domain.RemoteRepository{FullName: "org-a/x"}, domain.PrivacyPublic, orgB)
		require.NoError(t, err)
		assert.Nil(t, repo)

		repo, err = b.UpsertRepository(ctx, &domain.RemoteRepository{FullName: "org-a/x"}, domain.PrivacyPublic, nil)
		require.NoError(t, err)
		assert.Nil(t, repo)
	})

	t.Run("unowned repository adopted by organization", func(t *testing.T) {
		b := newTestBase(memory.NewRemoteStore())
		org, err := b.UpsertOrganization(ctx, &domain.RemoteOrganization{Slug: "org"})
		require.NoError(t, err)

		_, err = b.UpsertRepository(ctx, &domain.RemoteRepository{FullName: "org/x"}, domain.PrivacyPublic, nil)
		require.NoError(t, err)
		repo, err := b.UpsertRepository(ctx, &domain.RemoteRepository{FullName: "org/x"}, domain.PrivacyPublic, org)

		require.NoError(t, err)
		require.NotNil(t, repo)
		assert.Equal(t, org.ID, repo.OrganizationID)
	})
}

func TestBase_UpsertOrganization(t *testing.T) {
	remotes := memory.NewRemoteStore()
	b := newTestBase(remotes)
	ctx := context.Background()

	org, err := b.UpsertOrganization(ctx, &domain.RemoteOrganization{Slug: "pypa", Name: "PyPA"})
	require.NoError(t, err)
	assert.NotEmpty(t, org.ID)
	assert.Equal(t, "https://docs.example.com/org.png", org.AvatarURL)

	again, err := b.UpsertOrganization(ctx, &domain.RemoteOrganization{Slug: "pypa", Name: "Python Packaging"})
	require.NoError(t, err)
	assert.Equal(t, org.ID, again.ID)
}

func TestDecode(t *testing.T) {
	var v struct{ ID int }
	require.NoError(t, Decode(json.RawMessage(`{"ID":3}`), &v))
	assert.Equal(t, 3, v.ID)

	err := Decode(json.RawMessage(`{"ID":`), &v)
	assert.ErrorIs(t, err, domain.ErrMappingFailed)
	assert.ErrorIs(t, MappingError(domain.ProviderGitLab, "path"), domain.ErrMappingFailed)
}

func TestBase_DoJSON(t *testing.T) {
	b := newTestBase(memory.NewRemoteStore())
	ctx := context.Background()

	t.Run("created", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"name":"web"}`, string(body))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":7}`)
		}))
		defer srv.Close()

		res, err := b.DoJSON(ctx, newTestSession(srv.Client()), http.MethodPost, srv.URL, map[string]string{"name": "web"})

		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		assert.JSONEq(t, `{"id":7}`, string(res.Body))
		assert.Equal(t, "acct-1", res.AccountID)
	})

	t.Run("rejected with text body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `not here`)
		}))
		defer srv.Close()

		res, err := b.DoJSON(ctx, newTestSession(srv.Client()), http.MethodGet, srv.URL, nil)

		require.NoError(t, err)
		assert.False(t, res.OK)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		assert.JSONEq(t, `"not here"`, string(res.Body))
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		_, err := b.DoJSON(ctx, newTestSession(srv.Client()), http.MethodGet, srv.URL, nil)

		assert.ErrorIs(t, err, domain.ErrAccessRevoked)
	})
}

func TestHostPattern(t *testing.T) {
	re := HostPattern("https://gitlab.example.com")

	assert.True(t, re.MatchString("https://gitlab.example.com/group/project"))
	assert.True(t, re.MatchString("git@gitlab.example.com:group/project.git"))
	assert.False(t, re.MatchString("https://gitlab.com/group/project"))
	assert.False(t, re.MatchString("https://evilgitlab.example.com/group/project"))
}

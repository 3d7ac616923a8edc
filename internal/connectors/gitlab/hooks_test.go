package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

var testProject = domain.Project{ID: "p1", Slug: "docs", RepoURL: "https://gitlab.com/group/proj.git"}

func TestAdapter_SetupWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v4/projects/group%2Fproj/hooks", r.URL.EscapedPath())
		body := readJSON(t, r)
		assert.Equal(t, "https://docs.example.com/api/v2/webhook/docs/3/", body["url"])
		assert.Equal(t, "tok", body["token"])
		assert.Equal(t, true, body["push_events"])
		assert.Equal(t, true, body["merge_requests_events"])
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 99, "url": "https://docs.example.com/api/v2/webhook/docs/3/"}`)
	}))
	defer srv.Close()
	a, _ := newAdapter(t, srv.URL+"/api/v4")
	integration := &domain.Integration{ID: "3", Secret: "tok"}

	res, err := a.SetupWebhook(context.Background(), &testSession{client: srv.Client()}, testProject, integration)

	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, int64(99), storedHookID(integration.ProviderData))
}

func TestAdapter_UpdateWebhook(t *testing.T) {
	t.Run("updates stored hook", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/api/v4/projects/group%2Fproj/hooks/99", r.URL.EscapedPath())
			fmt.Fprint(w, `{"id": 99}`)
		}))
		defer srv.Close()
		a, _ := newAdapter(t, srv.URL+"/api/v4")
		integration := &domain.Integration{ID: "3", ProviderData: json.RawMessage(`{"id": 99}`)}

		res, err := a.UpdateWebhook(context.Background(), &testSession{client: srv.Client()}, testProject, integration)

		require.NoError(t, err)
		assert.True(t, res.OK)
	})

	t.Run("recreates missing hook", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPut {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"message": "404 Not found"}`)
				return
			}
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id": 100}`)
		}))
		defer srv.Close()
		a, _ := newAdapter(t, srv.URL+"/api/v4")
		integration := &domain.Integration{ID: "3", ProviderData: json.RawMessage(`{"id": 99}`)}

		res, err := a.UpdateWebhook(context.Background(), &testSession{client: srv.Client()}, testProject, integration)

		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, int64(100), storedHookID(integration.ProviderData))
	})
}

func TestAdapter_GetProviderData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id": 1, "url": "https://ci.example.com"}, {"id": 2, "url": "https://docs.example.com/api/v2/webhook/docs/3/"}]`)
	}))
	defer srv.Close()
	a, _ := newAdapter(t, srv.URL+"/api/v4")
	integration := &domain.Integration{ID: "3"}

	res, err := a.GetProviderData(context.Background(), &testSession{client: srv.Client()}, testProject, integration)

	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, int64(2), storedHookID(integration.ProviderData))

	res, err = a.GetProviderData(context.Background(), &testSession{client: srv.Client()}, testProject, &domain.Integration{ID: "4"})
	require.NoError(t, err)
	assert.False(t, res.OK)
}

func TestAdapter_SendBuildStatus(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v4/projects/group%2Fproj/statuses/deadbeef", r.URL.EscapedPath())
		got = readJSON(t, r)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 1}`)
	}))
	defer srv.Close()
	a, _ := newAdapter(t, srv.URL+"/api/v4")
	build := domain.Build{Commit: "deadbeef", URL: "https://docs.example.com/b/1", DocsURL: "https://docs.example.com/d/"}

	res, err := a.SendBuildStatus(context.Background(), &testSession{client: srv.Client()},
		testProject, build, domain.BuildStateFailure, false)

	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, "failed", got["state"])
	assert.Equal(t, "https://docs.example.com/b/1", got["target_url"])
	assert.Equal(t, "docs/docs", got["context"])

	_, err = a.SendBuildStatus(context.Background(), &testSession{client: srv.Client()},
		testProject, build, domain.BuildState("bogus"), false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

func serve(t *testing.T, cfg Config, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	NewServer(cfg).Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthAndMetrics(t *testing.T) {
	rec := serve(t, Config{}, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = serve(t, Config{}, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "remotesync_http_requests_total")
}

func TestSyncAccount(t *testing.T) {
	sync := &fakeSync{result: &domain.SyncResult{AccountID: "acc-1", Repositories: 4}}

	rec := serve(t, Config{Sync: sync}, http.MethodPost, "/accounts/acc-1/sync", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[domain.SyncResult](t, rec)
	assert.Equal(t, 4, got.Repositories)
}

func TestSyncAccount_Async(t *testing.T) {
	sync := &fakeSync{result: &domain.SyncResult{}, synced: make(chan string, 1)}

	rec := serve(t, Config{Sync: sync}, http.MethodPost, "/accounts/acc-1/sync?async=true", "")

	assert.Equal(t, http.StatusAccepted, rec.Code)
	select {
	case id := <-sync.synced:
		assert.Equal(t, "acc-1", id)
	case <-time.After(time.Second):
		t.Fatal("background sync did not run")
	}
}

func TestSyncAccount_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "revoked",
			err:     fmt.Errorf("sync: %w", domain.NewProviderError(domain.ProviderGitHub, domain.ErrAccessRevoked)),
			status:  http.StatusConflict,
			message: "Our access to your GitHub account was revoked",
		},
		{
			name:    "reauth",
			err:     domain.NewProviderError(domain.ProviderGitLab, domain.ErrReauthRequired),
			status:  http.StatusConflict,
			message: "Please sign in with GitLab again",
		},
		{
			name:    "not found",
			err:     fmt.Errorf("get account: %w", domain.ErrNotFound),
			status:  http.StatusNotFound,
			message: "not found",
		},
		{
			name:    "in progress",
			err:     domain.ErrSyncInProgress,
			status:  http.StatusConflict,
			message: "sync in progress",
		},
		{
			name:    "unsupported",
			err:     domain.ErrUnsupported,
			status:  http.StatusNotImplemented,
			message: "not supported",
		},
		{
			name:    "internal",
			err:     errors.New("database is locked"),
			status:  http.StatusInternalServerError,
			message: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, Config{Sync: &fakeSync{err: tt.err}}, http.MethodPost, "/accounts/acc-1/sync", "")

			assert.Equal(t, tt.status, rec.Code)
			body := decode[errorBody](t, rec)
			assert.Contains(t, body.Error, tt.message)
			assert.NotContains(t, body.Error, "database is locked")
		})
	}
}

func TestSyncUser_ReportsResultsAndError(t *testing.T) {
	sync := &fakeSync{
		results: []domain.SyncResult{{AccountID: "acc-1"}},
		err:     errors.Join(domain.NewProviderError(domain.ProviderBitbucket, domain.ErrAccessRevoked)),
	}

	rec := serve(t, Config{Sync: sync}, http.MethodPost, "/users/u-1/sync", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
	got := decode[userSyncResponse](t, rec)
	require.Len(t, got.Results, 1)
	assert.Contains(t, got.Error, "Bitbucket")
}

func TestSyncUser_EmptyResults(t *testing.T) {
	rec := serve(t, Config{Sync: &fakeSync{}}, http.MethodPost, "/users/u-1/sync", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"results":[]}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	rec := serve(t, Config{Sync: &fakeSync{}}, http.MethodGet, "/accounts/acc-1/status", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"account_id":"acc-1","running":true,"stage":"relations","items_processed":7,"error_count":0}`,
		rec.Body.String())
}

func TestUserListings(t *testing.T) {
	cfg := Config{Accounts: &fakeAccounts{}}

	rec := serve(t, cfg, http.MethodGet, "/users/u-1/accounts", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = serve(t, cfg, http.MethodGet, "/users/u-1/repositories", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "acme/docs")

	rec = serve(t, cfg, http.MethodGet, "/users/u-1/organizations", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"acme"`)
}

func TestDisconnect(t *testing.T) {
	rec := serve(t, Config{Accounts: &fakeAccounts{}}, http.MethodDelete, "/accounts/acc-1", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(t, Config{Accounts: &fakeAccounts{err: domain.ErrNotFound}}, http.MethodDelete, "/accounts/acc-1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConnectFlow(t *testing.T) {
	accounts := &fakeAccounts{}
	router := NewServer(Config{Accounts: accounts, BaseURL: "https://docs.example.com/"}).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/connect/app-1?user=u-1", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://gitlab.example.com/oauth/authorize?state=st-1", rec.Header().Get("Location"))
	assert.Equal(t, "https://docs.example.com/oauth/callback", accounts.redirect)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?state=st-1&code=c-1", nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	account := decode[domain.Account](t, rec)
	assert.Equal(t, "acc-new", account.ID)
	assert.Equal(t, []string{"u-1:app-1:c-1"}, accounts.completed)

	// A state is usable once.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?state=st-1&code=c-1", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConnect_Errors(t *testing.T) {
	rec := serve(t, Config{Accounts: &fakeAccounts{}}, http.MethodGet, "/connect/app-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(t, Config{Accounts: &fakeAccounts{err: domain.ErrNotFound}}, http.MethodGet, "/connect/app-1?user=u", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, Config{Accounts: &fakeAccounts{}}, http.MethodGet, "/oauth/callback?error=access_denied", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "access_denied")
}

func TestRedirectURI_FromRequest(t *testing.T) {
	accounts := &fakeAccounts{}
	req := httptest.NewRequest(http.MethodGet, "/connect/app-1?user=u-1", nil)
	req.Host = "localhost:8080"
	rec := httptest.NewRecorder()

	NewServer(Config{Accounts: accounts}).Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "http://localhost:8080/oauth/callback", accounts.redirect)
}

func TestPendingAuth_Expires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newPendingAuth(time.Minute, func() time.Time { return now })

	p.put("s", "u", domain.AuthorizationRequest{AppID: "a"})
	now = now.Add(2 * time.Minute)

	_, _, ok := p.take("s")
	assert.False(t, ok)
	_, _, ok = p.take("")
	assert.False(t, ok)
}

func TestWebhookRoutes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		op     string
	}{
		{http.MethodPost, "/projects/p-1/integrations/i-1/webhook", "setup"},
		{http.MethodPut, "/projects/p-1/integrations/i-1/webhook", "update"},
		{http.MethodPost, "/projects/p-1/integrations/i-1/webhook/sync", "provider-data"},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			hooks := &fakeHooks{result: &domain.HookResult{OK: true, StatusCode: 201, AccountID: "acc-1"}}

			rec := serve(t, Config{Hooks: hooks}, tt.method, tt.path, "")

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.op, hooks.op)
			assert.Equal(t, "acc-1", decode[domain.HookResult](t, rec).AccountID)
		})
	}
}

func TestWebhook_ProviderRefusal(t *testing.T) {
	hooks := &fakeHooks{result: &domain.HookResult{OK: false, StatusCode: 404}}

	rec := serve(t, Config{Hooks: hooks}, http.MethodPost, "/projects/p-1/integrations/i-1/webhook", "")

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestBuildStatus(t *testing.T) {
	t.Run("defaults link to build", func(t *testing.T) {
		hooks := &fakeHooks{result: &domain.HookResult{OK: true}}

		rec := serve(t, Config{Hooks: hooks}, http.MethodPost, "/builds/b-1/status", `{"state":"success"}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.BuildStateSuccess, hooks.state)
		assert.True(t, hooks.link)
	})

	t.Run("explicit link", func(t *testing.T) {
		hooks := &fakeHooks{result: &domain.HookResult{OK: true}}

		rec := serve(t, Config{Hooks: hooks}, http.MethodPost, "/builds/b-1/status",
			`{"state":"success","link_to_build":false}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, hooks.link)
	})

	t.Run("invalid state", func(t *testing.T) {
		hooks := &fakeHooks{}

		rec := serve(t, Config{Hooks: hooks}, http.MethodPost, "/builds/b-1/status", `{"state":"done"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, hooks.op)
	})

	t.Run("invalid body", func(t *testing.T) {
		rec := serve(t, Config{Hooks: &fakeHooks{}}, http.MethodPost, "/builds/b-1/status", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unsupported", func(t *testing.T) {
		hooks := &fakeHooks{err: domain.ErrUnsupported}

		rec := serve(t, Config{Hooks: hooks}, http.MethodPost, "/builds/b-1/status", `{"state":"pending"}`)

		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}

func TestNotConfigured(t *testing.T) {
	for _, target := range []string{"/accounts/a/sync", "/users/u/sync", "/builds/b/status"} {
		rec := serve(t, Config{}, http.MethodPost, target, `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
}

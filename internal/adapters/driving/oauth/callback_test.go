//nolint:noctx // http.Get is fine against a loopback test server
package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, state string) *CallbackServer {
	t.Helper()
	server := NewCallbackServer(0, state)
	require.NoError(t, server.Start())
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func callback(t *testing.T, server *CallbackServer, params url.Values) (int, string) {
	t.Helper()
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d%s?%s", server.Port(), CallbackPath, params.Encode()))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCallbackServer_StartPicksPort(t *testing.T) {
	server := startServer(t, "state")

	assert.NotZero(t, server.Port())
	assert.Equal(t, fmt.Sprintf("http://localhost:%d/callback", server.Port()), server.RedirectURI())
}

func TestCallbackServer_StartPortInUse(t *testing.T) {
	first := startServer(t, "state")

	second := NewCallbackServer(first.Port(), "state")
	err := second.Start()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestCallbackServer_StopIdempotent(t *testing.T) {
	server := NewCallbackServer(0, "state")
	require.NoError(t, server.Stop())

	require.NoError(t, server.Start())
	require.NoError(t, server.Stop())
	require.NoError(t, server.Stop())
}

func TestCallbackServer_ReceivesCode(t *testing.T) {
	server := startServer(t, "state-abc")

	status, body := callback(t, server, url.Values{"code": {"auth-code"}, "state": {"state-abc"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "Account connected")

	code, err := server.WaitForCode(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "auth-code", code)
}

func TestCallbackServer_Failures(t *testing.T) {
	tests := []struct {
		name   string
		params url.Values
		check  func(t *testing.T, err error)
	}{
		{
			name:   "state mismatch",
			params: url.Values{"code": {"auth-code"}, "state": {"forged"}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrStateMismatch)
			},
		},
		{
			name:   "provider error",
			params: url.Values{"error": {"access_denied"}, "error_description": {"user said <no>"}},
			check: func(t *testing.T, err error) {
				var perr *ProviderError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, "access_denied", perr.Code)
				assert.Equal(t, "oauth error: access_denied - user said <no>", perr.Error())
			},
		},
		{
			name:   "missing code",
			params: url.Values{"state": {"state-abc"}},
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "no authorization code")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, "state-abc")

			status, body := callback(t, server, tt.params)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, body, "Authorization failed")
			assert.NotContains(t, body, "<no>")

			_, err := server.WaitForCode(waitCtx(t))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestCallbackServer_WaitForCodeContextDone(t *testing.T) {
	server := NewCallbackServer(0, "state")
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := server.WaitForCode(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallbackServer_OnlyGet(t *testing.T) {
	server := startServer(t, "state")

	resp, err := http.Post(fmt.Sprintf("http://127.0.0.1:%d%s", server.Port(), CallbackPath), "text/plain", nil)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestResultPage_EscapesInput(t *testing.T) {
	page := resultPage("<b>title</b>", "a & b")

	assert.Contains(t, page, "&lt;b&gt;title&lt;/b&gt;")
	assert.Contains(t, page, "a &amp; b")
}

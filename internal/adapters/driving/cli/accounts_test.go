//nolint:noctx // http.Get against the loopback callback
package cli

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/remotesync/internal/adapters/driving/oauth"
	"github.com/custodia-labs/remotesync/internal/core/domain"
)

func TestAccountsList(t *testing.T) {
	accounts := &mockAccountService{accounts: []domain.Account{
		{ID: "acc-1", Provider: domain.ProviderGitHub, Username: "octocat"},
		{ID: "acc-2", Provider: domain.ProviderGitLab, Username: "tanuki"},
	}}

	out, err := execute(t, Services{Accounts: accounts}, "", "accounts", "list", "--user", "u-1")

	require.NoError(t, err)
	assert.Contains(t, out, "acc-1  github     octocat")
	assert.Contains(t, out, "acc-2  gitlab     tanuki")
}

func TestAccountsList_RequiresUser(t *testing.T) {
	_, err := execute(t, Services{Accounts: &mockAccountService{}}, "", "accounts", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user is required")
}

func TestAccountsConnect(t *testing.T) {
	port, err := oauth.FindAvailablePort(18100, 18199)
	require.NoError(t, err)
	accounts := &mockAccountService{}

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := execute(t, Services{Accounts: accounts}, "",
			"accounts", "connect", "--app", "app-1", "--user", "u-1",
			"--port", fmt.Sprint(port), "--no-browser", "--timeout", "5s")
		done <- outcome{out, err}
	}()

	require.Eventually(t, func() bool {
		req := accounts.begunRequest()
		if req == nil {
			return false
		}
		q := url.Values{"code": {"the-code"}, "state": {req.State}}
		resp, err := http.Get(req.RedirectURI + "?" + q.Encode())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond)

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Contains(t, res.out, "Authorize GitHub access in your browser")
		assert.Contains(t, res.out, "Connected GitHub account octocat (acc-1)")
	case <-time.After(5 * time.Second):
		t.Fatal("connect did not finish")
	}

	accounts.mu.Lock()
	defer accounts.mu.Unlock()
	assert.Equal(t, "the-code", accounts.completeCode)
	assert.Equal(t, "u-1", accounts.completeUser)
	assert.Equal(t, fmt.Sprintf("http://localhost:%d/callback", port), accounts.begun.RedirectURI)
}

func TestAccountsConnect_BeginFails(t *testing.T) {
	accounts := &mockAccountService{err: domain.ErrNotFound}

	_, err := execute(t, Services{Accounts: accounts}, "",
		"accounts", "connect", "--app", "missing", "--user", "u-1", "--no-browser")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestAccountsConnect_RequiresApp(t *testing.T) {
	_, err := execute(t, Services{Accounts: &mockAccountService{}}, "", "accounts", "connect", "--user", "u-1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"app" not set`)
}

func TestAccountsDisconnect(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		accounts := &mockAccountService{}

		out, err := execute(t, Services{Accounts: accounts}, "", "accounts", "disconnect", "acc-1")

		require.NoError(t, err)
		assert.Equal(t, "acc-1", accounts.disconnected)
		assert.Contains(t, out, "Disconnected account: acc-1")
	})

	t.Run("error", func(t *testing.T) {
		accounts := &mockAccountService{err: errors.New("locked")}

		_, err := execute(t, Services{Accounts: accounts}, "", "accounts", "disconnect", "acc-1")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "locked")
	})
}

package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driving"
)

// execute runs the root command with args against s and returns the
// combined output.
func execute(t *testing.T, s Services, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	Configure(s)
	t.Cleanup(func() { Configure(Services{}) })

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// resetFlags restores every flag to its default; pflag keeps parsed values
// between executions.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

type mockAccountService struct {
	mu           sync.Mutex
	accounts     []domain.Account
	repos        []domain.LinkedRepository
	orgs         []domain.RemoteOrganization
	begun        *domain.AuthorizationRequest
	completeCode string
	completeUser string
	disconnected string
	err          error
}

func (m *mockAccountService) BeginConnect(
	_ context.Context, appID, redirectURI string,
) (*domain.AuthorizationRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	req := &domain.AuthorizationRequest{
		AppID:       appID,
		Provider:    domain.ProviderGitHub,
		URL:         "https://github.com/login/oauth/authorize?state=st",
		State:       "st",
		RedirectURI: redirectURI,
	}
	m.mu.Lock()
	m.begun = req
	m.mu.Unlock()
	return req, nil
}

func (m *mockAccountService) begunRequest() *domain.AuthorizationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.begun
}

func (m *mockAccountService) CompleteConnect(
	_ context.Context, userID string, req domain.AuthorizationRequest, code string,
) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeUser, m.completeCode = userID, code
	return &domain.Account{ID: "acc-1", UserID: userID, Provider: req.Provider, Username: "octocat"}, nil
}

func (m *mockAccountService) List(_ context.Context, _ string) ([]domain.Account, error) {
	return m.accounts, m.err
}

func (m *mockAccountService) Disconnect(_ context.Context, accountID string) error {
	m.disconnected = accountID
	return m.err
}

func (m *mockAccountService) Repositories(_ context.Context, _ string) ([]domain.LinkedRepository, error) {
	return m.repos, m.err
}

func (m *mockAccountService) Organizations(_ context.Context, _ string) ([]domain.RemoteOrganization, error) {
	return m.orgs, m.err
}

type mockAppService struct {
	apps    []domain.OAuthApp
	saved   *domain.OAuthApp
	removed string
	err     error
}

func (m *mockAppService) Save(_ context.Context, app domain.OAuthApp) error {
	if m.err != nil {
		return m.err
	}
	if err := app.Validate(); err != nil {
		return err
	}
	m.saved = &app
	return nil
}

func (m *mockAppService) Get(_ context.Context, _ string) (*domain.OAuthApp, error) {
	return nil, domain.ErrNotFound
}

func (m *mockAppService) List(_ context.Context) ([]domain.OAuthApp, error) {
	return m.apps, m.err
}

func (m *mockAppService) Delete(_ context.Context, id string) error {
	m.removed = id
	return m.err
}

type mockSyncOrchestrator struct {
	result  domain.SyncResult
	err     error
	delay   time.Duration
	synced  []string
	user    string
	all     bool
	policy  domain.DeletionPolicy
	running bool
}

func (m *mockSyncOrchestrator) Sync(_ context.Context, accountID string) (*domain.SyncResult, error) {
	time.Sleep(m.delay)
	m.synced = append(m.synced, accountID)
	r := m.result
	r.AccountID = accountID
	return &r, m.err
}

func (m *mockSyncOrchestrator) SyncUser(_ context.Context, userID string) ([]domain.SyncResult, error) {
	m.user = userID
	return []domain.SyncResult{m.result}, m.err
}

func (m *mockSyncOrchestrator) SyncAll(_ context.Context) ([]domain.SyncResult, error) {
	m.all = true
	return []domain.SyncResult{m.result}, m.err
}

func (m *mockSyncOrchestrator) Status(_ context.Context, accountID string) (*driving.SyncStatus, error) {
	if m.running {
		return &driving.SyncStatus{AccountID: accountID, Running: true, Stage: "repositories", ItemsProcessed: 42}, nil
	}
	return &driving.SyncStatus{AccountID: accountID}, nil
}

func (m *mockSyncOrchestrator) SetDeletionPolicy(policy domain.DeletionPolicy) {
	m.policy = policy
}

type mockHookService struct {
	result *domain.HookResult
	err    error
	calls  []string
}

func (m *mockHookService) record(name string, args ...string) (*domain.HookResult, error) {
	m.calls = append(m.calls, name+":"+strings.Join(args, ","))
	return m.result, m.err
}

func (m *mockHookService) SetupWebhook(_ context.Context, p, i string) (*domain.HookResult, error) {
	return m.record("setup", p, i)
}

func (m *mockHookService) UpdateWebhook(_ context.Context, p, i string) (*domain.HookResult, error) {
	return m.record("update", p, i)
}

func (m *mockHookService) SyncProviderData(_ context.Context, p, i string) (*domain.HookResult, error) {
	return m.record("provider-data", p, i)
}

func (m *mockHookService) SendBuildStatus(
	_ context.Context, buildID string, state domain.BuildState, link bool,
) (*domain.HookResult, error) {
	l := "nolink"
	if link {
		l = "link"
	}
	return m.record("build-status", buildID, string(state), l)
}

package httpapi

import (
	"context"
	"sync"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driving"
)

type fakeSync struct {
	mu      sync.Mutex
	result  *domain.SyncResult
	results []domain.SyncResult
	err     error
	synced  chan string
}

func (f *fakeSync) Sync(_ context.Context, accountID string) (*domain.SyncResult, error) {
	if f.synced != nil {
		f.synced <- accountID
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeSync) SyncUser(_ context.Context, _ string) ([]domain.SyncResult, error) {
	return f.results, f.err
}

func (f *fakeSync) SyncAll(_ context.Context) ([]domain.SyncResult, error) {
	return f.results, f.err
}

func (f *fakeSync) Status(_ context.Context, accountID string) (*driving.SyncStatus, error) {
	return &driving.SyncStatus{AccountID: accountID, Running: true, Stage: "relations", ItemsProcessed: 7}, nil
}

func (f *fakeSync) SetDeletionPolicy(domain.DeletionPolicy) {}

type fakeAccounts struct {
	mu        sync.Mutex
	redirect  string
	completed []string
	err       error
}

func (f *fakeAccounts) BeginConnect(
	_ context.Context, appID, redirectURI string,
) (*domain.AuthorizationRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.redirect = redirectURI
	f.mu.Unlock()
	return &domain.AuthorizationRequest{
		AppID:       appID,
		Provider:    domain.ProviderGitLab,
		URL:         "https://gitlab.example.com/oauth/authorize?state=st-1",
		State:       "st-1",
		RedirectURI: redirectURI,
	}, nil
}

func (f *fakeAccounts) CompleteConnect(
	_ context.Context, userID string, req domain.AuthorizationRequest, code string,
) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, userID+":"+req.AppID+":"+code)
	return &domain.Account{ID: "acc-new", UserID: userID, Provider: req.Provider, Username: "tanuki"}, nil
}

func (f *fakeAccounts) List(_ context.Context, userID string) ([]domain.Account, error) {
	return []domain.Account{{ID: "acc-1", UserID: userID, Provider: domain.ProviderGitHub}}, f.err
}

func (f *fakeAccounts) Disconnect(_ context.Context, _ string) error {
	return f.err
}

func (f *fakeAccounts) Repositories(_ context.Context, _ string) ([]domain.LinkedRepository, error) {
	return []domain.LinkedRepository{{Repository: domain.RemoteRepository{FullName: "acme/docs"}}}, f.err
}

func (f *fakeAccounts) Organizations(_ context.Context, _ string) ([]domain.RemoteOrganization, error) {
	return []domain.RemoteOrganization{{Slug: "acme"}}, f.err
}

type fakeHooks struct {
	result *domain.HookResult
	err    error
	state  domain.BuildState
	link   bool
	op     string
}

func (f *fakeHooks) SetupWebhook(_ context.Context, _, _ string) (*domain.HookResult, error) {
	f.op = "setup"
	return f.result, f.err
}

func (f *fakeHooks) UpdateWebhook(_ context.Context, _, _ string) (*domain.HookResult, error) {
	f.op = "update"
	return f.result, f.err
}

func (f *fakeHooks) SyncProviderData(_ context.Context, _, _ string) (*domain.HookResult, error) {
	f.op = "provider-data"
	return f.result, f.err
}

func (f *fakeHooks) SendBuildStatus(
	_ context.Context, _ string, state domain.BuildState, link bool,
) (*domain.HookResult, error) {
	f.op, f.state, f.link = "status", state, link
	return f.result, f.err
}

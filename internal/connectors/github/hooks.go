package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/remotesync/internal/connectors"
	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// webhookEvents are the events a project webhook subscribes to.
var webhookEvents = []string{"push", "pull_request", "create", "delete"}

// repoRef resolves the project's repository and a client for the session.
func (a *Adapter) repoRef(
	ctx context.Context, sess driven.Session, project domain.Project,
) (client *gh.Client, owner, name string, err error) {
	path, err := a.RepositoryPath(ctx, project)
	if err != nil {
		return nil, "", "", err
	}
	owner, name, ok := strings.Cut(path, "/")
	if !ok {
		return nil, "", "", fmt.Errorf("%w: repository path %q", domain.ErrInvalidInput, path)
	}
	client, err = a.client(sess)
	return client, owner, name, err
}

func (a *Adapter) hook(project domain.Project, integration *domain.Integration) *gh.Hook {
	cfg := &gh.HookConfig{
		URL:         gh.Ptr(a.WebhookURL(project, integration)),
		ContentType: gh.Ptr("json"),
		InsecureSSL: gh.Ptr("0"),
	}
	if integration.Secret != "" {
		cfg.Secret = gh.Ptr(integration.Secret)
	}
	return &gh.Hook{
		Name:   gh.Ptr("web"),
		Active: gh.Ptr(true),
		Events: webhookEvents,
		Config: cfg,
	}
}

// SetupWebhook creates the project's webhook and stores the hook object on
// the integration.
func (a *Adapter) SetupWebhook(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error) {
	client, owner, name, err := a.repoRef(ctx, sess, project)
	if err != nil {
		return domain.HookResult{}, err
	}

	created, resp, err := client.Repositories.CreateHook(ctx, owner, name, a.hook(project, integration))
	result, err := a.result(sess, created, resp, err)
	if err != nil {
		return result, err
	}
	if result.OK {
		integration.ProviderData = result.Body
		logger.Info("GitHub webhook created for %s/%s", owner, name)
	} else {
		logger.Warn("GitHub webhook creation failed for %s/%s: status %d", owner, name, result.StatusCode)
	}
	return result, nil
}

// UpdateWebhook edits the stored hook. When there is no stored hook, or
// GitHub no longer has it, the hook is created instead.
func (a *Adapter) UpdateWebhook(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error) {
	hookID := storedHookID(integration.ProviderData)
	if hookID == 0 {
		return a.SetupWebhook(ctx, sess, project, integration)
	}

	client, owner, name, err := a.repoRef(ctx, sess, project)
	if err != nil {
		return domain.HookResult{}, err
	}

	edited, resp, err := client.Repositories.EditHook(ctx, owner, name, hookID, a.hook(project, integration))
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		logger.Debug("GitHub hook %d gone for %s/%s, recreating", hookID, owner, name)
		return a.SetupWebhook(ctx, sess, project, integration)
	}
	result, err := a.result(sess, edited, resp, err)
	if err != nil {
		return result, err
	}
	if result.OK {
		integration.ProviderData = result.Body
	}
	return result, nil
}

// GetProviderData finds the hook that points at this deployment and stores
// it on the integration.
func (a *Adapter) GetProviderData(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error) {
	client, owner, name, err := a.repoRef(ctx, sess, project)
	if err != nil {
		return domain.HookResult{}, err
	}

	target := a.WebhookURL(project, integration)
	opts := &gh.ListOptions{PerPage: a.Config.PageSize}
	for {
		hooks, resp, err := client.Repositories.ListHooks(ctx, owner, name, opts)
		if err != nil {
			return a.result(sess, nil, resp, err)
		}
		for _, hook := range hooks {
			if hook.GetConfig().GetURL() == target {
				result, err := a.result(sess, hook, resp, nil)
				if err == nil {
					integration.ProviderData = result.Body
				}
				return result, err
			}
		}
		if resp.NextPage == 0 {
			return domain.HookResult{
				OK:         false,
				StatusCode: http.StatusNotFound,
				AccountID:  sess.Account().ID,
			}, nil
		}
		opts.Page = resp.NextPage
	}
}

// commitStatus is the body of POST /repos/{owner}/{repo}/statuses/{sha}.
type commitStatus struct {
	State       string `json:"state"`
	TargetURL   string `json:"target_url"`
	Description string `json:"description"`
	Context     string `json:"context"`
}

// SendBuildStatus reports the build state on the build's commit.
func (a *Adapter) SendBuildStatus(
	ctx context.Context, sess driven.Session, project domain.Project, build domain.Build,
	state domain.BuildState, linkToBuild bool,
) (domain.HookResult, error) {
	if !state.IsValid() {
		return domain.HookResult{}, fmt.Errorf("%w: build state %q", domain.ErrInvalidInput, state)
	}
	client, owner, name, err := a.repoRef(ctx, sess, project)
	if err != nil {
		return domain.HookResult{}, err
	}

	status := commitStatus{
		State:       string(state),
		TargetURL:   build.StatusTargetURL(state, linkToBuild),
		Description: state.Description(),
		Context:     domain.StatusContext(project.Slug),
	}
	path := fmt.Sprintf("repos/%s/%s/statuses/%s", owner, name, build.Commit)
	req, err := client.NewRequest(http.MethodPost, path, status)
	if err != nil {
		return domain.HookResult{}, fmt.Errorf("github: build status request: %w", err)
	}

	var created json.RawMessage
	resp, err := client.Do(ctx, req, &created)
	return a.result(sess, created, resp, err)
}

// result converts a go-github call outcome into a HookResult. Provider
// rejections are results; only transport and authentication failures are
// errors.
func (a *Adapter) result(sess driven.Session, v any, resp *gh.Response, err error) (domain.HookResult, error) {
	accountID := sess.Account().ID
	if err != nil {
		if resp == nil || resp.Response == nil || resp.StatusCode == http.StatusUnauthorized {
			return domain.HookResult{}, a.callError(resp, err, "hook call")
		}
		var body []byte
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) {
			body, _ = json.Marshal(ghErr)
		} else {
			body = []byte(err.Error())
		}
		return connectors.NewHookResult(resp.StatusCode, body, accountID), nil
	}

	body, err := json.Marshal(v)
	if err != nil {
		return domain.HookResult{}, fmt.Errorf("github: encode response: %w", err)
	}
	return connectors.NewHookResult(resp.StatusCode, body, accountID), nil
}

// storedHookID reads the hook id from stored provider data.
func storedHookID(data json.RawMessage) int64 {
	if len(data) == 0 {
		return 0
	}
	var hook struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &hook); err != nil {
		return 0
	}
	return hook.ID
}

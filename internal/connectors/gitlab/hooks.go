package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// hookRequest is the body of the project hook endpoints.
type hookRequest struct {
	URL                   string `json:"url"`
	Token                 string `json:"token,omitempty"`
	PushEvents            bool   `json:"push_events"`
	TagPushEvents         bool   `json:"tag_push_events"`
	MergeRequestsEvents   bool   `json:"merge_requests_events"`
	IssuesEvents          bool   `json:"issues_events"`
	NoteEvents            bool   `json:"note_events"`
	EnableSSLVerification bool   `json:"enable_ssl_verification"`
}

// statusStates maps build states to GitLab commit status states.
var statusStates = map[domain.BuildState]string{
	domain.BuildStateFailure: "failed",
	domain.BuildStatePending: "pending",
	domain.BuildStateSuccess: "success",
}

// projectURL returns the API URL of the project, addressed by its path.
func (a *Adapter) projectURL(ctx context.Context, project domain.Project, suffix string) (string, error) {
	path, err := a.RepositoryPath(ctx, project)
	if err != nil {
		return "", err
	}
	return a.Config.APIURL + "/projects/" + escapeID(path) + suffix, nil
}

func (a *Adapter) hookRequest(project domain.Project, integration *domain.Integration) hookRequest {
	return hookRequest{
		URL:                   a.WebhookURL(project, integration),
		Token:                 integration.Secret,
		PushEvents:            true,
		TagPushEvents:         true,
		MergeRequestsEvents:   true,
		EnableSSLVerification: true,
	}
}

// SetupWebhook creates the project hook and stores it on the integration.
func (a *Adapter) SetupWebhook(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error) {
	target, err := a.projectURL(ctx, project, "/hooks")
	if err != nil {
		return domain.HookResult{}, err
	}
	res, err := a.DoJSON(ctx, sess, http.MethodPost, target, a.hookRequest(project, integration))
	if err != nil {
		return res, err
	}
	if res.OK {
		integration.ProviderData = res.Body
		logger.Info("GitLab webhook created for project %s", project.Slug)
	} else {
		logger.Warn("GitLab webhook creation failed for project %s: status %d", project.Slug, res.StatusCode)
	}
	return res, nil
}

// UpdateWebhook updates the stored hook, creating it when GitLab no longer
// has it or none is stored.
func (a *Adapter) UpdateWebhook(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error) {
	hookID := storedHookID(integration.ProviderData)
	if hookID == 0 {
		return a.SetupWebhook(ctx, sess, project, integration)
	}
	target, err := a.projectURL(ctx, project, fmt.Sprintf("/hooks/%d", hookID))
	if err != nil {
		return domain.HookResult{}, err
	}
	res, err := a.DoJSON(ctx, sess, http.MethodPut, target, a.hookRequest(project, integration))
	if err != nil {
		return res, err
	}
	if res.StatusCode == http.StatusNotFound {
		logger.Debug("GitLab hook %d gone for project %s, recreating", hookID, project.Slug)
		return a.SetupWebhook(ctx, sess, project, integration)
	}
	if res.OK {
		integration.ProviderData = res.Body
	}
	return res, nil
}

// GetProviderData finds the hook pointing at this deployment.
func (a *Adapter) GetProviderData(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error) {
	target, err := a.projectURL(ctx, project, "/hooks")
	if err != nil {
		return domain.HookResult{}, err
	}
	res, err := a.DoJSON(ctx, sess, http.MethodGet, target, nil)
	if err != nil || !res.OK {
		return res, err
	}

	var hooks []json.RawMessage
	if err := json.Unmarshal(res.Body, &hooks); err != nil {
		return domain.HookResult{}, fmt.Errorf("%w: gitlab hooks: %v", domain.ErrMappingFailed, err)
	}
	want := a.WebhookURL(project, integration)
	for _, hook := range hooks {
		var h struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(hook, &h) == nil && h.URL == want {
			integration.ProviderData = hook
			res.Body = hook
			return res, nil
		}
	}
	return domain.HookResult{OK: false, StatusCode: http.StatusNotFound, AccountID: res.AccountID}, nil
}

// SendBuildStatus posts a commit status.
func (a *Adapter) SendBuildStatus(
	ctx context.Context, sess driven.Session, project domain.Project, build domain.Build,
	state domain.BuildState, linkToBuild bool,
) (domain.HookResult, error) {
	glState, ok := statusStates[state]
	if !ok {
		return domain.HookResult{}, fmt.Errorf("%w: build state %q", domain.ErrInvalidInput, state)
	}
	target, err := a.projectURL(ctx, project, "/statuses/"+build.Commit)
	if err != nil {
		return domain.HookResult{}, err
	}
	statusContext := domain.StatusContext(project.Slug)
	return a.DoJSON(ctx, sess, http.MethodPost, target, map[string]string{
		"state":       glState,
		"target_url":  build.StatusTargetURL(state, linkToBuild),
		"description": state.Description(),
		"name":        statusContext,
		"context":     statusContext,
	})
}

func storedHookID(data json.RawMessage) int64 {
	var hook struct {
		ID int64 `json:"id"`
	}
	if len(data) == 0 || json.Unmarshal(data, &hook) != nil {
		return 0
	}
	return hook.ID
}

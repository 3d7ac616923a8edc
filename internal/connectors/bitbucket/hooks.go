package bitbucket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// hookRequest is the body of the repository hook endpoints.
type hookRequest struct {
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Active      bool     `json:"active"`
	Secret      string   `json:"secret,omitempty"`
	Events      []string `json:"events"`
}

func (a *Adapter) hookRequest(project domain.Project, integration *domain.Integration) hookRequest {
	return hookRequest{
		Description: "Documentation builds for " + project.Slug,
		URL:         a.WebhookURL(project, integration),
		Active:      true,
		Secret:      integration.Secret,
		Events:      []string{"repo:push"},
	}
}

func (a *Adapter) hooksURL(ctx context.Context, project domain.Project, hookUUID string) (string, error) {
	path, err := a.RepositoryPath(ctx, project)
	if err != nil {
		return "", err
	}
	target := a.Config.APIURL + "/repositories/" + path + "/hooks"
	if hookUUID != "" {
		target += "/" + url.PathEscape(hookUUID)
	}
	return target, nil
}

// SetupWebhook creates the repository hook and stores it on the integration.
func (a *Adapter) SetupWebhook(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error) {
	target, err := a.hooksURL(ctx, project, "")
	if err != nil {
		return domain.HookResult{}, err
	}
	res, err := a.DoJSON(ctx, sess, http.MethodPost, target, a.hookRequest(project, integration))
	if err != nil {
		return res, err
	}
	if res.OK {
		integration.ProviderData = res.Body
		logger.Info("Bitbucket webhook created for project %s", project.Slug)
	} else {
		logger.Warn("Bitbucket webhook creation failed for project %s: status %d", project.Slug, res.StatusCode)
	}
	return res, nil
}

// UpdateWebhook updates the stored hook, creating it when Bitbucket no
// longer has it or none is stored.
func (a *Adapter) UpdateWebhook(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error) {
	hookUUID := storedHookUUID(integration.ProviderData)
	if hookUUID == "" {
		return a.SetupWebhook(ctx, sess, project, integration)
	}
	target, err := a.hooksURL(ctx, project, hookUUID)
	if err != nil {
		return domain.HookResult{}, err
	}
	res, err := a.DoJSON(ctx, sess, http.MethodPut, target, a.hookRequest(project, integration))
	if err != nil {
		return res, err
	}
	if res.StatusCode == http.StatusNotFound {
		logger.Debug("Bitbucket hook %s gone for project %s, recreating", hookUUID, project.Slug)
		return a.SetupWebhook(ctx, sess, project, integration)
	}
	if res.OK {
		integration.ProviderData = res.Body
	}
	return res, nil
}

// GetProviderData finds the hook pointing at this deployment, following
// the hook listing's pages.
func (a *Adapter) GetProviderData(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error) {
	target, err := a.hooksURL(ctx, project, "")
	if err != nil {
		return domain.HookResult{}, err
	}
	want := a.WebhookURL(project, integration)

	for target != "" {
		res, err := a.DoJSON(ctx, sess, http.MethodGet, target, nil)
		if err != nil || !res.OK {
			return res, err
		}
		p, err := a.DecodePage(nil, res.Body)
		if err != nil {
			return domain.HookResult{}, fmt.Errorf("%w: bitbucket hooks: %v", domain.ErrMappingFailed, err)
		}
		for _, hook := range p.Items {
			var h struct {
				URL string `json:"url"`
			}
			if json.Unmarshal(hook, &h) == nil && h.URL == want {
				integration.ProviderData = hook
				res.Body = hook
				return res, nil
			}
		}
		target = p.Next
	}
	return domain.HookResult{OK: false, StatusCode: http.StatusNotFound, AccountID: sess.Account().ID}, nil
}

func storedHookUUID(data json.RawMessage) string {
	var hook struct {
		UUID string `json:"uuid"`
	}
	if len(data) == 0 || json.Unmarshal(data, &hook) != nil {
		return ""
	}
	return hook.UUID
}

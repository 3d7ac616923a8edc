package domain

import (
	"encoding/json"
	"time"
)

// Project is a documentation project hooked to a repository.
type Project struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Name string `json:"name"`
	// RepoURL is the repository URL the project builds from.
	RepoURL string `json:"repo_url"`
	// RemoteRepositoryID is the linked canonical repository, if any.
	RemoteRepositoryID string `json:"remote_repository_id,omitempty"`
	// Users are the IDs of the project maintainers.
	Users []string `json:"users"`
}

// Integration is a project's webhook integration with a provider.
type Integration struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Kind      string `json:"kind"`
	// Secret signs webhook deliveries.
	Secret string `json:"secret,omitempty"`
	// ProviderData is the provider's last reported webhook object.
	ProviderData json.RawMessage `json:"provider_data,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Integration kinds.
const (
	IntegrationGitHubWebhook    = "github_webhook"
	IntegrationGitLabWebhook    = "gitlab_webhook"
	IntegrationBitbucketWebhook = "bitbucket_webhook"
)

// BuildState is the commit status reported for a build.
type BuildState string

const (
	BuildStateFailure BuildState = "failure"
	BuildStatePending BuildState = "pending"
	BuildStateSuccess BuildState = "success"
)

// IsValid returns true for the known states.
func (s BuildState) IsValid() bool {
	switch s {
	case BuildStateFailure, BuildStatePending, BuildStateSuccess:
		return true
	}
	return false
}

// Description returns the status text shown next to the commit.
func (s BuildState) Description() string {
	switch s {
	case BuildStateSuccess:
		return "Documentation build succeeded!"
	case BuildStatePending:
		return "Documentation build is in progress."
	default:
		return "Documentation build failed!"
	}
}

// Build is one documentation build of a project at a commit.
type Build struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Commit    string `json:"commit"`
	// URL is the build detail page.
	URL string `json:"url"`
	// DocsURL is the page of the built documentation.
	DocsURL string `json:"docs_url"`
}

// StatusTargetURL returns the link attached to a commit status.
func (b *Build) StatusTargetURL(state BuildState, linkToBuild bool) string {
	if !linkToBuild && state == BuildStateSuccess && b.DocsURL != "" {
		return b.DocsURL
	}
	return b.URL
}

// StatusContext returns the commit-status context for a project.
func StatusContext(projectSlug string) string {
	return "docs/" + projectSlug
}

// HookResult is the outcome of a webhook or status call.
type HookResult struct {
	OK         bool            `json:"ok"`
	StatusCode int             `json:"status_code"`
	Body       json.RawMessage `json:"body,omitempty"`
	AccountID  string          `json:"account_id,omitempty"`
}

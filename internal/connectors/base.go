package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// Config is the configuration every adapter is built with.
type Config struct {
	// APIURL is the provider API root, without a trailing slash.
	APIURL string
	// WebURL is the provider web root.
	WebURL string
	// BaseURL is the public URL of this deployment, used for webhook targets.
	BaseURL string
	// PageSize is requested on every listing.
	PageSize int
	Avatars  domain.AvatarSettings
}

// Base implements the parts of driven.Provider that do not depend on the
// provider's payload shapes. Adapters embed it and override what they
// support.
type Base struct {
	Remotes driven.RemoteStore
	Config  Config

	provider       domain.ProviderType
	projectPattern *regexp.Regexp
}

// NewBase creates the shared adapter core. projectPattern matches the
// repository URLs of projects hosted on the provider.
func NewBase(
	provider domain.ProviderType, remotes driven.RemoteStore, cfg Config, projectPattern *regexp.Regexp,
) Base {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	cfg.WebURL = strings.TrimRight(cfg.WebURL, "/")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PageSize <= 0 {
		cfg.PageSize = domain.DefaultPageSize
	}
	return Base{
		Remotes:        remotes,
		Config:         cfg,
		provider:       provider,
		projectPattern: projectPattern,
	}
}

// Type returns the provider this adapter serves.
func (b *Base) Type() domain.ProviderType {
	return b.provider
}

// IsProjectService matches the project's repository URL against the
// provider's URL pattern.
func (b *Base) IsProjectService(project domain.Project) bool {
	return b.projectPattern != nil && b.projectPattern.MatchString(project.RepoURL)
}

// ==================== Unsupported defaults ====================

func (b *Base) SetupWebhook(
	context.Context, driven.Session, domain.Project, *domain.Integration,
) (domain.HookResult, error) {
	return domain.HookResult{}, domain.ErrUnsupported
}

func (b *Base) UpdateWebhook(
	context.Context, driven.Session, domain.Project, *domain.Integration,
) (domain.HookResult, error) {
	return domain.HookResult{}, domain.ErrUnsupported
}

func (b *Base) GetProviderData(
	context.Context, driven.Session, domain.Project, *domain.Integration,
) (domain.HookResult, error) {
	return domain.HookResult{}, domain.ErrUnsupported
}

func (b *Base) SendBuildStatus(
	context.Context, driven.Session, domain.Project, domain.Build, domain.BuildState, bool,
) (domain.HookResult, error) {
	return domain.HookResult{}, domain.ErrUnsupported
}

// ==================== URLs ====================

// APIURL joins path onto the API root and encodes query.
func (b *Base) APIURL(path string, query url.Values) string {
	u := b.Config.APIURL + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// WebhookURL is the endpoint the provider delivers project events to.
func (b *Base) WebhookURL(project domain.Project, integration *domain.Integration) string {
	return fmt.Sprintf("%s/api/v2/webhook/%s/%s/", b.Config.BaseURL, project.Slug, integration.ID)
}

// RepositoryPath returns the "owner/name" path of the project's repository:
// the linked canonical repository when there is one, else the path parsed
// from the project's repository URL.
func (b *Base) RepositoryPath(ctx context.Context, project domain.Project) (string, error) {
	if project.RemoteRepositoryID != "" {
		repo, err := b.Remotes.GetRepositoryByID(ctx, project.RemoteRepositoryID)
		if err == nil {
			return repo.FullName, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
	}
	path, ok := ParseRepoPath(project.RepoURL)
	if !ok {
		return "", fmt.Errorf("%w: repository url %q", domain.ErrInvalidInput, project.RepoURL)
	}
	return path, nil
}

// HostPattern matches HTTPS and SSH repository URLs on the host of webURL,
// including its subdomains.
func HostPattern(webURL string) *regexp.Regexp {
	host := webURL
	if u, err := url.Parse(webURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return regexp.MustCompile(`(^|[/@.])` + regexp.QuoteMeta(host) + `[/:]`)
}

var repoPathRegex = regexp.MustCompile(`^(?:[a-z+]+://(?:[^@/]+@)?[^/]+/|[^@]+@[^:]+:)(.+?)(?:\.git)?/?$`)

// ParseRepoPath extracts the repository path from an HTTPS or SSH clone URL:
// "https://github.com/a/b.git" and "git@github.com:a/b.git" both give "a/b".
func ParseRepoPath(repoURL string) (string, bool) {
	m := repoPathRegex.FindStringSubmatch(strings.TrimSpace(repoURL))
	if m == nil || !strings.Contains(m[1], "/") {
		return "", false
	}
	return m[1], true
}

// ==================== Mapping ====================

// Decode unmarshals a payload item, wrapping failures in ErrMappingFailed.
func Decode(fields json.RawMessage, v any) error {
	if err := json.Unmarshal(fields, v); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMappingFailed, err)
	}
	return nil
}

// MappingError reports a payload missing a required field.
func MappingError(provider domain.ProviderType, field string) error {
	return fmt.Errorf("%w: %s payload without %s", domain.ErrMappingFailed, provider.DisplayName(), field)
}

// UpsertRepository applies the import rules shared by every provider and
// upserts repo. It returns nil and no error when the repository is not
// imported: its visibility is not allowed at privacy, or it is already
// owned by an organization other than org.
//
// repo carries both clone URLs; the stored CloneURL is the SSH URL for
// private repositories.
func (b *Base) UpsertRepository(
	ctx context.Context, repo *domain.RemoteRepository, privacy domain.Privacy, org *domain.RemoteOrganization,
) (*domain.RemoteRepository, error) {
	if !privacy.Allows(repo.Private) {
		logger.Debug("not importing %s: private repository at privacy level %s", repo.FullName, privacy)
		return nil, nil
	}

	orgID := ""
	if org != nil {
		orgID = org.ID
	}

	existing, err := b.Remotes.GetRepository(ctx, b.provider, repo.FullName)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		repo.ID = uuid.NewString()
	case err != nil:
		return nil, fmt.Errorf("lookup repository %s: %w", repo.FullName, err)
	default:
		if existing.OrganizationID != "" && existing.OrganizationID != orgID {
			logger.Debug("not importing %s: owned by another organization", repo.FullName)
			return nil, nil
		}
		repo.ID = existing.ID
	}

	repo.Provider = b.provider
	repo.OrganizationID = orgID
	if repo.Private && repo.SSHURL != "" {
		repo.CloneURL = repo.SSHURL
	}
	if repo.AvatarURL == "" {
		repo.AvatarURL = b.Config.Avatars.DefaultUserAvatarURL
	}
	if repo.VCS == "" {
		repo.VCS = domain.VCSGit
	}

	if err := b.Remotes.UpsertRepository(ctx, repo); err != nil {
		return nil, err
	}
	return repo, nil
}

// UpsertOrganization fills the shared defaults and upserts org.
func (b *Base) UpsertOrganization(
	ctx context.Context, org *domain.RemoteOrganization,
) (*domain.RemoteOrganization, error) {
	org.Provider = b.provider
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if org.AvatarURL == "" {
		org.AvatarURL = b.Config.Avatars.DefaultOrgAvatarURL
	}
	if err := b.Remotes.UpsertOrganization(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// ==================== Hook requests ====================

// DoJSON sends payload as JSON and returns the provider's answer. Non-2xx
// responses are reported through HookResult.OK, not as errors; a 401 is
// reported as access revoked.
func (b *Base) DoJSON(
	ctx context.Context, sess driven.Session, method, target string, payload any,
) (domain.HookResult, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return domain.HookResult{}, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return domain.HookResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sess.Client().Do(req)
	if err != nil {
		var perr *domain.ProviderError
		if errors.As(err, &perr) {
			return domain.HookResult{}, perr
		}
		return domain.HookResult{}, fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return domain.HookResult{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return domain.HookResult{}, domain.NewProviderError(b.provider, domain.ErrAccessRevoked)
	}

	return NewHookResult(resp.StatusCode, respBody, sess.Account().ID), nil
}

// NewHookResult builds a HookResult, keeping body when it is JSON and
// quoting it as a JSON string otherwise.
func NewHookResult(status int, body []byte, accountID string) domain.HookResult {
	result := domain.HookResult{
		OK:         status >= 200 && status < 300,
		StatusCode: status,
		AccountID:  accountID,
	}
	trimmed := bytes.TrimSpace(body)
	switch {
	case len(trimmed) == 0:
	case json.Valid(trimmed):
		result.Body = json.RawMessage(trimmed)
	default:
		quoted, _ := json.Marshal(Excerpt(trimmed))
		result.Body = quoted
	}
	return result
}

package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/custodia-labs/remotesync/internal/connectors"
	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

const (
	// DefaultAPIURL is the GitLab.com API root.
	DefaultAPIURL = "https://gitlab.com/api/v4"

	// DefaultWebURL is the GitLab.com web root.
	DefaultWebURL = "https://gitlab.com"

	// MaintainerAccess is the lowest access level treated as admin.
	MaintainerAccess = 40
)

var _ driven.Provider = (*Adapter)(nil)

// Adapter is the GitLab provider adapter.
type Adapter struct {
	connectors.Base
}

// New creates a GitLab adapter. Empty URLs in cfg default to GitLab.com.
func New(remotes driven.RemoteStore, cfg connectors.Config) *Adapter {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.WebURL == "" {
		cfg.WebURL = DefaultWebURL
	}
	return &Adapter{
		Base: connectors.NewBase(domain.ProviderGitLab, remotes, cfg, connectors.HostPattern(cfg.WebURL)),
	}
}

// DecodePage reads a JSON array page; the next page comes from the Link header.
func (a *Adapter) DecodePage(resp *http.Response, body []byte) (driven.Page, error) {
	return connectors.DecodeArrayPage(resp, body)
}

// RepositoriesURL lists the projects the user is a member of.
func (a *Adapter) RepositoriesURL() string {
	q := a.pageQuery()
	q.Set("membership", "true")
	return a.APIURL("/projects", q)
}

// OrganizationsURL lists the groups the user is a member of.
func (a *Adapter) OrganizationsURL() string {
	return a.APIURL("/groups", a.pageQuery())
}

// OrganizationRepositoriesURL lists the projects of a group.
func (a *Adapter) OrganizationRepositoriesURL(org domain.RemoteOrganization) string {
	id := org.RemoteID
	if id == "" {
		id = org.Slug
	}
	return a.APIURL("/groups/"+escapeID(id)+"/projects", a.pageQuery())
}

func (a *Adapter) pageQuery() url.Values {
	return url.Values{"per_page": {strconv.Itoa(a.Config.PageSize)}}
}

// escapeID encodes a numeric id or a namespaced path for use as a single
// path segment.
func escapeID(id string) string {
	return url.PathEscape(id)
}

// ==================== Mapping ====================

type accessLevel struct {
	AccessLevel int `json:"access_level"`
}

type projectPayload struct {
	ID                *int64  `json:"id"`
	Name              string  `json:"name"`
	PathWithNamespace string  `json:"path_with_namespace"`
	Description       *string `json:"description"`
	Visibility        string  `json:"visibility"`
	HTTPURLToRepo     string  `json:"http_url_to_repo"`
	SSHURLToRepo      string  `json:"ssh_url_to_repo"`
	WebURL            string  `json:"web_url"`
	AvatarURL         *string `json:"avatar_url"`
	DefaultBranch     string  `json:"default_branch"`
	Namespace         struct {
		AvatarURL *string `json:"avatar_url"`
	} `json:"namespace"`
	Permissions struct {
		ProjectAccess *accessLevel `json:"project_access"`
		GroupAccess   *accessLevel `json:"group_access"`
	} `json:"permissions"`
}

func (p *projectPayload) admin() bool {
	for _, access := range []*accessLevel{p.Permissions.ProjectAccess, p.Permissions.GroupAccess} {
		if access != nil && access.AccessLevel >= MaintainerAccess {
			return true
		}
	}
	return false
}

func (p *projectPayload) avatar() string {
	if p.AvatarURL != nil && *p.AvatarURL != "" {
		return *p.AvatarURL
	}
	if p.Namespace.AvatarURL != nil {
		return *p.Namespace.AvatarURL
	}
	return ""
}

// CreateRepository maps a GitLab project payload and upserts it. Internal
// projects are treated as private.
func (a *Adapter) CreateRepository(
	ctx context.Context, fields json.RawMessage, privacy domain.Privacy, org *domain.RemoteOrganization,
) (*domain.RemoteRepository, error) {
	var payload projectPayload
	if err := connectors.Decode(fields, &payload); err != nil {
		return nil, err
	}
	if payload.PathWithNamespace == "" {
		return nil, connectors.MappingError(domain.ProviderGitLab, "path_with_namespace")
	}
	if payload.ID == nil {
		return nil, connectors.MappingError(domain.ProviderGitLab, "id")
	}

	repo := &domain.RemoteRepository{
		RemoteID:      strconv.FormatInt(*payload.ID, 10),
		FullName:      payload.PathWithNamespace,
		Name:          payload.Name,
		Private:       payload.Visibility != "public",
		CloneURL:      payload.HTTPURLToRepo,
		SSHURL:        payload.SSHURLToRepo,
		HTMLURL:       payload.WebURL,
		AvatarURL:     payload.avatar(),
		VCS:           domain.VCSGit,
		DefaultBranch: payload.DefaultBranch,
		JSON:          fields,
		ViewerAdmin:   payload.admin(),
	}
	if payload.Description != nil {
		repo.Description = *payload.Description
	}
	return a.UpsertRepository(ctx, repo, privacy, org)
}

type groupPayload struct {
	ID        *int64  `json:"id"`
	Name      string  `json:"name"`
	Path      string  `json:"path"`
	FullPath  string  `json:"full_path"`
	WebURL    string  `json:"web_url"`
	AvatarURL *string `json:"avatar_url"`
}

// CreateOrganization maps a GitLab group payload and upserts it. Subgroups
// are keyed by their full path.
func (a *Adapter) CreateOrganization(ctx context.Context, fields json.RawMessage) (*domain.RemoteOrganization, error) {
	var payload groupPayload
	if err := connectors.Decode(fields, &payload); err != nil {
		return nil, err
	}
	slug := payload.FullPath
	if slug == "" {
		slug = payload.Path
	}
	if slug == "" {
		return nil, connectors.MappingError(domain.ProviderGitLab, "full_path")
	}
	if payload.ID == nil {
		return nil, connectors.MappingError(domain.ProviderGitLab, "id")
	}

	org := &domain.RemoteOrganization{
		RemoteID: strconv.FormatInt(*payload.ID, 10),
		Slug:     slug,
		Name:     payload.Name,
		URL:      payload.WebURL,
		JSON:     fields,
	}
	if payload.AvatarURL != nil {
		org.AvatarURL = *payload.AvatarURL
	}
	if org.Name == "" {
		org.Name = slug
	}
	return a.UpsertOrganization(ctx, org)
}

// ==================== Identity ====================

// Identity returns the authenticated GitLab user.
func (a *Adapter) Identity(ctx context.Context, sess driven.Session) (*domain.Identity, error) {
	res, err := a.DoJSON(ctx, sess, http.MethodGet, a.APIURL("/user", nil), nil)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, fmt.Errorf("gitlab: get user: status %d", res.StatusCode)
	}
	var user struct {
		ID       *int64 `json:"id"`
		Username string `json:"username"`
	}
	if err := connectors.Decode(res.Body, &user); err != nil {
		return nil, err
	}
	if user.ID == nil || user.Username == "" {
		return nil, connectors.MappingError(domain.ProviderGitLab, "user id")
	}
	return &domain.Identity{UID: strconv.FormatInt(*user.ID, 10), Username: user.Username}, nil
}

package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	gh "github.com/google/go-github/v80/github"

	"github.com/custodia-labs/remotesync/internal/connectors"
	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

const (
	// DefaultAPIURL is the github.com API root.
	DefaultAPIURL = "https://api.github.com"

	// DefaultWebURL is the github.com web root.
	DefaultWebURL = "https://github.com"
)

var _ driven.Provider = (*Adapter)(nil)

// Adapter is the GitHub provider adapter.
type Adapter struct {
	connectors.Base
}

// New creates a GitHub adapter. Empty URLs in cfg default to github.com.
func New(remotes driven.RemoteStore, cfg connectors.Config) *Adapter {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.WebURL == "" {
		cfg.WebURL = DefaultWebURL
	}
	return &Adapter{
		Base: connectors.NewBase(domain.ProviderGitHub, remotes, cfg, connectors.HostPattern(cfg.WebURL)),
	}
}

// ==================== Listing ====================

// DecodePage reads a JSON array page; the next page comes from the Link header.
func (a *Adapter) DecodePage(resp *http.Response, body []byte) (driven.Page, error) {
	return connectors.DecodeArrayPage(resp, body)
}

// RepositoriesURL lists every repository the user can see.
func (a *Adapter) RepositoriesURL() string {
	return a.APIURL("/user/repos", a.pageQuery())
}

// OrganizationsURL lists the user's organisations.
func (a *Adapter) OrganizationsURL() string {
	return a.APIURL("/user/orgs", a.pageQuery())
}

// OrganizationRepositoriesURL lists the repositories of org.
func (a *Adapter) OrganizationRepositoriesURL(org domain.RemoteOrganization) string {
	return a.APIURL("/orgs/"+url.PathEscape(org.Slug)+"/repos", a.pageQuery())
}

func (a *Adapter) pageQuery() url.Values {
	return url.Values{"per_page": {strconv.Itoa(a.Config.PageSize)}}
}

// ==================== Mapping ====================

// repositoryPermissions is decoded separately from gh.Repository so the
// admin flag does not depend on go-github's permission type.
type repositoryPermissions struct {
	Permissions struct {
		Admin bool `json:"admin"`
	} `json:"permissions"`
}

// CreateRepository maps a GitHub repository payload and upserts it.
func (a *Adapter) CreateRepository(
	ctx context.Context, fields json.RawMessage, privacy domain.Privacy, org *domain.RemoteOrganization,
) (*domain.RemoteRepository, error) {
	var payload gh.Repository
	if err := connectors.Decode(fields, &payload); err != nil {
		return nil, err
	}
	var perms repositoryPermissions
	if err := connectors.Decode(fields, &perms); err != nil {
		return nil, err
	}
	if payload.GetFullName() == "" {
		return nil, connectors.MappingError(domain.ProviderGitHub, "full_name")
	}
	if payload.ID == nil {
		return nil, connectors.MappingError(domain.ProviderGitHub, "id")
	}

	repo := &domain.RemoteRepository{
		RemoteID:      strconv.FormatInt(payload.GetID(), 10),
		FullName:      payload.GetFullName(),
		Name:          payload.GetName(),
		Description:   payload.GetDescription(),
		Private:       payload.GetPrivate(),
		CloneURL:      payload.GetCloneURL(),
		SSHURL:        payload.GetSSHURL(),
		HTMLURL:       payload.GetHTMLURL(),
		AvatarURL:     payload.GetOwner().GetAvatarURL(),
		VCS:           domain.VCSGit,
		DefaultBranch: payload.GetDefaultBranch(),
		JSON:          fields,
		ViewerAdmin:   perms.Permissions.Admin,
	}
	return a.UpsertRepository(ctx, repo, privacy, org)
}

// CreateOrganization maps a GitHub organisation payload and upserts it.
// /user/orgs returns abbreviated objects, so name and URL fall back to the
// login.
func (a *Adapter) CreateOrganization(ctx context.Context, fields json.RawMessage) (*domain.RemoteOrganization, error) {
	var payload gh.Organization
	if err := connectors.Decode(fields, &payload); err != nil {
		return nil, err
	}
	if payload.GetLogin() == "" {
		return nil, connectors.MappingError(domain.ProviderGitHub, "login")
	}
	if payload.ID == nil {
		return nil, connectors.MappingError(domain.ProviderGitHub, "id")
	}

	org := &domain.RemoteOrganization{
		RemoteID:  strconv.FormatInt(payload.GetID(), 10),
		Slug:      payload.GetLogin(),
		Name:      payload.GetName(),
		Email:     payload.GetEmail(),
		URL:       payload.GetHTMLURL(),
		AvatarURL: payload.GetAvatarURL(),
		JSON:      fields,
	}
	if org.Name == "" {
		org.Name = org.Slug
	}
	if org.URL == "" {
		org.URL = a.Config.WebURL + "/" + org.Slug
	}
	return a.UpsertOrganization(ctx, org)
}

// ==================== Identity ====================

// Identity returns the authenticated GitHub user.
func (a *Adapter) Identity(ctx context.Context, sess driven.Session) (*domain.Identity, error) {
	client, err := a.client(sess)
	if err != nil {
		return nil, err
	}
	user, resp, err := client.Users.Get(ctx, "")
	if err != nil {
		return nil, a.callError(resp, err, "get user")
	}
	if user.ID == nil || user.GetLogin() == "" {
		return nil, connectors.MappingError(domain.ProviderGitHub, "user id")
	}
	return &domain.Identity{
		UID:      strconv.FormatInt(user.GetID(), 10),
		Username: user.GetLogin(),
	}, nil
}

// client binds a go-github client to the session, pointed at the configured
// API root.
func (a *Adapter) client(sess driven.Session) (*gh.Client, error) {
	base, err := url.Parse(a.Config.APIURL + "/")
	if err != nil {
		return nil, fmt.Errorf("github: api url: %w", err)
	}
	client := gh.NewClient(sess.Client())
	client.BaseURL = base
	return client, nil
}

// callError turns a failed go-github call into an error. A 401 becomes
// access revoked; a refresh rejection surfaced by the transport passes
// through unchanged.
func (a *Adapter) callError(resp *gh.Response, err error, op string) error {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return perr
	}
	if resp != nil && resp.StatusCode == http.StatusUnauthorized {
		return domain.NewProviderError(domain.ProviderGitHub, domain.ErrAccessRevoked)
	}
	return fmt.Errorf("github: %s: %w", op, err)
}

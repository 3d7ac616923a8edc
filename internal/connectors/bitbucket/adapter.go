package bitbucket

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
	// DefaultAPIURL is the Bitbucket Cloud API root.
	DefaultAPIURL = "https://api.bitbucket.org/2.0"

	// DefaultWebURL is the Bitbucket Cloud web root.
	DefaultWebURL = "https://bitbucket.org"

	// maxPageLen is the largest pagelen Bitbucket accepts.
	maxPageLen = 100
)

var (
	_ driven.Provider    = (*Adapter)(nil)
	_ driven.AdminLister = (*Adapter)(nil)
)

// Adapter is the Bitbucket provider adapter.
type Adapter struct {
	connectors.Base
}

// New creates a Bitbucket adapter. Empty URLs in cfg default to Bitbucket Cloud.
func New(remotes driven.RemoteStore, cfg connectors.Config) *Adapter {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.WebURL == "" {
		cfg.WebURL = DefaultWebURL
	}
	if cfg.PageSize > maxPageLen {
		cfg.PageSize = maxPageLen
	}
	return &Adapter{
		Base: connectors.NewBase(domain.ProviderBitbucket, remotes, cfg, connectors.HostPattern(cfg.WebURL)),
	}
}

// ==================== Listing ====================

// page is Bitbucket's paginated envelope.
type page struct {
	Values *[]json.RawMessage `json:"values"`
	Next   string             `json:"next"`
}

// DecodePage reads the values of a paginated envelope; the next page URL is
// in the body.
func (a *Adapter) DecodePage(_ *http.Response, body []byte) (driven.Page, error) {
	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return driven.Page{}, fmt.Errorf("decode page: %w", err)
	}
	if p.Values == nil {
		return driven.Page{}, fmt.Errorf("decode page: no values")
	}
	return driven.Page{Items: *p.Values, Next: p.Next}, nil
}

// RepositoriesURL lists the repositories the user is a member of.
func (a *Adapter) RepositoriesURL() string {
	return a.APIURL("/repositories", a.query("member"))
}

// AdminRepositoriesURL lists the repositories the user administers.
func (a *Adapter) AdminRepositoriesURL() string {
	return a.APIURL("/repositories", a.query("admin"))
}

// OrganizationsURL lists the user's workspaces.
func (a *Adapter) OrganizationsURL() string {
	return a.APIURL("/workspaces", a.query("member"))
}

// OrganizationRepositoriesURL lists the repositories of a workspace.
func (a *Adapter) OrganizationRepositoriesURL(org domain.RemoteOrganization) string {
	return a.APIURL("/repositories/"+url.PathEscape(org.Slug), a.query("member"))
}

func (a *Adapter) query(role string) url.Values {
	return url.Values{
		"role":    {role},
		"pagelen": {strconv.Itoa(a.Config.PageSize)},
	}
}

// ==================== Mapping ====================

type link struct {
	Href string `json:"href"`
}

type repositoryPayload struct {
	UUID        string `json:"uuid"`
	FullName    string `json:"full_name"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	SCM         string `json:"scm"`
	MainBranch  *struct {
		Name string `json:"name"`
	} `json:"mainbranch"`
	Links struct {
		Clone []struct {
			Name string `json:"name"`
			Href string `json:"href"`
		} `json:"clone"`
		HTML   link `json:"html"`
		Avatar link `json:"avatar"`
	} `json:"links"`
}

func (p *repositoryPayload) cloneURL(name string) string {
	for _, c := range p.Links.Clone {
		if c.Name == name {
			return c.Href
		}
	}
	return ""
}

// RepositoryFullName extracts the full name of a repository item.
func (a *Adapter) RepositoryFullName(fields json.RawMessage) (string, error) {
	var payload repositoryPayload
	if err := connectors.Decode(fields, &payload); err != nil {
		return "", err
	}
	if payload.FullName == "" {
		return "", connectors.MappingError(domain.ProviderBitbucket, "full_name")
	}
	return payload.FullName, nil
}

// CreateRepository maps a Bitbucket repository payload and upserts it. The
// admin bit is left false; the sync engine sets it from the admin listing.
func (a *Adapter) CreateRepository(
	ctx context.Context, fields json.RawMessage, privacy domain.Privacy, org *domain.RemoteOrganization,
) (*domain.RemoteRepository, error) {
	var payload repositoryPayload
	if err := connectors.Decode(fields, &payload); err != nil {
		return nil, err
	}
	if payload.FullName == "" {
		return nil, connectors.MappingError(domain.ProviderBitbucket, "full_name")
	}
	if payload.UUID == "" {
		return nil, connectors.MappingError(domain.ProviderBitbucket, "uuid")
	}

	repo := &domain.RemoteRepository{
		RemoteID:    payload.UUID,
		FullName:    payload.FullName,
		Name:        payload.Name,
		Description: payload.Description,
		Private:     payload.IsPrivate,
		CloneURL:    payload.cloneURL("https"),
		SSHURL:      payload.cloneURL("ssh"),
		HTMLURL:     payload.Links.HTML.Href,
		AvatarURL:   payload.Links.Avatar.Href,
		VCS:         domain.VCSGit,
		JSON:        fields,
	}
	if payload.SCM == "hg" {
		repo.VCS = domain.VCSMercurial
	}
	if payload.MainBranch != nil {
		repo.DefaultBranch = payload.MainBranch.Name
	}
	return a.UpsertRepository(ctx, repo, privacy, org)
}

type workspacePayload struct {
	UUID  string `json:"uuid"`
	Slug  string `json:"slug"`
	Name  string `json:"name"`
	Links struct {
		HTML   link `json:"html"`
		Avatar link `json:"avatar"`
	} `json:"links"`
}

// CreateOrganization maps a Bitbucket workspace payload and upserts it.
func (a *Adapter) CreateOrganization(ctx context.Context, fields json.RawMessage) (*domain.RemoteOrganization, error) {
	var payload workspacePayload
	if err := connectors.Decode(fields, &payload); err != nil {
		return nil, err
	}
	if payload.Slug == "" {
		return nil, connectors.MappingError(domain.ProviderBitbucket, "slug")
	}
	if payload.UUID == "" {
		return nil, connectors.MappingError(domain.ProviderBitbucket, "uuid")
	}

	org := &domain.RemoteOrganization{
		RemoteID:  payload.UUID,
		Slug:      payload.Slug,
		Name:      payload.Name,
		URL:       payload.Links.HTML.Href,
		AvatarURL: payload.Links.Avatar.Href,
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

// Identity returns the authenticated Bitbucket user. Bitbucket no longer
// exposes usernames for every account, so the nickname is the fallback.
func (a *Adapter) Identity(ctx context.Context, sess driven.Session) (*domain.Identity, error) {
	res, err := a.DoJSON(ctx, sess, http.MethodGet, a.APIURL("/user", nil), nil)
	if err != nil {
		return nil, err
	}
	if !res.OK {
		return nil, fmt.Errorf("bitbucket: get user: status %d", res.StatusCode)
	}
	var user struct {
		UUID     string `json:"uuid"`
		Username string `json:"username"`
		Nickname string `json:"nickname"`
	}
	if err := connectors.Decode(res.Body, &user); err != nil {
		return nil, err
	}
	if user.UUID == "" {
		return nil, connectors.MappingError(domain.ProviderBitbucket, "user uuid")
	}
	username := user.Username
	if username == "" {
		username = user.Nickname
	}
	return &domain.Identity{UID: user.UUID, Username: username}, nil
}

package driven

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// Page is one decoded page of a provider collection.
type Page struct {
	Items []json.RawMessage
	// Next is the URL of the following page, empty on the last page.
	Next string
}

// PageDecoder extracts items and the next-page pointer from a response.
type PageDecoder interface {
	DecodePage(resp *http.Response, body []byte) (Page, error)
}

// Paginator walks a provider collection across pages.
type Paginator interface {
	// Paginate fetches startURL and every following page. A 401 aborts with
	// domain.ErrAccessRevoked; transport and decoding failures end the walk
	// early with Listing.Complete set to false and no error.
	Paginate(
		ctx context.Context, sess Session, decoder PageDecoder,
		provider domain.ProviderType, startURL string,
	) (domain.Listing, error)
}

// Lister names the collections the sync engine walks.
type Lister interface {
	PageDecoder

	RepositoriesURL() string
	OrganizationsURL() string
	OrganizationRepositoriesURL(org domain.RemoteOrganization) string
}

// AdminLister is implemented by providers whose repository payloads do not
// carry the viewer's permission. The sync engine walks AdminRepositoriesURL
// and grants admin on the relations of the repositories it lists.
type AdminLister interface {
	AdminRepositoriesURL() string

	// RepositoryFullName extracts the full name from a repository item.
	RepositoryFullName(fields json.RawMessage) (string, error)
}

// Mapper turns provider payload items into canonical records, upserting them.
type Mapper interface {
	// CreateRepository upserts the repository described by fields. Returns
	// nil and no error when the repository is deliberately not imported
	// (privacy level, owned by another organization). Malformed payloads
	// return an error wrapping domain.ErrMappingFailed.
	CreateRepository(
		ctx context.Context, fields json.RawMessage,
		privacy domain.Privacy, org *domain.RemoteOrganization,
	) (*domain.RemoteRepository, error)

	// CreateOrganization upserts the organization described by fields.
	CreateOrganization(ctx context.Context, fields json.RawMessage) (*domain.RemoteOrganization, error)
}

// Hooks are the optional webhook and commit-status capabilities. Providers
// without one return domain.ErrUnsupported.
type Hooks interface {
	// SetupWebhook creates the project's webhook and stores the provider's
	// hook object on integration.ProviderData.
	SetupWebhook(
		ctx context.Context, sess Session, project domain.Project, integration *domain.Integration,
	) (domain.HookResult, error)

	// UpdateWebhook updates the stored hook, creating it when it is gone.
	UpdateWebhook(
		ctx context.Context, sess Session, project domain.Project, integration *domain.Integration,
	) (domain.HookResult, error)

	// GetProviderData finds the project's webhook on the provider and stores
	// it on integration.ProviderData.
	GetProviderData(
		ctx context.Context, sess Session, project domain.Project, integration *domain.Integration,
	) (domain.HookResult, error)

	// SendBuildStatus reports a build state on the build's commit.
	SendBuildStatus(
		ctx context.Context, sess Session, project domain.Project, build domain.Build,
		state domain.BuildState, linkToBuild bool,
	) (domain.HookResult, error)
}

// Provider is the adapter for one source-control host.
type Provider interface {
	Lister
	Mapper
	Hooks

	// Type returns the provider this adapter serves.
	Type() domain.ProviderType

	// IsProjectService reports whether the project's repository URL belongs
	// to this provider. Used only for projects not linked to a repository.
	IsProjectService(project domain.Project) bool

	// Identity returns the provider user behind a session.
	Identity(ctx context.Context, sess Session) (*domain.Identity, error)
}

// ProviderRegistry resolves adapters by provider.
type ProviderRegistry interface {
	// Get returns the adapter for a provider or domain.ErrNotFound.
	Get(provider domain.ProviderType) (Provider, error)

	// All returns the registered adapters in a stable order.
	All() []Provider
}

package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/core/ports/driving"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// Ensure HookService implements the interface.
var _ driving.HookService = (*HookService)(nil)

// ErrNoService is returned when no connected account can act on a project.
var ErrNoService = fmt.Errorf("%w: no connected account for project", domain.ErrNotFound)

// HookService runs webhook and commit-status calls on behalf of a project,
// through the accounts of its maintainers.
type HookService struct {
	projects  driven.ProjectStore
	accounts  driven.AccountStore
	remotes   driven.RemoteStore
	sessions  driven.SessionFactory
	providers driven.ProviderRegistry
}

// NewHookService creates a new hook service.
func NewHookService(
	projects driven.ProjectStore,
	accounts driven.AccountStore,
	remotes driven.RemoteStore,
	sessions driven.SessionFactory,
	providers driven.ProviderRegistry,
) *HookService {
	return &HookService{
		projects:  projects,
		accounts:  accounts,
		remotes:   remotes,
		sessions:  sessions,
		providers: providers,
	}
}

// candidate is one (provider, account) pair able to act on a project.
type candidate struct {
	provider driven.Provider
	account  domain.Account
}

// candidates lists who can act on a project. A project linked to a
// repository uses the maintainers' relations to it, admins first. An
// unlinked project uses every provider whose URL pattern matches, with the
// maintainers' accounts on that provider.
func (s *HookService) candidates(ctx context.Context, project domain.Project) ([]candidate, error) {
	if project.RemoteRepositoryID != "" {
		return s.linkedCandidates(ctx, project)
	}

	var out []candidate
	for _, provider := range s.providers.All() {
		if !provider.IsProjectService(project) {
			continue
		}
		for _, userID := range project.Users {
			accounts, err := s.accounts.ListByUser(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("list accounts: %w", err)
			}
			for _, account := range accounts {
				if account.Provider == provider.Type() {
					out = append(out, candidate{provider: provider, account: account})
				}
			}
		}
	}
	return out, nil
}

func (s *HookService) linkedCandidates(ctx context.Context, project domain.Project) ([]candidate, error) {
	repo, err := s.remotes.GetRepositoryByID(ctx, project.RemoteRepositoryID)
	if err != nil {
		return nil, fmt.Errorf("linked repository: %w", err)
	}
	provider, err := s.providers.Get(repo.Provider)
	if err != nil {
		return nil, err
	}
	rels, err := s.remotes.ListRepositoryRelations(ctx, repo.ID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	sort.SliceStable(rels, func(i, j int) bool { return rels[i].Admin && !rels[j].Admin })

	var out []candidate
	for _, rel := range rels {
		if !slices.Contains(project.Users, rel.UserID) {
			continue
		}
		account, err := s.accounts.Get(ctx, rel.AccountID)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get account: %w", err)
		}
		out = append(out, candidate{provider: provider, account: *account})
	}
	return out, nil
}

// call tries fn with each candidate until one succeeds. ErrUnsupported ends
// the attempt at once. When every candidate answers, the last provider
// response is returned; when none could, the errors are joined.
func (s *HookService) call(
	ctx context.Context, project domain.Project, op string,
	fn func(driven.Provider, driven.Session) (domain.HookResult, error),
) (*domain.HookResult, error) {
	candidates, err := s.candidates(ctx, project)
	if err != nil {
		return nil, err
	}

	var (
		last *domain.HookResult
		errs []error
	)
	for _, c := range candidates {
		sess, err := s.sessions.NewSession(ctx, c.account)
		if err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", c.account.ID, err))
			continue
		}
		if sess == nil {
			continue
		}

		result, err := fn(c.provider, sess)
		if errors.Is(err, domain.ErrUnsupported) {
			return nil, err
		}
		if err != nil {
			logger.Warn("%s for project %s failed with account %s: %v", op, project.Slug, c.account.ID, err)
			errs = append(errs, fmt.Errorf("account %s: %w", c.account.ID, err))
			continue
		}
		result.AccountID = c.account.ID
		if result.OK {
			return &result, nil
		}
		last = &result
	}

	if last != nil {
		return last, nil
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return nil, fmt.Errorf("%s %s: %w", op, project.Slug, ErrNoService)
}

func (s *HookService) load(ctx context.Context, projectID, integrationID string) (*domain.Project, *domain.Integration, error) {
	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, nil, fmt.Errorf("get project: %w", err)
	}
	integration, err := s.projects.GetIntegration(ctx, integrationID)
	if err != nil {
		return nil, nil, fmt.Errorf("get integration: %w", err)
	}
	if integration.ProjectID != project.ID {
		return nil, nil, fmt.Errorf("%w: integration %s does not belong to project %s",
			domain.ErrInvalidInput, integrationID, projectID)
	}
	return project, integration, nil
}

type hookCall func(
	ctx context.Context, sess driven.Session, project domain.Project, integration *domain.Integration,
) (domain.HookResult, error)

// integrationCall runs a webhook operation and saves the provider data of
// a successful one on the integration.
func (s *HookService) integrationCall(
	ctx context.Context, projectID, integrationID, op string, pick func(driven.Provider) hookCall,
) (*domain.HookResult, error) {
	project, integration, err := s.load(ctx, projectID, integrationID)
	if err != nil {
		return nil, err
	}

	var updated domain.Integration
	result, err := s.call(ctx, *project, op, func(p driven.Provider, sess driven.Session) (domain.HookResult, error) {
		attempt := *integration
		res, err := pick(p)(ctx, sess, *project, &attempt)
		if err == nil && res.OK {
			updated = attempt
		}
		return res, err
	})
	if err != nil || !result.OK {
		return result, err
	}

	if err := s.projects.SaveIntegration(ctx, updated); err != nil {
		return result, fmt.Errorf("save integration: %w", err)
	}
	return result, nil
}

// SetupWebhook creates the project's webhook.
func (s *HookService) SetupWebhook(ctx context.Context, projectID, integrationID string) (*domain.HookResult, error) {
	return s.integrationCall(ctx, projectID, integrationID, "setup webhook",
		func(p driven.Provider) hookCall { return p.SetupWebhook })
}

// UpdateWebhook updates the project's webhook, recreating it when gone.
func (s *HookService) UpdateWebhook(ctx context.Context, projectID, integrationID string) (*domain.HookResult, error) {
	return s.integrationCall(ctx, projectID, integrationID, "update webhook",
		func(p driven.Provider) hookCall { return p.UpdateWebhook })
}

// SyncProviderData refreshes the stored provider view of the webhook.
func (s *HookService) SyncProviderData(ctx context.Context, projectID, integrationID string) (*domain.HookResult, error) {
	return s.integrationCall(ctx, projectID, integrationID, "sync provider data",
		func(p driven.Provider) hookCall { return p.GetProviderData })
}

// SendBuildStatus reports a build's state on its commit.
func (s *HookService) SendBuildStatus(
	ctx context.Context, buildID string, state domain.BuildState, linkToBuild bool,
) (*domain.HookResult, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("%w: build state %q", domain.ErrInvalidInput, state)
	}
	build, err := s.projects.GetBuild(ctx, buildID)
	if err != nil {
		return nil, fmt.Errorf("get build: %w", err)
	}
	project, err := s.projects.GetProject(ctx, build.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	return s.call(ctx, *project, "send build status", func(p driven.Provider, sess driven.Session) (domain.HookResult, error) {
		return p.SendBuildStatus(ctx, sess, *project, *build, state, linkToBuild)
	})
}

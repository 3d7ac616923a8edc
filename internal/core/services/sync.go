package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/core/ports/driving"
	"github.com/custodia-labs/remotesync/internal/logger"
	"github.com/custodia-labs/remotesync/internal/metrics"
)

// Ensure SyncEngine implements the interface.
var _ driving.SyncOrchestrator = (*SyncEngine)(nil)

// Sync stages reported through Status.
const (
	StageRepositories  = "repositories"
	StageOrganizations = "organizations"
	StageRelations     = "relations"
	StagePrune         = "prune"
)

// Relation kinds, used as metric labels.
const (
	kindRepository   = "repository"
	kindOrganization = "organization"
)

// SyncEngine mirrors the repositories and organizations each account can
// see and reconciles the relation rows of its user.
type SyncEngine struct {
	accounts  driven.AccountStore
	remotes   driven.RemoteStore
	sessions  driven.SessionFactory
	providers driven.ProviderRegistry
	paginator driven.Paginator
	privacy   domain.Privacy
	workers   int
	now       func() time.Time

	mu          sync.RWMutex
	policy      domain.DeletionPolicy
	activeSyncs map[string]*driving.SyncStatus
}

// NewSyncEngine creates a sync engine.
func NewSyncEngine(
	accounts driven.AccountStore,
	remotes driven.RemoteStore,
	sessions driven.SessionFactory,
	providers driven.ProviderRegistry,
	paginator driven.Paginator,
	settings domain.SyncSettings,
) *SyncEngine {
	workers := settings.Workers
	if workers <= 0 {
		workers = domain.DefaultSyncWorkers
	}
	privacy := settings.Privacy
	if privacy == "" {
		privacy = domain.PrivacyPublic
	}
	policy := settings.DeletionPolicy
	if policy == "" {
		policy = domain.DeleteSkipOnPartial
	}
	return &SyncEngine{
		accounts:    accounts,
		remotes:     remotes,
		sessions:    sessions,
		providers:   providers,
		paginator:   paginator,
		privacy:     privacy,
		workers:     workers,
		now:         time.Now,
		policy:      policy,
		activeSyncs: make(map[string]*driving.SyncStatus),
	}
}

// SetDeletionPolicy changes the policy applied by passes that start later.
func (e *SyncEngine) SetDeletionPolicy(policy domain.DeletionPolicy) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if policy != e.policy {
		logger.Info("Deletion policy changed: %s -> %s", e.policy, policy)
	}
	e.policy = policy
}

// DeletionPolicy returns the current deletion policy.
func (e *SyncEngine) DeletionPolicy() domain.DeletionPolicy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.policy
}

// Sync runs one pass for an account. Fatal conditions (revoked access,
// rejected refresh, storage failures) abort the pass before any relation is
// deleted and are returned together with the partial result.
func (e *SyncEngine) Sync(ctx context.Context, accountID string) (*domain.SyncResult, error) {
	account, err := e.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	provider, err := e.providers.Get(account.Provider)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", accountID, err)
	}

	status, err := e.begin(accountID)
	if err != nil {
		return nil, err
	}
	defer e.end(accountID)

	result := &domain.SyncResult{
		AccountID: account.ID,
		UserID:    account.UserID,
		Provider:  account.Provider,
		StartedAt: e.now(),
	}
	label := string(account.Provider)

	sess, err := e.sessions.NewSession(ctx, *account)
	if err != nil {
		return e.fail(result, fmt.Errorf("session for account %s: %w", accountID, err))
	}
	if sess == nil {
		result.NoSession = true
		result.EndedAt = e.now()
		metrics.SyncTotal.WithLabelValues(label, metrics.OutcomeNoSession).Inc()
		logger.Debug("No credential for account %s, nothing to sync", accountID)
		return result, nil
	}

	logger.Info("Starting %s sync for account %s", account.Provider.DisplayName(), accountID)

	p := &pass{
		engine:   e,
		ctx:      ctx,
		account:  *account,
		provider: provider,
		session:  sess,
		result:   result,
		status:   status,
		repos:    newRepositorySet(),
		orgs:     make(map[string]*domain.RemoteOrganization),
	}
	if err := p.run(); err != nil {
		return e.fail(result, err)
	}

	result.EndedAt = e.now()
	outcome := metrics.OutcomeSuccess
	if result.Partial {
		outcome = metrics.OutcomePartial
	}
	metrics.SyncTotal.WithLabelValues(label, outcome).Inc()
	metrics.SyncDuration.WithLabelValues(label).Observe(result.Duration().Seconds())
	metrics.LastSyncEnd.WithLabelValues(label).Set(float64(result.EndedAt.Unix()))

	logger.Info("Sync complete for account %s: %d repositories, %d organizations, %d mapping errors, %d relations deleted",
		accountID, result.Repositories, result.Organizations, result.MappingErrors,
		result.RelationsDeleted+result.OrganizationRelationsDeleted)
	return result, nil
}

func (e *SyncEngine) fail(result *domain.SyncResult, err error) (*domain.SyncResult, error) {
	result.EndedAt = e.now()
	metrics.SyncTotal.WithLabelValues(string(result.Provider), metrics.OutcomeFailed).Inc()

	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		logger.Warn("Sync aborted for account %s: %s", result.AccountID, perr.UserMessage())
	} else {
		logger.Error("Sync failed for account %s: %v", result.AccountID, err)
	}
	return result, err
}

// SyncUser runs one pass for every account of a user. Errors are joined;
// one failing account does not stop the others.
func (e *SyncEngine) SyncUser(ctx context.Context, userID string) ([]domain.SyncResult, error) {
	accounts, err := e.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return e.syncAccounts(ctx, accounts)
}

// SyncAll runs one pass for every account, at most workers at a time.
func (e *SyncEngine) SyncAll(ctx context.Context) ([]domain.SyncResult, error) {
	accounts, err := e.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return e.syncAccounts(ctx, accounts)
}

func (e *SyncEngine) syncAccounts(ctx context.Context, accounts []domain.Account) ([]domain.SyncResult, error) {
	results := make([]*domain.SyncResult, len(accounts))
	errs := make([]error, len(accounts))

	// Workers never return an error so that one account cannot cancel the rest.
	var g errgroup.Group
	g.SetLimit(e.workers)
	for i, account := range accounts {
		g.Go(func() error {
			result, err := e.Sync(ctx, account.ID)
			results[i] = result
			if err != nil {
				errs[i] = fmt.Errorf("sync account %s (%s): %w", account.ID, account.Provider, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.SyncResult, 0, len(accounts))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out, errors.Join(errs...)
}

// Status returns the live status of an account's pass.
func (e *SyncEngine) Status(_ context.Context, accountID string) (*driving.SyncStatus, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if status, ok := e.activeSyncs[accountID]; ok {
		snapshot := *status
		return &snapshot, nil
	}
	return &driving.SyncStatus{AccountID: accountID}, nil
}

func (e *SyncEngine) begin(accountID string) (*driving.SyncStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, running := e.activeSyncs[accountID]; running {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrSyncInProgress)
	}
	status := &driving.SyncStatus{AccountID: accountID, Running: true}
	e.activeSyncs[accountID] = status
	return status, nil
}

func (e *SyncEngine) end(accountID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.activeSyncs, accountID)
}

func (e *SyncEngine) update(status *driving.SyncStatus, fn func(*driving.SyncStatus)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(status)
}

// ==================== Pass ====================

// pass is the state of one sync pass for a (user, account).
type pass struct {
	engine   *SyncEngine
	ctx      context.Context
	account  domain.Account
	provider driven.Provider
	session  driven.Session
	result   *domain.SyncResult
	status   *driving.SyncStatus

	repos *repositorySet
	orgs  map[string]*domain.RemoteOrganization
	// orgOrder keeps organizations in listing order.
	orgOrder []string
}

func (p *pass) run() error {
	p.stage(StageRepositories)
	if err := p.syncRepositories(); err != nil {
		return err
	}
	p.stage(StageOrganizations)
	if err := p.syncOrganizations(); err != nil {
		return err
	}
	if lister, ok := p.provider.(driven.AdminLister); ok {
		if err := p.syncAdmins(lister); err != nil {
			return err
		}
	}

	p.result.Repositories = p.repos.Len()
	p.result.Organizations = len(p.orgOrder)

	p.stage(StageRelations)
	if err := p.ensureRelations(); err != nil {
		return err
	}
	p.stage(StagePrune)
	return p.prune()
}

func (p *pass) stage(name string) {
	p.engine.update(p.status, func(s *driving.SyncStatus) { s.Stage = name })
}

func (p *pass) paginate(url string) (domain.Listing, error) {
	listing, err := p.engine.paginator.Paginate(p.ctx, p.session, p.provider, p.provider.Type(), url)
	if err != nil {
		return listing, err
	}
	if !listing.Complete {
		p.result.Partial = true
		logger.Warn("Incomplete listing for account %s: %s", p.account.ID, url)
	}
	return listing, nil
}

// syncRepositories maps the account's top-level repository listing.
func (p *pass) syncRepositories() error {
	listing, err := p.paginate(p.provider.RepositoriesURL())
	if err != nil {
		return err
	}
	return p.mapRepositories(listing, nil)
}

// syncOrganizations maps each organization and the repositories listed
// under it.
func (p *pass) syncOrganizations() error {
	listing, err := p.paginate(p.provider.OrganizationsURL())
	if err != nil {
		return err
	}
	for _, item := range listing.Items {
		org, err := p.provider.CreateOrganization(p.ctx, item)
		if err != nil {
			if err := p.itemError(err, "organization"); err != nil {
				return err
			}
			continue
		}
		p.processed()
		if _, seen := p.orgs[org.Slug]; !seen {
			p.orgOrder = append(p.orgOrder, org.Slug)
		}
		p.orgs[org.Slug] = org

		repos, err := p.paginate(p.provider.OrganizationRepositoriesURL(*org))
		if err != nil {
			return err
		}
		if err := p.mapRepositories(repos, org); err != nil {
			return err
		}
	}
	return nil
}

func (p *pass) mapRepositories(listing domain.Listing, org *domain.RemoteOrganization) error {
	for _, item := range listing.Items {
		repo, err := p.provider.CreateRepository(p.ctx, item, p.engine.privacy, org)
		if err != nil {
			if err := p.itemError(err, "repository"); err != nil {
				return err
			}
			continue
		}
		p.processed()
		if repo == nil {
			p.result.Skipped++
			continue
		}
		p.repos.Add(repo)
	}
	return nil
}

// syncAdmins grants admin on the repositories of the provider's admin
// listing.
func (p *pass) syncAdmins(lister driven.AdminLister) error {
	listing, err := p.paginate(lister.AdminRepositoriesURL())
	if err != nil {
		return err
	}
	for _, item := range listing.Items {
		name, err := lister.RepositoryFullName(item)
		if err != nil {
			if err := p.itemError(err, "admin repository"); err != nil {
				return err
			}
			continue
		}
		p.repos.GrantAdmin(name)
	}
	return nil
}

// itemError absorbs a mapping failure, marking the pass partial. Any other
// error is returned.
func (p *pass) itemError(err error, kind string) error {
	if !errors.Is(err, domain.ErrMappingFailed) {
		return fmt.Errorf("map %s: %w", kind, err)
	}
	p.result.MappingErrors++
	p.result.Partial = true
	p.engine.update(p.status, func(s *driving.SyncStatus) { s.ErrorCount++ })
	logger.Warn("Skipping %s %s for account %s: %v", p.account.Provider.DisplayName(), kind, p.account.ID, err)
	return nil
}

func (p *pass) processed() {
	p.engine.update(p.status, func(s *driving.SyncStatus) { s.ItemsProcessed++ })
}

// ensureRelations upserts a relation per mapped repository and organization.
func (p *pass) ensureRelations() error {
	for _, repo := range p.repos.List() {
		rel := &domain.RemoteRelation{
			ID:           uuid.NewString(),
			RepositoryID: repo.ID,
			UserID:       p.account.UserID,
			AccountID:    p.account.ID,
			Admin:        repo.ViewerAdmin,
		}
		if err := p.engine.remotes.EnsureRelation(p.ctx, rel); err != nil {
			return fmt.Errorf("relation %s: %w", repo.FullName, err)
		}
	}
	for _, slug := range p.orgOrder {
		rel := &domain.OrganizationRelation{
			ID:             uuid.NewString(),
			OrganizationID: p.orgs[slug].ID,
			UserID:         p.account.UserID,
			AccountID:      p.account.ID,
		}
		if err := p.engine.remotes.EnsureOrganizationRelation(p.ctx, rel); err != nil {
			return fmt.Errorf("organization relation %s: %w", slug, err)
		}
	}
	return nil
}

// prune deletes the relations of this (user, account) that the pass did not
// see, unless the deletion policy keeps them after a partial pass.
func (p *pass) prune() error {
	label := string(p.account.Provider)
	if !p.engine.DeletionPolicy().ShouldPrune(p.result.Partial) {
		p.result.PruneSkipped = true
		metrics.PruneSkipped.WithLabelValues(label).Inc()
		logger.Warn("Partial sync for account %s: keeping stale relations", p.account.ID)
		return nil
	}

	n, err := p.engine.remotes.DeleteStaleRelations(p.ctx, p.account.UserID, p.account.ID, p.repos.Names())
	if err != nil {
		return fmt.Errorf("delete stale relations: %w", err)
	}
	p.result.RelationsDeleted = n
	metrics.RelationsDeleted.WithLabelValues(label, kindRepository).Add(float64(n))

	n, err = p.engine.remotes.DeleteStaleOrganizationRelations(p.ctx, p.account.UserID, p.account.ID, p.orgOrder)
	if err != nil {
		return fmt.Errorf("delete stale organization relations: %w", err)
	}
	p.result.OrganizationRelationsDeleted = n
	metrics.RelationsDeleted.WithLabelValues(label, kindOrganization).Add(float64(n))
	return nil
}

// repositorySet is the union of mapped repositories, deduplicated by full
// name in first-seen order.
type repositorySet struct {
	byName map[string]*domain.RemoteRepository
	order  []string
	admins map[string]bool
}

func newRepositorySet() *repositorySet {
	return &repositorySet{
		byName: make(map[string]*domain.RemoteRepository),
		admins: make(map[string]bool),
	}
}

// Add records repo. A repository seen twice keeps the latest record and is
// admin if any listing said so.
func (s *repositorySet) Add(repo *domain.RemoteRepository) {
	if prev, ok := s.byName[repo.FullName]; ok {
		repo.ViewerAdmin = repo.ViewerAdmin || prev.ViewerAdmin
	} else {
		s.order = append(s.order, repo.FullName)
	}
	s.byName[repo.FullName] = repo
}

// GrantAdmin marks a repository as administered by the viewer, whether or
// not it has been added yet.
func (s *repositorySet) GrantAdmin(fullName string) {
	s.admins[fullName] = true
}

func (s *repositorySet) Len() int {
	return len(s.order)
}

func (s *repositorySet) Names() []string {
	return append([]string(nil), s.order...)
}

func (s *repositorySet) List() []*domain.RemoteRepository {
	out := make([]*domain.RemoteRepository, 0, len(s.order))
	for _, name := range s.order {
		repo := s.byName[name]
		if s.admins[name] {
			repo.ViewerAdmin = true
		}
		out = append(out, repo)
	}
	return out
}

// Command remotesync mirrors the repositories and organizations visible to
// connected GitHub, GitLab and Bitbucket accounts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/remotesync/internal/adapters/driven/auth"
	"github.com/custodia-labs/remotesync/internal/adapters/driven/config/file"
	"github.com/custodia-labs/remotesync/internal/adapters/driven/oauth"
	"github.com/custodia-labs/remotesync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/remotesync/internal/adapters/driving/cli"
	"github.com/custodia-labs/remotesync/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/remotesync/internal/connectors"
	"github.com/custodia-labs/remotesync/internal/connectors/bitbucket"
	"github.com/custodia-labs/remotesync/internal/connectors/github"
	"github.com/custodia-labs/remotesync/internal/connectors/gitlab"
	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
	"github.com/custodia-labs/remotesync/internal/core/services"
	"github.com/custodia-labs/remotesync/internal/logger"
)

// version is set with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := file.LoadDotEnv(".env"); err != nil {
		return err
	}

	config, err := file.NewConfigStore(os.Getenv(file.EnvPrefix + "_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	if err := config.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	settings, err := file.LoadSettings(config)
	if err != nil {
		return err
	}

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	apps := store.AppStore()
	accounts := store.AccountStore()
	creds := store.CredentialsStore()
	remotes := store.RemoteStore()

	sessions := auth.NewSessionManager(apps, creds, settings.HTTP.Timeout)
	providers := services.NewProviderRegistry(newProviders(remotes, settings)...)
	paginator := connectors.NewPaginator(settings.HTTP.RequestsPerSecond)

	engine := services.NewSyncEngine(accounts, remotes, sessions, providers, paginator, settings.Sync)
	accountService := services.NewAccountService(
		apps, accounts, creds, remotes, sessions, providers, oauth.NewAuthorizer(settings.HTTP.Timeout))
	hookService := services.NewHookService(store.ProjectStore(), accounts, remotes, sessions, providers)
	scheduler := services.NewScheduler(settings.Scheduler, store.SchedulerStore(), engine)

	api := httpapi.NewServer(httpapi.Config{
		Sync:     engine,
		Accounts: accountService,
		Hooks:    hookService,
		BaseURL:  settings.BaseURL,
	})

	cli.SetVersion(version)
	cli.Configure(cli.Services{
		Accounts:   accountService,
		Apps:       services.NewAppService(apps),
		Sync:       engine,
		Hooks:      hookService,
		Scheduler:  scheduler,
		Config:     config,
		Handler:    api.Router(),
		ListenAddr: settings.ListenAddr,
		Watch: func(ctx context.Context) error {
			return file.Watch(ctx, config, func(s domain.Settings) {
				engine.SetDeletionPolicy(s.Sync.DeletionPolicy)
			})
		},
	})

	logger.Debug("Using database %s", store.Path())
	return cli.Execute(ctx)
}

// newProviders builds the adapters of every supported provider, applying
// endpoint overrides from settings.
func newProviders(remotes driven.RemoteStore, settings domain.Settings) []driven.Provider {
	cfg := func(p domain.ProviderType) connectors.Config {
		ep := settings.Providers[p]
		return connectors.Config{
			APIURL:   ep.APIURL,
			WebURL:   ep.WebURL,
			BaseURL:  settings.BaseURL,
			PageSize: settings.HTTP.PageSize,
			Avatars:  settings.Avatars,
		}
	}
	return []driven.Provider{
		github.New(remotes, cfg(domain.ProviderGitHub)),
		gitlab.New(remotes, cfg(domain.ProviderGitLab)),
		bitbucket.New(remotes, cfg(domain.ProviderBitbucket)),
	}
}

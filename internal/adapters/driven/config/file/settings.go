package file

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REMOTESYNC"

// Config keys.
const (
	KeyDataDir           = "data_dir"
	KeyListenAddr        = "listen_addr"
	KeyBaseURL           = "base_url"
	KeyPrivacy           = "sync.privacy_level"
	KeyDeletionPolicy    = "sync.deletion_policy"
	KeySyncWorkers       = "sync.workers"
	KeyUserAvatar        = "avatars.default_user"
	KeyOrgAvatar         = "avatars.default_org"
	KeyTimeout           = "http.timeout"
	KeyPageSize          = "http.page_size"
	KeyRequestsPerSecond = "http.requests_per_second"
	KeySchedulerEnabled  = "scheduler.enabled"
	KeySyncInterval      = "scheduler.remote_sync_interval"
)

// providerKey returns the config key of a provider endpoint field.
func providerKey(provider domain.ProviderType, field string) string {
	return "providers." + string(provider) + "." + field
}

// env holds the REMOTESYNC_* overrides. Unset variables leave the file or
// default value in place.
type env struct {
	DataDir           string        `envconfig:"DATA_DIR"`
	ListenAddr        string        `envconfig:"LISTEN_ADDR"`
	BaseURL           string        `envconfig:"BASE_URL"`
	PrivacyLevel      string        `envconfig:"PRIVACY_LEVEL"`
	DeletionPolicy    string        `envconfig:"DELETION_POLICY"`
	SyncWorkers       int           `envconfig:"SYNC_WORKERS"`
	DefaultUserAvatar string        `envconfig:"DEFAULT_USER_AVATAR_URL"`
	DefaultOrgAvatar  string        `envconfig:"DEFAULT_ORG_AVATAR_URL"`
	RequestTimeout    time.Duration `envconfig:"REQUEST_TIMEOUT"`
	PageSize          int           `envconfig:"PAGE_SIZE"`
	RequestsPerSecond *float64      `envconfig:"REQUESTS_PER_SECOND"`
	SchedulerEnabled  *bool         `envconfig:"SCHEDULER_ENABLED"`
	SyncInterval      time.Duration `envconfig:"SYNC_INTERVAL"`
	GitHubAPIURL      string        `envconfig:"GITHUB_API_URL"`
	GitHubWebURL      string        `envconfig:"GITHUB_WEB_URL"`
	GitLabAPIURL      string        `envconfig:"GITLAB_API_URL"`
	GitLabWebURL      string        `envconfig:"GITLAB_WEB_URL"`
	BitbucketAPIURL   string        `envconfig:"BITBUCKET_API_URL"`
	BitbucketWebURL   string        `envconfig:"BITBUCKET_WEB_URL"`
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables already set. Missing files are
// skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// LoadSettings layers defaults, the config store and REMOTESYNC_*
// environment variables, in increasing precedence.
func LoadSettings(store driven.ConfigStore) (domain.Settings, error) {
	settings := domain.DefaultSettings()
	if store != nil {
		if err := applyStore(&settings, store); err != nil {
			return settings, err
		}
	}

	var e env
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return settings, fmt.Errorf("%w: environment: %v", domain.ErrInvalidInput, err)
	}
	if err := applyEnv(&settings, e); err != nil {
		return settings, err
	}

	if settings.DataDir == "" {
		dir, err := DefaultDir()
		if err != nil {
			return settings, err
		}
		settings.DataDir = dir
	}
	return settings, nil
}

func applyStore(s *domain.Settings, store driven.ConfigStore) error {
	setString(&s.DataDir, store.GetString(KeyDataDir))
	setString(&s.ListenAddr, store.GetString(KeyListenAddr))
	setString(&s.BaseURL, store.GetString(KeyBaseURL))

	if err := setSync(s, store.GetString(KeyPrivacy), store.GetString(KeyDeletionPolicy)); err != nil {
		return fmt.Errorf("%s: %w", store.Path(), err)
	}
	setInt(&s.Sync.Workers, store.GetInt(KeySyncWorkers))

	setString(&s.Avatars.DefaultUserAvatarURL, store.GetString(KeyUserAvatar))
	setString(&s.Avatars.DefaultOrgAvatarURL, store.GetString(KeyOrgAvatar))

	setDuration(&s.HTTP.Timeout, store.GetDuration(KeyTimeout))
	setInt(&s.HTTP.PageSize, store.GetInt(KeyPageSize))
	if v, ok := store.Get(KeyRequestsPerSecond); ok {
		switch n := v.(type) {
		case float64:
			s.HTTP.RequestsPerSecond = n
		case int64:
			s.HTTP.RequestsPerSecond = float64(n)
		case int:
			s.HTTP.RequestsPerSecond = float64(n)
		}
	}

	if v, ok := store.Get(KeySchedulerEnabled); ok {
		if b, isBool := v.(bool); isBool {
			s.Scheduler.Enabled = b
		}
	}
	setInterval(s, store.GetDuration(KeySyncInterval))

	for _, provider := range domain.AllProviders() {
		setEndpoints(s, provider,
			store.GetString(providerKey(provider, "api_url")),
			store.GetString(providerKey(provider, "web_url")))
	}
	return nil
}

func applyEnv(s *domain.Settings, e env) error {
	setString(&s.DataDir, e.DataDir)
	setString(&s.ListenAddr, e.ListenAddr)
	setString(&s.BaseURL, e.BaseURL)

	if err := setSync(s, e.PrivacyLevel, e.DeletionPolicy); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	setInt(&s.Sync.Workers, e.SyncWorkers)

	setString(&s.Avatars.DefaultUserAvatarURL, e.DefaultUserAvatar)
	setString(&s.Avatars.DefaultOrgAvatarURL, e.DefaultOrgAvatar)

	setDuration(&s.HTTP.Timeout, e.RequestTimeout)
	setInt(&s.HTTP.PageSize, e.PageSize)
	if e.RequestsPerSecond != nil {
		s.HTTP.RequestsPerSecond = *e.RequestsPerSecond
	}
	if e.SchedulerEnabled != nil {
		s.Scheduler.Enabled = *e.SchedulerEnabled
	}
	setInterval(s, e.SyncInterval)

	setEndpoints(s, domain.ProviderGitHub, e.GitHubAPIURL, e.GitHubWebURL)
	setEndpoints(s, domain.ProviderGitLab, e.GitLabAPIURL, e.GitLabWebURL)
	setEndpoints(s, domain.ProviderBitbucket, e.BitbucketAPIURL, e.BitbucketWebURL)
	return nil
}

func setSync(s *domain.Settings, privacy, policy string) error {
	if privacy != "" {
		p, err := domain.ParsePrivacy(privacy)
		if err != nil {
			return err
		}
		s.Sync.Privacy = p
	}
	if policy != "" {
		p, err := domain.ParseDeletionPolicy(policy)
		if err != nil {
			return err
		}
		s.Sync.DeletionPolicy = p
	}
	return nil
}

func setInterval(s *domain.Settings, interval time.Duration) {
	if interval <= 0 {
		return
	}
	if s.Scheduler.TaskConfigs == nil {
		s.Scheduler.TaskConfigs = map[string]domain.TaskConfig{}
	}
	s.Scheduler.TaskConfigs[domain.TaskIDRemoteSync] = domain.TaskConfig{Enabled: true, Interval: interval}
}

func setEndpoints(s *domain.Settings, provider domain.ProviderType, apiURL, webURL string) {
	if apiURL == "" && webURL == "" {
		return
	}
	if s.Providers == nil {
		s.Providers = map[domain.ProviderType]domain.ProviderEndpoints{}
	}
	ep := s.Providers[provider]
	setString(&ep.APIURL, apiURL)
	setString(&ep.WebURL, webURL)
	s.Providers[provider] = ep
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

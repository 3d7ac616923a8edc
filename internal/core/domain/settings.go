package domain

import "time"

// Settings is the runtime configuration injected into services and adapters.
type Settings struct {
	// DataDir holds the SQLite database.
	DataDir string
	// ListenAddr is the HTTP API address for `serve`.
	ListenAddr string
	// BaseURL is the public URL webhooks point at.
	BaseURL string

	Sync      SyncSettings
	Avatars   AvatarSettings
	HTTP      HTTPSettings
	Providers map[ProviderType]ProviderEndpoints
	Scheduler SchedulerConfig
}

// SyncSettings configures the sync engine.
type SyncSettings struct {
	Privacy        Privacy
	DeletionPolicy DeletionPolicy
	// Workers bounds the number of accounts synced in parallel by SyncAll.
	Workers int
}

// AvatarSettings holds the fallback avatars for records without one.
type AvatarSettings struct {
	DefaultUserAvatarURL string
	DefaultOrgAvatarURL  string
}

// HTTPSettings configures provider HTTP sessions.
type HTTPSettings struct {
	// Timeout bounds each provider request.
	Timeout time.Duration
	// PageSize is the per_page/pagelen requested when listing.
	PageSize int
	// RequestsPerSecond paces requests per provider. Zero disables pacing.
	RequestsPerSecond float64
}

// ProviderEndpoints overrides the API and web hosts of a provider
// (self-hosted GitLab, GitHub Enterprise, tests).
type ProviderEndpoints struct {
	APIURL string
	WebURL string
}

// Defaults.
const (
	DefaultRequestTimeout = 30 * time.Second
	DefaultPageSize       = 100
	DefaultSyncWorkers    = 4
	DefaultUserAvatarURL  = "https://assets.readthedocs.org/static/images/silhouette.png"
	DefaultOrgAvatarURL   = "https://assets.readthedocs.org/static/images/silhouette.png"
)

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		ListenAddr: "127.0.0.1:8080",
		Sync: SyncSettings{
			Privacy:        PrivacyPublic,
			DeletionPolicy: DeleteSkipOnPartial,
			Workers:        DefaultSyncWorkers,
		},
		Avatars: AvatarSettings{
			DefaultUserAvatarURL: DefaultUserAvatarURL,
			DefaultOrgAvatarURL:  DefaultOrgAvatarURL,
		},
		HTTP: HTTPSettings{
			Timeout:           DefaultRequestTimeout,
			PageSize:          DefaultPageSize,
			RequestsPerSecond: 1.2,
		},
		Providers: map[ProviderType]ProviderEndpoints{},
		Scheduler: DefaultSchedulerConfig(),
	}
}

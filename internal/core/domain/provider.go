package domain

// ProviderType identifies a source-control host.
type ProviderType string

const (
	ProviderGitHub    ProviderType = "github"
	ProviderGitLab    ProviderType = "gitlab"
	ProviderBitbucket ProviderType = "bitbucket"
)

// AllProviders returns the supported providers in display order.
func AllProviders() []ProviderType {
	return []ProviderType{ProviderGitHub, ProviderGitLab, ProviderBitbucket}
}

// DisplayName returns the human-readable provider name.
func (p ProviderType) DisplayName() string {
	switch p {
	case ProviderGitHub:
		return "GitHub"
	case ProviderGitLab:
		return "GitLab"
	case ProviderBitbucket:
		return "Bitbucket"
	default:
		return string(p)
	}
}

// IsValid returns true if p is a supported provider.
func (p ProviderType) IsValid() bool {
	for _, known := range AllProviders() {
		if p == known {
			return true
		}
	}
	return false
}

// OAuthEndpoint holds the authorization and token URLs of a provider.
type OAuthEndpoint struct {
	AuthURL  string
	TokenURL string
}

// DefaultOAuthEndpoint returns the hosted endpoint of the provider.
func (p ProviderType) DefaultOAuthEndpoint() OAuthEndpoint {
	switch p {
	case ProviderGitHub:
		return OAuthEndpoint{
			AuthURL:  "https://github.com/login/oauth/authorize",
			TokenURL: "https://github.com/login/oauth/access_token",
		}
	case ProviderGitLab:
		return OAuthEndpoint{
			AuthURL:  "https://gitlab.com/oauth/authorize",
			TokenURL: "https://gitlab.com/oauth/token",
		}
	case ProviderBitbucket:
		return OAuthEndpoint{
			AuthURL:  "https://bitbucket.org/site/oauth2/authorize",
			TokenURL: "https://bitbucket.org/site/oauth2/access_token",
		}
	}
	return OAuthEndpoint{}
}

// DefaultScopes returns the scopes needed to list repositories and manage
// webhooks and commit statuses.
func (p ProviderType) DefaultScopes() []string {
	switch p {
	case ProviderGitHub:
		return []string{"user:email", "read:org", "admin:repo_hook", "repo:status"}
	case ProviderGitLab:
		return []string{"api", "read_user"}
	case ProviderBitbucket:
		return []string{"account", "repository", "webhook"}
	}
	return nil
}

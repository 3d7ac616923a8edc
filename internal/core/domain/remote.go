package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Privacy is the visibility level a deployment imports repositories at.
type Privacy string

const (
	// PrivacyPublic imports public repositories only.
	PrivacyPublic Privacy = "public"
	// PrivacyPrivate imports every repository the account can see.
	PrivacyPrivate Privacy = "private"
)

// Allows reports whether a repository with the given visibility is imported
// at privacy level p.
func (p Privacy) Allows(private bool) bool {
	return p == PrivacyPrivate || (!private && p == PrivacyPublic)
}

// ParsePrivacy parses a privacy level. Empty means public.
func ParsePrivacy(s string) (Privacy, error) {
	switch Privacy(s) {
	case PrivacyPublic, PrivacyPrivate:
		return Privacy(s), nil
	case "":
		return PrivacyPublic, nil
	}
	return "", fmt.Errorf("%w: unknown privacy level %q", ErrInvalidInput, s)
}

// VCS kinds.
const (
	VCSGit       = "git"
	VCSMercurial = "hg"
)

// RemoteRepository is the canonical mirror of a provider repository.
// Unique on (Provider, FullName); shared by every user who can see it.
type RemoteRepository struct {
	ID             string          `json:"id"`
	Provider       ProviderType    `json:"provider"`
	RemoteID       string          `json:"remote_id"`
	FullName       string          `json:"full_name"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Private        bool            `json:"private"`
	CloneURL       string          `json:"clone_url"`
	SSHURL         string          `json:"ssh_url,omitempty"`
	HTMLURL        string          `json:"html_url,omitempty"`
	AvatarURL      string          `json:"avatar_url,omitempty"`
	VCS            string          `json:"vcs"`
	DefaultBranch  string          `json:"default_branch,omitempty"`
	OrganizationID string          `json:"organization_id,omitempty"`
	JSON           json.RawMessage `json:"json,omitempty"`

	// ViewerAdmin is the admin permission reported for the syncing account.
	// It is stored on the relation row, not on the canonical record.
	ViewerAdmin bool `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemoteOrganization is the canonical mirror of a provider organization
// (GitHub organization, GitLab group, Bitbucket workspace).
// Unique on (Provider, Slug).
type RemoteOrganization struct {
	ID        string          `json:"id"`
	Provider  ProviderType    `json:"provider"`
	RemoteID  string          `json:"remote_id"`
	Slug      string          `json:"slug"`
	Name      string          `json:"name"`
	Email     string          `json:"email,omitempty"`
	URL       string          `json:"url,omitempty"`
	AvatarURL string          `json:"avatar_url,omitempty"`
	JSON      json.RawMessage `json:"json,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RemoteRelation records that a user currently sees a repository through a
// specific account. Unique on (RepositoryID, UserID); AccountID is the
// account that most recently asserted the access.
type RemoteRelation struct {
	ID           string    `json:"id"`
	RepositoryID string    `json:"repository_id"`
	UserID       string    `json:"user_id"`
	AccountID    string    `json:"account_id"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OrganizationRelation is the organization counterpart of RemoteRelation.
// Unique on (OrganizationID, UserID).
type OrganizationRelation struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	AccountID      string    `json:"account_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// LinkedRepository is a repository together with the relation granting a
// user access to it.
type LinkedRepository struct {
	Repository RemoteRepository `json:"repository"`
	Relation   RemoteRelation   `json:"relation"`
}

// Listing is the outcome of paginating one collection.
type Listing struct {
	// Items are the raw payload items in provider order.
	Items []json.RawMessage
	// Complete is false when a page failed and Items holds only what was
	// gathered before it.
	Complete bool
	// Pages is the number of pages successfully fetched.
	Pages int
}

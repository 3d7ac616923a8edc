package domain

import (
	"fmt"
	"time"
)

// DeletionPolicy controls whether reconciliation deletes stale relation rows
// after a pass that did not see the complete remote state.
type DeletionPolicy string

const (
	// DeleteAlways deletes against whatever the pass saw, even when a page
	// failed or an item could not be mapped.
	DeleteAlways DeletionPolicy = "always"
	// DeleteSkipOnPartial keeps every relation row when the pass was partial.
	DeleteSkipOnPartial DeletionPolicy = "skip-on-partial"
)

// ParseDeletionPolicy parses a policy name.
func ParseDeletionPolicy(s string) (DeletionPolicy, error) {
	switch DeletionPolicy(s) {
	case DeleteAlways, DeleteSkipOnPartial:
		return DeletionPolicy(s), nil
	case "":
		return DeleteSkipOnPartial, nil
	}
	return "", fmt.Errorf("%w: unknown deletion policy %q", ErrInvalidInput, s)
}

// ShouldPrune reports whether stale relations are deleted after a pass.
func (p DeletionPolicy) ShouldPrune(partial bool) bool {
	return !partial || p == DeleteAlways
}

// SyncResult summarises one sync pass for a (user, account).
type SyncResult struct {
	AccountID string       `json:"account_id"`
	UserID    string       `json:"user_id"`
	Provider  ProviderType `json:"provider"`

	// Repositories and Organizations count the distinct mapped records.
	Repositories  int `json:"repositories"`
	Organizations int `json:"organizations"`
	// Skipped counts items deliberately not imported (privacy, foreign organization).
	Skipped int `json:"skipped"`
	// MappingErrors counts items that could not be mapped.
	MappingErrors int `json:"mapping_errors"`

	RelationsDeleted             int `json:"relations_deleted"`
	OrganizationRelationsDeleted int `json:"organization_relations_deleted"`

	// Partial is true when a listing was incomplete or an item failed to map.
	Partial bool `json:"partial"`
	// PruneSkipped is true when the deletion policy kept stale relations.
	PruneSkipped bool `json:"prune_skipped"`
	// NoSession is true when the account has no stored credential.
	NoSession bool `json:"no_session"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Duration returns the wall time of the pass.
func (r *SyncResult) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

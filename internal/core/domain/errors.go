package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running for the account.
	ErrSyncInProgress = errors.New("sync in progress")

	// ErrUnsupported indicates a provider does not implement an optional
	// capability (webhooks, commit statuses). Callers should skip, not alarm.
	ErrUnsupported = errors.New("operation not supported by provider")

	// ErrMappingFailed indicates a provider payload item could not be mapped
	// into a canonical record.
	ErrMappingFailed = errors.New("payload mapping failed")

	// ErrRateLimited indicates the provider API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrAppNotConfigured indicates no OAuth app exists for a credential.
	ErrAppNotConfigured = errors.New("oauth app not configured")

	// ErrAppInUse indicates an OAuth app cannot be deleted because credentials depend on it.
	ErrAppInUse = errors.New("oauth app is in use by one or more credentials")

	// Authentication Errors.

	// ErrAccessRevoked indicates the provider rejected the access token (HTTP 401).
	ErrAccessRevoked = errors.New("access revoked")

	// ErrReauthRequired indicates the credential cannot be refreshed and the
	// user has to connect the account again.
	ErrReauthRequired = errors.New("re-authentication required")
)

// ProviderError attaches the provider name to a fatal authentication error.
type ProviderError struct {
	Provider ProviderType
	Err      error
}

// NewProviderError wraps err for provider.
func NewProviderError(provider ProviderType, err error) *ProviderError {
	return &ProviderError{Provider: provider, Err: err}
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Provider.DisplayName(), e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// UserMessage returns the text shown to the user for this failure.
func (e *ProviderError) UserMessage() string {
	name := e.Provider.DisplayName()
	switch {
	case errors.Is(e.Err, ErrAccessRevoked):
		return fmt.Sprintf(
			"Our access to your %s account was revoked. Please reconnect it from your connected accounts.", name)
	case errors.Is(e.Err, ErrReauthRequired):
		return fmt.Sprintf(
			"Your %s session has expired and could not be renewed. Please sign in with %s again.", name, name)
	default:
		return fmt.Sprintf("Syncing your %s account failed. Please try again later.", name)
	}
}

// IsFatal reports whether err must abort a sync pass.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAccessRevoked) || errors.Is(err, ErrReauthRequired)
}

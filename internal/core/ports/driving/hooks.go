package driving

import (
	"context"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// HookService performs webhook and commit-status side effects for projects.
// Provider limitations surface as domain.ErrUnsupported.
type HookService interface {
	SetupWebhook(ctx context.Context, projectID, integrationID string) (*domain.HookResult, error)
	UpdateWebhook(ctx context.Context, projectID, integrationID string) (*domain.HookResult, error)
	SyncProviderData(ctx context.Context, projectID, integrationID string) (*domain.HookResult, error)
	SendBuildStatus(
		ctx context.Context, buildID string, state domain.BuildState, linkToBuild bool,
	) (*domain.HookResult, error)
}

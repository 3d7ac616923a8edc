package driven

import (
	"context"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

// ProjectStore gives access to the projects, integrations and builds that
// webhook and commit-status calls act on.
type ProjectStore interface {
	GetProject(ctx context.Context, id string) (*domain.Project, error)
	SaveProject(ctx context.Context, project domain.Project) error

	GetIntegration(ctx context.Context, id string) (*domain.Integration, error)
	SaveIntegration(ctx context.Context, integration domain.Integration) error

	GetBuild(ctx context.Context, id string) (*domain.Build, error)
	SaveBuild(ctx context.Context, build domain.Build) error
}

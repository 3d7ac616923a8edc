package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/remotesync/internal/core/domain"
	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

var _ driven.ProjectStore = (*ProjectStore)(nil)

// ProjectStore is an in-memory implementation of driven.ProjectStore.
type ProjectStore struct {
	mu           sync.RWMutex
	projects     map[string]domain.Project
	integrations map[string]domain.Integration
	builds       map[string]domain.Build
}

// NewProjectStore creates an in-memory project store.
func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		projects:     make(map[string]domain.Project),
		integrations: make(map[string]domain.Integration),
		builds:       make(map[string]domain.Build),
	}
}

func (s *ProjectStore) GetProject(_ context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	project, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	project.Users = append([]string(nil), project.Users...)
	return &project, nil
}

func (s *ProjectStore) SaveProject(_ context.Context, project domain.Project) error {
	if project.ID == "" || project.Slug == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	project.Users = append([]string(nil), project.Users...)
	s.projects[project.ID] = project
	return nil
}

func (s *ProjectStore) GetIntegration(_ context.Context, id string) (*domain.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	integration, ok := s.integrations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &integration, nil
}

func (s *ProjectStore) SaveIntegration(_ context.Context, integration domain.Integration) error {
	if integration.ID == "" || integration.ProjectID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	integration.UpdatedAt = time.Now()
	s.integrations[integration.ID] = integration
	return nil
}

func (s *ProjectStore) GetBuild(_ context.Context, id string) (*domain.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	build, ok := s.builds[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &build, nil
}

func (s *ProjectStore) SaveBuild(_ context.Context, build domain.Build) error {
	if build.ID == "" || build.ProjectID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builds[build.ID] = build
	return nil
}

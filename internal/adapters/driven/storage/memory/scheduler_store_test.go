package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/remotesync/internal/core/domain"
)

func TestSchedulerStore_TasksAndHistory(t *testing.T) {
	ctx := context.Background()
	store := NewSchedulerStore()

	task, err := store.GetTask(ctx, domain.TaskIDRemoteSync)
	require.NoError(t, err)
	assert.Nil(t, task)

	require.NoError(t, store.SaveTask(ctx, &domain.ScheduledTask{ID: domain.TaskIDRemoteSync, Interval: time.Hour}))
	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordResult(ctx, &domain.TaskResult{
			TaskID: domain.TaskIDRemoteSync, StartedAt: start.Add(time.Duration(i) * time.Minute), AccountsSynced: i,
		}))
	}
	require.NoError(t, store.PruneHistory(ctx, 2))

	history, err := store.GetTaskHistory(ctx, domain.TaskIDRemoteSync, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 4, history[0].AccountsSynced)
	assert.Equal(t, 3, history[1].AccountsSynced)

	require.NoError(t, store.DeleteTask(ctx, domain.TaskIDRemoteSync))
	assert.ErrorIs(t, store.SaveTask(ctx, nil), domain.ErrInvalidInput)
}

func TestProjectStore_CopiesUsers(t *testing.T) {
	ctx := context.Background()
	store := NewProjectStore()

	users := []string{"alice"}
	require.NoError(t, store.SaveProject(ctx, domain.Project{ID: "p1", Slug: "docs", Users: users}))
	users[0] = "mallory"

	project, err := store.GetProject(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, project.Users)

	_, err = store.GetBuild(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.SaveIntegration(ctx, domain.Integration{ID: "i1"}), domain.ErrInvalidInput)
}

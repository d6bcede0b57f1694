package gorm

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ichigozero/taskdesk/tasksvc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	stdgorm "gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *stdgorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := stdgorm.Open(sqlite.Open(dsn), &stdgorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tasksvc.Task{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newTask(owner string, status tasksvc.Status) *tasksvc.Task {
	return &tasksvc.Task{
		Title:            "Write report",
		Description:      "Quarterly numbers",
		Status:           status,
		Priority:         tasksvc.PriorityMedium,
		DueDate:          time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		Category:         "Work",
		CreatedByUserID:  owner,
		AssignedToUserID: owner,
	}
}

func TestTaskRepositoryCreateFind(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	task := newTask("u1", tasksvc.StatusPending)
	require.NoError(t, repo.Create(ctx, task))
	assert.NotZero(t, task.ID)
	assert.Equal(t, uint64(1), task.Version)

	found, err := repo.Find(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write report", found.Title)
	assert.Equal(t, "u1", found.CreatedByUserID)

	_, err = repo.Find(ctx, 999)
	var nf *tasksvc.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, uint64(999), nf.ID)
}

func TestTaskRepositoryFindAll(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newTask("u1", tasksvc.StatusPending)))
	require.NoError(t, repo.Create(ctx, newTask("u2", tasksvc.StatusPending)))
	require.NoError(t, repo.Create(ctx, newTask("u1", tasksvc.StatusCompleted)))

	all, err := repo.FindAll(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := repo.FindAll(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := repo.FindAll(ctx, "u3")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestTaskRepositoryUpdateVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	task := newTask("u1", tasksvc.StatusPending)
	require.NoError(t, repo.Create(ctx, task))

	edit := *task
	edit.Title = "Rewrite report"
	edit.Status = tasksvc.StatusInProgress
	updated, err := repo.Update(ctx, edit)
	require.NoError(t, err)
	assert.Equal(t, "Rewrite report", updated.Title)
	assert.Equal(t, tasksvc.StatusInProgress, updated.Status)
	assert.Equal(t, uint64(2), updated.Version)
	assert.Equal(t, "u1", updated.CreatedByUserID)

	_, err = repo.Update(ctx, edit)
	assert.ErrorIs(t, err, tasksvc.ErrVersionConflict)

	edit.ID = 999
	_, err = repo.Update(ctx, edit)
	var nf *tasksvc.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestTaskRepositoryUpdateWithoutVersion(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	task := newTask("u1", tasksvc.StatusPending)
	require.NoError(t, repo.Create(ctx, task))

	first := *task
	first.Version = 0
	first.Title = "First"
	_, err := repo.Update(ctx, first)
	require.NoError(t, err)

	second := first
	second.Title = "Second"
	updated, err := repo.Update(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, "Second", updated.Title)
	assert.Equal(t, uint64(3), updated.Version)

	second.ID = 999
	_, err = repo.Update(ctx, second)
	var nf *tasksvc.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestTaskRepositoryConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	repo := NewTaskRepository(db)

	// A shared-cache sqlite database reports table locks instead of waiting.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	task := newTask("u1", tasksvc.StatusPending)
	require.NoError(t, repo.Create(ctx, task))

	var (
		wg        sync.WaitGroup
		mtx       sync.Mutex
		ok        int
		conflicts int
	)
	for _, title := range []string{"first", "second"} {
		wg.Add(1)
		go func(title string) {
			defer wg.Done()
			edit := *task
			edit.Title = title
			_, err := repo.Update(ctx, edit)

			mtx.Lock()
			defer mtx.Unlock()
			switch err {
			case nil:
				ok++
			case tasksvc.ErrVersionConflict:
				conflicts++
			}
		}(title)
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
}

func TestTaskRepositoryDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	task := newTask("u1", tasksvc.StatusPending)
	require.NoError(t, repo.Create(ctx, task))

	require.NoError(t, repo.Delete(ctx, task.ID))

	var nf *tasksvc.NotFoundError
	assert.ErrorAs(t, repo.Delete(ctx, task.ID), &nf)
	_, err := repo.Find(ctx, task.ID)
	assert.ErrorAs(t, err, &nf)
}

func TestTaskRepositoryCountByStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskRepository(newTestDB(t))

	require.NoError(t, repo.Create(ctx, newTask("u1", tasksvc.StatusPending)))
	require.NoError(t, repo.Create(ctx, newTask("u1", tasksvc.StatusCompleted)))
	require.NoError(t, repo.Create(ctx, newTask("u1", tasksvc.StatusCompleted)))
	require.NoError(t, repo.Create(ctx, newTask("u2", tasksvc.StatusInProgress)))
	require.NoError(t, repo.Create(ctx, newTask("u2", "completed")))

	all, err := repo.CountByStatus(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), all[tasksvc.StatusCompleted])
	assert.Equal(t, int64(1), all[tasksvc.StatusInProgress])
	assert.Equal(t, int64(1), all[tasksvc.StatusPending])

	mine, err := repo.CountByStatus(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), mine[tasksvc.StatusCompleted])
	assert.Equal(t, int64(1), mine[tasksvc.StatusInProgress])
}

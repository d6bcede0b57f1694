package gorm

import (
	"context"
	"errors"

	"github.com/ichigozero/taskdesk/tasksvc"
	stdgorm "gorm.io/gorm"
)

type taskRepository struct {
	db *stdgorm.DB
}

func NewTaskRepository(db *stdgorm.DB) tasksvc.TaskRepository {
	return &taskRepository{db}
}

func (t taskRepository) Create(ctx context.Context, task *tasksvc.Task) error {
	task.ID = 0
	task.Version = 1
	return t.db.WithContext(ctx).Create(task).Error
}

func (t taskRepository) FindAll(ctx context.Context, createdBy string) ([]tasksvc.Task, error) {
	tasks := []tasksvc.Task{}
	query := t.db.WithContext(ctx).Order("id")
	if createdBy != "" {
		query = query.Where("created_by_user_id = ?", createdBy)
	}
	result := query.Find(&tasks)

	return tasks, result.Error
}

func (t taskRepository) Find(ctx context.Context, id uint64) (tasksvc.Task, error) {
	var task tasksvc.Task
	result := t.db.WithContext(ctx).Where("id = ?", id).First(&task)
	if errors.Is(result.Error, stdgorm.ErrRecordNotFound) {
		return tasksvc.Task{}, &tasksvc.NotFoundError{ID: id}
	}

	return task, result.Error
}

func (t taskRepository) Update(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	query := t.db.WithContext(ctx).Model(&tasksvc.Task{}).Where("id = ?", task.ID)
	if task.Version != 0 {
		query = query.Where("version = ?", task.Version)
	}
	result := query.Updates(map[string]interface{}{
		"title":       task.Title,
		"description": task.Description,
		"status":      task.Status,
		"priority":    task.Priority,
		"due_date":    task.DueDate,
		"category":    task.Category,
		"version":     stdgorm.Expr("version + 1"),
	})
	if result.Error != nil {
		return tasksvc.Task{}, result.Error
	}

	if result.RowsAffected == 0 {
		if _, err := t.Find(ctx, task.ID); err != nil {
			return tasksvc.Task{}, err
		}
		return tasksvc.Task{}, tasksvc.ErrVersionConflict
	}

	return t.Find(ctx, task.ID)
}

func (t taskRepository) Delete(ctx context.Context, id uint64) error {
	result := t.db.WithContext(ctx).Delete(&tasksvc.Task{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return &tasksvc.NotFoundError{ID: id}
	}
	return nil
}

func (t taskRepository) CountByStatus(ctx context.Context, createdBy string) (map[tasksvc.Status]int64, error) {
	var rows []struct {
		Status tasksvc.Status
		Total  int64
	}

	query := t.db.WithContext(ctx).Model(&tasksvc.Task{})
	if createdBy != "" {
		query = query.Where("created_by_user_id = ?", createdBy)
	}
	err := query.Select("status, count(*) AS total").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[tasksvc.Status]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

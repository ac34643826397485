package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenNSW/taskrunner/internal/task/model"
	"github.com/OpenNSW/taskrunner/utils"
)

// TaskStore is the task catalog.
type TaskStore struct {
	db *gorm.DB
}

func NewTaskStore(db *gorm.DB) (*TaskStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	return &TaskStore{db: db}, nil
}

func (s *TaskStore) Create(ctx context.Context, task *model.Task) error {
	if err := s.db.WithContext(ctx).Create(task).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID returns ErrNotFound when no task has the given id.
func (s *TaskStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	var task model.Task
	if err := s.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// List returns one page of tasks ordered by creation time.
func (s *TaskStore) List(ctx context.Context, offset, limit *int) (*model.TaskListResult, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Task{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}

	finalOffset, finalLimit := utils.GetPaginationParams(offset, limit)

	tasks := []model.Task{}
	if err := s.db.WithContext(ctx).
		Order("created_at ASC").
		Offset(finalOffset).
		Limit(finalLimit).
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	return &model.TaskListResult{
		TotalCount: total,
		Items:      tasks,
		Offset:     finalOffset,
		Limit:      finalLimit,
	}, nil
}

// FindByName matches name as a case-insensitive substring.
func (s *TaskStore) FindByName(ctx context.Context, name string) ([]model.Task, error) {
	pattern := "%" + escapeLike(strings.ToLower(name)) + "%"

	tasks := []model.Task{}
	if err := s.db.WithContext(ctx).
		Where(`LOWER(name) LIKE ? ESCAPE '\'`, pattern).
		Order("name ASC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to search tasks: %w", err)
	}
	return tasks, nil
}

// Delete returns ErrNotFound when nothing was deleted.
func (s *TaskStore) Delete(ctx context.Context, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Delete(&model.Task{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete task: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

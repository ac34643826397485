package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/OpenNSW/taskrunner/internal/task/model"
	"github.com/OpenNSW/taskrunner/utils"
)

// ExecutionStore keeps the append-only history of runs.
type ExecutionStore struct {
	db *gorm.DB
}

func NewExecutionStore(db *gorm.DB) (*ExecutionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	return &ExecutionStore{db: db}, nil
}

// Save inserts the record and fills in its ID.
func (s *ExecutionStore) Save(ctx context.Context, execution *model.Execution) error {
	if err := s.db.WithContext(ctx).Create(execution).Error; err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}
	return nil
}

func (s *ExecutionStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Execution, error) {
	var execution model.Execution
	if err := s.db.WithContext(ctx).First(&execution, "id = ?", id).Error; err != nil {
		if notFound(err) {
			return nil, fmt.Errorf("execution %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return &execution, nil
}

// ListByTaskID returns one page of a task's runs, newest first.
func (s *ExecutionStore) ListByTaskID(ctx context.Context, taskID uuid.UUID, offset, limit *int) ([]model.Execution, error) {
	finalOffset, finalLimit := utils.GetPaginationParams(offset, limit)

	executions := []model.Execution{}
	if err := s.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("executed_at DESC").
		Offset(finalOffset).
		Limit(finalLimit).
		Find(&executions).Error; err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	return executions, nil
}

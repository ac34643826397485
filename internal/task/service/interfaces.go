package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/OpenNSW/taskrunner/internal/task/model"
	"github.com/OpenNSW/taskrunner/internal/task/runner"
)

// TaskLookup resolves a task by id. A missing task is reported with store.ErrNotFound.
type TaskLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Task, error)
}

// TaskCatalog is the full task store.
type TaskCatalog interface {
	TaskLookup
	Create(ctx context.Context, task *model.Task) error
	List(ctx context.Context, offset, limit *int) (*model.TaskListResult, error)
	FindByName(ctx context.Context, name string) ([]model.Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ExecutionRecorder persists execution records. Save fills in the record id.
type ExecutionRecorder interface {
	Save(ctx context.Context, execution *model.Execution) error
}

// ExecutionHistory is the full execution store.
type ExecutionHistory interface {
	ExecutionRecorder
	GetByID(ctx context.Context, id uuid.UUID) (*model.Execution, error)
	ListByTaskID(ctx context.Context, taskID uuid.UUID, offset, limit *int) ([]model.Execution, error)
}

// Runner runs one command in a fresh execution unit.
type Runner interface {
	Run(ctx context.Context, taskID uuid.UUID, command string) runner.Result
}

// OutputArchive keeps full execution output outside the database.
type OutputArchive interface {
	Store(ctx context.Context, executionID uuid.UUID, output string) error
	Open(ctx context.Context, executionID uuid.UUID) (io.ReadCloser, error)
}

// Package service implements task registration and execution.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.trai.ch/zerr"

	"github.com/OpenNSW/taskrunner/internal/logarchive"
	"github.com/OpenNSW/taskrunner/internal/task/model"
	"github.com/OpenNSW/taskrunner/internal/task/policy"
	"github.com/OpenNSW/taskrunner/internal/task/store"
)

const (
	nameMinLen = 3
	nameMaxLen = 100
)

type TaskService struct {
	tasks      TaskCatalog
	executions ExecutionHistory
	runner     Runner
	policy     *policy.Policy
	archive    OutputArchive
	now        func() time.Time
}

// NewTaskService wires the service. archive may be nil, which disables output archiving.
func NewTaskService(tasks TaskCatalog, executions ExecutionHistory, runner Runner, p *policy.Policy, archive OutputArchive) *TaskService {
	if archive == nil {
		archive = logarchive.New(nil)
	}
	return &TaskService{
		tasks:      tasks,
		executions: executions,
		runner:     runner,
		policy:     p,
		archive:    archive,
		now:        time.Now,
	}
}

// ExecuteTask runs the task's command once and returns the stored record.
// Only ErrTaskNotFound, ErrUnsafeCommand and storage failures are returned as errors;
// a command that fails, times out or cannot be scheduled still yields a record.
func (s *TaskService) ExecuteTask(ctx context.Context, id uuid.UUID) (*model.Execution, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, id)
	}

	if rule, ok := s.policy.Evaluate(task.Command); !ok {
		slog.WarnContext(ctx, "refusing to execute task", "taskID", id, "rule", rule)
		err := zerr.With(zerr.Wrap(ErrUnsafeCommand, "execute task"), "task_id", id)
		return nil, zerr.With(err, "rule", rule)
	}

	slog.InfoContext(ctx, "executing task", "taskID", id, "name", task.Name)
	result := s.runner.Run(ctx, task.ID, task.Command)

	execution := &model.Execution{
		TaskID:     task.ID,
		CommandRun: task.Command,
		Output:     result.Output,
		Success:    result.Success,
		ExecutedAt: s.now().UTC(),
	}

	// the record is written even when the caller has gone away
	persistCtx := context.WithoutCancel(ctx)
	if err := s.executions.Save(persistCtx, execution); err != nil {
		return nil, fmt.Errorf("failed to save execution record: %w", err)
	}

	if err := s.archive.Store(persistCtx, execution.ID, result.Output); err != nil {
		zerr.Log(ctx, slog.Default(), zerr.With(zerr.Wrap(err, "failed to archive execution output"), "execution_id", execution.ID))
	}

	slog.InfoContext(ctx, "task executed",
		"taskID", id,
		"executionID", execution.ID,
		"unit", result.UnitName,
		"outcome", result.Outcome,
		"success", result.Success,
	)
	return execution, nil
}

// CreateTask validates and stores a new task. The command must already pass the policy.
func (s *TaskService) CreateTask(ctx context.Context, req model.CreateTaskRequest) (*model.Task, error) {
	if err := validateCreateRequest(req); err != nil {
		return nil, err
	}
	if rule, ok := s.policy.Evaluate(req.Command); !ok {
		return nil, zerr.With(zerr.Wrap(ErrUnsafeCommand, "create task"), "rule", rule)
	}

	task := &model.Task{
		Name:        req.Name,
		Description: req.Description,
		Command:     req.Command,
		Framework:   req.Framework,
		AssignedTo:  req.AssignedTo,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "task created", "taskID", task.ID, "name", task.Name)
	return task, nil
}

func validateCreateRequest(req model.CreateTaskRequest) error {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return zerr.With(zerr.Wrap(ErrInvalidRequest, "name must not be blank"), "field", "name")
	case utf8.RuneCountInString(req.Name) < nameMinLen || utf8.RuneCountInString(req.Name) > nameMaxLen:
		err := zerr.Wrap(ErrInvalidRequest, fmt.Sprintf("name must be between %d and %d characters", nameMinLen, nameMaxLen))
		return zerr.With(err, "field", "name")
	case strings.TrimSpace(req.Command) == "":
		return zerr.With(zerr.Wrap(ErrInvalidRequest, "command must not be blank"), "field", "command")
	}
	return nil
}

func (s *TaskService) ListTasks(ctx context.Context, offset, limit *int) (*model.TaskListResult, error) {
	return s.tasks.List(ctx, offset, limit)
}

func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(err, id)
	}
	return task, nil
}

// DeleteTask removes the task. Its execution records are kept.
func (s *TaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	if err := s.tasks.Delete(ctx, id); err != nil {
		return s.lookupError(err, id)
	}
	slog.InfoContext(ctx, "task deleted", "taskID", id)
	return nil
}

// FindTasksByName returns tasks whose name contains name, ignoring case.
func (s *TaskService) FindTasksByName(ctx context.Context, name string) ([]model.Task, error) {
	if strings.TrimSpace(name) == "" {
		return nil, zerr.With(zerr.Wrap(ErrInvalidRequest, "name must not be blank"), "field", "name")
	}
	return s.tasks.FindByName(ctx, name)
}

// ListExecutions returns a page of the task's runs, newest first.
func (s *TaskService) ListExecutions(ctx context.Context, taskID uuid.UUID, offset, limit *int) ([]model.Execution, error) {
	if _, err := s.tasks.GetByID(ctx, taskID); err != nil {
		return nil, s.lookupError(err, taskID)
	}
	return s.executions.ListByTaskID(ctx, taskID, offset, limit)
}

// OpenExecutionOutput streams the archived output of an execution. When nothing was
// archived the output stored on the record is returned instead.
func (s *TaskService) OpenExecutionOutput(ctx context.Context, executionID uuid.UUID) (io.ReadCloser, error) {
	execution, err := s.executions.GetByID(ctx, executionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, zerr.With(zerr.Wrap(ErrExecutionNotFound, "open execution output"), "execution_id", executionID)
		}
		return nil, err
	}

	r, err := s.archive.Open(ctx, executionID)
	switch {
	case err == nil:
		return r, nil
	case errors.Is(err, logarchive.ErrDisabled), errors.Is(err, logarchive.ErrNotArchived):
		return io.NopCloser(strings.NewReader(execution.Output)), nil
	default:
		return nil, err
	}
}

func (s *TaskService) lookupError(err error, id uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return zerr.With(zerr.Wrap(ErrTaskNotFound, "lookup task"), "task_id", id)
	}
	return err
}

package router

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/OpenNSW/taskrunner/internal/task/model"
	"github.com/OpenNSW/taskrunner/utils"
)

// TaskAPI is the service surface the router exposes.
type TaskAPI interface {
	CreateTask(ctx context.Context, req model.CreateTaskRequest) (*model.Task, error)
	ListTasks(ctx context.Context, offset, limit *int) (*model.TaskListResult, error)
	GetTask(ctx context.Context, id uuid.UUID) (*model.Task, error)
	DeleteTask(ctx context.Context, id uuid.UUID) error
	FindTasksByName(ctx context.Context, name string) ([]model.Task, error)
	ExecuteTask(ctx context.Context, id uuid.UUID) (*model.Execution, error)
	ListExecutions(ctx context.Context, taskID uuid.UUID, offset, limit *int) ([]model.Execution, error)
	OpenExecutionOutput(ctx context.Context, executionID uuid.UUID) (io.ReadCloser, error)
}

type TaskRouter struct {
	ts     TaskAPI
	logger *slog.Logger
}

func NewTaskRouter(ts TaskAPI, logger *slog.Logger) *TaskRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskRouter{ts: ts, logger: logger}
}

// Register mounts the task and execution routes.
func (tr *TaskRouter) Register(r gin.IRouter) {
	tasks := r.Group("/tasks")
	tasks.POST("", tr.HandleCreateTask)
	tasks.GET("", tr.HandleListTasks)
	tasks.GET("/search", tr.HandleSearchTasks)
	tasks.GET("/:id", tr.HandleGetTask)
	tasks.DELETE("/:id", tr.HandleDeleteTask)
	tasks.PUT("/:id/execute", tr.HandleExecuteTask)
	tasks.GET("/:id/executions", tr.HandleListExecutions)

	r.GET("/executions/:id/output", tr.HandleGetExecutionOutput)
}

// HandleCreateTask handles POST /tasks
// Request body: CreateTaskRequest
func (tr *TaskRouter) HandleCreateTask(c *gin.Context) {
	var req model.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request", err.Error())
		return
	}

	task, err := tr.ts.CreateTask(c.Request.Context(), req)
	if err != nil {
		tr.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

// HandleListTasks handles GET /tasks
// Optional Query Filters: offset, limit
func (tr *TaskRouter) HandleListTasks(c *gin.Context) {
	offset, limit, ok := pagination(c)
	if !ok {
		return
	}

	page, err := tr.ts.ListTasks(c.Request.Context(), offset, limit)
	if err != nil {
		tr.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// HandleSearchTasks handles GET /tasks/search?name=
func (tr *TaskRouter) HandleSearchTasks(c *gin.Context) {
	name, ok := c.GetQuery("name")
	if !ok {
		writeError(c, http.StatusBadRequest, "Invalid request", "query parameter 'name' is required")
		return
	}

	tasks, err := tr.ts.FindTasksByName(c.Request.Context(), name)
	if err != nil {
		tr.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// HandleGetTask handles GET /tasks/:id
func (tr *TaskRouter) HandleGetTask(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	task, err := tr.ts.GetTask(c.Request.Context(), id)
	if err != nil {
		tr.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// HandleDeleteTask handles DELETE /tasks/:id
func (tr *TaskRouter) HandleDeleteTask(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := tr.ts.DeleteTask(c.Request.Context(), id); err != nil {
		tr.writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleExecuteTask handles PUT /tasks/:id/execute
// Blocks until the run has finished and its record is stored.
func (tr *TaskRouter) HandleExecuteTask(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	execution, err := tr.ts.ExecuteTask(c.Request.Context(), id)
	if err != nil {
		tr.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}

// HandleListExecutions handles GET /tasks/:id/executions
func (tr *TaskRouter) HandleListExecutions(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	offset, limit, ok := pagination(c)
	if !ok {
		return
	}

	executions, err := tr.ts.ListExecutions(c.Request.Context(), id, offset, limit)
	if err != nil {
		tr.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, executions)
}

// HandleGetExecutionOutput handles GET /executions/:id/output
func (tr *TaskRouter) HandleGetExecutionOutput(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	r, err := tr.ts.OpenExecutionOutput(c.Request.Context(), id)
	if err != nil {
		tr.writeServiceError(c, err)
		return
	}
	defer r.Close()

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, r); err != nil {
		tr.logger.WarnContext(c.Request.Context(), "failed to stream execution output", "executionID", id, "error", err)
	}
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Param(name)
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		writeError(c, http.StatusBadRequest, "Invalid request", fmt.Sprintf("invalid %s: %q", name, raw))
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (offset, limit *int, ok bool) {
	var err error
	if offset, err = utils.ParseOptionalInt(c.Query("offset")); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request", fmt.Sprintf("invalid 'offset' query parameter: %v", err))
		return nil, nil, false
	}
	if limit, err = utils.ParseOptionalInt(c.Query("limit")); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request", fmt.Sprintf("invalid 'limit' query parameter: %v", err))
		return nil, nil, false
	}
	return offset, limit, true
}

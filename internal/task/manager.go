// Package task assembles the task catalog, the execution runner and the HTTP routes.
package task

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/OpenNSW/taskrunner/internal/config"
	"github.com/OpenNSW/taskrunner/internal/logarchive"
	"github.com/OpenNSW/taskrunner/internal/task/policy"
	"github.com/OpenNSW/taskrunner/internal/task/router"
	"github.com/OpenNSW/taskrunner/internal/task/runner"
	"github.com/OpenNSW/taskrunner/internal/task/service"
	"github.com/OpenNSW/taskrunner/internal/task/store"
)

// Dependencies are the external resources a Manager is built from.
type Dependencies struct {
	DB          *gorm.DB
	Environment runner.EnvironmentClient
	Policy      *policy.Policy      // nil means policy.Default()
	Archive     *logarchive.Archive // nil disables output archiving
	Kubernetes  config.KubernetesConfig
	Logger      *slog.Logger
}

// Manager owns the wired task components.
type Manager struct {
	Service      *service.TaskService
	Router       *router.TaskRouter
	Orchestrator *runner.Orchestrator
}

func NewManager(deps Dependencies) (*Manager, error) {
	if deps.Environment == nil {
		return nil, fmt.Errorf("execution environment cannot be nil")
	}

	tasks, err := store.NewTaskStore(deps.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create task store: %w", err)
	}
	executions, err := store.NewExecutionStore(deps.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution store: %w", err)
	}

	p := deps.Policy
	if p == nil {
		p = policy.Default()
	}

	orchestrator := runner.NewOrchestrator(deps.Environment, RunnerConfig(deps.Kubernetes))
	svc := service.NewTaskService(tasks, executions, orchestrator, p, deps.Archive)

	return &Manager{
		Service:      svc,
		Router:       router.NewTaskRouter(svc, deps.Logger),
		Orchestrator: orchestrator,
	}, nil
}

// RunnerConfig maps the Kubernetes settings onto the orchestrator's timing.
func RunnerConfig(cfg config.KubernetesConfig) runner.Config {
	return runner.Config{
		Namespace:            cfg.Namespace,
		Image:                cfg.Image,
		PollInterval:         cfg.PollInterval,
		Timeout:              cfg.ExecutionTimeout,
		SettleDelay:          cfg.SettleDelay,
		CleanupTimeout:       cfg.CleanupTimeout,
		CaptureLogsOnTimeout: cfg.CaptureLogsOnTimeout,
	}
}

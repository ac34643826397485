package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ContainerName = "task-runner"

	LabelManagedBy = "app.kubernetes.io/managed-by"
	LabelTaskID    = "taskrunner.io/task-id"
	managedByValue = "taskrunner"

	NoLogsOutput = "No logs found or pod failed before logging."
)

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeErrored   Outcome = "errored"
)

// Config controls unit placement and the timing of a run.
type Config struct {
	Namespace            string
	Image                string
	PollInterval         time.Duration
	Timeout              time.Duration
	SettleDelay          time.Duration // wait after a terminal phase so the log stream is complete
	CleanupTimeout       time.Duration
	CaptureLogsOnTimeout bool
}

// DefaultConfig returns the timing used in production.
func DefaultConfig() Config {
	return Config{
		Namespace:      "default",
		Image:          "busybox:latest",
		PollInterval:   5 * time.Second,
		Timeout:        2 * time.Minute,
		SettleDelay:    2 * time.Second,
		CleanupTimeout: 30 * time.Second,
	}
}

// Result is the outcome of one run. Output is always human readable.
type Result struct {
	Success  bool
	Output   string
	Outcome  Outcome
	UnitName string
}

var errTimedOut = errors.New("execution timed out")

// Orchestrator drives a single-use execution unit from creation to deletion.
// It is safe for concurrent use; runs share nothing but the name sequence.
type Orchestrator struct {
	client EnvironmentClient
	cfg    Config
	names  *NameGenerator
	tracer trace.Tracer
}

// NewOrchestrator fills zero-valued fields of cfg from DefaultConfig, except SettleDelay.
func NewOrchestrator(client EnvironmentClient, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.Namespace == "" {
		cfg.Namespace = def.Namespace
	}
	if cfg.Image == "" {
		cfg.Image = def.Image
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CleanupTimeout <= 0 {
		cfg.CleanupTimeout = def.CleanupTimeout
	}
	return &Orchestrator{
		client: client,
		cfg:    cfg,
		names:  NewNameGenerator(),
		tracer: otel.Tracer("github.com/OpenNSW/taskrunner/internal/task/runner"),
	}
}

// Run executes command in a fresh unit and always deletes the unit before returning.
// Failures of the environment are reported through the Result, never as an error.
func (o *Orchestrator) Run(ctx context.Context, taskID uuid.UUID, command string) (res Result) {
	name := o.names.Next(taskID)
	res.UnitName = name

	ctx, span := o.tracer.Start(ctx, "runner.Run", trace.WithAttributes(
		attribute.String("task.id", taskID.String()),
		attribute.String("unit.name", name),
		attribute.String("unit.namespace", o.cfg.Namespace),
	))
	defer func() {
		span.SetAttributes(attribute.String("run.outcome", string(res.Outcome)))
		if !res.Success {
			span.SetStatus(codes.Error, string(res.Outcome))
		}
		span.End()
	}()

	defer o.cleanup(ctx, name)

	spec := UnitSpec{
		Name:      name,
		Namespace: o.cfg.Namespace,
		Image:     o.cfg.Image,
		Command:   command,
		Labels: map[string]string{
			LabelManagedBy: managedByValue,
			LabelTaskID:    taskID.String(),
		},
	}

	slog.InfoContext(ctx, "creating execution unit", "taskID", taskID, "unit", name, "namespace", o.cfg.Namespace)
	if _, err := o.client.Create(ctx, spec); err != nil {
		slog.ErrorContext(ctx, "failed to create execution unit", "unit", name, "error", err)
		return o.errored(res, "Execution environment error: %v", err)
	}

	phase, err := o.awaitTerminal(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, errTimedOut):
		return o.timedOut(ctx, res, name)
	case ctx.Err() != nil:
		return o.errored(res, "Execution canceled: %v", ctx.Err())
	default:
		slog.ErrorContext(ctx, "failed to read execution unit", "unit", name, "error", err)
		return o.errored(res, "Execution environment error: %v", err)
	}
	slog.DebugContext(ctx, "execution unit finished", "unit", name, "phase", phase)

	if err := sleep(ctx, o.cfg.SettleDelay); err != nil {
		return o.errored(res, "Execution canceled: %v", err)
	}

	logs, err := o.client.FetchLogs(ctx, name, o.cfg.Namespace, true)
	if err != nil {
		if ctx.Err() != nil {
			return o.errored(res, "Execution canceled: %v", ctx.Err())
		}
		slog.ErrorContext(ctx, "failed to fetch execution logs", "unit", name, "error", err)
		return o.errored(res, "Error fetching logs: %v", err)
	}
	res.Output = strings.TrimSpace(logs)
	if res.Output == "" {
		res.Output = NoLogsOutput
	}

	// the phase is read again after the logs so a late status update is not missed
	status, err := o.client.Read(ctx, name, o.cfg.Namespace)
	if err != nil {
		if !IsNotFound(err) {
			slog.ErrorContext(ctx, "failed to read final unit status", "unit", name, "error", err)
		}
		res.Outcome = OutcomeFailed
		return res
	}
	res.Success = status.Phase == PhaseSucceeded
	if res.Success {
		res.Outcome = OutcomeSucceeded
	} else {
		res.Outcome = OutcomeFailed
	}
	slog.InfoContext(ctx, "execution unit completed", "taskID", taskID, "unit", name, "phase", status.Phase, "success", res.Success)
	return res
}

// awaitTerminal polls until the unit reaches a terminal phase, the timeout
// elapses (errTimedOut) or ctx is done.
func (o *Orchestrator) awaitTerminal(ctx context.Context, name string) (Phase, error) {
	deadline := time.NewTimer(o.cfg.Timeout)
	defer deadline.Stop()

	for {
		status, err := o.client.Read(ctx, name, o.cfg.Namespace)
		if err != nil {
			return "", err
		}
		if status.Phase.Terminal() {
			return status.Phase, nil
		}

		tick := time.NewTimer(o.cfg.PollInterval)
		select {
		case <-ctx.Done():
			tick.Stop()
			return "", ctx.Err()
		case <-deadline.C:
			tick.Stop()
			return "", errTimedOut
		case <-tick.C:
		}
	}
}

func (o *Orchestrator) timedOut(ctx context.Context, res Result, name string) Result {
	slog.WarnContext(ctx, "execution unit timed out", "unit", name, "timeout", o.cfg.Timeout)
	res.Outcome = OutcomeTimedOut
	res.Success = false
	res.Output = fmt.Sprintf("Pod execution timed out after %s.", o.cfg.Timeout)

	if o.cfg.CaptureLogsOnTimeout {
		logs, err := o.client.FetchLogs(ctx, name, o.cfg.Namespace, false)
		if err != nil {
			slog.DebugContext(ctx, "no logs captured for timed out unit", "unit", name, "error", err)
		} else if logs = strings.TrimSpace(logs); logs != "" {
			res.Output += "\n" + logs
		}
	}
	return res
}

func (o *Orchestrator) errored(res Result, format string, args ...any) Result {
	res.Outcome = OutcomeErrored
	res.Success = false
	res.Output = fmt.Sprintf(format, args...)
	return res
}

// cleanup deletes the unit even when ctx has been canceled.
func (o *Orchestrator) cleanup(ctx context.Context, name string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.CleanupTimeout)
	defer cancel()

	err := o.client.Delete(cctx, name, o.cfg.Namespace, 0)
	switch {
	case err == nil:
		slog.InfoContext(ctx, "execution unit deleted", "unit", name)
	case IsNotFound(err):
		slog.InfoContext(ctx, "execution unit already gone", "unit", name)
	default:
		slog.ErrorContext(ctx, "failed to delete execution unit", "unit", name, "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

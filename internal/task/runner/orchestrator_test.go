package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnvironment replays a fixed sequence of phases and records every call.
type fakeEnvironment struct {
	mu sync.Mutex

	phases    []Phase // returned by successive Read calls; the last one repeats
	finalRead *UnitStatus
	logs      string

	createErr error
	readErr   error
	logsErr   error
	deleteErr error

	created      []UnitSpec
	reads        int
	logCalls     int
	deleted      []string
	deleteCtxErr []error // ctx.Err() observed at delete time
}

func (f *fakeEnvironment) Create(_ context.Context, spec UnitSpec) (*UnitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, spec)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &UnitStatus{Name: spec.Name, Namespace: spec.Namespace, Phase: PhasePending}, nil
}

func (f *fakeEnvironment) Read(_ context.Context, name, namespace string) (*UnitStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.logCalls > 0 && f.finalRead != nil {
		return f.finalRead, nil
	}
	phase := PhasePending
	if len(f.phases) > 0 {
		idx := min(f.reads-1, len(f.phases)-1)
		phase = f.phases[idx]
	}
	return &UnitStatus{Name: name, Namespace: namespace, Phase: phase}, nil
}

func (f *fakeEnvironment) FetchLogs(_ context.Context, _, _ string, _ bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logCalls++
	if f.logsErr != nil {
		return "", f.logsErr
	}
	return f.logs, nil
}

func (f *fakeEnvironment) Delete(ctx context.Context, name, _ string, gracePeriod time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, name)
	f.deleteCtxErr = append(f.deleteCtxErr, ctx.Err())
	if gracePeriod != 0 {
		return errors.New("unexpected grace period")
	}
	return f.deleteErr
}

func testConfig() Config {
	return Config{
		Namespace:      "jobs",
		Image:          "busybox:latest",
		PollInterval:   5 * time.Millisecond,
		Timeout:        100 * time.Millisecond,
		SettleDelay:    time.Millisecond,
		CleanupTimeout: time.Second,
	}
}

func TestRun_Success(t *testing.T) {
	env := &fakeEnvironment{
		phases: []Phase{PhasePending, PhaseRunning, PhaseSucceeded},
		logs:   "hello\n",
	}
	o := NewOrchestrator(env, testConfig())
	taskID := uuid.New()

	res := o.Run(context.Background(), taskID, "echo hello")

	assert.True(t, res.Success)
	assert.Equal(t, OutcomeSucceeded, res.Outcome)
	assert.Equal(t, "hello", res.Output)

	require.Len(t, env.created, 1)
	spec := env.created[0]
	assert.Equal(t, res.UnitName, spec.Name)
	assert.Equal(t, "jobs", spec.Namespace)
	assert.Equal(t, "busybox:latest", spec.Image)
	assert.Equal(t, "echo hello", spec.Command)
	assert.Equal(t, "taskrunner", spec.Labels[LabelManagedBy])
	assert.Equal(t, taskID.String(), spec.Labels[LabelTaskID])
	assert.True(t, strings.HasPrefix(spec.Name, "task-exec-"))

	assert.Equal(t, []string{res.UnitName}, env.deleted)
	assert.Equal(t, 1, env.logCalls)
}

func TestRun_FailedPhase(t *testing.T) {
	env := &fakeEnvironment{
		phases: []Phase{PhaseFailed},
		logs:   "sh: boom: not found",
	}
	res := NewOrchestrator(env, testConfig()).Run(context.Background(), uuid.New(), "echo boom")

	assert.False(t, res.Success)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "sh: boom: not found", res.Output)
	assert.Len(t, env.deleted, 1)
}

func TestRun_SuccessDecidedBySecondRead(t *testing.T) {
	env := &fakeEnvironment{
		phases:    []Phase{PhaseSucceeded},
		finalRead: &UnitStatus{Phase: PhaseFailed},
		logs:      "partial",
	}
	res := NewOrchestrator(env, testConfig()).Run(context.Background(), uuid.New(), "echo partial")

	assert.False(t, res.Success)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "partial", res.Output)
}

func TestRun_EmptyLogs(t *testing.T) {
	env := &fakeEnvironment{phases: []Phase{PhaseSucceeded}, logs: "  \n"}
	res := NewOrchestrator(env, testConfig()).Run(context.Background(), uuid.New(), "echo")

	assert.True(t, res.Success)
	assert.Equal(t, NoLogsOutput, res.Output)
}

func TestRun_Timeout(t *testing.T) {
	env := &fakeEnvironment{phases: []Phase{PhaseRunning}, logs: "still going"}
	cfg := testConfig()
	cfg.Timeout = 30 * time.Millisecond

	res := NewOrchestrator(env, cfg).Run(context.Background(), uuid.New(), "echo slow")

	assert.False(t, res.Success)
	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, "Pod execution timed out after 30ms.", res.Output)
	assert.Equal(t, 0, env.logCalls)
	assert.Len(t, env.deleted, 1)
	assert.Greater(t, env.reads, 1)
}

func TestRun_TimeoutCapturesLogsWhenEnabled(t *testing.T) {
	env := &fakeEnvironment{phases: []Phase{PhaseRunning}, logs: "still going\n"}
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.CaptureLogsOnTimeout = true

	res := NewOrchestrator(env, cfg).Run(context.Background(), uuid.New(), "echo slow")

	assert.Equal(t, OutcomeTimedOut, res.Outcome)
	assert.Equal(t, "Pod execution timed out after 20ms.\nstill going", res.Output)
	assert.Len(t, env.deleted, 1)
}

func TestRun_TimeoutIgnoresLogFailure(t *testing.T) {
	env := &fakeEnvironment{phases: []Phase{PhasePending}, logsErr: errors.New("container not started")}
	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.CaptureLogsOnTimeout = true

	res := NewOrchestrator(env, cfg).Run(context.Background(), uuid.New(), "echo slow")

	assert.Equal(t, "Pod execution timed out after 20ms.", res.Output)
}

func TestRun_CreateError(t *testing.T) {
	env := &fakeEnvironment{createErr: errors.New("quota exceeded")}
	res := NewOrchestrator(env, testConfig()).Run(context.Background(), uuid.New(), "echo hi")

	assert.False(t, res.Success)
	assert.Equal(t, OutcomeErrored, res.Outcome)
	assert.Equal(t, "Execution environment error: quota exceeded", res.Output)
	assert.Equal(t, 0, env.reads)
	assert.Equal(t, 0, env.logCalls)
	assert.Len(t, env.deleted, 1)
}

func TestRun_ReadError(t *testing.T) {
	env := &fakeEnvironment{readErr: errors.New("connection refused")}
	res := NewOrchestrator(env, testConfig()).Run(context.Background(), uuid.New(), "echo hi")

	assert.Equal(t, OutcomeErrored, res.Outcome)
	assert.Equal(t, "Execution environment error: connection refused", res.Output)
	assert.Equal(t, 0, env.logCalls)
	assert.Len(t, env.deleted, 1)
}

func TestRun_LogError(t *testing.T) {
	env := &fakeEnvironment{phases: []Phase{PhaseSucceeded}, logsErr: errors.New("stream closed")}
	res := NewOrchestrator(env, testConfig()).Run(context.Background(), uuid.New(), "echo hi")

	assert.False(t, res.Success)
	assert.Equal(t, OutcomeErrored, res.Outcome)
	assert.Equal(t, "Error fetching logs: stream closed", res.Output)
	assert.Len(t, env.deleted, 1)
}

func TestRun_Canceled(t *testing.T) {
	env := &fakeEnvironment{phases: []Phase{PhaseRunning}}
	cfg := testConfig()
	cfg.Timeout = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res := NewOrchestrator(env, cfg).Run(ctx, uuid.New(), "echo hi")

	assert.Equal(t, OutcomeErrored, res.Outcome)
	assert.Equal(t, "Execution canceled: context canceled", res.Output)
	require.Len(t, env.deleted, 1)
	assert.NoError(t, env.deleteCtxErr[0], "cleanup must not inherit the cancellation")
}

func TestRun_DeleteFailureDoesNotChangeResult(t *testing.T) {
	env := &fakeEnvironment{phases: []Phase{PhaseSucceeded}, logs: "ok", deleteErr: errors.New("forbidden")}
	res := NewOrchestrator(env, testConfig()).Run(context.Background(), uuid.New(), "echo ok")

	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Output)

	env = &fakeEnvironment{phases: []Phase{PhaseSucceeded}, logs: "ok", deleteErr: ErrUnitNotFound}
	res = NewOrchestrator(env, testConfig()).Run(context.Background(), uuid.New(), "echo ok")
	assert.True(t, res.Success)
}

func TestNewOrchestrator_Defaults(t *testing.T) {
	o := NewOrchestrator(&fakeEnvironment{}, Config{})
	assert.Equal(t, "default", o.cfg.Namespace)
	assert.Equal(t, "busybox:latest", o.cfg.Image)
	assert.Equal(t, 5*time.Second, o.cfg.PollInterval)
	assert.Equal(t, 2*time.Minute, o.cfg.Timeout)
	assert.Equal(t, 30*time.Second, o.cfg.CleanupTimeout)
	assert.Zero(t, o.cfg.SettleDelay)
}

func TestRun_ConcurrentRunsUseDistinctUnits(t *testing.T) {
	env := &fakeEnvironment{phases: []Phase{PhaseSucceeded}, logs: "x"}
	o := NewOrchestrator(env, testConfig())
	taskID := uuid.New()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Run(context.Background(), taskID, "echo x")
		}()
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, spec := range env.created {
		assert.False(t, seen[spec.Name], spec.Name)
		seen[spec.Name] = true
	}
	assert.Len(t, seen, 20)
	assert.Len(t, env.deleted, 20)
}

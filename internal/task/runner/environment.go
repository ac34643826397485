package runner

import (
	"context"
	"errors"
	"time"
)

// Phase is the lifecycle phase reported by the execution environment.
type Phase string

const (
	PhasePending   Phase = "Pending"
	PhaseRunning   Phase = "Running"
	PhaseSucceeded Phase = "Succeeded"
	PhaseFailed    Phase = "Failed"
	PhaseUnknown   Phase = "Unknown"
)

// Terminal reports whether the unit has stopped running for good.
func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// ErrUnitNotFound is returned by an EnvironmentClient when the named unit does not exist.
var ErrUnitNotFound = errors.New("execution unit not found")

// IsNotFound reports whether err means the unit is already gone.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnitNotFound)
}

// UnitSpec describes a single-use execution unit.
type UnitSpec struct {
	Name      string
	Namespace string
	Image     string
	Command   string
	Labels    map[string]string
}

// UnitStatus is a point-in-time view of an execution unit.
type UnitStatus struct {
	Name      string
	Namespace string
	Phase     Phase
	Reason    string
}

// EnvironmentClient is the narrow view of the cluster the orchestrator needs.
type EnvironmentClient interface {
	// Create submits the unit. It does not wait for it to start.
	Create(ctx context.Context, spec UnitSpec) (*UnitStatus, error)

	// Read returns the current phase of the unit.
	Read(ctx context.Context, name, namespace string) (*UnitStatus, error)

	// FetchLogs returns the combined output of the unit's container.
	FetchLogs(ctx context.Context, name, namespace string, waitForContainer bool) (string, error)

	// Delete removes the unit. A zero grace period deletes immediately.
	Delete(ctx context.Context, name, namespace string, gracePeriod time.Duration) error
}

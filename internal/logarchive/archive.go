// Package logarchive keeps the full output of every execution in object storage.
package logarchive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/OpenNSW/taskrunner/internal/logarchive/drivers"
)

const contentType = "text/plain; charset=utf-8"

var (
	// ErrDisabled is returned by Open when no storage is configured.
	ErrDisabled = errors.New("log archive is disabled")

	// ErrNotArchived is returned by Open when the execution has no stored output.
	ErrNotArchived = errors.New("execution output not archived")
)

// Archive stores execution output under executions/<id>.log.
// A nil driver disables it: Store becomes a no-op and Open reports ErrDisabled.
type Archive struct {
	Driver StorageDriver
}

func New(driver StorageDriver) *Archive {
	return &Archive{Driver: driver}
}

func (a *Archive) Enabled() bool {
	return a != nil && a.Driver != nil
}

// Key returns the object key for an execution's output.
func Key(executionID uuid.UUID) string {
	return "executions/" + executionID.String() + ".log"
}

// Store saves output under Key(executionID). It is a no-op when disabled.
// An object that was written is never removed by Store.
func (a *Archive) Store(ctx context.Context, executionID uuid.UUID, output string) error {
	if !a.Enabled() {
		return nil
	}
	key := Key(executionID)

	if err := a.Driver.Save(ctx, key, strings.NewReader(output), contentType); err != nil {
		return fmt.Errorf("storage driver failed: %w", err)
	}

	slog.DebugContext(ctx, "execution output archived", "executionID", executionID, "key", key, "size", len(output))
	return nil
}

// Open streams the archived output back. The caller closes the reader.
func (a *Archive) Open(ctx context.Context, executionID uuid.UUID) (io.ReadCloser, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	r, _, err := a.Driver.Get(ctx, Key(executionID))
	if err != nil {
		if errors.Is(err, drivers.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotArchived, executionID)
		}
		return nil, fmt.Errorf("failed to open archived output: %w", err)
	}
	return r, nil
}

// Package dispatch maps capabilities to executors and invokes them under a
// crash barrier: an executor may fail, but it may never take the workflow
// down with it.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/karavel-ai/compass/pkg/models"
)

// ErrUnknownCapability indicates a dispatch for a capability with no
// registered executor. Given the closed enum this is a programming error,
// and it is the one failure the dispatcher propagates instead of absorbing.
var ErrUnknownCapability = errors.New("no executor registered for capability")

// DefaultExecutorTimeout bounds a single executor invocation. A timeout is
// treated as an ordinary execution failure, not left hanging.
const DefaultExecutorTimeout = 60 * time.Second

// Task is the bounded parameter set handed to every executor.
type Task struct {
	// UserQuery is the original request text.
	UserQuery string
	// OrganizationID scopes the work to a tenant.
	OrganizationID string
	// CorrelationID ties executor-side logs back to the workflow.
	CorrelationID string
	// ExtractedParams carries the classifier's parameter extraction.
	ExtractedParams map[string]any
}

// Executor is the uniform contract every capability implements. Executors
// perform their own authorization, rate limiting, and budget checks, and
// report expected failures through ExecutionResult rather than an error.
// A returned error is treated the same as Success=false.
type Executor interface {
	Execute(ctx context.Context, task Task) (models.ExecutionResult, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, task Task) (models.ExecutionResult, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, task Task) (models.ExecutionResult, error) {
	return f(ctx, task)
}

// Dispatcher holds the static dispatch table. Executors are registered once
// at startup; the table is read-only afterward, so dispatch needs no lock.
type Dispatcher struct {
	executors map[models.Capability]Executor
	timeout   time.Duration
}

// NewDispatcher creates an empty dispatcher with the default timeout.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		executors: make(map[models.Capability]Executor),
		timeout:   DefaultExecutorTimeout,
	}
}

// SetTimeout overrides the per-invocation executor timeout.
func (d *Dispatcher) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.timeout = timeout
	}
}

// Register binds an executor to a capability. Registering an unknown
// capability or the same capability twice is a configuration error.
func (d *Dispatcher) Register(capability models.Capability, executor Executor) error {
	if !capability.Valid() {
		return fmt.Errorf("register %q: not a known capability", capability)
	}
	if _, exists := d.executors[capability]; exists {
		return fmt.Errorf("register %q: executor already registered", capability)
	}
	d.executors[capability] = executor
	return nil
}

// Registered reports whether a capability has an executor.
func (d *Dispatcher) Registered(capability models.Capability) bool {
	_, exists := d.executors[capability]
	return exists
}

// Dispatch invokes the executor for the capability. Panics and errors from
// the executor are converted into a failed ExecutionResult; the only error
// returned is ErrUnknownCapability for an unregistered capability.
func (d *Dispatcher) Dispatch(ctx context.Context, capability models.Capability, task Task) (models.ExecutionResult, error) {
	executor, exists := d.executors[capability]
	if !exists {
		return models.ExecutionResult{}, fmt.Errorf("%w: %s", ErrUnknownCapability, capability)
	}

	execCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result := d.invoke(execCtx, executor, task)
	if execCtx.Err() != nil && !result.Success {
		result.Output = fmt.Sprintf("Error: execution timed out: %v", execCtx.Err())
	}
	return result, nil
}

// invoke runs one executor call behind a recover barrier.
func (d *Dispatcher) invoke(ctx context.Context, executor Executor, task Task) (result models.ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = models.ExecutionResult{
				Success: false,
				Output:  fmt.Sprintf("Error: %v", r),
			}
		}
	}()

	res, err := executor.Execute(ctx, task)
	if err != nil {
		return models.ExecutionResult{
			Success:   false,
			Output:    fmt.Sprintf("Error: %v", err),
			AgentUsed: res.AgentUsed,
		}
	}
	return res
}

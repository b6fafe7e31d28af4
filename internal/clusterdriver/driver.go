// Package clusterdriver defines the Cluster Driver contract of spec.md
// §4.3: creating batch jobs and reporting terminal pod outcomes.
package clusterdriver

import (
	"context"
	"fmt"

	"github.com/flowmium-io/flowmium/internal/types"
)

// Outcome is the terminal classification the driver reports for a
// dispatched task pod. Ambiguous or unrecognised phases MUST map to
// Unknown, never to a terminal classification (spec.md §4.3).
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnknown   Outcome = "unknown"
)

// ResolvedEnv is a task's env list after fromSecret bindings have been
// resolved against the Secret Registry.
type ResolvedEnv struct {
	Name  string
	Value string
}

// Driver is implemented by k8sdriver (real, batch/v1 Jobs) and fakedriver
// (in-memory, for scheduler tests).
type Driver interface {
	// Submit creates a batch job for (flowID, taskIndex) whose pod runs the
	// Init Side-car ahead of the user's container. Re-submission of an
	// identical job is a no-op (idempotent dispatch, spec.md §4.2).
	Submit(ctx context.Context, flowID uint64, taskIndex int, task types.TaskDefinition, env []ResolvedEnv) error
	// Outcome reports the terminal classification of (flowID, taskIndex),
	// or Unknown while still in flight or on an ambiguous/transient error.
	Outcome(ctx context.Context, flowID uint64, taskIndex int) (Outcome, error)
}

// JobName is the deterministic name the spec requires: identical across
// crashes/retries for the same (flow, task-index) pair, making dispatch
// idempotent (spec.md §4.2 "Idempotence and crash recovery").
func JobName(flowID uint64, taskIndex int) string {
	return fmt.Sprintf("flow-%d-task-%d", flowID, taskIndex)
}

// Package fakedriver is an in-memory Cluster Driver used by scheduler
// tests: Submit records a dispatched job keyed by the same deterministic
// name the real driver uses, and Outcome is set by the test via SetOutcome
// to simulate cluster-observed pod phases.
package fakedriver

import (
	"context"
	"sync"

	"github.com/flowmium-io/flowmium/internal/clusterdriver"
	"github.com/flowmium-io/flowmium/internal/types"
)

type submission struct {
	task types.TaskDefinition
	env  []clusterdriver.ResolvedEnv
}

type Driver struct {
	mu          sync.Mutex
	submissions map[string]submission
	outcomes    map[string]clusterdriver.Outcome
}

func New() *Driver {
	return &Driver{
		submissions: make(map[string]submission),
		outcomes:    make(map[string]clusterdriver.Outcome),
	}
}

func (d *Driver) Submit(_ context.Context, flowID uint64, taskIndex int, task types.TaskDefinition, env []clusterdriver.ResolvedEnv) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := clusterdriver.JobName(flowID, taskIndex)
	if _, exists := d.submissions[name]; exists {
		return nil // re-submission is a no-op
	}
	d.submissions[name] = submission{task: task, env: env}
	if _, hasOutcome := d.outcomes[name]; !hasOutcome {
		d.outcomes[name] = clusterdriver.OutcomeUnknown
	}
	return nil
}

func (d *Driver) Outcome(_ context.Context, flowID uint64, taskIndex int) (clusterdriver.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name := clusterdriver.JobName(flowID, taskIndex)
	if o, ok := d.outcomes[name]; ok {
		return o, nil
	}
	return clusterdriver.OutcomeUnknown, nil
}

// SetOutcome simulates the cluster reaching a terminal (or non-terminal)
// phase for (flowID, taskIndex).
func (d *Driver) SetOutcome(flowID uint64, taskIndex int, outcome clusterdriver.Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes[clusterdriver.JobName(flowID, taskIndex)] = outcome
}

// SubmitCount returns how many distinct jobs have been submitted — tests
// use this to assert idempotent re-dispatch did not create duplicates.
func (d *Driver) SubmitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.submissions)
}

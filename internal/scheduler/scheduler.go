// Package scheduler is the reconciliation loop of spec.md §4.2, grounded
// on the teacher's ticker + claim-and-process worker loop
// (internal/jobs/worker.go): a time.Ticker fires Tick(ctx), which loads
// every active flow from the State Store and applies the advance rule to
// each independently.
package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/flowmium-io/flowmium/internal/clusterdriver"
	"github.com/flowmium-io/flowmium/internal/events"
	"github.com/flowmium-io/flowmium/internal/platform/leaselock"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/repos"
	"github.com/flowmium-io/flowmium/internal/secrets"
	"github.com/flowmium-io/flowmium/internal/types"
)

type Scheduler struct {
	flows   repos.FlowRepo
	driver  clusterdriver.Driver
	bus     *events.Bus
	secrets *secrets.Registry
	lease   *leaselock.Lock
	log     *logger.Logger

	tickInterval time.Duration
}

func New(flows repos.FlowRepo, driver clusterdriver.Driver, bus *events.Bus, sec *secrets.Registry, lease *leaselock.Lock, tickInterval time.Duration, log *logger.Logger) *Scheduler {
	return &Scheduler{
		flows:        flows,
		driver:       driver,
		bus:          bus,
		secrets:      sec,
		lease:        lease,
		tickInterval: tickInterval,
		log:          log.With("component", "Scheduler"),
	}
}

// Run ticks periodically until ctx is cancelled. Exactly one loop instance
// should be active (spec.md §5); the lease lock is defense-in-depth for
// that assumption.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	defer s.lease.Release(context.Background())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.lease.Acquire(ctx) {
				continue
			}
			if err := s.Tick(ctx); err != nil {
				// Errors inside the reconciliation loop are logged and the
				// tick abandoned; the loop is self-healing next tick
				// (spec.md §7 propagation policy).
				s.log.Error("tick failed", "error", err)
			}
		}
	}
}

// Tick loads every pending/running flow and advances each independently.
// Flow-level independence during a tick is expressed with errgroup: one
// goroutine per active flow, none sharing locks (spec.md §5).
func (s *Scheduler) Tick(ctx context.Context) error {
	active, err := s.flows.ListActive(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, flow := range active {
		flow := flow
		g.Go(func() error {
			if err := s.advance(gctx, flow); err != nil {
				s.log.Error("advance failed", "flow_id", flow.ID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) advance(ctx context.Context, flow *types.Flow) error {
	var plan types.Plan
	if err := json.Unmarshal(flow.Plan, &plan); err != nil {
		return err
	}
	var taskDefs []types.TaskDefinition
	if err := json.Unmarshal(flow.TaskDefinitions, &taskDefs); err != nil {
		return err
	}

	switch types.FlowStatus(flow.Status) {
	case types.FlowStatusPending:
		return s.dispatchStage(ctx, flow, taskDefs, plan, 0)
	case types.FlowStatusRunning:
		return s.advanceRunning(ctx, flow, taskDefs, plan)
	default:
		return nil
	}
}

func (s *Scheduler) advanceRunning(ctx context.Context, flow *types.Flow, taskDefs []types.TaskDefinition, plan types.Plan) error {
	running := decodeIntSet(flow.RunningTasks)
	finished := decodeIntSet(flow.FinishedTasks)
	failed := decodeIntSet(flow.FailedTasks)

	var stillRunning []int
	for _, idx := range running {
		outcome, err := s.driver.Outcome(ctx, flow.ID, idx)
		if err != nil {
			// Observation errors are transient and never fatal to a flow
			// (spec.md §7); treat as still running this tick.
			stillRunning = append(stillRunning, idx)
			continue
		}
		switch outcome {
		case clusterdriver.OutcomeSucceeded:
			finished = append(finished, idx)
		case clusterdriver.OutcomeFailed:
			failed = append(failed, idx)
		default:
			stillRunning = append(stillRunning, idx)
		}
	}

	switch {
	case len(failed) > 0 && len(stillRunning) == 0:
		return s.persist(ctx, flow, flow.CurrentStage, stillRunning, finished, failed, types.FlowStatusFailed)
	case len(stillRunning) == 0 && flow.CurrentStage == len(plan.Stages)-1:
		return s.persist(ctx, flow, flow.CurrentStage, stillRunning, finished, failed, types.FlowStatusSuccess)
	case len(stillRunning) == 0 && len(failed) == 0 && flow.CurrentStage < len(plan.Stages)-1:
		nextStage := flow.CurrentStage + 1
		nextIndices := plan.Stages[nextStage]
		dispatchFailed := s.dispatchTasks(ctx, flow.ID, taskDefs, nextIndices)
		nextRunning, newlyFailed := splitDispatchOutcome(nextIndices, dispatchFailed)
		failed = append(failed, newlyFailed...)
		return s.persist(ctx, flow, nextStage, nextRunning, finished, failed, statusAfterDispatch(nextRunning, failed))
	default:
		return s.persist(ctx, flow, flow.CurrentStage, stillRunning, finished, failed, types.FlowStatusRunning)
	}
}

func (s *Scheduler) dispatchStage(ctx context.Context, flow *types.Flow, taskDefs []types.TaskDefinition, plan types.Plan, stage int) error {
	indices := plan.Stages[stage]
	dispatchFailed := s.dispatchTasks(ctx, flow.ID, taskDefs, indices)
	running, failed := splitDispatchOutcome(indices, dispatchFailed)
	return s.persist(ctx, flow, stage, running, nil, failed, statusAfterDispatch(running, failed))
}

// dispatchTasks submits every task index in a stage without ordering
// constraints (spec.md §4.2 "Stage-internal parallelism"). It returns the
// indices that failed to dispatch — an unresolved secret or a cluster
// rejection is a dispatch error and fails the task immediately (spec.md
// §4.3, §7), so callers must record these in failed_tasks rather than
// running_tasks: a task with no pod never produces an Outcome, so letting
// it into running_tasks would hang the flow forever.
func (s *Scheduler) dispatchTasks(ctx context.Context, flowID uint64, taskDefs []types.TaskDefinition, indices []int) []int {
	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	var failed []int
	for _, idx := range indices {
		idx := idx
		g.Go(func() error {
			task := taskDefs[idx]
			env, err := s.resolveEnv(gctx, task)
			if err != nil {
				s.log.Error("dispatch failed to resolve env", "flow_id", flowID, "task_index", idx, "error", err)
				mu.Lock()
				failed = append(failed, idx)
				mu.Unlock()
				return nil
			}
			if err := s.driver.Submit(gctx, flowID, idx, task, env); err != nil {
				s.log.Error("dispatch rejected by cluster", "flow_id", flowID, "task_index", idx, "error", err)
				mu.Lock()
				failed = append(failed, idx)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return failed
}

// splitDispatchOutcome partitions a stage's task indices into those that
// dispatched successfully and those dispatchTasks reported as failed.
func splitDispatchOutcome(indices, dispatchFailed []int) (running, failed []int) {
	failedSet := make(map[int]struct{}, len(dispatchFailed))
	for _, idx := range dispatchFailed {
		failedSet[idx] = struct{}{}
	}
	for _, idx := range indices {
		if _, ok := failedSet[idx]; ok {
			failed = append(failed, idx)
		} else {
			running = append(running, idx)
		}
	}
	return running, failed
}

// statusAfterDispatch mirrors advanceRunning's terminal rule for the
// moment right after dispatch: a stage with nothing running and at least
// one dispatch failure fails the flow immediately, since there is nothing
// left in flight to wait on.
func statusAfterDispatch(running, failed []int) types.FlowStatus {
	if len(running) == 0 && len(failed) > 0 {
		return types.FlowStatusFailed
	}
	return types.FlowStatusRunning
}

func (s *Scheduler) resolveEnv(ctx context.Context, task types.TaskDefinition) ([]clusterdriver.ResolvedEnv, error) {
	out := make([]clusterdriver.ResolvedEnv, 0, len(task.Env))
	for _, e := range task.Env {
		if e.FromSecret == "" {
			out = append(out, clusterdriver.ResolvedEnv{Name: e.Name, Value: e.Value})
			continue
		}
		val, err := s.secrets.Resolve(ctx, e.FromSecret)
		if err != nil {
			return nil, err
		}
		out = append(out, clusterdriver.ResolvedEnv{Name: e.Name, Value: val})
	}
	return out, nil
}

func (s *Scheduler) persist(ctx context.Context, flow *types.Flow, stage int, running, finished, failed []int, status types.FlowStatus) error {
	runningJSON := encodeIntSet(running)
	finishedJSON := encodeIntSet(finished)
	failedJSON := encodeIntSet(failed)

	unchanged := flow.CurrentStage == stage &&
		flow.Status == string(status) &&
		bytes.Equal(flow.RunningTasks, runningJSON) &&
		bytes.Equal(flow.FinishedTasks, finishedJSON) &&
		bytes.Equal(flow.FailedTasks, failedJSON)
	if unchanged {
		return nil
	}

	updates := map[string]interface{}{
		"current_stage":  stage,
		"running_tasks":  runningJSON,
		"finished_tasks": finishedJSON,
		"failed_tasks":   failedJSON,
		"status":         string(status),
	}
	if err := s.flows.Update(ctx, flow.ID, updates); err != nil {
		return err
	}
	// The Event Bus delta is emitted only after the transition is
	// committed (spec.md §4.4 durability requirement).
	s.bus.Publish(events.FlowEvent{
		FlowID:        flow.ID,
		Status:        string(status),
		CurrentStage:  stage,
		FinishedCount: len(finished),
		FailedCount:   len(failed),
		RunningCount:  len(running),
	})
	return nil
}

func decodeIntSet(raw []byte) []int {
	if len(raw) == 0 {
		return nil
	}
	var out []int
	_ = json.Unmarshal(raw, &out)
	return out
}

func encodeIntSet(v []int) datatypes.JSON {
	if v == nil {
		v = []int{}
	}
	b, _ := json.Marshal(v)
	return datatypes.JSON(b)
}

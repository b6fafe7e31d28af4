// Package planner validates a submitted workflow and lays it out into a
// stage-ordered Plan via iterative Kahn-style layering (spec.md §4.1).
// It performs no I/O.
package planner

import (
	"fmt"

	"github.com/flowmium-io/flowmium/internal/types"
)

type Kind string

const (
	KindDuplicateTaskName Kind = "duplicate_task_name"
	KindDanglingDepends   Kind = "dangling_depends"
	KindDanglingInput     Kind = "dangling_input"
	KindCrossStageInput   Kind = "cross_stage_input"
	KindDuplicateOutput   Kind = "duplicate_output"
	KindCycle             Kind = "cycle"
)

// ValidationError names the first-detected violation in a submitted
// workflow. Callers (the HTTP façade) map Kind to a response status.
type ValidationError struct {
	Kind   Kind
	Task   string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Task != "" {
		return fmt.Sprintf("%s: %s (task %q)", e.Kind, e.Detail, e.Task)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func newErr(kind Kind, task, detail string) *ValidationError {
	return &ValidationError{Kind: kind, Task: task, Detail: detail}
}

// Plan validates tasks against spec.md §3's invariants and lays them out
// into stages. Tasks are referenced by their position in the input slice;
// the returned Plan's stage entries are indices into that same slice.
func Plan(tasks []types.TaskDefinition) (types.Plan, error) {
	nameToIdx := make(map[string]int, len(tasks))
	for i, t := range tasks {
		if _, exists := nameToIdx[t.Name]; exists {
			return types.Plan{}, newErr(KindDuplicateTaskName, t.Name, "task name appears more than once in the flow")
		}
		nameToIdx[t.Name] = i
	}

	// dangling depends
	for _, t := range tasks {
		for _, dep := range t.Depends {
			if _, ok := nameToIdx[dep]; !ok {
				return types.Plan{}, newErr(KindDanglingDepends, t.Name, fmt.Sprintf("depends on unknown task %q", dep))
			}
		}
	}

	// output-name -> producing task index, rejecting duplicates
	outputOwner := make(map[string]int, len(tasks))
	for i, t := range tasks {
		for _, out := range t.Outputs {
			if owner, exists := outputOwner[out.Name]; exists {
				return types.Plan{}, newErr(KindDuplicateOutput, tasks[owner].Name, fmt.Sprintf("output %q produced by more than one task", out.Name))
			}
			outputOwner[out.Name] = i
		}
	}

	// dangling / cross-stage inputs: the producer of inputs.from must exist
	// and must be in the consumer's transitive depends closure.
	closure := make([]map[int]struct{}, len(tasks))
	for i := range tasks {
		closure[i] = transitiveDepends(i, tasks, nameToIdx)
	}
	for i, t := range tasks {
		for _, in := range t.Inputs {
			producer, ok := outputOwner[in.From]
			if !ok {
				return types.Plan{}, newErr(KindDanglingInput, t.Name, fmt.Sprintf("input references unknown output %q", in.From))
			}
			if producer == i {
				continue
			}
			if _, inClosure := closure[i][producer]; !inClosure {
				return types.Plan{}, newErr(KindCrossStageInput, t.Name, fmt.Sprintf("input %q is produced by %q, which is not a (transitive) dependency", in.From, tasks[producer].Name))
			}
		}
	}

	// iterative Kahn-style layering
	placed := make(map[int]struct{}, len(tasks))
	var stages [][]int
	for len(placed) < len(tasks) {
		var next []int
		for i, t := range tasks {
			if _, already := placed[i]; already {
				continue
			}
			if allPlaced(t.Depends, nameToIdx, placed) {
				next = append(next, i)
			}
		}
		if len(next) == 0 {
			return types.Plan{}, newErr(KindCycle, "", "dependency graph contains a cycle")
		}
		for _, i := range next {
			placed[i] = struct{}{}
		}
		stages = append(stages, next)
	}

	return types.Plan{Stages: stages}, nil
}

func allPlaced(depends []string, nameToIdx map[string]int, placed map[int]struct{}) bool {
	for _, dep := range depends {
		if _, ok := placed[nameToIdx[dep]]; !ok {
			return false
		}
	}
	return true
}

func transitiveDepends(i int, tasks []types.TaskDefinition, nameToIdx map[string]int) map[int]struct{} {
	seen := map[int]struct{}{}
	var visit func(idx int)
	visit = func(idx int) {
		for _, dep := range tasks[idx].Depends {
			di, ok := nameToIdx[dep]
			if !ok {
				continue
			}
			if _, already := seen[di]; already {
				continue
			}
			seen[di] = struct{}{}
			visit(di)
		}
	}
	visit(i)
	return seen
}

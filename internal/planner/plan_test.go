package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmium-io/flowmium/internal/types"
)

func taskWithIO(name string, depends []string, outputs []string, inputs map[string]string) types.TaskDefinition {
	t := types.TaskDefinition{Name: name, Image: "busybox", Cmd: []string{"true"}, Depends: depends}
	for _, o := range outputs {
		t.Outputs = append(t.Outputs, types.OutputRef{Name: o, Path: "/out/" + o})
	}
	for from, path := range inputs {
		t.Inputs = append(t.Inputs, types.InputRef{From: from, Path: path})
	}
	return t
}

func TestPlanLinearFlow(t *testing.T) {
	tasks := []types.TaskDefinition{
		taskWithIO("A", nil, []string{"foo"}, nil),
		taskWithIO("B", []string{"A"}, nil, map[string]string{"foo": "/in/foo"}),
	}
	plan, err := Plan(tasks)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0}, {1}}, plan.Stages)
}

func TestPlanFanOutFanIn(t *testing.T) {
	tasks := []types.TaskDefinition{
		taskWithIO("A", nil, nil, nil),
		taskWithIO("B", []string{"A"}, nil, nil),
		taskWithIO("C", []string{"A"}, nil, nil),
		taskWithIO("D", []string{"B", "C"}, nil, nil),
	}
	plan, err := Plan(tasks)
	require.NoError(t, err)
	require.Len(t, plan.Stages, 3)
	assert.Equal(t, []int{0}, plan.Stages[0])
	assert.ElementsMatch(t, []int{1, 2}, plan.Stages[1])
	assert.Equal(t, []int{3}, plan.Stages[2])
}

func TestPlanDuplicateTaskName(t *testing.T) {
	tasks := []types.TaskDefinition{
		taskWithIO("A", nil, nil, nil),
		taskWithIO("A", nil, nil, nil),
	}
	_, err := Plan(tasks)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindDuplicateTaskName, verr.Kind)
}

func TestPlanDanglingDepends(t *testing.T) {
	tasks := []types.TaskDefinition{
		taskWithIO("A", []string{"missing"}, nil, nil),
	}
	_, err := Plan(tasks)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindDanglingDepends, verr.Kind)
}

func TestPlanDanglingInput(t *testing.T) {
	tasks := []types.TaskDefinition{
		taskWithIO("A", nil, nil, map[string]string{"missing": "/in"}),
	}
	_, err := Plan(tasks)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindDanglingInput, verr.Kind)
}

func TestPlanCrossStageInput(t *testing.T) {
	// C consumes an output of B but does not depend on B.
	tasks := []types.TaskDefinition{
		taskWithIO("A", nil, nil, nil),
		taskWithIO("B", nil, []string{"bar"}, nil),
		taskWithIO("C", []string{"A"}, nil, map[string]string{"bar": "/in/bar"}),
	}
	_, err := Plan(tasks)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindCrossStageInput, verr.Kind)
}

func TestPlanDuplicateOutput(t *testing.T) {
	tasks := []types.TaskDefinition{
		taskWithIO("A", nil, []string{"foo"}, nil),
		taskWithIO("B", nil, []string{"foo"}, nil),
	}
	_, err := Plan(tasks)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindDuplicateOutput, verr.Kind)
}

func TestPlanCycle(t *testing.T) {
	tasks := []types.TaskDefinition{
		taskWithIO("A", []string{"B"}, nil, nil),
		taskWithIO("B", []string{"A"}, nil, nil),
	}
	_, err := Plan(tasks)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, KindCycle, verr.Kind)
}

func TestPlanIsDeterministicAcrossReplans(t *testing.T) {
	tasks := []types.TaskDefinition{
		taskWithIO("A", nil, nil, nil),
		taskWithIO("B", []string{"A"}, nil, nil),
		taskWithIO("C", []string{"A"}, nil, nil),
	}
	p1, err := Plan(tasks)
	require.NoError(t, err)
	p2, err := Plan(tasks)
	require.NoError(t, err)
	require.Len(t, p1.Stages, len(p2.Stages))
	for i := range p1.Stages {
		assert.ElementsMatch(t, p1.Stages[i], p2.Stages[i])
	}
}

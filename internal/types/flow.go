package types

import (
	"time"

	"gorm.io/datatypes"
)

// FlowStatus is the four-value status enum from spec.md §3.
type FlowStatus string

const (
	FlowStatusPending FlowStatus = "pending"
	FlowStatusRunning FlowStatus = "running"
	FlowStatusSuccess FlowStatus = "success"
	FlowStatusFailed  FlowStatus = "failed"
)

func (s FlowStatus) Valid() bool {
	switch s {
	case FlowStatusPending, FlowStatusRunning, FlowStatusSuccess, FlowStatusFailed:
		return true
	default:
		return false
	}
}

func (s FlowStatus) Terminal() bool {
	return s == FlowStatusSuccess || s == FlowStatusFailed
}

// EnvVar is one entry of a task's environment list. Exactly one of Value
// or FromSecret is set; FromSecret is resolved via the Secret Registry at
// dispatch time (spec.md §3, §4.3).
type EnvVar struct {
	Name       string `json:"name"`
	Value      string `json:"value,omitempty"`
	FromSecret string `json:"fromSecret,omitempty"`
}

// InputRef pairs an upstream output name with the local filesystem path the
// Init Side-car stages it to before the main container starts.
type InputRef struct {
	From string `json:"from"`
	Path string `json:"path"`
}

// OutputRef pairs an output name (unique within the flow) with the local
// filesystem path the main container writes it to.
type OutputRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// TaskDefinition is one resolved task within a flow (spec.md §3 "Workflow").
type TaskDefinition struct {
	Name    string      `json:"name"`
	Image   string      `json:"image"`
	Depends []string    `json:"depends"`
	Cmd     []string    `json:"cmd"`
	Env     []EnvVar    `json:"env,omitempty"`
	Inputs  []InputRef  `json:"inputs,omitempty"`
	Outputs []OutputRef `json:"outputs,omitempty"`
}

// Workflow is the submit-time input document (spec.md §6 "Submit format").
type Workflow struct {
	Name  string           `json:"name" yaml:"name"`
	Tasks []TaskDefinition `json:"tasks" yaml:"tasks"`
}

// Plan is a dense stage-ordered sequence of task indices (spec.md §3 "Plan").
type Plan struct {
	Stages [][]int `json:"stages"`
}

// Flow is the durable record of one submitted workflow (spec.md §3 "Flow record").
//
// Plan, TaskDefinitions, and the three task-index sets are persisted as
// datatypes.JSON blobs rather than normalized join tables: they are only
// ever written whole (Plan and TaskDefinitions once at submit, the
// task-index sets on each persisted tick) and never queried by
// sub-field, the same
// technique the teacher uses for CourseGenerationRun.Metadata.
type Flow struct {
	ID              uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	FlowName        string         `gorm:"column:flow_name;not null;index" json:"flow_name"`
	Plan            datatypes.JSON `gorm:"column:plan;type:jsonb;not null" json:"plan"`
	TaskDefinitions datatypes.JSON `gorm:"column:task_definitions;type:jsonb;not null" json:"task_definitions"`
	CurrentStage    int            `gorm:"column:current_stage;not null;default:0" json:"current_stage"`
	RunningTasks    datatypes.JSON `gorm:"column:running_tasks;type:jsonb;not null" json:"running_tasks"`
	FinishedTasks   datatypes.JSON `gorm:"column:finished_tasks;type:jsonb;not null" json:"finished_tasks"`
	FailedTasks     datatypes.JSON `gorm:"column:failed_tasks;type:jsonb;not null" json:"failed_tasks"`
	Status          string         `gorm:"column:status;not null;index" json:"status"` // pending|running|success|failed
	CreatedAt       time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Flow) TableName() string { return "flows" }

// FlowSummary is the trimmed view GET /api/v1/job (list) returns — no plan
// or task-definition blobs, the same trimmed-summary convention the teacher
// uses for list endpoints versus describe endpoints.
type FlowSummary struct {
	ID           uint64 `json:"id"`
	FlowName     string `json:"flow_name"`
	Status       string `json:"status"`
	CurrentStage int    `json:"current_stage"`
}

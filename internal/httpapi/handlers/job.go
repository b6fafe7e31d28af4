// Package handlers holds one gin handler per spec.md §6 endpoint. No
// business logic lives here (spec.md §4.9 "the façade holds no state"):
// each handler parses the request, calls its collaborator (Planner, State
// Store, Artifact Store, Secret Registry, Event Bus; Submit calls the
// Planner and then the State Store, every other handler exactly one), and
// shapes the response.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowmium-io/flowmium/internal/httpapi/response"
	"github.com/flowmium-io/flowmium/internal/planner"
	"github.com/flowmium-io/flowmium/internal/platform/apierr"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/repos"
	"github.com/flowmium-io/flowmium/internal/types"
)

type JobHandler struct {
	flows repos.FlowRepo
	log   *logger.Logger
}

func NewJobHandler(flows repos.FlowRepo, log *logger.Logger) *JobHandler {
	return &JobHandler{flows: flows, log: log.With("handler", "JobHandler")}
}

// Submit validates a workflow, lays it out into a Plan, and persists a new
// pending flow (spec.md §6 "POST /api/v1/job"). Re-submission semantics
// are unconstrained by spec.md §9's open questions; this façade always
// creates a new flow id.
func (h *JobHandler) Submit(c *gin.Context) {
	var wf types.Workflow
	if err := c.ShouldBindJSON(&wf); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	plan, err := planner.Plan(wf.Tasks)
	if err != nil {
		var verr *planner.ValidationError
		if errors.As(err, &verr) {
			err = apierr.New(validationStatus(verr.Kind), string(verr.Kind), verr)
		}
		response.RespondErr(c, http.StatusBadRequest, "invalid_workflow", err)
		return
	}

	planJSON, err := json.Marshal(plan)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "encode_plan", err)
		return
	}
	tasksJSON, err := json.Marshal(wf.Tasks)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "encode_tasks", err)
		return
	}

	flow := &types.Flow{
		FlowName:        wf.Name,
		Plan:            planJSON,
		TaskDefinitions: tasksJSON,
		RunningTasks:    []byte("[]"),
		FinishedTasks:   []byte("[]"),
		FailedTasks:     []byte("[]"),
		Status:          string(types.FlowStatusPending),
	}
	inserted, err := h.flows.Insert(c.Request.Context(), flow)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "insert_flow", err)
		return
	}

	response.RespondOK(c, gin.H{"id": inserted.ID})
}

// List returns the trimmed per-flow summary (spec.md §6 "GET /api/v1/job").
func (h *JobHandler) List(c *gin.Context) {
	summaries, err := h.flows.List(c.Request.Context())
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_flows", err)
		return
	}
	response.RespondOK(c, summaries)
}

// Describe returns the full flow record (spec.md §6 "GET /api/v1/job/{id}").
func (h *JobHandler) Describe(c *gin.Context) {
	id, err := parseFlowID(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	flow, err := h.flows.Get(c.Request.Context(), id)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_flow", err)
		return
	}
	if flow == nil {
		response.RespondErr(c, http.StatusNotFound, "not_found", errFlowNotFound(id))
		return
	}
	response.RespondOK(c, flow)
}

func parseFlowID(c *gin.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func errFlowNotFound(id uint64) error {
	return apierr.New(http.StatusNotFound, "not_found", &flowNotFoundError{id: id})
}

type flowNotFoundError struct{ id uint64 }

func (e *flowNotFoundError) Error() string {
	return "flow " + strconv.FormatUint(e.id, 10) + " not found"
}

// validationStatus maps a planner.Kind to an HTTP status: cycle and
// cross-stage input are a conflict with the submitted graph (409), the
// rest are plain bad input (400) — spec.md §7.
func validationStatus(kind planner.Kind) int {
	switch kind {
	case planner.KindCycle, planner.KindCrossStageInput:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

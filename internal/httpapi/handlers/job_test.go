package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/repos"
	"github.com/flowmium-io/flowmium/internal/types"
)

func testRouter(t *testing.T) (*gin.Engine, repos.FlowRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&types.Flow{}, &types.Secret{}))

	log, err := logger.New("development")
	require.NoError(t, err)

	flowRepo := repos.NewFlowRepo(db, log)
	job := NewJobHandler(flowRepo, log)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.POST("/job", job.Submit)
	v1.GET("/job", job.List)
	v1.GET("/job/:id", job.Describe)
	return r, flowRepo
}

func TestJobSubmitAcceptsLinearWorkflow(t *testing.T) {
	r, _ := testRouter(t)

	wf := types.Workflow{
		Name: "linear",
		Tasks: []types.TaskDefinition{
			{Name: "A", Image: "busybox", Cmd: []string{"true"}},
			{Name: "B", Image: "busybox", Cmd: []string{"true"}, Depends: []string{"A"}},
		},
	}
	body, err := json.Marshal(wf)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/job", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var out struct {
		ID uint64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.NotZero(t, out.ID)
}

func TestJobSubmitRejectsCycleWithConflict(t *testing.T) {
	r, _ := testRouter(t)

	wf := types.Workflow{
		Name: "cyclic",
		Tasks: []types.TaskDefinition{
			{Name: "A", Image: "busybox", Cmd: []string{"true"}, Depends: []string{"B"}},
			{Name: "B", Image: "busybox", Cmd: []string{"true"}, Depends: []string{"A"}},
		},
	}
	body, err := json.Marshal(wf)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/job", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestJobDescribeReturns404ForUnknownID(t *testing.T) {
	r, _ := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/job/999999", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestJobListReturnsSubmittedFlows(t *testing.T) {
	r, _ := testRouter(t)

	wf := types.Workflow{Name: "solo", Tasks: []types.TaskDefinition{{Name: "A", Image: "busybox", Cmd: []string{"true"}}}}
	body, err := json.Marshal(wf)
	require.NoError(t, err)

	submitReq := httptest.NewRequest(http.MethodPost, "/api/v1/job", bytes.NewReader(body))
	submitReq.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), submitReq)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/job", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var out []types.FlowSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	require.Equal(t, "solo", out[0].FlowName)
}

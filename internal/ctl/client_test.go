package ctl

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmium-io/flowmium/internal/types"
)

func TestSubmitReturnsAssignedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/job", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		var wf types.Workflow
		require.NoError(t, json.NewDecoder(r.Body).Decode(&wf))
		require.Equal(t, "demo", wf.Name)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]uint64{"id": 42})
	}))
	defer srv.Close()

	id, err := New(srv.URL).Submit(t.Context(), types.Workflow{Name: "demo"})
	require.NoError(t, err)
	require.Equal(t, uint64(42), id)
}

func TestListReturnsSummaries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]types.FlowSummary{{ID: 1, FlowName: "a", Status: "pending"}})
	}))
	defer srv.Close()

	flows, err := New(srv.URL).List(t.Context())
	require.NoError(t, err)
	require.Len(t, flows, 1)
	require.Equal(t, "a", flows[0].FlowName)
}

func TestDoSurfacesStructuredAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "cycle detected", "code": "cycle"},
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL).Submit(t.Context(), types.Workflow{Name: "cyclic"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "cycle detected")
}

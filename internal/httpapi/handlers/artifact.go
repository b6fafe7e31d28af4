package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flowmium-io/flowmium/internal/artifacts"
	"github.com/flowmium-io/flowmium/internal/httpapi/response"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
)

type ArtifactHandler struct {
	client artifacts.Client
	log    *logger.Logger
}

func NewArtifactHandler(client artifacts.Client, log *logger.Logger) *ArtifactHandler {
	return &ArtifactHandler{client: client, log: log.With("handler", "ArtifactHandler")}
}

// Download streams a produced output blob (spec.md §6 "GET
// /api/v1/artefact/{flow-id}/{output-name}").
func (h *ArtifactHandler) Download(c *gin.Context) {
	flowID, err := strconv.ParseUint(c.Param("flow_id"), 10, 64)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_flow_id", err)
		return
	}
	outputName := c.Param("output_name")
	if outputName == "" {
		response.RespondError(c, http.StatusBadRequest, "missing_output_name", errors.New("output name is required"))
		return
	}

	rc, err := h.client.GetToClient(c.Request.Context(), flowID, outputName)
	if err != nil {
		response.RespondError(c, http.StatusNotFound, "artifact_not_found", err)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", "attachment; filename=\""+outputName+"\"")
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", rc, nil)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flowmium-io/flowmium/internal/httpapi/response"
	"github.com/flowmium-io/flowmium/internal/platform/logger"
	"github.com/flowmium-io/flowmium/internal/secrets"
)

type SecretHandler struct {
	registry *secrets.Registry
	log      *logger.Logger
}

func NewSecretHandler(registry *secrets.Registry, log *logger.Logger) *SecretHandler {
	return &SecretHandler{registry: registry, log: log.With("handler", "SecretHandler")}
}

// Create stores a new secret value (spec.md §6 "POST /api/v1/secret/{key}";
// body = JSON string).
func (h *SecretHandler) Create(c *gin.Context) {
	key := c.Param("key")
	value, err := decodeSecretValue(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.registry.Create(c.Request.Context(), key, value); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "create_secret", err)
		return
	}
	c.Status(http.StatusCreated)
}

// Update overwrites an existing secret value (spec.md §6 "PUT
// /api/v1/secret/{key}").
func (h *SecretHandler) Update(c *gin.Context) {
	key := c.Param("key")
	value, err := decodeSecretValue(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.registry.Update(c.Request.Context(), key, value); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "update_secret", err)
		return
	}
	c.Status(http.StatusOK)
}

// Delete removes a secret (spec.md §6 "DELETE /api/v1/secret/{key}").
func (h *SecretHandler) Delete(c *gin.Context) {
	key := c.Param("key")
	if err := h.registry.Delete(c.Request.Context(), key); err != nil {
		response.RespondError(c, http.StatusInternalServerError, "delete_secret", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func decodeSecretValue(c *gin.Context) (string, error) {
	var value string
	if err := json.NewDecoder(c.Request.Body).Decode(&value); err != nil {
		return "", err
	}
	return value, nil
}

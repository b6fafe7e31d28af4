package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health is an unauthenticated liveness probe; it carries no business
// logic and is not named in spec.md §6 but is ambient operational
// scaffolding the teacher's router always mounts.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

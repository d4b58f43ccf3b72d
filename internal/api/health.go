package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status      string `json:"status"`
	VectorIndex string `json:"vector_index"`
	Timestamp   string `json:"timestamp"`
}

// HealthChecker is implemented by the vector index.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// healthHandler reports vector index connectivity: 200 when reachable,
// 503 otherwise.
func healthHandler(index HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		resp := HealthResponse{Timestamp: time.Now().UTC().Format(time.RFC3339)}
		if err := index.Health(ctx); err != nil {
			resp.Status = "unhealthy"
			resp.VectorIndex = "disconnected"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp.Status = "healthy"
		resp.VectorIndex = "connected"
		c.JSON(http.StatusOK, resp)
	}
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"ticketboard.com/internal/ticket/stream"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Health GET /healthz：存储可达 + 当前订阅数
func Health(store Pinger, hub *stream.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "unavailable",
				"error":       "Store unreachable.",
				"subscribers": hub.Len(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": hub.Len()})
	}
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Readiness reports whether a dependency is usable
type Readiness interface {
	Ready() bool
}

// Health reports liveness. store tells whether demo data is loaded yet,
// which happens lazily on first use.
func Health(store Readiness) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"store_loaded": store.Ready(),
			"timestamp":    time.Now().Format(time.RFC3339),
		})
	}
}

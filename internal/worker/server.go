package worker

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Readiness flips to not-ready once shutdown starts.
type Readiness struct {
	shuttingDown atomic.Bool
}

func (r *Readiness) ShutDown() { r.shuttingDown.Store(true) }
func (r *Readiness) IsShuttingDown() bool { return r.shuttingDown.Load() }

// HealthRouter serves liveness, readiness and metrics for the worker process.
// Readiness requires every dependency to answer a ping.
func HealthRouter(ready *Readiness, deps map[string]Pinger) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())

	// liveness: process is up
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if ready.IsShuttingDown() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 500*time.Millisecond)
		defer cancel()

		for name, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "dependency": name})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

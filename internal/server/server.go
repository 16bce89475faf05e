// Package server exposes the internal API boundary: run triggers, version
// approval and rejection, suggestion actions, and the manual signal-processing
// trigger.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/inkwell/internal/config"
	"github.com/zulandar/inkwell/internal/pipeline"
	"github.com/zulandar/inkwell/internal/scheduler"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the API server.
type StartOpts struct {
	DB       *gorm.DB
	Cfg      *config.Config
	Executor *pipeline.Executor
	Sweeper  *scheduler.Sweeper
	Port     int
	Out      io.Writer
}

// Start launches the API server. It blocks until ctx is cancelled, then shuts
// down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.DB == nil {
		return fmt.Errorf("server: db is required")
	}
	if opts.Executor == nil {
		return fmt.Errorf("server: executor is required")
	}
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(opts)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "API listening at http://localhost:%d\n", opts.Port)
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newRouter builds the gin router with all API routes registered.
func newRouter(opts StartOpts) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.POST("/deliverables/:id/run", handleRunDeliverable(opts))
	router.GET("/deliverables/:id/versions", handleListVersions(opts))

	router.PATCH("/versions/:id/approve", handleApproveVersion(opts))
	router.PATCH("/versions/:id/reject", handleRejectVersion(opts))

	router.GET("/owners/:id/suggested", handleListSuggested(opts))
	router.PATCH("/suggested/:id/enable", handleEnableSuggested(opts))
	router.PATCH("/suggested/:id/dismiss", handleDismissSuggested(opts))

	router.POST("/owners/:id/trigger", handleTrigger(opts))

	return router
}

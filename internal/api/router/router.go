package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/hotel-scout/internal/api/handler"
	"github.com/cuongbtq/hotel-scout/internal/metrics"
)

// Options carries what the router needs beyond the handler dependencies
type Options struct {
	ServiceName string
	Metrics     *metrics.Metrics
	MetricsPath string
	// HealthCheck reports whether the backing store is reachable
	HealthCheck func(ctx context.Context) error
}

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies, opts Options) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())
	if opts.Metrics != nil {
		r.Use(MetricsMiddleware(opts.Metrics))
	}

	registerOps(r, opts)

	jobHandler := handler.NewJobHandler(deps)

	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", jobHandler.CreateJob)
			jobs.GET("", jobHandler.ListJobs)
			jobs.GET("/:job_id", jobHandler.GetJob)
			jobs.GET("/:job_id/status", jobHandler.GetJobStatus)
			jobs.GET("/:job_id/listings", jobHandler.ListListings)
		}

		listings := v1.Group("/listings")
		{
			listings.POST("/:listing_id/bookmark", jobHandler.CreateBookmark)
			listings.DELETE("/:listing_id/bookmark", jobHandler.DeleteBookmark)
		}

		v1.GET("/bookmarks", jobHandler.ListBookmarks)
	}

	return r
}

// SetupOpsRouter serves only health and metrics, for processes without the API
func SetupOpsRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	registerOps(r, opts)
	return r
}

func registerOps(r *gin.Engine, opts Options) {
	r.GET("/health", healthHandler(opts))

	if opts.Metrics != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(opts.Metrics.Handler()))
	}
}

func healthHandler(opts Options) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opts.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := opts.HealthCheck(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "unhealthy",
					"service": opts.ServiceName,
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": opts.ServiceName,
		})
	}
}

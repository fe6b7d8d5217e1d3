// Package httpapi wires the HTTP transport (Gin) to the application
// services, middleware, and route handlers. It centralizes the
// cross-cutting concerns: tracing, correlation IDs, logging, panic
// recovery, metrics, CORS, security headers, and rate limiting.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/platewise/go-meal-backend/internal/config"
	"github.com/platewise/go-meal-backend/internal/http/handlers"
	"github.com/platewise/go-meal-backend/internal/http/middleware"
	"github.com/platewise/go-meal-backend/internal/repo"
	"github.com/platewise/go-meal-backend/internal/services"
	"github.com/platewise/go-meal-backend/internal/storage"
)

// RegisterRoutes attaches all middleware and endpoints to the engine.
//
// Middleware order matters:
//  1. OpenTelemetry tracing
//  2. RequestID
//  3. Logger
//  4. Recovery
//  5. Body size limit
//  6. Metrics (+ /metrics endpoint)
//  7. Rate limiter
//  8. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, store storage.Storage, q services.Enqueuer, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())

	// Leave headroom above the image cap for multipart framing.
	r.Use(limitBody(cfg.MaxImageBytes + 1<<20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	} else {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/stats", func(c *gin.Context) {
		stats, err := repo.GetPipelineStats(c.Request.Context(), db)
		if err != nil {
			handlers.Fail(c, http.StatusInternalServerError, handlers.ErrCodeInternal, "could not collect stats")
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	analysisSvc := services.NewAnalysisService(db, store, q)
	analysisSvc.MaxImageBytes = cfg.MaxImageBytes
	userSvc := &services.UserService{DB: db}
	h := handlers.New(analysisSvc, userSvc)
	sh := handlers.NewStorage(store)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.POST("/meals/analyze", h.AnalyzeMeal)
		api.GET("/meals/status/:eventId", h.AnalysisStatus)

		api.POST("/users", h.CreateUser)
		api.GET("/users", h.ListUsers)
		api.GET("/users/:id/meals", h.ListUserMeals)

		api.POST("/storage/upload", sh.UploadFile)
		api.GET("/storage/url/:fileName", sh.FileURL)
		api.DELETE("/storage/:fileName", sh.DeleteFile)
	}
}

// limitBody caps request body size via http.MaxBytesReader; oversize
// bodies error on read downstream.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" or empty as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

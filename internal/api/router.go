package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/contextmeet/contextmeet/internal/auth"
	"github.com/contextmeet/contextmeet/internal/handlers"
	"github.com/contextmeet/contextmeet/internal/middleware"
)

// Options wires the services the HTTP layer exposes.
type Options struct {
	DB            *gorm.DB
	JWT           *iauth.JWTService
	Auth          *handlers.AuthHandler
	Meetings      *handlers.MeetingHandler
	Contexts      *handlers.ContextHandler
	Notifications *handlers.NotificationHandler

	AllowedOrigins  []string
	MetricsEndpoint string
	HealthEnabled   bool
	MetricsEnabled  bool
}

// NewRouter builds the gin engine with the full middleware chain and all
// API routes registered.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.DB == nil {
		return nil, errors.New("api: db is required")
	}
	if opts.JWT == nil {
		return nil, errors.New("api: jwt service is required")
	}
	if opts.Auth == nil || opts.Meetings == nil || opts.Contexts == nil || opts.Notifications == nil {
		return nil, errors.New("api: all handlers are required")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Metrics())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(opts.AllowedOrigins))

	router.NoRoute(middleware.NotFoundHandler)

	if opts.HealthEnabled {
		health := handlers.NewHealthHandler(opts.DB)
		router.GET("/health", health.Check)
	}
	if opts.MetricsEnabled {
		endpoint := opts.MetricsEndpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		router.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authLimiter := middleware.RateLimit(10, time.Minute)
	requireAuth := middleware.Auth(opts.JWT)

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", authLimiter, opts.Auth.Register)
		authGroup.POST("/login", authLimiter, opts.Auth.Login)
		authGroup.POST("/refresh", opts.Auth.Refresh)
		authGroup.POST("/logout", opts.Auth.Logout)
		authGroup.GET("/google/url", opts.Auth.GoogleURL)
		authGroup.POST("/google/callback", authLimiter, opts.Auth.GoogleCallback)
		authGroup.GET("/me", requireAuth, opts.Auth.Me)
		authGroup.PATCH("/me", requireAuth, opts.Auth.UpdateMe)
	}

	meetings := router.Group("/api/meetings", requireAuth)
	{
		meetings.GET("", opts.Meetings.List)
		meetings.POST("", opts.Meetings.Create)
		meetings.GET("/today", opts.Meetings.Today)
		meetings.GET("/stats", opts.Meetings.Stats)
		meetings.POST("/sync", opts.Meetings.Sync)
		meetings.GET("/:id", opts.Meetings.Get)
		meetings.PATCH("/:id", opts.Meetings.Update)
		meetings.DELETE("/:id", opts.Meetings.Delete)
	}

	contexts := router.Group("/api/contexts", requireAuth)
	{
		contexts.GET("/recent", opts.Contexts.Recent)
		contexts.POST("/batch", opts.Contexts.GenerateBatch)
		contexts.GET("/meeting/:meetingId", opts.Contexts.Get)
		contexts.POST("/meeting/:meetingId/generate", opts.Contexts.Generate)
		contexts.PATCH("/meeting/:meetingId", opts.Contexts.Update)
		contexts.DELETE("/meeting/:meetingId", opts.Contexts.Delete)
	}

	notifications := router.Group("/api/notifications", requireAuth)
	{
		notifications.GET("", opts.Notifications.List)
		notifications.POST("", opts.Notifications.Schedule)
		notifications.POST("/auto-schedule", opts.Notifications.AutoSchedule)
		notifications.GET("/stats", opts.Notifications.Stats)
		notifications.GET("/pending", opts.Notifications.Pending)
		notifications.POST("/:id/cancel", opts.Notifications.Cancel)
		notifications.POST("/:id/resend", opts.Notifications.Resend)
	}

	return router, nil
}

package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cppla/branch/config"
	"github.com/cppla/branch/controllers"
	"github.com/cppla/branch/middleware"
	"github.com/cppla/branch/session"
	"github.com/cppla/branch/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(registry *session.Registry) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Stream tokens leave the URL before anything logs it
	r.Use(middleware.HideQueryToken())
	// Request logs go to their own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.RequestLogger(gl))
		r.Use(utils.Recovery(gl, false))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static("/static", "./static")
	r.GET("/", func(c *gin.Context) {
		c.File("./static/index.html")
	})
	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok", "sessions": registry.Len()})
	})

	authController := controllers.NewAuthController(registry)
	podController := controllers.NewPodController(registry, time.Local)
	suggestionController := controllers.NewSuggestionController(registry)
	statsController := controllers.NewStatsController(registry, time.Local)
	streamController := controllers.NewStreamController(registry)
	configController := controllers.NewConfigController()

	api := r.Group("/api/v1")
	api.GET("/config", configController.GetClientConfig)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/session", authController.OpenSession)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)

	// The stream is long lived and must not count against the rate limit.
	api.GET("/pod/stream", middleware.AuthRequired(), streamController.Stream)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware())

	protected.GET("/pod", podController.GetState)
	protected.POST("/pod/refresh", podController.Refresh)
	protected.POST("/pod/switch", podController.SwitchPod)
	protected.GET("/pod/feed", podController.Feed)
	protected.GET("/pod/calendar", podController.Calendar)
	protected.GET("/pod/stats", statsController.GetStats)
	protected.POST("/pod/invite", podController.Invite)
	protected.GET("/usage", podController.Usage)

	protected.POST("/checkins", podController.CreateCheckIn)
	protected.POST("/checkins/:id/reflection", podController.CompleteReflection)
	protected.POST("/checkins/:id/comments", podController.AddComment)
	protected.POST("/checkins/:id/reactions", podController.React)

	protected.GET("/notifications", podController.Notifications)
	protected.POST("/notifications/read-all", podController.MarkAllRead)
	protected.POST("/notifications/:id/open", podController.OpenNotification)

	protected.PUT("/view", podController.SetView)
	protected.PUT("/view/date", podController.SelectDate)

	protected.POST("/suggestions/focus", suggestionController.Focus)
	protected.POST("/suggestions/goals", suggestionController.Goals)
	protected.POST("/checkins/:id/suggestions/replies", suggestionController.Replies)
	protected.POST("/checkins/:id/suggestions/recap", suggestionController.Recap)

	r.NoRoute(func(ctx *gin.Context) {
		path := ctx.Request.URL.Path
		if strings.HasPrefix(path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		if strings.HasPrefix(path, "/static/") {
			ctx.JSON(http.StatusNotFound, gin.H{"message": "static asset not found"})
			return
		}
		// everything else falls back to the single-page app
		ctx.Status(http.StatusOK)
		ctx.File("./static/index.html")
	})

	return r
}

package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"directory-server-lite/internal/auth"
	"directory-server-lite/internal/directory"
	"directory-server-lite/internal/handler"
	"directory-server-lite/internal/hub"
	"directory-server-lite/internal/middleware"
)

// Deps wires the router. Context, when set, stops the rate limiters once done.
type Deps struct {
	Context            context.Context
	Service            *directory.Service
	Hub                *hub.Hub
	TokenConfig        auth.TokenConfig
	RateLimitPerMinute int
	Logger             *slog.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.LogRequest(deps.Logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	limit := deps.RateLimitPerMinute
	if limit <= 0 {
		limit = 60
	}
	mountLimiter := middleware.NewRateLimiter(limit, time.Minute)
	escalateLimiter := middleware.NewRateLimiter(limit, time.Minute)
	if deps.Context != nil {
		go func() {
			<-deps.Context.Done()
			mountLimiter.Stop()
			escalateLimiter.Stop()
		}()
	}

	versionHandler := &handler.VersionHandler{PageSize: deps.Service.PageSize()}
	r.GET("/v1/version", versionHandler.Check)

	userHandler := &handler.UserHandler{Service: deps.Service}
	r.GET("/v1/users/:id", userHandler.Get)

	directoryHandler := &handler.DirectoryHandler{Service: deps.Service, TokenConfig: deps.TokenConfig}
	r.POST("/v1/directory/sessions", middleware.RateLimitMiddleware(mountLimiter, middleware.ClientIPKey), directoryHandler.Mount)

	requireSession := middleware.RequireSession(deps.TokenConfig, deps.Service.Exists)
	protected := r.Group("/v1/directory")
	protected.Use(requireSession)
	protected.DELETE("/sessions", directoryHandler.Unmount)
	protected.GET("/view", directoryHandler.View)
	protected.PUT("/query", directoryHandler.SetQuery)
	protected.POST("/escalate", middleware.RateLimitMiddleware(escalateLimiter, middleware.SessionKey), directoryHandler.Escalate)
	protected.POST("/clear", directoryHandler.Clear)
	protected.POST("/more", directoryHandler.LoadMore)
	protected.POST("/refresh", directoryHandler.Refresh)

	wsHandler := &handler.WebSocketHandler{Hub: deps.Hub, Service: deps.Service, EscalateLimiter: escalateLimiter}
	protected.GET("/ws", wsHandler.Serve)

	return r
}

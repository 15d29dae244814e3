package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"directory-server-lite/internal/auth"
	"directory-server-lite/internal/directory"
	"directory-server-lite/internal/middleware"
	"directory-server-lite/internal/store"
)

const maxViewWait = 30 * time.Second

type DirectoryHandler struct {
	Service     *directory.Service
	TokenConfig auth.TokenConfig
}

type setQueryBody struct {
	Query string `json:"query" binding:"max=100"`
}

func (h *DirectoryHandler) Mount(c *gin.Context) {
	screen, err := h.Service.Mount()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service unavailable"})
		return
	}

	token, err := auth.CreateToken(screen.ID(), h.TokenConfig)
	if err != nil {
		h.Service.Unmount(screen.ID())
		slog.Error("create session token failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": gin.H{"id": screen.ID()},
		"token":   token,
		"home":    directory.HomeRoute(),
		"view":    screen.View(),
	})
}

func (h *DirectoryHandler) Unmount(c *gin.Context) {
	sessionID, ok := middleware.SessionIDFromContext(c)
	if !ok || !h.Service.Unmount(sessionID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *DirectoryHandler) View(c *gin.Context) {
	screen, ok := h.screen(c)
	if !ok {
		return
	}
	if c.Query("wait") == "true" {
		ctx, cancel := context.WithTimeout(c.Request.Context(), maxViewWait)
		defer cancel()
		if err := screen.Wait(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			respondScreenError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, screen.View())
}

func (h *DirectoryHandler) SetQuery(c *gin.Context) {
	var body setQueryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	screen, ok := h.screen(c)
	if !ok {
		return
	}
	h.apply(c, screen, func() error { return screen.SetQuery(body.Query) })
}

func (h *DirectoryHandler) Escalate(c *gin.Context) {
	screen, ok := h.screen(c)
	if !ok {
		return
	}
	h.apply(c, screen, screen.EscalateToServer)
}

func (h *DirectoryHandler) Clear(c *gin.Context) {
	screen, ok := h.screen(c)
	if !ok {
		return
	}
	h.apply(c, screen, screen.Clear)
}

func (h *DirectoryHandler) LoadMore(c *gin.Context) {
	screen, ok := h.screen(c)
	if !ok {
		return
	}
	h.request(c, screen, screen.LoadMore)
}

func (h *DirectoryHandler) Refresh(c *gin.Context) {
	screen, ok := h.screen(c)
	if !ok {
		return
	}
	h.request(c, screen, screen.Refresh)
}

func (h *DirectoryHandler) apply(c *gin.Context, screen *directory.Screen, op func() error) {
	if err := op(); err != nil {
		respondScreenError(c, err)
		return
	}
	c.JSON(http.StatusOK, screen.View())
}

func (h *DirectoryHandler) request(c *gin.Context, screen *directory.Screen, op func() (bool, error)) {
	accepted, err := op()
	if err != nil {
		respondScreenError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted, "view": screen.View()})
}

func (h *DirectoryHandler) screen(c *gin.Context) (*directory.Screen, bool) {
	sessionID, ok := middleware.SessionIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return nil, false
	}
	screen, err := h.Service.Screen(sessionID)
	if err != nil {
		respondScreenError(c, err)
		return nil, false
	}
	return screen, true
}

func respondScreenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound), errors.Is(err, directory.ErrSessionClosed):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, context.Canceled):
		c.Status(http.StatusNoContent)
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"directory-server-lite/internal/directory"
	"directory-server-lite/internal/userapi"
)

type UserHandler struct {
	Service *directory.Service
}

// Get renders the UserDetail destination. With wait=false it answers from
// the cache immediately and fetches in the background.
func (h *UserHandler) Get(c *gin.Context) {
	id, err := directory.ParseUserID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user id"})
		return
	}

	var view directory.DetailView
	if c.Query("wait") == "false" {
		view, err = h.Service.PeekDetail(id)
	} else {
		view, err = h.Service.Detail(c.Request.Context(), id)
	}

	switch {
	case err == nil:
		c.JSON(http.StatusOK, view)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": userapi.NetworkErrorMessage})
	case userapi.IsNotFound(err):
		c.JSON(http.StatusNotFound, view)
	default:
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, view)
	}
}

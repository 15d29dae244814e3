package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"directory-server-lite/internal/directory"
)

type VersionHandler struct {
	PageSize int
}

// Check tells clients whether they must update and which destinations and
// page size the server uses.
func (h *VersionHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"update_required": false,
		"pageSize":        h.PageSize,
		"routes":          []string{directory.RouteHome, directory.RouteUserDetail},
	})
}

// Package admin holds the endpoints reserved for administrators
package admin

import (
	"net/http"

	"bitwise74/file-api/app/reply"
	"bitwise74/file-api/internal"
	"bitwise74/file-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// FileList returns every stored file, or only those of ?ownerId=
func FileList(c *gin.Context, d *internal.Deps) {
	files, err := d.Files.ListAll(c.Request.Context(), middleware.Principal(c), c.Query("ownerId"))
	if err != nil {
		reply.Error(c, err, "Failed to list all files")
		return
	}

	c.JSON(http.StatusOK, files)
}

// Usage returns the file count and total size of every owner
func Usage(c *gin.Context, d *internal.Deps) {
	usage, err := d.Files.Usage(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		reply.Error(c, err, "Failed to aggregate usage")
		return
	}

	c.JSON(http.StatusOK, usage)
}

package file

import (
	"net/http"

	"bitwise74/file-api/app/reply"
	"bitwise74/file-api/internal"
	"bitwise74/file-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// FileFetch returns the metadata of a single file
func FileFetch(c *gin.Context, d *internal.Deps) {
	id, ok := reply.FileID(c)
	if !ok {
		return
	}

	f, err := d.Files.Get(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		reply.Error(c, err, "Failed to fetch file")
		return
	}

	c.JSON(http.StatusOK, f)
}

// FileList returns every file owned by the caller
func FileList(c *gin.Context, d *internal.Deps) {
	files, err := d.Files.List(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		reply.Error(c, err, "Failed to list files")
		return
	}

	c.JSON(http.StatusOK, files)
}

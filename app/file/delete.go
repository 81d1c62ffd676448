package file

import (
	"net/http"

	"bitwise74/file-api/app/reply"
	"bitwise74/file-api/internal"
	"bitwise74/file-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// FileDelete removes a file and its blob. Admins use the same handler
// through the admin group.
func FileDelete(c *gin.Context, d *internal.Deps) {
	id, ok := reply.FileID(c)
	if !ok {
		return
	}

	if err := d.Files.Delete(c.Request.Context(), middleware.Principal(c), id); err != nil {
		reply.Error(c, err, "Failed to delete file")
		return
	}

	c.Status(http.StatusNoContent)
}

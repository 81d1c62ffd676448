package file

import (
	"net/http"

	"bitwise74/file-api/app/reply"
	"bitwise74/file-api/internal"
	"bitwise74/file-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type renameRequest struct {
	OriginalName *string `json:"originalName"`
}

type commentRequest struct {
	Comment *string `json:"comment"`
}

func FileRename(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := reply.FileID(c)
	if !ok {
		return
	}

	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.OriginalName == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No new file name provided",
			"requestID": requestID,
		})
		return
	}

	f, err := d.Files.Rename(c.Request.Context(), middleware.Principal(c), id, *req.OriginalName)
	if err != nil {
		reply.Error(c, err, "Failed to rename file")
		return
	}

	c.JSON(http.StatusOK, f)
}

// FileComment sets or clears the comment of a file. A missing comment field
// clears it.
func FileComment(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := reply.FileID(c)
	if !ok {
		return
	}

	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	comment := ""
	if req.Comment != nil {
		comment = *req.Comment
	}

	f, err := d.Files.UpdateComment(c.Request.Context(), middleware.Principal(c), id, comment)
	if err != nil {
		reply.Error(c, err, "Failed to update comment")
		return
	}

	c.JSON(http.StatusOK, f)
}

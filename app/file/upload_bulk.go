package file

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/service"
	"bitwise74/file-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// FileUploadBulk stores every part named "files". Each file succeeds or fails
// on its own; 201 means all of them made it, 207 that some did not.
func FileUploadBulk(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	p := middleware.Principal(c)

	form, err := c.MultipartForm()
	if err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":     "Request body size exceeds limit",
				"requestID": requestID,
			})
			return
		}

		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No files provided",
			"requestID": requestID,
		})
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No files provided",
			"requestID": requestID,
		})
		return
	}

	if maxFiles := d.Config.Upload.MaxFiles; len(headers) > maxFiles {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     fmt.Sprintf("Too many files, at most %d are allowed", maxFiles),
			"requestID": requestID,
		})
		return
	}

	items := make([]service.UploadItem, len(headers))
	for i, fh := range headers {
		items[i] = service.UploadItem{
			Filename: fh.Filename,
			Open:     opener(fh),
		}
	}

	results := d.Files.BulkUpload(c.Request.Context(), p, items)

	code := http.StatusCreated
	for _, r := range results {
		if !r.Success {
			code = http.StatusMultiStatus
			break
		}
	}

	c.JSON(code, results)
}

func opener(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// Package reply writes the JSON error bodies shared by every handler.
package reply

import (
	"net/http"
	"strconv"

	"bitwise74/file-api/pkg/apperr"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error answers with the status and message err maps to. Server side
// failures are logged with logMsg; their details never reach the client.
func Error(c *gin.Context, err error, logMsg string) {
	requestID := c.GetString("requestID")
	code, msg := apperr.Status(err)

	if code >= http.StatusInternalServerError {
		zap.L().Error(logMsg, zap.String("requestID", requestID), zap.Error(err))
	}

	c.JSON(code, gin.H{
		"error":     msg,
		"requestID": requestID,
	})
}

// FileID parses the :id path parameter. On failure it has already answered
// and returns false.
func FileID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid file ID",
			"requestID": c.GetString("requestID"),
		})
		return 0, false
	}

	return uint(id), true
}

package file

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bitwise74/file-api/app/reply"
	"bitwise74/file-api/config"
	"bitwise74/file-api/internal"
	"bitwise74/file-api/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type tokenRequest struct {
	ValiditySeconds int64 `json:"validitySeconds"`
}

type tokenResponse struct {
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	DownloadURL string    `json:"downloadUrl"`
}

// FileToken issues a temporary download link. The body is optional; without
// validitySeconds the configured default applies.
func FileToken(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	id, ok := reply.FileID(c)
	if !ok {
		return
	}

	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	if req.ValiditySeconds < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "validitySeconds can't be negative",
			"requestID": requestID,
		})
		return
	}

	// Checked in seconds so the conversion below can't overflow
	maxSeconds := int64(d.Config.Token.MaxValidity / time.Second)
	if req.ValiditySeconds > maxSeconds {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     fmt.Sprintf("validitySeconds can't be larger than %d", maxSeconds),
			"requestID": requestID,
		})
		return
	}

	validity := time.Duration(req.ValiditySeconds) * time.Second

	t, err := d.Files.IssueToken(c.Request.Context(), middleware.Principal(c), id, validity)
	if err != nil {
		reply.Error(c, err, "Failed to issue download token")
		return
	}

	c.JSON(http.StatusCreated, tokenResponse{
		Token:       t.Token,
		ExpiresAt:   t.ExpiresAt,
		DownloadURL: downloadURL(c, d.Config, t.Token),
	})
}

func downloadURL(c *gin.Context, cfg *config.Config, token string) string {
	scheme := "http"
	if cfg.Host.SSL.Enabled || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}

	host := cfg.Host.Domain
	if host == "" || host == "localhost" {
		host = c.Request.Host
	}

	return scheme + "://" + host + "/api/files/download-temp/" + token
}

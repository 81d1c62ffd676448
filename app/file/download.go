package file

import (
	"net/http"
	"strconv"
	"strings"

	"bitwise74/file-api/app/reply"
	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/service"
	"bitwise74/file-api/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// FileDownload streams a file the caller owns
func FileDownload(c *gin.Context, d *internal.Deps) {
	id, ok := reply.FileID(c)
	if !ok {
		return
	}

	dl, err := d.Files.Download(c.Request.Context(), middleware.Principal(c), id)
	if err != nil {
		reply.Error(c, err, "Failed to open file for download")
		return
	}

	serve(c, dl)
}

// FileDownloadTemp streams the file a temporary token points at. No login is
// required.
func FileDownloadTemp(c *gin.Context, d *internal.Deps) {
	dl, err := d.Files.DownloadWithToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		reply.Error(c, err, "Failed to open file for token download")
		return
	}

	serve(c, dl)
}

func serve(c *gin.Context, dl *service.Download) {
	f := dl.File

	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	c.Header("Content-Disposition", contentDisposition(f.OriginalName))
	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(f.SizeBytes, 10))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "private, no-store")
	c.Status(http.StatusOK)

	if _, err := dl.Stream(c.Request.Context(), c.Writer); err != nil {
		zap.L().Warn("Download interrupted", zap.String("requestID", c.GetString("requestID")), zap.Uint("fileID", f.ID), zap.Error(err))
	}
}

// contentDisposition builds an attachment header carrying name in the
// RFC 5987 extended form, so non ASCII names survive.
func contentDisposition(name string) string {
	var b strings.Builder
	b.WriteString("attachment; filename*=UTF-8''")

	const hex = "0123456789ABCDEF"
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if isAttrChar(ch) {
			b.WriteByte(ch)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[ch>>4])
		b.WriteByte(hex[ch&0x0f])
	}

	return b.String()
}

func isAttrChar(ch byte) bool {
	switch {
	case 'a' <= ch && ch <= 'z', 'A' <= ch && ch <= 'Z', '0' <= ch && ch <= '9':
		return true
	}

	return strings.IndexByte("!#$&+-.^_`|~", ch) >= 0
}

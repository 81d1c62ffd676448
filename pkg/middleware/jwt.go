package middleware

import (
	"errors"
	"net/http"
	"strings"

	"bitwise74/file-api/internal/auth"
	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewJWTMiddleware authenticates the caller from a bearer token or the
// auth_token cookie and stores the resulting principal as "principal".
func NewJWTMiddleware(d *gorm.DB, secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.MustGet("requestID").(string)

		tokenStr := bearerToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "No authorization token provided",
				"requestID": requestID,
			})
			return
		}

		userID, err := security.ParseJWT(tokenStr, secret)
		if err != nil {
			msg := "Authorization token invalid"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Authorization token expired. Please log in again"
			}

			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     msg,
				"requestID": requestID,
			})

			zap.L().Debug("Rejected token", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		// The account may have been removed after the token was issued
		var user model.User
		err = d.WithContext(c.Request.Context()).Where("id = ?", userID).First(&user).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":     "User not found",
					"requestID": requestID,
				})
				return
			}

			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":     "Internal server error",
				"requestID": requestID,
			})

			zap.L().Error("Failed to check if user exists", zap.Error(err), zap.String("requestID", requestID))
			return
		}

		if !user.Verified {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Please verify your account before using the service",
				"requestID": requestID,
			})
			return
		}

		c.Set("userID", user.ID)
		c.Set("principal", auth.Identity{UserID: user.ID, IsAdmin: user.IsAdmin})
		c.Next()
	}
}

// RequireAdmin lets only admins through. It must run after the JWT middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := Principal(c)
		if p == nil || !p.Admin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "Forbidden",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Next()
	}
}

// Principal returns the authenticated caller, or nil for anonymous requests.
func Principal(c *gin.Context) auth.Principal {
	v, ok := c.Get("principal")
	if !ok {
		return nil
	}

	p, _ := v.(auth.Principal)
	return p
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if t, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(t)
		}
		return ""
	}

	t, err := c.Cookie("auth_token")
	if err != nil {
		return ""
	}

	return t
}

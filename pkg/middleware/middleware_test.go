package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitwise74/file-api/internal/model"
	"bitwise74/file-api/internal/testutil"
	"bitwise74/file-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("middleware-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T, mws ...gin.HandlerFunc) *gin.Engine {
	t.Helper()

	r := gin.New()
	r.Use(NewRequestIDMiddleware())
	r.Use(mws...)
	r.GET("/", func(c *gin.Context) {
		p := Principal(c)
		if p == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, p.ID())
	})
	r.POST("/", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := newRouter(t)

	w := do(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, w.Code)

	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	d := testutil.NewDB(t)
	require.NoError(t, d.Create(&model.User{ID: "1", Username: "alice", Verified: true}).Error)
	require.NoError(t, d.Create(&model.User{ID: "2", Username: "bob"}).Error)

	r := newRouter(t, NewJWTMiddleware(d, secret))

	sign := func(id string, validity time.Duration) string {
		tok, err := security.SignJWT(id, secret, validity)
		require.NoError(t, err)
		return tok
	}

	tests := []struct {
		name   string
		header string
		cookie string
		code   int
		body   string
	}{
		{name: "no token", code: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", code: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", code: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + sign("1", -time.Minute), code: http.StatusUnauthorized, body: "expired"},
		{name: "unknown user", header: "Bearer " + sign("99", time.Hour), code: http.StatusUnauthorized},
		{name: "unverified", header: "Bearer " + sign("2", time.Hour), code: http.StatusUnauthorized, body: "verify"},
		{name: "header", header: "Bearer " + sign("1", time.Hour), code: http.StatusOK, body: "1"},
		{name: "cookie", cookie: sign("1", time.Hour), code: http.StatusOK, body: "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "auth_token", Value: tt.cookie})
			}

			w := do(r, req)
			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.Contains(t, w.Body.String(), tt.body)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	d := testutil.NewDB(t)
	require.NoError(t, d.Create(&model.User{ID: "1", Username: "alice", Verified: true}).Error)
	require.NoError(t, d.Create(&model.User{ID: "2", Username: "root", Verified: true, IsAdmin: true}).Error)

	r := newRouter(t, NewJWTMiddleware(d, secret), RequireAdmin())

	for id, code := range map[string]int{"1": http.StatusForbidden, "2": http.StatusOK} {
		tok, err := security.SignJWT(id, secret, time.Hour)
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		assert.Equal(t, code, do(r, req).Code, id)
	}
}

func TestBodySizeLimiter(t *testing.T) {
	r := newRouter(t, BodySizeLimiter(8))

	w := do(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = do(r, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123")))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimiter(t *testing.T) {
	r := newRouter(t, RateLimiterMiddleware(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1}))

	assert.Equal(t, http.StatusOK, do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "10.1.1.1:1234"
	assert.Equal(t, http.StatusOK, do(r, other).Code, "limits are per client")
}

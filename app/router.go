// Package app wires the HTTP surface together
package app

import (
	"context"
	"fmt"
	"time"

	"bitwise74/file-api/app/admin"
	"bitwise74/file-api/app/file"
	"bitwise74/file-api/app/root"
	"bitwise74/file-api/config"
	"bitwise74/file-api/db"
	"bitwise74/file-api/internal"
	"bitwise74/file-api/internal/blob"
	"bitwise74/file-api/internal/metrics"
	"bitwise74/file-api/internal/registry"
	"bitwise74/file-api/internal/service"
	"bitwise74/file-api/internal/token"
	"bitwise74/file-api/pkg/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

// NewDeps opens the database and the blob store selected in cfg and builds
// the services on top of them.
func NewDeps(ctx context.Context, cfg *config.Config) (*internal.Deps, error) {
	if err := db.CheckMounted(cfg.DB); err != nil {
		return nil, err
	}

	database, err := db.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	blobs, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage, %w", cfg.Storage.Type, err)
	}

	return Wire(database, blobs, cfg), nil
}

// Wire builds the services from already opened stores.
func Wire(database *gorm.DB, blobs blob.Store, cfg *config.Config) *internal.Deps {
	reg := registry.New(database, blobs)
	tokens := token.New(database, reg, cfg.Token)

	return &internal.Deps{
		DB:     database,
		Config: cfg,
		Files:  service.NewFiles(blobs, reg, tokens),
		Tokens: tokens,
	}
}

func NewRouter(d *internal.Deps) *gin.Engine {
	router := gin.New()
	store := persist.NewMemoryStore(time.Minute)

	// Without configured origins the API is same-origin only
	if len(d.Config.Host.CORS) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     d.Config.Host.CORS,
			AllowMethods:     []string{"GET", "HEAD", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.Use(
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
		metrics.Middleware(),
	)

	router.HandleMethodNotAllowed = true
	router.MaxMultipartMemory = 8 << 20

	jwt := middleware.NewJWTMiddleware(d.DB, []byte(d.Config.JWT.Secret))
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: d.Config.Security.RateLimit,
		Burst:             d.Config.Security.RateLimit * 2,
	})
	maxUploadSize := d.Config.Upload.MaxSize
	maxBulkSize := maxUploadSize * int64(d.Config.Upload.MaxFiles)

	// GET /metrics			-> Prometheus scrape endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	main := router.Group("/api")
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		main.HEAD("/heartbeat", func(c *gin.Context) { root.Heartbeat(c, d) })
	}

	files := main.Group("/files")
	{
		// GET /api/files/download-temp/:token	-> Downloads a file with a temporary token, no login needed
		files.GET("/download-temp/:token", rateLimiter, func(c *gin.Context) { file.FileDownloadTemp(c, d) })

		// GET /api/files			-> Returns the caller's files
		files.GET("", jwt, func(c *gin.Context) { file.FileList(c, d) })

		// POST /api/files         		-> Uploads a new file and stores it in the database
		files.POST("", jwt, middleware.BodySizeLimiter(maxUploadSize), func(c *gin.Context) { file.FileUpload(c, d) })

		// POST /api/files/bulk		-> Uploads many files at once
		files.POST("/bulk", jwt, middleware.BodySizeLimiter(maxBulkSize), func(c *gin.Context) { file.FileUploadBulk(c, d) })

		// GET /api/files/search		-> Searches the caller's files by name
		files.GET("/search", jwt, func(c *gin.Context) { file.FileSearch(c, d) })

		// GET /api/files/:id			-> Returns a file by it's ID if the user owns it
		files.GET("/:id", jwt, func(c *gin.Context) { file.FileFetch(c, d) })

		// PATCH /api/files/:id/rename		-> Changes the display name of a file
		files.PATCH("/:id/rename", jwt, func(c *gin.Context) { file.FileRename(c, d) })

		// PATCH /api/files/:id/comment	-> Sets or clears the comment of a file
		files.PATCH("/:id/comment", jwt, func(c *gin.Context) { file.FileComment(c, d) })

		// DELETE /api/files/:id		-> Deletes a file owned by a user
		files.DELETE("/:id", jwt, func(c *gin.Context) { file.FileDelete(c, d) })

		// GET /api/files/:id/download		-> Streams a file owned by a user
		files.GET("/:id/download", jwt, func(c *gin.Context) { file.FileDownload(c, d) })

		// POST /api/files/:id/token		-> Issues a temporary download link
		files.POST("/:id/token", jwt, func(c *gin.Context) { file.FileToken(c, d) })
	}

	adm := main.Group("/admin", jwt, middleware.RequireAdmin())
	{
		// GET /api/admin/files			-> Lists every file, optionally filtered by ?ownerId=
		adm.GET("/files", func(c *gin.Context) { admin.FileList(c, d) })

		// DELETE /api/admin/files/:id		-> Deletes any file
		adm.DELETE("/files/:id", func(c *gin.Context) { file.FileDelete(c, d) })

		// GET /api/admin/usage			-> File count and size per owner
		adm.GET("/usage", cacheFor(store, 30), func(c *gin.Context) { admin.Usage(c, d) })
	}

	return router
}

func cacheFor(store persist.CacheStore, sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}

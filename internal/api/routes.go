package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"resumePress/internal/api/middleware"
	"resumePress/internal/auth"
	"resumePress/internal/config"
	"resumePress/internal/storage"
)

// RegisterRoutes 注册 API 路由，不包含 /api 前缀。
func RegisterRoutes(
	router *gin.Engine,
	cfg *config.Config,
	db *gorm.DB,
	asynqClient *asynq.Client,
	authService *auth.AuthService,
	redisClient *redis.Client,
	logger *slog.Logger,
	storageClient *storage.Client,
) {
	documentHandler := NewDocumentHandler(db, asynqClient, storageClient, logger, cfg.Clamd.Addr, cfg.API.MaxDocuments)
	editHandler := NewEditHandler(db, logger)
	sectionHandler := NewSectionHandler(db)
	exportHandler := NewExportHandler(db, asynqClient, redisClient, storageClient, logger)
	authHandler := NewAuthHandler(db, authService, redisClient, logger,
		cfg.Auth.LoginRateLimitPerHour, cfg.Auth.LoginLockThreshold, cfg.Auth.LoginLockTTL, cfg.API.CookieDomain)
	wsHandler := NewWsHandler(redisClient, authService, logger, cfg.API.AllowedOriginList())
	authMiddleware := middleware.AuthMiddleware(authService)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			authGroup.POST("/change-password", authMiddleware, authHandler.ChangePassword)
		}

		docs := v1.Group("/documents")
		docs.Use(authMiddleware)
		{
			docs.POST("/upload", documentHandler.UploadDocument)
			docs.GET("", documentHandler.ListDocuments)
			docs.GET("/latest", documentHandler.GetLatestDocument)
			docs.GET("/:id", documentHandler.GetDocument)
			docs.PUT("/:id", documentHandler.RenameDocument)
			docs.DELETE("/:id", documentHandler.DeleteDocument)
			docs.GET("/:id/download-link", documentHandler.GetDownloadLink)
			docs.GET("/:id/preview-link", documentHandler.GetPreviewLink)

			docs.GET("/:id/edits", editHandler.ListEdits)
			docs.POST("/:id/edits", editHandler.CommitEdit)
			docs.POST("/:id/edits/undo", editHandler.UndoLastEdit)
			docs.POST("/:id/edits/replace", editHandler.ReplaceAll)

			docs.GET("/:id/sections", sectionHandler.ListSections)
			docs.POST("/:id/sections", sectionHandler.AddSection)
			docs.PUT("/:id/sections/reorder", sectionHandler.ReorderSection)
			docs.PUT("/:id/sections/:sectionID/visibility", sectionHandler.SetSectionVisibility)
			docs.DELETE("/:id/sections/:sectionID", sectionHandler.DeleteSection)
			docs.POST("/:id/sections/:sectionID/items", sectionHandler.AddItem)
			docs.PUT("/:id/sections/:sectionID/items/:itemID", sectionHandler.UpdateItem)
			docs.DELETE("/:id/sections/:sectionID/items/:itemID", sectionHandler.RemoveItem)

			docs.POST("/:id/generate", exportHandler.GeneratePDF)
			docs.POST("/:id/export", exportHandler.ExportPDF)
		}

		jobs := v1.Group("/jobs")
		jobs.Use(authMiddleware)
		{
			jobs.GET("/:jobID", exportHandler.GetJobStatus)
			jobs.POST("/:jobID/cancel", exportHandler.CancelJob)
		}
	}
}

package http

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"experienceboard/internal/bootstrap"
	"experienceboard/internal/transport/http/handler"
	"experienceboard/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.Metrics(), middleware.CORS(app.Config.App.AllowedOrigins))

	healthHandler := handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, map[string]handler.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := app.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		},
		"rabbitmq": func(ctx context.Context) error {
			if app.MQConn.IsClosed() {
				return errMQClosed
			}
			return nil
		},
		"storage": app.Bucket.Ping,
	})
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handler.NewAuthHandler(app.AuthService, app.Log)
	experienceHandler := handler.NewExperienceHandler(app.ExperienceService, app.Log)
	draftHandler := handler.NewDraftHandler(app.Drafts, app.Log)
	requireAuth := middleware.AuthJWT(app.Config.Auth.JWTSecret, app.Sessions, app.Gate, app.Log)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/google", authHandler.Google)
	authGroup.GET("/me", requireAuth, authHandler.Me)
	authGroup.POST("/logout", requireAuth, authHandler.Logout)

	expGroup := v1.Group("/experiences")
	expGroup.GET("", experienceHandler.List)
	expGroup.GET("/:id", experienceHandler.Get)
	expGroup.POST("", requireAuth, experienceHandler.Create)
	expGroup.PUT("/:id", requireAuth, experienceHandler.Update)
	expGroup.DELETE("/:id", requireAuth, experienceHandler.Delete)
	expGroup.DELETE("/:id/images/:imageId", requireAuth, experienceHandler.DeleteImage)

	draftGroup := v1.Group("/drafts")
	draftGroup.Use(requireAuth)
	draftGroup.POST("", draftHandler.Create)
	draftGroup.GET("/:id", draftHandler.Get)
	draftGroup.DELETE("/:id", draftHandler.Discard)
	draftGroup.POST("/:id/files", draftHandler.AddFiles)
	draftGroup.GET("/:id/files/:slot", draftHandler.Preview)
	draftGroup.DELETE("/:id/files/:slot", draftHandler.RemoveFile)

	return router
}

var errMQClosed = errors.New("rabbitmq connection closed")

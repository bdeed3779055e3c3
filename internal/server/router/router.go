package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/domain/models"
	"github.com/mamadbah2/amutrack/internal/server/handlers"
	"github.com/mamadbah2/amutrack/internal/server/middleware"
)

// New wires the Gin engine with required routes and middlewares.
func New(feedHandler *handlers.FeedHandler, adminHandler *handlers.AdministrationHandler, reportHandler *handlers.ReportingHandler, resolver middleware.IdentityResolver, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.Auth(resolver, logger))

	feeds := api.Group("/feeds", middleware.RequireRole(models.RoleFarmer))
	feeds.POST("", feedHandler.Create)
	feeds.GET("", feedHandler.List)
	feeds.GET("/:id", feedHandler.Get)
	feeds.POST("/:id/deactivate", feedHandler.Deactivate)

	admins := api.Group("/feed-administrations")
	admins.POST("", middleware.RequireRole(models.RoleFarmer), adminHandler.Create)
	admins.GET("", reportHandler.List)
	admins.GET("/:id", adminHandler.Get)
	admins.PUT("/:id", middleware.RequireRole(models.RoleFarmer, models.RoleVeterinarian), adminHandler.Update)
	admins.DELETE("/:id", middleware.RequireRole(models.RoleFarmer), adminHandler.Delete)
	admins.POST("/:id/complete", middleware.RequireRole(models.RoleFarmer), adminHandler.Complete)
	admins.POST("/:id/approve", middleware.RequireRole(models.RoleVeterinarian), adminHandler.Approve)
	admins.POST("/:id/reject", middleware.RequireRole(models.RoleVeterinarian), adminHandler.Reject)

	reports := api.Group("/reports")
	reports.GET("/pending-approvals", middleware.RequireRole(models.RoleVeterinarian), reportHandler.PendingQueue)
	reports.GET("/active-programs", middleware.RequireRole(models.RoleFarmer), reportHandler.ActivePrograms)
	reports.GET("/animals-in-withdrawal", middleware.RequireRole(models.RoleFarmer), reportHandler.AnimalsInWithdrawal)
	reports.GET("/animals/:tagId/history", reportHandler.AnimalHistory)

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

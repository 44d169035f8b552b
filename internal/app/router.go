package app

import (
	"classtutor_backend/docs"
	"classtutor_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	{
		api.GET("/health", c.health.HealthCheck)

		// 作业处理流水线
		assignments := api.Group("/assignments")
		{
			assignments.POST("/:id/process", c.assignment.Process)
			assignments.POST("/:id/stop", c.assignment.Stop)
			assignments.POST("/:id/resume", c.assignment.Resume)
			assignments.GET("/:id/status", c.assignment.Status)
		}

		api.POST("/questions/:id/regenerate", c.assignment.Regenerate)

		// 辅导聊天
		sessions := api.Group("/chat/sessions")
		{
			sessions.POST("/:id/messages", c.chat.SendMessage)
			sessions.GET("/:id/messages", c.chat.History)
			sessions.GET("/:id/limit", c.chat.LimitStatus)
		}
	}
}

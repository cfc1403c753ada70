package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"alcyxob/imagegate/internal/pipeline"
	"alcyxob/imagegate/internal/service"
)

// SetupRoutes registers every route. An empty jwtSecret leaves the upload
// routes open; a nil metricsHandler disables /metrics.
func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	fieldName string,
	uploadPipeline *pipeline.Pipeline,
	uploadService service.UploadService,
	metricsHandler http.Handler,
) {
	uploadHandler := NewUploadHandler(uploadService, fieldName)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	// Authentication must run before validation so anonymous bodies are never written to disk.
	var guard []gin.HandlerFunc
	if jwtSecret != "" {
		guard = append(guard, AuthMiddleware(jwtSecret))
	}
	upload := append(append([]gin.HandlerFunc{}, guard...), ValidateUpload(uploadPipeline), uploadHandler.UploadFile)

	router.POST("/upload", upload...)

	apiV1 := router.Group("/api/v1")
	apiV1.Use(guard...)
	{
		apiV1.POST("/upload", ValidateUpload(uploadPipeline), uploadHandler.UploadFile)
		apiV1.GET("/uploads/:id", uploadHandler.GetUpload)
	}
}

package http

import (
	"os"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Englacial/ismip-indexing/internal/usecase"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(indexSvc *usecase.IndexService, querySvc *usecase.QueryService) *gin.Engine {

	router := gin.Default()

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()

	// Get allowed origins from environment variable.
	// Default to allow all origins if not specified.
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins != "" {
		corsConfig.AllowOrigins = strings.Split(allowedOrigins, ",")
	} else {
		corsConfig.AllowAllOrigins = true
	}

	router.Use(cors.New(corsConfig))

	// Create handler.
	handler := NewHandler(indexSvc, querySvc)

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.GET("/index", handler.GetIndex)
	v1.GET("/records", handler.GetRecords)
	v1.GET("/combinations", handler.GetCombinations)
	v1.GET("/fields", handler.GetField)
	v1.GET("/fields/steps", handler.GetFieldSteps)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}

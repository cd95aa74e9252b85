package router

import (
	"github.com/gin-gonic/gin"
	"github.com/itsannaw/word-complexity-api/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	healthHandler := handler.NewHealthHandler(deps)
	r.GET("/health", healthHandler.Health)

	// Initialize job handler
	jobHandler := handler.NewJobHandler(deps)

	registerJobRoutes(r.Group(""), jobHandler)

	// API v1 routes
	registerJobRoutes(r.Group("/api/v1"), jobHandler)

	return r
}

func registerJobRoutes(g *gin.RouterGroup, jobHandler *handler.JobHandler) {
	scores := g.Group("/complexity-score")
	{
		// POST /complexity-score - Submit words for scoring
		scores.POST("", jobHandler.SubmitJob)

		// GET /complexity-score/:job_id - Get job status and result
		scores.GET("/:job_id", jobHandler.GetJob)
	}
}

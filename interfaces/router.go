package interfaces

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the gin engine with the middleware chain the teacher's
// shared/pkg/middleware.go establishes (recovery, CORS, security
// headers) and mounts the one in-scope endpoint.
func NewRouter(loanHandler *LoanHandler, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.CustomRecoveryWithWriter(gin.DefaultWriter, func(c *gin.Context, err interface{}) {
		logger.Error("panic recovered", zap.Any("error", err))
		c.JSON(500, gin.H{"error": "internal server error"})
	}))
	router.Use(cors.Default())
	router.Use(securityHeaders())

	v1 := router.Group("/api/v1")
	{
		v1.POST("/loans/request", loanHandler.RequestLoan)
	}

	return router
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Next()
	}
}

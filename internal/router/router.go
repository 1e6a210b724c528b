// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/docmarket/backend/internal/config"
	"github.com/docmarket/backend/internal/handlers"
	"github.com/docmarket/backend/internal/middleware"
	"github.com/docmarket/backend/internal/repositories"
	"github.com/docmarket/backend/internal/services"
	"github.com/docmarket/backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize repositories
	transactionRepo := repositories.NewTransactionRepository(db)
	catalogRepo := repositories.NewCatalogRepository(db)

	// Initialize services
	gatewayClient := services.NewGatewayClient(cfg.Gateway)
	paymentService := services.NewPaymentService(transactionRepo, catalogRepo, gatewayClient, cfg)
	transactionService := services.NewTransactionService(db)
	authService := services.NewAuthService(db, cfg)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	transactionHandler := handlers.NewTransactionHandler(transactionService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
		}

		// Payment routes. The webhook is unauthenticated at the HTTP layer;
		// the payment service verifies the gateway's own credentials.
		payments := v1.Group("/payments")
		{
			payments.POST("/webhook", paymentHandler.Webhook)
			payments.POST("", middleware.AuthRequired(), paymentHandler.CreatePayment)
			payments.GET("/:id/status", middleware.AuthRequired(), paymentHandler.CheckStatus)
			payments.POST("/:id/cancel", middleware.AuthRequired(), paymentHandler.CancelPayment)
		}

		// Balance purchases and transaction history
		v1.POST("/purchases", middleware.AuthRequired(), transactionHandler.Purchase)
		v1.GET("/transactions", middleware.AuthRequired(), transactionHandler.GetHistory)

		// Admin reconciliation view
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/transactions", transactionHandler.ListAll)
		}
	}

	return r
}

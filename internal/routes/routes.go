package routes

import (
	"github.com/gin-gonic/gin"

	handler "wallet-topup-backend/internal/handlers"
)

func RegisterRoutes(r *gin.Engine, depositHandler *handler.DepositHandler) {
	api := r.Group("/api")

	// Health check
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Deposit routes
	deposits := api.Group("/deposits")
	deposits.POST("", depositHandler.CreateDeposit)
	deposits.GET("/:id", depositHandler.GetDeposit)

	// User routes
	api.GET("/users/:id/transactions", depositHandler.ListUserTransactions)

	// Admin routes
	admin := api.Group("/admin")
	admin.POST("/wallet/credit", depositHandler.AdminCredit)
	admin.GET("/notifications/review", depositHandler.ListReviewQueue)
}

package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/saichennu440/craft-store/controllers"
	"github.com/saichennu440/craft-store/middleware"
)

// RegisterPaymentRoutes wires the payment endpoints. redisClient may be nil,
// in which case initiation runs without Idempotency-Key replay.
func RegisterPaymentRoutes(r *gin.Engine, pc *controllers.PaymentController, redisClient *redis.Client) {
	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware())

	if redisClient != nil {
		payments.POST("/initiate", middleware.IdempotencyMiddleware(redisClient), pc.InitiatePayment)
	} else {
		payments.POST("/initiate", pc.InitiatePayment)
	}
	payments.GET("/result/:transactionId", pc.GetPayment)

	// The result page may poll verify without a session; the gateway webhook
	// is server-to-server. Neither carries user auth.
	r.GET("/payments/verify", pc.VerifyPayment)
	r.POST("/payments/verify", pc.VerifyPayment)
	r.POST("/payments/webhook", pc.GatewayWebhook)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

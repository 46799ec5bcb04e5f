package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/saichennu440/craft-store/gateway"
	"github.com/saichennu440/craft-store/models"
	"github.com/saichennu440/craft-store/repository"
	"github.com/saichennu440/craft-store/services"
)

// Initiator and Verifier are the service slices the HTTP layer depends on.
type Initiator interface {
	CreatePayment(ctx context.Context, req services.CreatePaymentRequest) (*services.CreatePaymentResult, error)
}

type Verifier interface {
	Verify(ctx context.Context, transactionID string) (*services.VerifyResult, error)
}

type PaymentController struct {
	Initiation   Initiator
	Verification Verifier
	Payments     repository.PaymentRepository
	Orders       repository.OrderRepository
	SaltKey      string
	Sandbox      bool
	Logger       *zap.Logger
}

// InitiatePayment creates a pending payment for an order and returns the
// checkout redirect URL.
func (pc *PaymentController) InitiatePayment(c *gin.Context) {
	var req services.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := pc.Initiation.CreatePayment(c.Request.Context(), req)
	if err != nil {
		pc.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"paymentUrl":    res.PaymentURL,
		"transactionId": res.TransactionID,
	})
}

type verifyRequest struct {
	TransactionID string `json:"transactionId"`
}

// VerifyPayment resolves a transaction to a terminal status. The result page
// calls it with a query parameter and may poll; webhook-style callers POST a
// JSON body instead.
func (pc *PaymentController) VerifyPayment(c *gin.Context) {
	transactionID := c.Query("transactionId")
	if transactionID == "" && c.Request.Method == http.MethodPost {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			transactionID = req.TransactionID
		}
	}
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "transactionId is required"})
		return
	}

	res, err := pc.Verification.Verify(c.Request.Context(), transactionID)
	if err != nil {
		pc.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": res.Success,
		"status":  res.Status,
		"message": res.Message,
	})
}

// GetPayment returns the payment with its order summary for the result page.
func (pc *PaymentController) GetPayment(c *gin.Context) {
	transactionID := c.Param("transactionId")

	payment, err := pc.Payments.GetByTransactionID(c.Request.Context(), transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "payment not found"})
			return
		}
		pc.respondError(c, err)
		return
	}

	var order *models.Order
	if o, err := pc.Orders.GetByID(c.Request.Context(), payment.OrderID); err == nil {
		order = o
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"payment": payment,
		"order":   order,
	})
}

// respondError maps the service error taxonomy onto HTTP statuses.
func (pc *PaymentController) respondError(c *gin.Context, err error) {
	var (
		validationErr  *services.ValidationError
		notFoundErr    *services.NotFoundError
		persistenceErr *services.PersistenceError
		authErr        *gateway.AuthError
		gatewayErr     *gateway.GatewayError
		transientErr   *gateway.TransientError
	)

	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		status = http.StatusNotFound
	case errors.As(err, &persistenceErr):
		status = http.StatusInternalServerError
	case errors.As(err, &authErr), errors.As(err, &gatewayErr):
		status = http.StatusBadGateway
	case errors.As(err, &transientErr):
		status = http.StatusServiceUnavailable
	}

	if status >= http.StatusInternalServerError {
		pc.Logger.Error("payment request failed", zap.Error(err))
	} else {
		pc.Logger.Warn("payment request rejected", zap.Error(err))
	}

	c.JSON(status, gin.H{"success": false, "error": err.Error()})
}

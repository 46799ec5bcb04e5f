package controllers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/saichennu440/craft-store/gateway"
)

// GatewayWebhook receives the provider's server-to-server callback. The
// payload is only trusted for its transaction id; the authoritative status is
// re-fetched through the verification service, which also makes the handler
// idempotent under the gateway's redelivery behavior.
func (pc *PaymentController) GatewayWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable body"})
		return
	}

	xVerify := c.GetHeader("X-VERIFY")
	if !pc.Sandbox {
		if xVerify == "" {
			pc.Logger.Warn("webhook missing X-VERIFY header")
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "X-VERIFY header missing"})
			return
		}
		if !gateway.VerifyWebhookSignature(body, xVerify, pc.SaltKey) {
			pc.Logger.Warn("webhook signature mismatch")
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid signature"})
			return
		}
	}

	transactionID := extractTransactionID(body)
	if transactionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "transaction id missing from webhook"})
		return
	}

	pc.Logger.Info("processing gateway webhook", zap.String("transaction_id", transactionID))

	res, err := pc.Verification.Verify(c.Request.Context(), transactionID)
	if err != nil {
		pc.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  res.Status,
		"message": "webhook processed",
	})
}

// extractTransactionID digs the correlation key out of the webhook payload.
// The provider has used several field names across API generations.
func extractTransactionID(body []byte) string {
	var payload struct {
		TransactionID         string `json:"transactionId"`
		MerchantTransactionID string `json:"merchantTransactionId"`
		Data                  struct {
			TransactionID         string `json:"transactionId"`
			MerchantTransactionID string `json:"merchantTransactionId"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	for _, candidate := range []string{
		payload.MerchantTransactionID,
		payload.TransactionID,
		payload.Data.MerchantTransactionID,
		payload.Data.TransactionID,
	} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

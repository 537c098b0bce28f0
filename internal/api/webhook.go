package api

import (
	"encoding/json"
	"net/http"

	"dairy_billing/internal/payments"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Headers the payment gateway sets on every webhook delivery.
const (
	HeaderGatewayTimestamp = "X-Gateway-Timestamp"
	HeaderGatewaySignature = "X-Gateway-Signature"
)

// SignatureVerifier checks a webhook delivery against the shared gateway
// secret.
type SignatureVerifier interface {
	VerifySignature(timestamp string, body []byte, signature string) bool
}

// PaymentWebhookHandler receives gateway notifications. The signature is
// checked over the raw bytes before the payload is parsed; anything
// unauthenticated is rejected without side effects. A non-200 response
// makes the gateway redeliver, so processing errors are surfaced, never
// swallowed.
func PaymentWebhookHandler(rec *payments.Reconciler, verifier SignatureVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
			return
		}
		timestamp := c.GetHeader(HeaderGatewayTimestamp)
		signature := c.GetHeader(HeaderGatewaySignature)
		if timestamp == "" || signature == "" || !verifier.VerifySignature(timestamp, body, signature) {
			logrus.WithFields(logrus.Fields{
				"ip": c.ClientIP(),
			}).Warn("Webhook rejected: bad signature")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook signature"})
			return
		}
		var evt payments.Event
		if err := json.Unmarshal(body, &evt); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook payload"})
			return
		}
		if err := rec.HandleNotification(c.Request.Context(), evt); err != nil {
			logrus.WithFields(logrus.Fields{
				"event":    evt.Type,
				"order_id": evt.Order.OrderID,
				"error":    err.Error(),
			}).Error("Webhook processing failed")
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxWebhookBodyBytes caps webhook payloads; provider events are a few KB.
const maxWebhookBodyBytes = 1 << 20

// HandleBillingWebhook accepts provider deliveries. Every verified event gets
// a 200, including ignored types and redeliveries, so the provider stops
// retrying things we have already settled.
func (s *Server) HandleBillingWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes+1))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if len(payload) == 0 || len(payload) > maxWebhookBodyBytes {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	outcome, err := s.ingress.Ingest(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"outcome":  string(outcome),
	})
}

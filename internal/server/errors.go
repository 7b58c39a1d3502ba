package server

import (
	"errors"
	"net/http"

	billingdomain "github.com/courtsidehq/courtside/internal/billing/domain"
	checkoutdomain "github.com/courtsidehq/courtside/internal/checkout/domain"
	identitydomain "github.com/courtsidehq/courtside/internal/identity/domain"
	reconciledomain "github.com/courtsidehq/courtside/internal/reconcile/domain"
	syncdomain "github.com/courtsidehq/courtside/internal/syncstate/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrTooManyRequests = errors.New("too_many_requests")
	ErrInternal        = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	case errors.Is(err, billingdomain.ErrInvalidSignature):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_signature",
			Message: "webhook signature verification failed",
		}
	case errors.Is(err, billingdomain.ErrInvalidPayload),
		errors.Is(err, billingdomain.ErrInvalidEvent):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_payload",
			Message: "payload could not be parsed",
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, checkoutdomain.ErrInvalidRequest):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "too_many_requests",
			Message: "rate limit exceeded",
		}
	case errors.Is(err, reconciledomain.ErrMissingCorrelation):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "missing_correlation",
			Message: "billing customer has no identity linkage",
		}
	case errors.Is(err, billingdomain.ErrProviderUnavailable):
		return http.StatusBadGateway, errorPayload{
			Type:    "provider_unavailable",
			Message: "billing provider request failed",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, syncdomain.ErrNotFound),
		errors.Is(err, billingdomain.ErrCustomerNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog labels handler errors for the request log line.
func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, billingdomain.ErrInvalidSignature):
		return "auth", "invalid_signature"
	case errors.Is(err, billingdomain.ErrInvalidPayload),
		errors.Is(err, billingdomain.ErrInvalidEvent),
		errors.Is(err, ErrInvalidRequest),
		errors.Is(err, checkoutdomain.ErrInvalidRequest):
		return "validation", "invalid_request"
	case errors.Is(err, ErrTooManyRequests):
		return "rate_limit", "too_many_requests"
	case errors.Is(err, reconciledomain.ErrMissingCorrelation):
		return "correlation", "missing_correlation"
	case errors.Is(err, billingdomain.ErrProviderUnavailable):
		return "upstream", "provider_unavailable"
	case errors.Is(err, identitydomain.ErrSyncExhausted),
		errors.Is(err, identitydomain.ErrSyncRejected):
		return "upstream", "identity_sync_failed"
	case errors.Is(err, ErrNotFound),
		errors.Is(err, syncdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return "not_found", "not_found"
	default:
		return "internal", "internal_error"
	}
}

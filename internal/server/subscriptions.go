package server

import (
	"net/http"
	"time"

	checkoutdomain "github.com/courtsidehq/courtside/internal/checkout/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) CreateSubscription(c *gin.Context) {
	var req checkoutdomain.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if s.checkoutLimiter.Enabled() {
		allowed, err := s.checkoutLimiter.Allow(c.Request.Context(), req.IdentityUserID)
		if err != nil {
			// A broken limiter must not block purchases.
			s.log.Warn("checkout rate limit check failed", zap.Error(err))
		} else if !allowed {
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(c.Request.Context(), "/api/subscriptions")
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
	}

	resp, err := s.checkoutSvc.CreateSubscription(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

type syncStateResponse struct {
	CustomerID         string     `json:"customer_id"`
	IdentityUserID     string     `json:"identity_user_id"`
	Plan               string     `json:"plan"`
	AppliedEventID     string     `json:"applied_event_id"`
	AppliedAt          time.Time  `json:"applied_at"`
	ProjectionSynced   bool       `json:"projection_synced"`
	ProjectionSyncedAt *time.Time `json:"projection_synced_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// GetSyncState is the operator view of a customer's entitlement state.
func (s *Server) GetSyncState(c *gin.Context) {
	rec, err := s.syncSvc.GetByCustomer(c.Request.Context(), c.Param("customerId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, syncStateResponse{
		CustomerID:         rec.CustomerID,
		IdentityUserID:     rec.IdentityUserID,
		Plan:               rec.AppliedPlan,
		AppliedEventID:     rec.AppliedEventID,
		AppliedAt:          rec.AppliedAt,
		ProjectionSynced:   rec.ProjectionSyncedAt != nil,
		ProjectionSyncedAt: rec.ProjectionSyncedAt,
		UpdatedAt:          rec.UpdatedAt,
	})
}

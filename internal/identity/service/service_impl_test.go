package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	identitydomain "github.com/courtsidehq/courtside/internal/identity/domain"
	"github.com/courtsidehq/courtside/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(baseURL string) *Service {
	return &Service{
		log:     zap.NewNop(),
		client:  &http.Client{Timeout: time.Second},
		baseURL: baseURL,
		secret:  "sk_identity_test",
		policy: identitydomain.RetryPolicy{
			InitialInterval: time.Millisecond,
			Multiplier:      2,
			MaxAttempts:     3,
		},
	}
}

func TestApplyPlanWritesMetadata(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	err := svc.ApplyPlan(context.Background(), "user_42", plan.TierPro)
	require.NoError(t, err)

	assert.Equal(t, "/v1/users/user_42/metadata", gotPath)
	assert.Equal(t, "Bearer sk_identity_test", gotAuth)
	assert.Equal(t, "pro", gotBody["public_metadata"]["plan"])
}

func TestApplyPlanRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	err := svc.ApplyPlan(context.Background(), "user_42", plan.TierPremium)
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestApplyPlanExhaustsRetryBudget(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	err := svc.ApplyPlan(context.Background(), "user_42", plan.TierPro)
	require.Error(t, err)
	assert.True(t, errors.Is(err, identitydomain.ErrSyncExhausted))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestApplyPlanDoesNotRetryRejections(t *testing.T) {
	var attempts atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	svc := newTestService(srv.URL)
	err := svc.ApplyPlan(context.Background(), "user_gone", plan.TierFree)
	require.Error(t, err)
	assert.True(t, errors.Is(err, identitydomain.ErrSyncRejected))
	assert.Equal(t, int32(1), attempts.Load())
}

func TestApplyPlanRejectsEmptyUserID(t *testing.T) {
	svc := newTestService("http://identity.invalid")
	err := svc.ApplyPlan(context.Background(), "  ", plan.TierPro)
	require.Error(t, err)
	assert.True(t, errors.Is(err, identitydomain.ErrSyncRejected))
}

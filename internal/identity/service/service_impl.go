package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/courtsidehq/courtside/internal/config"
	identitydomain "github.com/courtsidehq/courtside/internal/identity/domain"
	"github.com/courtsidehq/courtside/internal/plan"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log *zap.Logger
	Cfg config.Config
}

// Service writes the applied plan into the identity provider's public user
// metadata. The write is a plain overwrite, so repeating it is harmless.
type Service struct {
	log     *zap.Logger
	client  *http.Client
	baseURL string
	secret  string
	policy  identitydomain.RetryPolicy
}

func New(p Params) identitydomain.Synchronizer {
	return &Service{
		log:     p.Log.Named("identity.service"),
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: strings.TrimRight(p.Cfg.IdentityBaseURL, "/"),
		secret:  p.Cfg.IdentitySecretKey,
		policy:  identitydomain.DefaultRetryPolicy(),
	}
}

type metadataPatch struct {
	PublicMetadata map[string]string `json:"public_metadata"`
}

func (s *Service) ApplyPlan(ctx context.Context, identityUserID string, tier plan.Tier) error {
	identityUserID = strings.TrimSpace(identityUserID)
	if identityUserID == "" {
		return fmt.Errorf("%w: empty identity user id", identitydomain.ErrSyncRejected)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.policy.InitialInterval
	policy.Multiplier = s.policy.Multiplier
	policy.RandomizationFactor = 0

	attempt := 0
	operation := func() error {
		attempt++
		err := s.patchMetadata(ctx, identityUserID, tier)
		if err != nil {
			s.log.Warn("identity metadata write failed",
				zap.String("identity_user_id", identityUserID),
				zap.String("plan", string(tier)),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
		}
		return err
	}

	err := backoff.Retry(operation, backoff.WithMaxRetries(
		backoff.WithContext(policy, ctx),
		s.policy.MaxAttempts-1,
	))
	if err == nil {
		return nil
	}
	if errors.Is(err, identitydomain.ErrSyncRejected) {
		return err
	}
	return fmt.Errorf("%w: %v", identitydomain.ErrSyncExhausted, err)
}

func (s *Service) patchMetadata(ctx context.Context, identityUserID string, tier plan.Tier) error {
	body, err := json.Marshal(metadataPatch{
		PublicMetadata: map[string]string{"plan": string(tier)},
	})
	if err != nil {
		return backoff.Permanent(err)
	}

	endpoint := fmt.Sprintf("%s/v1/users/%s/metadata", s.baseURL, url.PathEscape(identityUserID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+s.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("identity request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("identity provider status %d", resp.StatusCode)
	default:
		// Client errors will not heal on retry.
		return backoff.Permanent(fmt.Errorf("%w: status %d", identitydomain.ErrSyncRejected, resp.StatusCode))
	}
}

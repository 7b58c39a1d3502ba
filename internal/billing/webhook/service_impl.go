// Package webhook ingests billing provider deliveries: verify, dedupe,
// then hand the fact to the reconciliation engine.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/courtsidehq/courtside/internal/billing/domain"
	"github.com/courtsidehq/courtside/internal/billing/stripe"
	"github.com/courtsidehq/courtside/internal/observability/metrics"
	reconciledomain "github.com/courtsidehq/courtside/internal/reconcile/domain"
	syncdomain "github.com/courtsidehq/courtside/internal/syncstate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Codec      *stripe.Codec
	Store      syncdomain.Store
	Reconciler reconciledomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	codec      *stripe.Codec
	store      syncdomain.Store
	reconciler reconciledomain.Service
	metrics    *metrics.Metrics
}

func NewService(p Params) billingdomain.Ingress {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.webhook"),
		genID:      p.GenID,
		codec:      p.Codec,
		store:      p.Store,
		reconciler: p.Reconciler,
		metrics:    p.Metrics,
	}
}

func (s *Service) Ingest(ctx context.Context, payload []byte, signatureHeader string) (billingdomain.IngestOutcome, error) {
	// Signature check runs over the raw bytes before any parsing.
	if err := s.codec.Verify(ctx, payload, signatureHeader); err != nil {
		s.recordEvent(ctx, "unknown", "rejected")
		return "", err
	}
	if !json.Valid(payload) {
		return "", billingdomain.ErrInvalidPayload
	}

	fact, err := s.codec.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, billingdomain.ErrEventIgnored) {
			s.recordEvent(ctx, "other", "ignored")
			return billingdomain.IngestIgnored, nil
		}
		return "", err
	}

	// Reserve before reconciling: redeliveries of an already-processed
	// event id stop here with no further side effects.
	fresh, err := s.store.ReserveEvent(ctx, s.db, &syncdomain.AppliedEvent{
		ID:         s.genID.Generate(),
		EventID:    fact.EventID,
		EventType:  fact.EventType,
		CustomerID: fact.CustomerID,
		Payload:    payload,
		ReceivedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	if !fresh {
		s.log.Debug("duplicate delivery dropped",
			zap.String("event_id", fact.EventID),
			zap.String("customer_id", fact.CustomerID),
		)
		s.recordEvent(ctx, fact.EventType, "duplicate")
		return billingdomain.IngestDuplicate, nil
	}

	outcome, err := s.reconciler.Reconcile(ctx, *fact)
	if err != nil {
		// Nothing was committed. Give the reservation back so the provider's
		// redelivery is not dropped as a duplicate while the record is still
		// missing the fact.
		if releaseErr := s.store.ReleaseEvent(ctx, s.db, fact.EventID); releaseErr != nil {
			s.log.Error("failed to release event reservation",
				zap.String("event_id", fact.EventID),
				zap.String("customer_id", fact.CustomerID),
				zap.Error(releaseErr),
			)
		}
		return "", err
	}

	switch outcome {
	case reconciledomain.OutcomeStale:
		s.recordEvent(ctx, fact.EventType, "stale")
		return billingdomain.IngestStale, nil
	default:
		s.recordEvent(ctx, fact.EventType, "applied")
		return billingdomain.IngestApplied, nil
	}
}

func (s *Service) recordEvent(ctx context.Context, eventType, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordWebhookEvent(ctx, eventType, outcome)
}

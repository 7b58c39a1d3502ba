package service

import (
	"context"
	"strings"

	"github.com/courtsidehq/courtside/internal/syncstate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Store
}

// Service exposes read access to sync records for operators.
type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Store
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("syncstate.service"),
		repo: p.Repo,
	}
}

// GetByCustomer returns the sync record for a billing customer.
func (s *Service) GetByCustomer(ctx context.Context, customerID string) (domain.SyncRecord, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.SyncRecord{}, domain.ErrNotFound
	}
	rec, err := s.repo.Current(ctx, s.db, customerID)
	if err != nil {
		return domain.SyncRecord{}, err
	}
	if rec == nil {
		return domain.SyncRecord{}, domain.ErrNotFound
	}
	return *rec, nil
}

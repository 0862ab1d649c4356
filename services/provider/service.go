package provider

import (
	"context"
	"time"

	"marketplace-ledger/pkg/db/option"
	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/logger"
	"marketplace-ledger/pkg/repository"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db        *gorm.DB
	providers repository.Repository[Provider]
	now       func() time.Time
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		providers: repository.ProvideStore[Provider](p.DB),
		now:       time.Now,
	}
}

// Ensure returns the provider row, creating an unverified one if needed.
func (s *Service) Ensure(ctx context.Context, providerID string) (*Provider, error) {
	return s.ensure(ctx, s.db, providerID)
}

func (s *Service) ensure(ctx context.Context, tx *gorm.DB, providerID string) (*Provider, error) {
	if providerID == "" {
		return nil, errutil.BadRequest("provider id is required", nil)
	}

	row := &Provider{ID: providerID}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error; err != nil {
		return nil, err
	}

	return s.providers.WithTrx(tx).FindOne(ctx, &Provider{ID: providerID})
}

// Lock takes a row lock on the provider inside tx. All reservations for a
// provider serialize on this row.
func (s *Service) Lock(ctx context.Context, tx *gorm.DB, providerID string) error {
	if _, err := s.ensure(ctx, tx, providerID); err != nil {
		return err
	}
	_, err := s.providers.WithTrx(tx).FindOne(ctx, &Provider{ID: providerID}, option.WithLockingUpdate())
	return err
}

func (s *Service) IsVerified(ctx context.Context, providerID string) (bool, error) {
	p, err := s.providers.FindOne(ctx, &Provider{ID: providerID})
	if err != nil {
		return false, err
	}
	return p != nil && p.Verified, nil
}

func (s *Service) SetVerification(ctx context.Context, providerID string, verified bool, actor string) (*Provider, error) {
	if _, err := s.Ensure(ctx, providerID); err != nil {
		return nil, err
	}

	updates := map[string]any{
		"verified":    verified,
		"verified_by": actor,
		"verified_at": nil,
	}
	if verified {
		updates["verified_at"] = s.now().UTC()
	}

	if err := s.providers.Update(ctx, providerID, updates); err != nil {
		logger.FromContext(ctx).Error("failed to update provider verification",
			zap.String("provider_id", providerID), zap.Error(err))
		return nil, errutil.Internal("failed to update provider", err)
	}

	zap.L().Info("provider verification changed",
		zap.String("provider_id", providerID),
		zap.Bool("verified", verified),
		zap.String("actor", actor),
	)

	return s.providers.FindOne(ctx, &Provider{ID: providerID})
}

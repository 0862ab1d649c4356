package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"marketplace-ledger/pkg/config"
	"marketplace-ledger/pkg/db/option"
	"marketplace-ledger/pkg/db/pagination"
	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/featureflags"
	"marketplace-ledger/pkg/logger"
	"marketplace-ledger/pkg/repository"
	"marketplace-ledger/services/provider"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	cfg       *config.Config
	flags     featureflags.FeatureFlag
	providers *provider.Service

	earnings repository.Repository[Earning]
	payouts  repository.Repository[Payout]

	now func() time.Time
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Config    *config.Config
	Flags     featureflags.FeatureFlag
	Providers *provider.Service
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:        p.DB,
		node:      p.Node,
		cfg:       p.Config,
		flags:     p.Flags,
		providers: p.Providers,

		earnings: repository.ProvideStore[Earning](p.DB),
		payouts:  repository.ProvideStore[Payout](p.DB),

		now: time.Now,
	}
}

// DefaultCurrency is used when a request does not name one.
func (s *Service) DefaultCurrency() string {
	return s.cfg.Ledger.Currency
}

type RecordEarningRequest struct {
	ProviderID  string
	BookingID   string
	GrossAmount decimal.Decimal
	// PlatformFee defaults to LEDGER_COMMISSION_RATE of the gross amount.
	PlatformFee *decimal.Decimal
	Currency    string
	Metadata    map[string]any
}

// RecordEarning books a provider's share of a confirmed booking payment.
// Recording the same booking twice returns the first earning.
func (s *Service) RecordEarning(ctx context.Context, req RecordEarningRequest) (*Earning, error) {
	log := logger.FromContext(ctx).With(
		zap.String("provider_id", req.ProviderID),
		zap.String("booking_id", req.BookingID),
	)

	if req.ProviderID == "" || req.BookingID == "" {
		return nil, errutil.ValidationFailed("provider_id and booking_id are required", nil)
	}
	if !req.GrossAmount.IsPositive() {
		return nil, errutil.ValidationFailed("gross amount must be positive", nil)
	}

	fee := req.GrossAmount.Mul(decimal.NewFromFloat(s.cfg.Ledger.CommissionRate)).Round(2)
	if req.PlatformFee != nil {
		fee = *req.PlatformFee
	}
	if fee.IsNegative() || fee.GreaterThan(req.GrossAmount) {
		return nil, errutil.ValidationFailed("platform fee must be between zero and the gross amount", nil)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.DefaultCurrency()
	}

	existing, err := s.earnings.FindOne(ctx, &Earning{ProviderID: req.ProviderID, BookingID: req.BookingID})
	if err != nil {
		log.Error("failed to look up earning", zap.Error(err))
		return nil, errutil.Internal("failed to record earning", err)
	}
	if existing != nil {
		return existing, nil
	}

	if _, err := s.providers.Ensure(ctx, req.ProviderID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	earning := &Earning{
		ID:          s.node.Generate().String(),
		ProviderID:  req.ProviderID,
		BookingID:   req.BookingID,
		GrossAmount: req.GrossAmount,
		PlatformFee: fee,
		Amount:      req.GrossAmount.Sub(fee),
		Currency:    currency,
		Status:      EarningPendingClearance,
	}
	if s.cfg.Ledger.ClearancePeriod <= 0 {
		earning.Status = EarningAvailable
		earning.ClearedAt = &now
	}
	if len(req.Metadata) > 0 {
		b, err := json.Marshal(req.Metadata)
		if err != nil {
			return nil, errutil.ValidationFailed("metadata must be a JSON object", err)
		}
		earning.Metadata = datatypes.JSON(b)
	}

	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(earning)
	if res.Error != nil {
		log.Error("failed to create earning", zap.Error(res.Error))
		return nil, errutil.Internal("failed to record earning", res.Error)
	}
	if res.RowsAffected == 0 {
		// lost a race with a concurrent delivery of the same booking
		return s.earnings.FindOne(ctx, &Earning{ProviderID: req.ProviderID, BookingID: req.BookingID})
	}

	log.Info("earning recorded",
		zap.String("earning_id", earning.ID),
		zap.String("amount", earning.Amount.StringFixed(2)),
		zap.String("status", string(earning.Status)),
	)

	return earning, nil
}

// ClearDueEarnings makes every earning older than the clearance period spendable.
func (s *Service) ClearDueEarnings(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	cutoff := now.Add(-s.cfg.Ledger.ClearancePeriod)

	n, err := s.earnings.UpdateWhere(ctx,
		map[string]any{
			"status":     EarningAvailable,
			"cleared_at": now,
		},
		option.ApplyOperator(
			option.Condition{Field: "status", Operator: option.EQ, Value: EarningPendingClearance},
			option.Condition{Field: "created_at", Operator: option.LTE, Value: cutoff},
		),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to clear earnings", zap.Error(err))
		return 0, err
	}

	clearedEarningsTotal.Add(float64(n))
	return n, nil
}

// FreezeEarning pulls an unreserved earning out of circulation for moderation.
func (s *Service) FreezeEarning(ctx context.Context, earningID, reason string) (*Earning, error) {
	n, err := s.earnings.UpdateWhere(ctx,
		map[string]any{
			"status":        EarningFrozen,
			"frozen_at":     s.now().UTC(),
			"frozen_reason": reason,
		},
		option.ApplyOperator(
			option.Condition{Field: "id", Operator: option.EQ, Value: earningID},
			option.Condition{Field: "status", Operator: option.IN, Value: []string{string(EarningPendingClearance), string(EarningAvailable)}},
			option.Condition{Field: "payout_id", Operator: option.IsNull},
		),
	)
	if err != nil {
		return nil, errutil.Internal("failed to freeze earning", err)
	}

	earning, err := s.GetEarning(ctx, earningID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, InvalidTransition("earning cannot be frozen from status " + string(earning.Status))
	}

	zap.L().Info("earning frozen", zap.String("earning_id", earningID), zap.String("reason", reason))
	return earning, nil
}

func (s *Service) GetEarning(ctx context.Context, earningID string) (*Earning, error) {
	earning, err := s.earnings.FindOne(ctx, &Earning{ID: earningID})
	if err != nil {
		return nil, errutil.Internal("failed to load earning", err)
	}
	if earning == nil {
		return nil, errutil.NotFound("earning not found", nil)
	}
	return earning, nil
}

type ListEarningsFilter struct {
	Status EarningStatus
	Cursor string
	Limit  int
}

func (s *Service) ListEarnings(ctx context.Context, providerID string, f ListEarningsFilter) ([]*Earning, pagination.PageInfo, error) {
	limit := pagination.Normalize(f.Limit)

	var cursor *pagination.Cursor
	if f.Cursor != "" {
		c, err := pagination.DecodeCursor(f.Cursor)
		if err != nil {
			return nil, pagination.PageInfo{}, errutil.ValidationFailed("invalid cursor", err)
		}
		cursor = c
	}

	rows, err := s.earnings.Find(ctx, &Earning{ProviderID: providerID, Status: f.Status},
		option.ApplyPagination(cursor, limit))
	if err != nil {
		return nil, pagination.PageInfo{}, errutil.Internal("failed to list earnings", err)
	}

	return pagination.BuildCursorPageInfo(rows, limit, func(e *Earning) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
}

// snapshotOptions asks for a repeatable read where the dialect supports it.
func snapshotOptions(db *gorm.DB) []*sql.TxOptions {
	switch db.Dialector.Name() {
	case "postgres", "mysql":
		return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
	default:
		return nil
	}
}

package payout

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"marketplace-ledger/pkg/config"
	"marketplace-ledger/pkg/db/option"
	"marketplace-ledger/pkg/db/pagination"
	"marketplace-ledger/pkg/errutil"
	"marketplace-ledger/pkg/logger"
	"marketplace-ledger/pkg/repository"
	"marketplace-ledger/pkg/sequence"
	"marketplace-ledger/pkg/task"
	"marketplace-ledger/pkg/validation"
	"marketplace-ledger/services/ledger"
	"marketplace-ledger/services/provider"
	"marketplace-ledger/services/risk"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MessageProcessing  = "Payout approved and is being processed"
	MessageUnderReview = "Payout request submitted and is under review"
)

type CreatePayoutRequest struct {
	Amount          decimal.Decimal `json:"amount" binding:"required,gt=0"`
	Currency        string          `json:"currency" binding:"omitempty,len=3,alpha"`
	AccountNumber   string          `json:"account_number" binding:"required,numeric,min=6,max=20"`
	AccountName     string          `json:"account_name" binding:"required,max=200"`
	BankCode        string          `json:"bank_code" binding:"required,max=20"`
	BankName        string          `json:"bank_name" binding:"required,max=200"`
	PaymentProvider string          `json:"payment_provider" binding:"required,oneof=paystack flutterwave bank_transfer"`
}

type Result struct {
	Payout  *ledger.Payout `json:"payout"`
	Message string         `json:"message"`
}

// Actor is whoever asks for a state change. Providers act on their own
// payouts only.
type Actor struct {
	ID         string
	ProviderID string
	Admin      bool
}

type Service struct {
	db        *gorm.DB
	node      *snowflake.Node
	cfg       *config.Config
	ledger    *ledger.Service
	providers *provider.Service
	assessor  *risk.Assessor
	enqueuer  task.Enqueuer
	seq       sequence.Generator
	validate  *validator.Validate

	payouts repository.Repository[ledger.Payout]

	now func() time.Time
}

type ServiceParams struct {
	fx.In
	DB        *gorm.DB
	Node      *snowflake.Node
	Config    *config.Config
	Ledger    *ledger.Service
	Providers *provider.Service
	Enqueuer  task.Enqueuer
	Sequence  sequence.Generator `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	payouts := repository.ProvideStore[ledger.Payout](p.DB)
	return &Service{
		db:        p.DB,
		node:      p.Node,
		cfg:       p.Config,
		ledger:    p.Ledger,
		providers: p.Providers,
		assessor:  risk.NewAssessor(&history{providers: p.Providers, payouts: payouts}, risk.ConfigFrom(p.Config)),
		enqueuer:  p.Enqueuer,
		seq:       p.Sequence,
		validate:  validation.New(),

		payouts: payouts,

		now: time.Now,
	}
}

// CreatePayoutRequest checks the balance, records the payout and either
// starts processing it or leaves it for review depending on its risk.
func (s *Service) CreatePayoutRequest(ctx context.Context, providerID string, req CreatePayoutRequest) (*Result, error) {
	log := logger.FromContext(ctx).With(zap.String("provider_id", providerID))

	if err := s.validateRequest(&req); err != nil {
		return nil, err
	}
	if _, err := s.providers.Ensure(ctx, providerID); err != nil {
		return nil, asServiceError(err, "failed to load provider")
	}

	// Advisory only. The reservation re-checks under the provider lock.
	balance, err := s.ledger.GetAvailableBalance(ctx, providerID, req.Currency)
	if err != nil {
		return nil, err
	}
	if balance.AvailableBalance.LessThan(req.Amount) {
		payoutsTotal.WithLabelValues("insufficient_balance").Inc()
		log.Info("payout rejected, insufficient balance",
			zap.String("amount", req.Amount.StringFixed(2)),
			zap.String("available", balance.AvailableBalance.StringFixed(2)))
		return nil, insufficientBalance()
	}

	payout, err := s.newPayout(ctx, providerID, req)
	if err != nil {
		return nil, err
	}
	if err := s.payouts.Create(ctx, payout); err != nil {
		log.Error("failed to create payout", zap.Error(err))
		return nil, errutil.Internal("failed to create payout", err)
	}
	log = log.With(zap.String("payout_id", payout.ID), zap.String("reference", payout.Reference))

	assessment, err := s.assessor.AssessPayoutRisk(ctx, providerID, req.Amount)
	if err != nil {
		log.Error("risk assessment failed, payout left for review", zap.Error(err))
		return nil, errutil.Internal("failed to assess payout risk", err)
	}

	factors, err := json.Marshal(assessment.RiskFactors)
	if err != nil {
		return nil, errutil.Internal("failed to encode risk factors", err)
	}
	if err := s.payouts.Update(ctx, payout.ID, map[string]any{"risk_factors": datatypes.JSON(factors)}); err != nil {
		log.Error("failed to store risk factors", zap.Error(err))
		return nil, errutil.Internal("failed to update payout", err)
	}
	payout.RiskFactors = factors

	if !assessment.AutoApprove {
		payoutsTotal.WithLabelValues("review").Inc()
		log.Info("payout held for review", zap.Any("risk_factors", assessment.RiskFactors))
		return &Result{Payout: payout, Message: MessageUnderReview}, nil
	}

	payout, err = s.process(ctx, payout, "")
	if err != nil {
		payoutsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	payoutsTotal.WithLabelValues("auto_approved").Inc()
	return &Result{Payout: payout, Message: MessageProcessing}, nil
}

func (s *Service) validateRequest(req *CreatePayoutRequest) error {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = s.ledger.DefaultCurrency()
	}
	if err := s.validate.Struct(req); err != nil {
		return validation.Error("invalid payout request", err)
	}

	if limit := s.cfg.Payout.MaxAmount; limit > 0 && req.Amount.GreaterThan(decimal.NewFromFloat(limit)) {
		return errutil.ValidationFailed("amount exceeds the maximum payout", nil,
			errutil.WithReason(ReasonAmountTooLarge),
			errutil.WithDetails(errutil.Detail{Field: "amount", Message: "must be at most " + decimal.NewFromFloat(limit).String()}))
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return errutil.ValidationFailed("amount has more than two decimal places", nil,
			errutil.WithDetails(errutil.Detail{Field: "amount", Message: "must have at most 2 decimal places"}))
	}
	return nil
}

func (s *Service) newPayout(ctx context.Context, providerID string, req CreatePayoutRequest) (*ledger.Payout, error) {
	id := s.node.Generate().String()

	reference := "PO-" + id
	if s.seq != nil {
		ref, err := s.seq.NextPayoutReference(ctx)
		if err != nil {
			logger.FromContext(ctx).Warn("payout reference sequence unavailable, using id", zap.Error(err))
		} else {
			reference = ref
		}
	}

	return &ledger.Payout{
		ID:         id,
		Reference:  reference,
		ProviderID: providerID,
		Amount:     req.Amount,
		Currency:   req.Currency,
		Status:     ledger.PayoutRequested,
		BankDetails: ledger.BankDetails{
			AccountNumber:   req.AccountNumber,
			AccountName:     req.AccountName,
			BankCode:        req.BankCode,
			BankName:        req.BankName,
			PaymentProvider: req.PaymentProvider,
		},
		RiskFactors: datatypes.JSON("[]"),
	}, nil
}

// process moves a REQUESTED payout to PROCESSING, reserves its earnings and
// queues the disbursement. Whatever fails, the payout never stays PROCESSING
// without a queued job.
func (s *Service) process(ctx context.Context, payout *ledger.Payout, reviewer string) (*ledger.Payout, error) {
	log := logger.FromContext(ctx).With(zap.String("payout_id", payout.ID), zap.String("provider_id", payout.ProviderID))

	var reserveErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":       ledger.PayoutProcessing,
			"processed_at": s.now().UTC(),
		}
		if reviewer != "" {
			updates["reviewed_by"] = reviewer
		}
		if err := s.transitionTx(ctx, tx, payout.ID, []ledger.PayoutStatus{ledger.PayoutRequested}, updates); err != nil {
			return err
		}

		_, err := s.ledger.ReserveEarningsForPayoutTx(ctx, tx, payout.ProviderID, payout.ID, payout.Amount, payout.Currency)
		if errors.Is(err, ledger.ErrInsufficientEarnings) {
			// The payout row stays and records why it failed.
			reserveErr = err
			return s.failTx(ctx, tx, payout.ID, "insufficient earnings to cover the payout amount")
		}
		return err
	})
	if err != nil {
		return nil, asServiceError(err, "failed to process payout")
	}
	if reserveErr != nil {
		log.Warn("reservation lost the race with another payout", zap.Error(reserveErr))
		return nil, reserveErr
	}
	transitionsTotal.WithLabelValues(string(ledger.PayoutProcessing)).Inc()

	current, err := s.payouts.FindOne(ctx, &ledger.Payout{ID: payout.ID})
	if err != nil || current == nil {
		current = payout
		current.Status = ledger.PayoutProcessing
	}

	if err := s.enqueue(ctx, current); err != nil {
		log.Error("failed to enqueue payout job, releasing earnings", zap.Error(err))
		if cerr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.failTx(ctx, tx, payout.ID, "payout job could not be queued")
		}); cerr != nil {
			log.Error("compensating release failed", zap.Error(cerr))
			return nil, errutil.Internal("failed to release reserved earnings", errors.Join(err, cerr))
		}
		return nil, queueUnavailable(err)
	}

	log.Info("payout processing", zap.String("amount", current.Amount.StringFixed(2)))
	return current, nil
}

func (s *Service) enqueue(ctx context.Context, payout *ledger.Payout) error {
	t, err := NewProcessTask(NewProcessPayload(payout), s.cfg.Payout.Queue, s.cfg.Payout.MaxRetry)
	if err != nil {
		return err
	}
	_, err = s.enqueuer.Enqueue(ctx, t)
	return err
}

// transitionTx moves a payout out of one of the from states. The update is
// conditional so a concurrent transition makes this one fail.
func (s *Service) transitionTx(ctx context.Context, tx *gorm.DB, payoutID string, from []ledger.PayoutStatus, updates map[string]any) error {
	states := make([]string, 0, len(from))
	for _, st := range from {
		states = append(states, string(st))
	}

	repo := s.payouts.WithTrx(tx)
	n, err := repo.UpdateWhere(ctx, updates, option.ApplyOperator(
		option.Condition{Field: "id", Operator: option.EQ, Value: payoutID},
		option.Condition{Field: "status", Operator: option.IN, Value: states},
	))
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	current, err := repo.FindOne(ctx, &ledger.Payout{ID: payoutID})
	if err != nil {
		return err
	}
	if current == nil {
		return errutil.NotFound("payout not found", nil)
	}
	return ledger.InvalidTransition("payout cannot move to " + statusOf(updates) + " from " + string(current.Status))
}

// failTx marks a PROCESSING payout FAILED and releases its earnings.
func (s *Service) failTx(ctx context.Context, tx *gorm.DB, payoutID, reason string) error {
	err := s.transitionTx(ctx, tx, payoutID, []ledger.PayoutStatus{ledger.PayoutProcessing}, map[string]any{
		"status":         ledger.PayoutFailed,
		"failure_reason": reason,
		"failed_at":      s.now().UTC(),
	})
	if err != nil {
		return err
	}
	if _, err := s.ledger.ReleaseEarningsTx(ctx, tx, payoutID); err != nil {
		return err
	}
	transitionsTotal.WithLabelValues(string(ledger.PayoutFailed)).Inc()
	return nil
}

// ApprovePayout is the manual path for a payout held for review.
func (s *Service) ApprovePayout(ctx context.Context, payoutID, adminID string) (*ledger.Payout, error) {
	payout, err := s.GetPayout(ctx, "", payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != ledger.PayoutRequested {
		return nil, ledger.InvalidTransition("only REQUESTED payouts can be approved, payout is " + string(payout.Status))
	}

	zap.L().Info("payout approved", zap.String("payout_id", payoutID), zap.String("admin_id", adminID))
	return s.process(ctx, payout, adminID)
}

// CancelPayout cancels a payout and returns any reserved earnings.
func (s *Service) CancelPayout(ctx context.Context, payoutID string, actor Actor) (*ledger.Payout, error) {
	owner := actor.ProviderID
	if actor.Admin {
		owner = ""
	}
	payout, err := s.GetPayout(ctx, owner, payoutID)
	if err != nil {
		return nil, err
	}

	from := []ledger.PayoutStatus{ledger.PayoutRequested}
	if actor.Admin {
		from = append(from, ledger.PayoutProcessing)
	}

	var released int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.transitionTx(ctx, tx, payout.ID, from, map[string]any{
			"status":       ledger.PayoutCancelled,
			"cancelled_at": s.now().UTC(),
			"reviewed_by":  actor.ID,
		})
		if err != nil {
			return err
		}
		released, err = s.ledger.ReleaseEarningsTx(ctx, tx, payout.ID)
		return err
	})
	if err != nil {
		return nil, asServiceError(err, "failed to cancel payout")
	}

	transitionsTotal.WithLabelValues(string(ledger.PayoutCancelled)).Inc()
	zap.L().Info("payout cancelled",
		zap.String("payout_id", payout.ID),
		zap.String("actor", actor.ID),
		zap.Bool("admin", actor.Admin),
		zap.Int64("released", released),
	)
	return s.GetPayout(ctx, "", payout.ID)
}

// CompletePayout records a successful disbursement. Completing an already
// completed payout is a no-op.
func (s *Service) CompletePayout(ctx context.Context, payoutID, providerRef string) (*ledger.Payout, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.transitionTx(ctx, tx, payoutID, []ledger.PayoutStatus{ledger.PayoutProcessing}, map[string]any{
			"status":             ledger.PayoutCompleted,
			"provider_reference": providerRef,
			"completed_at":       s.now().UTC(),
		})
	})
	if err != nil {
		if current, ok := s.alreadyIn(ctx, payoutID, ledger.PayoutCompleted); ok {
			return current, nil
		}
		return nil, asServiceError(err, "failed to complete payout")
	}

	transitionsTotal.WithLabelValues(string(ledger.PayoutCompleted)).Inc()
	zap.L().Info("payout completed", zap.String("payout_id", payoutID), zap.String("provider_reference", providerRef))
	return s.GetPayout(ctx, "", payoutID)
}

// FailPayout records a failed disbursement and releases the earnings.
// Failing an already failed payout is a no-op.
func (s *Service) FailPayout(ctx context.Context, payoutID, reason string) (*ledger.Payout, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.failTx(ctx, tx, payoutID, reason)
	})
	if err != nil {
		if current, ok := s.alreadyIn(ctx, payoutID, ledger.PayoutFailed); ok {
			return current, nil
		}
		return nil, asServiceError(err, "failed to fail payout")
	}

	zap.L().Warn("payout failed", zap.String("payout_id", payoutID), zap.String("reason", reason))
	return s.GetPayout(ctx, "", payoutID)
}

func (s *Service) alreadyIn(ctx context.Context, payoutID string, status ledger.PayoutStatus) (*ledger.Payout, bool) {
	current, err := s.payouts.FindOne(ctx, &ledger.Payout{ID: payoutID})
	if err != nil || current == nil {
		return nil, false
	}
	return current, current.Status == status
}

// GetPayout loads a payout. A non-empty providerID scopes the lookup to that
// provider; someone else's payout is reported as not found.
func (s *Service) GetPayout(ctx context.Context, providerID, payoutID string) (*ledger.Payout, error) {
	if payoutID == "" {
		return nil, errutil.NotFound("payout not found", nil)
	}
	payout, err := s.payouts.FindOne(ctx, &ledger.Payout{ID: payoutID, ProviderID: providerID})
	if err != nil {
		return nil, errutil.Internal("failed to load payout", err)
	}
	if payout == nil {
		return nil, errutil.NotFound("payout not found", nil)
	}
	return payout, nil
}

type ListFilter struct {
	Status ledger.PayoutStatus
	Cursor string
	Limit  int
}

// View is a payout with the earnings it holds.
type View struct {
	*ledger.Payout
	Reserved ledger.ReservedSummary `json:"reserved_earnings"`
}

func (s *Service) ListPayouts(ctx context.Context, providerID string, f ListFilter) ([]*View, pagination.PageInfo, error) {
	limit := pagination.Normalize(f.Limit)

	var cursor *pagination.Cursor
	if f.Cursor != "" {
		c, err := pagination.DecodeCursor(f.Cursor)
		if err != nil {
			return nil, pagination.PageInfo{}, errutil.ValidationFailed("invalid cursor", err)
		}
		cursor = c
	}

	rows, err := s.payouts.Find(ctx, &ledger.Payout{ProviderID: providerID, Status: f.Status},
		option.ApplyPagination(cursor, limit))
	if err != nil {
		return nil, pagination.PageInfo{}, errutil.Internal("failed to list payouts", err)
	}

	rows, page, err := pagination.BuildCursorPageInfo(rows, limit, func(p *ledger.Payout) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	if err != nil {
		return nil, pagination.PageInfo{}, errutil.Internal("failed to build page", err)
	}

	ids := make([]string, 0, len(rows))
	for _, p := range rows {
		ids = append(ids, p.ID)
	}
	summaries, err := s.ledger.ReservedSummaries(ctx, ids)
	if err != nil {
		return nil, pagination.PageInfo{}, errutil.Internal("failed to summarize reserved earnings", err)
	}

	views := make([]*View, 0, len(rows))
	for _, p := range rows {
		summary, ok := summaries[p.ID]
		if !ok {
			summary = ledger.ReservedSummary{PayoutID: p.ID, Total: decimal.Zero}
		}
		views = append(views, &View{Payout: p, Reserved: summary})
	}
	return views, page, nil
}

// ListPayoutsForReview returns REQUESTED payouts, oldest first.
func (s *Service) ListPayoutsForReview(ctx context.Context, limit int) ([]*ledger.Payout, error) {
	rows, err := s.payouts.Find(ctx, &ledger.Payout{Status: ledger.PayoutRequested},
		option.WithSortBy(
			option.QuerySortBy{SortBy: "created_at", OrderBy: "asc"},
			option.QuerySortBy{SortBy: "id", OrderBy: "asc"},
		),
		option.WithLimit(pagination.Normalize(limit)),
	)
	if err != nil {
		return nil, errutil.Internal("failed to list payouts for review", err)
	}
	return rows, nil
}

func statusOf(updates map[string]any) string {
	if st, ok := updates["status"].(ledger.PayoutStatus); ok {
		return string(st)
	}
	return "?"
}

// asServiceError keeps domain errors and hides everything else behind an
// internal error.
func asServiceError(err error, msg string) error {
	var be errutil.BaseError
	if errors.As(err, &be) {
		return err
	}
	return errutil.Internal(msg, err)
}

func (s *Service) GetPayoutByReference(ctx context.Context, reference string) (*ledger.Payout, error) {
	if reference == "" {
		return nil, errutil.NotFound("payout not found", nil)
	}
	payout, err := s.payouts.FindOne(ctx, &ledger.Payout{Reference: reference})
	if err != nil {
		return nil, errutil.Internal("failed to load payout", err)
	}
	if payout == nil {
		return nil, errutil.NotFound("payout not found", nil)
	}
	return payout, nil
}

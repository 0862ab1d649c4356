package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type EarningStatus string

const (
	EarningPendingClearance EarningStatus = "PENDING_CLEARANCE"
	EarningAvailable        EarningStatus = "AVAILABLE"
	EarningPaidOut          EarningStatus = "PAID_OUT"
	EarningFrozen           EarningStatus = "FROZEN"
)

type PayoutStatus string

const (
	PayoutRequested  PayoutStatus = "REQUESTED"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutCompleted  PayoutStatus = "COMPLETED"
	PayoutFailed     PayoutStatus = "FAILED"
	PayoutCancelled  PayoutStatus = "CANCELLED"
)

// InFlight reports whether the payout still counts against pending payouts.
func (s PayoutStatus) InFlight() bool {
	return s == PayoutRequested || s == PayoutProcessing
}

func (s PayoutStatus) Valid() bool {
	switch s {
	case PayoutRequested, PayoutProcessing, PayoutCompleted, PayoutFailed, PayoutCancelled:
		return true
	}
	return false
}

// Earning is a provider's net share of one booking payment. A reserved
// earning is PAID_OUT with PayoutID set; an AVAILABLE one never has PayoutID.
type Earning struct {
	ID           string          `gorm:"column:id;primaryKey" json:"id"`
	ProviderID   string          `gorm:"column:provider_id;not null;uniqueIndex:idx_earnings_provider_booking;index:idx_earnings_provider_status" json:"provider_id"`
	BookingID    string          `gorm:"column:booking_id;not null;uniqueIndex:idx_earnings_provider_booking" json:"booking_id"`
	GrossAmount  decimal.Decimal `gorm:"column:gross_amount;type:numeric(14,2);not null" json:"gross_amount"`
	PlatformFee  decimal.Decimal `gorm:"column:platform_fee;type:numeric(14,2);not null" json:"platform_fee"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Currency     string          `gorm:"column:currency;size:3;not null" json:"currency"`
	Status       EarningStatus   `gorm:"column:status;size:32;not null;index:idx_earnings_provider_status" json:"status"`
	ClearedAt    *time.Time      `gorm:"column:cleared_at" json:"cleared_at,omitempty"`
	PayoutID     *string         `gorm:"column:payout_id;index" json:"payout_id,omitempty"`
	FrozenAt     *time.Time      `gorm:"column:frozen_at" json:"frozen_at,omitempty"`
	FrozenReason string          `gorm:"column:frozen_reason" json:"frozen_reason,omitempty"`
	Metadata     datatypes.JSON  `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (Earning) TableName() string { return "earnings" }

// BankDetails is where a payout is sent.
type BankDetails struct {
	AccountNumber   string `gorm:"column:account_number;not null" json:"account_number"`
	AccountName     string `gorm:"column:account_name;not null" json:"account_name"`
	BankCode        string `gorm:"column:bank_code;not null" json:"bank_code"`
	BankName        string `gorm:"column:bank_name;not null" json:"bank_name"`
	PaymentProvider string `gorm:"column:payment_provider;not null" json:"payment_provider"`
}

// Payout is append-only. Terminal payouts keep their row; only earnings move.
type Payout struct {
	ID         string          `gorm:"column:id;primaryKey" json:"id"`
	Reference  string          `gorm:"column:reference;uniqueIndex" json:"reference"`
	ProviderID string          `gorm:"column:provider_id;not null;index:idx_payouts_provider_status" json:"provider_id"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Currency   string          `gorm:"column:currency;size:3;not null" json:"currency"`
	Status     PayoutStatus    `gorm:"column:status;size:32;not null;index:idx_payouts_provider_status" json:"status"`

	BankDetails

	RiskFactors       datatypes.JSON `gorm:"column:risk_factors" json:"risk_factors"`
	FailureReason     string         `gorm:"column:failure_reason" json:"failure_reason,omitempty"`
	ReviewedBy        string         `gorm:"column:reviewed_by" json:"reviewed_by,omitempty"`
	ProviderReference string         `gorm:"column:provider_reference" json:"provider_reference,omitempty"`
	ProcessedAt       *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CompletedAt       *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`
	FailedAt          *time.Time     `gorm:"column:failed_at" json:"failed_at,omitempty"`
	CancelledAt       *time.Time     `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt         time.Time      `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt         time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (Payout) TableName() string { return "payouts" }

// Factors decodes RiskFactors.
func (p *Payout) Factors() ([]string, error) {
	out := []string{}
	if len(p.RiskFactors) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(p.RiskFactors, &out); err != nil {
		return nil, fmt.Errorf("decode risk factors of payout %s: %w", p.ID, err)
	}
	return out, nil
}

// Models lists every table owned by the ledger, in migration order.
func Models() []any {
	return []any{&Earning{}, &Payout{}}
}

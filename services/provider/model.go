package provider

import "time"

// Provider is the ledger's view of a service provider account. Rows are
// created lazily the first time a provider touches the ledger and double as
// the per-provider lock for reservations.
type Provider struct {
	ID         string     `gorm:"column:id;primaryKey" json:"id"`
	Verified   bool       `gorm:"column:verified;not null;default:false" json:"verified"`
	VerifiedAt *time.Time `gorm:"column:verified_at" json:"verified_at,omitempty"`
	VerifiedBy string     `gorm:"column:verified_by" json:"verified_by,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (Provider) TableName() string { return "providers" }

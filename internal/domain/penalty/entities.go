package penalty

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("penalty not found")

type Penalty struct {
	ID        uint64 `gorm:"primaryKey;column:id" json:"-"`
	PenaltyID string `gorm:"size:32;uniqueIndex:ux_penalties_penalty_id_active" json:"penalty_id"`
	// FK to loans.id (numeric).
	LoanID uint64 `gorm:"column:loan_id;not null;index" json:"-"`

	Amount decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	// WaivedAmount and PaidAmount accumulate; the penalty still owed is
	// Amount - WaivedAmount - PaidAmount.
	WaivedAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"waived_amount"`
	PaidAmount   decimal.Decimal `gorm:"type:decimal(18,2)" json:"paid_amount"`

	Reason     string    `gorm:"type:text" json:"reason"`
	PostedDate time.Time `gorm:"type:date" json:"posted_date"`
	Waived     bool      `gorm:"default:false" json:"waived"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Penalty) TableName() string { return "penalties" }

// Outstanding is the portion of the penalty still owed.
func (p *Penalty) Outstanding() decimal.Decimal {
	return p.Amount.Sub(p.WaivedAmount).Sub(p.PaidAmount)
}

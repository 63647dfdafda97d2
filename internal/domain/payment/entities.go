package payment

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("payment not found")

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

type Method string

const (
	MethodCash  Method = "cash"
	MethodBank  Method = "bank"
	MethodMpesa Method = "mpesa"
)

type Payment struct {
	ID        uint64 `gorm:"primaryKey;column:id" json:"-"`
	PaymentID string `gorm:"size:32;uniqueIndex:ux_payments_payment_id_active" json:"payment_id"`
	// FK to loans.id (numeric).
	LoanID uint64 `gorm:"column:loan_id;not null;index" json:"-"`
	// Caller-supplied idempotency reference (e.g. an M-Pesa receipt number).
	// Unique per active payment; resubmitting a completed reference replays
	// the stored result instead of deducting twice.
	Reference string `gorm:"size:64;not null;uniqueIndex:ux_payments_reference_active" json:"reference"`

	Amount decimal.Decimal `gorm:"type:decimal(18,2)" json:"amount"`
	Method Method          `gorm:"type:enum('cash','bank','mpesa');default:'cash'" json:"method"`

	// Paying MSISDN, 2547XXXXXXXX / 2541XXXXXXXX. Set by mobile-money
	// callbacks; empty for cash and bank payments.
	PhoneNumber string `gorm:"size:12;column:phone_number" json:"phone_number,omitempty"`

	PaidAt time.Time `gorm:"column:paid_at" json:"paid_at"`
	Status Status    `gorm:"type:enum('pending','completed','failed');default:'pending'" json:"status"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Payment) TableName() string { return "payments" }

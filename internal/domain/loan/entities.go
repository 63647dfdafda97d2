package loan

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusOverdue   Status = "overdue"
	StatusRejected  Status = "rejected"
)

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusRejected }

type Loan struct {
	ID         uint64 `gorm:"primaryKey;column:id" json:"-"`
	LoanID     string `gorm:"size:32;uniqueIndex:ux_loans_loan_id_active" json:"loan_id"`
	BorrowerID string `gorm:"size:32;index:idx_loans_borrower_active" json:"borrower_id"`

	Principal    decimal.Decimal `gorm:"type:decimal(18,2)" json:"principal"`
	InterestRate decimal.Decimal `gorm:"type:decimal(6,4)" json:"interest_rate"`
	PeriodDays   int             `gorm:"column:period_days" json:"period_days"`

	// Set at issuance, immutable afterwards.
	IssueDate       *time.Time      `gorm:"type:date" json:"issue_date,omitempty"`
	DueDate         *time.Time      `gorm:"type:date" json:"due_date,omitempty"`
	RepaymentAmount decimal.Decimal `gorm:"type:decimal(18,2)" json:"repayment_amount"`

	// Balance is the authoritative amount owed: repayment remainder plus
	// outstanding penalties. TotalPaid is the running sum of completed
	// payments. Both are re-derivable from the payment/penalty history.
	Balance   decimal.Decimal `gorm:"type:decimal(18,2)" json:"balance"`
	TotalPaid decimal.Decimal `gorm:"type:decimal(18,2)" json:"total_paid"`

	Status          Status         `gorm:"type:enum('pending','active','completed','overdue','rejected');default:'pending'" json:"status"`
	StatusUpdatedAt time.Time      `gorm:"autoCreateTime" json:"status_updated_at"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
	DeletedBy       string         `gorm:"size:32" json:"-"`
}

func (Loan) TableName() string { return "loans" }

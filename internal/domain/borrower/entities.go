package borrower

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("borrower not found")
	ErrNationalIDExists = errors.New("national id is already registered")
)

// Borrower carries identity data only; all financial state lives on the loan.
type Borrower struct {
	ID         uint64 `gorm:"primaryKey;column:id" json:"-"`
	BorrowerID string `gorm:"size:32;uniqueIndex:ux_borrowers_borrower_id_active" json:"borrower_id"`

	FullName   string `gorm:"size:120;not null" json:"full_name"`
	NationalID string `gorm:"size:20;not null;uniqueIndex:ux_borrowers_national_id_active" json:"national_id"`
	Phone      string `gorm:"size:15;not null" json:"phone"`
	Email      string `gorm:"size:120" json:"email,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Borrower) TableName() string { return "borrowers" }

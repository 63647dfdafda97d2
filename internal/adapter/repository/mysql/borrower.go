package mysql

import (
	"context"

	"gorm.io/gorm"

	borrowerDomain "microloan-backend/internal/domain/borrower"
)

type BorrowerRepository struct{ db *gorm.DB }

func NewBorrowerRepository(db *gorm.DB) *BorrowerRepository { return &BorrowerRepository{db: db} }

func (r *BorrowerRepository) Create(ctx context.Context, b *borrowerDomain.Borrower) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *BorrowerRepository) GetByBorrowerID(ctx context.Context, borrowerID string) (*borrowerDomain.Borrower, error) {
	var out borrowerDomain.Borrower
	res := r.db.WithContext(ctx).Where("borrower_id = ?", borrowerID).First(&out)
	return &out, res.Error
}

func (r *BorrowerRepository) GetByNationalID(ctx context.Context, nationalID string) (*borrowerDomain.Borrower, error) {
	var out borrowerDomain.Borrower
	res := r.db.WithContext(ctx).Where("national_id = ?", nationalID).First(&out)
	return &out, res.Error
}

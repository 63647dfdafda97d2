package mysql

import (
	"context"

	"gorm.io/gorm"

	paymentDomain "microloan-backend/internal/domain/payment"
)

type PaymentRepository struct{ db *gorm.DB }

func NewPaymentRepository(db *gorm.DB) *PaymentRepository { return &PaymentRepository{db: db} }

func (r *PaymentRepository) Create(ctx context.Context, p *paymentDomain.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*paymentDomain.Payment, error) {
	var out paymentDomain.Payment
	res := r.db.WithContext(ctx).Where("reference = ?", reference).First(&out)
	return &out, res.Error
}

func (r *PaymentRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]paymentDomain.Payment, error) {
	var out []paymentDomain.Payment
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("paid_at ASC, id ASC").
		Find(&out)
	return out, res.Error
}

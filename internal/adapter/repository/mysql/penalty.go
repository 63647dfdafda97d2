package mysql

import (
	"context"

	"gorm.io/gorm"

	penaltyDomain "microloan-backend/internal/domain/penalty"
)

type PenaltyRepository struct{ db *gorm.DB }

func NewPenaltyRepository(db *gorm.DB) *PenaltyRepository { return &PenaltyRepository{db: db} }

func (r *PenaltyRepository) Create(ctx context.Context, p *penaltyDomain.Penalty) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PenaltyRepository) Save(ctx context.Context, p *penaltyDomain.Penalty) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *PenaltyRepository) GetByPenaltyID(ctx context.Context, penaltyID string) (*penaltyDomain.Penalty, error) {
	var out penaltyDomain.Penalty
	res := r.db.WithContext(ctx).Where("penalty_id = ?", penaltyID).First(&out)
	return &out, res.Error
}

func (r *PenaltyRepository) ListOpenByLoanID(ctx context.Context, loanID uint64) ([]*penaltyDomain.Penalty, error) {
	var out []*penaltyDomain.Penalty
	res := r.db.WithContext(ctx).
		Where("loan_id = ? AND amount - waived_amount - paid_amount > 0", loanID).
		Order("posted_date ASC, id ASC").
		Find(&out)
	return out, res.Error
}

func (r *PenaltyRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]penaltyDomain.Penalty, error) {
	var out []penaltyDomain.Penalty
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("posted_date ASC, id ASC").
		Find(&out)
	return out, res.Error
}

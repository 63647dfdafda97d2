package payment

import "context"

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByReference(ctx context.Context, reference string) (*Payment, error)
	ListByLoanID(ctx context.Context, loanID uint64) ([]Payment, error)
}

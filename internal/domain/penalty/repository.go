package penalty

import "context"

type Repository interface {
	Create(ctx context.Context, p *Penalty) error
	GetByPenaltyID(ctx context.Context, penaltyID string) (*Penalty, error)
	// ListOpenByLoanID returns penalties with a non-zero outstanding amount,
	// oldest posting first.
	ListOpenByLoanID(ctx context.Context, loanID uint64) ([]*Penalty, error)
	ListByLoanID(ctx context.Context, loanID uint64) ([]Penalty, error)
	Save(ctx context.Context, p *Penalty) error
}

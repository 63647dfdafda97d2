package loan

import "context"

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	// GetByLoanIDForUpdate loads the loan row-locked (SELECT ... FOR UPDATE);
	// only meaningful inside a transaction.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	GetPendingLoanByBorrowerID(ctx context.Context, borrowerID string) (*Loan, error)
	Save(ctx context.Context, l *Loan) error
}

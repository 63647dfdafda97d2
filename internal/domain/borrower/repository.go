package borrower

import "context"

type Repository interface {
	Create(ctx context.Context, b *Borrower) error
	GetByBorrowerID(ctx context.Context, borrowerID string) (*Borrower, error)
	GetByNationalID(ctx context.Context, nationalID string) (*Borrower, error)
}

package uow

import (
	"context"

	"microloan-backend/internal/domain/borrower"
	"microloan-backend/internal/domain/loan"
	"microloan-backend/internal/domain/payment"
	"microloan-backend/internal/domain/penalty"
)

type Repos struct {
	Borrowers borrower.Repository
	Loans     loan.Repository
	Payments  payment.Repository
	Penalties penalty.Repository
}

// UnitOfWork scopes a group of repository calls to one transaction; either
// everything inside fn commits or nothing does.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// WithinLoanTx locks the loan row first so that all balance mutations for
	// one loan are serialized; concurrent writers block until commit.
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}

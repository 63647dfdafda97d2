package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domainBorrower "microloan-backend/internal/domain/borrower"
	domainLoan "microloan-backend/internal/domain/loan"
	"microloan-backend/internal/domain/uow"
	"microloan-backend/internal/ledger"
	"microloan-backend/pkg/id"
)

type Usecase struct {
	loans     domainLoan.Repository
	borrowers domainBorrower.Repository
	uow       uow.UnitOfWork
	policy    ledger.Policy
}

func NewUsecase(loans domainLoan.Repository, borrowers domainBorrower.Repository, tx uow.UnitOfWork, policy ledger.Policy) *Usecase {
	return &Usecase{loans: loans, borrowers: borrowers, uow: tx, policy: policy}
}

type ApplyInput struct {
	BorrowerID string          `json:"borrower_id"`
	Principal  decimal.Decimal `json:"principal"`
}

type LoanDTO struct {
	LoanID          string            `json:"loan_id"`
	BorrowerID      string            `json:"borrower_id"`
	Principal       decimal.Decimal   `json:"principal"`
	InterestRate    decimal.Decimal   `json:"interest_rate"`
	PeriodDays      int               `json:"period_days"`
	IssueDate       *time.Time        `json:"issue_date,omitempty"`
	DueDate         *time.Time        `json:"due_date,omitempty"`
	RepaymentAmount decimal.Decimal   `json:"repayment_amount"`
	Balance         decimal.Decimal   `json:"balance"`
	Status          domainLoan.Status `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Apply registers a pending loan application. Terms are fixed by policy but
// only computed at issuance.
func (u *Usecase) Apply(ctx context.Context, in ApplyInput) (*LoanDTO, error) {
	if len(in.BorrowerID) != 32 {
		return nil, fmt.Errorf("%w: invalid borrower id", ledger.ErrValidation)
	}
	if in.Principal.LessThan(u.policy.MinPrincipal) {
		return nil, fmt.Errorf("%w: principal %s is below the minimum %s",
			ledger.ErrValidation, in.Principal.StringFixed(2), u.policy.MinPrincipal.StringFixed(2))
	}

	if _, err := u.borrowers.GetByBorrowerID(ctx, in.BorrowerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainBorrower.ErrNotFound
		}
		return nil, err
	}

	// One open application per borrower.
	pending, err := u.loans.GetPendingLoanByBorrowerID(ctx, in.BorrowerID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s", domainLoan.ErrPendingExists, pending.LoanID)
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	l := &domainLoan.Loan{
		LoanID:          id.NewID32(),
		BorrowerID:      in.BorrowerID,
		Principal:       in.Principal.Round(2),
		InterestRate:    u.policy.InterestRate,
		PeriodDays:      u.policy.PeriodDays,
		Status:          domainLoan.StatusPending,
		StatusUpdatedAt: time.Now().UTC(),
	}
	if err := u.loans.Create(ctx, l); err != nil {
		return nil, err
	}
	return toDTO(l, time.Now()), nil
}

// Issue activates a pending loan: computes the repayment amount and due date
// and opens the balance. Row-locked so a double submit cannot issue twice.
func (u *Usecase) Issue(ctx context.Context, loanID string) (*LoanDTO, error) {
	var dto *LoanDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		terms, err := u.policy.Terms(l.Principal, today())
		if err != nil {
			return err
		}
		if err := ledger.Issue(l, terms, time.Now()); err != nil {
			return err
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		dto = toDTO(l, time.Now())
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return dto, nil
}

// Reject closes a pending application. Terminal.
func (u *Usecase) Reject(ctx context.Context, loanID string) (*LoanDTO, error) {
	var dto *LoanDTO
	err := u.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *domainLoan.Loan) error {
		if err := ledger.Reject(l, time.Now()); err != nil {
			return err
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		dto = toDTO(l, time.Now())
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return dto, nil
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDTO, error) {
	l, err := u.loans.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toDTO(l, time.Now()), nil
}

// Balance rebuilds the read-side projection from the stored payment and
// penalty history inside one transaction, so the polling endpoint always sees
// a consistent snapshot. Never used to authorize writes.
func (u *Usecase) Balance(ctx context.Context, loanID string) (*ledger.Projection, error) {
	var pr ledger.Projection
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		l, err := r.Loans.GetByLoanID(ctx, loanID)
		if err != nil {
			return err
		}
		payments, err := r.Payments.ListByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}
		penalties, err := r.Penalties.ListByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}
		pr = ledger.Project(l, payments, penalties)
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &pr, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainLoan.ErrNotFound
	}
	return err
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func toDTO(l *domainLoan.Loan, now time.Time) *LoanDTO {
	return &LoanDTO{
		LoanID:          l.LoanID,
		BorrowerID:      l.BorrowerID,
		Principal:       l.Principal,
		InterestRate:    l.InterestRate,
		PeriodDays:      l.PeriodDays,
		IssueDate:       l.IssueDate,
		DueDate:         l.DueDate,
		RepaymentAmount: l.RepaymentAmount,
		Balance:         l.Balance,
		Status:          ledger.StatusAt(l, now),
		CreatedAt:       l.CreatedAt,
	}
}

package penalty

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domainLoan "microloan-backend/internal/domain/loan"
	domainPenalty "microloan-backend/internal/domain/penalty"
	"microloan-backend/internal/domain/uow"
	"microloan-backend/internal/ledger"
	"microloan-backend/pkg/id"
)

type Usecase struct{ uow uow.UnitOfWork }

func NewUsecase(tx uow.UnitOfWork) *Usecase { return &Usecase{uow: tx} }

type PostInput struct {
	LoanID string
	Amount decimal.Decimal
	Reason string
}

type WaiveInput struct {
	LoanID    string
	PenaltyID string
	Amount    decimal.Decimal
}

type PenaltyDTO struct {
	PenaltyID   string          `json:"penalty_id"`
	LoanID      string          `json:"loan_id"`
	Amount      decimal.Decimal `json:"amount"`
	Outstanding decimal.Decimal `json:"outstanding"`
	Reason      string          `json:"reason"`
	PostedDate  time.Time       `json:"posted_date"`
	Waived      bool            `json:"waived"`
	LoanBalance decimal.Decimal `json:"loan_balance"`
}

// Post appends a penalty charge to the loan, independent of the payment flow.
func (u *Usecase) Post(ctx context.Context, in PostInput) (*PenaltyDTO, error) {
	if in.Reason == "" {
		in.Reason = "late payment"
	}
	var dto *PenaltyDTO
	err := u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domainLoan.Loan) error {
		pn := &domainPenalty.Penalty{
			PenaltyID:  id.NewID32(),
			LoanID:     l.ID,
			Amount:     in.Amount,
			Reason:     in.Reason,
			PostedDate: time.Now().UTC(),
		}
		if err := ledger.PostPenalty(l, pn, time.Now()); err != nil {
			return err
		}
		if err := r.Penalties.Create(ctx, pn); err != nil {
			return err
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		dto = toDTO(pn, l)
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return dto, nil
}

// Waive forgives part or all of a penalty's outstanding amount. Runs in the
// loan's locked transaction so the balance reduction and the penalty update
// commit as one.
func (u *Usecase) Waive(ctx context.Context, in WaiveInput) (*PenaltyDTO, error) {
	var dto *PenaltyDTO
	err := u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domainLoan.Loan) error {
		pn, err := r.Penalties.GetByPenaltyID(ctx, in.PenaltyID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domainPenalty.ErrNotFound
			}
			return err
		}
		if pn.LoanID != l.ID {
			return fmt.Errorf("%w: penalty %s does not belong to loan %s",
				domainPenalty.ErrNotFound, in.PenaltyID, in.LoanID)
		}
		if err := ledger.WaivePenalty(l, pn, in.Amount, time.Now()); err != nil {
			return err
		}
		if err := r.Penalties.Save(ctx, pn); err != nil {
			return err
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		dto = toDTO(pn, l)
		return nil
	})
	if err != nil {
		return nil, mapNotFound(err)
	}
	return dto, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domainLoan.ErrNotFound
	}
	return err
}

func toDTO(pn *domainPenalty.Penalty, l *domainLoan.Loan) *PenaltyDTO {
	return &PenaltyDTO{
		PenaltyID:   pn.PenaltyID,
		LoanID:      l.LoanID,
		Amount:      pn.Amount,
		Outstanding: pn.Outstanding(),
		Reason:      pn.Reason,
		PostedDate:  pn.PostedDate,
		Waived:      pn.Waived,
		LoanBalance: l.Balance,
	}
}

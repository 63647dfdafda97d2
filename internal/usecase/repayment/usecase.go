package repayment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domainLoan "microloan-backend/internal/domain/loan"
	domainPayment "microloan-backend/internal/domain/payment"
	"microloan-backend/internal/domain/uow"
	"microloan-backend/internal/ledger"
	"microloan-backend/pkg/id"
)

// ErrReferenceInUse means the reference was seen before and cannot settle
// here: either the earlier payment is still in flight, or it was recorded
// against a different loan. Only a completed payment on the same loan replays.
var ErrReferenceInUse = errors.New("payment reference is already in use")

type Usecase struct{ uow uow.UnitOfWork }

func NewUsecase(tx uow.UnitOfWork) *Usecase { return &Usecase{uow: tx} }

type ApplyPaymentInput struct {
	LoanID    string
	Reference string
	Amount    decimal.Decimal
	Method    domainPayment.Method
	Phone     string
	PaidAt    time.Time
}

type PaymentDTO struct {
	PaymentID string               `json:"payment_id"`
	LoanID    string               `json:"loan_id"`
	Reference string               `json:"reference"`
	Amount    decimal.Decimal      `json:"amount"`
	Method    domainPayment.Method `json:"method"`
	Phone     string               `json:"phone_number,omitempty"`
	Status    domainPayment.Status `json:"status"`
	PaidAt    time.Time            `json:"paid_at"`
	// Replayed is true when the reference was already settled and the stored
	// result was returned instead of deducting again.
	Replayed    bool              `json:"replayed,omitempty"`
	LoanBalance decimal.Decimal   `json:"loan_balance"`
	LoanStatus  domainLoan.Status `json:"loan_status"`
}

// ApplyPayment records a repayment against the loan. The whole of it runs
// inside the loan's row-locked transaction: the balance check, the deduction,
// the payment row and any penalty allocation commit together or not at all.
// Two overlapping submissions against the same loan serialize on the row lock,
// so they can never both pass the balance check.
func (u *Usecase) ApplyPayment(ctx context.Context, in ApplyPaymentInput) (*PaymentDTO, error) {
	if in.Reference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", ledger.ErrValidation)
	}
	if in.Method == "" {
		in.Method = domainPayment.MethodCash
	}
	if in.PaidAt.IsZero() {
		in.PaidAt = time.Now().UTC()
	}

	var dto *PaymentDTO
	err := u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domainLoan.Loan) error {
		// Idempotency: a settled reference replays the stored result.
		prior, err := r.Payments.GetByReference(ctx, in.Reference)
		switch {
		case err == nil:
			if prior.LoanID != l.ID {
				return fmt.Errorf("%w: reference %s belongs to another loan", ErrReferenceInUse, in.Reference)
			}
			if prior.Status == domainPayment.StatusCompleted {
				dto = toDTO(prior, l, true)
				return nil
			}
			return ErrReferenceInUse
		case !errors.Is(err, gorm.ErrRecordNotFound) && !errors.Is(err, domainPayment.ErrNotFound):
			return err
		}

		ledger.RefreshOverdue(l, time.Now())
		open, err := r.Penalties.ListOpenByLoanID(ctx, l.ID)
		if err != nil {
			return err
		}
		if err := ledger.ApplyPayment(l, open, in.Amount, time.Now()); err != nil {
			return err
		}

		p := &domainPayment.Payment{
			PaymentID:   id.NewID32(),
			LoanID:      l.ID,
			Reference:   in.Reference,
			Amount:      in.Amount.Round(2),
			Method:      in.Method,
			PhoneNumber: in.Phone,
			PaidAt:      in.PaidAt.UTC(),
			Status:      domainPayment.StatusCompleted,
		}
		if err := r.Payments.Create(ctx, p); err != nil {
			return err
		}
		for _, pn := range open {
			if err := r.Penalties.Save(ctx, pn); err != nil {
				return err
			}
		}
		if err := r.Loans.Save(ctx, l); err != nil {
			return err
		}
		dto = toDTO(p, l, false)
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainLoan.ErrNotFound
		}
		return nil, err
	}
	return dto, nil
}

// StkResult is the settled outcome of a mobile-money STK push, as delivered by
// the gateway callback. ResultCode 0 is success; anything else is a declined
// or abandoned push.
type StkResult struct {
	LoanID        string
	ReceiptNumber string
	Amount        decimal.Decimal
	PhoneNumber   string
	ResultCode    int
	ResultDesc    string
}

// ApplyStkResult feeds a successful mobile-money result into the ledger as a
// regular payment. Failed results are acknowledged without touching any state;
// the gateway retries or the client re-initiates.
func (u *Usecase) ApplyStkResult(ctx context.Context, res StkResult) (*PaymentDTO, error) {
	if res.ResultCode != 0 {
		log.Printf("stk push failed for loan %s: code=%d desc=%q", res.LoanID, res.ResultCode, res.ResultDesc)
		return nil, nil
	}
	return u.ApplyPayment(ctx, ApplyPaymentInput{
		LoanID:    res.LoanID,
		Reference: res.ReceiptNumber,
		Amount:    res.Amount,
		Method:    domainPayment.MethodMpesa,
		Phone:     res.PhoneNumber,
	})
}

func toDTO(p *domainPayment.Payment, l *domainLoan.Loan, replayed bool) *PaymentDTO {
	return &PaymentDTO{
		PaymentID:   p.PaymentID,
		LoanID:      l.LoanID,
		Reference:   p.Reference,
		Amount:      p.Amount,
		Method:      p.Method,
		Phone:       p.PhoneNumber,
		Status:      p.Status,
		PaidAt:      p.PaidAt,
		Replayed:    replayed,
		LoanBalance: l.Balance,
		LoanStatus:  l.Status,
	}
}

// Package ledger is the computation core for a single loan account: issuance
// terms, payment application, penalty posting/waiver and the derived balance
// projection. It is pure over the domain entities; persistence, locking and
// transport live in the callers.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"microloan-backend/internal/domain/loan"
	"microloan-backend/internal/domain/payment"
	"microloan-backend/internal/domain/penalty"
)

var (
	ErrValidation  = errors.New("validation failed")
	ErrOverpayment = errors.New("payment exceeds loan balance")
	ErrOverWaiver  = errors.New("waiver exceeds penalty outstanding amount")
)

var hundred = decimal.NewFromInt(100)

// money normalizes an amount to 2 decimal places, rounding half-up. Every
// figure the ledger stores or compares goes through this.
func money(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// Policy is the loan-product parameterization: flat interest over a fixed
// period, with a floor on the principal.
type Policy struct {
	MinPrincipal decimal.Decimal
	InterestRate decimal.Decimal
	PeriodDays   int
}

type Terms struct {
	RepaymentAmount decimal.Decimal
	IssueDate       time.Time
	DueDate         time.Time
}

// Terms computes the immutable repayment figures for a principal issued on
// issueDate: repayment = principal + principal*rate, due = issue + period.
func (p Policy) Terms(principal decimal.Decimal, issueDate time.Time) (Terms, error) {
	if principal.LessThan(p.MinPrincipal) {
		return Terms{}, fmt.Errorf("%w: principal %s is below the minimum %s",
			ErrValidation, principal.StringFixed(2), p.MinPrincipal.StringFixed(2))
	}
	interest := money(principal.Mul(p.InterestRate))
	return Terms{
		RepaymentAmount: money(principal).Add(interest),
		IssueDate:       issueDate,
		DueDate:         issueDate.AddDate(0, 0, p.PeriodDays),
	}, nil
}

// Issue activates a pending loan with the given terms.
func Issue(l *loan.Loan, t Terms, now time.Time) error {
	if l.Status != loan.StatusPending {
		return fmt.Errorf("%w: cannot issue a %s loan", loan.ErrInvalidTransition, l.Status)
	}
	issue, due := t.IssueDate, t.DueDate
	l.IssueDate = &issue
	l.DueDate = &due
	l.RepaymentAmount = t.RepaymentAmount
	l.Balance = t.RepaymentAmount
	l.TotalPaid = decimal.Zero
	setStatus(l, loan.StatusActive, now)
	return nil
}

// Reject marks a pending loan rejected. Terminal; no mutation afterwards.
func Reject(l *loan.Loan, now time.Time) error {
	if l.Status != loan.StatusPending {
		return fmt.Errorf("%w: cannot reject a %s loan", loan.ErrInvalidTransition, l.Status)
	}
	setStatus(l, loan.StatusRejected, now)
	return nil
}

// ApplyPayment deducts amount from the loan balance, allocating it to the
// repayment remainder first and spilling the rest into open penalties, oldest
// first. The caller passes the loan's open penalties and must hold the loan's
// mutation scope. Nothing is touched on error.
func ApplyPayment(l *loan.Loan, open []*penalty.Penalty, amount decimal.Decimal, now time.Time) error {
	amt := money(amount)
	if amt.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: payment amount must be greater than zero", ErrValidation)
	}
	if err := mutable(l); err != nil {
		return err
	}
	if amt.GreaterThan(l.Balance) {
		return fmt.Errorf("%w: amount %s, remaining balance %s",
			ErrOverpayment, amt.StringFixed(2), l.Balance.StringFixed(2))
	}

	principalRemaining := principalRemaining(l)
	toPrincipal := decimal.Min(amt, principalRemaining)
	spill := amt.Sub(toPrincipal)
	for _, pn := range open {
		if spill.LessThanOrEqual(decimal.Zero) {
			break
		}
		take := decimal.Min(spill, pn.Outstanding())
		pn.PaidAmount = pn.PaidAmount.Add(take)
		spill = spill.Sub(take)
	}

	l.TotalPaid = l.TotalPaid.Add(amt)
	l.Balance = l.Balance.Sub(amt)
	if l.Balance.IsZero() {
		setStatus(l, loan.StatusCompleted, now)
	}
	return nil
}

// PostPenalty adds a charge on top of the repayment remainder.
func PostPenalty(l *loan.Loan, pn *penalty.Penalty, now time.Time) error {
	amt := money(pn.Amount)
	if amt.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: penalty amount must be greater than zero", ErrValidation)
	}
	if err := mutable(l); err != nil {
		return err
	}
	pn.Amount = amt
	l.Balance = l.Balance.Add(amt)
	// A completed-by-the-clock overdue check belongs to the caller; a fresh
	// penalty on an active loan past due flips it to overdue here.
	refreshOverdue(l, now)
	return nil
}

// WaivePenalty forgives amount of the penalty's outstanding charge, reducing
// the loan balance by the same figure.
func WaivePenalty(l *loan.Loan, pn *penalty.Penalty, amount decimal.Decimal, now time.Time) error {
	amt := money(amount)
	if amt.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: waiver amount must be greater than zero", ErrValidation)
	}
	if err := mutable(l); err != nil {
		return err
	}
	out := pn.Outstanding()
	if amt.GreaterThan(out) {
		return fmt.Errorf("%w: requested %s, outstanding %s",
			ErrOverWaiver, amt.StringFixed(2), out.StringFixed(2))
	}
	pn.WaivedAmount = pn.WaivedAmount.Add(amt)
	if pn.Outstanding().IsZero() {
		pn.Waived = true
	}
	l.Balance = l.Balance.Sub(amt)
	if l.Balance.IsZero() {
		setStatus(l, loan.StatusCompleted, now)
	}
	return nil
}

// StatusAt derives the effective status at now without mutating the loan:
// an active loan past its due date with money still owed reads as overdue.
func StatusAt(l *loan.Loan, now time.Time) loan.Status {
	if l.Status == loan.StatusActive && l.DueDate != nil &&
		now.After(*l.DueDate) && l.Balance.GreaterThan(decimal.Zero) {
		return loan.StatusOverdue
	}
	return l.Status
}

// RefreshOverdue persists the derived overdue status onto the loan. Mutators
// call this inside the loan's transaction so reads and writes agree.
func RefreshOverdue(l *loan.Loan, now time.Time) { refreshOverdue(l, now) }

func refreshOverdue(l *loan.Loan, now time.Time) {
	if StatusAt(l, now) == loan.StatusOverdue && l.Status != loan.StatusOverdue {
		setStatus(l, loan.StatusOverdue, now)
	}
}

func mutable(l *loan.Loan) error {
	switch l.Status {
	case loan.StatusActive, loan.StatusOverdue:
		return nil
	default:
		return fmt.Errorf("%w: loan is %s", loan.ErrInvalidTransition, l.Status)
	}
}

func principalRemaining(l *loan.Loan) decimal.Decimal {
	rem := l.RepaymentAmount.Sub(decimal.Min(l.TotalPaid, l.RepaymentAmount))
	return money(rem)
}

func setStatus(l *loan.Loan, s loan.Status, now time.Time) {
	l.Status = s
	l.StatusUpdatedAt = now.UTC()
}

// Projection is the read-side balance breakdown behind the polling endpoint
// and any progress display. It is recomputed from the stored transaction
// history every time; the stored loan balance is only cross-checked, never
// the source.
type Projection struct {
	PrincipalRemaining decimal.Decimal `json:"principal_remaining"`
	Penalties          decimal.Decimal `json:"penalties"`
	TotalBalance       decimal.Decimal `json:"total_balance"`
	PaymentProgress    int64           `json:"payment_progress"`
}

// Project rebuilds the balance figures from the event history. Payments
// allocate to the repayment amount first; whatever they exceed it by has
// settled penalties.
func Project(l *loan.Loan, payments []payment.Payment, penalties []penalty.Penalty) Projection {
	totalPaid := decimal.Zero
	for _, p := range payments {
		if p.Status == payment.StatusCompleted {
			totalPaid = totalPaid.Add(p.Amount)
		}
	}
	principalPaid := decimal.Min(totalPaid, l.RepaymentAmount)
	principalRem := money(l.RepaymentAmount.Sub(principalPaid))

	penaltyPaid := totalPaid.Sub(principalPaid)
	penaltiesOut := decimal.Zero
	for _, pn := range penalties {
		penaltiesOut = penaltiesOut.Add(pn.Amount.Sub(pn.WaivedAmount))
	}
	penaltiesOut = money(penaltiesOut.Sub(penaltyPaid))

	return Projection{
		PrincipalRemaining: principalRem,
		Penalties:          penaltiesOut,
		TotalBalance:       principalRem.Add(penaltiesOut),
		PaymentProgress:    progress(l.RepaymentAmount, principalRem),
	}
}

// progress = round(100 * (repayment - remaining) / repayment), clamped to
// [0,100]. Penalties are excluded on purpose.
func progress(repayment, remaining decimal.Decimal) int64 {
	if repayment.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	pct := repayment.Sub(remaining).Mul(hundred).Div(repayment).Round(0).IntPart()
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"microloan-backend/internal/domain/loan"
	"microloan-backend/internal/domain/payment"
	"microloan-backend/internal/domain/penalty"
)

var testPolicy = Policy{
	MinPrincipal: decimal.NewFromInt(5000),
	InterestRate: decimal.NewFromFloat(0.10),
	PeriodDays:   30,
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func issuedLoan(t *testing.T, principal string) *loan.Loan {
	t.Helper()
	l := &loan.Loan{LoanID: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", Status: loan.StatusPending,
		Principal: dec(principal), InterestRate: testPolicy.InterestRate, PeriodDays: testPolicy.PeriodDays}
	terms, err := testPolicy.Terms(l.Principal, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Terms: %v", err)
	}
	if err := Issue(l, terms, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return l
}

// checkInvariant asserts balance == repayment + unwaived penalties - payments, >= 0.
func checkInvariant(t *testing.T, l *loan.Loan, penalties []*penalty.Penalty) {
	t.Helper()
	want := l.RepaymentAmount
	for _, pn := range penalties {
		want = want.Add(pn.Amount.Sub(pn.WaivedAmount))
	}
	want = want.Sub(l.TotalPaid)
	if !l.Balance.Equal(want) {
		t.Fatalf("invariant broken: balance=%s want=%s", l.Balance, want)
	}
	if l.Balance.IsNegative() {
		t.Fatalf("negative balance: %s", l.Balance)
	}
}

func TestTerms(t *testing.T) {
	issue := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	terms, err := testPolicy.Terms(dec("10000"), issue)
	if err != nil {
		t.Fatalf("Terms: %v", err)
	}
	if !terms.RepaymentAmount.Equal(dec("11000")) {
		t.Errorf("repayment=%s want 11000", terms.RepaymentAmount)
	}
	if want := issue.AddDate(0, 0, 30); !terms.DueDate.Equal(want) {
		t.Errorf("due=%v want %v", terms.DueDate, want)
	}
}

func TestTerms_BelowMinimumPrincipal(t *testing.T) {
	_, err := testPolicy.Terms(dec("4999.99"), time.Now())
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("want ErrValidation, got %v", err)
	}
}

func TestTerms_RoundsHalfUp(t *testing.T) {
	// 10333.33 * 0.10 = 1033.333 -> 1033.33; repayment 11366.66
	terms, err := testPolicy.Terms(dec("10333.33"), time.Now())
	if err != nil {
		t.Fatalf("Terms: %v", err)
	}
	if !terms.RepaymentAmount.Equal(dec("11366.66")) {
		t.Errorf("repayment=%s want 11366.66", terms.RepaymentAmount)
	}

	// 10333.35 * 0.10 = 1033.335 -> half-up 1033.34
	terms, err = testPolicy.Terms(dec("10333.35"), time.Now())
	if err != nil {
		t.Fatalf("Terms: %v", err)
	}
	if !terms.RepaymentAmount.Equal(dec("11366.69")) {
		t.Errorf("repayment=%s want 11366.69", terms.RepaymentAmount)
	}
}

func TestIssue_OnlyFromPending(t *testing.T) {
	l := issuedLoan(t, "10000")
	terms, _ := testPolicy.Terms(l.Principal, time.Now())
	if err := Issue(l, terms, time.Now()); !errors.Is(err, loan.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestReject_OnlyFromPending(t *testing.T) {
	l := &loan.Loan{Status: loan.StatusPending}
	if err := Reject(l, time.Now()); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if l.Status != loan.StatusRejected {
		t.Fatalf("status=%s", l.Status)
	}
	// Terminal: nothing moves a rejected loan.
	if err := Reject(l, time.Now()); !errors.Is(err, loan.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
	if err := ApplyPayment(l, nil, dec("100"), time.Now()); !errors.Is(err, loan.ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestApplyPayment_ExactPayoffCompletes(t *testing.T) {
	l := issuedLoan(t, "10000")
	if err := ApplyPayment(l, nil, dec("11000"), time.Now()); err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	if !l.Balance.IsZero() {
		t.Errorf("balance=%s want 0", l.Balance)
	}
	if l.Status != loan.StatusCompleted {
		t.Errorf("status=%s want completed", l.Status)
	}
	checkInvariant(t, l, nil)
}

func TestApplyPayment_OverpaymentRejectedUnchanged(t *testing.T) {
	l := issuedLoan(t, "10000")
	before := *l
	err := ApplyPayment(l, nil, dec("11000.01"), time.Now())
	if !errors.Is(err, ErrOverpayment) {
		t.Fatalf("want ErrOverpayment, got %v", err)
	}
	if !l.Balance.Equal(before.Balance) || !l.TotalPaid.Equal(before.TotalPaid) || l.Status != before.Status {
		t.Fatalf("state changed on rejected payment: %+v", l)
	}
}

func TestApplyPayment_RejectsNonPositive(t *testing.T) {
	l := issuedLoan(t, "10000")
	for _, amt := range []string{"0", "-5"} {
		if err := ApplyPayment(l, nil, dec(amt), time.Now()); !errors.Is(err, ErrValidation) {
			t.Fatalf("amount %s: want ErrValidation, got %v", amt, err)
		}
	}
}

func TestApplyPayment_NormalizesToTwoDecimals(t *testing.T) {
	l := issuedLoan(t, "10000")
	if err := ApplyPayment(l, nil, dec("5000.004"), time.Now()); err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	if !l.Balance.Equal(dec("6000")) {
		t.Errorf("balance=%s want 6000", l.Balance)
	}
}

func TestPostPenalty_FlipsActivePastDueToOverdue(t *testing.T) {
	l := issuedLoan(t, "10000")
	pn := &penalty.Penalty{Amount: dec("500")}
	after := l.DueDate.AddDate(0, 0, 5)
	if err := PostPenalty(l, pn, after); err != nil {
		t.Fatalf("PostPenalty: %v", err)
	}
	if !l.Balance.Equal(dec("11500")) {
		t.Errorf("balance=%s want 11500", l.Balance)
	}
	if l.Status != loan.StatusOverdue {
		t.Errorf("status=%s want overdue", l.Status)
	}
	checkInvariant(t, l, []*penalty.Penalty{pn})
}

func TestWaivePenalty_OverWaiverRejectedUnchanged(t *testing.T) {
	l := issuedLoan(t, "10000")
	pn := &penalty.Penalty{Amount: dec("500")}
	if err := PostPenalty(l, pn, time.Now()); err != nil {
		t.Fatalf("PostPenalty: %v", err)
	}
	err := WaivePenalty(l, pn, dec("500.01"), time.Now())
	if !errors.Is(err, ErrOverWaiver) {
		t.Fatalf("want ErrOverWaiver, got %v", err)
	}
	if !pn.Outstanding().Equal(dec("500")) {
		t.Errorf("outstanding=%s want 500", pn.Outstanding())
	}
	if !l.Balance.Equal(dec("11500")) {
		t.Errorf("balance=%s want 11500", l.Balance)
	}
}

func TestWaivePenalty_FullWaiverMarksWaived(t *testing.T) {
	l := issuedLoan(t, "10000")
	pn := &penalty.Penalty{Amount: dec("500")}
	if err := PostPenalty(l, pn, time.Now()); err != nil {
		t.Fatalf("PostPenalty: %v", err)
	}
	if err := WaivePenalty(l, pn, dec("200"), time.Now()); err != nil {
		t.Fatalf("WaivePenalty: %v", err)
	}
	if pn.Waived {
		t.Error("penalty marked waived after partial waiver")
	}
	if err := WaivePenalty(l, pn, dec("300"), time.Now()); err != nil {
		t.Fatalf("WaivePenalty: %v", err)
	}
	if !pn.Waived {
		t.Error("penalty not marked waived after full waiver")
	}
	if !l.Balance.Equal(dec("11000")) {
		t.Errorf("balance=%s want 11000", l.Balance)
	}
	checkInvariant(t, l, []*penalty.Penalty{pn})
}

func TestStatusAt_DerivesOverdue(t *testing.T) {
	l := issuedLoan(t, "10000")
	if got := StatusAt(l, *l.DueDate); got != loan.StatusActive {
		t.Errorf("on due date: %s", got)
	}
	if got := StatusAt(l, l.DueDate.AddDate(0, 0, 1)); got != loan.StatusOverdue {
		t.Errorf("past due: %s", got)
	}
	// Paid off: never overdue.
	if err := ApplyPayment(l, nil, dec("11000"), time.Now()); err != nil {
		t.Fatalf("ApplyPayment: %v", err)
	}
	if got := StatusAt(l, l.DueDate.AddDate(0, 0, 10)); got != loan.StatusCompleted {
		t.Errorf("paid off past due: %s", got)
	}
}

// The worked end-to-end scenario: 10000 @ 10% flat.
func TestLedger_Scenario(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	l := issuedLoan(t, "10000")
	if !l.RepaymentAmount.Equal(dec("11000")) || !l.Balance.Equal(dec("11000")) {
		t.Fatalf("issuance: repayment=%s balance=%s", l.RepaymentAmount, l.Balance)
	}

	var completed []payment.Payment
	pay := func(amount string, open []*penalty.Penalty) {
		t.Helper()
		if err := ApplyPayment(l, open, dec(amount), now); err != nil {
			t.Fatalf("pay %s: %v", amount, err)
		}
		completed = append(completed, payment.Payment{Amount: dec(amount), Status: payment.StatusCompleted})
	}
	project := func(pens ...*penalty.Penalty) Projection {
		rows := make([]penalty.Penalty, 0, len(pens))
		for _, pn := range pens {
			rows = append(rows, *pn)
		}
		return Project(l, completed, rows)
	}

	pay("5000", nil)
	if !l.Balance.Equal(dec("6000")) {
		t.Fatalf("after 5000: balance=%s", l.Balance)
	}
	if pr := project(); pr.PaymentProgress != 45 {
		t.Fatalf("progress=%d want 45", pr.PaymentProgress)
	}

	pn := &penalty.Penalty{Amount: dec("500"), PostedDate: now}
	if err := PostPenalty(l, pn, now); err != nil {
		t.Fatalf("PostPenalty: %v", err)
	}
	if !l.Balance.Equal(dec("6500")) {
		t.Fatalf("after penalty: balance=%s", l.Balance)
	}
	pr := project(pn)
	if !pr.PrincipalRemaining.Equal(dec("6000")) || !pr.Penalties.Equal(dec("500")) {
		t.Fatalf("projection after penalty: %+v", pr)
	}

	if err := WaivePenalty(l, pn, dec("200"), now); err != nil {
		t.Fatalf("WaivePenalty: %v", err)
	}
	if !l.Balance.Equal(dec("6300")) {
		t.Fatalf("after waiver: balance=%s", l.Balance)
	}
	pr = project(pn)
	if !pr.Penalties.Equal(dec("300")) {
		t.Fatalf("penalties=%s want 300", pr.Penalties)
	}

	pay("6300", []*penalty.Penalty{pn})
	if !l.Balance.IsZero() || l.Status != loan.StatusCompleted {
		t.Fatalf("final: balance=%s status=%s", l.Balance, l.Status)
	}
	pr = project(pn)
	if pr.PaymentProgress != 100 || !pr.TotalBalance.IsZero() {
		t.Fatalf("final projection: %+v", pr)
	}
	if !pn.Outstanding().IsZero() {
		t.Fatalf("penalty outstanding=%s want 0", pn.Outstanding())
	}
	checkInvariant(t, l, []*penalty.Penalty{pn})
}

func TestProject_MatchesStoredBalance(t *testing.T) {
	// Replaying the history must land on the stored balance exactly.
	l := issuedLoan(t, "7500")
	pn1 := &penalty.Penalty{Amount: dec("120.50"), PostedDate: time.Now()}
	pn2 := &penalty.Penalty{Amount: dec("75.25"), PostedDate: time.Now()}

	var completed []payment.Payment
	step := func(fn func() error, amt string) {
		t.Helper()
		if err := fn(); err != nil {
			t.Fatalf("step: %v", err)
		}
		if amt != "" {
			completed = append(completed, payment.Payment{Amount: dec(amt), Status: payment.StatusCompleted})
		}
	}
	now := time.Now()
	open := []*penalty.Penalty{pn1, pn2}
	step(func() error { return ApplyPayment(l, open, dec("3000.75"), now) }, "3000.75")
	step(func() error { return PostPenalty(l, pn1, now) }, "")
	step(func() error { return PostPenalty(l, pn2, now) }, "")
	step(func() error { return WaivePenalty(l, pn1, dec("20.50"), now) }, "")
	step(func() error { return ApplyPayment(l, open, dec("5300"), now) }, "5300")

	pr := Project(l, completed, []penalty.Penalty{*pn1, *pn2})
	if !pr.TotalBalance.Equal(l.Balance) {
		t.Fatalf("projection %s != stored balance %s", pr.TotalBalance, l.Balance)
	}
	checkInvariant(t, l, open)
}

func TestProgress_Clamped(t *testing.T) {
	if got := progress(dec("0"), dec("0")); got != 0 {
		t.Errorf("zero repayment: %d", got)
	}
	if got := progress(dec("100"), dec("150")); got != 0 {
		t.Errorf("negative progress not clamped: %d", got)
	}
	if got := progress(dec("100"), dec("-1")); got != 100 {
		t.Errorf("overflow progress not clamped: %d", got)
	}
}

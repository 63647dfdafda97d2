package uowmock

import (
	"context"
	"errors"
	"testing"

	"microloan-backend/internal/domain/loan"
	"microloan-backend/internal/domain/uow"
)

func TestUoW_UnfilledMethodsFail(t *testing.T) {
	m := New()
	if err := m.WithinTx(context.Background(), func(r uow.Repos) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinTx: %v", err)
	}
	if err := m.WithinLoanTx(context.Background(), "x", func(r uow.Repos, l *loan.Loan) error { return nil }); !errors.Is(err, errUnimplemented) {
		t.Fatalf("WithinLoanTx: %v", err)
	}
}

func TestUoW_DelegatesToFns(t *testing.T) {
	m := New()
	sentinel := errors.New("ran")
	m.WithinTxFn = func(ctx context.Context, fn func(r uow.Repos) error) error { return sentinel }
	m.WithinLoanTxFn = func(ctx context.Context, loanID string, fn func(r uow.Repos, l *loan.Loan) error) error {
		if loanID != "abc" {
			t.Errorf("loanID = %q", loanID)
		}
		return sentinel
	}

	if err := m.WithinTx(context.Background(), nil); !errors.Is(err, sentinel) {
		t.Fatalf("WithinTx: %v", err)
	}
	if err := m.WithinLoanTx(context.Background(), "abc", nil); !errors.Is(err, sentinel) {
		t.Fatalf("WithinLoanTx: %v", err)
	}
}

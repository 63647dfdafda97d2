package http

import (
	"errors"
	"net/http"
	"strings"

	domainBorrower "microloan-backend/internal/domain/borrower"
	domainLoan "microloan-backend/internal/domain/loan"
	domainPayment "microloan-backend/internal/domain/payment"
	domainPenalty "microloan-backend/internal/domain/penalty"
	"microloan-backend/internal/ledger"
	"microloan-backend/internal/usecase/repayment"
)

// ---- helpers ----

// errStatus maps the error taxonomy to HTTP codes: validation 422, business
// rules and lost races 409, missing entities 404, the rest 500 (storage
// failures surface as a fatal request error, nothing partially committed).
func errStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrOverpayment),
		errors.Is(err, ledger.ErrOverWaiver),
		errors.Is(err, domainLoan.ErrInvalidTransition),
		errors.Is(err, domainLoan.ErrPendingExists),
		errors.Is(err, domainBorrower.ErrNationalIDExists),
		errors.Is(err, repayment.ErrReferenceInUse):
		return http.StatusConflict
	case errors.Is(err, domainLoan.ErrNotFound),
		errors.Is(err, domainBorrower.ErrNotFound),
		errors.Is(err, domainPenalty.ErrNotFound),
		errors.Is(err, domainPayment.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func containsFieldMsg(list []FieldError, field, substr string) bool {
	for _, e := range list {
		if e.Field == field && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}

package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	domainPayment "microloan-backend/internal/domain/payment"
	"microloan-backend/internal/usecase/repayment"
)

type RepaymentHandler struct{ uc *repayment.Usecase }

func NewRepaymentHandler(uc *repayment.Usecase) *RepaymentHandler { return &RepaymentHandler{uc: uc} }

type applyPaymentReq struct {
	Reference string          `json:"reference" validate:"required,min=6,max=64"`
	Amount    decimal.Decimal `json:"amount"    validate:"dpositive,dec2"`
	Method    string          `json:"method"    validate:"omitempty,oneof=cash bank mpesa"`
}

// ApplyPayment handles the repayment form submission. Whatever the client
// pre-checked, the ledger re-validates against the authoritative balance.
func (h *RepaymentHandler) ApplyPayment(c echo.Context) error {
	var req applyPaymentReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.ApplyPayment(c.Request().Context(), repayment.ApplyPaymentInput{
		LoanID:    c.Param("loan_id"),
		Reference: req.Reference,
		Amount:    req.Amount,
		Method:    domainPayment.Method(req.Method),
	})
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	if dto.Replayed {
		return c.JSON(http.StatusOK, dto)
	}
	return c.JSON(http.StatusCreated, dto)
}

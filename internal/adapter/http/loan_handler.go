package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"microloan-backend/internal/ledger"
	"microloan-backend/internal/usecase/loan"
)

type LoanHandler struct{ uc *loan.Usecase }

func NewLoanHandler(uc *loan.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

type applyLoanReq struct {
	BorrowerID string          `json:"borrower_id" validate:"required,hex32"`
	Principal  decimal.Decimal `json:"principal"   validate:"dpositive,dec2"`
}

func (h *LoanHandler) Apply(c echo.Context) error {
	var req applyLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Apply(c.Request().Context(), loan.ApplyInput(req))
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) Issue(c echo.Context) error {
	dto, err := h.uc.Issue(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Reject(c echo.Context) error {
	dto, err := h.uc.Reject(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) Get(c echo.Context) error {
	dto, err := h.uc.Get(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, dto)
}

type balanceResp struct {
	Success bool               `json:"success"`
	Balance *ledger.Projection `json:"balance,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Balance serves the polling client. Failures come back as success:false so
// the poller logs and retries on the next interval instead of alerting.
func (h *LoanHandler) Balance(c echo.Context) error {
	pr, err := h.uc.Balance(c.Request().Context(), c.Param("loan_id"))
	if err != nil {
		return c.JSON(errStatus(err), balanceResp{Success: false, Error: err.Error()})
	}
	return c.JSON(http.StatusOK, balanceResp{Success: true, Balance: pr})
}

package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"microloan-backend/internal/usecase/penalty"
)

type PenaltyHandler struct{ uc *penalty.Usecase }

func NewPenaltyHandler(uc *penalty.Usecase) *PenaltyHandler { return &PenaltyHandler{uc: uc} }

type postPenaltyReq struct {
	Amount decimal.Decimal `json:"amount" validate:"dpositive,dec2"`
	Reason string          `json:"reason" validate:"omitempty,max=200"`
}

func (h *PenaltyHandler) Post(c echo.Context) error {
	var req postPenaltyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Post(c.Request().Context(), penalty.PostInput{
		LoanID: c.Param("loan_id"),
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, dto)
}

type waivePenaltyReq struct {
	Amount decimal.Decimal `json:"amount" validate:"dpositive,dec2"`
}

func (h *PenaltyHandler) Waive(c echo.Context) error {
	var req waivePenaltyReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Waive(c.Request().Context(), penalty.WaiveInput{
		LoanID:    c.Param("loan_id"),
		PenaltyID: c.Param("penalty_id"),
		Amount:    req.Amount,
	})
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, dto)
}

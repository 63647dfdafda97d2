package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"microloan-backend/internal/usecase/borrower"
)

type BorrowerHandler struct{ uc *borrower.Usecase }

func NewBorrowerHandler(uc *borrower.Usecase) *BorrowerHandler { return &BorrowerHandler{uc: uc} }

type registerBorrowerReq struct {
	FullName   string `json:"full_name"   validate:"required,max=120"`
	NationalID string `json:"national_id" validate:"required,max=20"`
	Phone      string `json:"phone"       validate:"required,msisdn"`
	Email      string `json:"email"       validate:"omitempty,email"`
}

func (h *BorrowerHandler) Register(c echo.Context) error {
	var req registerBorrowerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "validation failed",
			Details: ToFieldErrors(err),
		})
	}
	dto, err := h.uc.Register(c.Request().Context(), borrower.RegisterInput(req))
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *BorrowerHandler) Get(c echo.Context) error {
	borrowerID := c.Param("borrower_id")
	if !reHex32.MatchString(borrowerID) {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid borrower_id"})
	}
	dto, err := h.uc.Get(c.Request().Context(), borrowerID)
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, dto)
}

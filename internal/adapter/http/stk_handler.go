package http

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"microloan-backend/internal/usecase/repayment"
)

// StkHandler accepts the mobile-money gateway's STK push result callback.
// Initiating the push is someone else's job; the initiator registers a
// per-loan callback URL, so the loan id arrives as a path param and the rest
// of the payload is the gateway's own envelope.
type StkHandler struct{ uc *repayment.Usecase }

func NewStkHandler(uc *repayment.Usecase) *StkHandler { return &StkHandler{uc: uc} }

type stkCallbackReq struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []stkMetaItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

type stkMetaItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

func (r *stkCallbackReq) receipt() (amount decimal.Decimal, receiptNumber, phone string, err error) {
	for _, item := range r.Body.StkCallback.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			switch v := item.Value.(type) {
			case float64:
				amount = decimal.NewFromFloat(v)
			case string:
				amount, err = decimal.NewFromString(v)
			default:
				err = fmt.Errorf("unexpected Amount type %T", item.Value)
			}
			if err != nil {
				return
			}
		case "MpesaReceiptNumber":
			receiptNumber, _ = item.Value.(string)
		case "PhoneNumber":
			phone = fmt.Sprintf("%v", item.Value)
		}
	}
	if receiptNumber == "" {
		err = fmt.Errorf("callback metadata missing MpesaReceiptNumber")
	}
	return
}

// Callback always acks with 200 on handled payloads; the gateway treats
// anything else as undelivered and retries.
func (h *StkHandler) Callback(c echo.Context) error {
	var req stkCallbackReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid callback body"})
	}

	res := repayment.StkResult{
		LoanID:     c.Param("loan_id"),
		ResultCode: req.Body.StkCallback.ResultCode,
		ResultDesc: req.Body.StkCallback.ResultDesc,
	}
	if res.ResultCode == 0 {
		amount, receiptNumber, phone, err := req.receipt()
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		}
		res.Amount = amount
		res.ReceiptNumber = receiptNumber
		res.PhoneNumber = phone
	}

	dto, err := h.uc.ApplyStkResult(c.Request().Context(), res)
	if err != nil {
		return c.JSON(errStatus(err), ErrorResponse{Error: err.Error()})
	}
	if dto == nil {
		// Failed push: acknowledged, nothing applied.
		return c.JSON(http.StatusOK, map[string]string{"status": "acknowledged"})
	}
	return c.JSON(http.StatusOK, dto)
}

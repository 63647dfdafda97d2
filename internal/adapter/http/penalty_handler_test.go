package http

import (
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"microloan-backend/internal/testutil/memstore"
	penaltyUC "microloan-backend/internal/usecase/penalty"
)

func TestPostPenalty_Created(t *testing.T) {
	e := newEchoWithValidator()
	s := memstore.New()
	l := seedActiveLoan(t, s, "6000")
	h := NewPenaltyHandler(penaltyUC.NewUsecase(s))

	req := httptest.NewRequest(stdhttp.MethodPost, "/", mustJSON(map[string]any{
		"amount": 500, "reason": "missed due date",
	}))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/loans/:loan_id/penalties")
	c.SetParamNames("loan_id")
	c.SetParamValues(l.LoanID)
	if err := h.Post(c); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body)
	}
	var dto penaltyUC.PenaltyDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if !dto.LoanBalance.Equal(dec("6500")) || dto.Reason != "missed due date" {
		t.Fatalf("dto: %+v", dto)
	}
}

func TestPostPenalty_NonPositiveAmount(t *testing.T) {
	e := newEchoWithValidator()
	h := NewPenaltyHandler(penaltyUC.NewUsecase(memstore.New()))

	req := httptest.NewRequest(stdhttp.MethodPost, "/", mustJSON(map[string]any{"amount": -10}))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/loans/:loan_id/penalties")
	c.SetParamNames("loan_id")
	c.SetParamValues("ffffffffffffffffffffffffffffffff")
	if err := h.Post(c); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestWaivePenalty_FlowAndOverWaiverConflict(t *testing.T) {
	e := newEchoWithValidator()
	s := memstore.New()
	l := seedActiveLoan(t, s, "6000")
	h := NewPenaltyHandler(penaltyUC.NewUsecase(s))

	// post 500
	req := httptest.NewRequest(stdhttp.MethodPost, "/", mustJSON(map[string]any{"amount": 500}))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/loans/:loan_id/penalties")
	c.SetParamNames("loan_id")
	c.SetParamValues(l.LoanID)
	if err := h.Post(c); err != nil {
		t.Fatalf("Post: %v", err)
	}
	var posted penaltyUC.PenaltyDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &posted)

	waive := func(amount any) *httptest.ResponseRecorder {
		req := httptest.NewRequest(stdhttp.MethodPost, "/", mustJSON(map[string]any{"amount": amount}))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath("/loans/:loan_id/penalties/:penalty_id/waive")
		c.SetParamNames("loan_id", "penalty_id")
		c.SetParamValues(l.LoanID, posted.PenaltyID)
		if err := h.Waive(c); err != nil {
			t.Fatalf("Waive: %v", err)
		}
		return rec
	}

	// waiving more than outstanding is refused
	rec = waive(600)
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("over-waiver status = %d, body=%s", rec.Code, rec.Body)
	}

	// partial waiver lands
	rec = waive(200)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("waive status = %d, body=%s", rec.Code, rec.Body)
	}
	var waived penaltyUC.PenaltyDTO
	_ = json.Unmarshal(rec.Body.Bytes(), &waived)
	if !waived.Outstanding.Equal(dec("300")) || !waived.LoanBalance.Equal(dec("6300")) {
		t.Fatalf("dto after waiver: %+v", waived)
	}
}

func TestWaivePenalty_UnknownPenalty(t *testing.T) {
	e := newEchoWithValidator()
	s := memstore.New()
	l := seedActiveLoan(t, s, "6000")
	h := NewPenaltyHandler(penaltyUC.NewUsecase(s))

	req := httptest.NewRequest(stdhttp.MethodPost, "/", mustJSON(map[string]any{"amount": 100}))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/loans/:loan_id/penalties/:penalty_id/waive")
	c.SetParamNames("loan_id", "penalty_id")
	c.SetParamValues(l.LoanID, "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	if err := h.Waive(c); err != nil {
		t.Fatalf("Waive: %v", err)
	}
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

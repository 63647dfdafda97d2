package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, rdb
}

func setupEcho(rdb *redis.Client, ttl time.Duration, handler echo.HandlerFunc) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(Idempotency(rdb, ttl))
	e.POST("/loans/:loan_id/payments", handler)
	e.GET("/loans/:loan_id/balance", handler)
	return e
}

func mkJSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func doReq(t *testing.T, e *echo.Echo, method, path string, body io.Reader, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func validHeaders() map[string]string {
	return map[string]string{
		"Ax-Request-Id": strings.Repeat("a", 32),
		"Ax-Request-At": time.Now().UTC().Format(time.RFC3339),
		"Ax-Caller-Id":  strings.Repeat("b", 32),
	}
}

func paymentCreatedHandler(c echo.Context) error {
	return c.JSON(http.StatusCreated, map[string]any{"payment_id": "p1", "loan_balance": "5000"})
}

const paymentPath = "/loans/cccccccccccccccccccccccccccccccc/payments"

func Test_Idempotency_BypassesGET(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, time.Minute, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// no Ax headers at all
	rec := doReq(t, e, http.MethodGet, "/loans/cccccccccccccccccccccccccccccccc/balance", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET bypass => want 200, got %d", rec.Code)
	}
}

func Test_Idempotency_HeaderValidation(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, time.Minute, paymentCreatedHandler)

	cases := []struct {
		name   string
		mutate func(map[string]string)
	}{
		{"missing request id", func(h map[string]string) { delete(h, "Ax-Request-Id") }},
		{"malformed request id", func(h map[string]string) { h["Ax-Request-Id"] = "NOT-VALID" }},
		{"missing request at", func(h map[string]string) { delete(h, "Ax-Request-At") }},
		{"garbage request at", func(h map[string]string) { h["Ax-Request-At"] = "yesterday" }},
		{"naive request at", func(h map[string]string) { h["Ax-Request-At"] = "2026-08-29T10:00:00" }},
		{"skewed request at", func(h map[string]string) {
			h["Ax-Request-At"] = time.Now().UTC().Add(-maxClockSkew - time.Minute).Format(time.RFC3339)
		}},
		{"missing caller id", func(h map[string]string) { delete(h, "Ax-Caller-Id") }},
		{"malformed caller id", func(h map[string]string) { h["Ax-Caller-Id"] = "not32hex" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := validHeaders()
			tc.mutate(h)
			rec := doReq(t, e, http.MethodPost, paymentPath, mkJSONBody(t, map[string]int{"amount": 1}), h)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("want 400, got %d body=%s", rec.Code, rec.Body)
			}
		})
	}
}

func Test_Idempotency_ReplaysStoredResponse(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()

	calls := 0
	e := setupEcho(rdb, 2*time.Minute, func(c echo.Context) error {
		calls++
		return paymentCreatedHandler(c)
	})

	h := validHeaders()
	body := map[string]any{"reference": "RCPT-0001", "amount": 6000}

	rec1 := doReq(t, e, http.MethodPost, paymentPath, mkJSONBody(t, body), h)
	if rec1.Code != http.StatusCreated {
		t.Fatalf("first => want 201, got %d body=%s", rec1.Code, rec1.Body)
	}

	rec2 := doReq(t, e, http.MethodPost, paymentPath, mkJSONBody(t, body), h)
	if rec2.Code != http.StatusCreated {
		t.Fatalf("replay => want 201, got %d body=%s", rec2.Code, rec2.Body)
	}
	if rec1.Body.String() != rec2.Body.String() {
		t.Fatalf("replay body mismatch: %q vs %q", rec1.Body, rec2.Body)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times, want 1", calls)
	}
}

func Test_Idempotency_ConflictWhileInProgress(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, 2*time.Minute, paymentCreatedHandler)

	h := validHeaders()
	body := []byte(`{"amount":1}`)

	key := buildKey(http.MethodPost, "/loans/:loan_id/payments", h["Ax-Caller-Id"], h["Ax-Request-Id"])
	entry := idempEntry{
		InProgress:  true,
		BodySHA256:  bodyHash(body),
		RequestID:   h["Ax-Request-Id"],
		RequestAtMS: time.Now().UnixMilli(),
		CreatedAt:   nowUTC(),
	}
	if ok, err := provisionalSet(context.Background(), rdb, key, entry); err != nil || !ok {
		t.Fatalf("seed provisional: ok=%v err=%v", ok, err)
	}

	rec := doReq(t, e, http.MethodPost, paymentPath, bytes.NewReader(body), h)
	if rec.Code != http.StatusConflict {
		t.Fatalf("in-progress => want 409, got %d body=%s", rec.Code, rec.Body)
	}
}

func Test_Idempotency_ConflictOnReusedIDWithDifferentBody(t *testing.T) {
	mr, rdb := newMiniredisClient(t)
	defer mr.Close()
	e := setupEcho(rdb, 2*time.Minute, paymentCreatedHandler)

	h := validHeaders()

	rec := doReq(t, e, http.MethodPost, paymentPath, mkJSONBody(t, map[string]int{"amount": 6000}), h)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first => want 201, got %d", rec.Code)
	}

	rec = doReq(t, e, http.MethodPost, paymentPath, mkJSONBody(t, map[string]int{"amount": 9000}), h)
	if rec.Code != http.StatusConflict {
		t.Fatalf("reused id, new body => want 409, got %d body=%s", rec.Code, rec.Body)
	}
}

func Test_Idempotency_StoreUnavailable(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	e := setupEcho(rdb, time.Minute, paymentCreatedHandler)

	rec := doReq(t, e, http.MethodPost, paymentPath, bytes.NewReader([]byte(`{}`)), validHeaders())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("store down => want 503, got %d", rec.Code)
	}
}

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/defistate/reserve-ledger-go/ledger"
	"github.com/defistate/reserve-ledger-go/store/memory"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l, err := ledger.New(ledger.Config{
		Store:    memory.New(),
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	})
	require.NoError(t, err)
	return NewRouter(l, logger)
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRouter_Flow(t *testing.T) {
	r := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token_reserve":0,"base_reserve":0,"price_range_min":0,"price_range_max":0}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/v1/deposit", `{"tokens":10}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "division_by_zero", decodeError(t, rec).Error)

	rec = do(t, r, http.MethodPost, "/v1/seed", `{"token_reserve":1000,"base_reserve":500,"price_range_min":1,"price_range_max":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"seed","tokens":1000}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/v1/deposit", `{"tokens":100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"deposit","tokens":100}`, rec.Body.String())

	rec = do(t, r, http.MethodPost, "/v1/withdraw", `{"tokens":55}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"action":"withdraw","tokens":55}`, rec.Body.String())

	rec = do(t, r, http.MethodGet, "/v1/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"token_reserve":990,"base_reserve":495,"price_range_min":1,"price_range_max":2}`, rec.Body.String())
}

func TestRouter_Errors(t *testing.T) {
	r := newTestRouter(t)
	rec := do(t, r, http.MethodPost, "/v1/seed", `{"token_reserve":100,"base_reserve":50}`)
	require.Equal(t, http.StatusOK, rec.Code)

	testCases := []struct {
		name           string
		path           string
		body           string
		expectedStatus int
		expectedError  string
	}{
		{"withdraw too much", "/v1/withdraw", `{"tokens":1000}`, http.StatusUnprocessableEntity, "arithmetic_underflow"},
		{"deposit overflow", "/v1/deposit", `{"tokens":18446744073709551615}`, http.StatusUnprocessableEntity, "arithmetic_overflow"},
		{"seed twice", "/v1/seed", `{"token_reserve":1,"base_reserve":1}`, http.StatusConflict, "already_seeded"},
		{"missing tokens", "/v1/deposit", `{}`, http.StatusBadRequest, "bad_request"},
		{"negative tokens", "/v1/deposit", `{"tokens":-1}`, http.StatusBadRequest, "bad_request"},
		{"malformed body", "/v1/withdraw", `{"tokens":`, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, r, http.MethodPost, tc.path, tc.body)
			assert.Equal(t, tc.expectedStatus, rec.Code)
			assert.Equal(t, tc.expectedError, decodeError(t, rec).Error)
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(engine.ErrStorageUnavailable))
	assert.Equal(t, http.StatusBadRequest, statusFor(engine.ErrInvalidPriceRange))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("unexpected")))
}

type unavailableLedger struct{}

func (unavailableLedger) Deposit(context.Context, uint64) (engine.ReserveState, error) {
	return engine.ReserveState{}, engine.ErrStorageUnavailable
}
func (unavailableLedger) Withdraw(context.Context, uint64) (engine.ReserveState, error) {
	return engine.ReserveState{}, engine.ErrStorageUnavailable
}
func (unavailableLedger) Seed(context.Context, engine.ReserveState) (engine.ReserveState, error) {
	return engine.ReserveState{}, engine.ErrStorageUnavailable
}
func (unavailableLedger) QueryState(context.Context) (engine.ReserveState, error) {
	return engine.ReserveState{}, engine.ErrStorageUnavailable
}

func TestRouter_StorageUnavailable(t *testing.T) {
	r := NewRouter(unavailableLedger{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := do(t, r, http.MethodGet, "/v1/state", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "storage_unavailable", decodeError(t, rec).Error)
}

package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/defistate/reserve-ledger-go/engine"
	"github.com/gin-gonic/gin"
)

// Logger defines a standard interface for structured, leveled logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Ledger is the subset of *ledger.Ledger served over REST.
type Ledger interface {
	Deposit(ctx context.Context, tokens uint64) (engine.ReserveState, error)
	Withdraw(ctx context.Context, tokens uint64) (engine.ReserveState, error)
	Seed(ctx context.Context, seed engine.ReserveState) (engine.ReserveState, error)
	QueryState(ctx context.Context) (engine.ReserveState, error)
}

type tokensRequest struct {
	Tokens *uint64 `json:"tokens" binding:"required"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type handler struct {
	ledger Ledger
	logger Logger
}

// NewRouter returns a gin engine serving the ledger under /v1.
func NewRouter(l Ledger, logger Logger) *gin.Engine {
	h := &handler{ledger: l, logger: logger}

	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1")
	v1.GET("/state", h.state)
	v1.POST("/deposit", h.deposit)
	v1.POST("/withdraw", h.withdraw)
	v1.POST("/seed", h.seed)

	return r
}

func (h *handler) state(c *gin.Context) {
	state, err := h.ledger.QueryState(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *handler) deposit(c *gin.Context) {
	var req tokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.ledger.Deposit(c.Request.Context(), *req.Tokens); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, engine.Receipt{Action: engine.ActionDeposit, Tokens: *req.Tokens})
}

func (h *handler) withdraw(c *gin.Context) {
	var req tokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.ledger.Withdraw(c.Request.Context(), *req.Tokens); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, engine.Receipt{Action: engine.ActionWithdraw, Tokens: *req.Tokens})
}

func (h *handler) seed(c *gin.Context) {
	var seed engine.ReserveState
	if err := c.ShouldBindJSON(&seed); err != nil {
		badRequest(c, err)
		return
	}
	if _, err := h.ledger.Seed(c.Request.Context(), seed); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, engine.Receipt{Action: engine.ActionSeed, Tokens: seed.TokenReserve})
}

func (h *handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: engine.ErrorKind(err), Message: err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrArithmeticOverflow),
		errors.Is(err, engine.ErrArithmeticUnderflow),
		errors.Is(err, engine.ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrAlreadySeeded):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidPriceRange):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

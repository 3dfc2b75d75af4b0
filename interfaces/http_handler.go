// Package interfaces is the HTTP surface adapter: it binds/validates the
// wire request, resolves the caller's user id, and translates the
// orchestrator's Outcome into a status code and JSON body (spec §6).
// The HTTP framework itself, auth, and non-mutating read endpoints are
// out of scope per spec §1 — this handler only serves the critical
// mutating endpoint.
package interfaces

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/creditbridge/decision-service/application"
)

var validate = validator.New()

// loanRequestBody is the bound wire shape for POST /api/v1/loans/request.
type loanRequestBody struct {
	RequestedAmount float64 `json:"requested_amount" validate:"required,gt=0"`
	Purpose         string  `json:"purpose" validate:"required"`
}

// LoanHandler serves the critical mutating endpoint.
type LoanHandler struct {
	orchestrator *application.Orchestrator
	logger       *zap.Logger
}

func NewLoanHandler(orchestrator *application.Orchestrator, logger *zap.Logger) *LoanHandler {
	return &LoanHandler{orchestrator: orchestrator, logger: logger}
}

// RequestLoan handles POST /api/v1/loans/request.
func (h *LoanHandler) RequestLoan(c *gin.Context) {
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}

	var body loanRequestBody
	if err := json.Unmarshal(rawBody, &body); err != nil {
		h.logger.Warn("malformed loan request payload", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "malformed request body"})
		return
	}
	if err := validate.Struct(body); err != nil {
		h.logger.Warn("invalid loan request payload", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid request payload", "details": err.Error()})
		return
	}

	userID := resolveUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid bearer identity"})
		return
	}

	outcome := h.orchestrator.HandleLoanRequest(c.Request.Context(), application.LoanRequestInput{
		UserID:          userID,
		IdempotencyKey:  c.GetHeader("Idempotency-Key"),
		RequestedAmount: body.RequestedAmount,
		Purpose:         body.Purpose,
		RawBody:         rawBody,
	})

	if outcome.Err != nil {
		if outcome.StatusCode == http.StatusTooManyRequests {
			c.Header("Retry-After", strconv.Itoa(outcome.RetryAfterSeconds))
		}
		c.JSON(outcome.StatusCode, gin.H{"error": outcome.Err.Message, "code": outcome.Err.Code})
		return
	}

	c.JSON(outcome.StatusCode, outcome.Response)
}

// resolveUserID extracts the bearer-resolved identity. Bearer validation
// itself is an external collaborator (spec §1); this handler trusts an
// upstream auth layer to have set this header.
func resolveUserID(c *gin.Context) string {
	return c.GetHeader("X-User-Id")
}

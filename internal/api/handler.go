// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"loan-manager/internal/cbs"
	apperrors "loan-manager/internal/common/errors"
	"loan-manager/internal/common/logger"
	"loan-manager/internal/common/validation"
	"loan-manager/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// LoanWorkflow is the loan service as seen by the HTTP layer.
type LoanWorkflow interface {
	Subscribe(ctx context.Context, customerNumber string) (*models.LoanApplication, error)
	RequestLoan(ctx context.Context, customerNumber string, amount decimal.Decimal) (*models.LoanApplication, error)
	GetStatus(ctx context.Context, customerNumber string) (*models.LoanApplication, error)
}

type subscribeRequest struct {
	CustomerNumber string `json:"customerNumber"`
}

type loanRequest struct {
	CustomerNumber string          `json:"customerNumber"`
	Amount         decimal.Decimal `json:"amount"`
}

type loanAccepted struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	ApplicationID string `json:"applicationId"`
}

type messageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Handler serves the mobile API and the scoring-engine callback.
type Handler struct {
	workflow        LoanWorkflow
	transactions    cbs.TransactionProvider
	errors          *apperrors.ErrorHandler
	logger          logger.Logger
	subscribeSchema *validation.Validator
	loanSchema      *validation.Validator
}

func NewHandler(workflow LoanWorkflow, transactions cbs.TransactionProvider, errHandler *apperrors.ErrorHandler, log logger.Logger) *Handler {
	return &Handler{
		workflow:        workflow,
		transactions:    transactions,
		errors:          errHandler,
		logger:          logger.ForComponent(log, "api"),
		subscribeSchema: validation.MustValidator(validation.SubscribeSchema),
		loanSchema:      validation.MustValidator(validation.LoanRequestSchema),
	}
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r, h.subscribeSchema, "Customer number is required.")
	if !ok {
		return
	}
	var req subscribeRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.errors.WriteError(w, r, apperrors.NewValidationError("Customer number is required."))
		return
	}

	if _, err := h.workflow.Subscribe(r.Context(), req.CustomerNumber); err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Status: "SUCCESS", Message: "Customer verified and subscribed."})
}

func (h *Handler) RequestLoan(w http.ResponseWriter, r *http.Request) {
	const required = "Customer number and amount are required."
	body, ok := h.readBody(w, r, h.loanSchema, required)
	if !ok {
		return
	}
	var req loanRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.errors.WriteError(w, r, apperrors.NewValidationError(required))
		return
	}

	app, err := h.workflow.RequestLoan(r.Context(), req.CustomerNumber, req.Amount)
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, loanAccepted{
		Status:        app.Status.String(),
		Message:       "Loan application submitted. Scoring is in progress.",
		ApplicationID: app.ID,
	})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	app, err := h.workflow.GetStatus(r.Context(), chi.URLParam(r, "customerNumber"))
	if err != nil {
		h.errors.WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusView(app))
}

// Transactions is called by the scoring engine while it computes a score.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	customerNumber := strings.TrimSpace(chi.URLParam(r, "customerNumber"))
	if customerNumber == "" {
		h.errors.WriteError(w, r, apperrors.NewValidationError("Customer number is required."))
		return
	}
	h.logger.Info("transaction data requested", map[string]interface{}{
		logger.FieldCustomerNumber: customerNumber,
	})

	txs, err := h.transactions.GetTransactions(r.Context(), customerNumber)
	if err != nil {
		h.errors.WriteError(w, r, apperrors.NewInternalError(err))
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// readBody reads and schema-checks a request body. On failure it has
// already written the response.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request, schema *validation.Validator, message string) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.errors.WriteError(w, r, apperrors.NewValidationError("Request body could not be read."))
		return nil, false
	}

	result := schema.Validate(body)
	if !result.Valid {
		h.logger.Debug("request failed schema validation", map[string]interface{}{
			"path":   r.URL.Path,
			"errors": result.GetErrorMessages(),
		})
		h.errors.WriteError(w, r, apperrors.NewValidationError(message))
		return nil, false
	}
	return body, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// internal/api/status.go
package api

import (
	"loan-manager/internal/models"

	"github.com/shopspring/decimal"
)

// StatusView is the mobile status response.
type StatusView struct {
	CustomerNumber  string           `json:"customerNumber"`
	ApplicationID   string           `json:"applicationId"`
	Status          string           `json:"status"`
	Message         string           `json:"message"`
	RequestedAmount *decimal.Decimal `json:"requestedAmount"`
	LimitAmount     *decimal.Decimal `json:"limitAmount"`
	Score           *int             `json:"score"`
}

func newStatusView(app *models.LoanApplication) StatusView {
	view := StatusView{
		CustomerNumber: app.CustomerNumber,
		ApplicationID:  app.ID,
		Status:         app.Status.String(),
		Message:        statusMessage(app),
		Score:          app.Score,
	}
	if !app.RequestedAmount.IsZero() {
		amount := app.RequestedAmount
		view.RequestedAmount = &amount
	}
	if app.LimitAmount.Valid {
		limit := app.LimitAmount.Decimal
		view.LimitAmount = &limit
	}
	return view
}

func statusMessage(app *models.LoanApplication) string {
	switch app.Status {
	case models.StatusPendingScore, models.StatusScoringInProgress:
		return "Scoring is in progress."
	case models.StatusScoringFailed:
		return orDefault(app.FailureMessage, "Could not retrieve score. Please try applying again later.")
	case models.StatusApproved:
		return "Loan approved."
	case models.StatusActive:
		return "Loan is active."
	case models.StatusRejectedLimit:
		return orDefault(app.FailureMessage, "Loan application rejected. Requested amount exceeds limit.")
	case models.StatusRejectedExclusion:
		return orDefault(app.FailureMessage, "Loan application rejected due to exclusion.")
	case models.StatusRejectedKYCFailed:
		return orDefault(app.FailureMessage, "Loan application rejected due to KYC validation failure.")
	case models.StatusEligible:
		return "Customer is eligible to apply for a loan."
	default:
		return "Status: " + app.Status.String()
	}
}

func orDefault(msg, fallback string) string {
	if msg == "" {
		return fallback
	}
	return msg
}

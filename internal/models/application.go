// internal/models/application.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanApplication is the single record kept per customer number.
type LoanApplication struct {
	ID              string              `json:"id"`
	CustomerNumber  string              `json:"customerNumber"`
	Status          LoanStatus          `json:"status"`
	RequestedAmount decimal.Decimal     `json:"requestedAmount"`
	ScoringToken    string              `json:"scoringToken,omitempty"`
	Score           *int                `json:"score,omitempty"`
	LimitAmount     decimal.NullDecimal `json:"limitAmount"`
	ExclusionReason string              `json:"exclusionReason,omitempty"`
	FailureMessage  string              `json:"failureMessage,omitempty"`
	RetryCount      int                 `json:"retryCount"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

// NewLoanApplication creates a record in PENDING_SUBSCRIPTION.
func NewLoanApplication(customerNumber string) *LoanApplication {
	now := time.Now().UTC()
	return &LoanApplication{
		ID:             uuid.New().String(),
		CustomerNumber: customerNumber,
		Status:         StatusPendingSubscription,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ResetScoring clears every field produced by a previous scoring round.
func (a *LoanApplication) ResetScoring() {
	a.ScoringToken = ""
	a.Score = nil
	a.LimitAmount = decimal.NullDecimal{}
	a.ExclusionReason = ""
	a.FailureMessage = ""
	a.RetryCount = 0
}

// Clone returns a deep copy so callers never share mutable state with a store.
func (a *LoanApplication) Clone() *LoanApplication {
	if a == nil {
		return nil
	}
	c := *a
	if a.Score != nil {
		score := *a.Score
		c.Score = &score
	}
	return &c
}

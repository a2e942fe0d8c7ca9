// internal/scoring/evaluator.go
package scoring

import (
	"strings"

	"loan-manager/internal/models"

	"github.com/shopspring/decimal"
)

const (
	exclusionMessagePrefix = "Rejected due to exclusion: "
	limitMessage           = "Rejected due to insufficient limit."
)

// Decision is the outcome of evaluating a score against a request.
type Decision struct {
	Status         models.LoanStatus
	FailureMessage string
}

// Evaluate decides a scoring round. An exclusion other than "No Exclusion"
// (case-insensitive) rejects first; then a known limit below the requested
// amount rejects; anything else approves. A limit equal to the request approves.
func Evaluate(requested decimal.Decimal, result models.ScoreResult) Decision {
	if exclusion := strings.TrimSpace(result.Exclusion); exclusion != "" &&
		!strings.EqualFold(exclusion, models.NoExclusion) {
		return Decision{
			Status:         models.StatusRejectedExclusion,
			FailureMessage: exclusionMessagePrefix + result.ExclusionReason,
		}
	}

	if result.LimitAmount.Valid && result.LimitAmount.Decimal.LessThan(requested) {
		return Decision{
			Status:         models.StatusRejectedLimit,
			FailureMessage: limitMessage,
		}
	}

	return Decision{Status: models.StatusApproved}
}

// Apply copies the score onto the application and sets the decided status.
func Apply(app *models.LoanApplication, result models.ScoreResult) Decision {
	score := result.Score
	app.Score = &score
	app.LimitAmount = result.LimitAmount
	app.ExclusionReason = result.ExclusionReason

	decision := Evaluate(app.RequestedAmount, result)
	app.Status = decision.Status
	app.FailureMessage = decision.FailureMessage
	return decision
}

// internal/models/score.go
package models

import "github.com/shopspring/decimal"

// NoExclusion is the exclusion value the scoring service sends for an eligible customer.
const NoExclusion = "No Exclusion"

// ScoreResult is the payload of a completed score query.
type ScoreResult struct {
	ID              int64               `json:"id,omitempty"`
	CustomerNumber  string              `json:"customerNumber,omitempty"`
	Score           int                 `json:"score"`
	LimitAmount     decimal.NullDecimal `json:"limitAmount"`
	Exclusion       string              `json:"exclusion"`
	ExclusionReason string              `json:"exclusionReason"`
}

// internal/models/status.go
package models

// LoanStatus is the lifecycle state of a customer's loan application.
type LoanStatus string

const (
	StatusPendingSubscription LoanStatus = "PENDING_SUBSCRIPTION"
	StatusEligible            LoanStatus = "ELIGIBLE"
	StatusPendingScore        LoanStatus = "PENDING_SCORE"
	StatusScoringInProgress   LoanStatus = "SCORING_IN_PROGRESS"
	StatusScoringFailed       LoanStatus = "SCORING_FAILED"
	StatusApproved            LoanStatus = "APPROVED"
	StatusRejectedLimit       LoanStatus = "REJECTED_LIMIT"
	StatusRejectedExclusion   LoanStatus = "REJECTED_EXCLUSION"
	StatusRejectedKYCFailed   LoanStatus = "REJECTED_KYC_FAILED"
	// StatusActive is reserved for a disbursement step. Nothing in this service sets it.
	StatusActive LoanStatus = "ACTIVE"
	// StatusFailedConcurrent is never persisted. It only travels as the status
	// hint of a refused loan request.
	StatusFailedConcurrent LoanStatus = "FAILED_CONCURRENT"
)

// IsBlocking reports whether a customer in this status holds an active process.
func (s LoanStatus) IsBlocking() bool {
	switch s {
	case StatusPendingScore, StatusScoringInProgress, StatusActive:
		return true
	}
	return false
}

// AcceptsLoanRequest reports whether a new loan request may start from this status.
func (s LoanStatus) AcceptsLoanRequest() bool {
	switch s {
	case StatusEligible, StatusScoringFailed, StatusRejectedLimit,
		StatusRejectedExclusion, StatusRejectedKYCFailed:
		return true
	}
	return false
}

// IsScoring reports whether a scoring round owns the record.
func (s LoanStatus) IsScoring() bool {
	return s == StatusPendingScore || s == StatusScoringInProgress
}

// IsTerminal reports whether the status ends a scoring round.
func (s LoanStatus) IsTerminal() bool {
	switch s {
	case StatusApproved, StatusRejectedLimit, StatusRejectedExclusion, StatusScoringFailed:
		return true
	}
	return false
}

func (s LoanStatus) String() string {
	return string(s)
}

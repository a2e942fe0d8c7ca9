// internal/scoring/gateway.go
package scoring

import (
	"context"
	"fmt"

	"loan-manager/internal/models"
)

// Gateway is the boundary to the external scoring service.
type Gateway interface {
	// Initiate starts a scoring round and returns the token used to poll it.
	Initiate(ctx context.Context, customerNumber string) (string, error)
	// Poll asks for the result of a scoring round. A nil error with a
	// not-ready result means the caller should try again later.
	Poll(ctx context.Context, token string) (PollResult, error)
}

// PollResult is either Ready with a score, or not ready.
type PollResult struct {
	Ready  bool
	Result models.ScoreResult
}

// Ready wraps a completed score.
func Ready(result models.ScoreResult) PollResult {
	return PollResult{Ready: true, Result: result}
}

// NotReady is returned while the scoring service is still computing.
func NotReady() PollResult {
	return PollResult{}
}

// ErrorKind classifies a gateway failure.
type ErrorKind string

const (
	KindNetwork    ErrorKind = "network"
	KindClient     ErrorKind = "client_error"
	KindServer     ErrorKind = "server_error"
	KindEmpty      ErrorKind = "empty_response"
	KindUnexpected ErrorKind = "unexpected_response"
)

// GatewayError is the tagged failure returned by Gateway implementations.
type GatewayError struct {
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s (%d): %v", e.Kind, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s (%d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable reports whether polling again may succeed. Only network
// failures and 5xx responses are transient.
func (e *GatewayError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindServer
}

func newGatewayError(kind ErrorKind, status int, err error) *GatewayError {
	return &GatewayError{Kind: kind, StatusCode: status, Err: err}
}

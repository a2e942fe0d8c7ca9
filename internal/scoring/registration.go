// internal/scoring/registration.go
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	commonhttp "loan-manager/internal/common/http"
	"loan-manager/internal/common/logger"

	"github.com/google/uuid"
)

const (
	registrationPath = "/client/createClient"
	// TransactionsPathTemplate is the endpoint the scoring engine calls back for transaction history.
	TransactionsPathTemplate = "/api/v1/lms/transactions/{customerNumber}"
)

// RegistrationRequest is the body sent to the scoring service's client registry.
type RegistrationRequest struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegistrationResponse is the registry's answer. Token is the client-token
// to send on score queries.
type RegistrationResponse struct {
	ID       int64  `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Token    string `json:"token"`
}

// Registrar registers this service as a transaction-data provider.
type Registrar struct {
	baseURL string
	client  *commonhttp.Client
	logger  logger.Logger
}

func NewRegistrar(cfg *Config, log logger.Logger, opts ...commonhttp.Option) *Registrar {
	return &Registrar{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  commonhttp.NewClient(cfg.Timeout, opts...),
		logger:  logger.ForComponent(log, "client-registration"),
	}
}

// Register posts the callback URL and basic-auth credentials and returns the issued token.
func (r *Registrar) Register(ctx context.Context, publicURL, clientName, username, password string) (*RegistrationResponse, error) {
	callback := strings.TrimRight(publicURL, "/") + TransactionsPathTemplate
	body, err := json.Marshal(RegistrationRequest{
		URL:      callback,
		Name:     fmt.Sprintf("%s-%s", clientName, uuid.NewString()[:8]),
		Username: username,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("encode registration: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+registrationPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	r.logger.Info("registering with scoring engine", map[string]interface{}{
		"callbackUrl":     callback,
		"registrationUrl": r.baseURL + registrationPath,
	})

	resp, err := r.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, newGatewayError(KindNetwork, 0, err)
	}
	defer resp.Body.Close()

	if gwErr := classifyStatus(resp); gwErr != nil {
		return nil, gwErr
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, newGatewayError(KindNetwork, resp.StatusCode, err)
	}
	var out RegistrationResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, newGatewayError(KindUnexpected, resp.StatusCode, fmt.Errorf("decode registration: %w", err))
	}
	if out.Token == "" {
		return nil, newGatewayError(KindEmpty, resp.StatusCode, ErrEmptyToken)
	}
	return &out, nil
}

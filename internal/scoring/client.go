// internal/scoring/client.go
package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	commonhttp "loan-manager/internal/common/http"
	"loan-manager/internal/common/logger"
	"loan-manager/internal/models"
)

const (
	initiatePath = "/scoring/initiateQueryScore/"
	queryPath    = "/scoring/queryScore/"

	// ClientTokenHeader carries the credential issued at client registration.
	ClientTokenHeader = "client-token"

	maxBodyBytes = 1 << 20
)

var ErrEmptyToken = errors.New("no token received")

// HTTPGateway talks to the real scoring service.
type HTTPGateway struct {
	baseURL string
	client  *commonhttp.Client
	logger  logger.Logger
}

func NewHTTPGateway(cfg *Config, log logger.Logger, opts ...commonhttp.Option) *HTTPGateway {
	opts = append([]commonhttp.Option{
		commonhttp.WithHeader(ClientTokenHeader, cfg.ClientToken),
		commonhttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}, opts...)

	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  commonhttp.NewClient(cfg.Timeout, opts...),
		logger:  logger.ForComponent(log, "scoring-gateway"),
	}
}

func (g *HTTPGateway) Initiate(ctx context.Context, customerNumber string) (string, error) {
	resp, err := g.get(ctx, initiatePath+url.PathEscape(customerNumber), "text/plain")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if gwErr := classifyStatus(resp); gwErr != nil {
		return "", gwErr
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", newGatewayError(KindNetwork, resp.StatusCode, fmt.Errorf("read token: %w", err))
	}

	token := strings.TrimSpace(string(body))
	if token == "" {
		return "", newGatewayError(KindEmpty, resp.StatusCode, ErrEmptyToken)
	}

	g.logger.Info("scoring initiated", map[string]interface{}{
		logger.FieldCustomerNumber: customerNumber,
	})
	return token, nil
}

func (g *HTTPGateway) Poll(ctx context.Context, token string) (PollResult, error) {
	resp, err := g.get(ctx, queryPath+url.PathEscape(token), "application/json")
	if err != nil {
		return PollResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusNoContent:
		return NotReady(), nil
	case http.StatusOK:
	default:
		if gwErr := classifyStatus(resp); gwErr != nil {
			return PollResult{}, gwErr
		}
		return PollResult{}, newGatewayError(KindUnexpected, resp.StatusCode,
			fmt.Errorf("unexpected success status"))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return PollResult{}, newGatewayError(KindNetwork, resp.StatusCode, fmt.Errorf("read score: %w", err))
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return PollResult{}, newGatewayError(KindEmpty, resp.StatusCode, fmt.Errorf("empty score body"))
	}

	var result models.ScoreResult
	if err := json.Unmarshal(body, &result); err != nil {
		return PollResult{}, newGatewayError(KindUnexpected, resp.StatusCode, fmt.Errorf("decode score: %w", err))
	}
	return Ready(result), nil
}

func (g *HTTPGateway) get(ctx context.Context, path, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, newGatewayError(KindUnexpected, 0, err)
	}
	req.Header.Set("Accept", accept)

	resp, err := g.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, newGatewayError(KindNetwork, 0, err)
	}
	return resp, nil
}

// classifyStatus maps non-2xx responses to a GatewayError. 2xx returns nil.
func classifyStatus(resp *http.Response) *GatewayError {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return nil
	case code >= 400 && code < 500:
		return newGatewayError(KindClient, code, nil)
	case code >= 500:
		return newGatewayError(KindServer, code, nil)
	default:
		return newGatewayError(KindUnexpected, code, nil)
	}
}

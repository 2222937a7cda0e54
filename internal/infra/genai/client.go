package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/domain"
)

const maxResponseBytes = 4 << 20

// quotaCodes are gateway error codes that mean the caller ran out of quota.
var quotaCodes = map[string]bool{
	"rate_limited":       true,
	"quota_exceeded":     true,
	"resource_exhausted": true,
	"insufficient_quota": true,
}

// Client posts generation requests to an AI gateway. It implements app.TextGenerator.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type generateResponse struct {
	Text  string        `json:"text"`
	Error *gatewayError `json:"error,omitempty"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) Generate(ctx context.Context, req app.GenerationRequest) (string, error) {
	if c.endpoint == "" {
		return "", fmt.Errorf("%w: ai endpoint is not configured", domain.ErrExternalService)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: call ai gateway: %v", domain.ErrExternalService, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: read ai response: %v", domain.ErrExternalService, err)
	}
	var out generateResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", domain.ErrRateLimited
	}
	if decodeErr == nil && out.Error != nil && quotaCodes[strings.ToLower(out.Error.Code)] {
		return "", domain.ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := resp.Status
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("%w: ai gateway returned %s", domain.ErrExternalService, msg)
	}
	if decodeErr != nil {
		return "", fmt.Errorf("%w: decode ai response: %v", domain.ErrExternalService, decodeErr)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: ai gateway error %s: %s", domain.ErrExternalService, out.Error.Code, out.Error.Message)
	}
	return out.Text, nil
}

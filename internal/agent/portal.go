package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wifi-admission-backend/internal/model"
)

// Identity is what the gateway knows about the caller.
type Identity struct {
	MAC string `json:"mac"`
	IP  string `json:"ip"`
}

// Known reports whether the gateway could resolve the caller's MAC.
func (i Identity) Known() bool {
	return i.MAC != "" && i.MAC != "unknown"
}

// PlanRequest is the body of a subscription request.
type PlanRequest struct {
	MACAddress    string  `json:"mac_address"`
	PlanID        int64   `json:"plan_id"`
	Mobile        string  `json:"mobile"`
	PaymentMethod string  `json:"payment_method"`
	AmountPaid    float64 `json:"amount_paid"`
	TransactionID string  `json:"transaction_id"`
}

// Portal is the gateway's public API as seen from a device.
type Portal interface {
	WhoAmI(ctx context.Context) (Identity, error)
	Status(ctx context.Context, mac string) (model.Status, error)
	Plans(ctx context.Context) ([]model.Plan, error)
	RequestPlan(ctx context.Context, req PlanRequest) error
}

// HTTPPortal talks to the gateway over its JSON API.
type HTTPPortal struct {
	baseURL string
	client  *http.Client
}

func NewHTTPPortal(baseURL string, client *http.Client) *HTTPPortal {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPPortal{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *HTTPPortal) WhoAmI(ctx context.Context) (Identity, error) {
	var id Identity
	err := p.do(ctx, http.MethodGet, "/api/auth/whoami", nil, &id)
	return id, err
}

func (p *HTTPPortal) Status(ctx context.Context, mac string) (model.Status, error) {
	var resp struct {
		Status model.Status `json:"status"`
	}
	if err := p.do(ctx, http.MethodGet, "/api/auth/status?mac="+url.QueryEscape(mac), nil, &resp); err != nil {
		return "", err
	}
	if resp.Status == "" {
		return "", fmt.Errorf("status response has no status field")
	}
	return resp.Status, nil
}

func (p *HTTPPortal) Plans(ctx context.Context) ([]model.Plan, error) {
	var plans []model.Plan
	err := p.do(ctx, http.MethodGet, "/api/public/plans", nil, &plans)
	return plans, err
}

func (p *HTTPPortal) RequestPlan(ctx context.Context, req PlanRequest) error {
	return p.do(ctx, http.MethodPost, "/api/auth/request-plan", req, nil)
}

func (p *HTTPPortal) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %d: %s", method, path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%s %s: received status code %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

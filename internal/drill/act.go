package drill

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/crowdwatch/internal/agents"
)

// Actor drives the control endpoints with admin auth.
type Actor struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with admin auth.
func NewActor(baseURL, adminKey string) *Actor {
	return &Actor{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (a *Actor) Start(ctx context.Context) error { return a.post(ctx, "/api/v1/start", nil, nil) }
func (a *Actor) Stop(ctx context.Context) error  { return a.post(ctx, "/api/v1/stop", nil, nil) }
func (a *Actor) Reset(ctx context.Context) error { return a.post(ctx, "/api/v1/reset", nil, nil) }

// Inject posts a stampede condition. A nil condition asks the service for a
// random one. The active condition is returned.
func (a *Actor) Inject(ctx context.Context, cond *agents.Condition) (agents.Condition, error) {
	var out struct {
		Condition agents.Condition `json:"condition"`
	}
	var body any
	if cond != nil {
		body = cond
	}
	err := a.post(ctx, "/api/v1/stampede", body, &out)
	return out.Condition, err
}

// ToggleMonitor flips the monitor and returns whether it is now active.
func (a *Actor) ToggleMonitor(ctx context.Context) (bool, error) {
	var out struct {
		Active bool `json:"monitor_active"`
	}
	err := a.post(ctx, "/api/v1/monitor/toggle", nil, &out)
	return out.Active, err
}

// SetInterval changes the check interval and returns the applied value.
func (a *Actor) SetInterval(ctx context.Context, seconds int) (int, error) {
	var out struct {
		Applied int `json:"check_interval"`
	}
	err := a.post(ctx, "/api/v1/monitor/interval", map[string]int{"seconds": seconds}, &out)
	return out.Applied, err
}

func (a *Actor) post(ctx context.Context, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.AdminKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s failed (%d): %s", path, resp.StatusCode, string(respBody))
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

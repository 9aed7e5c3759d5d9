// Package drill implements the operator drill client. It observes the
// service via the API, injects a stampede scenario via the control
// endpoints, and measures how long the monitor takes to raise an alert.
package drill

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/crowdwatch/internal/api"
	"github.com/talgya/crowdwatch/internal/risk"
	"github.com/talgya/crowdwatch/internal/venue"
)

// Snapshot holds all data collected during an observation cycle.
type Snapshot struct {
	Status api.Status        `json:"status"`
	Zones  []venue.ZoneStats `json:"zones"`
	Alerts []risk.Alert      `json:"alerts"`
}

// Observer fetches service state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Observe fetches status, zones and retained alerts.
func (o *Observer) Observe(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{}

	if err := o.fetchJSON(ctx, "/api/v1/status", &snap.Status); err != nil {
		return nil, fmt.Errorf("fetch status: %w", err)
	}
	var zones struct {
		Zones []venue.ZoneStats `json:"zones"`
	}
	if err := o.fetchJSON(ctx, "/api/v1/zones", &zones); err != nil {
		return nil, fmt.Errorf("fetch zones: %w", err)
	}
	snap.Zones = zones.Zones

	alerts, err := o.Alerts(ctx)
	if err != nil {
		return nil, err
	}
	snap.Alerts = alerts
	return snap, nil
}

// Alerts fetches only the retained alert window.
func (o *Observer) Alerts(ctx context.Context) ([]risk.Alert, error) {
	var body struct {
		Alerts []risk.Alert `json:"alerts"`
	}
	if err := o.fetchJSON(ctx, "/api/v1/alerts", &body); err != nil {
		return nil, fmt.Errorf("fetch alerts: %w", err)
	}
	return body.Alerts, nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

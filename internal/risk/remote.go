package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// RemoteScorer posts the Request contract as JSON to an out-of-process
// scoring service and decodes a Response.
type RemoteScorer struct {
	url        string
	httpClient *http.Client

	// Rate limiting: max calls per minute.
	mu        sync.Mutex
	callCount int
	resetAt   time.Time
	maxPerMin int
}

// NewRemoteScorer creates a scorer for the given endpoint.
// Returns nil if url is empty (remote scoring disabled).
func NewRemoteScorer(url string, timeout time.Duration, maxPerMin int) *RemoteScorer {
	if url == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RemoteScorer{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxPerMin: maxPerMin,
	}
}

// Enabled returns true if the scorer has an endpoint.
func (c *RemoteScorer) Enabled() bool {
	return c != nil && c.url != ""
}

func (c *RemoteScorer) allow() bool {
	if c.maxPerMin <= 0 {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	if now.After(c.resetAt) {
		c.callCount = 0
		c.resetAt = now.Add(time.Minute)
	}
	if c.callCount >= c.maxPerMin {
		return false
	}
	c.callCount++
	return true
}

// Score sends one zone to the remote service.
func (c *RemoteScorer) Score(ctx context.Context, req Request) (Response, error) {
	if !c.Enabled() {
		return Response{}, fmt.Errorf("remote scorer not configured")
	}
	if !c.allow() {
		return Response{}, fmt.Errorf("rate limit exceeded (%d calls/min)", c.maxPerMin)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("scoring call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("scoring error %d: %s", resp.StatusCode, string(respBody))
	}

	var out Response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Response{}, fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Prediction != nil && (*out.Prediction < 0 || *out.Prediction > 1) {
		return Response{}, fmt.Errorf("prediction %v outside [0,1]", *out.Prediction)
	}

	slog.Debug("remote score", "zone", req.ZoneID, "is_stampede", out.IsStampede)
	return out, nil
}

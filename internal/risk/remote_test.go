package risk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/talgya/crowdwatch/internal/venue"
)

func TestRemoteScorerRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.ZoneID != 2 || len(req.AdjacentZoneIDs) != 2 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Write([]byte(`{"is_stampede":true,"prediction":0.42,"safe_zones":[5]}`))
	}))
	defer srv.Close()

	c := NewRemoteScorer(srv.URL, time.Second, 0)
	resp, err := c.Score(context.Background(), Request{ZoneID: 2, AdjacentZoneIDs: []int{1, 3}})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !resp.IsStampede || resp.Prediction == nil || *resp.Prediction != 0.42 || resp.SafeZones[0] != 5 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestRemoteScorerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	if NewRemoteScorer("", time.Second, 0) != nil {
		t.Fatalf("empty url should disable the scorer")
	}
	c := NewRemoteScorer(srv.URL, time.Second, 1)
	if _, err := c.Score(context.Background(), Request{}); err == nil {
		t.Fatalf("expected error for 502")
	}
	if _, err := c.Score(context.Background(), Request{}); err == nil {
		t.Fatalf("expected rate limit error")
	}
}

func TestPredictAPIScorer(t *testing.T) {
	var got predictInput
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"is_stampede":true}`))
	}))
	defer srv.Close()

	reg := venue.Reference()
	p := NewPredictAPIScorer(srv.URL, reg, 7, time.Second)
	p.now = func() time.Time { return time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC) }

	resp, err := p.Score(context.Background(), Request{ZoneID: 1, Density: 0.7, AverageSpeed: 0.01, PeopleCount: 21000, IsEntryExit: true})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !resp.IsStampede || resp.Prediction != nil {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.AreaSqMeters != 30000 || got.NumPeople != 21000 || got.GateCongestionLevel != "high" {
		t.Fatalf("unexpected payload %+v", got)
	}
	if got.CrowdNoiseDB < 55 || got.CrowdNoiseDB > 96 {
		t.Fatalf("noise %v out of expected range", got.CrowdNoiseDB)
	}
	if got.Timestamp != "2026-03-01T18:00:00Z" {
		t.Fatalf("timestamp = %s", got.Timestamp)
	}

	if _, err := p.Score(context.Background(), Request{ZoneID: 42}); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}

func TestGateCongestion(t *testing.T) {
	cases := []struct {
		req  Request
		want string
	}{
		{Request{IsEntryExit: false, Density: 0.9}, "low"},
		{Request{IsEntryExit: true, Density: 0.1}, "low"},
		{Request{IsEntryExit: true, Density: 0.3}, "medium"},
		{Request{IsEntryExit: true, Density: 0.6}, "high"},
	}
	for _, tc := range cases {
		if got := GateCongestion(tc.req); got != tc.want {
			t.Fatalf("GateCongestion(%+v) = %s, want %s", tc.req, got, tc.want)
		}
	}
}

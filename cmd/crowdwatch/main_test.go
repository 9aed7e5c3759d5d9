package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/talgya/crowdwatch/internal/config"
	"github.com/talgya/crowdwatch/internal/risk"
)

func TestNewScorerKinds(t *testing.T) {
	cfg := config.Default()
	reg, err := cfg.Registry()
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		kind    string
		url     string
		wantErr bool
	}{
		{config.ScorerHeuristic, "", false},
		{config.ScorerRemote, "http://localhost:9/predict", false},
		{config.ScorerPredictAPI, "http://localhost:9/predict", false},
		{"oracle", "", true},
	}
	for _, tt := range tests {
		cfg.Scorer.Kind = tt.kind
		cfg.Scorer.URL = tt.url
		s, err := newScorer(cfg, reg, 1)
		if (err != nil) != tt.wantErr {
			t.Fatalf("newScorer(%q) error = %v, wantErr %v", tt.kind, err, tt.wantErr)
		}
		if !tt.wantErr && s == nil {
			t.Fatalf("newScorer(%q) returned nil scorer", tt.kind)
		}
	}

	cfg.Scorer.Kind = config.ScorerHeuristic
	s, _ := newScorer(cfg, reg, 1)
	if _, ok := s.(*risk.Heuristic); !ok {
		t.Fatalf("heuristic kind built %T", s)
	}
}

func TestHeadlessZoneIncident(t *testing.T) {
	t.Setenv("CROWDWATCH_SCORER_LATENCY_MS", "0")

	var out bytes.Buffer
	o := headlessOpts{ticks: 30, stampedeAt: 5, kind: "zone_incident", zone: 2, population: 300}
	if err := runHeadless(context.Background(), "", o, &out); err != nil {
		t.Fatalf("runHeadless: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "30 ticks over 300 agents") {
		t.Fatalf("missing summary line:\n%s", got)
	}
	if !strings.Contains(got, "condition: Incident in") {
		t.Fatalf("missing condition line:\n%s", got)
	}
	if !strings.Contains(got, "ZONE") {
		t.Fatalf("missing zone table:\n%s", got)
	}
}

func TestHeadlessRejectsUnknownZone(t *testing.T) {
	var out bytes.Buffer
	o := headlessOpts{ticks: 3, stampedeAt: 1, kind: "zone_incident", zone: 99, population: 10}
	if err := runHeadless(context.Background(), "", o, &out); err == nil {
		t.Fatal("expected error for unknown zone")
	}
}

package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/crowdwatch/internal/risk"
	"github.com/talgya/crowdwatch/internal/venue"
)

const (
	maxStreamConns        = 16
	defaultStreamInterval = 500 * time.Millisecond
	writeWait             = 5 * time.Second
	readWait              = 60 * time.Second
)

// StateFrame is pushed to stream clients at a fixed cadence.
type StateFrame struct {
	Type          string            `json:"type"` // "state"
	Tick          uint64            `json:"tick"`
	Running       bool              `json:"running"`
	MonitorActive bool              `json:"monitor_active"`
	Zones         []venue.ZoneStats `json:"zones"`
}

// AlertsFrame is pushed after every monitor firing that raised alerts.
type AlertsFrame struct {
	Type   string       `json:"type"` // "alerts"
	Alerts []risk.Alert `json:"alerts"`
}

func (s *Server) stateFrame() StateFrame {
	snap := s.Eng.Sim.Snapshot()
	return StateFrame{
		Type:          "state",
		Tick:          snap.Tick,
		Running:       s.Eng.Running(),
		MonitorActive: s.Eng.Monitor.Active(),
		Zones:         snap.Zones,
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.streamConns.Add(1) > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	interval := s.StreamInterval
	if interval <= 0 {
		interval = defaultStreamInterval
	}

	alerts, unsubscribe := s.Eng.Monitor.Subscribe()
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Writer goroutine.
	writeErr := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		send := func(v any) error {
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteMessage(websocket.TextMessage, b)
		}

		if err := send(s.stateFrame()); err != nil {
			writeErr <- err
			return
		}
		for {
			select {
			case <-ctx.Done():
				writeErr <- ctx.Err()
				return
			case batch := <-alerts:
				if err := send(AlertsFrame{Type: "alerts", Alerts: batch}); err != nil {
					writeErr <- err
					return
				}
			case <-ticker.C:
				if err := send(s.stateFrame()); err != nil {
					writeErr <- err
					return
				}
			}
		}
	}()

	// Reader loop: clients only send pings or close.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	cancel()
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

	select {
	case err := <-writeErr:
		if err != nil && err != context.Canceled {
			slog.Debug("stream writer stopped", "error", err)
		}
	case <-time.After(500 * time.Millisecond):
	}
}

package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/crowdwatch/internal/venue"
)

// predictInput is the payload of the crowd model's /predict endpoint.
type predictInput struct {
	Timestamp           string  `json:"timestamp"`
	NumPeople           int     `json:"num_people"`
	AreaSqMeters        float64 `json:"area_sq_meters"`
	Density             float64 `json:"density_people_per_sq_meter"`
	AverageSpeed        float64 `json:"average_speed_mps"`
	CrowdNoiseDB        float64 `json:"crowd_noise_db"`
	GateCongestionLevel string  `json:"gate_congestion_level"`
	Latitude            float64 `json:"latitude"`
	Longitude           float64 `json:"longitude"`
}

type predictOutput struct {
	IsStampede bool   `json:"is_stampede"`
	Error      string `json:"error,omitempty"`
}

// PredictAPIScorer adapts the Request contract to a /predict model service
// that expects sensor-style inputs. Crowd noise is not simulated by the
// venue, so it is synthesized from density plus a smooth noise field over
// zone position and time.
type PredictAPIScorer struct {
	url        string
	httpClient *http.Client
	registry   *venue.Registry
	noise      opensimplex.Noise
	now        func() time.Time

	Latitude  float64
	Longitude float64
}

// NewPredictAPIScorer creates an adapter for the model at url.
func NewPredictAPIScorer(url string, reg *venue.Registry, seed int64, timeout time.Duration) *PredictAPIScorer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PredictAPIScorer{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		registry:   reg,
		noise:      opensimplex.New(seed),
		now:        time.Now,
	}
}

// CrowdNoiseDB estimates ambient noise for a zone: 55 dB quiet baseline,
// up to +35 dB as density reaches 1, ±6 dB of spatially coherent drift.
func (p *PredictAPIScorer) CrowdNoiseDB(z venue.Zone, density float64, at time.Time) float64 {
	cx, cy := z.Center()
	drift := p.noise.Eval3(cx/100, cy/100, float64(at.Unix())/30)
	return 55 + 35*math.Min(density, 1) + 6*drift
}

// GateCongestion maps density to the model's categorical gate level. Only
// the entry/exit zone has gates; everywhere else reports "low".
func GateCongestion(req Request) string {
	if !req.IsEntryExit {
		return "low"
	}
	switch {
	case req.Density >= DangerDensity:
		return "high"
	case req.Density >= SafetyThreshold:
		return "medium"
	default:
		return "low"
	}
}

func (p *PredictAPIScorer) input(req Request) (predictInput, error) {
	z, ok := p.registry.Get(req.ZoneID)
	if !ok {
		return predictInput{}, fmt.Errorf("unknown zone %d", req.ZoneID)
	}
	at := p.now()
	return predictInput{
		Timestamp:           at.UTC().Format(time.RFC3339),
		NumPeople:           req.PeopleCount,
		AreaSqMeters:        z.Area(),
		Density:             req.Density,
		AverageSpeed:        req.AverageSpeed,
		CrowdNoiseDB:        p.CrowdNoiseDB(z, req.Density, at),
		GateCongestionLevel: GateCongestion(req),
		Latitude:            p.Latitude,
		Longitude:           p.Longitude,
	}, nil
}

func (p *PredictAPIScorer) Score(ctx context.Context, req Request) (Response, error) {
	in, err := p.input(req)
	if err != nil {
		return Response{}, err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return Response{}, fmt.Errorf("marshal predict input: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("predict call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("predict error %d: %s", resp.StatusCode, string(raw))
	}

	var out predictOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, fmt.Errorf("unmarshal predict output: %w", err)
	}
	if out.Error != "" {
		return Response{}, fmt.Errorf("predict rejected input: %s", out.Error)
	}
	return Response{IsStampede: out.IsStampede}, nil
}

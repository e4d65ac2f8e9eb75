package engine

import (
	"time"

	"github.com/joasgard/basisdesk/internal/domain"
)

// OpenRequest is the payload of POST /v1/positions/open.
type OpenRequest struct {
	Asset    string  `json:"asset"`
	Leverage float64 `json:"leverage"`
	SizeUSD  float64 `json:"size_usd"`
}

// CloseRequest is the payload of POST /v1/positions/close.
type CloseRequest struct {
	PositionID string `json:"position_id"`
}

// JobResponse is returned by the submit endpoints.
type JobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse is returned by GET /v1/jobs/{id}.
type JobStatusResponse struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	PositionID string `json:"position_id,omitempty"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
}

// PreflightRequest is the payload of POST /v1/preflight.
type PreflightRequest struct {
	Asset    string  `json:"asset"`
	Leverage float64 `json:"leverage"`
	SizeUSD  float64 `json:"size_usd"`
}

// PreflightResponse is the batched validation verdict.
type PreflightResponse struct {
	Passed bool `json:"passed"`
	Checks []struct {
		Key    string `json:"key"`
		Passed bool   `json:"passed"`
		Error  string `json:"error,omitempty"`
	} `json:"checks"`
}

// Results converts the wire checks into domain results.
func (r PreflightResponse) Results() []domain.CheckResult {
	out := make([]domain.CheckResult, 0, len(r.Checks))
	for _, c := range r.Checks {
		out = append(out, domain.CheckResult{Key: c.Key, Passed: c.Passed, Error: c.Error})
	}
	return out
}

// PositionPayload is the wire shape of a position in GET /v1/positions.
type PositionPayload struct {
	ID           string    `json:"id"`
	Asset        string    `json:"asset"`
	Status       string    `json:"status"`
	Leverage     float64   `json:"leverage"`
	SizeUSD      float64   `json:"size_usd"`
	PnlUSD       float64   `json:"pnl_usd"`
	PnlPercent   float64   `json:"pnl_percent"`
	EntryPrice   float64   `json:"entry_price"`
	CurrentPrice float64   `json:"current_price"`
	HealthFactor float64   `json:"health_factor"`
	SpotAddress  string    `json:"spot_address,omitempty"`
	PerpAddress  string    `json:"perp_address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToDomain converts the wire position into the domain model.
func (p PositionPayload) ToDomain() domain.Position {
	return domain.Position{
		ID:           p.ID,
		Asset:        p.Asset,
		Status:       domain.PositionStatus(p.Status),
		Leverage:     p.Leverage,
		SizeUSD:      p.SizeUSD,
		PnlUSD:       p.PnlUSD,
		PnlPercent:   p.PnlPercent,
		EntryPrice:   p.EntryPrice,
		CurrentPrice: p.CurrentPrice,
		HealthFactor: p.HealthFactor,
		SpotAddress:  p.SpotAddress,
		PerpAddress:  p.PerpAddress,
		CreatedAt:    p.CreatedAt,
	}
}

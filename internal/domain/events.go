package domain

import (
	"encoding/json"
	"time"
)

// PushEventType tags messages delivered over the engine push channel.
type PushEventType string

const (
	PushEventConnected      PushEventType = "connected"
	PushEventPositionUpdate PushEventType = "position_update"
	PushEventRateUpdate     PushEventType = "rate_update"
	PushEventError          PushEventType = "error"
)

// PushEvent is the outer envelope of every push channel message. Data is kept
// raw until the type is known; unknown types are logged and dropped.
type PushEvent struct {
	Type      PushEventType   `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// PositionUpdateData is the payload of a position_update event. All fields
// except ID are optional; absent fields leave the stored position untouched.
type PositionUpdateData struct {
	ID           string   `json:"id"`
	Status       *string  `json:"status,omitempty"`
	Leverage     *float64 `json:"leverage,omitempty"`
	SizeUSD      *float64 `json:"size_usd,omitempty"`
	PnlUSD       *float64 `json:"pnl_usd,omitempty"`
	PnlPercent   *float64 `json:"pnl_percent,omitempty"`
	EntryPrice   *float64 `json:"entry_price,omitempty"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
	HealthFactor *float64 `json:"health_factor,omitempty"`
}

// Patch converts the update payload into a store patch.
func (d PositionUpdateData) Patch() PositionPatch {
	patch := PositionPatch{
		Leverage:     d.Leverage,
		SizeUSD:      d.SizeUSD,
		PnlUSD:       d.PnlUSD,
		PnlPercent:   d.PnlPercent,
		EntryPrice:   d.EntryPrice,
		CurrentPrice: d.CurrentPrice,
		HealthFactor: d.HealthFactor,
	}
	if d.Status != nil {
		status := PositionStatus(*d.Status)
		patch.Status = &status
	}
	return patch
}

// RateUpdateData is the payload of a rate_update event.
type RateUpdateData struct {
	Asset      string  `json:"asset"`
	MarkPrice  float64 `json:"mark_price"`
	FundingAPR float64 `json:"funding_apr"`
}

package domain

import "time"

// PositionStatus tracks the lifecycle of a delta-neutral position.
type PositionStatus string

const (
	PositionStatusOpen    PositionStatus = "open"
	PositionStatusClosing PositionStatus = "closing"
	PositionStatusClosed  PositionStatus = "closed"
)

// Position is the client's view of one leveraged delta-neutral position:
// a long spot leg hedged by a short perp leg, executed by the engine backend.
type Position struct {
	ID           string
	Asset        string
	Status       PositionStatus
	Leverage     float64
	SizeUSD      float64
	PnlUSD       float64
	PnlPercent   float64
	EntryPrice   float64
	CurrentPrice float64
	HealthFactor float64
	SpotAddress  string
	PerpAddress  string
	CreatedAt    time.Time
}

// PositionPatch is a shallow partial update to a Position. Nil fields are left
// untouched by the merge; Status is only changed when set, so a closed
// position is never resurrected implicitly.
type PositionPatch struct {
	Status       *PositionStatus
	Leverage     *float64
	SizeUSD      *float64
	PnlUSD       *float64
	PnlPercent   *float64
	EntryPrice   *float64
	CurrentPrice *float64
	HealthFactor *float64
	SpotAddress  *string
	PerpAddress  *string
}

// Apply merges the patch into pos, field by field.
func (p PositionPatch) Apply(pos *Position) {
	if p.Status != nil {
		pos.Status = *p.Status
	}
	if p.Leverage != nil {
		pos.Leverage = *p.Leverage
	}
	if p.SizeUSD != nil {
		pos.SizeUSD = *p.SizeUSD
	}
	if p.PnlUSD != nil {
		pos.PnlUSD = *p.PnlUSD
	}
	if p.PnlPercent != nil {
		pos.PnlPercent = *p.PnlPercent
	}
	if p.EntryPrice != nil {
		pos.EntryPrice = *p.EntryPrice
	}
	if p.CurrentPrice != nil {
		pos.CurrentPrice = *p.CurrentPrice
	}
	if p.HealthFactor != nil {
		pos.HealthFactor = *p.HealthFactor
	}
	if p.SpotAddress != nil {
		pos.SpotAddress = *p.SpotAddress
	}
	if p.PerpAddress != nil {
		pos.PerpAddress = *p.PerpAddress
	}
}

// PositionStats are the aggregates derived from the position collection.
// TotalValue and OpenCount only count open positions; TotalPnl spans all
// positions regardless of status.
type PositionStats struct {
	OpenCount  int
	TotalValue float64
	TotalPnl   float64
}

package domain

import (
	"context"
	"time"
)

// Rate is the latest market rate for an asset as pushed by the engine.
type Rate struct {
	Asset      string
	MarkPrice  float64
	FundingAPR float64
	UpdatedAt  time.Time
}

// RateCache mirrors the latest rates into an external cache so other tooling
// can read them without holding a push connection.
type RateCache interface {
	SetRate(ctx context.Context, rate Rate) error
	GetRate(ctx context.Context, asset string) (Rate, error)
}

package domain

// Allocation is the fee-adjusted capital split across the two legs of a
// delta-neutral position. It is derived, never persisted: recomputed on every
// input change. NetDelta is a diagnostic; a large value signals a fee-model
// bug and must be surfaced, not silently accepted.
type Allocation struct {
	SpotUSD      float64
	PerpUSD      float64
	SpotFeeUSD   float64
	PerpFeeUSD   float64
	TotalFeeUSD  float64
	EffectiveUSD float64 // post-fee exposure per leg
	NetDelta     float64
}

// Package alloc computes the fee-adjusted capital split across the two legs
// of a delta-neutral position. The split is sized so that the post-fee
// effective exposure of the spot leg equals that of the perp leg.
package alloc

import (
	"fmt"

	"github.com/joasgard/basisdesk/internal/domain"
)

// Compute splits sizeUSD across the spot and perp legs for the given flat fee
// rates (fractions, e.g. 0.0015). The leg paying the higher fee receives the
// larger allocation so that both legs carry equal exposure after costs.
//
// PerpUSD is derived as the remainder, so SpotUSD + PerpUSD == sizeUSD holds
// exactly. NetDelta is the residual post-fee exposure difference; it is a
// diagnostic for the fee model, not an execution error.
//
// Compute is pure and cheap: it is safe to call on every input change.
func Compute(sizeUSD, spotFee, perpFee float64) (domain.Allocation, error) {
	if sizeUSD <= 0 {
		return domain.Allocation{}, fmt.Errorf("alloc: size must be > 0, got %v", sizeUSD)
	}
	if spotFee < 0 || spotFee >= 1 || perpFee < 0 || perpFee >= 1 {
		return domain.Allocation{}, fmt.Errorf("alloc: fee rates must be in [0, 1), got spot=%v perp=%v", spotFee, perpFee)
	}

	totalFeeFactor := 2 - spotFee - perpFee
	spotUSD := sizeUSD * (1 - perpFee) / totalFeeFactor
	perpUSD := sizeUSD - spotUSD

	effectiveSpot := spotUSD * (1 - spotFee)
	effectivePerp := perpUSD * (1 - perpFee)

	return domain.Allocation{
		SpotUSD:      spotUSD,
		PerpUSD:      perpUSD,
		SpotFeeUSD:   spotUSD * spotFee,
		PerpFeeUSD:   perpUSD * perpFee,
		TotalFeeUSD:  spotUSD*spotFee + perpUSD*perpFee,
		EffectiveUSD: effectiveSpot,
		NetDelta:     effectiveSpot - effectivePerp,
	}, nil
}

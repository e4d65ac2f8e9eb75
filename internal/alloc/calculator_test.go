package alloc

import (
	"math"
	"testing"
)

func TestCompute_SumsExactly(t *testing.T) {
	a, err := Compute(1000, 0.0015, 0.00035)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if a.SpotUSD+a.PerpUSD != 1000 {
		t.Errorf("legs must sum to size exactly: %v + %v = %v", a.SpotUSD, a.PerpUSD, a.SpotUSD+a.PerpUSD)
	}
	// The leg with the higher fee gets the larger share.
	if a.SpotUSD <= a.PerpUSD {
		t.Errorf("spot leg (higher fee) should exceed perp leg: spot=%v perp=%v", a.SpotUSD, a.PerpUSD)
	}
}

func TestCompute_DeltaNeutralAfterFees(t *testing.T) {
	cases := []struct {
		name    string
		size    float64
		spotFee float64
		perpFee float64
	}{
		{"typical", 1000, 0.0015, 0.00035},
		{"zero fees", 500, 0, 0},
		{"equal fees", 2500, 0.001, 0.001},
		{"max band", 100000, 0.01, 0.01},
		{"tiny size", 0.01, 0.0025, 0.0005},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, err := Compute(tc.size, tc.spotFee, tc.perpFee)
			if err != nil {
				t.Fatalf("Compute failed: %v", err)
			}

			if got := a.SpotUSD + a.PerpUSD; got != tc.size {
				t.Errorf("legs sum %v, want exactly %v", got, tc.size)
			}
			// Diagnostic bound from the fee model: residual delta stays well
			// under 1% of size for flat fees in [0, 0.01].
			if math.Abs(a.NetDelta) >= 0.01*tc.size {
				t.Errorf("net delta %v exceeds bound %v", a.NetDelta, 0.01*tc.size)
			}
			// By construction the split equalizes post-fee exposure up to
			// floating point noise.
			if math.Abs(a.NetDelta) > 1e-9*tc.size {
				t.Errorf("net delta %v not within float tolerance", a.NetDelta)
			}
			effPerp := a.PerpUSD * (1 - tc.perpFee)
			if math.Abs(a.EffectiveUSD-effPerp) > 1e-9*tc.size {
				t.Errorf("effective exposures diverge: spot=%v perp=%v", a.EffectiveUSD, effPerp)
			}
		})
	}
}

func TestCompute_FeeAccounting(t *testing.T) {
	a, err := Compute(1000, 0.002, 0.0005)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	wantSpotFee := a.SpotUSD * 0.002
	wantPerpFee := a.PerpUSD * 0.0005
	if a.SpotFeeUSD != wantSpotFee {
		t.Errorf("spot fee %v, want %v", a.SpotFeeUSD, wantSpotFee)
	}
	if a.PerpFeeUSD != wantPerpFee {
		t.Errorf("perp fee %v, want %v", a.PerpFeeUSD, wantPerpFee)
	}
	if math.Abs(a.TotalFeeUSD-(wantSpotFee+wantPerpFee)) > 1e-12 {
		t.Errorf("total fee %v, want %v", a.TotalFeeUSD, wantSpotFee+wantPerpFee)
	}
}

func TestCompute_RejectsBadInput(t *testing.T) {
	if _, err := Compute(0, 0.001, 0.001); err == nil {
		t.Error("expected error for zero size")
	}
	if _, err := Compute(-5, 0.001, 0.001); err == nil {
		t.Error("expected error for negative size")
	}
	if _, err := Compute(100, -0.001, 0.001); err == nil {
		t.Error("expected error for negative fee")
	}
	if _, err := Compute(100, 0.001, 1.0); err == nil {
		t.Error("expected error for fee >= 1")
	}
}

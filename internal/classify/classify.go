package classify

import (
	appconfig "rektflow/config"
)

// Tier is the alert priority of a fired cluster. Tiers are ordered; a
// bigger cluster or a stronger open-interest move never lowers the tier.
type Tier string

const (
	TierLow    Tier = "LOW"
	TierMedium Tier = "MEDIUM"
	TierHigh   Tier = "HIGH"
	TierMax    Tier = "MAX"
)

// Label describes what open interest and funding say the market is doing
// around the liquidation cluster. NoData is distinct from Sideways: it
// means the metrics could not be fetched, not that they were flat.
type Label string

const (
	LabelNoData        Label = "UNKNOWN"
	LabelBuildUp       Label = "POSITION BUILD-UP"
	LabelCloseOut      Label = "POSITION CLOSE-OUT"
	LabelSideways      Label = "SIDEWAYS"
	LabelCrowdedLongs  Label = "CROWDED LONGS"
	LabelCrowdedShorts Label = "CROWDED SHORTS"
)

// Priority scores a cluster by notional size and open-interest movement.
// Each threshold crossed adds one point, so the tier is monotone in both
// inputs. A nil oiDeltaPct contributes nothing.
func Priority(totalUSD float64, oiDeltaPct *float64, cfg appconfig.ClassifierConfig) Tier {
	score := 0
	if totalUSD > cfg.NotionalMediumUSD {
		score++
	}
	if totalUSD > cfg.NotionalHighUSD {
		score++
	}
	if oiDeltaPct != nil && abs(*oiDeltaPct) > cfg.OIDeltaScorePct {
		score++
	}

	switch {
	case score >= 3:
		return TierMax
	case score == 2:
		return TierHigh
	case score == 1:
		return TierMedium
	default:
		return TierLow
	}
}

// MarketLabel interprets the open-interest delta, with funding as a
// tiebreaker when open interest is inconclusive. Missing open interest
// yields NoData regardless of funding.
func MarketLabel(oiDeltaPct, fundingPct *float64, cfg appconfig.ClassifierConfig) Label {
	if oiDeltaPct == nil {
		return LabelNoData
	}

	switch {
	case *oiDeltaPct > cfg.OIBandPct:
		return LabelBuildUp
	case *oiDeltaPct < -cfg.OIBandPct:
		return LabelCloseOut
	}

	// open interest is inside the quiet band: extreme funding still
	// tells us which side is crowded
	if fundingPct != nil && abs(*fundingPct) >= cfg.FundingOverridePct {
		if *fundingPct > 0 {
			return LabelCrowdedLongs
		}
		return LabelCrowdedShorts
	}
	return LabelSideways
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

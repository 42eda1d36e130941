package signal

// Params holds the tunable constants of the engine. The defaults mirror the
// production strategy settings; callers may override any of them.
type Params struct {
	// BaseMultiplier scales the volatility ratio into a threshold, in percent.
	BaseMultiplier float64
	// ReferenceVol is the "normal" volatility-index level; thresholds widen
	// linearly as the index moves above it.
	ReferenceVol float64
	// BetaClamp bounds beta to [-BetaClamp, BetaClamp] to suppress
	// division-near-zero blowups.
	BetaClamp float64
	// OutlierZ is the z-score above which a period return is flagged as an
	// outlier in the data-quality report.
	OutlierZ float64
}

// DefaultParams returns the standard engine parameters.
func DefaultParams() Params {
	return Params{
		BaseMultiplier: 0.5,
		ReferenceVol:   15.0,
		BetaClamp:      3.0,
		OutlierZ:       3.0,
	}
}

func (p *Params) normalize() {
	d := DefaultParams()
	if p.BaseMultiplier <= 0 {
		p.BaseMultiplier = d.BaseMultiplier
	}
	if p.ReferenceVol <= 0 {
		p.ReferenceVol = d.ReferenceVol
	}
	if p.BetaClamp <= 0 {
		p.BetaClamp = d.BetaClamp
	}
	if p.OutlierZ <= 0 {
		p.OutlierZ = d.OutlierZ
	}
}

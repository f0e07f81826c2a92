package pushsgd

import (
	"math"

	"github.com/unixpickle/anynet/anysgd"
)

// NewRater creates the learning rate schedule for a run.
//
// Unless decay is enabled, the base rate is used for the
// whole run.
func NewRater(base, decayRate float64, decay bool) anysgd.Rater {
	if !decay {
		return anysgd.ConstRater(base)
	}
	return &ExpDecayRater{Base: base, DecayRate: decayRate}
}

// ExpDecayRater multiplies the learning rate by DecayRate
// after every full epoch.
type ExpDecayRater struct {
	Base      float64
	DecayRate float64
}

// Rate returns Base*DecayRate^floor(epoch).
func (e *ExpDecayRater) Rate(epoch float64) float64 {
	return e.Base * math.Pow(e.DecayRate, math.Floor(epoch))
}

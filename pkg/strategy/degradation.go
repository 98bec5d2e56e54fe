package strategy

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

const (
	assumedTyreAge = 5   // age of the current tyre at the start of the projection
	deadTyreLoss   = 1.5 // seconds lost at which performance reaches 0%
)

// DegradationPoint holds the performance (0-100) of every strategy for one lap
type DegradationPoint struct {
	Lap         int
	Performance map[string]float64 // keyed by strategy id
}

// MarshalJSON renders the point flat, e.g. {"lap":3,"strat_A":97.1}
func (p DegradationPoint) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(p.Performance)+1)
	for k, v := range p.Performance {
		m[k] = v
	}
	m["lap"] = p.Lap
	return json.Marshal(m)
}

// ProjectDegradation computes a visual tyre performance series from currentLap
// to totalLaps for each strategy. This is a display aid, not the lap time model.
//
//nolint:whitespace // by design
func ProjectDegradation(
	currentLap, totalLaps int,
	options []model.StrategyOption,
) []DegradationPoint {
	ret := make([]DegradationPoint, 0, max(0, totalLaps-currentLap+1))
	for lap := currentLap; lap <= totalLaps; lap++ {
		p := DegradationPoint{Lap: lap, Performance: make(map[string]float64, len(options))}
		for i := range options {
			if v, ok := Performance(lap, currentLap, &options[i]); ok {
				p.Performance[options[i].ID] = v
			}
		}
		ret = append(ret, p)
	}
	return ret
}

// Performance returns the performance value of option at lap.
// The second return value is false if the compound is not known.
func Performance(lap, currentLap int, option *model.StrategyOption) (float64, bool) {
	var age int
	var compound model.CompoundID
	if lap < option.PitLap {
		age = (lap - currentLap) + assumedTyreAge
		compound = model.C3
		if option.TargetCompound == model.C3 {
			compound = model.C4
		}
	} else {
		age = lap - option.PitLap
		compound = option.TargetCompound
	}
	tyre, err := model.LookupTyre(compound)
	if err != nil {
		return 0, false
	}
	perf := 100 - (float64(age)*tyre.DegPerLap/deadTyreLoss)*100
	if perf < 0 {
		perf = 0
	}
	if lap == option.PitLap {
		perf = 100
	}
	return decimal.NewFromFloat(perf).Round(1).InexactFloat64(), true
}


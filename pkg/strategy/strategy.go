// Package strategy derives pit strategy candidates for the hero driver
// and the figures presented alongside them.
package strategy

import (
	"fmt"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

const (
	IDUndercut = "strat_A"
	IDOptimal  = "strat_B"
	IDWeather  = "strat_C"

	undercutLaps   = 3  // undercut pits this many laps before the ideal lap
	weatherHorizon = 10 // laps the weather hedge stays out
	lifeReserve    = 2  // laps of tyre life kept in reserve for the ideal lap
)

// IdealPitLap returns the lap where the current tyre reaches its max life
// minus a small reserve, clamped to [currentLap+1, totalLaps-1].
// In the last two laps of a race the lower bound wins.
func IdealPitLap(currentLap, totalLaps, maxLife, tyreAge int) int {
	ideal := currentLap + (maxLife - tyreAge - lifeReserve)
	return max(currentLap+1, min(ideal, totalLaps-1))
}

// Generate returns the three candidate strategies in fixed order:
// aggressive undercut, optimal, extend for weather.
// The result only depends on the input, no randomness is involved.
func Generate(state *model.RaceState, cfg *model.RaceConfig, heroID string) ([]model.StrategyOption, error) {
	hero, err := state.Driver(heroID)
	if err != nil {
		return nil, err
	}
	tyre, err := model.LookupTyre(hero.Compound)
	if err != nil {
		return nil, err
	}
	cur := state.CurrentLap
	ideal := IdealPitLap(cur, cfg.TotalLaps, tyre.MaxLife, hero.TyreAge)
	undercut := max(cur+1, ideal-undercutLaps)
	stops := hero.PitStops + 1

	return []model.StrategyOption{
		{
			ID:             IDUndercut,
			Name:           "Aggressive Undercut",
			Stops:          stops,
			PitLap:         undercut,
			TargetCompound: model.C4,
			Risk:           model.RiskHigh,
			Description: fmt.Sprintf("Box Lap %d. Switch to %s and attack.",
				undercut, model.MustTyre(model.C4).Name),
		},
		{
			ID:             IDOptimal,
			Name:           "Optimal Strategy",
			Stops:          stops,
			PitLap:         ideal,
			TargetCompound: model.C3,
			Risk:           model.RiskLow,
			Description: fmt.Sprintf("Box Lap %d. Switch to %s to go to the end.",
				ideal, model.MustTyre(model.C3).Name),
		},
		{
			ID:             IDWeather,
			Name:           "Extend for Weather",
			Stops:          stops,
			PitLap:         cur + weatherHorizon,
			TargetCompound: model.Inter,
			Risk:           model.RiskMedium,
			Description:    fmt.Sprintf("Stay out until Lap %d waiting for rain.", cur+weatherHorizon),
		},
	}, nil
}

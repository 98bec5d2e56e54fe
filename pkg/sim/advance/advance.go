// Package advance moves a race forward by exactly one lap.
//
// Lap is a pure function: the input state is never modified, a new state
// is returned. Callers must serialize calls for the same race.
package advance

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/sim/laptime"
	"github.com/mpapenbr/pitwall-go/pkg/sim/rnd"
)

const (
	InLapPenalty = 4.5 // seconds added to the gap when entering the pit lane
	FuelPerLap   = 1.7 // kg
	rainStep     = 0.05
)

var ErrRaceFinished = errors.New("race already finished")

// BoxRequest is the external pit signal for the hero driver
type BoxRequest struct {
	Requested bool
	Next      *model.CompoundID // nil selects the weather aware default
}

type Outcome struct {
	State *model.RaceState
	// BoxProcessed is true if the hero entered the pit lane on this lap.
	// The caller should clear its pending request in that case.
	BoxProcessed bool
}

// PitJitter is the deterministic per driver offset (in laps) applied to
// the tyre life before an autonomous driver decides to pit.
func PitJitter(number int) int {
	m := number % 5
	if m < 0 {
		m += 5
	}
	return m - 2
}

// NextCompound is the fixed compound rotation used by autonomous drivers
func NextCompound(current model.CompoundID, raining bool) model.CompoundID {
	if raining {
		return model.Inter
	}
	return RotateDry(current)
}

// RotateDry returns the next dry compound: softs go to C3, C3 goes to C2,
// everything else goes to C4.
func RotateDry(current model.CompoundID) model.CompoundID {
	switch current {
	case model.C5, model.C4:
		return model.C3
	case model.C3:
		return model.C2
	default:
		return model.C4
	}
}

// HeroDefaultCompound is used when the hero boxes without choosing a tyre
func HeroDefaultCompound(current model.CompoundID, raining bool) model.CompoundID {
	switch {
	case raining:
		return model.Inter
	case current == model.C3:
		return model.C2
	default:
		return model.C3
	}
}

// Lap advances state by one lap.
// Random draws are taken from src in driver order: lap time (gaussian, uniform)
// followed by the position shuffle (uniform) for each driver on track,
// finally one uniform for the rain walk.
//
//nolint:funlen,gocognit // state machine is easier to follow in one place
func Lap(
	state *model.RaceState,
	cfg *model.RaceConfig,
	heroID string,
	req BoxRequest,
	src rnd.Source,
) (Outcome, error) {
	if state.Finished(cfg) {
		return Outcome{}, fmt.Errorf("lap %d of %d: %w", state.CurrentLap, cfg.TotalLaps, ErrRaceFinished)
	}
	if _, err := state.Driver(heroID); err != nil {
		return Outcome{}, err
	}
	if req.Next != nil && !req.Next.Valid() {
		return Outcome{}, fmt.Errorf("hero next tyre: %w: %q", model.ErrUnknownCompound, *req.Next)
	}

	next := state.Clone()
	next.CurrentLap = state.CurrentLap + 1
	raining := state.IsRaining()
	base := cfg.TrackBasePace()
	fuel := math.Max(0, float64(cfg.TotalLaps-next.CurrentLap)*FuelPerLap)
	boxProcessed := false

	for i := range next.Drivers {
		d := &next.Drivers[i]
		if d.Status == model.StatusDNF {
			continue
		}
		tyre, err := model.LookupTyre(d.Compound)
		if err != nil {
			return Outcome{}, fmt.Errorf("driver %s: %w", d.ID, err)
		}
		lapAge := d.TyreAge
		newAge := d.TyreAge + 1

		switch {
		case d.Status == model.StatusPit:
			d.Status = model.StatusOnTrack
			d.PitStops++
			newAge = 0
			lapAge = 0
			if d.ID == heroID {
				if req.Next != nil {
					d.Compound = *req.Next
				} else {
					d.Compound = HeroDefaultCompound(d.Compound, raining)
				}
			} else {
				d.Compound = NextCompound(d.Compound, raining)
			}
			d.GapToLeader += cfg.PitLossSeconds - InLapPenalty
			if tyre, err = model.LookupTyre(d.Compound); err != nil {
				return Outcome{}, fmt.Errorf("driver %s: %w", d.ID, err)
			}

		case d.ID == heroID:
			if req.Requested {
				d.Status = model.StatusPit
				d.GapToLeader += InLapPenalty
				boxProcessed = true
			}

		default:
			if d.TyreAge > tyre.MaxLife+PitJitter(d.Number) {
				d.Status = model.StatusPit
				d.GapToLeader += InLapPenalty
			}
		}

		if d.Status == model.StatusOnTrack {
			lt := laptime.LapTime(&laptime.Input{
				Skill:         d.Skill,
				Tyre:          tyre,
				TyreAge:       lapAge,
				FuelKg:        fuel,
				TrackBasePace: base,
				Raining:       raining,
			}, src)
			d.LapTimes = append(d.LapTimes, lt)
			d.GapToLeader = math.Max(0, d.GapToLeader+Shuffle(d.Aggression, src.Float64()))
		} else {
			d.LapTimes = append(d.LapTimes, base+cfg.PitLossSeconds)
		}
		d.TyreAge = newAge
	}

	Reorder(next.Drivers)
	next.RainProbability = clamp01(state.RainProbability + (src.Float64()-0.5)*rainStep)

	return Outcome{State: next, BoxProcessed: boxProcessed}, nil
}

// Shuffle is the random gap change of a driver on track for a uniform draw u
func Shuffle(aggression, u float64) float64 {
	return (u - 0.45 - aggression*0.02) * 0.8
}

// Reorder sorts drivers by gap (retired drivers last), assigns positions
// and moves the gaps so that the leader sits at 0.
func Reorder(drivers []model.Driver) {
	slices.SortStableFunc(drivers, func(a, b model.Driver) int {
		if c := cmp.Compare(dnfRank(a), dnfRank(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.GapToLeader, b.GapToLeader)
	})
	if len(drivers) == 0 {
		return
	}
	leader := drivers[0].GapToLeader
	for i := range drivers {
		drivers[i].Position = i + 1
		if drivers[i].Status != model.StatusDNF {
			drivers[i].GapToLeader = math.Max(0, drivers[i].GapToLeader-leader)
		}
	}
}

func dnfRank(d model.Driver) int {
	if d.Status == model.StatusDNF {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

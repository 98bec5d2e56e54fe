// Package race hosts a single race: start grid, the serialized lap ticks,
// tyre alerts and the final classification.
package race

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/roster"
	"github.com/mpapenbr/pitwall-go/pkg/sim/rnd"
	"github.com/mpapenbr/pitwall-go/pkg/weather"
)

const (
	DefaultPitLoss              = 24.0 // seconds
	DefaultSafetyCarProbability = 0.05
	StartTyreAge                = 3 // laps used in qualifying
	MaxLaps                     = 200
	gridGap                     = 0.5
	qualyVariance               = 0.15
)

var (
	ErrInvalidLaps     = errors.New("invalid race distance")
	ErrDuplicateDriver = errors.New("driver listed more than once")
)

// NewGrid runs a simple qualifying and returns the drivers in start order.
// Everybody starts on C3 except the hero who starts on startTyre.
//
//nolint:whitespace // by design
func NewGrid(
	drivers []model.Driver,
	heroID string,
	startTyre model.CompoundID,
	src rnd.Source,
) ([]model.Driver, error) {
	if _, err := roster.Find(drivers, heroID); err != nil {
		return nil, err
	}
	if !startTyre.Valid() {
		return nil, fmt.Errorf("start tyre: %w: %q", model.ErrUnknownCompound, startTyre)
	}
	type qualy struct {
		d    model.Driver
		time float64
	}
	results := make([]qualy, 0, len(drivers))
	for i := range drivers {
		results = append(results, qualy{
			d:    drivers[i].Clone(),
			time: drivers[i].BasePace + rnd.Uniform(src, -qualyVariance, qualyVariance),
		})
	}
	slices.SortStableFunc(results, func(a, b qualy) int { return cmp.Compare(a.time, b.time) })

	ret := make([]model.Driver, 0, len(results))
	for idx, q := range results {
		d := q.d
		d.DriverState = model.DriverState{
			Position:    idx + 1,
			GapToLeader: float64(idx) * gridGap,
			Compound:    model.C3,
			TyreAge:     StartTyreAge,
			LapTimes:    []float64{},
			Status:      model.StatusOnTrack,
		}
		if d.ID == heroID {
			d.Compound = startTyre
		}
		ret = append(ret, d)
	}
	return ret, nil
}

// NewRace assembles config and initial state for lap 1
//
//nolint:whitespace // by design
func NewRace(
	circuit model.Circuit,
	laps int,
	start time.Time,
	cond weather.Conditions,
	grid []model.Driver,
) (*model.RaceConfig, *model.RaceState, error) {
	if laps < 1 || laps > MaxLaps {
		return nil, nil, fmt.Errorf("%w: %d laps, want 1..%d", ErrInvalidLaps, laps, MaxLaps)
	}
	cfg := &model.RaceConfig{
		CircuitID:      circuit.ID,
		TrackName:      circuit.Name,
		TotalLaps:      laps,
		PitLossSeconds: DefaultPitLoss,
		TrackLengthKm:  circuit.LengthKm,
		BaseLapTime:    circuit.BaseLapTime,
		Timezone:       circuit.Timezone,
		StartTime:      start,
	}
	state := &model.RaceState{
		CurrentLap:           1,
		Drivers:              grid,
		TrackTemp:            cond.TrackTemp,
		AirTemp:              cond.AirTemp,
		RainProbability:      cond.RainProbability,
		SafetyCarProbability: DefaultSafetyCarProbability,
	}
	return cfg, state, nil
}

// Params describe a race to be set up by Setup
type Params struct {
	CircuitID string
	Laps      int
	Start     time.Time
	HeroID    string
	StartTyre model.CompoundID
	Drivers   []string // subset of the roster, empty means all
}

// Setup resolves roster and weather and creates config and initial state.
// Weather failures fall back to default conditions.
//
//nolint:whitespace // by design
func Setup(
	ctx context.Context,
	p *Params,
	rs roster.Source,
	oracle weather.Oracle,
	src rnd.Source,
) (*model.RaceConfig, *model.RaceState, error) {
	circuit, err := model.LookupCircuit(p.CircuitID)
	if err != nil {
		return nil, nil, err
	}
	all, err := rs.Drivers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("roster: %w", err)
	}
	drivers := all
	if len(p.Drivers) > 0 {
		drivers = make([]model.Driver, 0, len(p.Drivers))
		seen := make(map[string]bool, len(p.Drivers))
		for _, id := range p.Drivers {
			if seen[id] {
				return nil, nil, fmt.Errorf("%w: %q", ErrDuplicateDriver, id)
			}
			seen[id] = true
			d, err := roster.Find(all, id)
			if err != nil {
				return nil, nil, err
			}
			drivers = append(drivers, d)
		}
	}
	grid, err := NewGrid(drivers, p.HeroID, p.StartTyre, src)
	if err != nil {
		return nil, nil, err
	}
	cond := weather.Resolve(ctx, oracle, circuit, p.Start, weather.Fallback)
	return NewRace(circuit, p.Laps, p.Start, cond, grid)
}

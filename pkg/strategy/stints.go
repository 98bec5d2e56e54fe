package strategy

import (
	"fmt"
	"time"

	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/sim/advance"
	"github.com/mpapenbr/pitwall-go/pkg/sim/laptime"
)

type (
	PartType int
	Part     interface {
		Type() PartType
		Output() string
	}
	StintPart interface {
		Part
		Laps() int
		LapStart() int
		LapEnd() int
		Compound() model.CompoundID
		StintTime() time.Duration
	}
	PitPart interface {
		Part
		Lap() int
		PitTime() time.Duration
	}
	// Plan is the sequence of stints and pit stops from the current lap to the finish
	Plan struct {
		StrategyID string
		Parts      []Part
		Total      time.Duration
	}
)

const (
	PartTypeStint PartType = iota
	PartTypePit
)

type (
	stintPart struct {
		lapStart  int
		lapEnd    int
		compound  model.CompoundID
		stintTime time.Duration
	}
	pitPart struct {
		lap     int
		pitTime time.Duration
	}
	planner struct {
		cfg   *model.RaceConfig
		skill model.Skill
		rain  bool
	}
)

// PlanStints splits the rest of the race into stints according to option.
// Stint times use the deterministic part of the lap time model.
// An option whose pit lap lies beyond the finish results in a single stint.
//
//nolint:whitespace // by design
func PlanStints(
	state *model.RaceState,
	cfg *model.RaceConfig,
	heroID string,
	option *model.StrategyOption,
) (*Plan, error) {
	hero, err := state.Driver(heroID)
	if err != nil {
		return nil, err
	}
	if _, err := model.LookupTyre(option.TargetCompound); err != nil {
		return nil, err
	}
	p := planner{cfg: cfg, skill: hero.Skill, rain: state.IsRaining()}
	ret := &Plan{StrategyID: option.ID}
	add := func(part Part, d time.Duration) {
		ret.Parts = append(ret.Parts, part)
		ret.Total += d
	}

	cur := state.CurrentLap
	pitLap := max(option.PitLap, cur)
	if pitLap > cfg.TotalLaps {
		s, err := p.stint(cur, cfg.TotalLaps, hero.Compound, hero.TyreAge)
		if err != nil {
			return nil, err
		}
		add(s, s.stintTime)
		return ret, nil
	}
	if pitLap > cur {
		s, err := p.stint(cur, pitLap-1, hero.Compound, hero.TyreAge)
		if err != nil {
			return nil, err
		}
		add(s, s.stintTime)
	}
	pit := &pitPart{lap: pitLap, pitTime: toDuration(cfg.PitLossSeconds)}
	add(pit, pit.pitTime)
	s, err := p.stint(pitLap, cfg.TotalLaps, option.TargetCompound, 0)
	if err != nil {
		return nil, err
	}
	add(s, s.stintTime)
	return ret, nil
}

// EstimateRaceTimes fills EstimatedRaceTime (seconds until the finish) of every option
//
//nolint:whitespace // by design
func EstimateRaceTimes(
	state *model.RaceState,
	cfg *model.RaceConfig,
	heroID string,
	options []model.StrategyOption,
) error {
	for i := range options {
		plan, err := PlanStints(state, cfg, heroID, &options[i])
		if err != nil {
			return fmt.Errorf("strategy %s: %w", options[i].ID, err)
		}
		options[i].EstimatedRaceTime = plan.Total.Seconds()
	}
	return nil
}

func (p *planner) stint(from, to int, compound model.CompoundID, startAge int) (*stintPart, error) {
	tyre, err := model.LookupTyre(compound)
	if err != nil {
		return nil, err
	}
	ret := &stintPart{lapStart: from, lapEnd: to, compound: compound}
	var secs float64
	for lap := from; lap <= to; lap++ {
		secs += laptime.Deterministic(&laptime.Input{
			Skill:         p.skill,
			Tyre:          tyre,
			TyreAge:       startAge + (lap - from),
			FuelKg:        float64(p.cfg.TotalLaps-lap) * advance.FuelPerLap,
			TrackBasePace: p.cfg.TrackBasePace(),
			Raining:       p.rain,
		})
	}
	ret.stintTime = toDuration(secs)
	return ret, nil
}

func toDuration(secs float64) time.Duration {
	return time.Duration(secs * float64(time.Second))
}

func (s stintPart) Type() PartType {
	return PartTypeStint
}

func (s stintPart) Laps() int {
	return s.lapEnd - s.lapStart + 1
}

func (s stintPart) LapStart() int {
	return s.lapStart
}

func (s stintPart) LapEnd() int {
	return s.lapEnd
}

func (s stintPart) Compound() model.CompoundID {
	return s.compound
}

func (s stintPart) StintTime() time.Duration {
	return s.stintTime
}

func (s stintPart) Output() string {
	return fmt.Sprintf("%d-%d (%d) %s: %s",
		s.lapStart, s.lapEnd, s.Laps(), s.compound, s.stintTime.Round(time.Millisecond))
}

func (p pitPart) Type() PartType {
	return PartTypePit
}

func (p pitPart) Lap() int {
	return p.lap
}

func (p pitPart) PitTime() time.Duration {
	return p.pitTime
}

func (p pitPart) Output() string {
	return fmt.Sprintf("Pit lap %d %s", p.lap, p.pitTime)
}

package cmdutil

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/race"
)

var ErrInvalidBoxPlan = errors.New("invalid box plan")

// BoxPlan maps a lap to the compound fitted when boxing at the end of that lap.
// A nil compound lets the engine choose.
type BoxPlan map[int]*model.CompoundID

// ParseBoxPlan parses entries like "12" or "12:C2"
func ParseBoxPlan(entries []string) (BoxPlan, error) {
	ret := BoxPlan{}
	for _, e := range entries {
		lapStr, compound, hasCompound := strings.Cut(strings.TrimSpace(e), ":")
		lap, err := strconv.Atoi(lapStr)
		if err != nil || lap < 1 {
			return nil, fmt.Errorf("%w: lap in %q", ErrInvalidBoxPlan, e)
		}
		if _, ok := ret[lap]; ok {
			return nil, fmt.Errorf("%w: lap %d used twice", ErrInvalidBoxPlan, lap)
		}
		ret[lap] = nil
		if hasCompound {
			c := model.CompoundID(strings.ToUpper(compound))
			if !c.Valid() {
				return nil, fmt.Errorf("%w: %w: %q", ErrInvalidBoxPlan, model.ErrUnknownCompound, compound)
			}
			ret[lap] = &c
		}
	}
	return ret, nil
}

// AdvanceTo ticks s until its current lap is lap, boxing the hero according to plan.
// It stops early when the race finishes or halts.
func AdvanceTo(ctx context.Context, s *race.Session, lap int, plan BoxPlan) error {
	for {
		snap := s.Snapshot()
		if snap.State.CurrentLap >= lap || snap.Finished || snap.Halted {
			return nil
		}
		if next, ok := plan[snap.State.CurrentLap]; ok {
			if err := s.RequestBox(next); err != nil {
				return err
			}
		}
		if _, err := s.Tick(ctx); err != nil {
			return err
		}
	}
}

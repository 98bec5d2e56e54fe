// Package narration turns strategy numbers into prose.
// The actual language model lives outside of pitwall; this package only
// defines the contract, a NATS client for it and a deterministic fallback.
package narration

import (
	"context"
	"fmt"
	"strings"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

// Brief is everything a narrator gets to know about the race
type Brief struct {
	Team              string                 `json:"team"`
	DriverName        string                 `json:"driverName"`
	Position          int                    `json:"position"`
	TrackName         string                 `json:"trackName"`
	Lap               int                    `json:"lap"`
	TotalLaps         int                    `json:"totalLaps"`
	Compound          model.CompoundID       `json:"compound"`
	TyreAge           int                    `json:"tyreAge"`
	RainProbability   float64                `json:"rainProbability"`
	SimulationCount   int                    `json:"simulationCount"`
	WinProbability    float64                `json:"winProbability"`
	PodiumProbability float64                `json:"podiumProbability"`
	AverageFinish     float64                `json:"averageFinish"`
	Strategies        []model.StrategyOption `json:"strategies"`
}

type Narrator interface {
	Explain(ctx context.Context, brief *Brief) (string, error)
}

// Fallback produces a fixed text from the recommended (first) strategy.
// It never fails.
type Fallback struct{}

func (Fallback) Explain(_ context.Context, brief *Brief) (string, error) {
	return FallbackText(brief), nil
}

// FallbackText is used whenever no narrator is available or it failed
func FallbackText(brief *Brief) string {
	var sb strings.Builder
	sb.WriteString("**STRATEGY DESK**: narration service unavailable, showing the computed plan.\n\n")
	if len(brief.Strategies) == 0 {
		fmt.Fprintf(&sb, "No strategy options for lap %d.", brief.Lap)
		return sb.String()
	}
	rec := brief.Strategies[0]
	fmt.Fprintf(&sb, "**Recommended**: %s.\n\n", rec.Name)
	fmt.Fprintf(&sb,
		"%d simulated races give a %.1f%% win probability with this plan. "+
			"Box around lap %d for %s and watch for traffic on pit exit.",
		brief.SimulationCount, brief.WinProbability, rec.PitLap, rec.TargetCompound)
	return sb.String()
}

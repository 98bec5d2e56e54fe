package cmdutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/race"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
	"github.com/mpapenbr/pitwall-go/pkg/strategy"
)

func TestClassificationTable(t *testing.T) {
	var b bytes.Buffer
	ClassificationTable(&b, []race.Classification{
		{Position: 1, Name: "Max Verstappen", Number: 1, TotalTime: 5400, BestLap: 91.2, FastestLap: true, Points: 26},
		{Position: 2, Name: "Lando Norris", Number: 4, TotalTime: 5403.5, GapToWinner: 3.5, BestLap: 91.4, Points: 18},
		{Position: 3, Name: "Yuki Tsunoda", Number: 22, Status: model.StatusDNF},
	})
	out := b.String()
	assert.Contains(t, out, "#1 Max Verstappen")
	assert.Contains(t, out, "1:31.200 *")
	assert.Contains(t, out, "+3.500")
	assert.Contains(t, out, "DNF")
}

func TestStrategyAndPlanTables(t *testing.T) {
	options := []model.StrategyOption{
		{ID: strategy.IDUndercut, Name: "Aggressive Undercut", PitLap: 10, TargetCompound: model.C4, Stops: 1},
		{ID: strategy.IDOptimal, Name: "Optimal Strategy", PitLap: 13, TargetCompound: model.C3, Stops: 1},
	}
	var b bytes.Buffer
	StrategyTable(&b, options, strategy.IDOptimal)
	assert.Contains(t, b.String(), "Optimal Strategy")
	assert.Contains(t, b.String(), ">")

	cfg := &model.RaceConfig{TotalLaps: 20, PitLossSeconds: 24, BaseLapTime: 90}
	state := &model.RaceState{CurrentLap: 5, Drivers: []model.Driver{{
		ID:          "ver",
		DriverState: model.DriverState{Compound: model.C3, TyreAge: 8, Status: model.StatusOnTrack},
	}}}
	plan, err := strategy.PlanStints(state, cfg, "ver", &options[1])
	require.NoError(t, err)
	b.Reset()
	PlanTable(&b, plan)
	assert.Contains(t, b.String(), "Stint")
	assert.Contains(t, b.String(), "Pit")
	assert.Contains(t, b.String(), "0:24.000")
}

func TestProjectionTable(t *testing.T) {
	proj := &montecarlo.Projection{
		Iterations: 2,
		SourceLap:  3,
		Results: []model.SimulationResult{
			{WinnerID: "a", FinalPositions: map[string]int{"a": 1, "b": 2}},
			{WinnerID: "b", FinalPositions: map[string]int{"a": 2, "b": 1}},
		},
	}
	var b bytes.Buffer
	ProjectionTable(&b, proj, []model.Driver{{ID: "a", Name: "Alpha"}, {ID: "b", Name: "Beta"}}, "b")
	out := b.String()
	assert.Contains(t, out, "2 simulated races from lap 3")
	assert.Contains(t, out, "BETA")
	assert.Contains(t, out, "50.0")
}

//nolint:funlen // ok for tests
package strategy

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

const hero = "hero"

func raceAt(lap, tyreAge int, compound model.CompoundID) *model.RaceState {
	return &model.RaceState{
		CurrentLap: lap,
		Drivers: []model.Driver{
			{
				ID: hero, Name: "Lando Norris", Team: "McLaren",
				Skill: model.Skill{
					BasePace: 0.05, Consistency: 0.95, TyreManagement: 0.94,
					Aggression: 0.85, WetWeatherAbility: 0.92,
				},
				DriverState: model.DriverState{
					Position: 2, Compound: compound, TyreAge: tyreAge,
					PitStops: 1, Status: model.StatusOnTrack,
				},
			},
		},
		RainProbability: 0.1,
	}
}

func race57() *model.RaceConfig {
	return &model.RaceConfig{CircuitID: "bahrain", TrackName: "Bahrain International Circuit",
		TotalLaps: 57, PitLossSeconds: 24, BaseLapTime: 91}
}

func TestIdealPitLap(t *testing.T) {
	tests := []struct {
		name                  string
		cur, total, life, age int
		want                  int
	}{
		{"mid race", 10, 57, 28, 5, 31},
		{"clamped to end", 40, 57, 28, 0, 56},
		{"worn tyre", 30, 57, 28, 29, 31},
		{"last lap", 57, 57, 28, 0, 58},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IdealPitLap(tt.cur, tt.total, tt.life, tt.age))
		})
	}
}

func TestGenerate(t *testing.T) {
	got, err := Generate(raceAt(10, 5, model.C3), race57(), hero)
	require.NoError(t, err)
	want := []model.StrategyOption{
		{
			ID: "strat_A", Name: "Aggressive Undercut", Stops: 2, PitLap: 28,
			TargetCompound: model.C4, Risk: model.RiskHigh,
			Description: "Box Lap 28. Switch to C4-Soft and attack.",
		},
		{
			ID: "strat_B", Name: "Optimal Strategy", Stops: 2, PitLap: 31,
			TargetCompound: model.C3, Risk: model.RiskLow,
			Description: "Box Lap 31. Switch to C3-Medium to go to the end.",
		},
		{
			ID: "strat_C", Name: "Extend for Weather", Stops: 2, PitLap: 20,
			TargetCompound: model.Inter, Risk: model.RiskMedium,
			Description: "Stay out until Lap 20 waiting for rain.",
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
}

func TestGeneratePitLapBounds(t *testing.T) {
	cfg := race57()
	for cur := 1; cur <= cfg.TotalLaps-2; cur++ {
		for age := 0; age <= 40; age += 5 {
			for _, c := range []model.CompoundID{model.C1, model.C3, model.C5} {
				got, err := Generate(raceAt(cur, age, c), cfg, hero)
				require.NoError(t, err)
				require.Len(t, got, 3)
				assert.Equal(t, []string{IDUndercut, IDOptimal, IDWeather},
					[]string{got[0].ID, got[1].ID, got[2].ID})
				for _, s := range got[:2] {
					assert.GreaterOrEqual(t, s.PitLap, cur+1)
					assert.LessOrEqual(t, s.PitLap, cfg.TotalLaps-1)
				}
			}
		}
	}
}

func TestGenerateErrors(t *testing.T) {
	_, err := Generate(raceAt(10, 5, model.C3), race57(), "nobody")
	assert.ErrorIs(t, err, model.ErrDriverNotFound)
	_, err = Generate(raceAt(10, 5, "C7"), race57(), hero)
	assert.ErrorIs(t, err, model.ErrUnknownCompound)
}

func TestRecommendCompound(t *testing.T) {
	tests := []struct {
		rain float64
		want model.CompoundID
	}{
		{0.9, model.Wet},
		{0.8, model.Wet},
		{0.5, model.Inter},
		{0.25, model.Inter},
		{0.24, model.C5},
		{0.0, model.C5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecommendCompound(tt.rain, 20), "rain %v", tt.rain)
	}
}

func TestTheoreticalLapTime(t *testing.T) {
	assert.InDelta(t, 91.0+0.05+0.2, TheoreticalLapTime(91, 0.05, 0.2), 1e-9)
}

func TestFormatLapTime(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{91.25, "1:31.250"},
		{65.0, "1:05.000"},
		{59.9996, "1:00.000"},
		{9.5, "0:09.500"},
		{125.1234, "2:05.123"},
		{-1, "--:--.---"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatLapTime(tt.in), "input %v", tt.in)
	}
}

func TestProjectDegradation(t *testing.T) {
	options := []model.StrategyOption{
		{ID: "a", PitLap: 12, TargetCompound: model.C4},
		{ID: "b", PitLap: 13, TargetCompound: model.C3},
	}
	points := ProjectDegradation(10, 14, options)
	require.Len(t, points, 5)
	assert.Equal(t, 10, points[0].Lap)
	assert.Equal(t, 14, points[4].Lap)

	// lap 10, a: C3 age 5 -> 100 - 5*0.09/1.5*100 = 70
	assert.InDelta(t, 70.0, points[0].Performance["a"], 1e-9)
	// lap 10, b: C4 age 5 -> 100 - 5*0.12/1.5*100 = 60
	assert.InDelta(t, 60.0, points[0].Performance["b"], 1e-9)
	// pit laps reset to 100
	assert.Equal(t, 100.0, points[2].Performance["a"])
	assert.Equal(t, 100.0, points[3].Performance["b"])
	// lap 13, a: C4 age 1 -> 92
	assert.InDelta(t, 92.0, points[3].Performance["a"], 1e-9)
	// lap 14, b: C3 age 1 -> 94
	assert.InDelta(t, 94.0, points[4].Performance["b"], 1e-9)

	for _, p := range points {
		for _, v := range p.Performance {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 100.0)
		}
	}
}

func TestProjectDegradationFloorAndRounding(t *testing.T) {
	options := []model.StrategyOption{{ID: "x", PitLap: 99, TargetCompound: model.C4}}
	points := ProjectDegradation(1, 30, options)
	// C3 age 25 -> 100 - 25*0.09/1.5*100 = -50 -> 0
	assert.Equal(t, 0.0, points[20].Performance["x"])
	// C3 age 6 -> 64
	assert.InDelta(t, 64.0, points[1].Performance["x"], 1e-9)

	odd := []model.StrategyOption{{ID: "y", PitLap: 1, TargetCompound: model.C5}}
	// C5 age 1 -> 100 - 0.16/1.5*100 = 89.333.. -> 89.3
	assert.Equal(t, 89.3, ProjectDegradation(1, 2, odd)[1].Performance["y"])
}

func TestDegradationPointJSON(t *testing.T) {
	data, err := json.Marshal(DegradationPoint{Lap: 3, Performance: map[string]float64{"strat_A": 97.5}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"lap":3,"strat_A":97.5}`, string(data))
}

func TestProjectDegradationUnknownCompoundSkipped(t *testing.T) {
	points := ProjectDegradation(1, 1, []model.StrategyOption{{ID: "z", PitLap: 1, TargetCompound: "X"}})
	require.Len(t, points, 1)
	assert.NotContains(t, points[0].Performance, "z")
}

package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/narration"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
)

const DefaultNarrationTimeout = 10 * time.Second

var ErrNoProjector = errors.New("no projector configured")

// Runner is satisfied by *montecarlo.Projector and *montecarlo.Latest
type Runner interface {
	Run(
		ctx context.Context,
		state *model.RaceState,
		cfg *model.RaceConfig,
		heroID string,
		iterations int,
	) (*montecarlo.Projection, error)
}

type ReportInput struct {
	State            *model.RaceState
	Config           *model.RaceConfig
	HeroID           string
	Iterations       int // 0 uses montecarlo.DefaultIterations
	Projector        Runner
	Narrator         narration.Narrator // nil uses the fallback text
	NarrationTimeout time.Duration
}

// BuildReport projects the race, generates the candidate strategies and
// asks the narrator to explain them. The first strategy is recommended.
// A failing narrator never fails the report.
func BuildReport(ctx context.Context, in *ReportInput) (*model.StrategyReport, error) {
	if in.Projector == nil {
		return nil, ErrNoProjector
	}
	l := log.GetFromContext(ctx).Named("report")
	iterations := in.Iterations
	if iterations == 0 {
		iterations = montecarlo.DefaultIterations
	}
	hero, err := in.State.Driver(in.HeroID)
	if err != nil {
		return nil, err
	}
	proj, err := in.Projector.Run(ctx, in.State, in.Config, in.HeroID, iterations)
	if err != nil {
		return nil, err
	}
	strategies, err := Generate(in.State, in.Config, in.HeroID)
	if err != nil {
		return nil, err
	}
	if err := EstimateRaceTimes(in.State, in.Config, in.HeroID, strategies); err != nil {
		return nil, err
	}

	brief := &narration.Brief{
		Team:              hero.Team,
		DriverName:        hero.Name,
		Position:          hero.Position,
		TrackName:         in.Config.TrackName,
		Lap:               in.State.CurrentLap,
		TotalLaps:         in.Config.TotalLaps,
		Compound:          hero.Compound,
		TyreAge:           hero.TyreAge,
		RainProbability:   in.State.RainProbability,
		SimulationCount:   proj.Iterations,
		WinProbability:    proj.WinProbability,
		PodiumProbability: proj.PodiumProbability,
		AverageFinish:     proj.AverageFinish,
		Strategies:        strategies,
	}
	explanation := narration.FallbackText(brief)
	if in.Narrator != nil {
		timeout := in.NarrationTimeout
		if timeout <= 0 {
			timeout = DefaultNarrationTimeout
		}
		nctx, cancel := context.WithTimeout(ctx, timeout)
		text, nerr := in.Narrator.Explain(nctx, brief)
		cancel()
		if nerr != nil {
			l.Warn("narration failed, using fallback", log.ErrorField(nerr))
		} else {
			explanation = text
		}
	}

	return &model.StrategyReport{
		RecommendedStrategyID: strategies[0].ID,
		Strategies:            strategies,
		SimulationCount:       proj.Iterations,
		WinProbability:        proj.WinProbability,
		PodiumProbability:     proj.PodiumProbability,
		AverageFinish:         proj.AverageFinish,
		Explanation:           explanation,
		LastUpdatedLap:        in.State.CurrentLap,
	}, nil
}

package strategy

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/cmd/cmdutil"
	"github.com/mpapenbr/pitwall-go/pkg/config"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/race"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
	"github.com/mpapenbr/pitwall-go/pkg/strategy"
)

var (
	appConfig config.Config // holds processed config values
	raceFlags cmdutil.RaceFlags
	boxArgs   []string
	atLap     int
	showPlans bool
)

func NewStrategyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "prints the strategy report for the hero",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStrategy(cmd.Context(), cmd.OutOrStdout())
		},
	}
	raceFlags.Register(cmd)
	cmd.Flags().IntVar(&atLap, "at-lap", 1, "race the given number of laps before the report")
	cmd.Flags().StringSliceVar(&boxArgs, "box", nil,
		"box the hero at the end of lap (lap[:compound]) while racing to --at-lap")
	cmd.Flags().Uint64Var(&appConfig.Seed, "seed", 0,
		"seed for the random source (0 seeds from system entropy)")
	cmd.Flags().IntVar(&config.Iterations, "iterations", montecarlo.DefaultIterations,
		"number of simulated races")
	cmd.Flags().IntVar(&config.Workers, "workers", 4,
		"max number of concurrent projection workers")
	cmd.Flags().StringVar(&config.NarrationTimeout, "narration-timeout", "10s",
		"max time to wait for the narration service")
	cmd.Flags().BoolVar(&showPlans, "show-plans", false, "print the stint plan of every strategy")
	return cmd
}

//nolint:funlen // by design
func runStrategy(ctx context.Context, out io.Writer) error {
	l := log.GetFromContext(ctx).Named("strategy")
	params, err := raceFlags.Params()
	if err != nil {
		return err
	}
	plan, err := cmdutil.ParseBoxPlan(boxArgs)
	if err != nil {
		return err
	}
	rs, err := cmdutil.Roster(ctx)
	if err != nil {
		return err
	}
	conn, err := cmdutil.ConnectNats(ctx)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
	}
	sources := cmdutil.NewRaceSources(appConfig.Seed)
	cfg, state, err := race.Setup(ctx, params, rs, cmdutil.Weather(conn), sources.Setup)
	if err != nil {
		return err
	}
	s, err := race.NewSession(cfg, state, params.HeroID, sources.Session,
		race.WithProjector(montecarlo.NewProjector(sources.Projector,
			montecarlo.WithWorkers(config.Workers))),
		race.WithNarrator(cmdutil.Narrator(conn),
			cmdutil.ParseDuration("narration-timeout", config.NarrationTimeout,
				strategy.DefaultNarrationTimeout)),
		race.WithLogger(l))
	if err != nil {
		return err
	}
	if err := cmdutil.AdvanceTo(ctx, s, atLap, plan); err != nil {
		return err
	}
	rep, err := s.Report(ctx, config.Iterations)
	if err != nil {
		return err
	}

	snap := s.Snapshot()
	hero, err := snap.State.Driver(params.HeroID)
	if err != nil {
		return err
	}
	rec := strategy.RecommendCompound(snap.State.RainProbability, snap.State.AirTemp)
	fmt.Fprintf(out, "%s, lap %d of %d: %s P%d on %s (%d laps old)\n",
		cfg.TrackName, snap.State.CurrentLap, cfg.TotalLaps, hero.Name, hero.Position,
		model.MustTyre(hero.Compound).Name, hero.TyreAge)
	fmt.Fprintf(out, "Rain %.0f%%, fastest single lap tyre: %s\n",
		snap.State.RainProbability*100, model.MustTyre(rec).Name)
	cmdutil.StrategyTable(out, rep.Strategies, rep.RecommendedStrategyID)
	if showPlans {
		for i := range rep.Strategies {
			p, err := strategy.PlanStints(snap.State, &snap.Config, params.HeroID, &rep.Strategies[i])
			if err != nil {
				return err
			}
			cmdutil.PlanTable(out, p)
		}
	}
	fmt.Fprintln(out, rep.Explanation)
	return nil
}

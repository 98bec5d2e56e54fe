package project

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/cmd/cmdutil"
	"github.com/mpapenbr/pitwall-go/pkg/config"
	"github.com/mpapenbr/pitwall-go/pkg/race"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
)

var (
	appConfig config.Config // holds processed config values
	raceFlags cmdutil.RaceFlags
	boxArgs   []string
	atLap     int
)

func NewProjectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "projects the finishing order with Monte Carlo simulations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjection(cmd.Context(), cmd.OutOrStdout())
		},
	}
	raceFlags.Register(cmd)
	cmd.Flags().IntVar(&atLap, "at-lap", 1, "race the given number of laps before projecting")
	cmd.Flags().StringSliceVar(&boxArgs, "box", nil,
		"box the hero at the end of lap (lap[:compound]) while racing to --at-lap")
	cmd.Flags().Uint64Var(&appConfig.Seed, "seed", 0,
		"seed for the random source (0 seeds from system entropy)")
	cmd.Flags().IntVar(&config.Iterations, "iterations", montecarlo.DefaultIterations,
		"number of simulated races")
	cmd.Flags().IntVar(&config.Workers, "workers", 4,
		"max number of concurrent projection workers")
	return cmd
}

func runProjection(ctx context.Context, out io.Writer) error {
	l := log.GetFromContext(ctx).Named("project")
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
	projector := montecarlo.NewProjector(sources.Projector,
		montecarlo.WithWorkers(config.Workers),
		montecarlo.WithLogger(l))
	s, err := race.NewSession(cfg, state, params.HeroID, sources.Session,
		race.WithProjector(projector), race.WithLogger(l))
	if err != nil {
		return err
	}
	if err := cmdutil.AdvanceTo(ctx, s, atLap, plan); err != nil {
		return err
	}
	proj, err := s.Project(ctx, config.Iterations)
	if err != nil {
		return err
	}
	snap := s.Snapshot()
	fmt.Fprintf(out, "%s, lap %d of %d\n", cfg.TrackName, snap.State.CurrentLap, cfg.TotalLaps)
	cmdutil.ProjectionTable(out, proj, snap.State.Drivers, params.HeroID)
	fmt.Fprintf(out, "Hero: win %.1f%%, podium %.1f%%, avg finish %.2f\n",
		proj.WinProbability, proj.PodiumProbability, proj.AverageFinish)
	return nil
}

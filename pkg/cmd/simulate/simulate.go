package simulate

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/cmd/cmdutil"
	"github.com/mpapenbr/pitwall-go/pkg/config"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/publish"
	"github.com/mpapenbr/pitwall-go/pkg/race"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
	"github.com/mpapenbr/pitwall-go/pkg/strategy"
)

var (
	appConfig config.Config // holds processed config values
	raceFlags cmdutil.RaceFlags
	boxArgs   []string
	showLaps  bool
)

func NewSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "simulates a complete race and prints the result",
		Long: `Simulates a race lap by lap. The hero only pits when told to via --box.
Example: pitwall simulate --circuit monza --laps 53 --hero lec --box 18:C2 --box 36:C3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd.Context(), cmd.OutOrStdout())
		},
	}
	raceFlags.Register(cmd)
	cmd.Flags().StringSliceVar(&boxArgs, "box", nil,
		"box the hero at the end of lap (lap[:compound]), may be repeated")
	cmd.Flags().Uint64Var(&appConfig.Seed, "seed", 0,
		"seed for the random source (0 seeds from system entropy)")
	cmd.Flags().IntVar(&appConfig.ReportEvery, "report-every", 0,
		"print a strategy report every n laps (0 disables)")
	cmd.Flags().BoolVar(&appConfig.StopOnFailed, "stop-on-failure", false,
		"halt the race when the hero drives on failed tyres")
	cmd.Flags().IntVar(&config.Iterations, "iterations", montecarlo.DefaultIterations,
		"Monte Carlo iterations per report")
	cmd.Flags().IntVar(&config.Workers, "workers", 4,
		"max number of concurrent projection workers")
	cmd.Flags().BoolVar(&showLaps, "show-laps", false, "print a line per lap for the hero")
	return cmd
}

//nolint:funlen,cyclop // by design
func runSimulation(ctx context.Context, out io.Writer) error {
	l := log.GetFromContext(ctx).Named("simulate")
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
	opts := []race.SessionOption{
		race.WithStopOnFailure(appConfig.StopOnFailed),
		race.WithLogger(l),
	}
	if appConfig.ReportEvery > 0 {
		opts = append(opts,
			race.WithProjector(montecarlo.NewProjector(sources.Projector,
				montecarlo.WithWorkers(config.Workers))),
			race.WithNarrator(cmdutil.Narrator(conn),
				cmdutil.ParseDuration("narration-timeout", config.NarrationTimeout,
					strategy.DefaultNarrationTimeout)))
	}
	s, err := race.NewSession(cfg, state, params.HeroID, sources.Session, opts...)
	if err != nil {
		return err
	}
	pub := newPublisher(conn)
	if pub != nil {
		if err := pub.Started(s.Snapshot()); err != nil {
			l.Warn("could not publish race start", log.ErrorField(err))
		}
	}

	fmt.Fprintf(out, "%s, %d laps, air %.0f°C, track %.0f°C, rain %.0f%%\n",
		cfg.TrackName, cfg.TotalLaps, state.AirTemp, state.TrackTemp, state.RainProbability*100)

	laps := table.NewWriter()
	laps.SetStyle(table.StyleRounded)
	laps.AppendHeader(table.Row{"Lap", "Pos", "Gap", "Tyre", "Age", "Last lap", "Alert"})

	requestBox := func(lap int) {
		if next, ok := plan[lap]; ok {
			if err := s.RequestBox(next); err != nil {
				l.Warn("box request rejected", log.Int("lap", lap), log.ErrorField(err))
			}
		}
	}
	requestBox(state.CurrentLap)

	clock := race.NewClock(0, race.WithOnTick(func(ctx context.Context, res *race.TickResult) {
		if pub != nil {
			if err := pub.State(s.ID(), res.State); err != nil {
				l.Warn("could not publish state", log.ErrorField(err))
			}
		}
		if showLaps {
			appendLap(laps, res, params.HeroID)
		}
		if res.Finished || res.Halted {
			return
		}
		requestBox(res.State.CurrentLap)
		if appConfig.ReportEvery > 0 && (res.State.CurrentLap-1)%appConfig.ReportEvery == 0 {
			printReport(ctx, out, s, pub)
		}
	}), race.WithClockLogger(l))
	if err := clock.Run(ctx, s); err != nil {
		return err
	}

	if showLaps {
		laps.SetOutputMirror(out)
		laps.Render()
	}
	snap := s.Snapshot()
	if snap.Halted {
		fmt.Fprintf(out, "Race halted on lap %d: hero tyres failed\n", snap.State.CurrentLap)
	}
	results := s.Results()
	if pub != nil {
		if err := pub.Results(s.ID(), results); err != nil {
			l.Warn("could not publish results", log.ErrorField(err))
		}
	}
	cmdutil.ClassificationTable(out, results)
	return nil
}

func newPublisher(conn *nats.Conn) *publish.Publisher {
	if conn == nil {
		return nil
	}
	return publish.NewPublisher(conn)
}

func appendLap(t table.Writer, res *race.TickResult, heroID string) {
	hero, err := res.State.Driver(heroID)
	if err != nil {
		return
	}
	tyre := string(hero.Compound)
	if hero.Status == model.StatusPit {
		tyre = "PIT"
	}
	t.AppendRow(table.Row{
		res.State.CurrentLap - 1, hero.Position, fmt.Sprintf("%.3f", hero.GapToLeader),
		tyre, hero.TyreAge, strategy.FormatLapTime(hero.LastLapTime()), res.Alert,
	})
}

func printReport(ctx context.Context, out io.Writer, s *race.Session, pub *publish.Publisher) {
	l := log.GetFromContext(ctx)
	rep, err := s.Report(ctx, config.Iterations)
	if err != nil {
		l.Warn("no strategy report", log.ErrorField(err))
		return
	}
	if pub != nil {
		if err := pub.Report(s.ID(), rep); err != nil {
			l.Warn("could not publish report", log.ErrorField(err))
		}
	}
	fmt.Fprintf(out, "\nLap %d: win %.1f%%, podium %.1f%%, avg finish %.2f\n",
		rep.LastUpdatedLap, rep.WinProbability, rep.PodiumProbability, rep.AverageFinish)
	cmdutil.StrategyTable(out, rep.Strategies, rep.RecommendedStrategyID)
	fmt.Fprintln(out, rep.Explanation)
}

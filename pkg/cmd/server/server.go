package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/api"
	"github.com/mpapenbr/pitwall-go/pkg/cmd/cmdutil"
	"github.com/mpapenbr/pitwall-go/pkg/config"
	"github.com/mpapenbr/pitwall-go/pkg/publish"
	"github.com/mpapenbr/pitwall-go/pkg/race"
	"github.com/mpapenbr/pitwall-go/pkg/roster"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
	"github.com/mpapenbr/pitwall-go/pkg/sim/rnd"
	"github.com/mpapenbr/pitwall-go/pkg/strategy"
	"github.com/mpapenbr/pitwall-go/pkg/weather"
)

var appConfig config.Config // holds processed config values

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:8080",
		"HTTP server listen address")
	cmd.Flags().StringVar(&config.LapInterval,
		"lap-interval",
		"",
		"drive races automatically with this wall clock duration per lap (empty: advance via API)")
	cmd.Flags().IntVar(&appConfig.ReportEvery,
		"report-every",
		5,
		"publish a strategy report every n laps of automatically driven races")
	cmd.Flags().BoolVar(&appConfig.StopOnFailed,
		"stop-on-failure",
		false,
		"halt a race when the hero drives on failed tyres")
	cmd.Flags().Uint64Var(&appConfig.Seed,
		"seed",
		0,
		"seed for the random sources (0 seeds from system entropy)")
	cmd.Flags().IntVar(&config.Iterations,
		"iterations",
		montecarlo.DefaultIterations,
		"default number of Monte Carlo iterations")
	cmd.Flags().IntVar(&config.Workers,
		"workers",
		4,
		"max number of concurrent projection workers")
	cmd.Flags().StringVar(&config.NarrationTimeout,
		"narration-timeout",
		"10s",
		"max time to wait for the narration service")
	cmd.Flags().StringVar(&config.WeatherCacheExpiry,
		"weather-cache-expiry",
		weather.DefaultCacheExpiry.String(),
		"how long weather conditions are cached")
	return cmd
}

//nolint:funlen,cyclop // by design
func startServer(ctx context.Context) error {
	l := log.GetFromContext(ctx).Named("server")
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.EnableTelemetry {
		l.Info("Enabling telemetry")
		if telemetry, err := config.SetupTelemetry(ctx); err == nil {
			defer telemetry.Shutdown()
		} else {
			l.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err := otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			l.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	conn, err := cmdutil.ConnectNats(ctx)
	if err != nil {
		l.Error("required services not ready", log.ErrorField(err))
		return err
	}
	if conn != nil {
		defer conn.Close()
	}
	rs, err := cmdutil.Roster(ctx)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if fs, ok := rs.(*roster.FileSource); ok {
		g.Go(func() error {
			if err := fs.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				l.Warn("roster watch stopped", log.ErrorField(err))
			}
			return nil
		})
	}

	reg := api.NewRegistry(registryOptions(gctx, l, rs, conn)...)
	defer reg.Close()

	//nolint:gosec // by design
	server := &http.Server{
		Addr: config.ServerAddr,
		Handler: h2c.NewHandler(
			newCORS().Handler(api.NewServer(reg, api.WithIterations(config.Iterations)).Handler()),
			&http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		l.Info("Starting HTTP server", log.String("addr", config.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		l.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		l.Error("server stopped", log.ErrorField(err))
		return err
	}
	l.Info("Server terminated")
	return nil
}

//nolint:whitespace // by design
func registryOptions(
	ctx context.Context,
	l *log.Logger,
	rs roster.Source,
	conn *nats.Conn,
) []api.RegistryOption {
	root := cmdutil.NewSource(appConfig.Seed)
	projector := montecarlo.NewProjector(rnd.Split(root),
		montecarlo.WithWorkers(config.Workers))
	// races derive their own streams, keep them apart from the projector stream
	var raceSeed uint64
	if appConfig.Seed != 0 {
		raceSeed = root.Uint64()
	}
	ret := []api.RegistryOption{
		api.WithRoster(rs),
		api.WithProjector(projector),
		api.WithSeed(raceSeed),
		api.WithStopOnFailure(appConfig.StopOnFailed),
		api.WithRegistryLogger(l.Named("registry")),
	}
	var pub *publish.Publisher
	if conn != nil {
		pub = publish.NewPublisher(conn)
		ret = append(ret,
			api.WithWeather(cmdutil.Weather(conn)),
			api.WithNarrator(cmdutil.Narrator(conn),
				cmdutil.ParseDuration("narration-timeout", config.NarrationTimeout,
					strategy.DefaultNarrationTimeout)),
			api.WithOnCreate(func(e *api.Entry) {
				forwardStates(ctx, l, pub, e)
			}))
	}
	if config.LapInterval != "" {
		interval := cmdutil.ParseDuration("lap-interval", config.LapInterval, 5*time.Second)
		ret = append(ret,
			api.WithClock(interval),
			api.WithOnTick(func(ctx context.Context, e *api.Entry, res *race.TickResult) {
				onTick(ctx, l, pub, e, res)
			}))
	}
	return ret
}

func forwardStates(ctx context.Context, l *log.Logger, pub *publish.Publisher, e *api.Entry) {
	if err := pub.Started(e.Session.Snapshot()); err != nil {
		l.Warn("could not publish race start", log.ErrorField(err))
	}
	sub := e.Updates.Subscribe()
	go func() {
		if err := pub.Forward(ctx, e.Session.ID(), sub); err != nil && !errors.Is(err, context.Canceled) {
			l.Warn("state forwarding stopped", log.ErrorField(err))
		}
	}()
}

//nolint:whitespace // by design
func onTick(
	ctx context.Context,
	l *log.Logger,
	pub *publish.Publisher,
	e *api.Entry,
	res *race.TickResult,
) {
	id := e.Session.ID()
	if res.Finished || res.Halted {
		if pub != nil {
			if err := pub.Results(id, e.Session.Results()); err != nil {
				l.Warn("could not publish results", log.ErrorField(err))
			}
		}
		return
	}
	if appConfig.ReportEvery <= 0 || (res.State.CurrentLap-1)%appConfig.ReportEvery != 0 {
		return
	}
	rep, err := e.Session.Report(ctx, config.Iterations)
	if err != nil {
		l.Debug("no strategy report", log.String("race", id), log.ErrorField(err))
		return
	}
	l.Info("strategy report",
		log.String("race", id),
		log.Int("lap", rep.LastUpdatedLap),
		log.String("recommended", rep.RecommendedStrategyID),
		log.Float64("win", rep.WinProbability))
	if pub != nil {
		if err := pub.Report(id, rep); err != nil {
			l.Warn("could not publish report", log.ErrorField(err))
		}
	}
}

func newCORS() *cors.Cors {
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodDelete,
		},
		AllowOriginFunc: func(origin string) bool {
			// Allow all origins, which effectively disables CORS.
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Content-Encoding",
		},
		// Let browsers cache CORS information for longer, which reduces the number
		// of preflight requests.
		MaxAge: int(2 * time.Hour / time.Second),
	})
}

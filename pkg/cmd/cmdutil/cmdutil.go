// Package cmdutil holds helpers shared by the pitwall commands
package cmdutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/config"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/narration"
	"github.com/mpapenbr/pitwall-go/pkg/race"
	"github.com/mpapenbr/pitwall-go/pkg/roster"
	"github.com/mpapenbr/pitwall-go/pkg/sim/rnd"
	"github.com/mpapenbr/pitwall-go/pkg/utils"
	"github.com/mpapenbr/pitwall-go/pkg/weather"
)

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates the application logger from the config values
// and installs it as default logger.
func SetupLogger() (*log.Logger, error) {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	logger, err := log.WithFilter(logger, config.LogFilter)
	if err != nil {
		return nil, fmt.Errorf("log filter: %w", err)
	}
	log.ResetDefault(logger)
	return logger, nil
}

// ParseDuration parses a config value, falling back to def on invalid input
func ParseDuration(name, val string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(val)
	if err != nil {
		log.Warn("Invalid duration value. Using default",
			log.String("name", name),
			log.String("value", val),
			log.Duration("default", def))
		return def
	}
	return d
}

// NewSource returns a seeded source, seed 0 uses system entropy
func NewSource(seed uint64) rnd.Source {
	if seed == 0 {
		return rnd.NewFromEntropy()
	}
	return rnd.New(seed)
}

// RaceSources are the random streams of one race, all derived from one root
type RaceSources struct {
	Setup     rnd.Source
	Session   rnd.Source
	Projector rnd.Source
}

// NewRaceSources splits the streams of a race from a root seeded with seed
func NewRaceSources(seed uint64) RaceSources {
	root := NewSource(seed)
	return RaceSources{
		Setup:     rnd.Split(root),
		Session:   rnd.Split(root),
		Projector: rnd.Split(root),
	}
}

// Roster returns the roster from config.RosterFile or the builtin one
func Roster(ctx context.Context) (roster.Source, error) {
	if config.RosterFile == "" {
		return roster.Default(), nil
	}
	return roster.NewFileSource(ctx, config.RosterFile)
}

// ConnectNats connects to config.NatsURL. An empty URL returns nil without error.
func ConnectNats(ctx context.Context) (*nats.Conn, error) {
	if config.NatsURL == "" {
		return nil, nil
	}
	timeout := ParseDuration("wait-for-services", config.WaitForServices, 60*time.Second)
	for _, addr := range utils.ExtractFromNatsURL(config.NatsURL) {
		if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
			return nil, fmt.Errorf("nats not ready: %w", err)
		}
	}
	conn, err := nats.Connect(config.NatsURL, nats.Name("pitwall"))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	log.GetFromContext(ctx).Info("connected to nats", log.String("url", conn.ConnectedUrlRedacted()))
	return conn, nil
}

// Weather returns a cached NATS oracle or nil if there is no connection
func Weather(conn *nats.Conn) weather.Oracle {
	if conn == nil {
		return nil
	}
	return weather.NewCached(weather.NewNatsOracle(conn),
		ParseDuration("weather-cache-expiry", config.WeatherCacheExpiry, weather.DefaultCacheExpiry))
}

// Narrator returns a NATS narrator or nil if there is no connection
func Narrator(conn *nats.Conn) narration.Narrator {
	if conn == nil {
		return nil
	}
	return narration.NewNatsNarrator(conn)
}

// RaceFlags describe a race on the command line
type RaceFlags struct {
	Circuit   string
	Laps      int
	Hero      string
	StartTyre string
	Drivers   []string
	Start     string
}

func (f *RaceFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Circuit, "circuit", "bahrain", "circuit id")
	cmd.Flags().IntVar(&f.Laps, "laps", 57, "race distance in laps")
	cmd.Flags().StringVar(&f.Hero, "hero", "ver", "id of the driver controlled by the strategist")
	cmd.Flags().StringVar(&f.StartTyre, "start-tyre", string(model.C3), "start compound of the hero")
	cmd.Flags().StringSliceVar(&f.Drivers, "drivers", nil, "driver ids taking part (default all)")
	cmd.Flags().StringVar(&f.Start, "start", "", "race start time (RFC3339, default now)")
}

func (f *RaceFlags) Params() (*race.Params, error) {
	start := time.Now()
	if f.Start != "" {
		var err error
		if start, err = time.Parse(time.RFC3339, f.Start); err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
	}
	return &race.Params{
		CircuitID: f.Circuit,
		Laps:      f.Laps,
		Start:     start,
		HeroID:    f.Hero,
		StartTyre: model.CompoundID(strings.ToUpper(f.StartTyre)),
		Drivers:   f.Drivers,
	}, nil
}

// Package montecarlo estimates the outcome of a race for the hero driver
// by running many independent forward simulations.
package montecarlo

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/sim/advance"
	"github.com/mpapenbr/pitwall-go/pkg/sim/laptime"
	"github.com/mpapenbr/pitwall-go/pkg/sim/rnd"
)

const (
	DefaultIterations = 200
	gapSigma          = 0.2
	heroBoxShare      = 0.95 // hero boxes at 95% of max life
	aiBoxShareMin     = 0.9
	aiBoxShareSpread  = 0.2
	cleanAirExit      = 0.5
	rubberBandGap     = 2.0
	rubberBandAggr    = 0.9
	rubberBand        = 0.1
)

// Projection is the aggregated result of a Run
type Projection struct {
	Results           []model.SimulationResult `json:"results"`
	Iterations        int                      `json:"iterations"`
	WinProbability    float64                  `json:"winProbability"`    // percent
	PodiumProbability float64                  `json:"podiumProbability"` // percent
	AverageFinish     float64                  `json:"averageFinish"`
	SourceLap         int                      `json:"sourceLap"` // lap of the state the projection started from
}

type Option func(*Projector)

func WithWorkers(n int) Option {
	return func(p *Projector) {
		p.workers = n
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(p *Projector) {
		p.tracer = tracer
	}
}

func WithMeter(meter metric.Meter) Option {
	return func(p *Projector) {
		p.meter = meter
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Projector) {
		p.log = l
	}
}

// Projector runs projections. It is safe for concurrent use.
type Projector struct {
	srcMu   sync.Mutex
	src     rnd.Source
	workers int
	log     *log.Logger
	tracer  trace.Tracer
	meter   metric.Meter

	iterCounter metric.Int64Counter
	duration    metric.Float64Histogram
}

// NewProjector creates a projector drawing the per iteration seeds from src.
func NewProjector(src rnd.Source, opts ...Option) *Projector {
	ret := &Projector{
		src:     src,
		workers: 4,
		log:     log.Default().Named("montecarlo"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("pitwall")
	}
	if ret.meter == nil {
		ret.meter = otel.GetMeterProvider().Meter("pitwall.montecarlo")
	}
	if ret.workers < 1 {
		ret.workers = 1
	}
	ret.setupMetrics()
	return ret
}

func (p *Projector) setupMetrics() {
	var err error
	if p.iterCounter, err = p.meter.Int64Counter(
		"pitwall.projection.iterations",
		metric.WithDescription("Number of simulated race iterations"),
		metric.WithUnit("{count}"),
	); err != nil {
		p.log.Error("failed to register metric", log.ErrorField(err))
	}
	if p.duration, err = p.meter.Float64Histogram(
		"pitwall.projection.duration",
		metric.WithDescription("Duration of a projection run"),
		metric.WithUnit("s"),
	); err != nil {
		p.log.Error("failed to register metric", log.ErrorField(err))
	}
}

// simDriver is the slim per iteration copy of a driver
type simDriver struct {
	id       string
	skill    model.Skill
	compound model.CompoundID
	tyre     model.TyreCompound
	age      int
	gap      float64
	stops    int
	retired  bool
	hero     bool
}

// Run simulates iterations races from state to the final lap.
// Iterations run in parallel; the result only depends on the source
// the projector was created with, not on the number of workers.
//
//nolint:whitespace // by design
func (p *Projector) Run(
	ctx context.Context,
	state *model.RaceState,
	cfg *model.RaceConfig,
	heroID string,
	iterations int,
) (*Projection, error) {
	ctx, span := p.tracer.Start(ctx, "montecarlo.Run",
		trace.WithAttributes(
			attribute.Int("iterations", iterations),
			attribute.Int("lap", state.CurrentLap),
		))
	defer span.End()
	start := time.Now()

	ret := &Projection{
		Results:    []model.SimulationResult{},
		Iterations: max(iterations, 0),
		SourceLap:  state.CurrentLap,
	}
	if _, err := state.Driver(heroID); err != nil {
		return nil, err
	}
	drivers, err := toSim(state, heroID)
	if err != nil {
		return nil, err
	}
	if iterations <= 0 {
		return ret, nil
	}

	seeds := p.drawSeeds(iterations)
	results := make([]model.SimulationResult, iterations)
	raining := state.IsRaining()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i := range iterations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = simulate(drivers, state.CurrentLap, cfg, raining, rnd.New(seeds[i]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		p.log.Debug("projection aborted", log.ErrorField(err))
		return nil, fmt.Errorf("projection aborted: %w", err)
	}

	ret.Results = results
	aggregate(ret, heroID)

	attrs := metric.WithAttributes(attribute.String("circuit", cfg.CircuitID))
	if p.iterCounter != nil {
		p.iterCounter.Add(ctx, int64(iterations), attrs)
	}
	if p.duration != nil {
		p.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
	p.log.Debug("projection done",
		log.Int("iterations", iterations),
		log.Int("lap", state.CurrentLap),
		log.Float64("win", ret.WinProbability),
		log.Float64("podium", ret.PodiumProbability),
		log.Duration("duration", time.Since(start)))
	return ret, nil
}

func (p *Projector) drawSeeds(n int) []uint64 {
	p.srcMu.Lock()
	defer p.srcMu.Unlock()
	seeds := make([]uint64, n)
	for i := range seeds {
		seeds[i] = p.src.Uint64()
	}
	return seeds
}

func toSim(state *model.RaceState, heroID string) ([]simDriver, error) {
	ret := make([]simDriver, 0, len(state.Drivers))
	for i := range state.Drivers {
		d := &state.Drivers[i]
		tyre, err := model.LookupTyre(d.Compound)
		if err != nil {
			return nil, fmt.Errorf("driver %s: %w", d.ID, err)
		}
		ret = append(ret, simDriver{
			id:       d.ID,
			skill:    d.Skill,
			compound: d.Compound,
			tyre:     tyre,
			age:      d.TyreAge,
			gap:      d.GapToLeader,
			stops:    d.PitStops,
			retired:  d.Status == model.StatusDNF,
			hero:     d.ID == heroID,
		})
	}
	return ret, nil
}

// BoxThreshold returns the tyre age beyond which a driver pits in a simulated lap.
// u is a uniform draw, only used for non hero drivers.
func BoxThreshold(tyre model.TyreCompound, hero bool, u float64) float64 {
	if hero {
		return float64(tyre.MaxLife) * heroBoxShare
	}
	return float64(tyre.MaxLife) * (aiBoxShareMin + u*aiBoxShareSpread)
}

//nolint:whitespace // by design
func simulate(
	initial []simDriver,
	lap int,
	cfg *model.RaceConfig,
	raining bool,
	src rnd.Source,
) model.SimulationResult {
	drivers := slices.Clone(initial)
	base := cfg.TrackBasePace()
	for i := range drivers {
		if drivers[i].retired {
			continue
		}
		drivers[i].gap += rnd.Normal(src, 0, gapSigma)
	}

	for lap < cfg.TotalLaps {
		lap++
		fuel := float64(cfg.TotalLaps-lap) * advance.FuelPerLap
		for i := range drivers {
			d := &drivers[i]
			if d.retired {
				continue
			}
			var u float64
			if !d.hero {
				u = src.Float64()
			}
			if float64(d.age) > BoxThreshold(d.tyre, d.hero, u) {
				d.gap += cfg.PitLossSeconds
				d.stops++
				d.compound = advance.RotateDry(d.compound)
				d.tyre = model.MustTyre(d.compound)
				d.age = 0
				d.gap -= cleanAirExit
				continue
			}
			lt := laptime.LapTime(&laptime.Input{
				Skill:         d.skill,
				Tyre:          d.tyre,
				TyreAge:       d.age,
				FuelKg:        fuel,
				TrackBasePace: base,
				Raining:       raining,
			}, src)
			d.gap += lt - base
			if d.gap > rubberBandGap && d.skill.Aggression > rubberBandAggr {
				d.gap -= rubberBand
			}
			d.age++
		}
	}

	slices.SortStableFunc(drivers, func(a, b simDriver) int {
		if a.retired != b.retired {
			if a.retired {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.gap, b.gap)
	})
	ret := model.SimulationResult{
		FinalPositions: make(map[string]int, len(drivers)),
	}
	for i, d := range drivers {
		ret.FinalPositions[d.id] = i + 1
	}
	if len(drivers) > 0 {
		ret.WinnerID = drivers[0].id
	}
	ret.Podium = lo.Map(drivers[:min(3, len(drivers))], func(d simDriver, _ int) string { return d.id })
	return ret
}

func aggregate(p *Projection, heroID string) {
	n := float64(len(p.Results))
	if n == 0 {
		return
	}
	wins := lo.CountBy(p.Results, func(r model.SimulationResult) bool { return r.WinnerID == heroID })
	podiums := lo.CountBy(p.Results, func(r model.SimulationResult) bool {
		return lo.Contains(r.Podium, heroID)
	})
	total := lo.SumBy(p.Results, func(r model.SimulationResult) int { return r.FinalPositions[heroID] })
	p.WinProbability = float64(wins) / n * 100
	p.PodiumProbability = float64(podiums) / n * 100
	p.AverageFinish = float64(total) / n
}

package race

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/narration"
	"github.com/mpapenbr/pitwall-go/pkg/sim/advance"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
	"github.com/mpapenbr/pitwall-go/pkg/sim/rnd"
	"github.com/mpapenbr/pitwall-go/pkg/strategy"
)

type Alert string

const (
	AlertNone     Alert = ""
	AlertBoxNow   Alert = "BOX_NOW"  // hero tyres within 3 laps of their life
	AlertCritical Alert = "CRITICAL" // hero tyres past their life
	boxNowMargin        = 3
)

var (
	ErrHalted = errors.New("race halted after critical tyre failure")
	ErrStale  = errors.New("race moved on while the report was computed")
)

type (
	// Session owns the authoritative state of one race.
	// All methods are safe for concurrent use; ticks are serialized.
	Session struct {
		id     string
		cfg    model.RaceConfig
		heroID string
		src    rnd.Source
		log    *log.Logger

		mu           sync.Mutex
		state        *model.RaceState
		boxRequested bool
		nextTyre     *model.CompoundID
		queuedBox    bool              // requested while the hero is in the pit lane
		queuedTyre   *model.CompoundID // tyre for the queued stop
		alert        Alert
		halted       bool

		stopOnFailure    bool
		updates          chan<- *model.RaceState
		projector        strategy.Runner
		narrator         narration.Narrator
		narrationTimeout time.Duration
	}
	SessionOption func(*Session)

	TickResult struct {
		State        *model.RaceState `json:"state"`
		BoxProcessed bool             `json:"boxProcessed"`
		Alert        Alert            `json:"alert,omitempty"`
		Halted       bool             `json:"halted"`
		Finished     bool             `json:"finished"`
	}

	// Snapshot is a consistent copy of the session
	Snapshot struct {
		ID           string            `json:"id"`
		Config       model.RaceConfig  `json:"config"`
		HeroID       string            `json:"heroId"`
		State        *model.RaceState  `json:"state"`
		BoxRequested bool              `json:"boxRequested"`
		NextTyre     *model.CompoundID `json:"nextTyre,omitempty"`
		QueuedBox    bool              `json:"queuedBox"`
		QueuedTyre   *model.CompoundID `json:"queuedTyre,omitempty"`
		Alert        Alert             `json:"alert,omitempty"`
		Halted       bool              `json:"halted"`
		Finished     bool              `json:"finished"`
	}
)

func WithID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// WithStopOnFailure halts the race when the hero drives on failed tyres
func WithStopOnFailure(arg bool) SessionOption {
	return func(s *Session) {
		s.stopOnFailure = arg
	}
}

// WithUpdates sends every new state to ch
func WithUpdates(ch chan<- *model.RaceState) SessionOption {
	return func(s *Session) {
		s.updates = ch
	}
}

func WithProjector(r strategy.Runner) SessionOption {
	return func(s *Session) {
		s.projector = r
	}
}

func WithNarrator(n narration.Narrator, timeout time.Duration) SessionOption {
	return func(s *Session) {
		s.narrator = n
		s.narrationTimeout = timeout
	}
}

func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		s.log = l
	}
}

//nolint:whitespace // by design
func NewSession(
	cfg *model.RaceConfig,
	state *model.RaceState,
	heroID string,
	src rnd.Source,
	opts ...SessionOption,
) (*Session, error) {
	if _, err := state.Driver(heroID); err != nil {
		return nil, err
	}
	ret := &Session{
		id:     uuid.NewString(),
		cfg:    *cfg,
		heroID: heroID,
		src:    src,
		state:  state.Clone(),
		log:    log.Default().Named("race"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.log = ret.log.With(log.String("race", ret.id))
	ret.alert = heroAlert(ret.state, heroID)
	return ret, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) HeroID() string {
	return s.heroID
}

func (s *Session) Config() model.RaceConfig {
	return s.cfg
}

// RequestBox asks the hero to pit at the end of the current lap.
// next selects the tyre, nil lets the engine pick one.
// While the hero is in the pit lane the request is queued for the next stop
// and the tyre of the running stop stays as it is.
func (s *Session) RequestBox(next *model.CompoundID) error {
	if next != nil && !next.Valid() {
		return fmt.Errorf("%w: %q", model.ErrUnknownCompound, *next)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Finished(&s.cfg) {
		return advance.ErrRaceFinished
	}
	var tyre *model.CompoundID
	if next != nil {
		c := *next
		tyre = &c
	}
	if s.heroInPit() {
		s.queuedBox = true
		s.queuedTyre = tyre
		s.log.Debug("box queued", log.Any("next", tyre))
		return nil
	}
	s.boxRequested = true
	s.nextTyre = tyre
	s.log.Debug("box requested", log.Any("next", tyre))
	return nil
}

func (s *Session) heroInPit() bool {
	hero, err := s.state.Driver(s.heroID)
	return err == nil && hero.Status == model.StatusPit
}

// CancelBox withdraws a pending box request
func (s *Session) CancelBox() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boxRequested = false
	s.nextTyre = nil
	s.queuedBox = false
	s.queuedTyre = nil
}

func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := &Snapshot{
		ID:           s.id,
		Config:       s.cfg,
		HeroID:       s.heroID,
		State:        s.state.Clone(),
		BoxRequested: s.boxRequested,
		Alert:        s.alert,
		Halted:       s.halted,
		Finished:     s.state.Finished(&s.cfg),
	}
	if s.nextTyre != nil {
		c := *s.nextTyre
		ret.NextTyre = &c
	}
	ret.QueuedBox = s.queuedBox
	if s.queuedTyre != nil {
		c := *s.queuedTyre
		ret.QueuedTyre = &c
	}
	return ret
}

// Tick advances the race by one lap
//
//nolint:funlen // by design
func (s *Session) Tick(ctx context.Context) (*TickResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.halted {
		return nil, ErrHalted
	}
	alert := heroAlert(s.state, s.heroID)
	s.alert = alert
	if alert == AlertCritical && s.stopOnFailure {
		s.halted = true
		s.log.Warn("hero tyres failed, race halted", log.Int("lap", s.state.CurrentLap))
		return &TickResult{State: s.state.Clone(), Alert: alert, Halted: true}, nil
	}

	heroWasInPit := s.heroInPit()

	out, err := advance.Lap(s.state, &s.cfg, s.heroID,
		advance.BoxRequest{Requested: s.boxRequested, Next: s.nextTyre}, s.src)
	if err != nil {
		return nil, err
	}
	// nothing is committed until the new state was handed over
	if s.updates != nil {
		select {
		case s.updates <- out.State.Clone():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if out.BoxProcessed {
		s.boxRequested = false
	}
	if heroWasInPit {
		s.nextTyre = nil
		if s.queuedBox {
			s.boxRequested = true
			s.nextTyre = s.queuedTyre
			s.queuedBox = false
			s.queuedTyre = nil
		}
	}
	s.state = out.State
	s.alert = heroAlert(s.state, s.heroID)
	finished := s.state.Finished(&s.cfg)

	s.log.Debug("lap done",
		log.Int("lap", s.state.CurrentLap),
		log.Bool("boxProcessed", out.BoxProcessed),
		log.String("alert", string(s.alert)),
		log.Bool("finished", finished))

	return &TickResult{
		State:        s.state.Clone(),
		BoxProcessed: out.BoxProcessed,
		Alert:        s.alert,
		Finished:     finished,
	}, nil
}

// Report builds a strategy report for the current lap.
// If the race advanced while the report was computed it is discarded with ErrStale.
func (s *Session) Report(ctx context.Context, iterations int) (*model.StrategyReport, error) {
	snap := s.Snapshot()
	rep, err := strategy.BuildReport(log.AddToContext(ctx, s.log), &strategy.ReportInput{
		State:            snap.State,
		Config:           &snap.Config,
		HeroID:           s.heroID,
		Iterations:       iterations,
		Projector:        s.projector,
		Narrator:         s.narrator,
		NarrationTimeout: s.narrationTimeout,
	})
	if err != nil {
		return nil, err
	}
	if err := s.checkLap(snap.State.CurrentLap); err != nil {
		return nil, err
	}
	return rep, nil
}

func (s *Session) checkLap(lap int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.CurrentLap != lap {
		return fmt.Errorf("computed for lap %d, race at lap %d: %w",
			lap, s.state.CurrentLap, ErrStale)
	}
	return nil
}

// Project runs the Monte Carlo projection for the current lap.
// Like Report it fails with ErrStale if the race advanced meanwhile.
func (s *Session) Project(ctx context.Context, iterations int) (*montecarlo.Projection, error) {
	if s.projector == nil {
		return nil, strategy.ErrNoProjector
	}
	snap := s.Snapshot()
	proj, err := s.projector.Run(log.AddToContext(ctx, s.log), snap.State, &snap.Config,
		s.heroID, iterations)
	if err != nil {
		return nil, err
	}
	if err := s.checkLap(snap.State.CurrentLap); err != nil {
		return nil, err
	}
	return proj, nil
}

// Strategies returns the candidate strategies with estimated race times
func (s *Session) Strategies() ([]model.StrategyOption, error) {
	return s.strategiesFor(s.Snapshot())
}

// Degradation returns the candidate strategies and their projected tyre
// performance, both computed from the same lap.
//
//nolint:whitespace // by design
func (s *Session) Degradation() (
	[]model.StrategyOption,
	[]strategy.DegradationPoint,
	error,
) {
	snap := s.Snapshot()
	options, err := s.strategiesFor(snap)
	if err != nil {
		return nil, nil, err
	}
	return options,
		strategy.ProjectDegradation(snap.State.CurrentLap, snap.Config.TotalLaps, options),
		nil
}

func (s *Session) strategiesFor(snap *Snapshot) ([]model.StrategyOption, error) {
	ret, err := strategy.Generate(snap.State, &snap.Config, s.heroID)
	if err != nil {
		return nil, err
	}
	if err := strategy.EstimateRaceTimes(snap.State, &snap.Config, s.heroID, ret); err != nil {
		return nil, err
	}
	return ret, nil
}

// Results returns the classification of the current state.
// Before the finish this is the provisional order.
func (s *Session) Results() []Classification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Classify(s.state)
}

func heroAlert(state *model.RaceState, heroID string) Alert {
	hero, err := state.Driver(heroID)
	if err != nil || hero.Status != model.StatusOnTrack {
		return AlertNone
	}
	tyre, err := model.LookupTyre(hero.Compound)
	if err != nil {
		return AlertNone
	}
	switch {
	case hero.TyreAge >= tyre.MaxLife:
		return AlertCritical
	case hero.TyreAge >= tyre.MaxLife-boxNowMargin:
		return AlertBoxNow
	default:
		return AlertNone
	}
}

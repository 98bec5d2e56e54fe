package api

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/narration"
	"github.com/mpapenbr/pitwall-go/pkg/race"
	"github.com/mpapenbr/pitwall-go/pkg/roster"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
	"github.com/mpapenbr/pitwall-go/pkg/sim/rnd"
	"github.com/mpapenbr/pitwall-go/pkg/utils/broadcast"
	"github.com/mpapenbr/pitwall-go/pkg/weather"
)

var ErrRaceNotFound = errors.New("race not found")

type (
	// Entry is a registered race with its state fan-out
	Entry struct {
		Session *race.Session
		Updates broadcast.Server[*model.RaceState]
		cancel  context.CancelFunc
	}

	// TickHook is called after each lap driven by the registry clock
	TickHook func(ctx context.Context, e *Entry, res *race.TickResult)

	Registry struct {
		mu    sync.RWMutex
		races map[string]*Entry

		roster           roster.Source
		oracle           weather.Oracle
		projector        *montecarlo.Projector
		narrator         narration.Narrator
		narrationTimeout time.Duration
		seed             uint64
		stopOnFailure    bool
		clockInterval    time.Duration
		clockEnabled     bool
		onCreate         []func(e *Entry)
		onTick           []TickHook

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup
		l      *log.Logger
	}
	RegistryOption func(*Registry)
)

func WithRoster(src roster.Source) RegistryOption {
	return func(r *Registry) {
		r.roster = src
	}
}

func WithWeather(oracle weather.Oracle) RegistryOption {
	return func(r *Registry) {
		r.oracle = oracle
	}
}

func WithProjector(p *montecarlo.Projector) RegistryOption {
	return func(r *Registry) {
		r.projector = p
	}
}

func WithNarrator(n narration.Narrator, timeout time.Duration) RegistryOption {
	return func(r *Registry) {
		r.narrator = n
		r.narrationTimeout = timeout
	}
}

// WithSeed makes races reproducible, 0 seeds from system entropy
func WithSeed(seed uint64) RegistryOption {
	return func(r *Registry) {
		r.seed = seed
	}
}

func WithStopOnFailure(arg bool) RegistryOption {
	return func(r *Registry) {
		r.stopOnFailure = arg
	}
}

// WithClock lets the registry drive every new race with a race.Clock
func WithClock(interval time.Duration) RegistryOption {
	return func(r *Registry) {
		r.clockInterval = interval
		r.clockEnabled = true
	}
}

func WithOnCreate(cb func(e *Entry)) RegistryOption {
	return func(r *Registry) {
		r.onCreate = append(r.onCreate, cb)
	}
}

func WithOnTick(cb TickHook) RegistryOption {
	return func(r *Registry) {
		r.onTick = append(r.onTick, cb)
	}
}

func WithRegistryLogger(l *log.Logger) RegistryOption {
	return func(r *Registry) {
		r.l = l
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	ret := &Registry{
		races:  map[string]*Entry{},
		roster: roster.Default(),
		ctx:    ctx,
		cancel: cancel,
		l:      log.Default().Named("registry"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Create sets up a new race and registers it
func (r *Registry) Create(ctx context.Context, p *race.Params) (*Entry, error) {
	root := r.newSource()
	cfg, state, err := race.Setup(ctx, p, r.roster, r.oracle, rnd.Split(root))
	if err != nil {
		return nil, err
	}
	updates := make(chan *model.RaceState)
	opts := []race.SessionOption{
		race.WithUpdates(updates),
		race.WithStopOnFailure(r.stopOnFailure),
	}
	if r.projector != nil {
		opts = append(opts, race.WithProjector(montecarlo.NewLatest(r.projector)))
	}
	if r.narrator != nil {
		opts = append(opts, race.WithNarrator(r.narrator, r.narrationTimeout))
	}
	s, err := race.NewSession(cfg, state, p.HeroID, rnd.Split(root), opts...)
	if err != nil {
		return nil, err
	}
	entryCtx, cancel := context.WithCancel(r.ctx)
	e := &Entry{
		Session: s,
		Updates: broadcast.NewServer(fmt.Sprintf("race.%s", s.ID()), updates),
		cancel:  cancel,
	}

	r.mu.Lock()
	r.races[s.ID()] = e
	r.mu.Unlock()
	r.l.Info("race created",
		log.String("race", s.ID()),
		log.String("circuit", cfg.CircuitID),
		log.Int("laps", cfg.TotalLaps),
		log.String("hero", p.HeroID))

	for _, cb := range r.onCreate {
		cb(e)
	}
	if r.clockEnabled {
		r.startClock(entryCtx, e)
	}
	return e, nil
}

func (r *Registry) startClock(ctx context.Context, e *Entry) {
	c := race.NewClock(r.clockInterval,
		race.WithClockLogger(r.l.Named("clock").With(log.String("race", e.Session.ID()))),
		race.WithOnTick(func(ctx context.Context, res *race.TickResult) {
			for _, cb := range r.onTick {
				cb(ctx, e, res)
			}
		}))
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := c.Run(ctx, e.Session); err != nil && !errors.Is(err, context.Canceled) {
			r.l.Warn("race clock stopped", log.String("race", e.Session.ID()), log.ErrorField(err))
		}
	}()
}

func (r *Registry) Get(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.races[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRaceNotFound, id)
	}
	return e, nil
}

// List returns all races ordered by id
func (r *Registry) List() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := lo.Values(r.races)
	slices.SortFunc(ret, func(a, b *Entry) int {
		return cmp.Compare(a.Session.ID(), b.Session.ID())
	})
	return ret
}

// Remove stops the clock of race id and closes its update subscriptions
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.races[id]
	delete(r.races, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrRaceNotFound, id)
	}
	e.cancel()
	e.Updates.Close()
	r.l.Info("race removed", log.String("race", id))
	return nil
}

// Close stops all races and waits for their clocks to return
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, e := range r.races {
		e.Updates.Close()
		delete(r.races, id)
	}
}

func (r *Registry) Roster() roster.Source {
	return r.roster
}

func (r *Registry) newSource() rnd.Source {
	if r.seed == 0 {
		return rnd.NewFromEntropy()
	}
	return rnd.New(r.seed)
}

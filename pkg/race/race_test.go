//nolint:funlen // ok for tests
package race

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/roster"
	"github.com/mpapenbr/pitwall-go/pkg/sim/advance"
	"github.com/mpapenbr/pitwall-go/pkg/sim/montecarlo"
	"github.com/mpapenbr/pitwall-go/pkg/sim/rnd"
	"github.com/mpapenbr/pitwall-go/pkg/strategy"
	"github.com/mpapenbr/pitwall-go/pkg/weather"
)

var raceStart = time.Date(2025, 3, 2, 15, 0, 0, 0, time.UTC)

func defaultDrivers(t *testing.T) []model.Driver {
	t.Helper()
	d, err := roster.Default().Drivers(context.Background())
	require.NoError(t, err)
	return d
}

func TestNewGrid(t *testing.T) {
	grid, err := NewGrid(defaultDrivers(t), "ham", model.C4, rnd.New(1))
	require.NoError(t, err)
	require.Len(t, grid, 10)
	for i, d := range grid {
		assert.Equal(t, i+1, d.Position)
		assert.InDelta(t, float64(i)*0.5, d.GapToLeader, 1e-9)
		assert.Equal(t, StartTyreAge, d.TyreAge)
		assert.Equal(t, model.StatusOnTrack, d.Status)
		if d.ID == "ham" {
			assert.Equal(t, model.C4, d.Compound)
		} else {
			assert.Equal(t, model.C3, d.Compound)
		}
	}
	// qualifying variance is smaller than the pace gap between these two
	posOf := func(id string) int {
		d, err := roster.Find(grid, id)
		require.NoError(t, err)
		return d.Position
	}
	assert.Less(t, posOf("ver"), posOf("tsu"))
}

func TestNewGridErrors(t *testing.T) {
	_, err := NewGrid(defaultDrivers(t), "nobody", model.C3, rnd.New(1))
	assert.ErrorIs(t, err, model.ErrDriverNotFound)
	_, err = NewGrid(defaultDrivers(t), "ver", "C8", rnd.New(1))
	assert.ErrorIs(t, err, model.ErrUnknownCompound)
}

func TestNewRace(t *testing.T) {
	circuit, err := model.LookupCircuit("bahrain")
	require.NoError(t, err)
	grid, err := NewGrid(defaultDrivers(t), "ver", model.C3, rnd.New(1))
	require.NoError(t, err)
	cfg, state, err := NewRace(circuit, 57, raceStart, weather.Fallback, grid)
	require.NoError(t, err)
	assert.Equal(t, 24.0, cfg.PitLossSeconds)
	assert.Equal(t, 91.0, cfg.TrackBasePace())
	assert.Equal(t, 1, state.CurrentLap)
	assert.Equal(t, 0.05, state.SafetyCarProbability)
	assert.Equal(t, 34.0, state.TrackTemp)

	_, _, err = NewRace(circuit, 0, raceStart, weather.Fallback, grid)
	assert.ErrorIs(t, err, ErrInvalidLaps)
	_, _, err = NewRace(circuit, MaxLaps+1, raceStart, weather.Fallback, grid)
	assert.ErrorIs(t, err, ErrInvalidLaps)
	_, _, err = NewRace(circuit, MaxLaps, raceStart, weather.Fallback, grid)
	assert.NoError(t, err)
}

func TestSetup(t *testing.T) {
	cfg, state, err := Setup(context.Background(), &Params{
		CircuitID: "monza",
		Laps:      10,
		Start:     raceStart,
		HeroID:    "nor",
		StartTyre: model.C5,
		Drivers:   []string{"ver", "nor", "lec"},
	}, roster.Default(), weather.Static{AirTemp: 30, TrackTemp: 44, RainProbability: 0.4}, rnd.New(3))
	require.NoError(t, err)
	assert.Equal(t, "monza", cfg.CircuitID)
	assert.Len(t, state.Drivers, 3)
	assert.Equal(t, 0.4, state.RainProbability)

	_, _, err = Setup(context.Background(), &Params{CircuitID: "x", Laps: 3}, roster.Default(), nil, rnd.New(1))
	assert.ErrorIs(t, err, model.ErrUnknownCircuit)

	_, _, err = Setup(context.Background(), &Params{
		CircuitID: "monza", Laps: 3, HeroID: "ver", StartTyre: model.C3, Drivers: []string{"zzz"},
	}, roster.Default(), nil, rnd.New(1))
	assert.ErrorIs(t, err, model.ErrDriverNotFound)

	_, _, err = Setup(context.Background(), &Params{
		CircuitID: "monza", Laps: 3, HeroID: "ver", StartTyre: model.C3,
		Drivers: []string{"ver", "ver", "ham"},
	}, roster.Default(), nil, rnd.New(1))
	assert.ErrorIs(t, err, ErrDuplicateDriver)
}

func TestClassify(t *testing.T) {
	state := &model.RaceState{Drivers: []model.Driver{
		{ID: "b", DriverState: model.DriverState{Position: 2, LapTimes: []float64{92, 90.5}}},
		{ID: "a", DriverState: model.DriverState{Position: 1, LapTimes: []float64{90.8, 90.9}}},
		{ID: "c", DriverState: model.DriverState{Position: 3, LapTimes: []float64{92, 115}, PitStops: 1}},
		{ID: "d", DriverState: model.DriverState{Position: 4, Status: model.StatusDNF}},
	}}
	got := Classify(state)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"a", "b", "c", "d"}, []string{got[0].DriverID, got[1].DriverID, got[2].DriverID, got[3].DriverID})
	assert.Equal(t, 25, got[0].Points)
	assert.Equal(t, 19, got[1].Points, "fastest lap bonus")
	assert.True(t, got[1].FastestLap)
	assert.Equal(t, 15, got[2].Points)
	assert.Equal(t, 0, got[3].Points)
	assert.InDelta(t, 0.8, got[1].GapToWinner, 1e-9)
	assert.Equal(t, 90.5, got[1].BestLap)
	assert.Equal(t, 0.0, got[3].BestLap)
	assert.Equal(t, 2, got[2].Laps)
}

func TestClassifyFastestLapOutsideTopTen(t *testing.T) {
	state := &model.RaceState{}
	for i := range 11 {
		lt := 92.0
		if i == 10 {
			lt = 80
		}
		state.Drivers = append(state.Drivers, model.Driver{
			ID:          string(rune('a' + i)),
			DriverState: model.DriverState{Position: i + 1, LapTimes: []float64{lt}},
		})
	}
	got := Classify(state)
	assert.True(t, got[10].FastestLap)
	assert.Equal(t, 0, got[10].Points)
	assert.Equal(t, 25, got[0].Points)
}

func TestClassifyEmpty(t *testing.T) {
	assert.Empty(t, Classify(&model.RaceState{}))
}

func newTestSession(t *testing.T, laps int, opts ...SessionOption) *Session {
	t.Helper()
	cfg, state, err := Setup(context.Background(), &Params{
		CircuitID: "bahrain", Laps: laps, Start: raceStart, HeroID: "ver", StartTyre: model.C3,
	}, roster.Default(), nil, rnd.New(11))
	require.NoError(t, err)
	s, err := NewSession(cfg, state, "ver", rnd.New(12), opts...)
	require.NoError(t, err)
	return s
}

func TestSessionBoxFlow(t *testing.T) {
	s := newTestSession(t, 20)
	ctx := context.Background()
	next := model.C4
	require.NoError(t, s.RequestBox(&next))
	assert.True(t, s.Snapshot().BoxRequested)

	res, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, res.BoxProcessed)
	snap := s.Snapshot()
	assert.False(t, snap.BoxRequested, "request consumed")
	require.NotNil(t, snap.NextTyre, "tyre choice kept until pit exit")

	res, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, res.BoxProcessed)
	hero, err := res.State.Driver("ver")
	require.NoError(t, err)
	assert.Equal(t, model.C4, hero.Compound)
	assert.Equal(t, 1, hero.PitStops)
	assert.Nil(t, s.Snapshot().NextTyre)
}

func TestSessionBoxWhileInPitLane(t *testing.T) {
	s := newTestSession(t, 20)
	ctx := context.Background()
	first, second := model.C2, model.C5
	hero := func(res *TickResult) *model.Driver {
		t.Helper()
		d, err := res.State.Driver("ver")
		require.NoError(t, err)
		return d
	}

	require.NoError(t, s.RequestBox(&first))
	res, err := s.Tick(ctx)
	require.NoError(t, err)
	require.Equal(t, model.StatusPit, hero(res).Status)

	require.NoError(t, s.RequestBox(&second))
	snap := s.Snapshot()
	assert.False(t, snap.BoxRequested)
	assert.True(t, snap.QueuedBox)
	require.NotNil(t, snap.NextTyre)
	assert.Equal(t, first, *snap.NextTyre, "running stop keeps its tyre")

	res, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnTrack, hero(res).Status)
	assert.Equal(t, first, hero(res).Compound)
	snap = s.Snapshot()
	assert.True(t, snap.BoxRequested, "queued request becomes active on pit exit")
	assert.False(t, snap.QueuedBox)
	require.NotNil(t, snap.NextTyre)
	assert.Equal(t, second, *snap.NextTyre)

	res, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, res.BoxProcessed)
	res, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, hero(res).Compound)
	assert.Equal(t, 2, hero(res).PitStops)
}

func TestSessionCancelQueuedBox(t *testing.T) {
	s := newTestSession(t, 20)
	ctx := context.Background()
	require.NoError(t, s.RequestBox(nil))
	_, err := s.Tick(ctx)
	require.NoError(t, err)
	next := model.C5
	require.NoError(t, s.RequestBox(&next))
	s.CancelBox()
	assert.False(t, s.Snapshot().QueuedBox)

	_, err = s.Tick(ctx)
	require.NoError(t, err)
	res, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, res.BoxProcessed)
}

func TestSessionTickCancelledKeepsState(t *testing.T) {
	s := newTestSession(t, 10, WithUpdates(make(chan *model.RaceState)))
	require.NoError(t, s.RequestBox(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Tick(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	snap := s.Snapshot()
	assert.Equal(t, 1, snap.State.CurrentLap)
	assert.True(t, snap.BoxRequested)
	hero, err := snap.State.Driver("ver")
	require.NoError(t, err)
	assert.Equal(t, model.StatusOnTrack, hero.Status)
}

func TestSessionRequestBoxErrors(t *testing.T) {
	s := newTestSession(t, 2)
	bad := model.CompoundID("C9")
	assert.ErrorIs(t, s.RequestBox(&bad), model.ErrUnknownCompound)

	for range 2 {
		_, err := s.Tick(context.Background())
		require.NoError(t, err)
	}
	assert.ErrorIs(t, s.RequestBox(nil), advance.ErrRaceFinished)
	_, err := s.Tick(context.Background())
	assert.ErrorIs(t, err, advance.ErrRaceFinished)
}

func TestSessionCancelBox(t *testing.T) {
	s := newTestSession(t, 5)
	require.NoError(t, s.RequestBox(nil))
	s.CancelBox()
	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, res.BoxProcessed)
}

func TestSessionAlerts(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, 60)
	// C3 max life 28, start age 3
	var alerts []Alert
	for range 26 {
		res, err := s.Tick(ctx)
		require.NoError(t, err)
		alerts = append(alerts, res.Alert)
	}
	// age after tick i (0-based) is 4+i
	assert.Equal(t, AlertNone, alerts[20])   // age 24
	assert.Equal(t, AlertBoxNow, alerts[21]) // age 25
	assert.Equal(t, AlertCritical, alerts[24])
	assert.False(t, s.Snapshot().Halted)
}

func TestSessionStopOnFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, 60, WithStopOnFailure(true))
	var last *TickResult
	for {
		res, err := s.Tick(ctx)
		require.NoError(t, err)
		last = res
		if res.Halted {
			break
		}
	}
	assert.Equal(t, AlertCritical, last.Alert)
	_, err := s.Tick(ctx)
	assert.ErrorIs(t, err, ErrHalted)
}

func TestSessionUpdates(t *testing.T) {
	ch := make(chan *model.RaceState, 5)
	s := newTestSession(t, 3, WithUpdates(ch))
	for range 3 {
		_, err := s.Tick(context.Background())
		require.NoError(t, err)
	}
	require.Len(t, ch, 3)
	assert.Equal(t, 2, (<-ch).CurrentLap)
}

func TestSessionReport(t *testing.T) {
	s := newTestSession(t, 20, WithProjector(montecarlo.NewProjector(rnd.New(5))))
	rep, err := s.Report(context.Background(), 20)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.LastUpdatedLap)
	assert.Len(t, rep.Strategies, 3)
}

type tickingRunner struct {
	s     *Session
	inner *montecarlo.Projector
}

//nolint:whitespace // by design
func (r *tickingRunner) Run(
	ctx context.Context,
	state *model.RaceState,
	cfg *model.RaceConfig,
	heroID string,
	iterations int,
) (*montecarlo.Projection, error) {
	if _, err := r.s.Tick(ctx); err != nil {
		return nil, err
	}
	return r.inner.Run(ctx, state, cfg, heroID, iterations)
}

func TestSessionReportStale(t *testing.T) {
	s := newTestSession(t, 20)
	s.projector = &tickingRunner{s: s, inner: montecarlo.NewProjector(rnd.New(5))}
	_, err := s.Report(context.Background(), 10)
	assert.ErrorIs(t, err, ErrStale)
}

func TestClockRunsToFinish(t *testing.T) {
	s := newTestSession(t, 5)
	var laps []int
	c := NewClock(0, WithOnTick(func(_ context.Context, res *TickResult) {
		laps = append(laps, res.State.CurrentLap)
	}))
	require.NoError(t, c.Run(context.Background(), s))
	assert.Equal(t, []int{2, 3, 4, 5, 6}, laps)
	assert.True(t, s.Snapshot().Finished)
}

func TestClockInterval(t *testing.T) {
	s := newTestSession(t, 3)
	c := NewClock(time.Millisecond)
	require.NoError(t, c.Run(context.Background(), s))
	assert.True(t, s.Snapshot().Finished)
}

func TestClockCancelled(t *testing.T) {
	s := newTestSession(t, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewClock(time.Hour).Run(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSessionProject(t *testing.T) {
	s := newTestSession(t, 15, WithProjector(montecarlo.NewProjector(rnd.New(5))))
	proj, err := s.Project(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 30, proj.Iterations)
	assert.Equal(t, 1, proj.SourceLap)

	_, err = newTestSession(t, 15).Project(context.Background(), 30)
	assert.ErrorIs(t, err, strategy.ErrNoProjector)
}

func TestSessionStrategies(t *testing.T) {
	s := newTestSession(t, 30)
	got, err := s.Strategies()
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, o := range got {
		assert.Positive(t, o.EstimatedRaceTime, o.ID)
	}
}

func TestSessionDegradation(t *testing.T) {
	s := newTestSession(t, 30)
	for range 4 {
		_, err := s.Tick(context.Background())
		require.NoError(t, err)
	}
	options, points, err := s.Degradation()
	require.NoError(t, err)
	require.Len(t, options, 3)
	require.Len(t, points, 30-5+1)
	assert.Equal(t, 5, points[0].Lap)
	for _, o := range options {
		assert.Contains(t, points[0].Performance, o.ID)
	}
}

package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTyre(t *testing.T) {
	tyre, err := LookupTyre(C3)
	require.NoError(t, err)
	assert.Equal(t, 28, tyre.MaxLife)
	assert.InDelta(t, 0.09, tyre.DegPerLap, 1e-9)

	_, err = LookupTyre("C9")
	assert.True(t, errors.Is(err, ErrUnknownCompound))
	assert.Panics(t, func() { MustTyre("C9") })
}

func TestTyresOrdered(t *testing.T) {
	tyres := Tyres()
	require.Len(t, tyres, 8)
	assert.Equal(t, C0, tyres[0].ID)
	assert.Equal(t, Wet, tyres[len(tyres)-1].ID)
	for i := 1; i < 6; i++ {
		assert.Less(t, tyres[i].BasePaceDelta, tyres[i-1].BasePaceDelta,
			"dry compounds get faster from hard to soft")
	}
}

func TestRaceState_Clone(t *testing.T) {
	s := &RaceState{
		CurrentLap: 3,
		Drivers: []Driver{
			{ID: "a", DriverState: DriverState{LapTimes: []float64{90.1, 90.2}}},
		},
	}
	c := s.Clone()
	c.Drivers[0].LapTimes[0] = 1
	c.Drivers[0].GapToLeader = 5
	assert.InDelta(t, 90.1, s.Drivers[0].LapTimes[0], 1e-9)
	assert.Zero(t, s.Drivers[0].GapToLeader)
}

func TestRaceState_Driver(t *testing.T) {
	s := &RaceState{Drivers: []Driver{{ID: "a"}, {ID: "b"}}}
	d, err := s.Driver("b")
	require.NoError(t, err)
	assert.Equal(t, "b", d.ID)

	_, err = s.Driver("x")
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestRaceConfig_TrackBasePace(t *testing.T) {
	cfg := RaceConfig{TrackLengthKm: 5}
	assert.InDelta(t, 70.0, cfg.TrackBasePace(), 1e-9)
	cfg.BaseLapTime = 91
	assert.InDelta(t, 91.0, cfg.TrackBasePace(), 1e-9)
}

func TestLookupCircuit(t *testing.T) {
	c, err := LookupCircuit("monza")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Rome", c.Timezone)
	_, err = LookupCircuit("nowhere")
	assert.ErrorIs(t, err, ErrUnknownCircuit)
}

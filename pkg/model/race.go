package model

import (
	"fmt"
	"slices"
	"time"
)

// rain probability above this value counts as wet track
const RainThreshold = 0.3

// RaceConfig doesn't change during a race
type RaceConfig struct {
	CircuitID      string    `json:"circuitId"`
	TrackName      string    `json:"trackName"`
	TotalLaps      int       `json:"totalLaps"`
	PitLossSeconds float64   `json:"pitLossSeconds"` // time lost in pit lane
	TrackLengthKm  float64   `json:"trackLengthKm"`
	BaseLapTime    float64   `json:"baseLapTime"` // seconds, 0 derives it from track length
	Timezone       string    `json:"timezone"`
	StartTime      time.Time `json:"startTime"`
}

// TrackBasePace returns the base lap time of the circuit in seconds
func (c *RaceConfig) TrackBasePace() float64 {
	if c.BaseLapTime > 0 {
		return c.BaseLapTime
	}
	return c.TrackLengthKm * 14
}

// RaceState is the authoritative state of a race at the start of CurrentLap.
// A new value is produced for each lap, values are never shared between laps.
type RaceState struct {
	CurrentLap           int      `json:"currentLap"` // 1-based
	Drivers              []Driver `json:"drivers"`
	TrackTemp            float64  `json:"trackTemp"`
	AirTemp              float64  `json:"airTemp"`
	RainProbability      float64  `json:"rainProbability"`
	SafetyCarProbability float64  `json:"safetyCarProbability"`
	VirtualSafetyCar     bool     `json:"virtualSafetyCar"`
	SafetyCar            bool     `json:"safetyCar"`
}

// Clone returns a deep copy of s
func (s *RaceState) Clone() *RaceState {
	ret := *s
	ret.Drivers = make([]Driver, len(s.Drivers))
	for i := range s.Drivers {
		ret.Drivers[i] = s.Drivers[i].Clone()
	}
	return &ret
}

// Driver returns the driver with id
func (s *RaceState) Driver(id string) (*Driver, error) {
	idx := slices.IndexFunc(s.Drivers, func(d Driver) bool { return d.ID == id })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %q", ErrDriverNotFound, id)
	}
	return &s.Drivers[idx], nil
}

// Finished reports whether the race is over according to cfg
func (s *RaceState) Finished(cfg *RaceConfig) bool {
	return s.CurrentLap > cfg.TotalLaps
}

func (s *RaceState) IsRaining() bool {
	return s.RainProbability > RainThreshold
}

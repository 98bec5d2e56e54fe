package model

import (
	"errors"
	"slices"
)

type DriverStatus string

const (
	StatusOnTrack DriverStatus = "OnTrack"
	StatusPit     DriverStatus = "Pit"
	StatusDNF     DriverStatus = "DNF"
)

var ErrDriverNotFound = errors.New("driver not found")

// Skill holds the attributes of a driver which don't change during a race
type Skill struct {
	BasePace          float64 `json:"basePace" yaml:"basePace"`                   // lower is faster
	Consistency       float64 `json:"consistency" yaml:"consistency"`             // 0..1
	TyreManagement    float64 `json:"tyreManagement" yaml:"tyreManagement"`       // 1 = slowest degradation
	Aggression        float64 `json:"aggression" yaml:"aggression"`               // 0..1
	WetWeatherAbility float64 `json:"wetWeatherAbility" yaml:"wetWeatherAbility"` // 1 = least time lost in rain
}

// DriverState is the part of a driver that is mutated every lap
type DriverState struct {
	Position    int          `json:"position"`
	GapToLeader float64      `json:"gapToLeader"` // seconds
	Compound    CompoundID   `json:"compound"`
	TyreAge     int          `json:"tyreAge"` // laps
	LapTimes    []float64    `json:"lapTimes"`
	PitStops    int          `json:"pitStops"`
	Status      DriverStatus `json:"status"`
}

type Driver struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Team   string `json:"team" yaml:"team"`
	Number int    `json:"number" yaml:"number"`
	Color  string `json:"color" yaml:"color"`
	Skill  `yaml:",inline"`
	DriverState `yaml:"-"`
}

// Clone returns a deep copy of d
func (d Driver) Clone() Driver {
	d.LapTimes = slices.Clone(d.LapTimes)
	return d
}

// LastLapTime returns the most recent lap time or 0 if no lap was completed
func (d *Driver) LastLapTime() float64 {
	if len(d.LapTimes) == 0 {
		return 0
	}
	return d.LapTimes[len(d.LapTimes)-1]
}

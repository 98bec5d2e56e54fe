// Package roster provides the immutable driver attributes a race starts with.
package roster

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/pitwall-go/pkg/model"
)

var ErrInvalidRoster = errors.New("invalid roster")

//go:embed roster.yaml
var defaultRoster []byte

type Source interface {
	Drivers(ctx context.Context) ([]model.Driver, error)
}

type document struct {
	Drivers []model.Driver `yaml:"drivers"`
}

// Static is a fixed roster
type Static []model.Driver

func (s Static) Drivers(context.Context) ([]model.Driver, error) {
	return cloneDrivers(s), nil
}

// Default returns the builtin roster
func Default() Static {
	drivers, err := Parse(defaultRoster)
	if err != nil {
		panic(fmt.Sprintf("builtin roster: %v", err))
	}
	return drivers
}

// Parse reads a YAML roster and validates it
func Parse(data []byte) ([]model.Driver, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoster, err)
	}
	if err := Validate(doc.Drivers); err != nil {
		return nil, err
	}
	for i := range doc.Drivers {
		doc.Drivers[i].DriverState = model.DriverState{Status: model.StatusOnTrack}
	}
	return doc.Drivers, nil
}

// Validate checks for unique ids and attribute ranges
func Validate(drivers []model.Driver) error {
	if len(drivers) == 0 {
		return fmt.Errorf("%w: no drivers", ErrInvalidRoster)
	}
	seen := make(map[string]bool, len(drivers))
	for i := range drivers {
		d := &drivers[i]
		if d.ID == "" {
			return fmt.Errorf("%w: driver %d has no id", ErrInvalidRoster, i)
		}
		if seen[d.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidRoster, d.ID)
		}
		seen[d.ID] = true
		for name, v := range map[string]float64{
			"consistency":       d.Consistency,
			"tyreManagement":    d.TyreManagement,
			"aggression":        d.Aggression,
			"wetWeatherAbility": d.WetWeatherAbility,
		} {
			if v < 0 || v > 1 {
				return fmt.Errorf("%w: driver %s: %s %v not in [0,1]", ErrInvalidRoster, d.ID, name, v)
			}
		}
	}
	return nil
}

// Find returns the driver with id
func Find(drivers []model.Driver, id string) (model.Driver, error) {
	idx := slices.IndexFunc(drivers, func(d model.Driver) bool { return d.ID == id })
	if idx < 0 {
		return model.Driver{}, fmt.Errorf("%w: %q", model.ErrDriverNotFound, id)
	}
	return drivers[idx].Clone(), nil
}

func cloneDrivers(in []model.Driver) []model.Driver {
	ret := make([]model.Driver, len(in))
	for i := range in {
		ret[i] = in[i].Clone()
	}
	return ret
}

// Package weather resolves the ambient conditions of a race.
// The source of the data is external; a failing or missing oracle
// always degrades to fallback values.
package weather

import (
	"context"
	"time"

	"github.com/mpapenbr/pitwall-go/log"
	"github.com/mpapenbr/pitwall-go/pkg/model"
)

type Conditions struct {
	AirTemp         float64 `json:"airTemp"`   // °C
	TrackTemp       float64 `json:"trackTemp"` // °C
	RainProbability float64 `json:"rainProb"`  // 0..1
}

// Fallback are average race conditions used whenever the oracle fails
var Fallback = Conditions{AirTemp: 22, TrackTemp: 34, RainProbability: 0.1}

type Oracle interface {
	Conditions(ctx context.Context, circuit model.Circuit, at time.Time) (Conditions, error)
}

// TrackTemp estimates the asphalt temperature from air temperature and rain probability.
// Dry tracks run well above air temperature, wet tracks close to it.
func TrackTemp(airTemp, rainProb float64) float64 {
	switch {
	case rainProb >= 0.5:
		return airTemp + 1
	case rainProb >= 0.2:
		return airTemp + 6
	default:
		return airTemp + 12
	}
}

// Resolve asks oracle for the conditions and returns fallback if there is
// no oracle or it fails. It never returns an error.
//
//nolint:whitespace // by design
func Resolve(
	ctx context.Context,
	oracle Oracle,
	circuit model.Circuit,
	at time.Time,
	fallback Conditions,
) Conditions {
	if oracle == nil {
		return fallback
	}
	c, err := oracle.Conditions(ctx, circuit, at)
	if err != nil {
		log.GetFromContext(ctx).Warn("weather oracle unavailable, using fallback",
			log.String("circuit", circuit.ID),
			log.ErrorField(err))
		return fallback
	}
	c.RainProbability = min(1, max(0, c.RainProbability))
	return c
}

// Static always returns the same conditions
type Static Conditions

func (s Static) Conditions(context.Context, model.Circuit, time.Time) (Conditions, error) {
	return Conditions(s), nil
}

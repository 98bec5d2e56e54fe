// Package laptime contains the stochastic lap time model.
//
// A lap time is the sum of independent contributions. Each contribution
// is exposed as its own function so it can be verified in isolation.
package laptime

import (
	"math"

	"github.com/mpapenbr/pitwall-go/pkg/model"
	"github.com/mpapenbr/pitwall-go/pkg/sim/rnd"
)

const (
	cliffThreshold   = 0.7  // share of max life where degradation becomes super-linear
	cliffExponent    = 1.5
	cliffScale       = 0.05
	fuelPerKg        = 0.035 // seconds per kg of fuel
	varianceScale    = 0.25
	pushProbability  = 0.1
	pushBonus        = -0.3
	pushAggression   = -0.1
	cliffPerLap      = 0.8 // seconds per lap past max life
	wetMaxPenalty    = 1.5
	managementOffset = 2.1
)

// Input collects everything needed to compute one lap
type Input struct {
	Skill         model.Skill
	Tyre          model.TyreCompound
	TyreAge       int
	FuelKg        float64
	TrackBasePace float64
	Raining       bool
}

// LapTime computes the lap time in seconds.
// It draws one gaussian (driver variance) followed by one uniform (push lap) from src.
func LapTime(in *Input, src rnd.Source) float64 {
	return Deterministic(in) +
		DriverVariance(in.Skill.Consistency, src.NormFloat64()) +
		PushBonus(in.Skill.Aggression, src.Float64())
}

// Deterministic returns the lap time without the random contributions
func Deterministic(in *Input) float64 {
	return in.TrackBasePace +
		in.Skill.BasePace +
		in.Tyre.BasePaceDelta +
		Degradation(in.Tyre, in.TyreAge, in.Skill.TyreManagement) +
		FuelPenalty(in.FuelKg) +
		CliffPenalty(in.Tyre, in.TyreAge) +
		WetPenalty(in.Raining, in.Skill.WetWeatherAbility)
}

// DegradationMultiplier is 1.0 until the tyre reached 70% of its max life.
// Beyond that the degradation grows super-linear.
func DegradationMultiplier(tyre model.TyreCompound, age int) float64 {
	threshold := float64(tyre.MaxLife) * cliffThreshold
	if float64(age) <= threshold {
		return 1.0
	}
	return 1.0 + math.Pow(float64(age)-threshold, cliffExponent)*cliffScale
}

// Degradation returns the time lost due to tyre wear
func Degradation(tyre model.TyreCompound, age int, tyreManagement float64) float64 {
	if age <= 0 {
		return 0
	}
	return float64(age) * tyre.DegPerLap * (managementOffset - tyreManagement) *
		DegradationMultiplier(tyre, age)
}

// FuelPenalty returns the time lost by carrying fuelKg. Negative loads count as empty.
func FuelPenalty(fuelKg float64) float64 {
	return math.Max(fuelKg, 0) * fuelPerKg
}

// DriverVariance scales a standard normal draw z by the driver's inconsistency
func DriverVariance(consistency, z float64) float64 {
	return z * varianceScale * (1.1 - consistency)
}

// PushBonus returns the (negative) push lap gain if u falls into the push band.
func PushBonus(aggression, u float64) float64 {
	if u < 1-pushProbability {
		return 0
	}
	return pushBonus + (aggression-0.5)*pushAggression
}

// CliffPenalty is the extra time lost per lap beyond the max life of the tyre
func CliffPenalty(tyre model.TyreCompound, age int) float64 {
	if age <= tyre.MaxLife {
		return 0
	}
	return float64(age-tyre.MaxLife) * cliffPerLap
}

func WetPenalty(raining bool, wetWeatherAbility float64) float64 {
	if !raining {
		return 0
	}
	return (1 - wetWeatherAbility) * wetMaxPenalty
}

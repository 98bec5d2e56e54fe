// Package rnd provides the random source used by the simulation.
// Every random draw of the simulation goes through a Source so that
// a fixed seed reproduces a complete race.
package rnd

import (
	"math/rand/v2"
)

// Source is satisfied by *rand.Rand
type Source interface {
	Float64() float64
	NormFloat64() float64
	Uint64() uint64
}

// New returns a PCG based source for seed
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// NewFromEntropy returns a source seeded from the runtime random generator.
// Used when no seed was configured.
func NewFromEntropy() *rand.Rand {
	return New(rand.Uint64())
}

// Split derives a new source from src. Sources split from the same root
// produce unrelated streams, a fixed root seed still reproduces all of them.
func Split(src Source) *rand.Rand {
	return rand.New(rand.NewPCG(src.Uint64(), src.Uint64()))
}

// Normal draws from N(mean, sd)
func Normal(src Source, mean, sd float64) float64 {
	return mean + src.NormFloat64()*sd
}

// Uniform draws from [lo,hi)
func Uniform(src Source, lo, hi float64) float64 {
	return lo + src.Float64()*(hi-lo)
}

// Fixed is a Source returning the same values over and over.
// Useful for tests which need to pin every draw.
type Fixed struct {
	U float64 // returned by Float64
	N float64 // returned by NormFloat64
}

func (f Fixed) Float64() float64     { return f.U }
func (f Fixed) NormFloat64() float64 { return f.N }
func (f Fixed) Uint64() uint64       { return uint64(f.U * (1 << 53)) }

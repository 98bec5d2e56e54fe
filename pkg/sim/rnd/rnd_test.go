package rnd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsReproducible(t *testing.T) {
	a := New(42)
	b := New(42)
	for range 100 {
		assert.Equal(t, a.Float64(), b.Float64())
		assert.Equal(t, a.NormFloat64(), b.NormFloat64())
	}
}

func TestSplit(t *testing.T) {
	root := New(42)
	a, b := Split(root), Split(root)
	plain := New(42)
	va, vb, vp := a.Uint64(), b.Uint64(), plain.Uint64()
	assert.NotEqual(t, va, vb)
	assert.NotEqual(t, va, vp)
	assert.NotEqual(t, vb, vp)

	again := New(42)
	a2, b2 := Split(again), Split(again)
	assert.Equal(t, va, a2.Uint64())
	assert.Equal(t, vb, b2.Uint64())
}

func TestUniform(t *testing.T) {
	src := New(1)
	for range 1000 {
		v := Uniform(src, -0.15, 0.15)
		assert.GreaterOrEqual(t, v, -0.15)
		assert.Less(t, v, 0.15)
	}
}

func TestFixed(t *testing.T) {
	f := Fixed{U: 0.5, N: -1}
	assert.InDelta(t, 0.5, Uniform(f, 0, 1), 1e-9)
	assert.InDelta(t, 1.8, Normal(f, 2, 0.2), 1e-9)
}

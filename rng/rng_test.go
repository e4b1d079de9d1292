package rng

import (
	"testing"

	"github.com/matryer/is"
)

func TestSameSeedSameStream(t *testing.T) {
	is := is.New(t)
	a := New(42)
	b := New(42)
	for i := 0; i < 100; i++ {
		is.Equal(a.IntN(1000), b.IntN(1000))
		is.Equal(a.Float64(), b.Float64())
	}
}

func TestDifferentSeeds(t *testing.T) {
	is := is.New(t)
	a := New(1)
	b := New(2)
	same := 0
	for i := 0; i < 64; i++ {
		if a.Uint64() == b.Uint64() {
			same++
		}
	}
	is.Equal(same, 0)
}

func TestDerive(t *testing.T) {
	is := is.New(t)
	base := New(7)
	w0 := Derive(7, 0)
	w0again := Derive(7, 0)
	w1 := Derive(7, 1)
	x, y, z, u := base.Uint64(), w0.Uint64(), w0again.Uint64(), w1.Uint64()
	is.Equal(y, z)
	is.True(x != y)
	is.True(y != u)
}

func TestFloatRange(t *testing.T) {
	is := is.New(t)
	r := New(3)
	for i := 0; i < 1000; i++ {
		f := r.Float64()
		is.True(f >= 0 && f < 1)
	}
}

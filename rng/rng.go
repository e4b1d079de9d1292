// Package rng builds the single random generator that is threaded through
// solver and agent configuration. Every generator is a math/rand/v2 front
// end over a ChaCha stream, so two generators built from the same seed
// produce identical draws.
package rng

import (
	"encoding/binary"
	"math/rand/v2"

	"lukechampine.com/frand"
)

const (
	bufSize     = 1024
	chachaRound = 12
)

type chachaSource struct {
	r   *frand.RNG
	buf [8]byte
}

func (c *chachaSource) Uint64() uint64 {
	c.r.Read(c.buf[:])
	return binary.LittleEndian.Uint64(c.buf[:])
}

// New returns a generator seeded with seed. A zero seed draws a fresh seed
// from the operating system.
func New(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = frand.Uint64n(1<<63-1) + 1
	}
	return rand.New(&chachaSource{r: frand.NewCustom(seedBytes(seed), bufSize, chachaRound)})
}

// Derive returns a generator for worker n whose stream is independent of
// the generator built from seed itself.
func Derive(seed uint64, n int) *rand.Rand {
	if seed == 0 {
		return New(0)
	}
	b := seedBytes(seed)
	binary.LittleEndian.PutUint64(b[8:], uint64(n)+1)
	return rand.New(&chachaSource{r: frand.NewCustom(b, bufSize, chachaRound)})
}

func seedBytes(seed uint64) []byte {
	b := make([]byte, 32)
	binary.LittleEndian.PutUint64(b, seed)
	return b
}

// Package random is the single process-wide random stream every usage model and data generator
// draws from. There is no per-model isolation: a run is only reproducible when Seed
// is called exactly once before any model is constructed. Without Seed the stream starts from an
// unpredictable state.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// seedStream is xor'ed into the seed to derive the PCG increment.
const seedStream = 0x9e3779b97f4a7c15

var (
	mu     sync.Mutex
	pcg    = rand.NewPCG(unpredictableSeed(), unpredictableSeed())
	shared = rand.New(lockedSource{})
)

func unpredictableSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(err)
	}
	return binary.LittleEndian.Uint64(b[:])
}

// lockedSource serializes access to the shared PCG so the stream can be handed to libraries
// expecting a rand.Source.
type lockedSource struct{}

func (lockedSource) Uint64() uint64 {
	mu.Lock()
	defer mu.Unlock()
	return pcg.Uint64()
}

// Seed resets the shared stream. Call it once, before constructing any model.
func Seed(seed uint64) {
	mu.Lock()
	defer mu.Unlock()
	pcg.Seed(seed, seed^seedStream)
}

// Source exposes the shared stream, for example to gonum distributions.
func Source() rand.Source {
	return lockedSource{}
}

// IntN returns a uniform int in [0,n). It panics if n <= 0.
func IntN(n int) int {
	return shared.IntN(n)
}

// Int64Range returns a uniform int64 in the closed interval [lo,hi]. The bounds may be given in
// either order.
func Int64Range(lo, hi int64) int64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	return lo + shared.Int64N(hi-lo+1)
}

// Float64 returns a uniform float64 in [0.0,1.0).
func Float64() float64 {
	return shared.Float64()
}

// Shuffle pseudo-randomizes the order of n elements using swap.
func Shuffle(n int, swap func(i, j int)) {
	shared.Shuffle(n, swap)
}

// Read fills p with random bytes. It always returns len(p), nil.
func Read(p []byte) (int, error) {
	for i := 0; i < len(p); i += 8 {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], shared.Uint64())
		copy(p[i:], b[:])
	}
	return len(p), nil
}

// Lowercase returns n random letters in a-z.
func Lowercase(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + shared.IntN(26))
	}
	return string(b)
}

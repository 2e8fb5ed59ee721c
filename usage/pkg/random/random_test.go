package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func draw() []int64 {
	out := make([]int64, 0, 32)
	for range 16 {
		out = append(out, Int64Range(1, 1000))
		out = append(out, int64(IntN(7)))
	}
	return out
}

func TestSeedIsReproducible(t *testing.T) {
	Seed(42)
	first := draw()
	Seed(42)
	assert.Equal(t, first, draw())
	Seed(43)
	assert.NotEqual(t, first, draw())
}

func TestInt64Range(t *testing.T) {
	Seed(1)
	seen := map[int64]bool{}
	for range 1000 {
		v := Int64Range(5, 3)
		assert.GreaterOrEqual(t, v, int64(3))
		assert.LessOrEqual(t, v, int64(5))
		seen[v] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, int64(9), Int64Range(9, 9))
}

func TestReadAndLowercase(t *testing.T) {
	Seed(7)
	p := make([]byte, 13)
	n, err := Read(p)
	assert.NoError(t, err)
	assert.Equal(t, 13, n)

	name := Lowercase(8)
	assert.Len(t, name, 8)
	for _, c := range name {
		assert.True(t, c >= 'a' && c <= 'z')
	}
}

package datagen

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fsstrata/usage/pkg/random"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
)

func read(t *testing.T, g Generator, n int) string {
	t.Helper()
	buf := make([]byte, n)
	_, err := io.ReadFull(g, buf)
	require.NoError(t, err)
	return string(buf)
}

func TestParseRoundTrip(t *testing.T) {
	for _, in := range []string{
		"random()",
		"static(ABC)",
		"static(a,b)",
		"pattern(512,%f_%c_%s,O)",
		"pattern(20,%c,with,comma,x)",
		"pattern(11,%S_%c|,IG)",
	} {
		spec, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, in, spec.String())
	}
	assert.Equal(t, "random()", Spec{}.String())
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{
		"random",
		"random(x)",
		"static()",
		"unknown()",
		"pattern(0,%c,x)",
		"pattern(x,%c,x)",
		"pattern(10,%c)",
		"pattern(10,%x,a)",
		"pattern(10,%S%S,a)",
		"pattern(10,%S,)",
		"pattern(10,%s,)",
		"pattern(10,abc%,a)",
	} {
		_, err := Parse(in)
		assert.Error(t, err, in)
	}
	assert.Error(t, StaticSpec("a b").Validate())
	assert.Error(t, PatternSpec(10, "%c", "a b").Validate())
}

func TestStaticGeneratorCarriesCursor(t *testing.T) {
	g, err := StaticSpec("ABC").New("")
	require.NoError(t, err)
	assert.Equal(t, "AB", read(t, g, 2))
	assert.Equal(t, "CABCA", read(t, g, 5))
	assert.Equal(t, "BC", read(t, g, 2))
}

func TestPatternRepeatsHeader(t *testing.T) {
	g, err := PatternSpec(20, "%f_%c_%s", "O").New("/dir/test.txt")
	require.NoError(t, err)
	assert.Equal(t, "test.txt_0_Otest.txt", read(t, g, 20))
	assert.Equal(t, "test.txt_1_Otest.txt", read(t, g, 20))
	// Reads do not need to align with chunks.
	assert.Equal(t, "test.txt_2", read(t, g, 10))
	assert.Equal(t, "_Otest.txttest.txt_3", read(t, g, 20))
}

func TestPatternFiller(t *testing.T) {
	g, err := PatternSpec(16, "%f_%c_%S", "ab").New("/test.txt")
	require.NoError(t, err)
	assert.Equal(t, "test.txt_0_ababatest.txt_1_ababa", read(t, g, 32))

	g, err = PatternSpec(11, "%S_%c|", "IG").New("")
	require.NoError(t, err)
	assert.Equal(t, "IGIGIGIG_0|IGIGIGIG_1|", read(t, g, 22))

	// Header longer than the width: the static string is inserted once and the chunk truncated.
	g, err = PatternSpec(4, "%F%S", "xy").New("/a/b")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/a/b", read(t, g, 8))
}

func TestPatternFullPathAndLiteralPercent(t *testing.T) {
	g, err := PatternSpec(9, "%F:%%", "s").New("/a/b")
	require.NoError(t, err)
	assert.Equal(t, "/a/b:%/a/", read(t, g, 9))
}

func TestPatternRequiresFilename(t *testing.T) {
	spec := PatternSpec(10, "%f", "s")
	assert.True(t, spec.NeedsFilename())
	_, err := spec.New("")
	assert.ErrorIs(t, err, simerr.ErrSimulation)
	assert.False(t, PatternSpec(10, "%c", "s").NeedsFilename())
}

func TestRandomGenerator(t *testing.T) {
	random.Seed(3)
	g, err := RandomSpec().New("")
	require.NoError(t, err)
	first := read(t, g, 64)
	random.Seed(3)
	g, err = RandomSpec().New("")
	require.NoError(t, err)
	assert.Equal(t, first, read(t, g, 64))
	assert.NotEqual(t, strings.Repeat("\x00", 64), first)
}

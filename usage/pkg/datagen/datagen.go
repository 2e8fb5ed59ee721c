// Package datagen provides the byte content strategies used to fill written and extended files.
//
// A Spec is the immutable, serializable description of a generator as it appears in playbooks
// (random(), static(<string>) or pattern(<width>,<format>,<static>)). Calling New on a Spec
// returns a fresh Generator whose state (cursor and chunk counter) lives for exactly one
// operation.
package datagen

import (
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/thinkparq/fsstrata/usage/pkg/random"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
)

// Generator produces file content. Read always fills p completely.
type Generator interface {
	io.Reader
}

type Kind string

const (
	Random  Kind = "random"
	Static  Kind = "static"
	Pattern Kind = "pattern"
)

// Spec describes a generator. The zero value is Random.
type Spec struct {
	Kind Kind
	// Width is the size of every pattern chunk.
	Width int
	// Format is the pattern chunk header, see Specifier.
	Format string
	// Static is the string cycled by static generators and used by %s and %S in patterns.
	Static string
}

// RandomSpec returns the default generator.
func RandomSpec() Spec {
	return Spec{Kind: Random}
}

func StaticSpec(s string) Spec {
	return Spec{Kind: Static, Static: s}
}

func PatternSpec(width int, format string, static string) Spec {
	return Spec{Kind: Pattern, Width: width, Format: format, Static: static}
}

// String returns the playbook representation that Parse reads back.
func (s Spec) String() string {
	switch s.Kind {
	case Static:
		return fmt.Sprintf("static(%s)", s.Static)
	case Pattern:
		return fmt.Sprintf("pattern(%d,%s,%s)", s.Width, s.Format, s.Static)
	default:
		return "random()"
	}
}

// NeedsFilename is true for patterns that embed the target file name.
func (s Spec) NeedsFilename() bool {
	if s.Kind != Pattern {
		return false
	}
	segments, err := parseFormat(s.Format)
	if err != nil {
		return false
	}
	for _, seg := range segments {
		if seg.spec == specFilename || seg.spec == specFullPath {
			return true
		}
	}
	return false
}

// Validate checks the Spec can be instantiated and survives a playbook round trip.
func (s Spec) Validate() error {
	if strings.ContainsFunc(s.Format+s.Static, unicode.IsSpace) {
		return fmt.Errorf("data generator arguments must not contain whitespace: %s", s)
	}
	switch s.Kind {
	case Random, "":
		return nil
	case Static:
		if s.Static == "" {
			return fmt.Errorf("static data generator requires a non-empty string")
		}
		if strings.Contains(s.Static, ")") {
			return fmt.Errorf("static data generator string must not contain ')': %q", s.Static)
		}
		return nil
	case Pattern:
		if s.Width < 1 {
			return fmt.Errorf("pattern width must be at least 1 (got %d)", s.Width)
		}
		if strings.Contains(s.Static, ",") || strings.Contains(s.Static, ")") {
			return fmt.Errorf("pattern static string must not contain ',' or ')': %q", s.Static)
		}
		segments, err := parseFormat(s.Format)
		if err != nil {
			return err
		}
		fillers := 0
		for _, seg := range segments {
			if seg.spec == specFiller {
				fillers++
			}
		}
		if fillers > 1 {
			return fmt.Errorf("pattern format %q may contain %%S at most once", s.Format)
		}
		if fillers == 1 && s.Static == "" {
			return fmt.Errorf("pattern format %q uses %%S but the static string is empty", s.Format)
		}
		if fillers == 0 && !rendersContent(segments, s.Static) {
			return fmt.Errorf("pattern format %q renders an empty chunk header", s.Format)
		}
		return nil
	}
	return fmt.Errorf("unsupported data generator kind %q", s.Kind)
}

// Parse reads the playbook representation of a generator.
func Parse(input string) (Spec, error) {
	name, args, ok := strings.Cut(input, "(")
	if !ok || !strings.HasSuffix(args, ")") {
		return Spec{}, fmt.Errorf("unsupported data generator definition %q", input)
	}
	args = strings.TrimSuffix(args, ")")

	var spec Spec
	switch Kind(name) {
	case Random:
		if args != "" {
			return Spec{}, fmt.Errorf("random() takes no arguments: %q", input)
		}
		spec = RandomSpec()
	case Static:
		spec = StaticSpec(args)
	case Pattern:
		// The format may contain commas, the width and static string may not.
		first := strings.Index(args, ",")
		last := strings.LastIndex(args, ",")
		if first < 0 || first == last {
			return Spec{}, fmt.Errorf("pattern requires three arguments pattern(<width>,<format>,<static>): %q", input)
		}
		width, err := strconv.Atoi(args[:first])
		if err != nil {
			return Spec{}, fmt.Errorf("invalid pattern width %q: %w", args[:first], err)
		}
		spec = PatternSpec(width, args[first+1:last], args[last+1:])
	default:
		return Spec{}, fmt.Errorf("unsupported data generator definition %q", input)
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// New returns a fresh generator for the file at filePath. The path is only used by patterns that
// reference the file name.
func (s Spec) New(filePath string) (Generator, error) {
	if err := s.Validate(); err != nil {
		return nil, simerr.Simulation("%s", err)
	}
	switch s.Kind {
	case Static:
		return &staticGenerator{data: []byte(s.Static)}, nil
	case Pattern:
		segments, _ := parseFormat(s.Format)
		if s.NeedsFilename() && filePath == "" {
			return nil, simerr.Simulation("pattern format %q references the file name but no path was given", s.Format)
		}
		return &patternGenerator{
			width:    s.Width,
			segments: segments,
			static:   s.Static,
			fullPath: filePath,
			baseName: path.Base(filePath),
		}, nil
	default:
		return randomGenerator{}, nil
	}
}

type randomGenerator struct{}

func (randomGenerator) Read(p []byte) (int, error) {
	return random.Read(p)
}

// staticGenerator cycles its data indefinitely. The cursor carries over between reads.
type staticGenerator struct {
	data   []byte
	cursor int
}

func (g *staticGenerator) Read(p []byte) (int, error) {
	for n := 0; n < len(p); {
		c := copy(p[n:], g.data[g.cursor:])
		n += c
		g.cursor = (g.cursor + c) % len(g.data)
	}
	return len(p), nil
}

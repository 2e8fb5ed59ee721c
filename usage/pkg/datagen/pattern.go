package datagen

import (
	"bytes"
	"fmt"
	"strconv"
)

// Specifier is a placeholder in a pattern format.
//
//	%c  chunk counter, starting at 0
//	%f  base name of the target file
//	%F  full path of the target file
//	%s  the static string
//	%S  filler cycling the static string until the chunk is full (at most once)
//	%%  a literal percent sign
type Specifier byte

const (
	specLiteral  Specifier = 0
	specCounter  Specifier = 'c'
	specFilename Specifier = 'f'
	specFullPath Specifier = 'F'
	specStatic   Specifier = 's'
	specFiller   Specifier = 'S'
)

type segment struct {
	spec    Specifier
	literal string
}

func parseFormat(format string) ([]segment, error) {
	var segments []segment
	var lit []byte
	flush := func() {
		if len(lit) > 0 {
			segments = append(segments, segment{spec: specLiteral, literal: string(lit)})
			lit = nil
		}
	}
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			lit = append(lit, format[i])
			continue
		}
		if i+1 == len(format) {
			return nil, fmt.Errorf("pattern format %q ends with a lone '%%'", format)
		}
		i++
		switch Specifier(format[i]) {
		case '%':
			lit = append(lit, '%')
		case specCounter, specFilename, specFullPath, specStatic, specFiller:
			flush()
			segments = append(segments, segment{spec: Specifier(format[i])})
		default:
			return nil, fmt.Errorf("invalid format specifier %%%c in pattern format %q", format[i], format)
		}
	}
	flush()
	return segments, nil
}

// rendersContent reports whether a format without filler produces at least one byte per header.
func rendersContent(segments []segment, static string) bool {
	for _, seg := range segments {
		if seg.spec != specStatic || static != "" {
			return true
		}
	}
	return false
}

// patternGenerator emits chunks of exactly width bytes. Each chunk starts with the interpolated
// format so the originating file and chunk order can be recovered from raw bytes.
type patternGenerator struct {
	width    int
	segments []segment
	static   string
	fullPath string
	baseName string

	counter int
	chunk   []byte
	cursor  int
}

func (g *patternGenerator) Read(p []byte) (int, error) {
	for n := 0; n < len(p); {
		if g.cursor >= len(g.chunk) {
			g.chunk = g.nextChunk()
			g.cursor = 0
		}
		c := copy(p[n:], g.chunk[g.cursor:])
		n += c
		g.cursor += c
	}
	return len(p), nil
}

// interpolate renders the format for the current counter. The filler is returned separately as
// the byte offset where it belongs, or -1 when the format has none.
func (g *patternGenerator) interpolate() ([]byte, int) {
	var buf bytes.Buffer
	fillerAt := -1
	for _, seg := range g.segments {
		switch seg.spec {
		case specLiteral:
			buf.WriteString(seg.literal)
		case specCounter:
			buf.WriteString(strconv.Itoa(g.counter))
		case specFilename:
			buf.WriteString(g.baseName)
		case specFullPath:
			buf.WriteString(g.fullPath)
		case specStatic:
			buf.WriteString(g.static)
		case specFiller:
			fillerAt = buf.Len()
		}
	}
	return buf.Bytes(), fillerAt
}

func (g *patternGenerator) nextChunk() []byte {
	header, fillerAt := g.interpolate()
	var chunk []byte
	if fillerAt >= 0 {
		fillerLen := max(g.width-len(header), len(g.static))
		filler := make([]byte, fillerLen)
		for i := range filler {
			filler[i] = g.static[i%len(g.static)]
		}
		chunk = make([]byte, 0, len(header)+fillerLen)
		chunk = append(chunk, header[:fillerAt]...)
		chunk = append(chunk, filler...)
		chunk = append(chunk, header[fillerAt:]...)
	} else {
		chunk = make([]byte, 0, g.width+len(header))
		for len(chunk) < g.width {
			chunk = append(chunk, header...)
			header, _ = g.interpolate()
		}
	}
	g.counter++
	return chunk[:g.width]
}

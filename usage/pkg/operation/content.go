package operation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
	"github.com/thinkparq/fsstrata/usage/pkg/datagen"
	"go.uber.org/zap"
)

const (
	// MaxChunkSize is the largest single write call issued for unchunked content.
	MaxChunkSize int64 = 1<<28 - 1
	// DefaultChunkSize is used when chunked writes do not specify a chunk size.
	DefaultChunkSize int64 = 512
)

var (
	errIsDirectory = errors.New("is a directory")
	errShrinkSize  = errors.New("shrink size must be smaller than the file size")
	errSize        = errors.New("size must be greater than 0")
	errChunkSize   = errors.New("chunk size must be greater than 0")
)

// content holds the fields shared by Write and Extend.
type content struct {
	path      string
	size      int64
	chunked   bool
	chunkSize int64
	generator datagen.Spec
}

// ContentOption configures how Write and Extend produce their bytes.
type ContentOption func(*content)

// Chunked writes the content in successive calls of chunkSize bytes.
func Chunked(chunkSize int64) ContentOption {
	return func(c *content) {
		c.chunked = true
		c.chunkSize = chunkSize
	}
}

// WithChunkSize records a chunk size without enabling chunked writes.
func WithChunkSize(chunkSize int64) ContentOption {
	return func(c *content) {
		c.chunkSize = chunkSize
	}
}

// WithGenerator selects the content generator, random by default.
func WithGenerator(spec datagen.Spec) ContentOption {
	return func(c *content) {
		c.generator = spec
	}
}

func newContent(p string, size int64, opts ...ContentOption) (content, error) {
	n, err := NormalizePath(p)
	if err != nil {
		return content{}, err
	}
	c := content{path: n, size: size, chunkSize: DefaultChunkSize, generator: datagen.RandomSpec()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.size <= 0 {
		return content{}, fmt.Errorf("%w (got %d)", errSize, c.size)
	}
	if c.chunkSize <= 0 {
		return content{}, fmt.Errorf("%w (got %d)", errChunkSize, c.chunkSize)
	}
	if err := c.generator.Validate(); err != nil {
		return content{}, err
	}
	return c, nil
}

func (c content) Target() string           { return c.path }
func (c content) Size() int64              { return c.size }
func (c content) Generator() datagen.Spec  { return c.generator }
func (c content) ChunkSize() (int64, bool) { return c.chunkSize, c.chunked }

func (c content) dict(cmd Command, sizeKey string) map[string]any {
	return map[string]any{
		"command":        string(cmd),
		"path":           c.path,
		sizeKey:          c.size,
		"chunked":        c.chunked,
		"chunk_size":     c.chunkSize,
		"data_generator": c.generator.String(),
	}
}

func (c content) line(cmd Command, sizeKey string) string {
	return fmt.Sprintf("%s %s %s=%d chunked=%t chunk_size=%d data_generator=%s",
		cmd, c.path, sizeKey, c.size, c.chunked, c.chunkSize, c.generator)
}

// write fills f with c.size bytes from a fresh generator.
func (c content) write(env *Env, f io.Writer) (int, error) {
	gen, err := c.generator.New(c.path)
	if err != nil {
		return 0, err
	}
	chunk := env.maxChunkSize()
	if c.chunked {
		chunk = c.chunkSize
	}
	return writeChunks(f, gen, c.size, chunk)
}

// writeChunks copies total bytes from gen to w in calls of at most chunk bytes and returns the
// number of write calls issued.
func writeChunks(w io.Writer, gen io.Reader, total int64, chunk int64) (int, error) {
	buf := make([]byte, min(chunk, total))
	calls := 0
	for remaining := total; remaining > 0; {
		n := min(chunk, remaining)
		if _, err := io.ReadFull(gen, buf[:n]); err != nil {
			return calls, err
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return calls, err
		}
		calls++
		remaining -= n
	}
	return calls, nil
}

// requireParent fails unless the parent of p is an existing directory. Some afero backends
// create missing parents implicitly, the operations must not.
func requireParent(fsys afero.Fs, p string) error {
	parent := path.Dir(p)
	info, err := fsys.Stat(parent)
	if err != nil {
		return fmt.Errorf("parent directory %s: %w", parent, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("parent %s is not a directory", parent)
	}
	return nil
}

func statRegular(fsys afero.Fs, p string) (os.FileInfo, error) {
	info, err := fsys.Stat(p)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, errIsDirectory
	}
	return info, nil
}

// Write (re)creates a file with exactly size bytes.
type Write struct {
	content
}

// NewWrite creates a write of size random bytes to p unless opts select another generator. The
// content is written in one call of up to MaxChunkSize bytes unless Chunked is given. size and the
// chunk size must be positive.
func NewWrite(p string, size int64, opts ...ContentOption) (*Write, error) {
	c, err := newContent(p, size, opts...)
	if err != nil {
		return nil, err
	}
	return &Write{content: c}, nil
}

func (*Write) sealed()                  {}
func (*Write) Command() Command         { return WriteCommand }
func (w *Write) AsDict() map[string]any { return w.dict(WriteCommand, "size") }
func (w *Write) PlaybookLine() string   { return w.line(WriteCommand, "size") }

func (w *Write) Execute(_ context.Context, env *Env) error {
	fsys := env.Mount.Fs()
	if info, err := fsys.Stat(w.path); err == nil && info.IsDir() {
		return simulationError(WriteCommand, w.path, errIsDirectory)
	}
	if err := requireParent(fsys, w.path); err != nil {
		return simulationError(WriteCommand, w.path, err)
	}
	f, err := fsys.OpenFile(w.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return simulationError(WriteCommand, w.path, err)
	}
	calls, err := w.write(env, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return simulationError(WriteCommand, w.path, err)
	}
	env.log().Debug("wrote file", zap.String("path", w.path), zap.Int64("size", w.size), zap.Int("calls", calls))
	return nil
}

// Extend appends size bytes to an existing file.
type Extend struct {
	content
}

func NewExtend(p string, size int64, opts ...ContentOption) (*Extend, error) {
	c, err := newContent(p, size, opts...)
	if err != nil {
		return nil, err
	}
	return &Extend{content: c}, nil
}

func (*Extend) sealed()                  {}
func (*Extend) Command() Command         { return ExtendCommand }
func (e *Extend) AsDict() map[string]any { return e.dict(ExtendCommand, "extend_size") }
func (e *Extend) PlaybookLine() string   { return e.line(ExtendCommand, "extend_size") }

func (e *Extend) Execute(_ context.Context, env *Env) error {
	fsys := env.Mount.Fs()
	if _, err := statRegular(fsys, e.path); err != nil {
		return simulationError(ExtendCommand, e.path, err)
	}
	f, err := fsys.OpenFile(e.path, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return simulationError(ExtendCommand, e.path, err)
	}
	calls, err := e.write(env, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return simulationError(ExtendCommand, e.path, err)
	}
	env.log().Debug("extended file", zap.String("path", e.path), zap.Int64("size", e.size), zap.Int("calls", calls))
	return nil
}

// Shrink removes size bytes from the end of a file.
type Shrink struct {
	path string
	size int64
}

// NewShrink creates a truncation of size bytes from the end of p. size must be at least 1, being
// smaller than the file is only checked on execution.
func NewShrink(p string, size int64) (*Shrink, error) {
	n, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	if size < 1 {
		return nil, fmt.Errorf("%w (got %d)", errSize, size)
	}
	return &Shrink{path: n, size: size}, nil
}

func (*Shrink) sealed()          {}
func (*Shrink) Command() Command { return ShrinkCommand }
func (s *Shrink) Target() string { return s.path }
func (s *Shrink) Size() int64    { return s.size }

func (s *Shrink) AsDict() map[string]any {
	return map[string]any{"command": string(ShrinkCommand), "path": s.path, "shrink_size": s.size}
}

func (s *Shrink) PlaybookLine() string {
	return fmt.Sprintf("%s %s shrink_size=%d", ShrinkCommand, s.path, s.size)
}

func (s *Shrink) Execute(_ context.Context, env *Env) error {
	fsys := env.Mount.Fs()
	info, err := statRegular(fsys, s.path)
	if err != nil {
		return simulationError(ShrinkCommand, s.path, err)
	}
	if s.size >= info.Size() {
		return simulationError(ShrinkCommand, s.path, fmt.Errorf("%w (shrink size %d, file size %d)", errShrinkSize, s.size, info.Size()))
	}
	f, err := fsys.OpenFile(s.path, os.O_WRONLY, 0)
	if err != nil {
		return simulationError(ShrinkCommand, s.path, err)
	}
	err = f.Truncate(info.Size() - s.size)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return simulationError(ShrinkCommand, s.path, err)
	}
	return nil
}

package operation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

var (
	errDirOverFile  = errors.New("cannot place a directory where a file exists")
	errDestExists   = errors.New("destination already exists")
	errIntoItself   = errors.New("cannot place a directory inside itself")
	errRemoveRoot   = errors.New("refusing to remove the file system root")
	errAlreadyExist = errors.New("already exists")
)

// transfer holds the fields shared by Copy and Move.
type transfer struct {
	src string
	dst string
}

func newTransfer(src, dst string) (transfer, error) {
	s, err := NormalizePath(src)
	if err != nil {
		return transfer{}, err
	}
	d, err := NormalizePath(dst)
	if err != nil {
		return transfer{}, err
	}
	return transfer{src: s, dst: d}, nil
}

func (t transfer) Src() string    { return t.src }
func (t transfer) Dst() string    { return t.dst }
func (t transfer) Target() string { return t.dst }

func (t transfer) dict(cmd Command) map[string]any {
	return map[string]any{"command": string(cmd), "src": t.src, "dst": t.dst}
}

func (t transfer) line(cmd Command) string {
	return fmt.Sprintf("%s %s %s", cmd, t.src, t.dst)
}

// resolve returns the final destination for src following these rules: a file copied onto an
// existing directory, or a directory onto an existing directory, lands inside it under its own
// name. A directory onto an existing file is an error. The parent of the destination must exist
// unless copyParents is set and src is a directory.
func (t transfer) resolve(fsys afero.Fs, copyParents bool) (srcInfo os.FileInfo, dst string, err error) {
	srcInfo, err = fsys.Stat(t.src)
	if err != nil {
		return nil, "", err
	}
	dst = t.dst
	dstInfo, err := fsys.Stat(dst)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, "", err
	case dstInfo.IsDir():
		dst = path.Join(dst, path.Base(t.src))
		if srcInfo.IsDir() {
			if _, err := fsys.Stat(dst); err == nil {
				return nil, "", fmt.Errorf("%w: %s", errDestExists, dst)
			}
		}
	case srcInfo.IsDir():
		return nil, "", errDirOverFile
	}
	if srcInfo.IsDir() && isWithin(dst, t.src) {
		return nil, "", errIntoItself
	}
	if !srcInfo.IsDir() || !copyParents {
		if err := requireParent(fsys, dst); err != nil {
			return nil, "", err
		}
	}
	return srcInfo, dst, nil
}

// isWithin reports whether p is dir or below it.
func isWithin(p, dir string) bool {
	return p == dir || dir == "/" || strings.HasPrefix(p, dir+"/")
}

// Copy copies a file or a directory tree.
type Copy struct {
	transfer
}

func NewCopy(src, dst string) (*Copy, error) {
	t, err := newTransfer(src, dst)
	if err != nil {
		return nil, err
	}
	return &Copy{transfer: t}, nil
}

func (*Copy) sealed()                  {}
func (*Copy) Command() Command         { return CopyCommand }
func (c *Copy) AsDict() map[string]any { return c.dict(CopyCommand) }
func (c *Copy) PlaybookLine() string   { return c.line(CopyCommand) }

func (c *Copy) Execute(_ context.Context, env *Env) error {
	fsys := env.Mount.Fs()
	info, dst, err := c.resolve(fsys, true)
	if err != nil {
		return simulationError(CopyCommand, c.src, err)
	}
	if info.IsDir() {
		err = copyTree(fsys, c.src, dst)
	} else {
		err = copyFile(fsys, c.src, dst, info.Mode().Perm())
	}
	if err != nil {
		return simulationError(CopyCommand, c.src, err)
	}
	env.log().Debug("copied", zap.String("src", c.src), zap.String("dst", dst))
	return nil
}

func copyFile(fsys afero.Fs, src, dst string, perm os.FileMode) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := fsys.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyTree recreates src at dst, creating any missing parents of dst.
func copyTree(fsys afero.Fs, src, dst string) error {
	return afero.Walk(fsys, src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := path.Join(dst, filepath.ToSlash(rel))
		if info.IsDir() {
			return fsys.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(fsys, p, target, info.Mode().Perm())
	})
}

// Move renames a file or directory tree.
type Move struct {
	transfer
}

func NewMove(src, dst string) (*Move, error) {
	t, err := newTransfer(src, dst)
	if err != nil {
		return nil, err
	}
	return &Move{transfer: t}, nil
}

func (*Move) sealed()                  {}
func (*Move) Command() Command         { return MoveCommand }
func (m *Move) AsDict() map[string]any { return m.dict(MoveCommand) }
func (m *Move) PlaybookLine() string   { return m.line(MoveCommand) }

func (m *Move) Execute(_ context.Context, env *Env) error {
	fsys := env.Mount.Fs()
	info, dst, err := m.resolve(fsys, false)
	if err != nil {
		return simulationError(MoveCommand, m.src, err)
	}
	if dst == m.src {
		return nil
	}
	if !info.IsDir() {
		// rename(2) replaces an existing file, not every afero backend does.
		if dstInfo, err := fsys.Stat(dst); err == nil && !dstInfo.IsDir() {
			if err := fsys.Remove(dst); err != nil {
				return simulationError(MoveCommand, m.src, err)
			}
		}
	}
	if err := fsys.Rename(m.src, dst); err != nil {
		return simulationError(MoveCommand, m.src, err)
	}
	env.log().Debug("moved", zap.String("src", m.src), zap.String("dst", dst))
	return nil
}

// Remove deletes a file or a directory, recursively if it is not empty.
type Remove struct {
	path string
}

func NewRemove(p string) (*Remove, error) {
	n, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	return &Remove{path: n}, nil
}

func (*Remove) sealed()          {}
func (*Remove) Command() Command { return RemoveCommand }
func (r *Remove) Target() string { return r.path }
func (r *Remove) PlaybookLine() string {
	return fmt.Sprintf("%s %s", RemoveCommand, r.path)
}

func (r *Remove) AsDict() map[string]any {
	return map[string]any{"command": string(RemoveCommand), "path": r.path}
}

func (r *Remove) Execute(_ context.Context, env *Env) error {
	if r.path == "/" {
		return simulationError(RemoveCommand, r.path, errRemoveRoot)
	}
	fsys := env.Mount.Fs()
	info, err := fsys.Stat(r.path)
	if err != nil {
		return simulationError(RemoveCommand, r.path, err)
	}
	if info.IsDir() {
		empty, err := afero.IsEmpty(fsys, r.path)
		if err != nil {
			return simulationError(RemoveCommand, r.path, err)
		}
		if !empty {
			err = fsys.RemoveAll(r.path)
		} else {
			err = fsys.Remove(r.path)
		}
		if err != nil {
			return simulationError(RemoveCommand, r.path, err)
		}
		return nil
	}
	if err := fsys.Remove(r.path); err != nil {
		return simulationError(RemoveCommand, r.path, err)
	}
	return nil
}

// Mkdir creates a directory and any missing parents. The leaf must not exist.
type Mkdir struct {
	path string
}

func NewMkdir(p string) (*Mkdir, error) {
	n, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	return &Mkdir{path: n}, nil
}

func (*Mkdir) sealed()          {}
func (*Mkdir) Command() Command { return MkdirCommand }
func (m *Mkdir) Target() string { return m.path }
func (m *Mkdir) PlaybookLine() string {
	return fmt.Sprintf("%s %s", MkdirCommand, m.path)
}

func (m *Mkdir) AsDict() map[string]any {
	return map[string]any{"command": string(MkdirCommand), "path": m.path}
}

func (m *Mkdir) Execute(_ context.Context, env *Env) error {
	fsys := env.Mount.Fs()
	if _, err := fsys.Stat(m.path); err == nil {
		return simulationError(MkdirCommand, m.path, errAlreadyExist)
	} else if !errors.Is(err, os.ErrNotExist) {
		return simulationError(MkdirCommand, m.path, err)
	}
	if err := fsys.MkdirAll(m.path, 0o755); err != nil {
		return simulationError(MkdirCommand, m.path, err)
	}
	return nil
}

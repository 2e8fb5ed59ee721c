// Package vfs is the read-only query layer usage models consult before producing each operation.
// A VFS never caches: every call walks its Source again because the previous operation may have
// changed the tree.
package vfs

import (
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/thinkparq/fsstrata/common/filesystem"
	"github.com/thinkparq/fsstrata/usage/pkg/random"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
)

const (
	MaxFileNameLength = 255
	MaxPathLength     = 4096
	// DefaultNameLength is the length of generated file and directory names.
	DefaultNameLength = 8
	// MaxTriesForNonexistentPath caps the attempts to find an unused name.
	MaxTriesForNonexistentPath = 100000
)

var (
	ErrNoQualifyingEntry  = fmt.Errorf("%w: no entry matches the filter", simerr.ErrSimulation)
	ErrNamespaceExhausted = fmt.Errorf("%w: unable to generate a nonexistent path", simerr.ErrSimulation)
	ErrPathTooLong        = fmt.Errorf("%w: generated path is too long", simerr.ErrSimulation)
)

type FileType int

const (
	// AnyType matches regular files and directories in a Filter.
	AnyType FileType = iota
	Regular
	Directory
)

func (t FileType) String() string {
	switch t {
	case Regular:
		return "file"
	case Directory:
		return "dir"
	default:
		return "any"
	}
}

// File identifies an entry. Values are produced fresh by every query and compare by type and
// path.
type File struct {
	Type FileType
	Path string
}

// Entry is a File together with its size at query time. Directories have size 0.
type Entry struct {
	File
	Size int64
}

// Source provides a snapshot of the tree. Entries excludes the root and is sorted by path.
type Source interface {
	Entries() ([]Entry, error)
	Usage() (filesystem.Usage, error)
}

// VFS answers the questions usage models ask about the file system.
type VFS struct {
	src       Source
	immutable []Predicate
}

type Option func(*VFS)

// WithImmutable hides every entry matching p from all queries so models never select it.
func WithImmutable(p ...Predicate) Option {
	return func(v *VFS) {
		v.immutable = append(v.immutable, p...)
	}
}

// New returns a VFS over src. Nothing is cached, every query reads a fresh snapshot from src so
// the effect of the last operation is always visible.
func New(src Source, opts ...Option) *VFS {
	v := &VFS{src: src}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *VFS) isImmutable(e Entry) bool {
	return slices.ContainsFunc(v.immutable, func(p Predicate) bool { return p.Match(e) })
}

// active returns all mutable entries.
func (v *VFS) active() ([]Entry, error) {
	entries, err := v.src.Entries()
	if err != nil {
		return nil, fmt.Errorf("unable to list file system entries: %w", err)
	}
	if len(v.immutable) == 0 {
		return entries, nil
	}
	return slices.DeleteFunc(entries, v.isImmutable), nil
}

// Files lists the active entries matching f.
func (v *VFS) Files(f Filter) ([]Entry, error) {
	entries, err := v.active()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(entries, func(e Entry) bool { return !f.Match(e) }), nil
}

// Count returns the number of active entries matching f.
func (v *VFS) Count(f Filter) (int, error) {
	files, err := v.Files(f)
	return len(files), err
}

// Empty reports whether there are no active entries at all.
func (v *VFS) Empty() (bool, error) {
	n, err := v.Count(Filter{})
	return n == 0, err
}

// SizeOf returns the size of the regular file at p.
func (v *VFS) SizeOf(p string) (int64, error) {
	entries, err := v.src.Entries()
	if err != nil {
		return 0, err
	}
	i := slices.IndexFunc(entries, func(e Entry) bool { return e.Path == p })
	if i < 0 {
		return 0, simerr.Simulation("%s does not exist", p)
	}
	if entries[i].Type != Regular {
		return 0, simerr.Simulation("%s is not a regular file", p)
	}
	return entries[i].Size, nil
}

func (v *VFS) Usage() (filesystem.Usage, error) {
	return v.src.Usage()
}

// FreeSpace returns the bytes available for new content.
func (v *VFS) FreeSpace() (int64, error) {
	u, err := v.src.Usage()
	return u.Free, err
}

// UsageRatio returns used/total in [0,1]. A file system without capacity counts as full.
func (v *VFS) UsageRatio() (float64, error) {
	u, err := v.src.Usage()
	if err != nil {
		return 0, err
	}
	if u.Total <= 0 {
		return 1, nil
	}
	return float64(u.Used()) / float64(u.Total), nil
}

// RandomFile returns a uniformly chosen active entry matching f or ErrNoQualifyingEntry.
func (v *VFS) RandomFile(f Filter) (Entry, error) {
	files, err := v.Files(f)
	if err != nil {
		return Entry{}, err
	}
	if len(files) == 0 {
		return Entry{}, fmt.Errorf("%w (%s)", ErrNoQualifyingEntry, f)
	}
	return files[random.IntN(len(files))], nil
}

// PathSet returns the paths of all entries, immutable ones included.
func (v *VFS) PathSet() (map[string]struct{}, error) {
	all, err := v.src.Entries()
	if err != nil {
		return nil, fmt.Errorf("unable to list file system entries: %w", err)
	}
	set := make(map[string]struct{}, len(all))
	for _, e := range all {
		set[e.Path] = struct{}{}
	}
	return set, nil
}

type pathOptions struct {
	nameLength int
	skipDir    string
	parent     string
	suffix     string
}

type PathOption func(*pathOptions)

// WithSkipDir excludes dir and everything below it as parent of the generated path. Use it when
// the path becomes the destination of dir itself.
func WithSkipDir(dir string) PathOption {
	return func(o *pathOptions) {
		o.skipDir = dir
	}
}

// WithParent places the generated path directly below dir instead of a random directory.
func WithParent(dir string) PathOption {
	return func(o *pathOptions) {
		o.parent = dir
	}
}

// WithSuffix appends suffix, for example a file extension, to the generated name.
func WithSuffix(suffix string) PathOption {
	return func(o *pathOptions) {
		o.suffix = suffix
	}
}

// NonexistentPath returns a path that does not exist yet, placed in a uniformly chosen active
// directory or in the root when there is none.
func (v *VFS) NonexistentPath(opts ...PathOption) (string, error) {
	o := pathOptions{nameLength: DefaultNameLength}
	for _, opt := range opts {
		opt(&o)
	}
	if o.nameLength < 1 || o.nameLength+len(o.suffix) > MaxFileNameLength {
		return "", simerr.Simulation("file name length must be between 1 and %d (got %d)", MaxFileNameLength, o.nameLength+len(o.suffix))
	}

	existing, err := v.PathSet()
	if err != nil {
		return "", err
	}

	var dirs []Entry
	if o.parent == "" {
		filter := Filter{Type: Directory}
		if o.skipDir != "" {
			filter.ExcludeTrees = []string{o.skipDir}
		}
		if dirs, err = v.Files(filter); err != nil {
			return "", err
		}
	}

	for range MaxTriesForNonexistentPath {
		parent := "/"
		if o.parent != "" {
			parent = o.parent
		} else if len(dirs) > 0 {
			parent = dirs[random.IntN(len(dirs))].Path
		}
		candidate := path.Join(parent, random.Lowercase(o.nameLength)+o.suffix)
		if len(candidate) > MaxPathLength {
			return "", fmt.Errorf("%w (%d characters below %s)", ErrPathTooLong, len(candidate), parent)
		}
		if o.skipDir != "" && within(candidate, o.skipDir) {
			continue
		}
		if _, taken := existing[candidate]; !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d tries", ErrNamespaceExhausted, MaxTriesForNonexistentPath)
}

// within reports whether p is dir or below it.
func within(p, dir string) bool {
	dir = strings.TrimSuffix(dir, "/")
	return p == dir || dir == "" || strings.HasPrefix(p, dir+"/")
}

// IsNoQualifyingEntry reports whether err comes from a selection no entry qualified for.
func IsNoQualifyingEntry(err error) bool {
	return errors.Is(err, ErrNoQualifyingEntry)
}

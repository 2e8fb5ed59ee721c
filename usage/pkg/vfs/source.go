package vfs

import (
	"os"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"github.com/thinkparq/fsstrata/common/filesystem"
)

// MountSource walks the file system behind a Provider. Only regular files and directories are
// reported.
type MountSource struct {
	mount filesystem.Provider
}

func NewMountSource(mount filesystem.Provider) *MountSource {
	return &MountSource{mount: mount}
}

func (s *MountSource) Entries() ([]Entry, error) {
	var entries []Entry
	err := afero.Walk(s.mount.Fs(), "/", func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if p == "/" {
			return nil
		}
		switch {
		case info.IsDir():
			entries = append(entries, Entry{File: File{Type: Directory, Path: p}})
		case info.Mode().IsRegular():
			entries = append(entries, Entry{File: File{Type: Regular, Path: p}, Size: info.Size()})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// Walk visits a directory before its siblings that sort between it and its children.
	slices.SortFunc(entries, byPath)
	return entries, nil
}

func (s *MountSource) Usage() (filesystem.Usage, error) {
	return s.mount.Usage()
}

// Fake is a static snapshot for tests and dry runs.
type Fake struct {
	Items    []Entry
	Capacity filesystem.Usage
}

func (f *Fake) Entries() ([]Entry, error) {
	entries := slices.Clone(f.Items)
	slices.SortFunc(entries, byPath)
	return entries, nil
}

func (f *Fake) Usage() (filesystem.Usage, error) {
	return f.Capacity, nil
}

func byPath(a, b Entry) int {
	return strings.Compare(a.Path, b.Path)
}

// FakeFile returns a regular file entry.
func FakeFile(p string, size int64) Entry {
	return Entry{File: File{Type: Regular, Path: p}, Size: size}
}

// FakeDir returns a directory entry.
func FakeDir(p string) Entry {
	return Entry{File: File{Type: Directory, Path: p}}
}

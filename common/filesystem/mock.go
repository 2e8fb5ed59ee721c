package filesystem

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

// MemoryFSIdentifier selects an in-memory file system in configuration instead of a mount point.
const MemoryFSIdentifier = "memory"

// MockFS is an in-memory file system with a fixed capacity. Used space is the sum of all
// regular file sizes, there is no block or metadata overhead.
type MockFS struct {
	fs       afero.Fs
	Capacity int64
}

func NewMockFS(capacity int64) *MockFS {
	return &MockFS{fs: afero.NewMemMapFs(), Capacity: capacity}
}

func (m *MockFS) Fs() afero.Fs {
	return m.fs
}

func (m *MockFS) Usage() (Usage, error) {
	var used int64
	err := afero.Walk(m.fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			used += info.Size()
		}
		return nil
	})
	if err != nil {
		return Usage{}, fmt.Errorf("unable to determine in-memory file system usage: %w", err)
	}
	return Usage{Total: m.Capacity, Free: max(0, m.Capacity-used)}, nil
}

func (m *MockFS) Sync() error {
	return nil
}

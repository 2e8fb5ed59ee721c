package filesystem

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"golang.org/x/sys/unix"
)

// Usage is a point in time view of a file system's capacity in bytes.
type Usage struct {
	Total int64
	// Free is what unprivileged writes can still consume.
	Free int64
	// Reserved is free space held back for privileged users. It counts as neither used nor free.
	Reserved int64
}

// Used returns the number of bytes occupied by data and metadata.
func (u Usage) Used() int64 {
	return u.Total - u.Free - u.Reserved
}

// Provider is the handle every operation and query receives instead of relying on global mount
// state. All paths handed to Fs() are relative to the mount point and prefixed with "/".
type Provider interface {
	// Fs returns the file system rooted at the mount point.
	Fs() afero.Fs
	// Usage reports total and free bytes right now. Results must not be cached by callers across
	// operations.
	Usage() (Usage, error)
	// Sync flushes pending writes so the next query sees the effect of the last operation.
	Sync() error
}

// NewFromMountPoint returns a Provider for a volume that is already mounted at path. Mounting and
// formatting the volume is left to the caller.
func NewFromMountPoint(path string) (Provider, error) {
	if path == "" || path == "/" {
		return nil, fmt.Errorf("%w: refusing to use %q as the simulation mount point", ErrInitFSClient, path)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitFSClient, err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitFSClient, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInitFSClient, absPath)
	}
	var stat unix.Statfs_t
	if err := unix.Statfs(absPath, &stat); err != nil {
		return nil, fmt.Errorf("unable to determine file system usage for path %s using statfs: %w", absPath, err)
	}
	return Mounted{
		MountPoint: absPath,
		fs:         afero.NewBasePathFs(afero.NewOsFs(), absPath),
	}, nil
}

// Mounted is a real file system mounted somewhere on the host.
type Mounted struct {
	MountPoint string
	fs         afero.Fs
}

func (m Mounted) Fs() afero.Fs {
	return m.fs
}

// Usage reports the space available to unprivileged users as free, matching what a write
// issued by the simulation can actually consume.
func (m Mounted) Usage() (Usage, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(m.MountPoint, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", m.MountPoint, err)
	}
	return usageFromStatfs(&stat), nil
}

// usageFromStatfs counts in fragments, the unit block counts are reported in. Blocks between
// f_bavail and f_bfree are reserved for root.
func usageFromStatfs(stat *unix.Statfs_t) Usage {
	frag := int64(stat.Frsize)
	if frag == 0 {
		frag = int64(stat.Bsize)
	}
	return Usage{
		Total:    int64(stat.Blocks) * frag,
		Free:     int64(stat.Bavail) * frag,
		Reserved: int64(stat.Bfree-min(stat.Bavail, stat.Bfree)) * frag,
	}
}

// Sync commits the buffer cache of all file systems. syncfs(2) would be narrower but needs an
// open descriptor inside the mount for every call.
func (m Mounted) Sync() error {
	unix.Sync()
	return nil
}

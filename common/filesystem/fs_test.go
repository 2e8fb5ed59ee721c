package filesystem

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestNewFromMountPoint(t *testing.T) {
	_, err := NewFromMountPoint("")
	assert.ErrorIs(t, err, ErrInitFSClient)
	_, err = NewFromMountPoint("/")
	assert.ErrorIs(t, err, ErrInitFSClient)
	_, err = NewFromMountPoint(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrInitFSClient)

	testDir := t.TempDir()
	mount, err := NewFromMountPoint(testDir)
	require.NoError(t, err)
	assert.Equal(t, testDir, mount.(Mounted).MountPoint)

	require.NoError(t, afero.WriteFile(mount.Fs(), "/foo", []byte("bar"), 0644))
	contents, err := os.ReadFile(filepath.Join(testDir, "foo"))
	require.NoError(t, err)
	assert.Equal(t, "bar", string(contents))

	usage, err := mount.Usage()
	require.NoError(t, err)
	assert.Greater(t, usage.Total, int64(0))
	assert.LessOrEqual(t, usage.Free, usage.Total)
	assert.NoError(t, mount.Sync())
}

func TestUsageFromStatfs(t *testing.T) {
	stat := &unix.Statfs_t{Blocks: 1000, Bfree: 300, Bavail: 250, Bsize: 8192, Frsize: 4096}
	usage := usageFromStatfs(stat)
	assert.Equal(t, int64(1000*4096), usage.Total)
	assert.Equal(t, int64(250*4096), usage.Free)
	assert.Equal(t, int64(50*4096), usage.Reserved)
	assert.Equal(t, int64(700*4096), usage.Used(), "reserved blocks are not used")

	// Without reserved blocks everything that is not free is used.
	usage = usageFromStatfs(&unix.Statfs_t{Blocks: 10, Bfree: 4, Bavail: 4, Bsize: 512})
	assert.Equal(t, Usage{Total: 5120, Free: 2048}, usage)
	assert.Equal(t, int64(3072), usage.Used())
}

func TestMountedUsageMatchesStatfs(t *testing.T) {
	testDir := t.TempDir()
	mount, err := NewFromMountPoint(testDir)
	require.NoError(t, err)
	usage, err := mount.Usage()
	require.NoError(t, err)

	var stat unix.Statfs_t
	require.NoError(t, unix.Statfs(testDir, &stat))
	assert.Equal(t, int64(stat.Blocks)*int64(stat.Frsize), usage.Total)
	assert.GreaterOrEqual(t, usage.Used(), int64(0))
}

func TestMockFSUsage(t *testing.T) {
	mock := NewMockFS(100)
	require.NoError(t, mock.Fs().MkdirAll("/dir", 0755))
	require.NoError(t, afero.WriteFile(mock.Fs(), "/dir/a", make([]byte, 30), 0644))
	require.NoError(t, afero.WriteFile(mock.Fs(), "/b", make([]byte, 20), 0644))

	usage, err := mock.Usage()
	require.NoError(t, err)
	assert.Equal(t, Usage{Total: 100, Free: 50}, usage)
	assert.Equal(t, int64(50), usage.Used())

	require.NoError(t, afero.WriteFile(mock.Fs(), "/c", make([]byte, 80), 0644))
	usage, err = mock.Usage()
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.Free)
}

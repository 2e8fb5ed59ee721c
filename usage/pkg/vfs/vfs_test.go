package vfs

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thinkparq/fsstrata/common/filesystem"
	"github.com/thinkparq/fsstrata/usage/pkg/random"
	"github.com/thinkparq/fsstrata/usage/pkg/simerr"
)

func testTree() *Fake {
	return &Fake{
		Items: []Entry{
			FakeDir("/a"),
			FakeDir("/a/b"),
			FakeDir("/a/b/c"),
			FakeDir("/d"),
			FakeFile("/a/f1", 10),
			FakeFile("/a/b/f2", 200),
			FakeFile("/d/f3", 3000),
			FakeFile("/f4", 0),
		},
		Capacity: filesystem.Usage{Total: 10000, Free: 6790},
	}
}

func paths(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Path)
	}
	return out
}

func TestFilesAndCount(t *testing.T) {
	v := New(testTree())

	files, err := v.Files(Filter{Type: Regular})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/f2", "/a/f1", "/d/f3", "/f4"}, paths(files))

	n, err := v.Count(Filter{Type: Directory})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	files, err = v.Files(Filter{Type: Regular, MinSize: 10, MaxSize: 200})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/f2", "/a/f1"}, paths(files))

	files, err = v.Files(Filter{Exclude: []string{"/a/f1"}, ExcludeTrees: []string{"/a/b"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/d", "/d/f3", "/f4"}, paths(files))

	files, err = v.Files(Filter{Predicate: PredicateFunc(func(e Entry) bool { return strings.HasPrefix(e.Path, "/d") })})
	require.NoError(t, err)
	assert.Equal(t, []string{"/d", "/d/f3"}, paths(files))

	empty, err := v.Empty()
	require.NoError(t, err)
	assert.False(t, empty)
	empty, err = New(&Fake{}).Empty()
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestSizeAndUsage(t *testing.T) {
	v := New(testTree())
	size, err := v.SizeOf("/d/f3")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), size)
	_, err = v.SizeOf("/nope")
	assert.ErrorIs(t, err, simerr.ErrSimulation)
	_, err = v.SizeOf("/a")
	assert.ErrorIs(t, err, simerr.ErrSimulation)

	free, err := v.FreeSpace()
	require.NoError(t, err)
	assert.Equal(t, int64(6790), free)
	ratio, err := v.UsageRatio()
	require.NoError(t, err)
	assert.InDelta(t, 0.321, ratio, 1e-9)

	ratio, err = New(&Fake{}).UsageRatio()
	require.NoError(t, err)
	assert.Equal(t, 1.0, ratio)
}

func TestRandomFile(t *testing.T) {
	random.Seed(11)
	v := New(testTree())
	seen := map[string]int{}
	for range 4000 {
		e, err := v.RandomFile(Filter{Type: Regular})
		require.NoError(t, err)
		seen[e.Path]++
	}
	assert.Len(t, seen, 4)
	for p, n := range seen {
		assert.InDelta(t, 1000, n, 150, p)
	}

	_, err := v.RandomFile(Filter{Type: Regular, MinSize: 1 << 20})
	assert.ErrorIs(t, err, ErrNoQualifyingEntry)
	assert.ErrorIs(t, err, simerr.ErrSimulation)
	assert.True(t, IsNoQualifyingEntry(err))
}

func TestImmutableEntriesAreHidden(t *testing.T) {
	glob, err := NewGlobPredicate("/d/**", "f4")
	require.NoError(t, err)
	v := New(testTree(), WithImmutable(glob))
	files, err := v.Files(Filter{Type: Regular})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/f2", "/a/f1"}, paths(files))

	v = New(testTree(), WithImmutable(glob), WithImmutable(PredicateFunc(func(e Entry) bool { return e.Path == "/a/f1" })))
	files, err = v.Files(Filter{Type: Regular})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/b/f2"}, paths(files))

	_, err = NewGlobPredicate("[")
	assert.Error(t, err)
}

func nameLength(n int) PathOption {
	return func(o *pathOptions) { o.nameLength = n }
}

func TestNonexistentPath(t *testing.T) {
	random.Seed(5)
	v := New(testTree())
	existing := map[string]bool{}
	all, _ := testTree().Entries()
	for _, e := range all {
		existing[e.Path] = true
	}
	for range 500 {
		p, err := v.NonexistentPath()
		require.NoError(t, err)
		assert.False(t, existing[p], p)
		assert.Len(t, p[strings.LastIndex(p, "/")+1:], DefaultNameLength)
		parent := p[:strings.LastIndex(p, "/")]
		assert.True(t, existing[parent], p)
	}

	p, err := New(&Fake{}).NonexistentPath(nameLength(3))
	require.NoError(t, err)
	assert.Regexp(t, `^/[a-z]{3}$`, p)

	_, err = v.NonexistentPath(nameLength(MaxFileNameLength + 1))
	assert.ErrorIs(t, err, simerr.ErrSimulation)
}

func TestNonexistentPathSkipDir(t *testing.T) {
	random.Seed(9)
	v := New(testTree())
	for range 2000 {
		p, err := v.NonexistentPath(WithSkipDir("/a"))
		require.NoError(t, err)
		assert.NotEqual(t, "/a", p)
		assert.False(t, strings.HasPrefix(p, "/a/"), p)
	}

	// Every directory is below the skipped one, so the root is used.
	only := &Fake{Items: []Entry{FakeDir("/a"), FakeDir("/a/b")}}
	p, err := New(only).NonexistentPath(WithSkipDir("/a"))
	require.NoError(t, err)
	assert.Regexp(t, `^/[a-z]{8}$`, p)
}

func TestNonexistentPathParentAndSuffix(t *testing.T) {
	random.Seed(3)
	v := New(testTree())
	for range 100 {
		p, err := v.NonexistentPath(WithParent("/"), WithSuffix(".jpg"))
		require.NoError(t, err)
		assert.Regexp(t, `^/[a-z]{8}\.jpg$`, p)
	}
	p, err := v.NonexistentPath(WithParent("/d"), nameLength(2))
	require.NoError(t, err)
	assert.Regexp(t, `^/d/[a-z]{2}$`, p)
}

func TestNamespaceExhausted(t *testing.T) {
	random.Seed(1)
	var items []Entry
	for c := 'a'; c <= 'z'; c++ {
		items = append(items, FakeFile("/"+string(c), 1))
	}
	_, err := New(&Fake{Items: items}).NonexistentPath(nameLength(1))
	assert.ErrorIs(t, err, ErrNamespaceExhausted)
}

func TestMountSource(t *testing.T) {
	mount := filesystem.NewMockFS(1000)
	fsys := mount.Fs()
	require.NoError(t, fsys.MkdirAll("/x/y", 0755))
	require.NoError(t, afero.WriteFile(fsys, "/x/y/z", make([]byte, 42), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/top", make([]byte, 8), 0644))

	v := New(NewMountSource(mount))
	files, err := v.Files(Filter{})
	require.NoError(t, err)
	assert.Equal(t, []string{"/top", "/x", "/x/y", "/x/y/z"}, paths(files))
	size, err := v.SizeOf("/x/y/z")
	require.NoError(t, err)
	assert.Equal(t, int64(42), size)
	free, err := v.FreeSpace()
	require.NoError(t, err)
	assert.Equal(t, int64(950), free)

	// Nothing is cached between calls.
	require.NoError(t, fsys.Remove("/top"))
	n, err := v.Count(Filter{Type: Regular})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMountSourceEntriesSortedByPath(t *testing.T) {
	mount := filesystem.NewMockFS(1000)
	fsys := mount.Fs()
	require.NoError(t, fsys.MkdirAll("/a/b", 0755))
	require.NoError(t, afero.WriteFile(fsys, "/a/b/c", []byte("x"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/a-c", []byte("x"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/a.d", []byte("x"), 0644))

	entries, err := NewMountSource(mount).Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/a-c", "/a.d", "/a/b", "/a/b/c"}, paths(entries))
}

func TestQuery(t *testing.T) {
	q, err := CompileQuery(`type == "file" && size >= bytes("1k") && glob("**/f*", path)`)
	require.NoError(t, err)
	v := New(testTree())
	files, err := v.Files(Filter{Predicate: q})
	require.NoError(t, err)
	assert.Equal(t, []string{"/d/f3"}, paths(files))

	q, err = CompileQuery(`depth == 2 && name startsWith "f"`)
	require.NoError(t, err)
	files, err = v.Files(Filter{Predicate: q})
	require.NoError(t, err)
	assert.Equal(t, []string{"/a/f1", "/d/f3"}, paths(files))

	_, err = CompileQuery(`size +`)
	assert.Error(t, err)
	_, err = CompileQuery(`size`)
	assert.Error(t, err)
}

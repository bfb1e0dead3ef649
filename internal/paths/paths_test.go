package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ning0612/mirrorsync/internal/adapter"
	"github.com/Ning0612/mirrorsync/internal/domain"
)

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	got, err = ExpandHome("~/docs/papers")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "docs", "papers"), got)

	got, err = ExpandHome("~other/x")
	require.NoError(t, err)
	assert.Equal(t, "~other/x", got)

	got, err = ExpandHome("relative/x")
	require.NoError(t, err)
	assert.Equal(t, "relative/x", got)
}

func TestResolveSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	require.NoError(t, os.Mkdir(src, 0755))

	t.Run("existing directory", func(t *testing.T) {
		p, err := ResolveSource(src)
		require.NoError(t, err)
		want, _ := filepath.EvalSymlinks(src)
		assert.Equal(t, want, p.Abs())
		assert.Equal(t, src, p.Raw())
	})

	t.Run("missing", func(t *testing.T) {
		_, err := ResolveSource(filepath.Join(dir, "nope"))
		assert.ErrorIs(t, err, domain.ErrPathNotFound)
	})

	t.Run("file is not a tree", func(t *testing.T) {
		file := filepath.Join(dir, "file.txt")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
		_, err := ResolveSource(file)
		assert.ErrorIs(t, err, domain.ErrNotDirectory)
		assert.ErrorIs(t, err, domain.ErrPathNotFound)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ResolveSource("  ")
		assert.ErrorIs(t, err, domain.ErrConfigInvalid)
	})

	t.Run("symlink is dereferenced", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("symlinks need privileges on windows")
		}
		link := filepath.Join(dir, "link")
		require.NoError(t, os.Symlink(src, link))
		p, err := ResolveSource(link)
		require.NoError(t, err)
		want, _ := filepath.EvalSymlinks(src)
		assert.Equal(t, want, p.Abs())
	})

	t.Run("relative to working directory", func(t *testing.T) {
		t.Chdir(dir)
		p, err := ResolveSource("src")
		require.NoError(t, err)
		want, _ := filepath.EvalSymlinks(src)
		assert.Equal(t, want, p.Abs())
	})
}

func TestResolveDest(t *testing.T) {
	dir := t.TempDir()
	canonicalDir, _ := filepath.EvalSymlinks(dir)

	t.Run("missing chain is not created", func(t *testing.T) {
		p, err := ResolveDest(filepath.Join(dir, "a", "b"))
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(canonicalDir, "a", "b"), p.Abs())
		_, statErr := os.Stat(filepath.Join(dir, "a"))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("parent is a file", func(t *testing.T) {
		file := filepath.Join(dir, "blocker")
		require.NoError(t, os.WriteFile(file, nil, 0644))
		_, err := ResolveDest(filepath.Join(file, "sub"))
		assert.ErrorIs(t, err, domain.ErrPathNotCreatable)
	})

	t.Run("deterministic", func(t *testing.T) {
		a, err := ResolveDest(filepath.Join(dir, "x", "..", "y"))
		require.NoError(t, err)
		b, err := ResolveDest(filepath.Join(dir, "y"))
		require.NoError(t, err)
		assert.Equal(t, a.Abs(), b.Abs())
	})
}

func TestPrepareDest(t *testing.T) {
	dir := t.TempDir()

	p, err := ResolveDest(filepath.Join(dir, "c", "d"))
	require.NoError(t, err)
	require.NoError(t, PrepareDest(p))

	info, err := os.Stat(p.Abs())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	entries, err := os.ReadDir(p.Abs())
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file must be removed")

	// An existing destination is accepted as is
	require.NoError(t, PrepareDest(p))
}

func TestProbeIsStagingName(t *testing.T) {
	name := strings.Replace(probePattern, "*", "12345", 1)
	assert.True(t, adapter.IsPartial(name), name)
}

func TestCheckWritable(t *testing.T) {
	dir := t.TempDir()
	p, err := ResolveDest(dir)
	require.NoError(t, err)
	require.NoError(t, CheckWritable(p))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe file must be removed")

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for this user")
	}
	ro := filepath.Join(dir, "ro")
	require.NoError(t, os.Mkdir(ro, 0555))
	t.Cleanup(func() { os.Chmod(ro, 0755) })
	p, err = ResolveDest(ro)
	require.NoError(t, err)
	assert.ErrorIs(t, CheckWritable(p), domain.ErrDestNotWritable)
}

func TestJobKey(t *testing.T) {
	a := domain.NewResolvedPath("x", "/home/me/My Papers")
	b := domain.NewResolvedPath("y", "/home/me/My Papers")
	c := domain.NewResolvedPath("z", "/srv/My Papers")

	assert.Equal(t, JobKey(a), JobKey(b))
	assert.NotEqual(t, JobKey(a), JobKey(c))
	assert.True(t, strings.HasPrefix(JobKey(a), "my-papers-"))
	assert.Len(t, strings.TrimPrefix(JobKey(a), "my-papers-"), 12)
	assert.True(t, strings.HasPrefix(JobKey(domain.NewResolvedPath("/", "/")), "root-"))
}

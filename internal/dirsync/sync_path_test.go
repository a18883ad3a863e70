package dirsync

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormRemoteRoot(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/", "/"},
		{"", "/"},
		{"backup", "/backup/"},
		{"/backup", "/backup/"},
		{"/backup/", "/backup/"},
		{"//backup//daily/", "/backup/daily/"},
		{`\backup\daily`, "/backup/daily/"},
		{"/backup/./x/../daily", "/backup/daily/"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normRemoteRoot(tt.in), tt.in)
	}
}

func TestNormLocalRoot(t *testing.T) {
	sep := string(os.PathSeparator)
	dir := t.TempDir()

	assert.Equal(t, dir+sep, normLocalRoot(dir))
	assert.Equal(t, dir+sep, normLocalRoot(dir+sep))
	assert.Equal(t, dir+sep, normLocalRoot(filepath.Join(dir, "x", "..")))
}

func TestMapRemotePath(t *testing.T) {
	assert.Equal(t, "/backup/a/b.txt", mapRemotePath("/backup/", "a/b.txt", KindFile))
	assert.Equal(t, "/backup/a/", mapRemotePath("/backup/", "a", KindDirectory))
	assert.Equal(t, "/a/", mapRemotePath("/", "a/", KindDirectory))
	assert.Equal(t, "/b.txt", mapRemotePath("/", "/b.txt", KindFile))
}

func TestRelPath(t *testing.T) {
	root := t.TempDir()
	rel, err := relPath(root, filepath.Join(root, "a", "b", "c.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a/b/c.txt", rel)
}

func TestParseSyncMode(t *testing.T) {
	mode, err := ParseSyncMode(" Mirror ")
	require.NoError(t, err)
	assert.Equal(t, ModeMirror, mode)

	mode, err = ParseSyncMode("update")
	require.NoError(t, err)
	assert.Equal(t, ModeUpdate, mode)

	_, err = ParseSyncMode("merge")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestWalkLocal(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "aa", "d/b.txt": "bbb"}, "d/e")

	dirs, files, err := walkLocal(normLocalRoot(root))
	require.NoError(t, err)

	var dirRels, fileRels []string
	for _, d := range dirs {
		dirRels = append(dirRels, d.rel)
		assert.Zero(t, d.size)
	}
	sizes := map[string]int64{}
	for _, f := range files {
		fileRels = append(fileRels, f.rel)
		sizes[f.rel] = f.size
	}

	assert.ElementsMatch(t, []string{"d", "d/e"}, dirRels)
	assert.ElementsMatch(t, []string{"a.txt", "d/b.txt"}, fileRels)
	assert.Equal(t, int64(2), sizes["a.txt"])
	assert.Equal(t, int64(3), sizes["d/b.txt"])
}

func TestWalkLocal_FollowsSymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	writeTree(t, target, map[string]string{"keep.txt": "k", "d/x.txt": "x"})
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	dirs, files, err := walkLocal(normLocalRoot(link))
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(f.path, link+string(os.PathSeparator)), f.path)
	}
}

func TestWalkLocal_RootNotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, _, err := walkLocal(normLocalRoot(file))
	assert.ErrorIs(t, err, ErrLocalRoot)

	_, _, err = walkLocal(normLocalRoot(filepath.Join(t.TempDir(), "missing")))
	assert.ErrorIs(t, err, ErrLocalRoot)
}

func TestWalkLocal_UnreadableSubdirLogged(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))
	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Mkdir(locked, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "hidden.txt"), []byte("h"), 0o644))
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, files, err := walkLocal(normLocalRoot(root))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "a.txt", files[0].rel)
	assert.Contains(t, logs.String(), `"op":"Error"`)
	assert.Contains(t, logs.String(), locked)
}

func TestCanonRemotePath(t *testing.T) {
	assert.Equal(t, "/backup/a.txt", canonRemotePath("/backup//a.txt"))
	assert.Equal(t, "/backup/a.txt", canonRemotePath("backup\\a.txt"))
	assert.Equal(t, "/backup/a.txt", canonRemotePath("/backup/./sub/../a.txt"))
	assert.Equal(t, "/", canonRemotePath(""))
}

package remote

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/openmined/dirsync/internal/utils"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLocal(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func readRemote(t *testing.T, fs afero.Fs, p string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	return string(data)
}

func TestFsRemote_CreateDirectoryAndExists(t *testing.T) {
	ctx := context.Background()
	r := NewFsRemote(afero.NewMemMapFs())

	ok, err := r.Exists(ctx, "/backup/a/b/")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.CreateDirectory(ctx, "/backup/a/b/"))
	require.NoError(t, r.CreateDirectory(ctx, "/backup/a/b/"), "create directory is idempotent")

	for _, p := range []string{"/backup/", "/backup/a", "/backup/a/b/"} {
		ok, err := r.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, ok, p)
	}
}

func TestFsRemote_UploadWithoutParent(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	r := NewFsRemote(fs)
	local := writeLocal(t, t.TempDir(), "a.txt", "hello")

	_, err := r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/missing/a.txt"})
	assert.ErrorIs(t, err, ErrParentNotFound)

	transferred, err := r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/missing/a.txt", CreateParents: true})
	require.NoError(t, err)
	assert.True(t, transferred)
	assert.Equal(t, "hello", readRemote(t, fs, "/missing/a.txt"))
}

func TestFsRemote_UploadExistsPolicies(t *testing.T) {
	ctx := context.Background()
	local := writeLocal(t, t.TempDir(), "a.txt", "hello world")

	tests := []struct {
		name            string
		policy          ExistsPolicy
		existing        string
		wantTransferred bool
		wantContent     string
	}{
		{"nocheck overwrites", ExistsNoCheck, "old", true, "hello world"},
		{"skip leaves existing", ExistsSkip, "old", false, "old"},
		{"overwrite replaces", ExistsOverwrite, "old", true, "hello world"},
		{"resume appends tail", ExistsResume, "hello", true, "hello world"},
		{"resume same size is a no-op", ExistsResume, "HELLO WORLD", false, "HELLO WORLD"},
		{"append adds whole file", ExistsAppend, "old:", true, "old:hello world"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, "/dst/a.txt", []byte(tt.existing), 0o644))
			r := NewFsRemote(fs)

			transferred, err := r.Upload(ctx, &UploadParams{
				LocalPath:    local,
				RemotePath:   "/dst/a.txt",
				ExistsPolicy: tt.policy,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantTransferred, transferred)
			assert.Equal(t, tt.wantContent, readRemote(t, fs, "/dst/a.txt"))
		})
	}
}

func TestFsRemote_UploadSkipWhenAbsentTransfers(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dst", 0o755))
	r := NewFsRemote(fs)
	local := writeLocal(t, t.TempDir(), "a.txt", "abc")

	transferred, err := r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/dst/a.txt", ExistsPolicy: ExistsSkip})
	require.NoError(t, err)
	assert.True(t, transferred)
}

func TestFsRemote_UploadOntoDirectoryFails(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dst/a.txt", 0o755))
	r := NewFsRemote(fs)
	local := writeLocal(t, t.TempDir(), "a.txt", "abc")

	_, err := r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/dst/a.txt", ExistsPolicy: ExistsOverwrite})
	assert.ErrorIs(t, err, ErrIsDirectory)
}

func TestFsRemote_UploadVerify(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dst", 0o755))
	r := NewFsRemote(fs)
	local := writeLocal(t, t.TempDir(), "a.txt", "verified content")

	transferred, err := r.Upload(ctx, &UploadParams{
		LocalPath:    local,
		RemotePath:   "/dst/a.txt",
		ExistsPolicy: ExistsOverwrite,
		VerifyPolicy: VerifyChecksum | VerifyThrow,
	})
	require.NoError(t, err)
	assert.True(t, transferred)
}

func TestFsRemote_UploadReportsProgress(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dst", 0o755))
	r := NewFsRemote(fs)
	local := writeLocal(t, t.TempDir(), "a.txt", "0123456789")

	var last Progress
	calls := 0
	_, err := r.Upload(ctx, &UploadParams{
		LocalPath:  local,
		RemotePath: "/dst/a.txt",
		Progress: func(p Progress) {
			calls++
			last = p
		},
	})
	require.NoError(t, err)
	assert.Positive(t, calls)
	assert.Equal(t, int64(10), last.Transferred)
	assert.Equal(t, int64(10), last.Total)
	assert.Equal(t, "/dst/a.txt", last.RemotePath)
}

func TestFsRemote_UploadCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dst", 0o755))
	r := NewFsRemote(fs)
	local := writeLocal(t, t.TempDir(), "a.txt", "abc")

	_, err := r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/dst/a.txt"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFsRemote_List(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/root/a.txt", []byte("a"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/root/sub/b.txt", []byte("bb"), 0o644))
	require.NoError(t, fs.MkdirAll("/root/empty", 0o755))
	r := NewFsRemote(fs)

	entries, err := r.List(ctx, "/root/", true)
	require.NoError(t, err)

	got := map[string]EntryKind{}
	for _, e := range entries {
		got[e.FullPath] = e.Kind
	}
	assert.Equal(t, map[string]EntryKind{
		"/root/a.txt":     EntryFile,
		"/root/sub/":      EntryDirectory,
		"/root/sub/b.txt": EntryFile,
		"/root/empty/":    EntryDirectory,
	}, got)

	shallow, err := r.List(ctx, "/root", false)
	require.NoError(t, err)
	paths := make([]string, 0, len(shallow))
	for _, e := range shallow {
		paths = append(paths, e.FullPath)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{"/root/a.txt", "/root/empty/", "/root/sub/"}, paths)
}

func TestFsRemote_Delete(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/root/a.txt", []byte("a"), 0o644))
	r := NewFsRemote(fs)

	require.NoError(t, r.Delete(ctx, "/root/a.txt"))
	ok, err := afero.Exists(fs, "/root/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, r.Delete(ctx, "/root/a.txt"), ErrNotFound)
	assert.ErrorIs(t, r.Delete(ctx, "/root"), ErrIsDirectory)
}

func TestFsRemote_ChecksumMatchesLocalHash(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/root/a.txt", []byte("hello"), 0o644))
	r := NewFsRemote(fs)

	sum, err := r.checksum(ctx, "root//a.txt")
	require.NoError(t, err)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", sum)

	local, err := utils.FileHash(writeLocal(t, t.TempDir(), "a.txt", "hello"))
	require.NoError(t, err)
	assert.Equal(t, local, sum)

	_, err = r.checksum(ctx, "/root/missing.txt")
	assert.Error(t, err)
}

func TestNewOsFsRemote_RootedAtDirectory(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	r := NewOsFsRemote(root)
	local := writeLocal(t, t.TempDir(), "a.txt", "on disk")

	require.NoError(t, r.CreateDirectory(ctx, "/backup/"))
	transferred, err := r.Upload(ctx, &UploadParams{LocalPath: local, RemotePath: "/backup/a.txt"})
	require.NoError(t, err)
	assert.True(t, transferred)

	data, err := os.ReadFile(filepath.Join(root, "backup", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "on disk", string(data))
}

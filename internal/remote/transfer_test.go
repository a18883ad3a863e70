package remote

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corruptingStore truncates the first n writes so verification fails
type corruptingStore struct {
	*FsRemote
	corrupt int
	writes  int
	removes int
}

func (c *corruptingStore) write(ctx context.Context, p string, body io.Reader, size int64, appendMode bool) error {
	c.writes++
	if c.writes <= c.corrupt {
		data, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		return c.FsRemote.write(ctx, p, strings.NewReader(string(data[:len(data)/2])), size/2, appendMode)
	}
	return c.FsRemote.write(ctx, p, body, size, appendMode)
}

func (c *corruptingStore) remove(ctx context.Context, p string) error {
	c.removes++
	return c.FsRemote.remove(ctx, p)
}

func newCorruptingStore(t *testing.T, corrupt int) (*corruptingStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dst", 0o755))
	return &corruptingStore{FsRemote: NewFsRemote(fs), corrupt: corrupt}, fs
}

func TestUpload_VerifyRetryRecovers(t *testing.T) {
	store, fs := newCorruptingStore(t, 2)
	local := writeLocal(t, t.TempDir(), "a.txt", "0123456789")

	transferred, err := upload(context.Background(), store, &UploadParams{
		LocalPath:    local,
		RemotePath:   "/dst/a.txt",
		VerifyPolicy: VerifyRetry | VerifyThrow,
	})
	require.NoError(t, err)
	assert.True(t, transferred)
	assert.Equal(t, 3, store.writes)
	assert.Equal(t, "0123456789", readRemote(t, fs, "/dst/a.txt"))
}

func TestUpload_VerifyThrowAfterRetries(t *testing.T) {
	store, _ := newCorruptingStore(t, maxVerifyAttempts)
	local := writeLocal(t, t.TempDir(), "a.txt", "0123456789")

	transferred, err := upload(context.Background(), store, &UploadParams{
		LocalPath:    local,
		RemotePath:   "/dst/a.txt",
		VerifyPolicy: VerifyRetry | VerifyThrow,
	})
	assert.ErrorIs(t, err, ErrVerifyFailed)
	assert.False(t, transferred)
	assert.Equal(t, maxVerifyAttempts, store.writes)
}

func TestUpload_VerifyDeleteRemovesBadCopy(t *testing.T) {
	store, fs := newCorruptingStore(t, 1)
	local := writeLocal(t, t.TempDir(), "a.txt", "0123456789")

	transferred, err := upload(context.Background(), store, &UploadParams{
		LocalPath:    local,
		RemotePath:   "/dst/a.txt",
		VerifyPolicy: VerifyDelete,
	})
	require.ErrorIs(t, err, ErrVerifyFailed)
	assert.False(t, transferred, "a deleted copy is a failed transfer even without throw")
	assert.Equal(t, 1, store.writes)
	assert.Equal(t, 1, store.removes)

	ok, err := afero.Exists(fs, "/dst/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpload_NoVerifyIgnoresCorruption(t *testing.T) {
	store, _ := newCorruptingStore(t, 1)
	local := writeLocal(t, t.TempDir(), "a.txt", "0123456789")

	transferred, err := upload(context.Background(), store, &UploadParams{
		LocalPath:  local,
		RemotePath: "/dst/a.txt",
	})
	require.NoError(t, err)
	assert.True(t, transferred)
	assert.Equal(t, 0, store.removes)
}

func TestUpload_LocalErrors(t *testing.T) {
	store, _ := newCorruptingStore(t, 0)

	_, err := upload(context.Background(), store, nil)
	assert.Error(t, err)

	_, err = upload(context.Background(), store, &UploadParams{LocalPath: "/does/not/exist", RemotePath: "/dst/a.txt"})
	assert.Error(t, err)

	_, err = upload(context.Background(), store, &UploadParams{LocalPath: t.TempDir(), RemotePath: "/dst/a.txt"})
	assert.ErrorIs(t, err, ErrIsDirectory)
}

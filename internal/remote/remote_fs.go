package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/openmined/dirsync/internal/utils"
	"github.com/spf13/afero"
)

// FsRemote is a Remote backed by an afero filesystem.
// Remote paths are interpreted relative to the root of the filesystem.
type FsRemote struct {
	fs afero.Fs
}

func NewFsRemote(fs afero.Fs) *FsRemote {
	return &FsRemote{fs: fs}
}

// NewOsFsRemote returns an FsRemote rooted at a directory of the host filesystem
func NewOsFsRemote(root string) *FsRemote {
	return NewFsRemote(afero.NewBasePathFs(afero.NewOsFs(), root))
}

func (r *FsRemote) Exists(_ context.Context, p string) (bool, error) {
	return afero.Exists(r.fs, cleanRemotePath(p))
}

func (r *FsRemote) CreateDirectory(_ context.Context, p string) error {
	return r.fs.MkdirAll(cleanRemotePath(p), 0o755)
}

func (r *FsRemote) Upload(ctx context.Context, params *UploadParams) (bool, error) {
	return upload(ctx, r, params)
}

func (r *FsRemote) List(_ context.Context, p string, recursive bool) ([]*Entry, error) {
	root := cleanRemotePath(p)

	if !recursive {
		infos, err := afero.ReadDir(r.fs, root)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", root, err)
		}
		entries := make([]*Entry, 0, len(infos))
		for _, info := range infos {
			entries = append(entries, newFsEntry(path.Join(root, info.Name()), info))
		}
		return entries, nil
	}

	var entries []*Entry
	err := afero.Walk(r.fs, root, func(walkPath string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		full := cleanRemotePath(filepath.ToSlash(walkPath))
		if full == root {
			return nil
		}
		entries = append(entries, newFsEntry(full, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}
	return entries, nil
}

func (r *FsRemote) Delete(_ context.Context, p string) error {
	clean := cleanRemotePath(p)
	info, err := r.fs.Stat(clean)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, clean)
	} else if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s", ErrIsDirectory, clean)
	}
	return r.fs.Remove(clean)
}

// ===================================================================================================

func (r *FsRemote) stat(_ context.Context, p string) (*objectInfo, error) {
	info, err := r.fs.Stat(cleanRemotePath(p))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &objectInfo{Size: info.Size(), IsDir: info.IsDir()}, nil
}

func (r *FsRemote) checksum(_ context.Context, p string) (string, error) {
	file, err := r.fs.Open(cleanRemotePath(p))
	if err != nil {
		return "", err
	}
	defer file.Close()
	return utils.HashReader(file)
}

func (r *FsRemote) dirExists(_ context.Context, p string) (bool, error) {
	return afero.DirExists(r.fs, cleanRemotePath(p))
}

func (r *FsRemote) mkdirAll(_ context.Context, p string) error {
	return r.fs.MkdirAll(cleanRemotePath(p), 0o755)
}

func (r *FsRemote) write(ctx context.Context, p string, body io.Reader, _ int64, appendMode bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}

	file, err := r.fs.OpenFile(cleanRemotePath(p), flags, 0o644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(file, &contextReader{ctx: ctx, reader: body}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (r *FsRemote) remove(_ context.Context, p string) error {
	return r.fs.Remove(cleanRemotePath(p))
}

func (r *FsRemote) supportsAppend() bool {
	return true
}

func newFsEntry(full string, info fs.FileInfo) *Entry {
	if info.IsDir() {
		return &Entry{FullPath: strings.TrimSuffix(full, "/") + "/", Kind: EntryDirectory}
	}
	return &Entry{FullPath: full, Kind: EntryFile, Size: info.Size()}
}

// contextReader stops a copy once the context is done
type contextReader struct {
	ctx    context.Context
	reader io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.reader.Read(p)
}

var (
	_ Remote      = (*FsRemote)(nil)
	_ objectStore = (*FsRemote)(nil)
)

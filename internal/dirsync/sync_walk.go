package dirsync

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"
)

// localEntry is a walked local directory or file
type localEntry struct {
	path    string
	rel     string
	size    int64
	modTime time.Time
}

// walkLocal enumerates every directory and file below root, depth first in the
// lexical order of filepath.WalkDir. root must end with a path separator so a symlinked
// root is followed. Unreadable entries below the root are logged and left out; a root
// that cannot be walked is an error, since an empty walk would empty the remote in Mirror mode.
func walkLocal(root string) (dirs, files []*localEntry, err error) {
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if path == root {
			if walkErr != nil {
				return walkErr
			}
			if !d.IsDir() {
				return fmt.Errorf("%s is not a directory", root)
			}
			return nil
		}

		if walkErr != nil {
			slog.Warn("sync walk", "op", OpError, "path", path, "error", walkErr)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := relPath(root, path)
		if err != nil {
			slog.Warn("sync walk", "op", OpError, "path", path, "error", err)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			slog.Warn("sync walk", "op", OpError, "path", path, "error", err)
			return nil
		}

		entry := &localEntry{path: path, rel: rel, modTime: info.ModTime()}
		if d.IsDir() {
			dirs = append(dirs, entry)
		} else {
			entry.size = info.Size()
			files = append(files, entry)
		}
		return nil
	})
	if walkErr != nil {
		return nil, nil, fmt.Errorf("%w %s: %w", ErrLocalRoot, root, walkErr)
	}

	return dirs, files, nil
}

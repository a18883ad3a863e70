package dirsync

import (
	"context"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/dirsync/internal/remote"
)

// cleanupRemote deletes remote files that are not in the existence index and returns how many were deleted.
//
// Cleanup is best-effort: listing and delete failures are dropped here and never reach the results.
// Remote directories are left in place even when they end up empty or orphaned.
func (e *Engine) cleanupRemote(ctx context.Context, run *syncRun) int {
	entries, err := e.remote.List(ctx, run.remoteRoot, true)
	if err != nil {
		slog.Warn("sync", "op", OpDeleteRemote, "status", "list failed", "path", run.remoteRoot, "error", err)
		return 0
	}

	deleted := 0
	attempted := mapset.NewThreadUnsafeSet[string]()
	for _, entry := range entries {
		if entry.Kind != remote.EntryFile || run.index.Contains(canonRemotePath(entry.FullPath)) {
			continue
		}
		if !attempted.Add(entry.FullPath) {
			continue
		}

		if err := e.remote.Delete(ctx, entry.FullPath); err != nil {
			// dropped on purpose, cleanup never reports failures to the caller
			slog.Debug("sync", "op", OpDeleteRemote, "status", "ignored error", "path", entry.FullPath, "error", err)
			continue
		}

		deleted++
		slog.Info("sync", "op", OpDeleteRemote, "path", entry.FullPath)
	}

	return deleted
}

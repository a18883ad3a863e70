package dirsync

import (
	"context"
	"fmt"
	"log/slog"
)

// reconcileDirectories makes sure every allowed local directory exists remotely.
// It completes before any file is transferred.
func (e *Engine) reconcileDirectories(ctx context.Context, run *syncRun, dirs []*localEntry) {
	for _, entry := range dirs {
		item := run.newItem(KindDirectory, entry)
		result := run.track(item)

		if !run.params.Rules.Allows(item) {
			result.markSkippedByRule()
			slog.Debug("sync", "op", OpSkipped, "reason", "rule", "path", item.RelPath)
			continue
		}

		exists, err := e.remote.Exists(ctx, item.RemotePath)
		if err != nil {
			result.markFailed(fmt.Errorf("check directory: %w", err))
			slog.Error("sync", "op", OpCreateDirectory, "path", item.RemotePath, "error", err)
			continue
		}

		if exists {
			result.Skipped = true
			continue
		}

		if err := e.remote.CreateDirectory(ctx, item.RemotePath); err != nil {
			result.markFailed(fmt.Errorf("create directory: %w", err))
			slog.Error("sync", "op", OpCreateDirectory, "path", item.RemotePath, "error", err)
			continue
		}

		result.Success = true
		slog.Info("sync", "op", OpCreateDirectory, "path", item.RemotePath)
	}
}

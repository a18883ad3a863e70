package dirsync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/openmined/dirsync/internal/remote"
)

// reconcileFiles transfers every allowed local file.
// Parent directories are never created here, the directory pass already did that.
func (e *Engine) reconcileFiles(ctx context.Context, run *syncRun, files []*localEntry) {
	for _, entry := range files {
		item := run.newItem(KindFile, entry)
		result := run.track(item)

		if !run.params.Rules.Allows(item) {
			result.markSkippedByRule()
			slog.Debug("sync", "op", OpSkipped, "reason", "rule", "path", item.RelPath)
			continue
		}

		// indexed before the transfer so a failed upload is never mirrored away
		run.index.Add(item.RemotePath)

		transferred, err := e.remote.Upload(ctx, &remote.UploadParams{
			LocalPath:     item.LocalPath,
			RemotePath:    item.RemotePath,
			ExistsPolicy:  run.params.ExistsPolicy,
			VerifyPolicy:  run.params.VerifyPolicy,
			Progress:      run.params.Progress,
			CreateParents: false,
		})
		if err != nil {
			result.markFailed(fmt.Errorf("upload: %w", err))
			slog.Error("sync", "op", OpUpload, "path", item.RemotePath, "error", err)
			continue
		}

		result.Success = true
		result.Skipped = !transferred

		if transferred {
			slog.Info("sync", "op", OpUpload, "path", item.RemotePath, "size", humanize.Bytes(uint64(item.Size)))
		} else {
			slog.Debug("sync", "op", OpSkipped, "reason", "exists policy", "policy", run.params.ExistsPolicy, "path", item.RemotePath)
		}
	}
}

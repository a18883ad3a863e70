package dirsync

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/openmined/dirsync/internal/remote"
	"github.com/openmined/dirsync/internal/utils"
)

// Engine reconciles a local tree against a Remote.
// It runs strictly sequentially: directories, then files, then (mirror only) cleanup.
type Engine struct {
	remote remote.Remote
}

func NewEngine(r remote.Remote) *Engine {
	return &Engine{remote: r}
}

// syncRun is the working state of one SyncDirectory call
type syncRun struct {
	params     *SyncParams
	localRoot  string
	remoteRoot string
	results    []*SyncResult
	index      *ExistenceIndex
}

func (run *syncRun) newItem(kind ItemKind, entry *localEntry) *SyncItem {
	item := &SyncItem{
		Kind:       kind,
		Name:       path.Base(entry.rel),
		LocalPath:  entry.path,
		RelPath:    entry.rel,
		RemotePath: mapRemotePath(run.remoteRoot, entry.rel, kind),
		ModTime:    entry.modTime,
	}
	if kind == KindFile {
		item.Size = entry.size
	}
	return item
}

// track appends the result for item to the ledger before its outcome is known
func (run *syncRun) track(item *SyncItem) *SyncResult {
	result := newSyncResult(item)
	run.results = append(run.results, result)
	return result
}

// SyncDirectory synchronizes params.LocalRoot into params.RemoteRoot and returns one result per walked item.
//
// Blank roots fail with ErrInvalidInput before any I/O. A missing local root is a no-op that returns an
// empty slice without touching the remote. Per-item failures are recorded in the results and never abort
// the run; mirror cleanup failures are dropped.
func (e *Engine) SyncDirectory(ctx context.Context, params *SyncParams) ([]*SyncResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	if !utils.DirExists(params.LocalRoot) {
		slog.Debug("sync", "status", "local root missing", "local", params.LocalRoot)
		return []*SyncResult{}, nil
	}

	run := &syncRun{
		params:     params,
		localRoot:  normLocalRoot(params.LocalRoot),
		remoteRoot: normRemoteRoot(params.RemoteRoot),
		results:    make([]*SyncResult, 0),
		index:      NewExistenceIndex(),
	}

	tStart := time.Now()
	slog.Info("sync start", "local", run.localRoot, "remote", run.remoteRoot, "mode", params.Mode,
		"exists", params.ExistsPolicy, "verify", params.VerifyPolicy, "rules", len(params.Rules))

	if err := e.ensureRemoteRoot(ctx, run.remoteRoot); err != nil {
		return nil, err
	}

	dirs, files, err := walkLocal(run.localRoot)
	if err != nil {
		return nil, err
	}
	tWalk := time.Since(tStart)

	e.reconcileDirectories(ctx, run, dirs)
	e.reconcileFiles(ctx, run, files)

	deleted := 0
	if params.Mode == ModeMirror {
		deleted = e.cleanupRemote(ctx, run)
	}

	summary := Summarize(run.results)
	slog.Info("sync done",
		"dirs", summary.Dirs,
		"files", summary.Files,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"skippedByRule", summary.SkippedByRule,
		"failed", summary.Failed,
		"remoteDeletes", deleted,
		"tsWalk", tWalk,
		"tsTotal", time.Since(tStart),
	)

	return run.results, nil
}

func (e *Engine) ensureRemoteRoot(ctx context.Context, remoteRoot string) error {
	exists, err := e.remote.Exists(ctx, remoteRoot)
	if err != nil {
		return fmt.Errorf("%w %s: %w", ErrRemoteRoot, remoteRoot, err)
	}
	if exists {
		return nil
	}

	if err := e.remote.CreateDirectory(ctx, remoteRoot); err != nil {
		return fmt.Errorf("%w %s: %w", ErrRemoteRoot, remoteRoot, err)
	}
	slog.Info("sync", "op", OpCreateDirectory, "path", remoteRoot)
	return nil
}

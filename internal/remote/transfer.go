package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"

	"github.com/openmined/dirsync/internal/utils"
)

// objectInfo is what a backend knows about a stored object
type objectInfo struct {
	Size  int64
	IsDir bool
}

// objectStore is the backend-specific half of an upload.
// Exists and verify policies are applied once, in upload, on top of it.
type objectStore interface {
	// stat returns ErrNotFound when nothing is stored at path
	stat(ctx context.Context, path string) (*objectInfo, error)
	// checksum returns the hex md5 of the stored object, or "" when the backend cannot tell
	checksum(ctx context.Context, path string) (string, error)
	dirExists(ctx context.Context, path string) (bool, error)
	mkdirAll(ctx context.Context, path string) error
	write(ctx context.Context, path string, body io.Reader, size int64, appendMode bool) error
	remove(ctx context.Context, path string) error
	supportsAppend() bool
}

// transferPlan is the outcome of applying the exists policy
type transferPlan struct {
	offset       int64 // bytes of the local file already present remotely
	appendMode   bool
	expectedSize int64
	// checksum is compared only when the remote ends up byte-identical to the local file
	checksum bool
}

func upload(ctx context.Context, store objectStore, params *UploadParams) (bool, error) {
	if params == nil {
		return false, errors.New("upload params are nil")
	}

	info, err := os.Stat(params.LocalPath)
	if err != nil {
		return false, fmt.Errorf("stat local file: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("%w: %s", ErrIsDirectory, params.LocalPath)
	}
	localSize := info.Size()

	parent := path.Dir(cleanRemotePath(params.RemotePath))
	if params.CreateParents {
		if err := store.mkdirAll(ctx, parent); err != nil {
			return false, fmt.Errorf("create parent %s: %w", parent, err)
		}
	} else {
		ok, err := store.dirExists(ctx, parent)
		if err != nil {
			return false, fmt.Errorf("check parent %s: %w", parent, err)
		}
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrParentNotFound, parent)
		}
	}

	plan, transfer, err := planTransfer(ctx, store, params, localSize)
	if err != nil || !transfer {
		return false, err
	}

	attempts := 1
	if params.VerifyPolicy.Has(VerifyRetry) && !plan.appendMode {
		attempts = maxVerifyAttempts
	}

	for attempt := 1; ; attempt++ {
		if err := send(ctx, store, params, plan, localSize); err != nil {
			return false, err
		}

		if params.VerifyPolicy == VerifyNone {
			return true, nil
		}

		ok, err := verify(ctx, store, params, plan)
		if err != nil {
			return false, fmt.Errorf("verify %s: %w", params.RemotePath, err)
		}
		if ok {
			return true, nil
		}

		slog.Warn("upload", "op", "verify", "status", "mismatch", "path", params.RemotePath, "attempt", attempt)
		if attempt >= attempts {
			break
		}

		// a retry always rewrites the whole file
		plan = &transferPlan{expectedSize: localSize, checksum: true}
	}

	// a deleted copy is never reported as transferred, with or without throw
	if params.VerifyPolicy.Has(VerifyDelete) {
		if err := store.remove(ctx, params.RemotePath); err != nil {
			slog.Warn("upload", "op", "verify", "status", "delete failed", "path", params.RemotePath, "error", err)
			return false, fmt.Errorf("%w: %s: delete bad copy: %w", ErrVerifyFailed, params.RemotePath, err)
		}
		return false, fmt.Errorf("%w: %s: remote copy deleted", ErrVerifyFailed, params.RemotePath)
	}

	if params.VerifyPolicy.Has(VerifyThrow) {
		return false, fmt.Errorf("%w: %s", ErrVerifyFailed, params.RemotePath)
	}

	return true, nil
}

// planTransfer applies the exists policy. The boolean is false when no transfer is needed.
func planTransfer(ctx context.Context, store objectStore, params *UploadParams, localSize int64) (*transferPlan, bool, error) {
	plan := &transferPlan{expectedSize: localSize, checksum: true}

	if params.ExistsPolicy == ExistsNoCheck {
		return plan, true, nil
	}

	remoteInfo, err := store.stat(ctx, params.RemotePath)
	if errors.Is(err, ErrNotFound) {
		return plan, true, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("stat remote file: %w", err)
	}

	if remoteInfo.IsDir {
		return nil, false, fmt.Errorf("%w: %s", ErrIsDirectory, params.RemotePath)
	}

	switch params.ExistsPolicy {
	case ExistsSkip:
		return nil, false, nil

	case ExistsResume:
		if remoteInfo.Size == localSize {
			return nil, false, nil
		}
		if remoteInfo.Size < localSize && store.supportsAppend() {
			plan.offset = remoteInfo.Size
			plan.appendMode = true
		}

	case ExistsAppend:
		if !store.supportsAppend() {
			return nil, false, fmt.Errorf("%w: %s", ErrUnsupportedPolicy, params.ExistsPolicy)
		}
		plan.appendMode = true
		plan.expectedSize = remoteInfo.Size + localSize
		plan.checksum = false
	}

	return plan, true, nil
}

func send(ctx context.Context, store objectStore, params *UploadParams, plan *transferPlan, localSize int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file, err := os.Open(params.LocalPath)
	if err != nil {
		return fmt.Errorf("open local file: %w", err)
	}
	defer file.Close()

	if plan.offset > 0 {
		if _, err := file.Seek(plan.offset, io.SeekStart); err != nil {
			return fmt.Errorf("seek local file: %w", err)
		}
	}

	body := newProgressReader(file, params, plan.offset, localSize)
	if err := store.write(ctx, params.RemotePath, body, localSize-plan.offset, plan.appendMode); err != nil {
		return fmt.Errorf("write %s: %w", params.RemotePath, err)
	}
	return nil
}

func verify(ctx context.Context, store objectStore, params *UploadParams, plan *transferPlan) (bool, error) {
	remoteInfo, err := store.stat(ctx, params.RemotePath)
	if err != nil {
		return false, err
	}
	if remoteInfo.Size != plan.expectedSize {
		return false, nil
	}

	if !plan.checksum {
		return true, nil
	}

	remoteSum, err := store.checksum(ctx, params.RemotePath)
	if err != nil {
		return false, err
	}
	if remoteSum == "" {
		return true, nil
	}

	localSum, err := utils.FileHash(params.LocalPath)
	if err != nil {
		return false, fmt.Errorf("hash local file: %w", err)
	}
	return localSum == remoteSum, nil
}

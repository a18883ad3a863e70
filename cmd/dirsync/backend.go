package main

import (
	"context"
	"fmt"

	"github.com/openmined/dirsync/internal/config"
	"github.com/openmined/dirsync/internal/remote"
	"github.com/openmined/dirsync/internal/utils"
)

// newRemote builds the backend selected by cfg
func newRemote(ctx context.Context, cfg *config.Config) (remote.Remote, error) {
	switch cfg.Backend {
	case config.BackendFs:
		if err := utils.EnsureDir(cfg.FsRoot); err != nil {
			return nil, fmt.Errorf("create fs root: %w", err)
		}
		return remote.NewOsFsRemote(cfg.FsRoot), nil
	case config.BackendS3:
		return remote.NewS3RemoteWithConfig(ctx, cfg.S3.RemoteConfig())
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}
}

// backendTarget names the remote store of a job, used for job ids and reports
func backendTarget(cfg *config.Config) string {
	if cfg.Backend == config.BackendS3 {
		return "s3://" + cfg.S3.Bucket
	}
	return "fs://" + cfg.FsRoot
}

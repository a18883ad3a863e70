package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/openmined/dirsync/internal/config"
	"github.com/openmined/dirsync/internal/utils"
	"github.com/openmined/dirsync/internal/watch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newWatchCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Synchronize now, then again whenever the local directory changes",
		Example: `  dirsync watch --local ~/notes --remote /notes --fs-root /mnt/backup --mode mirror
  dirsync watch --local ./site --remote /www --backend s3 --s3-bucket my-site --interval 1h`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadJobConfig(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromViper(v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if !utils.DirExists(cfg.LocalRoot) {
				return fmt.Errorf("watch %s: local root is not a directory", cfg.LocalRoot)
			}
			cmd.SilenceUsage = true

			stateDir, _ := cmd.Flags().GetString("state-dir")
			verbose, _ := cmd.Flags().GetBool("verbose")
			settle, _ := cmd.Flags().GetDuration("settle")
			interval, _ := cmd.Flags().GetDuration("interval")
			return watchSync(cmd, cfg, stateDir, settle, interval, verbose)
		},
	}

	cmd.Flags().SortFlags = false
	addJobFlags(cmd)
	addSyncFlags(cmd)
	cmd.Flags().Duration("settle", watch.DefaultSettle, "quiet period after a change before syncing")
	cmd.Flags().Duration("interval", 0, "also sync on this interval, 0 disables")

	return cmd
}

func watchSync(cmd *cobra.Command, cfg *config.Config, stateDir string, settle, interval time.Duration, verbose bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	closeLog, err := setupLogging(cfg.LogFile, cfg.Level)
	if err != nil {
		return err
	}
	defer closeLog()

	j, err := openJob(ctx, cfg, stateDir)
	if err != nil {
		return err
	}
	defer j.Close()

	w := watch.NewWatcher(cfg.LocalRoot)
	w.SetSettle(settle)
	w.FilterPaths(selfWrites(cfg, stateDir))
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("watch %s: %w", cfg.LocalRoot, err)
	}
	defer w.Stop()

	return watchLoop(ctx, j, w.Changes(), interval, cmd.OutOrStdout(), verbose)
}

// watchLoop runs one pass up front and another for every change batch or tick until ctx is done.
// Item failures are logged and retried by the next pass.
func watchLoop(ctx context.Context, j *job, changes <-chan []string, interval time.Duration, out io.Writer, verbose bool) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	pass := func(reason string, attrs ...any) error {
		slog.Info("watch sync", append([]any{"reason", reason}, attrs...)...)
		rep, err := j.runOnce(ctx, out, verbose)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if rep.Summary.HasFailures() {
			slog.Warn("watch sync had failures", "failed", rep.Summary.Failed)
		}
		return nil
	}

	if err := pass("start"); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("watch stopped")
			return nil
		case batch, ok := <-changes:
			if !ok {
				return nil
			}
			if err := pass("change", "paths", len(batch)); err != nil {
				return err
			}
		case <-tick:
			if err := pass("interval"); err != nil {
				return err
			}
		}
	}
}

// selfWrites drops events caused by dirsync itself when its outputs live inside the watched tree
func selfWrites(cfg *config.Config, stateDir string) watch.FilterCallback {
	var dirs []string
	if cfg.Backend == config.BackendFs {
		dirs = append(dirs, cfg.FsRoot)
	}
	if resolved, err := utils.ResolvePath(stateDir); err == nil {
		dirs = append(dirs, resolved)
	} else {
		slog.Warn("failed to resolve state dir", "error", err)
	}

	return func(path string) bool {
		if path == cfg.LogFile {
			return true
		}
		for _, dir := range dirs {
			if utils.IsWithin(path, dir) {
				return true
			}
		}
		return false
	}
}

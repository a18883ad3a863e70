package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/openmined/dirsync/internal/config"
	"github.com/openmined/dirsync/internal/dirsync"
	"github.com/openmined/dirsync/internal/remote"
	"github.com/openmined/dirsync/internal/report"
	"github.com/openmined/dirsync/internal/syncrules"
	"github.com/openmined/dirsync/internal/version"
	"github.com/openmined/dirsync/internal/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRunCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Synchronize a local directory into the remote store",
		Example: `  dirsync run --local ~/Photos --remote /photos --fs-root /mnt/backup --mode mirror
  dirsync run --local ./site --remote /www --backend s3 --s3-bucket my-site --exists skip --verify checksum+retry`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadJobConfig(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromViper(v)
			if err := cfg.Validate(); err != nil {
				return err
			}
			cmd.SilenceUsage = true

			if save, _ := cmd.Flags().GetBool("save-config"); save {
				path, _ := cmd.Flags().GetString("config")
				if err := cfg.Save(path); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
				slog.Info("config saved", "path", path)
			}

			stateDir, _ := cmd.Flags().GetString("state-dir")
			verbose, _ := cmd.Flags().GetBool("verbose")
			return runSync(cmd, cfg, stateDir, verbose)
		},
	}

	cmd.Flags().SortFlags = false
	addJobFlags(cmd)
	addSyncFlags(cmd)
	cmd.Flags().Bool("save-config", false, "write the effective job settings to the config file")

	return cmd
}

// addSyncFlags registers the flags that shape a sync pass and its output
func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mode", "m", "", "sync mode: update or mirror (default update)")
	cmd.Flags().String("exists", "", "when the remote file exists: nocheck, skip, overwrite, resume, append (default overwrite)")
	cmd.Flags().String("verify", "", "verification flags joined by '+': checksum, retry, delete, throw (default none)")
	cmd.Flags().String("rules", "", "YAML rule file")
	cmd.Flags().StringSlice("ignore", nil, "gitignore style pattern to skip, repeatable")
	cmd.Flags().String("max-size", "", "skip files larger than this, e.g. 100MB")
	cmd.Flags().String("log-file", "", "log file (default "+config.DefaultLogFilePath+")")
	cmd.Flags().String("log-level", "", "console log level: debug, info, warn, error (default info)")
	cmd.Flags().Bool("json", false, "print the report as JSON")
	cmd.Flags().BoolP("verbose", "v", false, "list every item in the report")
}

// addJobFlags registers the flags that identify a job: its endpoints and backend
func addJobFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("local", "l", "", "local directory to sync")
	cmd.Flags().StringP("remote", "r", "", "remote directory to sync into")
	cmd.Flags().String("backend", "", "remote backend: fs or s3 (default fs)")
	cmd.Flags().String("fs-root", "", "root directory of the fs backend")
	cmd.Flags().String("s3-bucket", "", "S3 bucket")
	cmd.Flags().String("s3-region", "", "S3 region (default "+config.DefaultRegion+")")
	cmd.Flags().String("s3-endpoint", "", "S3 compatible endpoint, e.g. http://localhost:9000 for MinIO")
	cmd.Flags().String("s3-access-key", "", "S3 access key (default AWS credential chain)")
	cmd.Flags().String("s3-secret-key", "", "S3 secret key")
	cmd.Flags().Bool("s3-accelerate", false, "use S3 transfer acceleration")
	cmd.Flags().String("state-dir", config.DefaultDir, "directory for locks and reports")
}

var flagKeys = map[string]string{
	"local":         "local",
	"remote":        "remote",
	"mode":          "mode",
	"exists":        "exists",
	"verify":        "verify",
	"rules":         "rules",
	"ignore":        "ignore",
	"max-size":      "max_size",
	"backend":       "backend",
	"fs-root":       "fs_root",
	"s3-bucket":     "s3.bucket",
	"s3-region":     "s3.region",
	"s3-endpoint":   "s3.endpoint",
	"s3-access-key": "s3.access_key",
	"s3-secret-key": "s3.secret_key",
	"s3-accelerate": "s3.use_accelerate",
	"log-file":      "log_file",
	"log-level":     "log_level",
	"json":          "json",
}

// loadJobConfig reads the config file and binds the command's flags over it
func loadJobConfig(cmd *cobra.Command, v *viper.Viper) error {
	config.SetDefaults(v)

	configPath, _ := cmd.Flags().GetString("config")
	if err := config.Load(v, configPath, cmd.Flags().Changed("config")); err != nil {
		return err
	}

	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}
	return nil
}

// job is an opened sync job: its lock is held until Close
type job struct {
	cfg    *config.Config
	ws     *workspace.Workspace
	id     string
	target string
	lock   *workspace.JobLock
	remote remote.Remote
}

func openJob(ctx context.Context, cfg *config.Config, stateDir string) (*job, error) {
	ws, err := workspace.NewWorkspace(stateDir)
	if err != nil {
		return nil, err
	}
	if err := ws.Setup(); err != nil {
		return nil, err
	}

	target := backendTarget(cfg)
	jobID := workspace.JobID(target, cfg.LocalRoot, cfg.RemoteRoot)
	lock, err := ws.LockJob(jobID)
	if err != nil {
		return nil, err
	}

	r, err := newRemote(ctx, cfg)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return &job{cfg: cfg, ws: ws, id: jobID, target: target, lock: lock, remote: r}, nil
}

func (j *job) Close() {
	if err := j.lock.Unlock(); err != nil {
		slog.Warn("failed to release job lock", "path", j.lock.Path(), "error", err)
	}
}

// runOnce performs one sync pass, saves its report and prints it to out
func (j *job) runOnce(ctx context.Context, out io.Writer, verbose bool) (*report.Report, error) {
	// rebuilt every pass so edits to the ignore and rule files apply
	rules, err := buildRules(j.cfg)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	slog.Info("dirsync", "version", version.Short(), "run", runID, "job", j.id, "config", j.cfg)

	rep := &report.Report{
		RunID:     runID,
		JobID:     j.id,
		Host:      report.HostID(),
		Backend:   j.target,
		Local:     j.cfg.LocalRoot,
		Remote:    j.cfg.RemoteRoot,
		Mode:      j.cfg.SyncMode.String(),
		Exists:    j.cfg.ExistsPolicy.String(),
		Verify:    j.cfg.VerifyPolicy.String(),
		StartedAt: time.Now(),
	}

	results, err := dirsync.NewEngine(j.remote).SyncDirectory(ctx, &dirsync.SyncParams{
		LocalRoot:    j.cfg.LocalRoot,
		RemoteRoot:   j.cfg.RemoteRoot,
		Mode:         j.cfg.SyncMode,
		ExistsPolicy: j.cfg.ExistsPolicy,
		VerifyPolicy: j.cfg.VerifyPolicy,
		Rules:        rules,
		Progress:     logProgress,
	})
	if err != nil {
		return nil, err
	}

	rep.Finish(results)
	if err := rep.Save(j.ws.ReportPath(j.id)); err != nil {
		slog.Warn("failed to save report", "error", err)
	}

	if j.cfg.JSON {
		if err := rep.WriteJSON(out); err != nil {
			return rep, err
		}
	} else {
		rep.Print(out, verbose)
	}
	return rep, nil
}

func runSync(cmd *cobra.Command, cfg *config.Config, stateDir string, verbose bool) error {
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

	rep, err := j.runOnce(ctx, cmd.OutOrStdout(), verbose)
	if err != nil {
		return err
	}
	if rep.Summary.HasFailures() {
		return ErrItemsFailed
	}
	return nil
}

// buildRules merges the rule file with the --ignore and --max-size flags
func buildRules(cfg *config.Config) (dirsync.RuleSet, error) {
	ruleCfg := &syncrules.RuleConfig{}
	if cfg.RulesFile != "" {
		fromFile, err := syncrules.LoadRuleFile(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		ruleCfg.Merge(fromFile)
	}
	ruleCfg.Merge(&syncrules.RuleConfig{Ignore: cfg.Ignore, MaxSize: cfg.MaxSize})
	return ruleCfg.Build(cfg.LocalRoot)
}

func logProgress(p remote.Progress) {
	slog.Debug("upload", "path", p.RemotePath,
		"progress", humanize.Bytes(uint64(p.Transferred))+"/"+humanize.Bytes(uint64(p.Total)))
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/dirsync/internal/config"
	"github.com/openmined/dirsync/internal/version"
	"github.com/spf13/cobra"
)

// ErrItemsFailed is returned when the run completed but at least one item failed
var ErrItemsFailed = errors.New("some items failed to sync")

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "dirsync",
		Short:         "Mirror or update a local directory tree into a remote store",
		Version:       version.Detailed(),
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "dirsync config file")
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func main() {
	// console logging until the run command knows where the log file goes
	slog.SetDefault(slog.New(newConsoleHandler(slog.LevelInfo)))

	// .env is optional, it usually carries the S3 credentials
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, ErrItemsFailed) {
			fmt.Fprintln(os.Stderr, red.Render("Error:"), err)
		}
		stop()
		os.Exit(1)
	}
}

func newConsoleHandler(level slog.Level) slog.Handler {
	return tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/openmined/dirsync/internal/utils"
)

// setupLogging sends logs to stderr and to logFile. The returned func flushes and closes the file.
func setupLogging(logFile string, level slog.Level) (func(), error) {
	if err := utils.EnsureParent(logFile); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logInterceptor := utils.NewLogInterceptor(file)
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		// the file always gets debug records
		Level: slog.LevelDebug,
		// time is added by the log interceptor
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	prev := slog.Default()
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(newConsoleHandler(level), fileHandler)))

	return func() {
		slog.SetDefault(prev)
		_ = logInterceptor.Close()
		_ = file.Close()
	}, nil
}

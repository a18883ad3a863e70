package workspace

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/openmined/dirsync/internal/utils"
)

const (
	logsDir    = "logs"
	locksDir   = "locks"
	reportsDir = "reports"
	lockExt    = ".lock"
	reportExt  = ".json"
)

var (
	ErrJobLocked = errors.New("sync job locked by another process")
)

// Workspace is the dirsync state directory (~/.dirsync by default)
type Workspace struct {
	Root       string
	LogsDir    string
	LocksDir   string
	ReportsDir string
}

func NewWorkspace(rootDir string) (*Workspace, error) {
	root, err := utils.ResolvePath(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", rootDir, err)
	}

	return &Workspace{
		Root:       root,
		LogsDir:    filepath.Join(root, logsDir),
		LocksDir:   filepath.Join(root, locksDir),
		ReportsDir: filepath.Join(root, reportsDir),
	}, nil
}

func (w *Workspace) Setup() error {
	dirs := []string{w.Root, w.LogsDir, w.LocksDir, w.ReportsDir}
	for _, dir := range dirs {
		if err := utils.EnsureDir(dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	slog.Debug("workspace", "root", w.Root)
	return nil
}

// JobID identifies a sync job by its endpoints. Two runs with the same id must not overlap.
func JobID(backend, localRoot, remoteRoot string) string {
	sum := sha1.Sum([]byte(backend + "|" + localRoot + "|" + remoteRoot))
	return hex.EncodeToString(sum[:])
}

// ReportPath is where the last report of a job is kept
func (w *Workspace) ReportPath(jobID string) string {
	return filepath.Join(w.ReportsDir, jobID+reportExt)
}

// JobLock is an inter-process lock on a single sync job
type JobLock struct {
	flock *flock.Flock
}

// LockJob takes the job's lock file without blocking. ErrJobLocked means another process runs the same job.
func (w *Workspace) LockJob(jobID string) (*JobLock, error) {
	if err := utils.EnsureDir(w.LocksDir); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", w.LocksDir, err)
	}

	lock := &JobLock{flock: flock.New(filepath.Join(w.LocksDir, jobID+lockExt))}
	locked, err := lock.flock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}
	if !locked {
		return nil, ErrJobLocked
	}

	return lock, nil
}

func (l *JobLock) Path() string {
	return l.flock.Path()
}

func (l *JobLock) Unlock() error {
	// not ours, leave the lock file alone
	if !l.flock.Locked() {
		return nil
	}

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock job: %w", err)
	}

	return os.Remove(l.flock.Path())
}

package dirsync

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openmined/dirsync/internal/remote"
)

var (
	ErrInvalidInput = errors.New("dirsync: invalid input")
	ErrRemoteRoot   = errors.New("dirsync: cannot ensure remote root")
	ErrLocalRoot    = errors.New("dirsync: cannot walk local root")
)

// SyncMode decides whether remote-only files are removed
type SyncMode string

const (
	// ModeMirror makes the remote tree an exact reflection of the local tree, deleting remote-only files
	ModeMirror SyncMode = "mirror"
	// ModeUpdate only adds or overwrites remote files
	ModeUpdate SyncMode = "update"
)

func (m SyncMode) String() string {
	return string(m)
}

// ParseSyncMode parses "mirror" or "update", case-insensitively
func ParseSyncMode(s string) (SyncMode, error) {
	switch mode := SyncMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case ModeMirror, ModeUpdate:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: unknown sync mode %q", ErrInvalidInput, s)
	}
}

// ItemKind is the kind of a walked local item
type ItemKind string

const (
	KindFile      ItemKind = "file"
	KindDirectory ItemKind = "directory"
)

// SyncItem describes a local item and where it maps to on the remote. Rules evaluate it.
type SyncItem struct {
	Kind       ItemKind
	Name       string
	LocalPath  string
	RelPath    string // slash separated, relative to the local root
	RemotePath string
	Size       int64
	ModTime    time.Time
}

// SyncResult is the outcome for one walked item.
// Skipped is also set for items that needed no work (existing directory, exists-policy no-op).
type SyncResult struct {
	Kind          ItemKind `json:"kind"`
	Name          string   `json:"name"`
	LocalPath     string   `json:"localPath"`
	RemotePath    string   `json:"remotePath"`
	Size          int64    `json:"size"`
	Success       bool     `json:"success"`
	Skipped       bool     `json:"skipped"`
	SkippedByRule bool     `json:"skippedByRule"`
	Failed        bool     `json:"failed"`
	Err           error    `json:"-"`
	Error         string   `json:"error,omitempty"`
}

func newSyncResult(item *SyncItem) *SyncResult {
	return &SyncResult{
		Kind:       item.Kind,
		Name:       item.Name,
		LocalPath:  item.LocalPath,
		RemotePath: item.RemotePath,
		Size:       item.Size,
	}
}

func (r *SyncResult) markSkippedByRule() {
	r.Skipped = true
	r.SkippedByRule = true
}

func (r *SyncResult) markFailed(err error) {
	r.Failed = true
	r.Err = err
	r.Error = err.Error()
}

// SyncParams are the inputs of a single SyncDirectory call.
// Rules and Progress are optional.
type SyncParams struct {
	LocalRoot    string
	RemoteRoot   string
	Mode         SyncMode
	ExistsPolicy remote.ExistsPolicy
	VerifyPolicy remote.VerifyPolicy
	Rules        RuleSet
	Progress     remote.ProgressFunc
}

func (p *SyncParams) validate() error {
	if p == nil {
		return fmt.Errorf("%w: params are nil", ErrInvalidInput)
	}
	if strings.TrimSpace(p.LocalRoot) == "" {
		return fmt.Errorf("%w: local root is blank", ErrInvalidInput)
	}
	if strings.TrimSpace(p.RemoteRoot) == "" {
		return fmt.Errorf("%w: remote root is blank", ErrInvalidInput)
	}
	if p.Mode != ModeMirror && p.Mode != ModeUpdate {
		return fmt.Errorf("%w: unknown sync mode %q", ErrInvalidInput, p.Mode)
	}
	return nil
}

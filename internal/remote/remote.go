package remote

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("remote: not found")
	ErrParentNotFound    = errors.New("remote: parent directory not found")
	ErrIsDirectory       = errors.New("remote: path is a directory")
	ErrVerifyFailed      = errors.New("remote: transfer verification failed")
	ErrUnsupportedPolicy = errors.New("remote: exists policy not supported by backend")
)

// EntryKind is the kind of a remote listing entry
type EntryKind int

const (
	EntryFile EntryKind = iota
	EntryDirectory
)

func (k EntryKind) String() string {
	if k == EntryDirectory {
		return "directory"
	}
	return "file"
}

// Entry is a single item returned by a remote listing.
// FullPath is slash separated and rooted at "/"; directories carry a trailing "/".
type Entry struct {
	FullPath string
	Kind     EntryKind
	Size     int64
}

// UploadParams describes a single file transfer.
type UploadParams struct {
	LocalPath    string
	RemotePath   string
	ExistsPolicy ExistsPolicy
	VerifyPolicy VerifyPolicy
	Progress     ProgressFunc

	// CreateParents creates the missing remote parent directories before the transfer.
	// When false, a missing parent fails the upload with ErrParentNotFound.
	CreateParents bool
}

// Remote is a file-transfer backend exposing a remote tree.
type Remote interface {
	// Exists reports whether a file or directory exists at path
	Exists(ctx context.Context, path string) (bool, error)

	// CreateDirectory creates the directory at path including missing intermediate segments.
	// It is idempotent.
	CreateDirectory(ctx context.Context, path string) error

	// Upload transfers a local file to the remote tree.
	// It returns true when bytes were actually transferred and false when the exists policy
	// made the transfer a no-op.
	Upload(ctx context.Context, params *UploadParams) (bool, error)

	// List returns the entries below path, recursively when requested.
	List(ctx context.Context, path string, recursive bool) ([]*Entry, error)

	// Delete removes the file at path
	Delete(ctx context.Context, path string) error
}

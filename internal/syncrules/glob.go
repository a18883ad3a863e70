package syncrules

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/openmined/dirsync/internal/dirsync"
)

// GlobRule filters by doublestar patterns on the relative path.
// Exclude patterns win. When include patterns are set a file must match one of them;
// directories are never rejected by include patterns so their contents are still walked.
type GlobRule struct {
	include []string
	exclude []string
}

func NewGlobRule(include, exclude []string) (*GlobRule, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: bad glob %q", ErrInvalidRule, p)
		}
	}
	return &GlobRule{include: include, exclude: exclude}, nil
}

func (r *GlobRule) Allows(item *dirsync.SyncItem) bool {
	if matchAny(r.exclude, item.RelPath) {
		return false
	}
	if len(r.include) == 0 || item.Kind == dirsync.KindDirectory {
		return true
	}
	return matchAny(r.include, item.RelPath)
}

func matchAny(patterns []string, relPath string) bool {
	for _, p := range patterns {
		if doublestar.MatchUnvalidated(p, relPath) {
			return true
		}
	}
	return false
}

var _ dirsync.Rule = (*GlobRule)(nil)

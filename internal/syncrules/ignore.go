package syncrules

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/openmined/dirsync/internal/dirsync"
	"github.com/openmined/dirsync/internal/utils"
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFileName is the per-tree ignore file, read from the local root
const IgnoreFileName = ".dirsyncignore"

var defaultIgnoreLines = []string{
	// dirsync
	IgnoreFileName,
	"*.dirsync-partial",
	// editors
	".vscode",
	".idea",
	"*.swp",
	"*~",
	// general excludes
	".git",
	"*.tmp",
	// OS-specific
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
}

// IgnoreRule rejects items matching gitignore-style patterns
type IgnoreRule struct {
	baseDir     string
	extraLines  []string
	useDefaults bool
	ignore      *gitignore.GitIgnore
}

// NewIgnoreRule builds an ignore rule for the tree at baseDir. extra lines are applied after the
// defaults and before the contents of the tree's ignore file.
func NewIgnoreRule(baseDir string, useDefaults bool, extra ...string) *IgnoreRule {
	r := &IgnoreRule{
		baseDir:     baseDir,
		extraLines:  extra,
		useDefaults: useDefaults,
	}
	r.Load()
	return r
}

// Load (re)compiles the patterns, picking up changes to the ignore file
func (r *IgnoreRule) Load() {
	var lines []string
	if r.useDefaults {
		lines = append(lines, defaultIgnoreLines...)
	}
	lines = append(lines, r.extraLines...)

	ignorePath := filepath.Join(r.baseDir, IgnoreFileName)
	if r.baseDir != "" && utils.FileExists(ignorePath) {
		fileLines, err := readIgnoreFile(ignorePath)
		if err != nil {
			slog.Warn("failed to read ignore file", "path", ignorePath, "error", err)
		} else {
			slog.Info("loaded ignore file", "path", ignorePath, "rules", len(fileLines))
			lines = append(lines, fileLines...)
		}
	}

	r.ignore = gitignore.CompileIgnoreLines(lines...)
}

func readIgnoreFile(ignorePath string) ([]string, error) {
	file, err := os.Open(ignorePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// ShouldIgnore matches a slash separated path relative to the base dir
func (r *IgnoreRule) ShouldIgnore(relPath string, isDir bool) bool {
	if isDir && !strings.HasSuffix(relPath, "/") {
		// lets directory-only patterns ("build/") match the directory itself
		relPath += "/"
	}
	return r.ignore.MatchesPath(relPath)
}

func (r *IgnoreRule) Allows(item *dirsync.SyncItem) bool {
	return !r.ShouldIgnore(item.RelPath, item.Kind == dirsync.KindDirectory)
}

var _ dirsync.Rule = (*IgnoreRule)(nil)

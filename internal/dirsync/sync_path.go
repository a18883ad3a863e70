package dirsync

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// normLocalRoot cleans the local root and gives it a trailing path separator
func normLocalRoot(root string) string {
	root = filepath.Clean(root)
	if !strings.HasSuffix(root, string(os.PathSeparator)) {
		root += string(os.PathSeparator)
	}
	return root
}

// normRemoteRoot canonicalizes a remote root: forward slashes, cleaned, rooted at "/" and ending with "/"
func normRemoteRoot(root string) string {
	root = path.Clean("/" + strings.ReplaceAll(root, "\\", "/"))
	if root != "/" {
		root += "/"
	}
	return root
}

// canonRemotePath is the form index entries are stored in. Listed remote paths are brought
// to it before lookup, so a stray key like "a//b.txt" matches the indexed "/a/b.txt".
func canonRemotePath(p string) string {
	return path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
}

// relPath is the slash separated path of localPath below localRoot
func relPath(localRoot, localPath string) (string, error) {
	rel, err := filepath.Rel(localRoot, localPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// mapRemotePath maps a relative local path below remoteRoot. Directories get a trailing "/".
func mapRemotePath(remoteRoot, rel string, kind ItemKind) string {
	remotePath := remoteRoot + strings.TrimLeft(rel, "/")
	if kind == KindDirectory && !strings.HasSuffix(remotePath, "/") {
		remotePath += "/"
	}
	return remotePath
}

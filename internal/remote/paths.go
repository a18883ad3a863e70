package remote

import (
	"path"
	"strings"
)

// cleanRemotePath turns any remote path into its canonical "/"-rooted form without a trailing slash
func cleanRemotePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return path.Clean("/" + p)
}

// objectKey maps a remote path to an object key ("" for the root)
func objectKey(p string) string {
	return strings.TrimPrefix(cleanRemotePath(p), "/")
}

// prefixKey maps a remote directory path to its key prefix ("" for the root, "a/b/" otherwise)
func prefixKey(p string) string {
	key := objectKey(p)
	if key == "" {
		return ""
	}
	return key + "/"
}

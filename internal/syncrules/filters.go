package syncrules

import (
	"path"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/openmined/dirsync/internal/dirsync"
)

// SizeRule rejects files larger than Max bytes. Max <= 0 disables it.
type SizeRule struct {
	Max int64
}

func (r SizeRule) Allows(item *dirsync.SyncItem) bool {
	if r.Max <= 0 || item.Kind == dirsync.KindDirectory {
		return true
	}
	return item.Size <= r.Max
}

// ExtensionRule filters files by extension, case-insensitively.
// A denied extension always loses; a non-empty allow set rejects everything else.
type ExtensionRule struct {
	allow mapset.Set[string]
	deny  mapset.Set[string]
}

func NewExtensionRule(allow, deny []string) *ExtensionRule {
	return &ExtensionRule{
		allow: extSet(allow),
		deny:  extSet(deny),
	}
}

func (r *ExtensionRule) Allows(item *dirsync.SyncItem) bool {
	if item.Kind == dirsync.KindDirectory {
		return true
	}

	ext := normExt(path.Ext(item.Name))
	if r.deny.Contains(ext) {
		return false
	}
	if r.allow.Cardinality() > 0 && !r.allow.Contains(ext) {
		return false
	}
	return true
}

func extSet(exts []string) mapset.Set[string] {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, ext := range exts {
		if ext = strings.TrimSpace(ext); ext != "" {
			set.Add(normExt(ext))
		}
	}
	return set
}

// normExt lower-cases an extension and gives it a leading dot. "" stays "" (no extension).
func normExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

var (
	_ dirsync.Rule = SizeRule{}
	_ dirsync.Rule = (*ExtensionRule)(nil)
)

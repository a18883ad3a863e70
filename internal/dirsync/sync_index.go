package dirsync

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// ExistenceIndex is the case-folded set of remote file paths a run intends to keep.
// Mirror cleanup deletes every listed remote file that is not in it.
type ExistenceIndex struct {
	paths mapset.Set[string]
}

func NewExistenceIndex() *ExistenceIndex {
	return &ExistenceIndex{paths: mapset.NewThreadUnsafeSet[string]()}
}

func (x *ExistenceIndex) Add(remotePath string) {
	x.paths.Add(foldPath(remotePath))
}

func (x *ExistenceIndex) Contains(remotePath string) bool {
	return x.paths.Contains(foldPath(remotePath))
}

func (x *ExistenceIndex) Len() int {
	return x.paths.Cardinality()
}

// foldPath is the single case-folding transform used for both insertion and lookup
func foldPath(p string) string {
	return strings.ToLower(p)
}

package dirsync

// Summary aggregates a result ledger
type Summary struct {
	Total         int   `json:"total"`
	Dirs          int   `json:"dirs"`
	Files         int   `json:"files"`
	Succeeded     int   `json:"succeeded"`
	Skipped       int   `json:"skipped"`
	SkippedByRule int   `json:"skippedByRule"`
	Failed        int   `json:"failed"`
	Bytes         int64 `json:"bytes"` // bytes of files actually transferred
}

func Summarize(results []*SyncResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Kind == KindDirectory {
			s.Dirs++
		} else {
			s.Files++
		}

		switch {
		case r.Failed:
			s.Failed++
		case r.SkippedByRule:
			s.SkippedByRule++
		case r.Skipped:
			s.Skipped++
		case r.Success:
			s.Succeeded++
			if r.Kind == KindFile {
				s.Bytes += r.Size
			}
		}
	}
	return s
}

// HasFailures reports whether any item failed
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

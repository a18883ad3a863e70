package remote

import (
	"io"
	"time"
)

const progressInterval = 500 * time.Millisecond

// Progress is a snapshot of a running file transfer
type Progress struct {
	LocalPath   string
	RemotePath  string
	Transferred int64
	Total       int64
}

// ProgressFunc receives transfer progress. It is invoked synchronously on the transferring goroutine.
type ProgressFunc func(p Progress)

// progressReader wraps the source of a transfer, counts the bytes read
// and reports them to the callback at most every progressInterval plus once at EOF.
type progressReader struct {
	reader       io.Reader
	progress     Progress
	callback     ProgressFunc
	lastCallback time.Time
}

func newProgressReader(r io.Reader, params *UploadParams, offset, total int64) io.Reader {
	if params.Progress == nil {
		return r
	}
	return &progressReader{
		reader: r,
		progress: Progress{
			LocalPath:   params.LocalPath,
			RemotePath:  params.RemotePath,
			Transferred: offset,
			Total:       total,
		},
		callback: params.Progress,
	}
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.progress.Transferred += int64(n)
	}

	now := time.Now()
	if now.Sub(pr.lastCallback) > progressInterval || err == io.EOF {
		pr.callback(pr.progress)
		pr.lastCallback = now
	}

	return n, err
}

package report

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/denisbrodbeck/machineid"
	"github.com/dustin/go-humanize"
	"github.com/openmined/dirsync/internal/dirsync"
	"github.com/openmined/dirsync/internal/utils"
	"github.com/openmined/dirsync/internal/version"
)

const hostIDLen = 16

var (
	red   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	green = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	cyan  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	gray  = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	bold  = lipgloss.NewStyle().Bold(true)
)

// Report is the persisted outcome of one run
type Report struct {
	RunID      string                `json:"runId"`
	JobID      string                `json:"jobId"`
	Host       string                `json:"host,omitempty"`
	Backend    string                `json:"backend"`
	Local      string                `json:"local"`
	Remote     string                `json:"remote"`
	Mode       string                `json:"mode"`
	Exists     string                `json:"exists"`
	Verify     string                `json:"verify"`
	StartedAt  time.Time             `json:"startedAt"`
	DurationMs int64                 `json:"durationMs"`
	Summary    dirsync.Summary       `json:"summary"`
	Results    []*dirsync.SyncResult `json:"results"`
}

// HostID identifies this machine without exposing its raw machine id. Empty when unavailable.
func HostID() string {
	id, err := machineid.ProtectedID(version.AppName)
	if err != nil {
		slog.Debug("machine id unavailable", "error", err)
		return ""
	}
	if len(id) > hostIDLen {
		id = id[:hostIDLen]
	}
	return id
}

// Finish stamps the duration and computes the summary
func (r *Report) Finish(results []*dirsync.SyncResult) {
	r.DurationMs = time.Since(r.StartedAt).Milliseconds()
	r.Results = results
	r.Summary = dirsync.Summarize(results)
}

func (r *Report) WriteJSON(w io.Writer) error {
	return jsonEncoder(w, r)
}

// Save writes the report through a temp file so readers never see a partial report
func (r *Report) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := r.WriteJSON(&buf); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Report
	if err := jsonUnmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &r, nil
}

// Print writes a human readable summary. Failed items are always listed, the rest only when verbose.
func (r *Report) Print(w io.Writer, verbose bool) {
	s := r.Summary

	fmt.Fprintf(w, "%s %s %s %s\n", bold.Render(r.Local), gray.Render("→"), bold.Render(r.Remote), gray.Render("("+r.Mode+", "+r.Backend+")"))
	fmt.Fprintf(w, "%s %d dirs, %d files\n", cyan.Render("scanned"), s.Dirs, s.Files)
	fmt.Fprintf(w, "%s %d (%s)\n", green.Render("synced "), s.Succeeded, humanize.Bytes(uint64(s.Bytes)))
	fmt.Fprintf(w, "%s %d unchanged, %d by rule\n", gray.Render("skipped"), s.Skipped, s.SkippedByRule)
	if s.Failed > 0 {
		fmt.Fprintf(w, "%s %d\n", red.Render("failed "), s.Failed)
	}

	for _, res := range r.Results {
		switch {
		case res.Failed:
			fmt.Fprintf(w, "  %s %s: %s\n", red.Render("✗"), res.LocalPath, res.Error)
		case !verbose:
			continue
		case res.SkippedByRule:
			fmt.Fprintf(w, "  %s %s\n", gray.Render("-"), gray.Render(res.LocalPath))
		case res.Skipped:
			fmt.Fprintf(w, "  %s %s\n", gray.Render("="), res.RemotePath)
		default:
			fmt.Fprintf(w, "  %s %s %s\n", green.Render("✓"), res.RemotePath, gray.Render(humanize.Bytes(uint64(res.Size))))
		}
	}

	footer := fmt.Sprintf("run %s in %s", r.RunID, time.Duration(r.DurationMs)*time.Millisecond)
	if r.Host != "" {
		footer += " on " + r.Host
	}
	fmt.Fprintf(w, "%s\n", gray.Render(footer))
}

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

const (
	devVersion  = "0.1.0-dev"
	devRevision = "HEAD"
)

// Set with -ldflags "-X github.com/openmined/dirsync/internal/version.Version=..." on release builds.
// Whatever is left unset is filled from the binary's build info.
var (
	AppName   = "dirsync"
	Version   = devVersion
	Revision  = devRevision
	BuildDate = ""
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok && info != nil {
		settings := make(map[string]string, len(info.Settings))
		for _, s := range info.Settings {
			settings[s.Key] = s.Value
		}
		applyBuildInfo(info.Main.Version, settings)
	}
}

func applyBuildInfo(mainVersion string, settings map[string]string) {
	if (Version == devVersion || Version == "") && mainVersion != "" && mainVersion != "(devel)" {
		Version = strings.TrimPrefix(mainVersion, "v")
	}

	if rev := settings["vcs.revision"]; rev != "" && (Revision == devRevision || Revision == "") {
		if settings["vcs.modified"] == "true" {
			rev += "-dirty"
		}
		Revision = rev
	}

	if BuildDate == "" {
		BuildDate = settings["vcs.time"]
	}
}

// Short returns `0.1.0 (5e23a4)`, used in run logs and reports
func Short() string {
	return fmt.Sprintf("%s (%s)", Version, Revision)
}

// Detailed returns `0.1.0 (5e23a4; go1.23.6; linux/amd64; 2025-01-01T00:00:00Z)`.
// The build date is left out when unknown.
func Detailed() string {
	parts := []string{Revision, runtime.Version(), runtime.GOOS + "/" + runtime.GOARCH}
	if BuildDate != "" {
		parts = append(parts, BuildDate)
	}
	return fmt.Sprintf("%s (%s)", Version, strings.Join(parts, "; "))
}

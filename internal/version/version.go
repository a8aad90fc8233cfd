package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"controller-dashboard/pkg/semver"
)

// version is set at build time with -ldflags "-X controller-dashboard/internal/version.version=..."
var (
	version = "0.0.0"
)

// Info describes the running binary.
type Info struct {
	Version        string `json:"version"`
	NumericVersion int    `json:"numericVersion"`
	Revision       string `json:"revision,omitempty"`
	GoVersion      string `json:"goVersion"`
}

func (i Info) String() string {
	s := fmt.Sprintf("dashboard %s (#%d) %s", i.Version, i.NumericVersion, i.GoVersion)
	if i.Revision != "" {
		s += " " + i.Revision
	}
	return s
}

// Get returns the version information of the running binary.
func Get() Info {
	info := Info{
		Version:        GetVersion(),
		NumericVersion: GetNumericVersion(),
		GoVersion:      runtime.Version(),
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Revision = s.Value
			}
		}
	}
	return info
}

func GetVersion() string {
	return version
}

func GetNumericVersion() int {
	return ParseNumericVersion(version)
}

// ParseNumericVersion packs a dotted version into one integer, three digits
// per component, e.g. "1.2.3" becomes 1002003.
func ParseNumericVersion(semVer string) int {
	return semver.Numeric(semVer)
}

// Package version provides application version and build info.
//
//nolint:revive
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

// AppName is the binary and user agent name.
const AppName = "hashdrop"

var (
	// Version is the current version of the application.
	// It can be overridden by ldflags at build time.
	Version = "dev"
	// CommitHash is the git commit hash at build time.
	// It can be overridden by ldflags at build time.
	CommitHash = ""
	// BuildTime is the time when the application was built.
	// It can be overridden by ldflags at build time.
	BuildTime = ""

	readBuildInfo sync.Once
)

func fillFromBuildInfo() {
	readBuildInfo.Do(func() {
		if CommitHash != "" {
			return
		}
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				CommitHash = setting.Value
			case "vcs.time":
				if BuildTime == "" {
					BuildTime = setting.Value
				}
			}
		}
	})
}

// GetInfo returns the version with a short commit hash, e.g. "v1.2.0 (abc1234)".
func GetInfo() string {
	fillFromBuildInfo()
	res := Version
	if CommitHash != "" {
		shortHash := CommitHash
		if len(shortHash) > 7 {
			shortHash = shortHash[:7]
		}
		res += fmt.Sprintf(" (%s)", shortHash)
	}
	return res
}

// UserAgent is sent on outbound HTTP requests.
func UserAgent() string {
	return AppName + "/" + Version
}

// Banner is the multi-line output of the version command.
func Banner() string {
	fillFromBuildInfo()
	s := fmt.Sprintf("%s %s", AppName, GetInfo())
	if BuildTime != "" {
		s += "\nbuilt " + BuildTime
	}
	return s
}

package wotrtl

// Version information for wotrtl.
// Version can be overridden at build time using ldflags:
//
//	go build -ldflags "-X github.com/wotrcz/wotrtl.Version=1.0.0"
const (
	// Name is the application name.
	Name = "wotrtl"

	// Description is a short description of the application.
	Description = "WotR translation toolkit - batch AI translation, audit and patching of game text"

	// Repository is the source code repository URL.
	Repository = "https://github.com/wotrcz/wotrtl"

	// License is the software license.
	License = "MIT"

	// DefaultModel is the model used when none is configured.
	DefaultModel = "gpt-5-mini"
)

// Build-time information, set via ldflags.
var (
	// Version is the semantic version of the application.
	Version = "0.3.0"

	// GitCommit is the git commit hash.
	GitCommit = "unknown"

	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// FullVersion returns the version string with optional build info.
func FullVersion() string {
	v := Version
	if GitCommit != "unknown" && GitCommit != "" {
		short := GitCommit
		if len(short) > 7 {
			short = short[:7]
		}
		v += "+" + short
	}
	return v
}

// UserAgent returns a user agent string for HTTP requests.
func UserAgent() string {
	return Name + "/" + FullVersion()
}

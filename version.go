package battlecard

var (
	// Version is the library semantic version (overridable via -ldflags).
	Version = "v0.4.0"
	// GitCommit is the git SHA (inject via -ldflags at build time).
	GitCommit = "unknown"
)

func defaultUserAgent() string {
	return "battlecard-go/" + Version
}

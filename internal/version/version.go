package version

// Version information, overridden at build time using -ldflags
var (
	// Version is the current version of the CLI
	Version = "dev"

	// Commit is the git commit hash
	Commit = "unknown"

	// BuildDate is when the binary was built
	BuildDate = "unknown"
)

// GetFullVersion returns detailed version information
func GetFullVersion() string {
	return "crewupload " + Version + " (commit: " + Commit + ", built: " + BuildDate + ")"
}

// UserAgent identifies the CLI to the upload service
func UserAgent() string {
	return "crewupload-cli/" + Version
}

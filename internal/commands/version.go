package commands

import "fmt"

// Build metadata, overridden at release time via -ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// PrintVersion prints build information for the binary itself.
func PrintVersion() {
	fmt.Printf("btscout %s (commit %s, built %s)\n", Version, Commit, Date)
}

// twinpane - dual-pane file manager for local disk and SFTP servers.
package main

import (
	"os"

	"github.com/rescale/twinpane/internal/cli"
	"github.com/rescale/twinpane/internal/version"
)

// Version information, overridden with -ldflags "-X main.Version=..."
var (
	Version   = "v0.3.0"
	BuildTime = "unknown"
)

func main() {
	// Set version in version package (canonical source for all packages)
	version.Version = Version
	version.BuildTime = BuildTime

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

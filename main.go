package main

import (
	"fmt"
	"os"

	"github.com/tphakala/invsync/cmd"
	"github.com/tphakala/invsync/internal/app"
	"github.com/tphakala/invsync/internal/conf"
)

// Set at build time with -ldflags "-X main.version=... -X main.buildDate=...".
var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	settings := &conf.Settings{}
	rootCmd := cmd.RootCommand(settings, app.BuildInfo{Version: version, BuildDate: buildDate})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

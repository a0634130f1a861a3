package main

import (
	"fmt"
	"os"
	// Schedules may name any IANA zone; embed the database for minimal images.
	_ "time/tzdata"

	"github.com/bissquit/oncall-garden/internal/cli"
)

// Build-time variables (set via ldflags).
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	app := cli.New()
	app.SetVersion(version, commit, date)

	if err := app.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Package cli implements the oncall-garden command line.
package cli

import (
	"github.com/bissquit/oncall-garden/internal/config"
	"github.com/bissquit/oncall-garden/internal/version"
	"github.com/spf13/cobra"
)

// App represents the CLI application.
type App struct {
	rootCmd    *cobra.Command
	configPath string
}

// New creates the CLI with all subcommands registered.
func New() *App {
	app := &App{}
	app.setupRootCmd()
	return app
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

// SetVersion records the build information reported by the process.
func (a *App) SetVersion(v, commit, date string) {
	version.Set(v, commit, date)
}

// Root returns the root command, mainly for tests.
func (a *App) Root() *cobra.Command {
	return a.rootCmd
}

func (a *App) setupRootCmd() {
	a.rootCmd = &cobra.Command{
		Use:   "oncall-garden",
		Short: "On-call rotation and incident escalation engine",
		Long: `oncall-garden resolves who is on call, escalates unacknowledged
incidents through their policies and notifies responders.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	a.rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"Path to a YAML config file (environment variables with the ONCALL_ prefix override it)")

	a.rootCmd.AddCommand(
		NewServeCmd(a),
		NewMigrateCmd(a),
		NewVersionCmd(a),
	)
}

func (a *App) loadConfig() (*config.Config, error) {
	return config.Load(a.configPath)
}

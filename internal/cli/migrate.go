package cli

import (
	"fmt"

	"github.com/bissquit/oncall-garden/internal/pkg/postgres"
	"github.com/spf13/cobra"
)

type migrateOptions struct {
	dir         string
	databaseURL string
}

// NewMigrateCmd creates the migrate command with up and down subcommands.
func NewMigrateCmd(a *App) *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.PersistentFlags().StringVar(&opts.dir, "dir", "migrations", "Directory containing migration files")
	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "",
		"Database URL; when empty it is read from the config")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return a.migrate(opts, true)
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return a.migrate(opts, false)
			},
		},
	)
	return cmd
}

func (a *App) migrate(opts *migrateOptions, up bool) error {
	url := opts.databaseURL
	if url == "" {
		cfg, err := a.loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		url = cfg.Database.URL
	}
	return postgres.Migrate(url, opts.dir, up)
}

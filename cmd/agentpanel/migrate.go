package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BaSui01/agentpanel/config"
	"github.com/BaSui01/agentpanel/internal/migration"
)

// =============================================================================
// Database Migration Commands
// =============================================================================

type migrateOptions struct {
	dbType string
	dbURL  string
	json   bool
}

func newMigrateCommand(load func() (*config.Config, error)) *cobra.Command {
	var opts migrateOptions

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Manage the discussions/messages schema used by the database store.

By default the connection comes from the database section of the config.
--db-type and --db-url together override it.

Examples:
  agentpanel migrate up
  agentpanel migrate up --config /etc/agentpanel/config.yaml
  agentpanel migrate down
  agentpanel migrate status
  agentpanel migrate status --json
  agentpanel migrate steps -- -1
  agentpanel migrate force 1
  agentpanel migrate up --db-type sqlite --db-url "file:./agentpanel.db"`,
	}
	cmd.PersistentFlags().StringVar(&opts.dbType, "db-type", "", "Database type: postgres, mysql, sqlite (default: from config)")
	cmd.PersistentFlags().StringVar(&opts.dbURL, "db-url", "", "Database connection URL (default: from config)")
	cmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Print version, status and info as JSON")

	run := func(fn func(ctx context.Context, cli *migration.CLI, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			m, err := createMigrator(load, opts)
			if err != nil {
				return err
			}
			defer m.Close()

			cli := migration.NewCLI(m)
			cli.SetOutput(cmd.OutOrStdout())
			cli.SetJSON(opts.json)
			if err := fn(cmd.Context(), cli, args); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", color.RedString("✗"), err)
				return err
			}
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, cli *migration.CLI, _ []string) error {
				return cli.RunUp(ctx)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the last migration",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, cli *migration.CLI, _ []string) error {
				return cli.RunDown(ctx)
			}),
		},
		&cobra.Command{
			Use:   "steps <n>",
			Short: "Apply n migrations, or roll back when n is negative",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, cli *migration.CLI, args []string) error {
				n, err := strconv.Atoi(args[0])
				if err != nil || n == 0 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return cli.RunSteps(ctx, n)
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Force the recorded version (use with caution)",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, cli *migration.CLI, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return cli.RunForce(ctx, v)
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, cli *migration.CLI, _ []string) error {
				return cli.RunVersion(ctx)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the status of every migration",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, cli *migration.CLI, _ []string) error {
				return cli.RunStatus(ctx)
			}),
		},
		&cobra.Command{
			Use:   "info",
			Short: "Show a migration summary",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, cli *migration.CLI, _ []string) error {
				return cli.RunInfo(ctx)
			}),
		},
	)
	return cmd
}

// createMigrator creates a migrator from flags, falling back to the config file
func createMigrator(load func() (*config.Config, error), opts migrateOptions) (*migration.DefaultMigrator, error) {
	if opts.dbType != "" && opts.dbURL != "" {
		return migration.NewMigratorFromURL(opts.dbType, opts.dbURL, zap.NewNop())
	}

	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if opts.dbType != "" {
		cfg.Database.Driver = opts.dbType
	}

	logger := initLogger(cfg.Log)
	return migration.NewMigratorFromDatabaseConfig(cfg.Database, logger)
}

package migration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
)

// CLI renders migrator operations for the agentpanel migrate command.
type CLI struct {
	migrator Migrator
	output   io.Writer
	json     bool
}

// NewCLI creates a CLI writing to stdout.
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

// SetOutput sets the writer for CLI messages.
func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

// SetJSON switches version, status and info to machine-readable output.
func (c *CLI) SetJSON(enabled bool) {
	c.json = enabled
}

// RunUp applies every pending migration.
func (c *CLI) RunUp(ctx context.Context) error {
	return c.change(ctx, "up", c.migrator.Up)
}

// RunDown rolls back the most recent migration.
func (c *CLI) RunDown(ctx context.Context) error {
	return c.change(ctx, "down", c.migrator.Down)
}

// RunSteps applies n migrations, or rolls back -n when n is negative.
func (c *CLI) RunSteps(ctx context.Context, n int) error {
	if n == 0 {
		return fmt.Errorf("steps: n must not be zero")
	}
	return c.change(ctx, fmt.Sprintf("steps %+d", n), func(ctx context.Context) error {
		return c.migrator.Steps(ctx, n)
	})
}

// RunForce records version without running any migration and clears the
// dirty flag.
func (c *CLI) RunForce(ctx context.Context, version int) error {
	return c.change(ctx, fmt.Sprintf("force %d", version), func(ctx context.Context) error {
		return c.migrator.Force(ctx, version)
	})
}

// change runs op and reports the schema version before and after it.
func (c *CLI) change(ctx context.Context, op string, fn func(context.Context) error) error {
	before, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("%s: read state: %w", op, err)
	}
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	after, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("%s: read state: %w", op, err)
	}

	if before.CurrentVersion == after.CurrentVersion && before.Dirty == after.Dirty {
		fmt.Fprintf(c.output, "%s %s: schema already at version %d\n", color.GreenString("✓"), op, after.CurrentVersion)
		return nil
	}
	fmt.Fprintf(c.output, "%s %s: version %d → %d (%d applied, %d pending)\n",
		color.GreenString("✓"), op, before.CurrentVersion, after.CurrentVersion,
		after.AppliedMigrations, after.PendingMigrations)
	return nil
}

// RunVersion prints the current schema version.
func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("version: %w", err)
	}
	if c.json {
		return c.encode(struct {
			Version uint `json:"version"`
			Dirty   bool `json:"dirty"`
		}{version, dirty})
	}

	switch {
	case version == 0:
		fmt.Fprintln(c.output, "No migrations applied yet.")
	case dirty:
		fmt.Fprintf(c.output, "Current version: %d %s\n", version, color.RedString("(dirty)"))
	default:
		fmt.Fprintf(c.output, "Current version: %d\n", version)
	}
	return nil
}

// RunStatus prints one row per embedded migration plus a summary line.
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if c.json {
		return c.encode(struct {
			Migrations []MigrationStatus `json:"migrations"`
			Summary    *MigrationInfo    `json:"summary"`
		}{statuses, info})
	}

	if len(statuses) == 0 {
		fmt.Fprintln(c.output, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, s := range statuses {
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, statusLabel(s))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.output, "\nTotal: %d, Applied: %d, Pending: %d\n",
		info.TotalMigrations, info.AppliedMigrations, info.PendingMigrations)
	return nil
}

// RunInfo prints the migration summary.
func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	if c.json {
		return c.encode(info)
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Current Version:\t%d\n", info.CurrentVersion)
	fmt.Fprintf(w, "Dirty:\t%v\n", info.Dirty)
	fmt.Fprintf(w, "Total Migrations:\t%d\n", info.TotalMigrations)
	fmt.Fprintf(w, "Applied Migrations:\t%d\n", info.AppliedMigrations)
	fmt.Fprintf(w, "Pending Migrations:\t%d\n", info.PendingMigrations)
	return w.Flush()
}

func (c *CLI) encode(v any) error {
	enc := json.NewEncoder(c.output)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func statusLabel(s MigrationStatus) string {
	switch {
	case s.Dirty:
		return color.RedString("dirty")
	case s.Applied:
		return color.GreenString("applied")
	default:
		return color.YellowString("pending")
	}
}

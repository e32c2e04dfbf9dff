package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/apply"
	"github.com/schemadrift/schemadrift/check"
	"github.com/schemadrift/schemadrift/describe"
	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/render"
	"github.com/schemadrift/schemadrift/schema"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Diff, check, and apply the migration from the connected database to a target schema",
	Long: `Apply runs the same pipeline as "diff" and then executes the
rendered statements against the connection, one at a time, stopping at the
first failure. Unexecutable findings block the run unless --force is set.
--dry-run wraps the whole run in a transaction that is always rolled back.`,
	RunE: runApply,
}

var (
	applyTo         string
	applyMigrations string
	applyShadowDB   string
	applyForce      bool
	applyDryRun     bool
)

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVar(&applyTo, "to", "", "path to the target schema.Schema JSON file")
	applyCmd.Flags().StringVar(&applyMigrations, "from-migrations", "", "materialize the target schema by replaying this migrations directory into the shadow database")
	applyCmd.Flags().StringVar(&applyShadowDB, "shadow-db", "", "override the shadow database connection string")
	applyCmd.Flags().BoolVar(&applyForce, "force", false, "apply even if the script contains unexecutable steps")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "run inside a transaction that is always rolled back")
	applyCmd.MarkFlagsOneRequired("to", "from-migrations")
	applyCmd.MarkFlagsMutuallyExclusive("to", "from-migrations")
}

func runApply(cmd *cobra.Command, args []string) error {
	connStr, err := resolveConnectionString(flagEnvironment)
	if err != nil {
		return err
	}

	db, f, err := openConnection(connStr)
	if err != nil {
		return err
	}
	defer db.Close()

	describer, err := describe.New(f, db)
	if err != nil {
		return err
	}

	ctx := context.Background()
	previous, err := describer.Describe(ctx, introspectSchemaName)
	if err != nil {
		return err
	}

	var next *schema.Schema
	if applyMigrations != "" {
		next, err = materializeFromMigrations(ctx, applyMigrations, applyShadowDB)
	} else {
		next, err = loadSchemaFile(applyTo)
	}
	if err != nil {
		return err
	}

	steps, err := diff.New(f).Diff(previous, next)
	if err != nil {
		return err
	}

	diagnostics := check.New(f, previous, next, newRowCounter(ctx, db, f)).Check(steps)
	if err := diagnostics.GuardError(); err != nil && !applyForce {
		fmt.Fprintln(os.Stderr, "refusing to apply a script with unexecutable steps; pass --force to override:")
		for _, u := range diagnostics.Unexecutables {
			fmt.Fprintf(os.Stderr, "  - %s\n", u.Message)
		}
		return err
	}

	script := render.Render(f, schema.MakePair(previous, next), steps, diagnostics)
	if script.IsEmpty() {
		fmt.Println("nothing to apply")
		return nil
	}

	if f == flavor.Postgres {
		if err := apply.ValidatePostgres(script); err != nil {
			return err
		}
	}

	return apply.Apply(ctx, db, script, apply.Options{
		DryRun:  applyDryRun,
		Verbose: flagVerbose,
	})
}

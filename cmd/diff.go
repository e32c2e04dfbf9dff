package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/check"
	"github.com/schemadrift/schemadrift/describe"
	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/render"
	"github.com/schemadrift/schemadrift/schema"
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compute and print the migration from the connected database to a target schema",
	Long: `Diff introspects the connected database as the "previous" schema,
loads the "next" schema from a JSON file (the shape "introspect" prints),
runs the differ and destructive-change checker, and prints the rendered
SQL script. Warnings are printed as a leading comment block; an
unexecutable finding causes diff to exit non-zero unless --force is set.`,
	RunE: runDiff,
}

var (
	diffTo         string
	diffMigrations string
	diffShadowDB   string
	diffForce      bool
)

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVar(&diffTo, "to", "", "path to the target schema.Schema JSON file")
	diffCmd.Flags().StringVar(&diffMigrations, "from-migrations", "", "materialize the target schema by replaying this migrations directory into the shadow database")
	diffCmd.Flags().StringVar(&diffShadowDB, "shadow-db", "", "override the shadow database connection string")
	diffCmd.Flags().BoolVar(&diffForce, "force", false, "print the script even if it contains unexecutable steps")
	diffCmd.MarkFlagsOneRequired("to", "from-migrations")
	diffCmd.MarkFlagsMutuallyExclusive("to", "from-migrations")
}

func runDiff(cmd *cobra.Command, args []string) error {
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
	if diffMigrations != "" {
		next, err = materializeFromMigrations(ctx, diffMigrations, diffShadowDB)
	} else {
		next, err = loadSchemaFile(diffTo)
	}
	if err != nil {
		return err
	}

	steps, err := diff.New(f).Diff(previous, next)
	if err != nil {
		return err
	}

	diagnostics := check.New(f, previous, next, newRowCounter(ctx, db, f)).Check(steps)
	if err := diagnostics.GuardError(); err != nil && !diffForce {
		fmt.Fprintln(os.Stderr, "refusing to print a script with unexecutable steps; pass --force to override:")
		for _, u := range diagnostics.Unexecutables {
			fmt.Fprintf(os.Stderr, "  - %s\n", u.Message)
		}
		return err
	}

	script := render.Render(f, schema.MakePair(previous, next), steps, diagnostics)
	fmt.Print(script.SQL())
	return nil
}

func loadSchemaFile(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: read target schema %s: %w", path, err)
	}
	if err := schema.Validate(data); err != nil {
		return nil, err
	}
	var s schema.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("cmd: parse target schema %s: %w", path, err)
	}
	return &s, nil
}

// liveRowCounter satisfies check.RowCounter against a live connection,
// caching counts per table since the checker may ask about the same table
// more than once across several steps.
type liveRowCounter struct {
	ctx    context.Context
	db     *sql.DB
	flavor flavor.Flavor
	cache  map[string]int64
}

func newRowCounter(ctx context.Context, db *sql.DB, f flavor.Flavor) check.RowCounter {
	return &liveRowCounter{ctx: ctx, db: db, flavor: f, cache: map[string]int64{}}
}

func (c *liveRowCounter) RowCount(table string) (int64, error) {
	if n, ok := c.cache[table]; ok {
		return n, nil
	}
	var n int64
	query := fmt.Sprintf("SELECT count(*) FROM %s", quoteIdent(c.flavor, table))
	if err := c.db.QueryRowContext(c.ctx, query).Scan(&n); err != nil {
		return 0, err
	}
	c.cache[table] = n
	return n, nil
}

// quoteIdent applies each flavor's identifier-quoting rule, matching the
// renderer's own quoting so row-count queries run against the same name
// the diff operates on.
func quoteIdent(f flavor.Flavor, name string) string {
	switch f {
	case flavor.MySQL, flavor.MariaDB:
		return "`" + name + "`"
	case flavor.MSSQL:
		return "[" + name + "]"
	default:
		return `"` + name + `"`
	}
}

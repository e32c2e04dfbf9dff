package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/describe"
)

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Introspect a database and print its schema as JSON",
	Long: `Introspect connects to a database, reads its catalog into the
schema model, and prints it as JSON. The output is the same shape "diff"
expects for its --to file, so introspecting one environment and feeding
the result to "diff" against another is a normal workflow.`,
	RunE: runIntrospect,
}

var (
	introspectSchemaName string
	introspectStats      bool
)

func init() {
	rootCmd.AddCommand(introspectCmd)
	introspectCmd.Flags().StringVar(&introspectSchemaName, "schema", "", "named schema/namespace to introspect (engine default if empty)")
	introspectCmd.Flags().BoolVar(&introspectStats, "stats", false, "also print the engine version, table count, and storage size to stderr")
}

func runIntrospect(cmd *cobra.Command, args []string) error {
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
	s, err := describer.Describe(ctx, introspectSchemaName)
	if err != nil {
		return err
	}

	if introspectStats {
		m, err := describer.Metadata(ctx, introspectSchemaName)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "engine:  %s %s\n", m.Flavor, m.Version)
		fmt.Fprintf(os.Stderr, "tables:  %d\n", m.TableCount)
		fmt.Fprintf(os.Stderr, "size:    %d bytes\n", m.SizeInBytes)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

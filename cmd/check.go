package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/schemadrift/schemadrift/check"
	"github.com/schemadrift/schemadrift/describe"
	"github.com/schemadrift/schemadrift/diff"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report destructive-change diagnostics without rendering or applying anything",
	Long: `Check runs the differ and destructive-change checker against the
connected database and a target schema file, and prints every warning and
unexecutable finding. It exits non-zero if any step is unexecutable.`,
	RunE: runCheck,
}

var checkTo string

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkTo, "to", "", "path to the target schema.Schema JSON file (required)")
	_ = checkCmd.MarkFlagRequired("to")
}

func runCheck(cmd *cobra.Command, args []string) error {
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

	next, err := loadSchemaFile(checkTo)
	if err != nil {
		return err
	}

	steps, err := diff.New(f).Diff(previous, next)
	if err != nil {
		return err
	}

	diagnostics := check.New(f, previous, next, newRowCounter(ctx, db, f)).Check(steps)
	if diagnostics.IsEmpty() {
		fmt.Println("no destructive changes found")
		return nil
	}
	for _, w := range diagnostics.Warnings {
		fmt.Printf("warning: %s\n", w.Message)
	}
	for _, u := range diagnostics.Unexecutables {
		fmt.Printf("unexecutable: %s\n", u.Message)
	}
	return diagnostics.GuardError()
}

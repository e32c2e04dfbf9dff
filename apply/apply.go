// Package apply executes a rendered render.Script against a live
// connection (component C6): one statement at a time, in order, stopping
// at the first failure. A verbose mode streams per-statement progress
// through github.com/fatih/color, and a dry-run mode runs the whole script
// inside a transaction that is always rolled back.
package apply

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/schemadrift/schemadrift/render"
)

// MigrationError reports exactly which statement failed and why, so a
// caller can show the operator precisely where a migration stopped.
type MigrationError struct {
	StepIndex int
	Statement string
	Cause     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("apply: step %d failed on statement %q: %v", e.StepIndex, e.Statement, e.Cause)
}
func (e *MigrationError) Unwrap() error { return e.Cause }

// Progress is one applied-statement notification, streamed to an optional
// callback so a CLI can render live progress.
type Progress struct {
	StepIndex   int
	StepCount   int
	Description string
	Statement   string
	Elapsed     time.Duration
}

// Options configures one Apply call.
type Options struct {
	// DryRun executes every statement inside a transaction that is always
	// rolled back at the end, so the caller can see whether the script
	// would succeed without committing it.
	DryRun bool
	// OnProgress, if set, is called after each statement completes
	// successfully.
	OnProgress func(Progress)
	// Verbose enables color-coded console progress: when set, each
	// statement is also printed to stdout via fatih/color as it runs,
	// independent of OnProgress.
	Verbose bool
}

// Apply executes script's statements in order against db. Execution is not
// implicitly wrapped in one transaction across all steps — only the
// statements that are naturally transactional (the Postgres enum rebuild,
// the MSSQL ALTER TABLE group and table rebuild) carry their own
// BEGIN/COMMIT. DryRun is the
// one exception: it wraps the entire script in a transaction so nothing is
// ever persisted.
func Apply(ctx context.Context, db *sql.DB, script render.Script, opts Options) error {
	if opts.DryRun {
		return applyDryRun(ctx, db, script, opts)
	}

	stepCount := len(script.Steps)
	for i, step := range script.Steps {
		start := time.Now()
		for _, stmt := range step.Statements {
			if opts.Verbose {
				color.New(color.FgCyan).Printf("[%d/%d] %s\n", i+1, stepCount, step.Description)
				color.New(color.FgWhite).Printf("  %s\n", stmt)
			}
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				if opts.Verbose {
					color.New(color.FgRed).Printf("  failed: %v\n", err)
				}
				return &MigrationError{StepIndex: i, Statement: stmt, Cause: err}
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if opts.OnProgress != nil {
				opts.OnProgress(Progress{StepIndex: i, StepCount: stepCount, Description: step.Description, Statement: stmt, Elapsed: time.Since(start)})
			}
		}
		if opts.Verbose {
			color.New(color.FgGreen).Printf("  ok (%s)\n", time.Since(start).Round(time.Millisecond))
		}
	}
	return nil
}

func applyDryRun(ctx context.Context, db *sql.DB, script render.Script, opts Options) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply: dry run begin: %w", err)
	}
	defer tx.Rollback()

	stepCount := len(script.Steps)
	for i, step := range script.Steps {
		for _, stmt := range step.Statements {
			if opts.Verbose {
				color.New(color.FgYellow).Printf("[dry-run %d/%d] %s\n", i+1, stepCount, stmt)
			}
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return &MigrationError{StepIndex: i, Statement: stmt, Cause: err}
			}
			if opts.OnProgress != nil {
				opts.OnProgress(Progress{StepIndex: i, StepCount: stepCount, Description: step.Description, Statement: stmt})
			}
		}
	}
	return nil
}

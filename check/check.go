// Package check implements the destructive-change checker (C4): given the
// step list produced by package diff and the previous schema, it decides
// which steps are safe, which merely warrant a warning, and which must be
// refused outright unless the caller explicitly forces them.
//
// The "usable default" rule applied here is engine-agnostic: on a
// non-empty table, a column that is added, made, or dropped and recreated
// as required without a usable default is unexecutable, since existing rows
// could not be back-filled. A risky cast on a non-empty table warns
// whatever the column's default.
package check

import (
	"fmt"

	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

// Severity classifies one diagnostic.
type Severity int

const (
	// Warning means the step is destructive (data loss) but will proceed:
	// warnings never trip GuardError.
	Warning Severity = iota
	// Unexecutable means the step cannot be safely applied at all without
	// an explicit --force; applying it is refused by default.
	Unexecutable
)

// Diagnostic is one finding attached to a specific step.
type Diagnostic struct {
	Severity  Severity
	StepIndex int
	Message   string
}

// RowCounter reports how many rows a table currently holds. Implementations
// typically run "SELECT count(*) FROM <table>" lazily and cache per table,
// since most migrations touch only empty tables in CI/dev.
type RowCounter interface {
	RowCount(table string) (int64, error)
}

// LockMode classifies the lock a step's statements hold on Postgres-family
// engines for the duration of their execution. It supplements the
// destructive-change diagnostics with an operational-safety dimension,
// classifying directly off the typed diff.Step rather than pattern-matching
// rendered SQL text.
type LockMode int

const (
	// LockAccessShare is the weakest lock: reads proceed unimpeded.
	LockAccessShare LockMode = iota
	// LockRowExclusive is held by row-level writes; concurrent reads and
	// most DDL on unrelated rows proceed.
	LockRowExclusive
	// LockShare is held by plain CREATE INDEX: blocks writes, not reads.
	LockShare
	// LockShareUpdateExclusive is held by CREATE INDEX CONCURRENTLY and
	// constraint validation: blocks other DDL but not reads or writes.
	LockShareUpdateExclusive
	// LockAccessExclusive is the strongest lock: blocks all concurrent
	// access, including plain reads, for the statement's duration.
	LockAccessExclusive
)

func (m LockMode) String() string {
	switch m {
	case LockAccessShare:
		return "ACCESS SHARE"
	case LockRowExclusive:
		return "ROW EXCLUSIVE"
	case LockShare:
		return "SHARE"
	case LockShareUpdateExclusive:
		return "SHARE UPDATE EXCLUSIVE"
	case LockAccessExclusive:
		return "ACCESS EXCLUSIVE"
	default:
		return "ACCESS EXCLUSIVE"
	}
}

// StepLock pairs a step index with the lock mode its statements hold.
type StepLock struct {
	StepIndex int
	Mode      LockMode
}

// LockModeForStep classifies the lock a single step holds. CreateTable
// takes no lock on an existing object (the table doesn't exist yet);
// CreateIndex takes SHARE; everything else that rewrites or drops a table
// is conservatively ACCESS EXCLUSIVE, matching Postgres's actual behavior
// for plain (non-CONCURRENTLY) DDL.
func LockModeForStep(step diff.Step) LockMode {
	switch step.Kind {
	case diff.CreateTable, diff.CreateEnum:
		return LockAccessShare
	case diff.CreateIndex:
		return LockShare
	case diff.AlterEnum:
		return LockShareUpdateExclusive
	default:
		return LockAccessExclusive
	}
}

// Diagnostics is the checker's report: the steps that warrant a Warning
// and the ones that are Unexecutable without force, plus a lock-mode
// annotation for every step. A step with no finding is not listed in
// Warnings or Unexecutables.
type Diagnostics struct {
	Warnings      []Diagnostic
	Unexecutables []Diagnostic
	Locks         []StepLock
}

func (d *Diagnostics) IsEmpty() bool { return len(d.Warnings) == 0 && len(d.Unexecutables) == 0 }

// DestructiveGuardError is returned by GuardError when the diagnostics
// contain unexecutable findings and the caller has not forced the run.
// It is recoverable: the caller may re-invoke with force.
type DestructiveGuardError struct {
	Unexecutables []Diagnostic
}

func (e *DestructiveGuardError) Error() string {
	return fmt.Sprintf("check: %d unexecutable step(s); pass force to override", len(e.Unexecutables))
}

// GuardError returns a *DestructiveGuardError if any step was flagged
// unexecutable, or nil when the script may proceed. Warnings never trip
// the guard.
func (d *Diagnostics) GuardError() error {
	if len(d.Unexecutables) == 0 {
		return nil
	}
	return &DestructiveGuardError{Unexecutables: d.Unexecutables}
}

func (d *Diagnostics) warn(stepIndex int, format string, args ...any) {
	d.Warnings = append(d.Warnings, Diagnostic{Severity: Warning, StepIndex: stepIndex, Message: fmt.Sprintf(format, args...)})
}

func (d *Diagnostics) block(stepIndex int, format string, args ...any) {
	d.Unexecutables = append(d.Unexecutables, Diagnostic{Severity: Unexecutable, StepIndex: stepIndex, Message: fmt.Sprintf(format, args...)})
}

// Checker runs the destructive-change rules for one flavor against a
// (previous, next) schema pair. Next is required because "is the
// replacement default usable" can only be answered by looking at the
// column as it will exist after the migration.
type Checker struct {
	Flavor   flavor.Flavor
	Previous *schema.Schema
	Next     *schema.Schema
	Rows     RowCounter
}

// New constructs a Checker. rows may be nil, in which case every table is
// conservatively treated as non-empty (the safest default: warnings
// without a live connection are never silently downgraded).
func New(f flavor.Flavor, previous, next *schema.Schema, rows RowCounter) *Checker {
	return &Checker{Flavor: f, Previous: previous, Next: next, Rows: rows}
}

func (c *Checker) nonEmpty(table string) bool {
	if c.Rows == nil {
		return true
	}
	n, err := c.Rows.RowCount(table)
	if err != nil {
		return true
	}
	return n > 0
}

// Check walks steps and returns every Warning/Unexecutable finding.
func (c *Checker) Check(steps []diff.Step) Diagnostics {
	var d Diagnostics
	for i, step := range steps {
		d.Locks = append(d.Locks, StepLock{StepIndex: i, Mode: LockModeForStep(step)})
		switch step.Kind {
		case diff.DropTable:
			c.checkDropTable(&d, i, step.DropTablePayload)
		case diff.AlterTable:
			c.checkAlterTable(&d, i, step.AlterTablePayload)
		case diff.RedefineTables:
			c.checkRedefineTables(&d, i, step.RedefineTablesPay)
		case diff.DropForeignKey:
			// Dropping a foreign key never loses data; no finding.
		}
	}
	return d
}

func (c *Checker) checkDropTable(d *Diagnostics, stepIndex int, s *diff.DropTableStep) {
	table := c.Previous.Tables[s.Table]
	if c.nonEmpty(table.Name) {
		d.warn(stepIndex, "table %q is being dropped and may contain data", table.Name)
	}
}

func (c *Checker) checkAlterTable(d *Diagnostics, stepIndex int, s *diff.AlterTableStep) {
	prevTable := c.Previous.Tables[s.Tables.Previous]
	nextTable := c.Next.Tables[s.Tables.Next]
	for _, change := range s.Changes {
		c.checkTableChange(d, stepIndex, prevTable, nextTable, change)
	}
}

func (c *Checker) checkRedefineTables(d *Diagnostics, stepIndex int, s *diff.RedefineTablesStep) {
	for _, rt := range s.Tables {
		prevTable := c.Previous.Tables[rt.Tables.Previous]
		nextTable := c.Next.Tables[rt.Tables.Next]
		for _, change := range rt.Changes {
			c.checkTableChange(d, stepIndex, prevTable, nextTable, change)
		}
	}
}

func (c *Checker) checkTableChange(d *Diagnostics, stepIndex int, prevTable, nextTable schema.Table, change diff.TableChange) {
	switch change.Kind {
	case diff.DropColumn:
		col := prevTable.Columns[change.Columns.Previous]
		if c.nonEmpty(prevTable.Name) {
			d.warn(stepIndex, "column %q on table %q is being dropped and may contain data", col.Name, prevTable.Name)
		}

	case diff.AddColumn:
		col := nextTable.Columns[change.Columns.Next]
		if col.Type.Arity.IsRequired() && !col.Default.IsUsable() && c.nonEmpty(prevTable.Name) {
			d.block(stepIndex, "required column %q added to non-empty table %q without a usable default", col.Name, prevTable.Name)
		}

	case diff.DropAndRecreateColumn:
		c.checkDropAndRecreateColumn(d, stepIndex, prevTable, nextTable, change)

	case diff.AlterColumn:
		c.checkAlterColumn(d, stepIndex, prevTable, nextTable, change)

	case diff.DropPrimaryKey:
		// Unconditional: losing a primary key changes row identity even
		// when the table currently holds no rows.
		d.warn(stepIndex, "primary key on table %q is being dropped", prevTable.Name)
	}
}

// checkAlterColumn: a RiskyCast warrants a warning; making a nullable
// column required on a non-empty table without a usable default is
// unexecutable.
func (c *Checker) checkAlterColumn(d *Diagnostics, stepIndex int, prevTable, nextTable schema.Table, change diff.TableChange) {
	prevCol := prevTable.Columns[change.Columns.Previous]
	nextCol := nextTable.Columns[change.Columns.Next]

	arityChanged, _ := classify(change.Changes)
	becameRequired := arityChanged && prevCol.Type.Arity.IsNullable() && nextCol.Type.Arity.IsRequired()

	if becameRequired && c.nonEmpty(prevTable.Name) {
		if !nextCol.Default.IsUsable() {
			d.block(stepIndex, "column %q on table %q becomes required without a usable default on a non-empty table", prevCol.Name, prevTable.Name)
			return
		}
	}

	if change.TypeChange == flavor.RiskyCast && c.nonEmpty(prevTable.Name) {
		d.warn(stepIndex, "column %q on table %q changes type in a way that may fail or truncate existing data", prevCol.Name, prevTable.Name)
	}
}

// checkDropAndRecreateColumn mirrors check_drop_and_recreate_column: on a
// non-empty table, required-without-default and a NotCastable type change
// are both unexecutable, and any other drop-and-recreate is a warning. An
// empty table gets no finding.
func (c *Checker) checkDropAndRecreateColumn(d *Diagnostics, stepIndex int, prevTable, nextTable schema.Table, change diff.TableChange) {
	prevCol := prevTable.Columns[change.Columns.Previous]
	nextCol := nextTable.Columns[change.Columns.Next]

	if !c.nonEmpty(prevTable.Name) {
		return
	}

	if nextCol.Type.Arity.IsRequired() && !nextCol.Default.IsUsable() {
		d.block(stepIndex, "column %q on table %q is dropped and recreated as required, with no usable default to back-fill existing rows", prevCol.Name, prevTable.Name)
		return
	}

	if change.TypeChange == flavor.NotCastable {
		d.block(stepIndex, "column %q on table %q changes to a type that cannot be cast from %q; existing values cannot be preserved", prevCol.Name, prevTable.Name, prevCol.Type.Family)
		return
	}

	d.warn(stepIndex, "column %q on table %q is being dropped and recreated; its values will be lost", prevCol.Name, prevTable.Name)
}

func classify(changes []diff.ColumnChange) (arityChanged, defaultChanged bool) {
	for _, c := range changes {
		switch c.Kind {
		case diff.ColumnArityChanged:
			arityChanged = true
		case diff.ColumnDefaultChanged:
			defaultChanged = true
		}
	}
	return
}

// Package diff computes the ordered set of migration steps needed to move
// a schema from one state (previous) to another (next).
//
// The step alphabet is modeled as tagged-variant data consumed by an
// exhaustive match in package render, not as polymorphic Step objects with
// per-type Render methods: each Step pairs a StepKind tag with a
// pre-populated payload, leaving rendering entirely to package render.
package diff

import (
	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

// StepKind tags the variant held by a Step.
type StepKind int

const (
	CreateEnum StepKind = iota
	DropEnum
	AlterEnum
	CreateTable
	DropTable
	AlterTable
	AddForeignKey
	DropForeignKey
	CreateIndex
	DropIndex
	AlterIndex
	RedefineIndex
	RedefineTables
)

func (k StepKind) String() string {
	switch k {
	case CreateEnum:
		return "CreateEnum"
	case DropEnum:
		return "DropEnum"
	case AlterEnum:
		return "AlterEnum"
	case CreateTable:
		return "CreateTable"
	case DropTable:
		return "DropTable"
	case AlterTable:
		return "AlterTable"
	case AddForeignKey:
		return "AddForeignKey"
	case DropForeignKey:
		return "DropForeignKey"
	case CreateIndex:
		return "CreateIndex"
	case DropIndex:
		return "DropIndex"
	case AlterIndex:
		return "AlterIndex"
	case RedefineIndex:
		return "RedefineIndex"
	case RedefineTables:
		return "RedefineTables"
	default:
		return "Unknown"
	}
}

// Step is one tagged member of the migration step alphabet. Exactly one of
// the per-kind payload fields is populated, selected by Kind; package
// render switches on Kind and ignores the rest.
type Step struct {
	Kind StepKind

	CreateEnumPayload  *CreateEnumStep
	DropEnumPayload    *DropEnumStep
	AlterEnumPayload   *AlterEnumStep
	CreateTablePayload *CreateTableStep
	DropTablePayload   *DropTableStep
	AlterTablePayload  *AlterTableStep
	AddFKPayload       *AddForeignKeyStep
	DropFKPayload      *DropForeignKeyStep
	CreateIndexPayload *CreateIndexStep
	DropIndexPayload   *DropIndexStep
	AlterIndexPayload  *AlterIndexStep
	RedefineIndexPay   *RedefineIndexStep
	RedefineTablesPay  *RedefineTablesStep
}

// CreateEnumStep creates a new enum type.
type CreateEnumStep struct {
	Enum schema.EnumIndex
}

// DropEnumStep drops an existing enum type.
type DropEnumStep struct {
	Enum schema.EnumIndex // index into the previous schema
}

// AlterEnumStep changes the variant set of an existing enum in place
// (Postgres ADD VALUE, or a full rebuild if variants were removed/reordered
// on an engine without ALTER TYPE ... ADD VALUE semantics).
type AlterEnumStep struct {
	Enums           schema.Pair[schema.EnumIndex]
	AddedVariants   []string
	DroppedVariants []string
	// OrderChanged means the variant order changed (Postgres: requires a
	// full CREATE TYPE/swap protocol instead of incremental ADD VALUE).
	OrderChanged bool
}

// CreateTableStep creates a new table, including its initial columns,
// primary key and indexes (but not its foreign keys — those are separate
// AddForeignKey steps, except on SQLite, whose CREATE TABLE declares them
// inline).
type CreateTableStep struct {
	Table schema.TableIndex
}

// DropTableStep drops an existing table.
type DropTableStep struct {
	Table schema.TableIndex // index into the previous schema
}

// ColumnChangeKind tags one atomic difference found on a single column.
type ColumnChangeKind int

const (
	ColumnTypeChanged ColumnChangeKind = iota
	ColumnArityChanged
	ColumnDefaultChanged
	ColumnAutoIncrementChanged
)

// ColumnChange is one atomic difference between the previous and next
// version of the same column.
type ColumnChange struct {
	Kind ColumnChangeKind
}

// TableChangeKind tags the variant held by a TableChange.
type TableChangeKind int

const (
	AddColumn TableChangeKind = iota
	DropColumn
	AlterColumn
	DropAndRecreateColumn
	AddPrimaryKey
	DropPrimaryKey
)

// TableChange is one in-place modification to an existing table, part of
// an AlterTableStep.
type TableChange struct {
	Kind TableChangeKind

	// Columns identifies the affected column(s) by position. For AddColumn
	// only Columns.Next is meaningful; for DropColumn only Columns.Previous.
	Columns schema.Pair[int]

	// Changes lists the atomic diffs driving an AlterColumn; empty for
	// other kinds.
	Changes []ColumnChange

	// TypeChange classifies how risky the type portion of Changes is, set
	// only when ColumnTypeChanged is present.
	TypeChange flavor.TypeChange
}

// AlterTableStep bundles every in-place change to one existing table.
// Table identifies the table by its (previous, next) index pair, since the
// table itself was matched by name but keeps distinct positions in each
// schema value.
type AlterTableStep struct {
	Tables  schema.Pair[schema.TableIndex]
	Changes []TableChange
}

// AddForeignKeyStep adds a new foreign key to an existing table.
type AddForeignKeyStep struct {
	Table      schema.TableIndex // index into the next schema
	ForeignKey int               // index into Table's ForeignKeys in the next schema
}

// DropForeignKeyStep drops an existing foreign key.
type DropForeignKeyStep struct {
	Table      schema.TableIndex // index into the previous schema
	ForeignKey int               // index into Table's ForeignKeys in the previous schema
}

// CreateIndexStep creates a new index on an existing table.
type CreateIndexStep struct {
	Table schema.TableIndex // index into the next schema
	Index int
}

// DropIndexStep drops an existing index.
type DropIndexStep struct {
	Table schema.TableIndex // index into the previous schema
	Index int
}

// AlterIndexStep renames an index in place (Postgres ALTER INDEX ...
// RENAME TO, MySQL RENAME INDEX, MSSQL sp_rename; SQLite has no rename
// and uses RedefineIndex instead).
type AlterIndexStep struct {
	Tables  schema.Pair[schema.TableIndex]
	Indexes schema.Pair[int]
}

// RedefineIndexStep drops and recreates a renamed index on an engine
// without an in-place rename (SQLite).
type RedefineIndexStep struct {
	Tables  schema.Pair[schema.TableIndex]
	Indexes schema.Pair[int]
}

// RedefineTablesStep rebuilds one or more tables via the copy-to-new-table
// protocol, for engines (SQLite; MSSQL in some identity-toggle cases) that
// cannot express certain column alterations in place. It carries a list of
// (previous, next) table pairs so that tables linked by foreign keys can be
// rebuilt inside one PRAGMA foreign_keys=OFF window.
type RedefineTablesStep struct {
	Tables []RedefineTable
}

// RedefineTable is one table rebuilt within a RedefineTablesStep.
type RedefineTable struct {
	Tables  schema.Pair[schema.TableIndex]
	Changes []TableChange
}

package diff

import (
	"testing"

	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

func catSchema() *schema.Schema {
	return &schema.Schema{
		Tables: []schema.Table{{
			Name:       "Cat",
			Columns:    []schema.Column{{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt}}},
			PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
		}},
	}
}

func TestDiffSelfIsEmpty(t *testing.T) {
	s := catSchema()
	steps, err := New(flavor.Postgres).Diff(s, s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("expected no steps diffing a schema against itself, got %d", len(steps))
	}
}

// Adding a required column with a default to a table produces a single
// AddColumn TableChange and no destructive-rebuild decision.
func TestDiffAddRequiredColumnWithDefault(t *testing.T) {
	previous := catSchema()
	next := catSchema()
	next.Tables[0].Columns = append(next.Tables[0].Columns, schema.Column{
		Name: "name",
		Type: schema.ColumnType{Family: schema.FamilyString},
		Default: &schema.Default{
			Kind:  schema.DefaultKindValue,
			Value: schema.Value{Kind: schema.ValueString, Str: "anon"},
		},
	})

	steps, err := New(flavor.Postgres).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 || steps[0].Kind != AlterTable {
		t.Fatalf("expected a single AlterTable step, got %+v", steps)
	}
	changes := steps[0].AlterTablePayload.Changes
	if len(changes) != 1 || changes[0].Kind != AddColumn {
		t.Fatalf("expected a single AddColumn change, got %+v", changes)
	}
}

// On SQLite, an in-place type change on an existing column forces a
// RedefineTables step rather than an AlterTable.
func TestDiffSQLiteColumnTypeChangeForcesRedefine(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{
		Name: "Cat",
		Columns: []schema.Column{
			{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt}},
			{Name: "boxId", Type: schema.ColumnType{Family: schema.FamilyString}},
		},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}
	next := &schema.Schema{Tables: []schema.Table{{
		Name: "Cat",
		Columns: []schema.Column{
			{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt}},
			{Name: "boxId", Type: schema.ColumnType{Family: schema.FamilyInt}},
		},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}

	steps, err := New(flavor.SQLite).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 || steps[0].Kind != RedefineTables {
		t.Fatalf("expected a single RedefineTables step, got %+v", steps)
	}
}

// MSSQL cannot add or remove IDENTITY on an existing column; the toggle
// must route the table through the rebuild protocol rather than an
// in-place AlterTable.
func TestDiffMSSQLAutoIncrementToggleForcesRedefine(t *testing.T) {
	previous := catSchema()
	next := catSchema()
	next.Tables[0].Columns[0].AutoIncrement = true

	steps, err := New(flavor.MSSQL).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 || steps[0].Kind != RedefineTables {
		t.Fatalf("expected a single RedefineTables step, got %+v", steps)
	}

	// The same toggle stays an in-place AlterTable on Postgres, which can
	// attach and drop sequence defaults without a rebuild.
	steps, err = New(flavor.Postgres).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 || steps[0].Kind != AlterTable {
		t.Fatalf("expected a single AlterTable step on postgres, got %+v", steps)
	}
}

func TestDiffEnumAddVariant(t *testing.T) {
	previous := &schema.Schema{Enums: []schema.Enum{{Name: "Color", Variants: []string{"Red", "Blue"}}}}
	next := &schema.Schema{Enums: []schema.Enum{{Name: "Color", Variants: []string{"Red", "Blue", "Green"}}}}

	steps, err := New(flavor.Postgres).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 || steps[0].Kind != AlterEnum {
		t.Fatalf("expected a single AlterEnum step, got %+v", steps)
	}
	payload := steps[0].AlterEnumPayload
	if len(payload.AddedVariants) != 1 || payload.AddedVariants[0] != "Green" {
		t.Fatalf("expected Green to be the only added variant, got %v", payload.AddedVariants)
	}
	if len(payload.DroppedVariants) != 0 {
		t.Fatalf("expected no dropped variants, got %v", payload.DroppedVariants)
	}
}

// Altering the variant set of an enum on a flavor without a native enum
// type is a diff error, not a silently-dropped or panicking step.
func TestDiffEnumAlterUnsupportedOnMySQLFails(t *testing.T) {
	previous := &schema.Schema{Enums: []schema.Enum{{Name: "Color", Variants: []string{"Red"}}}}
	next := &schema.Schema{Enums: []schema.Enum{{Name: "Color", Variants: []string{"Red", "Green"}}}}

	_, err := New(flavor.MySQL).Diff(previous, next)
	if err == nil {
		t.Fatal("expected an error altering an enum's variants on MySQL")
	}
	var diffErr *Error
	if !asError(err, &diffErr) {
		t.Fatalf("expected a *diff.Error, got %T: %v", err, err)
	}
}

func asError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	*target = e
	return true
}

func TestDiffCreateAndDropTable(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{Name: "Old"}}}
	next := &schema.Schema{Tables: []schema.Table{{Name: "New"}}}

	steps, err := New(flavor.Postgres).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sawCreate, sawDrop bool
	for _, s := range steps {
		switch s.Kind {
		case CreateTable:
			sawCreate = true
		case DropTable:
			sawDrop = true
		}
	}
	if !sawCreate || !sawDrop {
		t.Fatalf("expected both a CreateTable and a DropTable step, got %+v", steps)
	}
}

// SQLite declares foreign keys inline on CREATE TABLE, so adding one to an
// existing column must route the table through the rebuild protocol; no
// standalone AddForeignKey step may survive.
func TestDiffSQLiteForeignKeyChangeForcesRedefine(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{
		{Name: "Post", Columns: []schema.Column{{Name: "authorId"}}},
		{Name: "User", Columns: []schema.Column{{Name: "id"}}},
	}}
	next := &schema.Schema{Tables: []schema.Table{
		{Name: "Post", Columns: []schema.Column{{Name: "authorId"}}, ForeignKeys: []schema.ForeignKey{
			{Columns: []string{"authorId"}, ReferencedTable: "User", ReferencedColumns: []string{"id"}},
		}},
		{Name: "User", Columns: []schema.Column{{Name: "id"}}},
	}}

	steps, err := New(flavor.SQLite).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 || steps[0].Kind != RedefineTables {
		t.Fatalf("expected a single RedefineTables step, got %+v", steps)
	}
	for _, s := range steps {
		if s.Kind == AddForeignKey || s.Kind == DropForeignKey {
			t.Fatalf("standalone foreign key step leaked on sqlite: %+v", s)
		}
	}
}

// A same-shape index rename stays an in-place AlterIndex on engines with a
// rename statement, and becomes a drop-and-recreate RedefineIndex on
// SQLite, which has none.
func TestDiffIndexRenamePerFlavor(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{
		Name:    "Cat",
		Columns: []schema.Column{{Name: "name"}},
		Indexes: []schema.Index{{Name: "Cat_name_idx", Columns: []string{"name"}}},
	}}}
	next := &schema.Schema{Tables: []schema.Table{{
		Name:    "Cat",
		Columns: []schema.Column{{Name: "name"}},
		Indexes: []schema.Index{{Name: "Cat_name_index", Columns: []string{"name"}}},
	}}}

	steps, err := New(flavor.Postgres).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 || steps[0].Kind != AlterIndex {
		t.Fatalf("expected a single AlterIndex step on postgres, got %+v", steps)
	}

	steps, err = New(flavor.SQLite).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 || steps[0].Kind != RedefineIndex {
		t.Fatalf("expected a single RedefineIndex step on sqlite, got %+v", steps)
	}
}

func TestDiffForeignKeyDropped(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{
		{Name: "Post", Columns: []schema.Column{{Name: "authorId"}}, ForeignKeys: []schema.ForeignKey{
			{Columns: []string{"authorId"}, ReferencedTable: "User", ReferencedColumns: []string{"id"}},
		}},
		{Name: "User", Columns: []schema.Column{{Name: "id"}}},
	}}
	next := &schema.Schema{Tables: []schema.Table{
		{Name: "Post", Columns: []schema.Column{{Name: "authorId"}}},
		{Name: "User", Columns: []schema.Column{{Name: "id"}}},
	}}

	steps, err := New(flavor.Postgres).Diff(previous, next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 1 || steps[0].Kind != DropForeignKey {
		t.Fatalf("expected a single DropForeignKey step, got %+v", steps)
	}
}

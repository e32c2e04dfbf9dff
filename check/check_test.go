package check

import (
	"testing"

	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

type fixedRowCounter map[string]int64

func (f fixedRowCounter) RowCount(table string) (int64, error) { return f[table], nil }

func TestCheckDropTableWarnsWhenNonEmpty(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{Name: "Cat"}}}
	steps := []diff.Step{{Kind: diff.DropTable, DropTablePayload: &diff.DropTableStep{Table: 0}}}

	c := New(flavor.Postgres, previous, previous, fixedRowCounter{"Cat": 5})
	d := c.Check(steps)

	if len(d.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %+v", d.Warnings)
	}
}

func TestCheckDropTableSilentWhenEmpty(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{Name: "Cat"}}}
	steps := []diff.Step{{Kind: diff.DropTable, DropTablePayload: &diff.DropTableStep{Table: 0}}}

	c := New(flavor.Postgres, previous, previous, fixedRowCounter{"Cat": 0})
	d := c.Check(steps)

	if len(d.Warnings) != 0 {
		t.Fatalf("expected no warnings for an empty table, got %+v", d.Warnings)
	}
}

// Dropping a primary key warns regardless of row count: losing row
// identity matters even on a table that happens to be empty right now.
func TestCheckDropPrimaryKeyWarnsEvenOnEmptyTable(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{
		Name:       "Cat",
		Columns:    []schema.Column{{Name: "id"}},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}
	next := &schema.Schema{Tables: []schema.Table{{
		Name:    "Cat",
		Columns: []schema.Column{{Name: "id"}},
	}}}
	steps := []diff.Step{{Kind: diff.AlterTable, AlterTablePayload: &diff.AlterTableStep{
		Tables:  schema.MakePair[schema.TableIndex](0, 0),
		Changes: []diff.TableChange{{Kind: diff.DropPrimaryKey}},
	}}}

	c := New(flavor.Postgres, previous, next, fixedRowCounter{"Cat": 0})
	d := c.Check(steps)

	if len(d.Warnings) != 1 {
		t.Fatalf("expected 1 warning, got %+v", d.Warnings)
	}
}

func TestCheckAddRequiredColumnWithoutDefaultBlocksOnNonEmptyTable(t *testing.T) {
	prevTable := schema.Table{Name: "Cat", Columns: []schema.Column{{Name: "id"}}}
	nextTable := schema.Table{Name: "Cat", Columns: []schema.Column{
		{Name: "id"},
		{Name: "name", Type: schema.ColumnType{Family: schema.FamilyString, Arity: schema.Required}},
	}}
	previous := &schema.Schema{Tables: []schema.Table{prevTable}}
	next := &schema.Schema{Tables: []schema.Table{nextTable}}

	steps := []diff.Step{{
		Kind: diff.AlterTable,
		AlterTablePayload: &diff.AlterTableStep{
			Tables:  schema.MakePair[schema.TableIndex](0, 0),
			Changes: []diff.TableChange{{Kind: diff.AddColumn, Columns: schema.MakePair(-1, 1)}},
		},
	}}

	c := New(flavor.Postgres, previous, next, fixedRowCounter{"Cat": 3})
	d := c.Check(steps)

	if len(d.Unexecutables) != 1 {
		t.Fatalf("expected 1 unexecutable finding, got warnings=%+v unexecutables=%+v", d.Warnings, d.Unexecutables)
	}
}

func TestCheckAddRequiredColumnWithDefaultIsFine(t *testing.T) {
	prevTable := schema.Table{Name: "Cat", Columns: []schema.Column{{Name: "id"}}}
	nextTable := schema.Table{Name: "Cat", Columns: []schema.Column{
		{Name: "id"},
		{
			Name:    "name",
			Type:    schema.ColumnType{Family: schema.FamilyString, Arity: schema.Required},
			Default: &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueString, Str: "anon"}},
		},
	}}
	previous := &schema.Schema{Tables: []schema.Table{prevTable}}
	next := &schema.Schema{Tables: []schema.Table{nextTable}}

	steps := []diff.Step{{
		Kind: diff.AlterTable,
		AlterTablePayload: &diff.AlterTableStep{
			Tables:  schema.MakePair[schema.TableIndex](0, 0),
			Changes: []diff.TableChange{{Kind: diff.AddColumn, Columns: schema.MakePair(-1, 1)}},
		},
	}}

	c := New(flavor.Postgres, previous, next, fixedRowCounter{"Cat": 3})
	d := c.Check(steps)

	if !d.IsEmpty() {
		t.Fatalf("expected no findings, got warnings=%+v unexecutables=%+v", d.Warnings, d.Unexecutables)
	}
}

func TestCheckAlterColumnRiskyCastWarns(t *testing.T) {
	prevTable := schema.Table{Name: "Cat", Columns: []schema.Column{{Name: "age", Type: schema.ColumnType{Family: schema.FamilyString}}}}
	nextTable := schema.Table{Name: "Cat", Columns: []schema.Column{{Name: "age", Type: schema.ColumnType{Family: schema.FamilyInt}}}}
	previous := &schema.Schema{Tables: []schema.Table{prevTable}}
	next := &schema.Schema{Tables: []schema.Table{nextTable}}

	steps := []diff.Step{{
		Kind: diff.AlterTable,
		AlterTablePayload: &diff.AlterTableStep{
			Tables: schema.MakePair[schema.TableIndex](0, 0),
			Changes: []diff.TableChange{{
				Kind:       diff.AlterColumn,
				Columns:    schema.MakePair(0, 0),
				Changes:    []diff.ColumnChange{{Kind: diff.ColumnTypeChanged}},
				TypeChange: flavor.RiskyCast,
			}},
		},
	}}

	c := New(flavor.Postgres, previous, next, fixedRowCounter{"Cat": 1})
	d := c.Check(steps)

	if len(d.Warnings) != 1 {
		t.Fatalf("expected 1 warning for a risky cast, got %+v", d.Warnings)
	}
}

func TestCheckNilRowCounterTreatsTablesAsNonEmpty(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{Name: "Cat"}}}
	steps := []diff.Step{{Kind: diff.DropTable, DropTablePayload: &diff.DropTableStep{Table: 0}}}

	c := New(flavor.Postgres, previous, previous, nil)
	d := c.Check(steps)

	if len(d.Warnings) != 1 {
		t.Fatalf("expected a warning when no row counter is available, got %+v", d.Warnings)
	}
}

func TestLockModeForStep(t *testing.T) {
	cases := []struct {
		kind diff.StepKind
		want LockMode
	}{
		{diff.CreateTable, LockAccessShare},
		{diff.CreateEnum, LockAccessShare},
		{diff.CreateIndex, LockShare},
		{diff.AlterEnum, LockShareUpdateExclusive},
		{diff.DropTable, LockAccessExclusive},
		{diff.AlterTable, LockAccessExclusive},
	}
	for _, c := range cases {
		if got := LockModeForStep(diff.Step{Kind: c.kind}); got != c.want {
			t.Errorf("LockModeForStep(%s) = %v, want %v", c.kind, got, c.want)
		}
	}
}

func TestCheckAttachesLockPerStep(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{Name: "Cat"}}}
	steps := []diff.Step{
		{Kind: diff.CreateTable, CreateTablePayload: &diff.CreateTableStep{Table: 0}},
		{Kind: diff.DropTable, DropTablePayload: &diff.DropTableStep{Table: 0}},
	}

	c := New(flavor.Postgres, previous, previous, fixedRowCounter{"Cat": 0})
	d := c.Check(steps)

	if len(d.Locks) != 2 {
		t.Fatalf("expected one lock entry per step, got %d", len(d.Locks))
	}
	if d.Locks[0].Mode != LockAccessShare || d.Locks[1].Mode != LockAccessExclusive {
		t.Fatalf("unexpected lock modes: %+v", d.Locks)
	}
}

package render

import (
	"strings"
	"testing"

	"github.com/schemadrift/schemadrift/check"
	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

func TestScriptIsEmpty(t *testing.T) {
	empty := Script{Steps: []RenderedStep{{Description: "noop"}}}
	if !empty.IsEmpty() {
		t.Fatal("expected a script with no statements to be empty")
	}

	nonEmpty := Script{Steps: []RenderedStep{{Description: "create table", Statements: []string{"CREATE TABLE x();"}}}}
	if nonEmpty.IsEmpty() {
		t.Fatal("expected a script with statements not to be empty")
	}
}

func TestScriptSQLEmptyMigration(t *testing.T) {
	s := Script{}
	if got := s.SQL(); got != "-- This is an empty migration.\n" {
		t.Fatalf("unexpected empty migration text: %q", got)
	}
}

func TestScriptSQLIncludesWarningsAndStatements(t *testing.T) {
	s := Script{
		Steps: []RenderedStep{{Description: "drop table \"Cat\"", Statements: []string{`DROP TABLE "Cat";`}}},
		Diagnostics: check.Diagnostics{
			Warnings: []check.Diagnostic{{StepIndex: 0, Message: "table \"Cat\" is being dropped and may contain data"}},
		},
	}
	out := s.SQL()
	if !strings.Contains(out, "Warnings:") {
		t.Errorf("expected a Warnings section, got %q", out)
	}
	if !strings.Contains(out, `DROP TABLE "Cat";`) {
		t.Errorf("expected the rendered statement, got %q", out)
	}
}

func pgSchemaPair() schema.Pair[*schema.Schema] {
	return schema.MakePair(&schema.Schema{}, &schema.Schema{})
}

func TestPostgresRenderCreateTable(t *testing.T) {
	next := &schema.Schema{Tables: []schema.Table{{
		Name: "Cat",
		Columns: []schema.Column{
			{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}, AutoIncrement: true},
			{Name: "name", Type: schema.ColumnType{Family: schema.FamilyString, Arity: schema.Required}},
		},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
		RLSEnabled: true,
	}}}
	step := diff.Step{Kind: diff.CreateTable, CreateTablePayload: &diff.CreateTableStep{Table: 0}}

	r := New(flavor.Postgres)
	rendered := r.RenderStep(schema.MakePair((*schema.Schema)(nil), next), step)

	sql := strings.Join(rendered.Statements, "\n")
	if !strings.Contains(sql, `CREATE TABLE "Cat"`) {
		t.Errorf("expected a CREATE TABLE statement, got %q", sql)
	}
	if !strings.Contains(sql, "SERIAL") {
		t.Errorf("expected an autoincrement int column to render as SERIAL, got %q", sql)
	}
	if !strings.Contains(sql, "ENABLE ROW LEVEL SECURITY") {
		t.Errorf("expected RLS to be enabled, got %q", sql)
	}
}

func TestPostgresRenderAlterEnumAddValueOnly(t *testing.T) {
	schemas := pgSchemaPair()
	schemas.Next.Enums = []schema.Enum{{Name: "Color", Variants: []string{"Red", "Blue", "Green"}}}
	step := diff.Step{Kind: diff.AlterEnum, AlterEnumPayload: &diff.AlterEnumStep{
		Enums:         schema.MakePair[schema.EnumIndex](0, 0),
		AddedVariants: []string{"Green"},
	}}

	r := New(flavor.Postgres)
	rendered := r.RenderStep(schemas, step)
	sql := strings.Join(rendered.Statements, "\n")
	if !strings.Contains(sql, "ADD VALUE 'Green'") {
		t.Errorf("expected an ADD VALUE statement, got %q", sql)
	}
	if strings.Contains(sql, "CREATE TYPE") {
		t.Errorf("an add-only enum change should not rebuild the type, got %q", sql)
	}
}

func TestPostgresRenderAlterEnumWithDroppedVariantRebuilds(t *testing.T) {
	schemas := pgSchemaPair()
	schemas.Previous.Enums = []schema.Enum{{Name: "Color", Variants: []string{"Red", "Blue"}}}
	schemas.Next.Enums = []schema.Enum{{Name: "Color", Variants: []string{"Red"}}}
	step := diff.Step{Kind: diff.AlterEnum, AlterEnumPayload: &diff.AlterEnumStep{
		Enums:           schema.MakePair[schema.EnumIndex](0, 0),
		DroppedVariants: []string{"Blue"},
	}}

	r := New(flavor.Postgres)
	rendered := r.RenderStep(schemas, step)
	sql := strings.Join(rendered.Statements, "\n")
	if !strings.Contains(sql, "CREATE TYPE") || !strings.Contains(sql, "RENAME TO") {
		t.Errorf("expected the full rebuild protocol, got %q", sql)
	}
}

func TestPostgresAlterColumnGainingSequenceDefault(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{
		Name:    "Cat",
		Columns: []schema.Column{{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}}},
	}}}
	next := &schema.Schema{Tables: []schema.Table{{
		Name: "Cat",
		Columns: []schema.Column{{
			Name:          "id",
			Type:          schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required},
			AutoIncrement: true,
			Default:       &schema.Default{Kind: schema.DefaultKindSequence, Seq: "Cat_id_seq"},
		}},
	}}}
	step := diff.Step{Kind: diff.AlterTable, AlterTablePayload: &diff.AlterTableStep{
		Tables: schema.MakePair[schema.TableIndex](0, 0),
		Changes: []diff.TableChange{{
			Kind:    diff.AlterColumn,
			Columns: schema.MakePair(0, 0),
			Changes: []diff.ColumnChange{{Kind: diff.ColumnDefaultChanged}, {Kind: diff.ColumnAutoIncrementChanged}},
		}},
	}}

	r := New(flavor.Postgres)
	rendered := r.RenderStep(schema.MakePair(previous, next), step)
	want := []string{
		`CREATE SEQUENCE "Cat_id_seq";`,
		`ALTER TABLE "Cat" ALTER COLUMN "id" SET DEFAULT nextval('"Cat_id_seq"');`,
		`ALTER SEQUENCE "Cat_id_seq" OWNED BY "Cat"."id";`,
	}
	if len(rendered.Statements) != len(want) {
		t.Fatalf("expected %d statements, got %q", len(want), rendered.Statements)
	}
	for i, w := range want {
		if rendered.Statements[i] != w {
			t.Errorf("statement %d: got %q, want %q", i, rendered.Statements[i], w)
		}
	}
}

func TestPostgresAlterColumnDroppingSequenceDefaultDropsSequence(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{
		Name: "Cat",
		Columns: []schema.Column{{
			Name:          "id",
			Type:          schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required},
			AutoIncrement: true,
			Default:       &schema.Default{Kind: schema.DefaultKindSequence, Seq: "Cat_id_seq"},
		}},
	}}}
	next := &schema.Schema{Tables: []schema.Table{{
		Name:    "Cat",
		Columns: []schema.Column{{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}}},
	}}}
	step := diff.Step{Kind: diff.AlterTable, AlterTablePayload: &diff.AlterTableStep{
		Tables: schema.MakePair[schema.TableIndex](0, 0),
		Changes: []diff.TableChange{{
			Kind:    diff.AlterColumn,
			Columns: schema.MakePair(0, 0),
			Changes: []diff.ColumnChange{{Kind: diff.ColumnDefaultChanged}, {Kind: diff.ColumnAutoIncrementChanged}},
		}},
	}}

	r := New(flavor.Postgres)
	rendered := r.RenderStep(schema.MakePair(previous, next), step)
	sql := strings.Join(rendered.Statements, "\n")
	if !strings.Contains(sql, `ALTER TABLE "Cat" ALTER COLUMN "id" DROP DEFAULT;`) {
		t.Errorf("expected the default dropped, got %q", sql)
	}
	if !strings.Contains(sql, `DROP SEQUENCE "Cat_id_seq";`) {
		t.Errorf("expected the orphaned sequence dropped, got %q", sql)
	}
}

func TestMySQLRenderCreateTableUsesBackticks(t *testing.T) {
	next := &schema.Schema{Tables: []schema.Table{{
		Name:       "Cat",
		Columns:    []schema.Column{{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}}},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}
	step := diff.Step{Kind: diff.CreateTable, CreateTablePayload: &diff.CreateTableStep{Table: 0}}

	r := New(flavor.MySQL)
	rendered := r.RenderStep(schema.MakePair((*schema.Schema)(nil), next), step)
	sql := strings.Join(rendered.Statements, "\n")
	if !strings.Contains(sql, "`Cat`") {
		t.Errorf("expected backtick-quoted identifiers, got %q", sql)
	}
}

func TestSQLiteRenderCreateTableUsesDoubleQuotes(t *testing.T) {
	next := &schema.Schema{Tables: []schema.Table{{
		Name:       "Cat",
		Columns:    []schema.Column{{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}}},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}
	step := diff.Step{Kind: diff.CreateTable, CreateTablePayload: &diff.CreateTableStep{Table: 0}}

	r := New(flavor.SQLite)
	rendered := r.RenderStep(schema.MakePair((*schema.Schema)(nil), next), step)
	sql := strings.Join(rendered.Statements, "\n")
	if !strings.Contains(sql, `"Cat"`) {
		t.Errorf("expected double-quoted identifiers, got %q", sql)
	}
}

func TestMSSQLRenderCreateTableUsesBrackets(t *testing.T) {
	next := &schema.Schema{Tables: []schema.Table{{
		Name:       "Cat",
		Columns:    []schema.Column{{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}}},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}
	step := diff.Step{Kind: diff.CreateTable, CreateTablePayload: &diff.CreateTableStep{Table: 0}}

	r := New(flavor.MSSQL)
	rendered := r.RenderStep(schema.MakePair((*schema.Schema)(nil), next), step)
	sql := strings.Join(rendered.Statements, "\n")
	if !strings.Contains(sql, "[Cat]") {
		t.Errorf("expected bracket-quoted identifiers, got %q", sql)
	}
}

func TestSQLiteRedefineTablesBracketedByForeignKeyPragmas(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{
		Name: "Cat",
		Columns: []schema.Column{
			{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}},
			{Name: "boxId", Type: schema.ColumnType{Family: schema.FamilyString, Arity: schema.Nullable}},
		},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}
	next := &schema.Schema{Tables: []schema.Table{{
		Name: "Cat",
		Columns: []schema.Column{
			{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}},
			{Name: "boxId", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Nullable}},
		},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}
	step := diff.Step{Kind: diff.RedefineTables, RedefineTablesPay: &diff.RedefineTablesStep{
		Tables: []diff.RedefineTable{{
			Tables: schema.MakePair[schema.TableIndex](0, 0),
			Changes: []diff.TableChange{{
				Kind:       diff.AlterColumn,
				Columns:    schema.MakePair(1, 1),
				Changes:    []diff.ColumnChange{{Kind: diff.ColumnTypeChanged}},
				TypeChange: flavor.RiskyCast,
			}},
		}},
	}}

	r := New(flavor.SQLite)
	rendered := r.RenderStep(schema.MakePair(previous, next), step)
	stmts := rendered.Statements
	if len(stmts) < 5 {
		t.Fatalf("expected the full rebuild sequence, got %q", stmts)
	}
	if stmts[0] != "PRAGMA foreign_keys=OFF;" {
		t.Errorf("expected the sequence to open with foreign_keys=OFF, got %q", stmts[0])
	}
	if stmts[len(stmts)-1] != "PRAGMA foreign_keys=ON;" {
		t.Errorf("expected the sequence to close with foreign_keys=ON, got %q", stmts[len(stmts)-1])
	}
	if stmts[len(stmts)-2] != "PRAGMA foreign_key_check;" {
		t.Errorf("expected foreign_key_check before re-enabling, got %q", stmts[len(stmts)-2])
	}
	sql := strings.Join(stmts, "\n")
	if !strings.Contains(sql, `CREATE TABLE "new_Cat"`) {
		t.Errorf("expected a shadow new_Cat table, got %q", sql)
	}
	if !strings.Contains(sql, `INSERT INTO "new_Cat"`) || !strings.Contains(sql, `ALTER TABLE "new_Cat" RENAME TO "Cat";`) {
		t.Errorf("expected the copy-and-rename protocol, got %q", sql)
	}
}

func TestMSSQLDefaultChangeDropsAndReaddsNamedConstraint(t *testing.T) {
	constraint := "DF__Cat__n"
	previous := &schema.Schema{Tables: []schema.Table{{
		Name: "Cat",
		Columns: []schema.Column{{
			Name:    "n",
			Type:    schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required},
			Default: &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueInt, Int: 0}, ConstraintName: &constraint},
		}},
	}}}
	next := &schema.Schema{Tables: []schema.Table{{
		Name: "Cat",
		Columns: []schema.Column{{
			Name:    "n",
			Type:    schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required},
			Default: &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueInt, Int: 1}, ConstraintName: &constraint},
		}},
	}}}
	step := diff.Step{Kind: diff.AlterTable, AlterTablePayload: &diff.AlterTableStep{
		Tables: schema.MakePair[schema.TableIndex](0, 0),
		Changes: []diff.TableChange{{
			Kind:    diff.AlterColumn,
			Columns: schema.MakePair(0, 0),
			Changes: []diff.ColumnChange{{Kind: diff.ColumnDefaultChanged}},
		}},
	}}

	r := New(flavor.MSSQL)
	rendered := r.RenderStep(schema.MakePair(previous, next), step)
	sql := strings.Join(rendered.Statements, "\n")
	if !strings.Contains(sql, "ALTER TABLE [dbo].[Cat] DROP CONSTRAINT [DF__Cat__n];") {
		t.Errorf("expected the old default constraint dropped by name, got %q", sql)
	}
	if !strings.Contains(sql, "ADD CONSTRAINT [DF__Cat__n] DEFAULT 1 FOR [n];") {
		t.Errorf("expected the new default re-added under the same name, got %q", sql)
	}
}

func TestMSSQLRedefineTablesTogglesIdentityInsertInTransaction(t *testing.T) {
	previous := &schema.Schema{Tables: []schema.Table{{
		Name:       "Cat",
		Columns:    []schema.Column{{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}}},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}
	next := &schema.Schema{Tables: []schema.Table{{
		Name:       "Cat",
		Columns:    []schema.Column{{Name: "id", Type: schema.ColumnType{Family: schema.FamilyInt, Arity: schema.Required}, AutoIncrement: true}},
		PrimaryKey: &schema.PrimaryKey{Columns: []string{"id"}},
	}}}
	step := diff.Step{Kind: diff.RedefineTables, RedefineTablesPay: &diff.RedefineTablesStep{
		Tables: []diff.RedefineTable{{
			Tables: schema.MakePair[schema.TableIndex](0, 0),
			Changes: []diff.TableChange{{
				Kind:    diff.AlterColumn,
				Columns: schema.MakePair(0, 0),
				Changes: []diff.ColumnChange{{Kind: diff.ColumnAutoIncrementChanged}},
			}},
		}},
	}}

	r := New(flavor.MSSQL)
	rendered := r.RenderStep(schema.MakePair(previous, next), step)
	stmts := rendered.Statements
	if stmts[0] != "BEGIN TRANSACTION;" || stmts[len(stmts)-1] != "COMMIT;" {
		t.Fatalf("expected an explicit transaction around the rebuild, got %q", stmts)
	}
	sql := strings.Join(stmts, "\n")
	if !strings.Contains(sql, "SET IDENTITY_INSERT [dbo].[_new_Cat] ON;") || !strings.Contains(sql, "SET IDENTITY_INSERT [dbo].[_new_Cat] OFF;") {
		t.Errorf("expected IDENTITY_INSERT toggled around the copy, got %q", sql)
	}
	if !strings.Contains(sql, "EXEC sp_executesql @SQL;") {
		t.Errorf("expected the dynamic child-constraint drop batch, got %q", sql)
	}
	if !strings.Contains(sql, "CREATE TABLE [dbo].[_new_Cat]") || !strings.Contains(sql, "EXEC SP_RENAME N'dbo._new_Cat', N'Cat';") {
		t.Errorf("expected a temporary table renamed into place, got %q", sql)
	}
}

func TestRenderFullScriptAssemblesInStepOrder(t *testing.T) {
	schemas := pgSchemaPair()
	schemas.Next.Tables = []schema.Table{{Name: "Cat"}}
	steps := []diff.Step{
		{Kind: diff.CreateTable, CreateTablePayload: &diff.CreateTableStep{Table: 0}},
	}
	script := Render(flavor.Postgres, schemas, steps, check.Diagnostics{})
	if len(script.Steps) != 1 {
		t.Fatalf("expected 1 rendered step, got %d", len(script.Steps))
	}
}

package render

import (
	"fmt"
	"strings"

	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/schema"
)

// sqliteRenderer renders steps as SQLite DDL: double-quoted identifiers, no
// standalone ALTER COLUMN (almost every column alteration goes through
// render_redefine_tables), and the PRAGMA-bracketed rebuild-and-copy
// protocol: foreign_keys off, build a shadow table, copy rows across with
// coalesce() back-fill for newly-required columns, drop the old table,
// rename the shadow table into place, recreate indexes, then
// foreign_key_check before turning foreign_keys back on.
type sqliteRenderer struct{}

func liteQuote(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }

func (r *sqliteRenderer) RenderStep(schemas schema.Pair[*schema.Schema], step diff.Step) RenderedStep {
	switch step.Kind {
	case diff.CreateEnum, diff.DropEnum, diff.AlterEnum:
		return RenderedStep{Description: "enum type (sqlite has no native enum; values are checked via the application layer, no-op)"}
	case diff.CreateTable:
		return r.renderCreateTable(schemas.Next, step.CreateTablePayload)
	case diff.DropTable:
		return r.renderDropTable(schemas.Previous, step.DropTablePayload)
	case diff.AlterTable:
		return r.renderAlterTable(schemas, step.AlterTablePayload)
	case diff.AddForeignKey, diff.DropForeignKey:
		// Unreachable in practice: SQLite foreign keys are declared inline
		// on CREATE TABLE, so changing them always routes through
		// RedefineTables instead of a standalone ADD/DROP.
		return RenderedStep{Description: "foreign key change (handled via table rebuild)"}
	case diff.CreateIndex:
		return r.renderCreateIndex(schemas.Next, step.CreateIndexPayload)
	case diff.DropIndex:
		return r.renderDropIndex(schemas.Previous, step.DropIndexPayload)
	case diff.AlterIndex, diff.RedefineIndex:
		return r.renderRedefineIndex(schemas, step)
	case diff.RedefineTables:
		return r.renderRedefineTables(schemas, step.RedefineTablesPay)
	default:
		return RenderedStep{Description: "unknown step"}
	}
}

func (r *sqliteRenderer) renderCreateTable(next *schema.Schema, s *diff.CreateTableStep) RenderedStep {
	t := next.Tables[s.Table]
	stmt := r.createTableSQL(t.Name, t)
	stmts := []string{stmt}
	for _, idx := range t.Indexes {
		stmts = append(stmts, r.indexStatement(t.Name, idx))
	}
	return RenderedStep{Description: fmt.Sprintf("create table %q", t.Name), Statements: stmts}
}

// createTableSQL inlines a single-column integer primary key onto the
// column itself (SQLite's INTEGER PRIMARY KEY rowid alias).
func (r *sqliteRenderer) createTableSQL(name string, t schema.Table) string {
	singlePK := ""
	if t.PrimaryKey != nil && len(t.PrimaryKey.Columns) == 1 {
		singlePK = t.PrimaryKey.Columns[0]
	}

	var cols []string
	for _, c := range t.Columns {
		cols = append(cols, r.renderColumnDefinition(c, c.Name == singlePK))
	}
	if t.PrimaryKey != nil && singlePK == "" {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", joinColumns(liteQuote, t.PrimaryKey.Columns)))
	}
	for _, fk := range t.ForeignKeys {
		cols = append(cols, fkClause(liteQuote, fk))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", liteQuote(name), strings.Join(cols, ",\n  "))
}

func (r *sqliteRenderer) renderColumnDefinition(c schema.Column, inlinePrimaryKey bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", liteQuote(c.Name), r.renderColumnType(c))
	if inlinePrimaryKey {
		b.WriteString(" PRIMARY KEY")
		if c.AutoIncrement {
			b.WriteString(" AUTOINCREMENT")
		}
	}
	if c.Type.Arity.IsRequired() {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		fmt.Fprintf(&b, " DEFAULT %s", r.renderDefault(c.Default))
	}
	return b.String()
}

func (r *sqliteRenderer) renderColumnType(c schema.Column) string {
	switch c.Type.Family {
	case schema.FamilyBoolean:
		return "BOOLEAN"
	case schema.FamilyInt, schema.FamilyBigInt:
		return "INTEGER"
	case schema.FamilyFloat, schema.FamilyDecimal:
		return "REAL"
	case schema.FamilyString, schema.FamilyEnum, schema.FamilyJSON:
		return "TEXT"
	case schema.FamilyDateTime:
		return "DATETIME"
	case schema.FamilyBinary:
		return "BLOB"
	default:
		return "TEXT"
	}
}

// renderDefault renders values through renderValue, which doubles single
// quotes for escaping.
func (r *sqliteRenderer) renderDefault(d *schema.Default) string {
	switch d.Kind {
	case schema.DefaultKindValue:
		return renderValue(d.Value)
	case schema.DefaultKindNow:
		return "CURRENT_TIMESTAMP"
	case schema.DefaultKindDBGenerated:
		return d.Expr
	default:
		return "NULL"
	}
}

func (r *sqliteRenderer) renderDropTable(previous *schema.Schema, s *diff.DropTableStep) RenderedStep {
	t := previous.Tables[s.Table]
	return RenderedStep{
		Description: fmt.Sprintf("drop table %q", t.Name),
		Statements: []string{
			"PRAGMA foreign_keys=OFF;",
			fmt.Sprintf("DROP TABLE %s;", liteQuote(t.Name)),
			"PRAGMA foreign_keys=ON;",
		},
	}
}

// renderAlterTable handles the one column alteration SQLite supports
// in-place: ADD COLUMN. Everything else is routed to RedefineTables by the
// differ, since SQLite has no ALTER COLUMN and this engine targets the
// DROP COLUMN support conservatively, assuming it may not be present.
func (r *sqliteRenderer) renderAlterTable(schemas schema.Pair[*schema.Schema], s *diff.AlterTableStep) RenderedStep {
	nextTable := schemas.Next.Tables[s.Tables.Next]
	var stmts []string
	for _, change := range s.Changes {
		if change.Kind == diff.AddColumn {
			col := nextTable.Columns[change.Columns.Next]
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", liteQuote(nextTable.Name), r.renderColumnDefinition(col, false)))
		}
	}
	return RenderedStep{Description: fmt.Sprintf("alter table %q", nextTable.Name), Statements: stmts}
}

func (r *sqliteRenderer) indexStatement(tableName string, idx schema.Index) string {
	unique := ""
	if idx.Kind == schema.IndexUnique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);", unique, liteQuote(idx.Name), liteQuote(tableName), joinColumns(liteQuote, idx.Columns))
}

func (r *sqliteRenderer) renderCreateIndex(next *schema.Schema, s *diff.CreateIndexStep) RenderedStep {
	t := next.Tables[s.Table]
	idx := t.Indexes[s.Index]
	return RenderedStep{Description: fmt.Sprintf("create index %q", idx.Name), Statements: []string{r.indexStatement(t.Name, idx)}}
}

func (r *sqliteRenderer) renderDropIndex(previous *schema.Schema, s *diff.DropIndexStep) RenderedStep {
	t := previous.Tables[s.Table]
	idx := t.Indexes[s.Index]
	return RenderedStep{Description: fmt.Sprintf("drop index %q", idx.Name), Statements: []string{fmt.Sprintf("DROP INDEX %s;", liteQuote(idx.Name))}}
}

func (r *sqliteRenderer) renderRedefineIndex(schemas schema.Pair[*schema.Schema], step diff.Step) RenderedStep {
	var tables schema.Pair[schema.TableIndex]
	var indexes schema.Pair[int]
	if step.Kind == diff.AlterIndex {
		tables, indexes = step.AlterIndexPayload.Tables, step.AlterIndexPayload.Indexes
	} else {
		tables, indexes = step.RedefineIndexPay.Tables, step.RedefineIndexPay.Indexes
	}
	prevTable := schemas.Previous.Tables[tables.Previous]
	nextTable := schemas.Next.Tables[tables.Next]
	prevIdx := prevTable.Indexes[indexes.Previous]
	nextIdx := nextTable.Indexes[indexes.Next]
	return RenderedStep{
		Description: fmt.Sprintf("redefine index %q as %q", prevIdx.Name, nextIdx.Name),
		Statements: []string{
			fmt.Sprintf("DROP INDEX %s;", liteQuote(prevIdx.Name)),
			r.indexStatement(nextTable.Name, nextIdx),
		},
	}
}

// renderRedefineTables is the core SQLite rebuild protocol: one
// PRAGMA foreign_keys=OFF window covers every rebuilt table so
// cross-table foreign keys survive the rename dance; each table gets a
// shadow "new_<name>" build, a column-mapped INSERT...SELECT with
// coalesce() back-fill for columns that became required with a default,
// a DROP of the old table, and a RENAME of the shadow into place. Indexes
// are recreated last; PRAGMA foreign_key_check runs once at the end to
// catch any foreign key left dangling by the rebuild.
func (r *sqliteRenderer) renderRedefineTables(schemas schema.Pair[*schema.Schema], s *diff.RedefineTablesStep) RenderedStep {
	stmts := []string{"PRAGMA foreign_keys=OFF;"}

	for _, rt := range s.Tables {
		prevTable := schemas.Previous.Tables[rt.Tables.Previous]
		nextTable := schemas.Next.Tables[rt.Tables.Next]
		shadowName := "new_" + nextTable.Name

		stmts = append(stmts, r.createTableSQL(shadowName, nextTable))
		stmts = append(stmts, r.copyInsertSQL(shadowName, prevTable, nextTable, rt.Changes))
		stmts = append(stmts,
			fmt.Sprintf("DROP TABLE %s;", liteQuote(prevTable.Name)),
			fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", liteQuote(shadowName), liteQuote(nextTable.Name)),
		)
		for _, idx := range nextTable.Indexes {
			stmts = append(stmts, r.indexStatement(nextTable.Name, idx))
		}
	}

	stmts = append(stmts, "PRAGMA foreign_key_check;", "PRAGMA foreign_keys=ON;")

	var names []string
	for _, rt := range s.Tables {
		names = append(names, schemas.Next.Tables[rt.Tables.Next].Name)
	}
	return RenderedStep{Description: fmt.Sprintf("redefine tables %s", strings.Join(names, ", ")), Statements: stmts}
}

// copyInsertSQL builds the INSERT INTO shadow SELECT ... FROM old
// statement, column by column: columns that exist in both versions copy
// directly; columns that are newly required and carry a usable default
// back-fill missing/NULL values via coalesce(); columns dropped entirely
// are omitted from the SELECT list and never touched.
func (r *sqliteRenderer) copyInsertSQL(shadowName string, prevTable, nextTable schema.Table, changes []diff.TableChange) string {
	becameRequiredWithDefault := map[string]*schema.Default{}
	addedWithDefault := map[string]*schema.Default{}
	for _, c := range changes {
		if c.Kind == diff.AlterColumn {
			nextCol := nextTable.Columns[c.Columns.Next]
			for _, atom := range c.Changes {
				if atom.Kind == diff.ColumnArityChanged && nextCol.Type.Arity.IsRequired() && nextCol.Default != nil {
					becameRequiredWithDefault[nextCol.Name] = nextCol.Default
				}
			}
		}
		if c.Kind == diff.AddColumn {
			nextCol := nextTable.Columns[c.Columns.Next]
			if nextCol.Default != nil {
				addedWithDefault[nextCol.Name] = nextCol.Default
			}
		}
	}

	prevNames := map[string]bool{}
	for _, c := range prevTable.Columns {
		prevNames[c.Name] = true
	}

	var insertCols, selectExprs []string
	for _, c := range nextTable.Columns {
		insertCols = append(insertCols, liteQuote(c.Name))
		switch {
		case !prevNames[c.Name]:
			if d, ok := addedWithDefault[c.Name]; ok {
				selectExprs = append(selectExprs, r.renderDefault(d))
			} else {
				selectExprs = append(selectExprs, "NULL")
			}
		case becameRequiredWithDefault[c.Name] != nil:
			d := becameRequiredWithDefault[c.Name]
			selectExprs = append(selectExprs, fmt.Sprintf("coalesce(%s, %s)", liteQuote(c.Name), r.renderDefault(d)))
		default:
			selectExprs = append(selectExprs, liteQuote(c.Name))
		}
	}

	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s;",
		liteQuote(shadowName), strings.Join(insertCols, ", "), strings.Join(selectExprs, ", "), liteQuote(prevTable.Name))
}

package render

import (
	"fmt"
	"strings"

	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/schema"
)

// mssqlRenderer renders steps as MSSQL (T-SQL) DDL: bracket-quoted
// identifiers, named DEFAULT constraints (DF__{table}__{column}) that must be dropped
// explicitly before a column's default can change, and synthesized primary
// key constraint names (PK__{table}__{cols joined by __}) when the schema
// doesn't carry an explicit one.
type mssqlRenderer struct{}

func msQuote(name string) string { return "[" + strings.ReplaceAll(name, "]", "]]") + "]" }

// msTable renders a table reference schema-qualified to [dbo], since MSSQL
// DDL in this renderer always names objects fully qualified.
func msTable(name string) string { return "[dbo]." + msQuote(name) }

func (r *mssqlRenderer) RenderStep(schemas schema.Pair[*schema.Schema], step diff.Step) RenderedStep {
	switch step.Kind {
	case diff.CreateEnum, diff.DropEnum, diff.AlterEnum:
		return RenderedStep{Description: "enum type (mssql has no native enum, no-op)"}
	case diff.CreateTable:
		return r.renderCreateTable(schemas.Next, step.CreateTablePayload)
	case diff.DropTable:
		return r.renderDropTable(schemas.Previous, step.DropTablePayload)
	case diff.AlterTable:
		return r.renderAlterTable(schemas, step.AlterTablePayload)
	case diff.AddForeignKey:
		return r.renderAddForeignKey(schemas.Next, step.AddFKPayload)
	case diff.DropForeignKey:
		return r.renderDropForeignKey(schemas.Previous, step.DropFKPayload)
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

func (r *mssqlRenderer) renderCreateTable(next *schema.Schema, s *diff.CreateTableStep) RenderedStep {
	t := next.Tables[s.Table]
	stmts := []string{r.createTableSQL(t.Name, t)}
	for _, idx := range t.Indexes {
		stmts = append(stmts, r.indexStatement(t.Name, idx))
	}
	return RenderedStep{Description: fmt.Sprintf("create table %q", t.Name), Statements: stmts}
}

// createTableSQL renders the CREATE TABLE body for t under the given
// target name. Constraint names derive from t.Name, not target, so a
// temporary rebuild table carries the canonical names from the start.
func (r *mssqlRenderer) createTableSQL(target string, t schema.Table) string {
	var cols []string
	for _, c := range t.Columns {
		cols = append(cols, r.renderColumnDefinition(t.Name, c))
	}
	if t.PrimaryKey != nil {
		name := fmt.Sprintf("PK__%s__%s", t.Name, strings.Join(t.PrimaryKey.Columns, "__"))
		if t.PrimaryKey.ConstraintName != nil {
			name = *t.PrimaryKey.ConstraintName
		}
		cols = append(cols, fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)", msQuote(name), joinColumns(msQuote, t.PrimaryKey.Columns)))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", msTable(target), strings.Join(cols, ",\n  "))
}

func (r *mssqlRenderer) renderColumnDefinition(tableName string, c schema.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", msQuote(c.Name), r.renderColumnType(c))
	if c.AutoIncrement {
		b.WriteString(" IDENTITY(1,1)")
	}
	if c.Type.Arity.IsRequired() {
		b.WriteString(" NOT NULL")
	} else {
		b.WriteString(" NULL")
	}
	if c.Default != nil {
		name := defaultConstraintName(tableName, c.Name, c.Default)
		fmt.Fprintf(&b, " CONSTRAINT %s DEFAULT %s", msQuote(name), r.renderDefault(c.Default))
	}
	return b.String()
}

// defaultConstraintName follows the DF__{table}__{column}
// naming convention for unnamed default constraints.
func defaultConstraintName(tableName, columnName string, d *schema.Default) string {
	if d.ConstraintName != nil {
		return *d.ConstraintName
	}
	return fmt.Sprintf("DF__%s__%s", tableName, columnName)
}

func (r *mssqlRenderer) renderColumnType(c schema.Column) string {
	switch c.Type.Family {
	case schema.FamilyBoolean:
		return "BIT"
	case schema.FamilyInt:
		return "INT"
	case schema.FamilyBigInt:
		return "BIGINT"
	case schema.FamilyFloat:
		return "FLOAT"
	case schema.FamilyDecimal:
		return "DECIMAL(32,16)"
	case schema.FamilyString:
		if c.Type.CharacterMaximumLength != nil {
			return fmt.Sprintf("NVARCHAR(%d)", *c.Type.CharacterMaximumLength)
		}
		return "NVARCHAR(MAX)"
	case schema.FamilyDateTime:
		return "DATETIME2"
	case schema.FamilyBinary:
		return "VARBINARY(MAX)"
	case schema.FamilyJSON:
		return "NVARCHAR(MAX)"
	case schema.FamilyUUID:
		return "UNIQUEIDENTIFIER"
	case schema.FamilyEnum:
		return "NVARCHAR(255)"
	default:
		return "NVARCHAR(MAX)"
	}
}

func (r *mssqlRenderer) renderDefault(d *schema.Default) string {
	switch d.Kind {
	case schema.DefaultKindValue:
		return renderValue(d.Value)
	case schema.DefaultKindNow:
		return "SYSUTCDATETIME()"
	case schema.DefaultKindDBGenerated:
		return d.Expr
	default:
		return "NULL"
	}
}

func (r *mssqlRenderer) renderDropTable(previous *schema.Schema, s *diff.DropTableStep) RenderedStep {
	t := previous.Tables[s.Table]
	return RenderedStep{Description: fmt.Sprintf("drop table %q", t.Name), Statements: []string{fmt.Sprintf("DROP TABLE %s;", msTable(t.Name))}}
}

// renderAlterTable wraps the whole statement group in an explicit
// transaction, grouping drop_constraints/add_constraints/add_columns/drop_columns/column_mods
// into one BEGIN TRAN ... COMMIT block. Dropping a column's default
// constraint by name must precede any type/nullability change on that
// column, since MSSQL refuses to alter a column with a live default.
func (r *mssqlRenderer) renderAlterTable(schemas schema.Pair[*schema.Schema], s *diff.AlterTableStep) RenderedStep {
	prevTable := schemas.Previous.Tables[s.Tables.Previous]
	nextTable := schemas.Next.Tables[s.Tables.Next]
	table := msTable(nextTable.Name)

	stmts := []string{"BEGIN TRAN;"}
	for _, change := range s.Changes {
		stmts = append(stmts, r.renderTableChange(prevTable, nextTable, table, change)...)
	}
	stmts = append(stmts, "COMMIT;")
	return RenderedStep{Description: fmt.Sprintf("alter table %q", nextTable.Name), Statements: stmts}
}

func (r *mssqlRenderer) renderTableChange(prevTable, nextTable schema.Table, table string, change diff.TableChange) []string {
	switch change.Kind {
	case diff.AddColumn:
		col := nextTable.Columns[change.Columns.Next]
		return []string{fmt.Sprintf("ALTER TABLE %s ADD %s;", table, r.renderColumnDefinition(nextTable.Name, col))}

	case diff.DropColumn:
		col := prevTable.Columns[change.Columns.Previous]
		var stmts []string
		if col.Default != nil {
			name := defaultConstraintName(prevTable.Name, col.Name, col.Default)
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", msTable(prevTable.Name), msQuote(name)))
		}
		return append(stmts, fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", msTable(prevTable.Name), msQuote(col.Name)))

	case diff.AlterColumn, diff.DropAndRecreateColumn:
		return r.renderColumnModify(prevTable, nextTable, table, change)

	case diff.AddPrimaryKey:
		if nextTable.PrimaryKey == nil {
			return nil
		}
		name := fmt.Sprintf("PK__%s__%s", nextTable.Name, strings.Join(nextTable.PrimaryKey.Columns, "__"))
		return []string{fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s);", table, msQuote(name), joinColumns(msQuote, nextTable.PrimaryKey.Columns))}

	case diff.DropPrimaryKey:
		name := fmt.Sprintf("PK__%s__%s", prevTable.Name, strings.Join(prevTable.PrimaryKey.Columns, "__"))
		if prevTable.PrimaryKey.ConstraintName != nil {
			name = *prevTable.PrimaryKey.ConstraintName
		}
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", msTable(prevTable.Name), msQuote(name))}

	default:
		return nil
	}
}

// renderColumnModify drops any existing default constraint first (MSSQL
// will not ALTER COLUMN a column carrying one), applies the column-level
// change, then re-adds the default under its canonical name if the next
// column still has one: a DropDefault/Modify/SetDefault split.
func (r *mssqlRenderer) renderColumnModify(prevTable, nextTable schema.Table, table string, change diff.TableChange) []string {
	prevCol := prevTable.Columns[change.Columns.Previous]
	nextCol := nextTable.Columns[change.Columns.Next]

	var stmts []string
	if prevCol.Default != nil {
		name := defaultConstraintName(prevTable.Name, prevCol.Name, prevCol.Default)
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", msTable(prevTable.Name), msQuote(name)))
	}

	colDef := fmt.Sprintf("%s %s", msQuote(nextCol.Name), r.renderColumnType(nextCol))
	if nextCol.Type.Arity.IsRequired() {
		colDef += " NOT NULL"
	} else {
		colDef += " NULL"
	}
	stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s;", table, colDef))

	if nextCol.Default != nil {
		name := defaultConstraintName(nextTable.Name, nextCol.Name, nextCol.Default)
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s DEFAULT %s FOR %s;",
			table, msQuote(name), r.renderDefault(nextCol.Default), msQuote(nextCol.Name)))
	}
	return stmts
}

func (r *mssqlRenderer) renderAddForeignKey(next *schema.Schema, s *diff.AddForeignKeyStep) RenderedStep {
	t := next.Tables[s.Table]
	fk := t.ForeignKeys[s.ForeignKey]
	name := fmt.Sprintf("FK__%s__%s", t.Name, strings.Join(fk.Columns, "_"))
	if fk.ConstraintName != nil {
		name = *fk.ConstraintName
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;", msTable(t.Name), msQuote(name), fkClause(msQuote, fk))
	return RenderedStep{Description: fmt.Sprintf("add foreign key on %q", t.Name), Statements: []string{stmt}}
}

func (r *mssqlRenderer) renderDropForeignKey(previous *schema.Schema, s *diff.DropForeignKeyStep) RenderedStep {
	t := previous.Tables[s.Table]
	fk := t.ForeignKeys[s.ForeignKey]
	name := fmt.Sprintf("FK__%s__%s", t.Name, strings.Join(fk.Columns, "_"))
	if fk.ConstraintName != nil {
		name = *fk.ConstraintName
	}
	return RenderedStep{
		Description: fmt.Sprintf("drop foreign key on %q", t.Name),
		Statements:  []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", msTable(t.Name), msQuote(name))},
	}
}

func (r *mssqlRenderer) indexStatement(tableName string, idx schema.Index) string {
	unique := ""
	if idx.Kind == schema.IndexUnique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);", unique, msQuote(idx.Name), msTable(tableName), joinColumns(msQuote, idx.Columns))
}

func (r *mssqlRenderer) renderCreateIndex(next *schema.Schema, s *diff.CreateIndexStep) RenderedStep {
	t := next.Tables[s.Table]
	idx := t.Indexes[s.Index]
	return RenderedStep{Description: fmt.Sprintf("create index %q", idx.Name), Statements: []string{r.indexStatement(t.Name, idx)}}
}

func (r *mssqlRenderer) renderDropIndex(previous *schema.Schema, s *diff.DropIndexStep) RenderedStep {
	t := previous.Tables[s.Table]
	idx := t.Indexes[s.Index]
	return RenderedStep{
		Description: fmt.Sprintf("drop index %q", idx.Name),
		Statements:  []string{fmt.Sprintf("DROP INDEX %s ON %s;", msQuote(idx.Name), msTable(t.Name))},
	}
}

// renderRedefineTables rebuilds tables whose change MSSQL cannot express
// in place (toggling IDENTITY on an existing column). The whole protocol
// runs inside one explicit transaction: drop the old table's indexes and
// every constraint attached to it (discovered dynamically from the
// catalog, so synthesized names are caught too), create a temporary
// _new_<table> copy under the final constraint names, toggle
// IDENTITY_INSERT around the row copy when an identity column is
// involved, drop the old table, and sp_rename the copy into place.
// Indexes are recreated last.
func (r *mssqlRenderer) renderRedefineTables(schemas schema.Pair[*schema.Schema], s *diff.RedefineTablesStep) RenderedStep {
	stmts := []string{"BEGIN TRANSACTION;"}

	var names []string
	for _, rt := range s.Tables {
		prevTable := schemas.Previous.Tables[rt.Tables.Previous]
		nextTable := schemas.Next.Tables[rt.Tables.Next]
		names = append(names, nextTable.Name)
		tempName := "_new_" + nextTable.Name

		needsIdentityInsert := false
		for _, c := range nextTable.Columns {
			if c.AutoIncrement {
				needsIdentityInsert = true
			}
		}

		for _, idx := range prevTable.Indexes {
			stmts = append(stmts, fmt.Sprintf("DROP INDEX %s ON %s;", msQuote(idx.Name), msTable(prevTable.Name)))
		}
		stmts = append(stmts, dropChildConstraintsSQL(prevTable.Name))
		stmts = append(stmts, r.createTableSQL(tempName, nextTable))

		if needsIdentityInsert {
			stmts = append(stmts, fmt.Sprintf("SET IDENTITY_INSERT %s ON;", msTable(tempName)))
		}
		cols := sharedColumnList(prevTable, nextTable)
		stmts = append(stmts, fmt.Sprintf(
			"IF EXISTS(SELECT * FROM %s)\n    EXEC('INSERT INTO %s (%s) SELECT %s FROM %s WITH (holdlock tablockx)');",
			msTable(prevTable.Name), msTable(tempName), cols, cols, msTable(prevTable.Name)))
		if needsIdentityInsert {
			stmts = append(stmts, fmt.Sprintf("SET IDENTITY_INSERT %s OFF;", msTable(tempName)))
		}

		stmts = append(stmts,
			fmt.Sprintf("DROP TABLE %s;", msTable(prevTable.Name)),
			fmt.Sprintf("EXEC SP_RENAME N'dbo.%s', N'%s';", tempName, nextTable.Name),
		)
		for _, idx := range nextTable.Indexes {
			stmts = append(stmts, r.indexStatement(nextTable.Name, idx))
		}
	}

	stmts = append(stmts, "COMMIT;")
	return RenderedStep{Description: fmt.Sprintf("redefine tables %s", strings.Join(names, ", ")), Statements: stmts}
}

// sharedColumnList renders the bracket-quoted, comma-joined list of
// columns present in both versions of the table, the only ones the row
// copy can carry across.
func sharedColumnList(prevTable, nextTable schema.Table) string {
	prevNames := map[string]bool{}
	for _, c := range prevTable.Columns {
		prevNames[c.Name] = true
	}
	var cols []string
	for _, c := range nextTable.Columns {
		if prevNames[c.Name] {
			cols = append(cols, msQuote(c.Name))
		}
	}
	return strings.Join(cols, ",")
}

// dropChildConstraintsSQL drops every constraint attached to the table in
// one dynamic batch. Catalog-driven discovery handles server-synthesized
// constraint names the schema model never saw.
func dropChildConstraintsSQL(tableName string) string {
	return fmt.Sprintf(`DECLARE @SQL NVARCHAR(MAX) = N''
SELECT @SQL += N'ALTER TABLE '
    + QUOTENAME(OBJECT_SCHEMA_NAME(PARENT_OBJECT_ID))
    + '.'
    + QUOTENAME(OBJECT_NAME(PARENT_OBJECT_ID))
    + ' DROP CONSTRAINT '
    + OBJECT_NAME(OBJECT_ID) + ';'
FROM SYS.OBJECTS
WHERE TYPE_DESC LIKE '%%CONSTRAINT'
    AND OBJECT_NAME(PARENT_OBJECT_ID) = '%s'
    AND SCHEMA_NAME(SCHEMA_ID) = 'dbo'
EXEC sp_executesql @SQL;`, tableName)
}

// renderRedefineIndex uses sp_rename, the MSSQL system procedure for
// renaming objects in place without a drop/recreate cycle.
func (r *mssqlRenderer) renderRedefineIndex(schemas schema.Pair[*schema.Schema], step diff.Step) RenderedStep {
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
		Description: fmt.Sprintf("rename index %q to %q", prevIdx.Name, nextIdx.Name),
		Statements: []string{fmt.Sprintf("EXEC sp_rename N'dbo.%s.%s', N'%s', N'INDEX';",
			nextTable.Name, prevIdx.Name, nextIdx.Name)},
	}
}

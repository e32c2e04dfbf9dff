package describe

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

// mssqlDescriber introspects via sys.* catalog views for the facts
// INFORMATION_SCHEMA can't express cleanly (identity columns, named
// default constraint bodies) joined against sys.columns/sys.types.
type mssqlDescriber struct {
	db *sql.DB
}

func (d *mssqlDescriber) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT name FROM sys.schemas
		WHERE name NOT IN ('sys', 'guest', 'INFORMATION_SCHEMA', 'db_owner', 'db_accessadmin',
		                    'db_securityadmin', 'db_ddladmin', 'db_backupoperator', 'db_datareader',
		                    'db_datawriter', 'db_denydatareader', 'db_denydatawriter')
		ORDER BY name`)
	if err != nil {
		return nil, connErr("list_schemas", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, catalogErr("list_schemas", err)
		}
		names = append(names, name)
	}
	return names, catalogErr("list_schemas", rows.Err())
}

func (d *mssqlDescriber) Version(ctx context.Context) (string, error) {
	var v string
	if err := d.db.QueryRowContext(ctx, "SELECT @@VERSION").Scan(&v); err != nil {
		return "", connErr("version", err)
	}
	return v, nil
}

func (d *mssqlDescriber) Metadata(ctx context.Context, schemaName string) (Metadata, error) {
	if schemaName == "" {
		schemaName = "dbo"
	}
	v, err := d.Version(ctx)
	if err != nil {
		return Metadata{}, err
	}
	m := Metadata{Flavor: flavor.MSSQL, Version: v, DefaultSchema: "dbo"}
	err = d.db.QueryRowContext(ctx, `
		SELECT count(*) FROM information_schema.tables
		WHERE table_schema = @p1 AND table_type = 'BASE TABLE'`, schemaName,
	).Scan(&m.TableCount)
	if err != nil {
		return Metadata{}, catalogErr("metadata", err)
	}
	err = d.db.QueryRowContext(ctx, `
		SELECT coalesce(sum(ps.reserved_page_count), 0) * 8192
		FROM sys.dm_db_partition_stats ps
		JOIN sys.objects o ON o.object_id = ps.object_id
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		WHERE s.name = @p1 AND o.type = 'U'`, schemaName,
	).Scan(&m.SizeInBytes)
	if err != nil {
		return Metadata{}, catalogErr("metadata", err)
	}
	return m, nil
}

func (d *mssqlDescriber) Describe(ctx context.Context, schemaName string) (*schema.Schema, error) {
	if schemaName == "" {
		schemaName = "dbo"
	}
	s := &schema.Schema{}

	tableNames, err := d.getTableNames(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	for _, name := range tableNames {
		table := schema.Table{Name: name}

		cols, err := d.getColumns(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		table.Columns = cols

		pk, err := d.getPrimaryKey(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		table.PrimaryKey = pk

		idx, err := d.getIndexes(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		table.Indexes = idx

		fks, err := d.getForeignKeys(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		table.ForeignKeys = fks

		s.Tables = append(s.Tables, table)
	}
	return s, nil
}

func (d *mssqlDescriber) getTableNames(ctx context.Context, schemaName string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.name FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1
		ORDER BY t.name`, schemaName)
	if err != nil {
		return nil, connErr("get_tables", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, catalogErr("get_tables", err)
		}
		names = append(names, name)
	}
	return names, catalogErr("get_tables", rows.Err())
}

// getColumns joins sys.columns to sys.default_constraints to recover both
// the default's expression text and its constraint name, since MSSQL
// requires naming that constraint to drop or replace the default later
// (see render/mssql.go).
func (d *mssqlDescriber) getColumns(ctx context.Context, schemaName, table string) ([]schema.Column, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.name, ty.name, c.is_nullable, c.is_identity, c.max_length,
		       dc.name, dc.definition
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.default_constraints dc ON dc.parent_object_id = c.object_id AND dc.parent_column_id = c.column_id
		WHERE s.name = @p1 AND t.name = @p2
		ORDER BY c.column_id`, schemaName, table)
	if err != nil {
		return nil, connErr("get_columns", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var name, typeName string
		var isNullable, isIdentity bool
		var maxLength int
		var defName, defBody sql.NullString
		if err := rows.Scan(&name, &typeName, &isNullable, &isIdentity, &maxLength, &defName, &defBody); err != nil {
			return nil, catalogErr("get_columns", err)
		}

		col := schema.Column{Name: name, AutoIncrement: isIdentity}
		col.Type = mssqlColumnType(typeName, maxLength)
		if isNullable {
			col.Type.Arity = schema.Nullable
		} else {
			col.Type.Arity = schema.Required
		}
		if defBody.Valid {
			d := parseMSSQLDefault(defBody.String)
			if defName.Valid {
				name := defName.String
				d.ConstraintName = &name
			}
			col.Default = d
		}
		cols = append(cols, col)
	}
	return cols, catalogErr("get_columns", rows.Err())
}

func mssqlColumnType(typeName string, maxLength int) schema.ColumnType {
	t := schema.ColumnType{FullDataType: typeName}
	switch strings.ToLower(typeName) {
	case "bit":
		t.Family = schema.FamilyBoolean
	case "int", "smallint", "tinyint":
		t.Family = schema.FamilyInt
	case "bigint":
		t.Family = schema.FamilyBigInt
	case "float", "real":
		t.Family = schema.FamilyFloat
	case "decimal", "numeric", "money":
		t.Family = schema.FamilyDecimal
	case "varchar", "nvarchar", "char", "nchar", "text", "ntext":
		t.Family = schema.FamilyString
		if maxLength > 0 && maxLength != -1 {
			n := maxLength
			t.CharacterMaximumLength = &n
		}
	case "datetime", "datetime2", "date", "smalldatetime":
		t.Family = schema.FamilyDateTime
	case "varbinary", "binary", "image":
		t.Family = schema.FamilyBinary
	case "uniqueidentifier":
		t.Family = schema.FamilyUUID
	default:
		t.Family = schema.FamilyUnsupported
	}
	return t
}

// parseMSSQLDefault unwraps the double parentheses MSSQL wraps around
// every default_constraints.definition (e.g. "((0))", "(getutcdate())")
// before classifying the expression.
func parseMSSQLDefault(def string) *schema.Default {
	trimmed := strings.TrimSpace(def)
	for strings.HasPrefix(trimmed, "(") && strings.HasSuffix(trimmed, ")") {
		trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
	}
	upper := strings.ToUpper(trimmed)
	switch {
	case upper == "GETUTCDATE()" || upper == "SYSUTCDATETIME()" || upper == "GETDATE()":
		return &schema.Default{Kind: schema.DefaultKindNow}
	case strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'"):
		return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueString, Str: strings.Trim(trimmed, "'")}}
	default:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueInt, Int: n}}
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueFloat, Float: f}}
		}
		return &schema.Default{Kind: schema.DefaultKindDBGenerated, Expr: trimmed}
	}
}

func (d *mssqlDescriber) getPrimaryKey(ctx context.Context, schemaName, table string) (*schema.PrimaryKey, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.name, kc.name
		FROM sys.key_constraints kc
		JOIN sys.index_columns ic ON ic.object_id = kc.parent_object_id AND ic.index_id = kc.unique_index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		JOIN sys.tables t ON t.object_id = kc.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1 AND t.name = @p2 AND kc.type = 'PK'
		ORDER BY ic.key_ordinal`, schemaName, table)
	if err != nil {
		return nil, connErr("get_primary_key", err)
	}
	defer rows.Close()

	var cols []string
	var constraintName string
	for rows.Next() {
		var col, name string
		if err := rows.Scan(&col, &name); err != nil {
			return nil, catalogErr("get_primary_key", err)
		}
		cols = append(cols, col)
		constraintName = name
	}
	if err := rows.Err(); err != nil {
		return nil, catalogErr("get_primary_key", err)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return &schema.PrimaryKey{Columns: cols, ConstraintName: &constraintName}, nil
}

func (d *mssqlDescriber) getIndexes(ctx context.Context, schemaName, table string) ([]schema.Index, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT i.name, c.name, i.is_unique
		FROM sys.indexes i
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1 AND t.name = @p2 AND i.is_primary_key = 0 AND i.name IS NOT NULL
		ORDER BY i.name, ic.key_ordinal`, schemaName, table)
	if err != nil {
		return nil, connErr("get_indexes", err)
	}
	defer rows.Close()

	byName := map[string]*schema.Index{}
	var order []string
	for rows.Next() {
		var name, col string
		var unique bool
		if err := rows.Scan(&name, &col, &unique); err != nil {
			return nil, catalogErr("get_indexes", err)
		}
		idx, ok := byName[name]
		if !ok {
			order = append(order, name)
			kind := schema.IndexNormal
			if unique {
				kind = schema.IndexUnique
			}
			idx = &schema.Index{Name: name, Kind: kind}
			byName[name] = idx
		}
		idx.Columns = append(idx.Columns, col)
	}
	var out []schema.Index
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, catalogErr("get_indexes", rows.Err())
}

func (d *mssqlDescriber) getForeignKeys(ctx context.Context, schemaName, table string) ([]schema.ForeignKey, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT fk.name, pc.name, rt.name, rc.name, fk.delete_referential_action_desc, fk.update_referential_action_desc
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables t ON t.object_id = fk.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		WHERE s.name = @p1 AND t.name = @p2
		ORDER BY fk.name, fkc.constraint_column_id`, schemaName, table)
	if err != nil {
		return nil, connErr("get_foreign_keys", err)
	}
	defer rows.Close()

	byName := map[string]*schema.ForeignKey{}
	var order []string
	for rows.Next() {
		var name, col, refTable, refCol, deleteDesc, updateDesc string
		if err := rows.Scan(&name, &col, &refTable, &refCol, &deleteDesc, &updateDesc); err != nil {
			return nil, catalogErr("get_foreign_keys", err)
		}
		fk, ok := byName[name]
		if !ok {
			order = append(order, name)
			constraintName := name
			fk = &schema.ForeignKey{
				ConstraintName:  &constraintName,
				ReferencedTable: refTable,
				OnDelete:        mssqlReferentialAction(deleteDesc),
				OnUpdate:        mssqlReferentialAction(updateDesc),
			}
			byName[name] = fk
		}
		fk.Columns = append(fk.Columns, col)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
	}
	var out []schema.ForeignKey
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, catalogErr("get_foreign_keys", rows.Err())
}

func mssqlReferentialAction(desc string) schema.ReferentialAction {
	switch desc {
	case "CASCADE":
		return schema.Cascade
	case "SET_NULL":
		return schema.SetNull
	case "SET_DEFAULT":
		return schema.SetDefault
	case "NO_ACTION":
		return schema.NoAction
	default:
		return schema.NoAction
	}
}

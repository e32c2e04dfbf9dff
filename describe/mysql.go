package describe

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

// mysqlDescriber introspects via information_schema, which MySQL and
// MariaDB both populate consistently enough to share one implementation.
type mysqlDescriber struct {
	db *sql.DB
}

func (d *mysqlDescriber) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('information_schema', 'mysql', 'performance_schema', 'sys')
		ORDER BY schema_name`)
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

func (d *mysqlDescriber) Version(ctx context.Context) (string, error) {
	var v string
	if err := d.db.QueryRowContext(ctx, "SELECT version()").Scan(&v); err != nil {
		return "", connErr("version", err)
	}
	return v, nil
}

func (d *mysqlDescriber) Metadata(ctx context.Context, schemaName string) (Metadata, error) {
	v, err := d.Version(ctx)
	if err != nil {
		return Metadata{}, err
	}
	f := flavor.MySQL
	if strings.Contains(strings.ToLower(v), "mariadb") {
		f = flavor.MariaDB
	}
	var dbName string
	_ = d.db.QueryRowContext(ctx, "SELECT database()").Scan(&dbName)
	if schemaName == "" {
		schemaName = dbName
	}
	m := Metadata{Flavor: f, Version: v, DefaultSchema: dbName}
	err = d.db.QueryRowContext(ctx, `
		SELECT count(*), coalesce(sum(data_length + index_length), 0)
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'`, schemaName,
	).Scan(&m.TableCount, &m.SizeInBytes)
	if err != nil {
		return Metadata{}, catalogErr("metadata", err)
	}
	return m, nil
}

func (d *mysqlDescriber) Describe(ctx context.Context, schemaName string) (*schema.Schema, error) {
	if schemaName == "" {
		if err := d.db.QueryRowContext(ctx, "SELECT database()").Scan(&schemaName); err != nil {
			return nil, connErr("describe", err)
		}
	}
	s := &schema.Schema{}

	tableNames, err := d.getTableNames(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	for _, name := range tableNames {
		table := schema.Table{Name: name}

		cols, pk, err := d.getColumns(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		table.Columns = cols
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

func (d *mysqlDescriber) getTableNames(ctx context.Context, schemaName string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schemaName)
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

func (d *mysqlDescriber) getColumns(ctx context.Context, schemaName, table string) ([]schema.Column, *schema.PrimaryKey, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, column_default, character_maximum_length,
		       column_key, extra
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, schemaName, table)
	if err != nil {
		return nil, nil, connErr("get_columns", err)
	}
	defer rows.Close()

	var cols []schema.Column
	var pkCols []string
	for rows.Next() {
		var name, dataType, isNullable, columnKey, extra string
		var def sql.NullString
		var maxLen sql.NullInt64
		if err := rows.Scan(&name, &dataType, &isNullable, &def, &maxLen, &columnKey, &extra); err != nil {
			return nil, nil, catalogErr("get_columns", err)
		}

		col := schema.Column{Name: name}
		col.Type = mysqlColumnType(dataType)
		if isNullable == "YES" {
			col.Type.Arity = schema.Nullable
		} else {
			col.Type.Arity = schema.Required
		}
		if maxLen.Valid {
			n := int(maxLen.Int64)
			col.Type.CharacterMaximumLength = &n
		}
		if strings.Contains(extra, "auto_increment") {
			col.AutoIncrement = true
		}
		if columnKey == "PRI" {
			pkCols = append(pkCols, name)
		}
		if def.Valid {
			col.Default = parseMySQLDefault(def.String)
		}
		cols = append(cols, col)
	}

	var pk *schema.PrimaryKey
	if len(pkCols) > 0 {
		pk = &schema.PrimaryKey{Columns: pkCols}
	}
	return cols, pk, catalogErr("get_columns", rows.Err())
}

func mysqlColumnType(dataType string) schema.ColumnType {
	t := schema.ColumnType{FullDataType: dataType}
	switch dataType {
	case "tinyint":
		t.Family = schema.FamilyBoolean
	case "int", "smallint", "mediumint":
		t.Family = schema.FamilyInt
	case "bigint":
		t.Family = schema.FamilyBigInt
	case "double", "float":
		t.Family = schema.FamilyFloat
	case "decimal":
		t.Family = schema.FamilyDecimal
	case "varchar", "char", "text", "longtext", "mediumtext":
		t.Family = schema.FamilyString
	case "datetime", "timestamp", "date":
		t.Family = schema.FamilyDateTime
	case "blob", "longblob", "varbinary":
		t.Family = schema.FamilyBinary
	case "json":
		t.Family = schema.FamilyJSON
	case "enum":
		t.Family = schema.FamilyEnum
	default:
		t.Family = schema.FamilyUnsupported
	}
	return t
}

func parseMySQLDefault(def string) *schema.Default {
	trimmed := strings.TrimSpace(def)
	upper := strings.ToUpper(trimmed)
	switch {
	case upper == "CURRENT_TIMESTAMP" || strings.HasPrefix(upper, "CURRENT_TIMESTAMP("):
		return &schema.Default{Kind: schema.DefaultKindNow}
	default:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueInt, Int: n}}
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueFloat, Float: f}}
		}
		return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueString, Str: trimmed}}
	}
}

func (d *mysqlDescriber) getIndexes(ctx context.Context, schemaName, table string) ([]schema.Index, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT index_name, column_name, non_unique
		FROM information_schema.statistics
		WHERE table_schema = ? AND table_name = ? AND index_name != 'PRIMARY'
		ORDER BY index_name, seq_in_index`, schemaName, table)
	if err != nil {
		return nil, connErr("get_indexes", err)
	}
	defer rows.Close()

	byName := map[string]*schema.Index{}
	var order []string
	for rows.Next() {
		var name, col string
		var nonUnique int
		if err := rows.Scan(&name, &col, &nonUnique); err != nil {
			return nil, catalogErr("get_indexes", err)
		}
		idx, ok := byName[name]
		if !ok {
			order = append(order, name)
			kind := schema.IndexUnique
			if nonUnique != 0 {
				kind = schema.IndexNormal
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

func (d *mysqlDescriber) getForeignKeys(ctx context.Context, schemaName, table string) ([]schema.ForeignKey, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT rc.constraint_name, kcu.column_name, kcu.referenced_table_name, kcu.referenced_column_name,
		       rc.delete_rule, rc.update_rule
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
		  ON kcu.constraint_name = rc.constraint_name AND kcu.table_schema = rc.constraint_schema
		WHERE rc.constraint_schema = ? AND kcu.table_name = ?
		ORDER BY rc.constraint_name, kcu.ordinal_position`, schemaName, table)
	if err != nil {
		return nil, connErr("get_foreign_keys", err)
	}
	defer rows.Close()

	byName := map[string]*schema.ForeignKey{}
	var order []string
	for rows.Next() {
		var name, col, refTable, refCol, deleteRule, updateRule string
		if err := rows.Scan(&name, &col, &refTable, &refCol, &deleteRule, &updateRule); err != nil {
			return nil, catalogErr("get_foreign_keys", err)
		}
		fk, ok := byName[name]
		if !ok {
			order = append(order, name)
			constraintName := name
			fk = &schema.ForeignKey{
				ConstraintName:  &constraintName,
				ReferencedTable: refTable,
				OnDelete:        referentialActionFromRule(deleteRule),
				OnUpdate:        referentialActionFromRule(updateRule),
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

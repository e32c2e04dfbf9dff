package schema

import "testing"

func twoTableSchema() *Schema {
	return &Schema{
		Tables: []Table{
			{
				Name:       "User",
				Columns:    []Column{{Name: "id"}, {Name: "name"}},
				PrimaryKey: &PrimaryKey{Columns: []string{"id"}},
			},
			{
				Name:    "Post",
				Columns: []Column{{Name: "id"}, {Name: "authorId"}},
				ForeignKeys: []ForeignKey{
					{Columns: []string{"authorId"}, ReferencedTable: "User", ReferencedColumns: []string{"id"}},
				},
			},
		},
	}
}

func TestTableWalkerColumns(t *testing.T) {
	s := twoTableSchema()
	tw := s.Table(0)

	cols := tw.Columns()
	if len(cols) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(cols))
	}
	if cols[0].Name() != "id" || cols[1].Name() != "name" {
		t.Fatalf("unexpected column names: %q, %q", cols[0].Name(), cols[1].Name())
	}
}

func TestColumnWalkerIsSinglePrimaryKey(t *testing.T) {
	s := twoTableSchema()
	idCol, ok := s.Table(0).ColumnNamed("id")
	if !ok {
		t.Fatal("expected to find column id")
	}
	if !idCol.IsSinglePrimaryKey() {
		t.Error("expected id to be the single-column primary key")
	}

	nameCol, ok := s.Table(0).ColumnNamed("name")
	if !ok {
		t.Fatal("expected to find column name")
	}
	if nameCol.IsSinglePrimaryKey() {
		t.Error("expected name not to be a primary key")
	}
}

func TestColumnWalkerIsReferencedByForeignKey(t *testing.T) {
	s := twoTableSchema()
	idCol, _ := s.Table(0).ColumnNamed("id")
	if !idCol.IsReferencedByForeignKey() {
		t.Error("expected User.id to be referenced by Post's foreign key")
	}

	nameCol, _ := s.Table(0).ColumnNamed("name")
	if nameCol.IsReferencedByForeignKey() {
		t.Error("expected User.name not to be referenced by any foreign key")
	}
}

func TestForeignKeyWalkerResolvesReferencedTable(t *testing.T) {
	s := twoTableSchema()
	fkWalker := s.Table(1).ForeignKeys()[0]

	refTable, ok := fkWalker.ReferencedTableWalker()
	if !ok {
		t.Fatal("expected to resolve referenced table")
	}
	if refTable.Name() != "User" {
		t.Errorf("expected referenced table User, got %q", refTable.Name())
	}
	if fkWalker.IsSelfReferential() {
		t.Error("Post->User should not be self-referential")
	}
}

func TestForeignKeyWalkerSelfReferential(t *testing.T) {
	s := &Schema{Tables: []Table{{
		Name:    "Employee",
		Columns: []Column{{Name: "id"}, {Name: "managerId"}},
		ForeignKeys: []ForeignKey{
			{Columns: []string{"managerId"}, ReferencedTable: "Employee", ReferencedColumns: []string{"id"}},
		},
	}}}

	fkWalker := s.Table(0).ForeignKeys()[0]
	if !fkWalker.IsSelfReferential() {
		t.Error("expected Employee->Employee to be self-referential")
	}
}

func TestTablesForPairAndColumnsForPair(t *testing.T) {
	previous := twoTableSchema()
	next := twoTableSchema()
	pair := MakePair[*Schema](previous, next)

	tables := TablesForPair(pair, 0, 0)
	if tables.Previous.Name() != "User" || tables.Next.Name() != "User" {
		t.Fatalf("expected both sides to resolve to User, got %q/%q", tables.Previous.Name(), tables.Next.Name())
	}

	cols := ColumnsForPair(tables, 1, 1)
	if cols.Previous.Name() != "name" || cols.Next.Name() != "name" {
		t.Fatalf("expected both sides to resolve to name, got %q/%q", cols.Previous.Name(), cols.Next.Name())
	}
}

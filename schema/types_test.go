package schema

import "testing"

func TestTableByName(t *testing.T) {
	s := &Schema{Tables: []Table{{Name: "Cat"}, {Name: "Dog"}}}

	if got := s.TableByName("Dog"); got != 1 {
		t.Fatalf("expected index 1, got %d", got)
	}
	if got := s.TableByName("Bird"); got != -1 {
		t.Fatalf("expected -1 for missing table, got %d", got)
	}
}

func TestEnumByName(t *testing.T) {
	s := &Schema{Enums: []Enum{{Name: "Color", Variants: []string{"Red", "Blue"}}}}

	if got := s.EnumByName("Color"); got != 0 {
		t.Fatalf("expected index 0, got %d", got)
	}
	if got := s.EnumByName("Size"); got != -1 {
		t.Fatalf("expected -1 for missing enum, got %d", got)
	}
}

func TestColumnByName(t *testing.T) {
	tbl := &Table{Columns: []Column{{Name: "id"}, {Name: "name"}}}

	if got := tbl.ColumnByName("name"); got != 1 {
		t.Fatalf("expected index 1, got %d", got)
	}
	if got := tbl.ColumnByName("missing"); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}

func TestArityPredicates(t *testing.T) {
	cases := []struct {
		arity                    Arity
		required, nullable, list bool
	}{
		{Required, true, false, false},
		{Nullable, false, true, false},
		{List, false, false, true},
	}
	for _, c := range cases {
		if got := c.arity.IsRequired(); got != c.required {
			t.Errorf("Arity(%d).IsRequired() = %v, want %v", c.arity, got, c.required)
		}
		if got := c.arity.IsNullable(); got != c.nullable {
			t.Errorf("Arity(%d).IsNullable() = %v, want %v", c.arity, got, c.nullable)
		}
		if got := c.arity.IsList(); got != c.list {
			t.Errorf("Arity(%d).IsList() = %v, want %v", c.arity, got, c.list)
		}
	}
}

func TestDefaultIsUsable(t *testing.T) {
	cases := []struct {
		name string
		d    *Default
		want bool
	}{
		{"nil", nil, false},
		{"value", &Default{Kind: DefaultKindValue, Value: Value{Kind: ValueInt, Int: 1}}, true},
		{"now", &Default{Kind: DefaultKindNow}, true},
		{"db_generated_nonempty", &Default{Kind: DefaultKindDBGenerated, Expr: "gen_random_uuid()"}, true},
		{"db_generated_empty", &Default{Kind: DefaultKindDBGenerated, Expr: ""}, false},
		{"sequence", &Default{Kind: DefaultKindSequence, Seq: "cat_id_seq"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.d.IsUsable(); got != c.want {
				t.Errorf("IsUsable() = %v, want %v", got, c.want)
			}
		})
	}
}

package flavor

import (
	"testing"

	"github.com/schemadrift/schemadrift/schema"
)

func ct(f schema.Family) schema.ColumnType { return schema.ColumnType{Family: f} }

func TestClassifyTypeChangeNoChange(t *testing.T) {
	if got := ClassifyTypeChange(Postgres, ct(schema.FamilyInt), ct(schema.FamilyInt)); got != NoTypeChange {
		t.Fatalf("expected NoTypeChange, got %v", got)
	}
}

func TestClassifyTypeChangePostgresWidening(t *testing.T) {
	cases := []struct {
		from, to schema.Family
		want     TypeChange
	}{
		{schema.FamilyInt, schema.FamilyBigInt, SafeCast},
		{schema.FamilyInt, schema.FamilyFloat, RiskyCast},
		{schema.FamilyString, schema.FamilyInt, NotCastable},
		{schema.FamilyJSON, schema.FamilyBinary, RiskyCast},
	}
	for _, c := range cases {
		if got := ClassifyTypeChange(Postgres, ct(c.from), ct(c.to)); got != c.want {
			t.Errorf("Postgres %v->%v = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestClassifyTypeChangeMySQLHasNoGeneralNumericWidening(t *testing.T) {
	// widensWithoutLoss only special-cases Int->BigInt/Decimal and
	// BigInt->Decimal; Float->Decimal has no safe-widening rule and falls
	// through to the RiskyCast default.
	if got := ClassifyTypeChange(MySQL, ct(schema.FamilyFloat), ct(schema.FamilyDecimal)); got != RiskyCast {
		t.Fatalf("expected RiskyCast, got %v", got)
	}
}

func TestClassifyTypeChangeSQLiteNumericIsAlwaysSafe(t *testing.T) {
	if got := ClassifyTypeChange(SQLite, ct(schema.FamilyInt), ct(schema.FamilyFloat)); got != SafeCast {
		t.Fatalf("expected SafeCast for numeric-to-numeric on SQLite, got %v", got)
	}
}

func TestClassifyTypeChangeSQLiteNeverNotCastable(t *testing.T) {
	families := []schema.Family{schema.FamilyBoolean, schema.FamilyInt, schema.FamilyString, schema.FamilyJSON, schema.FamilyBinary, schema.FamilyUUID}
	for _, from := range families {
		for _, to := range families {
			if from == to {
				continue
			}
			if got := ClassifyTypeChange(SQLite, ct(from), ct(to)); got == NotCastable {
				t.Errorf("SQLite %v->%v classified NotCastable; SQLite's rebuild-and-copy can always re-cast", from, to)
			}
		}
	}
}

func TestClassifyTypeChangeStringNarrowingIsRisky(t *testing.T) {
	shortLen, longLen := 10, 255
	prev := schema.ColumnType{Family: schema.FamilyString, CharacterMaximumLength: &longLen}
	next := schema.ColumnType{Family: schema.FamilyString, CharacterMaximumLength: &shortLen}
	if got := ClassifyTypeChange(Postgres, prev, next); got != RiskyCast {
		t.Fatalf("expected narrowing VARCHAR to be RiskyCast, got %v", got)
	}
}

func TestClassifyTypeChangeStringWideningIsNoChange(t *testing.T) {
	shortLen, longLen := 10, 255
	prev := schema.ColumnType{Family: schema.FamilyString, CharacterMaximumLength: &shortLen}
	next := schema.ColumnType{Family: schema.FamilyString, CharacterMaximumLength: &longLen}
	if got := ClassifyTypeChange(Postgres, prev, next); got != NoTypeChange {
		t.Fatalf("expected widening VARCHAR to be NoTypeChange, got %v", got)
	}
}

func TestClassifyTypeChangeEnumToStringIsSafeOnPostgres(t *testing.T) {
	prev := schema.ColumnType{Family: schema.FamilyEnum, EnumName: "Color"}
	next := schema.ColumnType{Family: schema.FamilyString}
	if got := ClassifyTypeChange(Postgres, prev, next); got != SafeCast {
		t.Fatalf("expected enum->string to be SafeCast, got %v", got)
	}
}

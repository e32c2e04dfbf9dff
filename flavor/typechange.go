package flavor

import "github.com/schemadrift/schemadrift/schema"

// TypeChange classifies how safely one column type can be converted into
// another without an explicit drop-and-recreate. Grounded on the
// destructive-change checker's three-way classification of a column
// type change as SafeCast/RiskyCast/NotCastable.
type TypeChange int

const (
	// NoTypeChange means the column's type was not altered.
	NoTypeChange TypeChange = iota
	// SafeCast means every value of the previous type converts to the next
	// type without loss or possible failure (e.g. INT -> BIGINT).
	SafeCast
	// RiskyCast means the conversion can fail or truncate data for some
	// existing values (e.g. TEXT -> INT, VARCHAR(255) -> VARCHAR(10)).
	RiskyCast
	// NotCastable means the engine has no cast path between the two types;
	// the column must be dropped and recreated.
	NotCastable
)

// ClassifyTypeChange compares a previous and next column type under the
// given flavor's casting rules.
func ClassifyTypeChange(f Flavor, previous, next schema.ColumnType) TypeChange {
	if previous.Family == next.Family && previous.EnumName == next.EnumName {
		if previous.Family != schema.FamilyString || safeStringNarrowing(previous, next) {
			return NoTypeChangeIfEqualLength(previous, next)
		}
		return RiskyCast
	}

	switch f {
	case Postgres:
		return classifyPostgres(previous.Family, next.Family)
	case MySQL, MariaDB:
		return classifyMySQL(previous.Family, next.Family)
	case SQLite:
		// SQLite is dynamically typed at the storage layer; any family
		// change is expressible as a cast in the rebuild-and-copy INSERT,
		// but every change other than one between two numeric families is
		// still marked risky so the checker can warn on tables with data.
		return classifySQLite(previous.Family, next.Family)
	case MSSQL:
		return classifyMSSQL(previous.Family, next.Family)
	default:
		return NotCastable
	}
}

// NoTypeChangeIfEqualLength distinguishes "no change at all" from a
// same-family narrowing (e.g. VARCHAR(255) -> VARCHAR(10)), which is risky
// even though the family is unchanged.
func NoTypeChangeIfEqualLength(previous, next schema.ColumnType) TypeChange {
	if previous.CharacterMaximumLength == nil || next.CharacterMaximumLength == nil {
		return NoTypeChange
	}
	if *next.CharacterMaximumLength < *previous.CharacterMaximumLength {
		return RiskyCast
	}
	return NoTypeChange
}

func safeStringNarrowing(previous, next schema.ColumnType) bool {
	if previous.CharacterMaximumLength == nil || next.CharacterMaximumLength == nil {
		return true
	}
	return *next.CharacterMaximumLength >= *previous.CharacterMaximumLength
}

// widensWithoutLoss covers the numeric-widening conversions every flavor
// treats as safe regardless of dialect: growing precision never loses data.
func widensWithoutLoss(previous, next schema.Family) bool {
	switch {
	case previous == schema.FamilyInt && next == schema.FamilyBigInt:
		return true
	case previous == schema.FamilyInt && next == schema.FamilyDecimal:
		return true
	case previous == schema.FamilyBigInt && next == schema.FamilyDecimal:
		return true
	default:
		return false
	}
}

// notCastableAcrossFamilies is the common core grounded on the original
// engine's MSSQL flavour match (sql_schema_differ_flavour/mssql.rs): a
// string can't be reliably parsed as a number, and a datetime has no
// meaningful floating-point representation. Every flavor except SQLite
// refuses these the same way; only the RiskyCast/SafeCast fallback differs
// per dialect.
func notCastableAcrossFamilies(previous, next schema.Family) bool {
	if previous == schema.FamilyString && isNumeric(next) {
		return true
	}
	if previous == schema.FamilyDateTime && next == schema.FamilyFloat {
		return true
	}
	return false
}

func classifyPostgres(previous, next schema.Family) TypeChange {
	switch {
	case next == schema.FamilyString:
		return SafeCast
	case notCastableAcrossFamilies(previous, next):
		return NotCastable
	case widensWithoutLoss(previous, next):
		return SafeCast
	default:
		return RiskyCast
	}
}

func classifyMySQL(previous, next schema.Family) TypeChange {
	switch {
	case next == schema.FamilyString:
		return SafeCast
	case notCastableAcrossFamilies(previous, next):
		return NotCastable
	case widensWithoutLoss(previous, next):
		return SafeCast
	default:
		return RiskyCast
	}
}

// SQLite's type affinity system accepts almost any storage class in any
// column (type affinity, not strict typing), so most conversions succeed
// at the SQL level; the engine still flags cross-family moves as risky
// because the rebuild-and-copy path re-validates via PRAGMA foreign_key_check,
// not a value-level CAST. Unlike the other flavors, nothing is NotCastable:
// SQLite will store any value under any declared type.
func classifySQLite(previous, next schema.Family) TypeChange {
	if isNumeric(previous) && isNumeric(next) {
		return SafeCast
	}
	return RiskyCast
}

// classifyMSSQL mirrors the original engine's MSSQL match directly: any
// target of String is a safe cast, String->numeric and DateTime->Float are
// refused outright, everything else is a risky cast.
func classifyMSSQL(previous, next schema.Family) TypeChange {
	switch {
	case next == schema.FamilyString:
		return SafeCast
	case notCastableAcrossFamilies(previous, next):
		return NotCastable
	default:
		return RiskyCast
	}
}

func isNumeric(f schema.Family) bool {
	switch f {
	case schema.FamilyInt, schema.FamilyBigInt, schema.FamilyFloat, schema.FamilyDecimal:
		return true
	default:
		return false
	}
}

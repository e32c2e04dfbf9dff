package diff

import (
	"bytes"
	"fmt"

	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

// Error reports a structurally impossible diff: a transition the Differ
// refuses to model as any step, rather than guessing. Grounded on the
// original engine's "unreachable" assertions for AlterEnum on MySQL/SQLite:
// we surface these as a typed error instead of panicking.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("diff: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Differ computes migration steps between a previous and a next schema for
// one flavor, pairing tables and columns by name and emitting flavor-aware
// rebuild decisions (AlterColumn vs. DropAndRecreateColumn vs. a full
// RedefineTables) where a plain in-place ALTER can't express the change.
type Differ struct {
	Flavor flavor.Flavor
}

// New constructs a Differ for the given flavor.
func New(f flavor.Flavor) *Differ {
	return &Differ{Flavor: f}
}

// Diff compares previous and next and returns the ordered step list.
// Diffing the same schema against itself always yields an empty slice.
//
// Diff fails with an *Error if the next schema requires altering the
// variant set of an enum on a flavor with no native enum type (MySQL,
// MariaDB, SQLite inline enums on the column itself, or have none at all);
// renaming is never the failure mode (always drop+create) but an
// unsupported enum alteration is.
func (d *Differ) Diff(previous, next *schema.Schema) ([]Step, error) {
	alterEnumSteps, dropEnumSteps, createEnumSteps, err := d.diffEnums(previous, next)
	if err != nil {
		return nil, err
	}
	tablePairs, createdTables, droppedTables := pairTables(previous, next)

	var createTableSteps []Step
	for _, idx := range createdTables {
		createTableSteps = append(createTableSteps, Step{Kind: CreateTable, CreateTablePayload: &CreateTableStep{Table: idx}})
	}

	var alterSteps []Step
	var dropIndexSteps []Step
	var createIndexSteps []Step
	var redefine []RedefineTable

	var addFKSteps []Step
	var dropFKSteps []Step

	for _, pair := range tablePairs {
		changes, typeChangeNeedsRebuild := d.diffTableColumns(previous, next, pair)
		dropIdx, createIdx := d.diffTableIndexes(previous, next, pair)
		addFK := d.diffForeignKeysAdded(previous, next, pair)
		dropFK := d.diffForeignKeysDropped(previous, next, pair)

		// SQLite declares foreign keys inline on CREATE TABLE only; any
		// add/drop/retarget forces the rebuild protocol, which recreates
		// the table with the next FK set and makes standalone FK steps
		// redundant.
		fkNeedsRebuild := d.Flavor == flavor.SQLite && (len(addFK) > 0 || len(dropFK) > 0)

		if typeChangeNeedsRebuild || fkNeedsRebuild ||
			(d.Flavor.RequiresTableRebuildForAlter() && hasColumnAlteration(changes)) ||
			(d.Flavor == flavor.MSSQL && hasAutoIncrementToggle(changes)) {
			if len(changes) > 0 || fkNeedsRebuild {
				redefine = append(redefine, RedefineTable{Tables: pair, Changes: changes})
			}
			dropIndexSteps = append(dropIndexSteps, dropIdx...)
			createIndexSteps = append(createIndexSteps, createIdx...)
			if d.Flavor != flavor.SQLite {
				addFKSteps = append(addFKSteps, addFK...)
				dropFKSteps = append(dropFKSteps, dropFK...)
			}
			continue
		}

		if len(changes) > 0 {
			alterSteps = append(alterSteps, Step{Kind: AlterTable, AlterTablePayload: &AlterTableStep{Tables: pair, Changes: changes}})
		}
		dropIndexSteps = append(dropIndexSteps, dropIdx...)
		createIndexSteps = append(createIndexSteps, createIdx...)
		addFKSteps = append(addFKSteps, addFK...)
		dropFKSteps = append(dropFKSteps, dropFK...)
	}

	// A created table's foreign keys are separate AddForeignKey steps, so
	// they may reference any table this migration creates. SQLite declares
	// them inline in CREATE TABLE instead.
	if d.Flavor != flavor.SQLite {
		for _, idx := range createdTables {
			for fi := range next.Tables[idx].ForeignKeys {
				addFKSteps = append(addFKSteps, Step{Kind: AddForeignKey, AddFKPayload: &AddForeignKeyStep{Table: idx, ForeignKey: fi}})
			}
		}
	}

	var dropTableSteps []Step
	for _, idx := range droppedTables {
		dropTableSteps = append(dropTableSteps, Step{Kind: DropTable, DropTablePayload: &DropTableStep{Table: idx}})
	}

	// Canonical ordering (spec.md §4.3): drop FKs that reference
	// dropped/altered objects, drop conflicting indexes, alter enums
	// (add variants), drop tables, drop enums, create enums, redefine
	// tables, create tables, alter tables, create indexes, add foreign
	// keys. This order satisfies the dependency invariant: no step refers
	// to an object a later step creates, nor one an earlier step dropped.
	var steps []Step
	steps = append(steps, dropFKSteps...)
	steps = append(steps, dropIndexSteps...)
	steps = append(steps, alterEnumSteps...)
	steps = append(steps, dropTableSteps...)
	steps = append(steps, dropEnumSteps...)
	steps = append(steps, createEnumSteps...)
	if len(redefine) > 0 {
		steps = append(steps, Step{Kind: RedefineTables, RedefineTablesPay: &RedefineTablesStep{Tables: redefine}})
	}
	steps = append(steps, createTableSteps...)
	steps = append(steps, alterSteps...)
	steps = append(steps, createIndexSteps...)
	steps = append(steps, addFKSteps...)

	return steps, nil
}

// hasColumnAlteration reports whether any change is something other than
// ADD COLUMN, the one table change SQLite can apply in place.
func hasColumnAlteration(changes []TableChange) bool {
	for _, c := range changes {
		if c.Kind != AddColumn {
			return true
		}
	}
	return false
}

// hasAutoIncrementToggle reports whether any column gained or lost its
// auto-increment marker. MSSQL cannot add or remove IDENTITY on an
// existing column, so the toggle forces the rebuild protocol there.
func hasAutoIncrementToggle(changes []TableChange) bool {
	for _, c := range changes {
		for _, atom := range c.Changes {
			if atom.Kind == ColumnAutoIncrementChanged {
				return true
			}
		}
	}
	return false
}

// pairTables matches previous and next tables by name.
func pairTables(previous, next *schema.Schema) (pairs []schema.Pair[schema.TableIndex], created, dropped []schema.TableIndex) {
	nextByName := make(map[string]schema.TableIndex, len(next.Tables))
	for i := range next.Tables {
		nextByName[next.Tables[i].Name] = schema.TableIndex(i)
	}
	seen := make(map[string]bool, len(previous.Tables))
	for i := range previous.Tables {
		name := previous.Tables[i].Name
		seen[name] = true
		if nextIdx, ok := nextByName[name]; ok {
			pairs = append(pairs, schema.MakePair(schema.TableIndex(i), nextIdx))
		} else {
			dropped = append(dropped, schema.TableIndex(i))
		}
	}
	for i := range next.Tables {
		if !seen[next.Tables[i].Name] {
			created = append(created, schema.TableIndex(i))
		}
	}
	return pairs, created, dropped
}

func (d *Differ) diffEnums(previous, next *schema.Schema) (alter, drop, create []Step, err error) {
	nextByName := make(map[string]schema.EnumIndex, len(next.Enums))
	for i := range next.Enums {
		nextByName[next.Enums[i].Name] = schema.EnumIndex(i)
	}
	seen := make(map[string]bool, len(previous.Enums))
	for i := range previous.Enums {
		name := previous.Enums[i].Name
		seen[name] = true
		nextIdx, ok := nextByName[name]
		if !ok {
			drop = append(drop, Step{Kind: DropEnum, DropEnumPayload: &DropEnumStep{Enum: schema.EnumIndex(i)}})
			continue
		}
		added, dropped, reordered := diffVariants(previous.Enums[i].Variants, next.Enums[nextIdx].Variants)
		if len(added) > 0 || len(dropped) > 0 || reordered {
			if !d.Flavor.SupportsEnums() {
				return nil, nil, nil, &Error{Op: "alter_enum", Err: fmt.Errorf("flavor %s has no native enum type, cannot alter variants of enum %q in place", d.Flavor, name)}
			}
			alter = append(alter, Step{Kind: AlterEnum, AlterEnumPayload: &AlterEnumStep{
				Enums:           schema.MakePair(schema.EnumIndex(i), nextIdx),
				AddedVariants:   added,
				DroppedVariants: dropped,
				OrderChanged:    reordered,
			}})
		}
	}
	for i := range next.Enums {
		if !seen[next.Enums[i].Name] {
			create = append(create, Step{Kind: CreateEnum, CreateEnumPayload: &CreateEnumStep{Enum: schema.EnumIndex(i)}})
		}
	}
	return alter, drop, create, nil
}

func diffVariants(previous, next []string) (added, dropped []string, reordered bool) {
	prevSet := make(map[string]int, len(previous))
	for i, v := range previous {
		prevSet[v] = i
	}
	nextSet := make(map[string]bool, len(next))
	for _, v := range next {
		nextSet[v] = true
		if _, ok := prevSet[v]; !ok {
			added = append(added, v)
		}
	}
	for _, v := range previous {
		if !nextSet[v] {
			dropped = append(dropped, v)
		}
	}
	kept := make([]string, 0, len(next))
	for _, v := range next {
		if _, ok := prevSet[v]; ok {
			kept = append(kept, v)
		}
	}
	var prevKept []string
	for _, v := range previous {
		if nextSet[v] {
			prevKept = append(prevKept, v)
		}
	}
	for i := range kept {
		if i >= len(prevKept) || kept[i] != prevKept[i] {
			reordered = true
			break
		}
	}
	return added, dropped, reordered
}

// diffTableColumns compares the columns of a paired table and returns the
// TableChanges plus whether a type change demands a full rebuild (a
// NotCastable change on a flavor that can't ALTER COLUMN).
func (d *Differ) diffTableColumns(previous, next *schema.Schema, pair schema.Pair[schema.TableIndex]) (changes []TableChange, needsRebuild bool) {
	prevTable := &previous.Tables[pair.Previous]
	nextTable := &next.Tables[pair.Next]

	nextByName := make(map[string]int, len(nextTable.Columns))
	for i, c := range nextTable.Columns {
		nextByName[c.Name] = i
	}
	seenNext := make(map[string]bool, len(prevTable.Columns))

	for pi, pc := range prevTable.Columns {
		ni, ok := nextByName[pc.Name]
		if !ok {
			changes = append(changes, TableChange{Kind: DropColumn, Columns: schema.MakePair(pi, -1)})
			continue
		}
		seenNext[pc.Name] = true
		nc := nextTable.Columns[ni]

		var atomic []ColumnChange
		tc := flavor.ClassifyTypeChange(d.Flavor, pc.Type, nc.Type)
		if tc != flavor.NoTypeChange {
			atomic = append(atomic, ColumnChange{Kind: ColumnTypeChanged})
		}
		if pc.Type.Arity != nc.Type.Arity {
			atomic = append(atomic, ColumnChange{Kind: ColumnArityChanged})
		}
		if !defaultsEqual(pc.Default, nc.Default) {
			atomic = append(atomic, ColumnChange{Kind: ColumnDefaultChanged})
		}
		if pc.AutoIncrement != nc.AutoIncrement {
			atomic = append(atomic, ColumnChange{Kind: ColumnAutoIncrementChanged})
		}
		if len(atomic) == 0 {
			continue
		}

		if tc == flavor.NotCastable {
			changes = append(changes, TableChange{Kind: DropAndRecreateColumn, Columns: schema.MakePair(pi, ni), Changes: atomic, TypeChange: tc})
			needsRebuild = needsRebuild || d.Flavor.RequiresTableRebuildForAlter()
			continue
		}

		changes = append(changes, TableChange{Kind: AlterColumn, Columns: schema.MakePair(pi, ni), Changes: atomic, TypeChange: tc})
	}

	for ni, nc := range nextTable.Columns {
		if !seenNext[nc.Name] {
			changes = append(changes, TableChange{Kind: AddColumn, Columns: schema.MakePair(-1, ni)})
		}
	}

	changes = append(changes, diffPrimaryKey(prevTable, nextTable)...)

	return changes, needsRebuild
}

func diffPrimaryKey(prevTable, nextTable *schema.Table) []TableChange {
	var changes []TableChange
	switch {
	case prevTable.PrimaryKey == nil && nextTable.PrimaryKey != nil:
		changes = append(changes, TableChange{Kind: AddPrimaryKey})
	case prevTable.PrimaryKey != nil && nextTable.PrimaryKey == nil:
		changes = append(changes, TableChange{Kind: DropPrimaryKey})
	case prevTable.PrimaryKey != nil && nextTable.PrimaryKey != nil:
		if !stringSlicesEqual(prevTable.PrimaryKey.Columns, nextTable.PrimaryKey.Columns) {
			changes = append(changes, TableChange{Kind: DropPrimaryKey}, TableChange{Kind: AddPrimaryKey})
		}
	}
	return changes
}

func defaultsEqual(a, b *schema.Default) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case schema.DefaultKindValue:
		return valuesEqual(a.Value, b.Value)
	case schema.DefaultKindDBGenerated:
		return a.Expr == b.Expr
	case schema.DefaultKindSequence:
		return a.Seq == b.Seq
	default:
		return true
	}
}

func valuesEqual(a, b schema.Value) bool {
	return a.Kind == b.Kind && a.Str == b.Str && a.Int == b.Int &&
		a.Float == b.Float && a.Bool == b.Bool && bytes.Equal(a.Bytes, b.Bytes)
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// diffTableIndexes returns the index changes for one paired table, split
// into a "drop" bucket (DropIndex) and a "create" bucket (AlterIndex or
// RedefineIndex renames first, then CreateIndex), so the caller can place
// them in the canonical drop-before-create step order.
func (d *Differ) diffTableIndexes(previous, next *schema.Schema, pair schema.Pair[schema.TableIndex]) (drop, create []Step) {
	prevTable := &previous.Tables[pair.Previous]
	nextTable := &next.Tables[pair.Next]

	nextByKey := make(map[string]int, len(nextTable.Indexes))
	for i, idx := range nextTable.Indexes {
		nextByKey[indexKey(idx)] = i
	}
	seen := make(map[string]bool, len(prevTable.Indexes))

	for pi, pidx := range prevTable.Indexes {
		key := indexKey(pidx)
		ni, ok := nextByKey[key]
		if ok {
			seen[key] = true
			if pidx.Name != nextTable.Indexes[ni].Name {
				// Same shape, different name: rename in place where the
				// flavor supports it, else drop and recreate.
				if d.Flavor.SupportsIndexRename() {
					create = append(create, Step{Kind: AlterIndex, AlterIndexPayload: &AlterIndexStep{
						Tables:  pair,
						Indexes: schema.MakePair(pi, ni),
					}})
				} else {
					create = append(create, Step{Kind: RedefineIndex, RedefineIndexPay: &RedefineIndexStep{
						Tables:  pair,
						Indexes: schema.MakePair(pi, ni),
					}})
				}
			}
			continue
		}
		drop = append(drop, Step{Kind: DropIndex, DropIndexPayload: &DropIndexStep{Table: pair.Previous, Index: pi}})
	}
	for ni, nidx := range nextTable.Indexes {
		if !seen[indexKey(nidx)] {
			create = append(create, Step{Kind: CreateIndex, CreateIndexPayload: &CreateIndexStep{Table: pair.Next, Index: ni}})
		}
	}
	return drop, create
}

func indexKey(idx schema.Index) string {
	key := ""
	for _, c := range idx.Columns {
		key += c + ","
	}
	if idx.Kind == schema.IndexUnique {
		key += "|unique"
	}
	return key
}

// foreignKeyKey identifies a foreign key by its shape: constrained columns
// and its target (referenced table and columns). Constraint names are
// compared separately in foreignKeysMatch, since a name present on only one
// side of the pair must not by itself count as a replacement.
func foreignKeyKey(fk schema.ForeignKey) string {
	key := ""
	for _, c := range fk.Columns {
		key += c + ","
	}
	key += "->" + fk.ReferencedTable + ":"
	for _, c := range fk.ReferencedColumns {
		key += c + ","
	}
	return key
}

// foreignKeysMatch reports whether two same-shape foreign keys are the same
// logical constraint: if both carry a constraint name and the names differ,
// the foreign key is considered replaced (drop + add) even though its
// columns and target are unchanged.
func foreignKeysMatch(a, b schema.ForeignKey) bool {
	if a.ConstraintName != nil && b.ConstraintName != nil && *a.ConstraintName != *b.ConstraintName {
		return false
	}
	return true
}

func (d *Differ) diffForeignKeysAdded(previous, next *schema.Schema, pair schema.Pair[schema.TableIndex]) []Step {
	prevTable := &previous.Tables[pair.Previous]
	nextTable := &next.Tables[pair.Next]
	prevByShape := make(map[string][]schema.ForeignKey, len(prevTable.ForeignKeys))
	for _, fk := range prevTable.ForeignKeys {
		key := foreignKeyKey(fk)
		prevByShape[key] = append(prevByShape[key], fk)
	}
	var steps []Step
	for i, fk := range nextTable.ForeignKeys {
		matched := false
		for _, pfk := range prevByShape[foreignKeyKey(fk)] {
			if foreignKeysMatch(pfk, fk) {
				matched = true
				break
			}
		}
		if !matched {
			steps = append(steps, Step{Kind: AddForeignKey, AddFKPayload: &AddForeignKeyStep{Table: pair.Next, ForeignKey: i}})
		}
	}
	return steps
}

func (d *Differ) diffForeignKeysDropped(previous, next *schema.Schema, pair schema.Pair[schema.TableIndex]) []Step {
	prevTable := &previous.Tables[pair.Previous]
	nextTable := &next.Tables[pair.Next]
	nextByShape := make(map[string][]schema.ForeignKey, len(nextTable.ForeignKeys))
	for _, fk := range nextTable.ForeignKeys {
		key := foreignKeyKey(fk)
		nextByShape[key] = append(nextByShape[key], fk)
	}
	var steps []Step
	for i, fk := range prevTable.ForeignKeys {
		matched := false
		for _, nfk := range nextByShape[foreignKeyKey(fk)] {
			if foreignKeysMatch(fk, nfk) {
				matched = true
				break
			}
		}
		if !matched {
			steps = append(steps, Step{Kind: DropForeignKey, DropFKPayload: &DropForeignKeyStep{Table: pair.Previous, ForeignKey: i}})
		}
	}
	return steps
}

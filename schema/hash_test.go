package schema

import "testing"

func TestHashStableAcrossEqualValues(t *testing.T) {
	a := &Schema{Tables: []Table{{Name: "Cat", Columns: []Column{{Name: "id", Type: ColumnType{Family: FamilyInt}}}}}}
	b := &Schema{Tables: []Table{{Name: "Cat", Columns: []Column{{Name: "id", Type: ColumnType{Family: FamilyInt}}}}}}

	if a.Hash() != b.Hash() {
		t.Fatalf("expected equal schemas to hash identically, got %q vs %q", a.Hash(), b.Hash())
	}
}

func TestHashChangesWithContent(t *testing.T) {
	a := &Schema{Tables: []Table{{Name: "Cat"}}}
	b := &Schema{Tables: []Table{{Name: "Dog"}}}

	if a.Hash() == b.Hash() {
		t.Fatal("expected differently named tables to hash differently")
	}
}

func TestHashIsHex64(t *testing.T) {
	s := &Schema{}
	h := s.Hash()
	if len(h) != 64 {
		t.Fatalf("expected a 64-char hex sha256 digest, got length %d (%q)", len(h), h)
	}
}

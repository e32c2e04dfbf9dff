package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash returns a stable content hash of the schema: equal schema values
// hash equally, so a caller can compare the hash of the schema it planned
// against with that of a freshly introspected one. Apply and the CLI
// commands make no such comparison themselves.
//
// Built on deterministic JSON encoding of the Schema value tree, since
// json.Marshal already walks struct fields in a fixed order.
func (s *Schema) Hash() string {
	// json.Marshal visits struct fields in declaration order and slice
	// elements in position order, so two Schema values built identically
	// (including nil vs. empty-slice, which Go's zero value already makes
	// consistent within this package) always encode to the same bytes.
	b, err := json.Marshal(s)
	if err != nil {
		// Schema never carries channels, funcs, or cycles, so Marshal
		// cannot fail in practice; treat it as an unrecoverable bug.
		panic("schema: Hash: " + err.Error())
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

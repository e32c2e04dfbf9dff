package schema

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// document is the JSON Schema that target schema.Schema files must satisfy
// before Validate will let them through. It only constrains the shape a
// hand-written file must have to unmarshal safely: table and column names
// present, column types carrying a numeric family. It does not attempt to
// mirror every invariant the Go types themselves enforce. Property names
// are matched exactly as written here, in lower case; json.Unmarshal
// matches field names case-insensitively, so a file using the capitalized
// Go field names that json.Marshal writes (as "introspect" prints it) is
// accepted without these checks.
const document = `{
  "type": "object",
  "properties": {
    "tables": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "columns"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "columns": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "type"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "type": {
                  "type": "object",
                  "required": ["family"],
                  "properties": {
                    "family": {"type": "integer", "minimum": 0}
                  }
                }
              }
            }
          }
        }
      }
    },
    "enums": {"type": "array"}
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(document)

// Validate checks raw JSON bytes against the target-schema document shape
// before the caller attempts json.Unmarshal into a Schema. It catches
// malformed or partially-filled-in schema files with a readable list of
// complaints instead of a single unmarshal error pointing at a byte offset.
func Validate(data []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema: validating document: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msg := fmt.Sprintf("schema: target schema file failed validation (%d issue(s)):", len(result.Errors()))
	for _, e := range result.Errors() {
		msg += fmt.Sprintf("\n  - %s", e)
	}
	return fmt.Errorf("%s", msg)
}

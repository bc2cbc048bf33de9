package relay

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const documentSchemaURL = "relay://schemas/document.json"

// Both sub-collections must be present; either may be empty.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["device_id", "events"],
  "properties": {
    "device_id": {"type": "string"},
    "events": {
      "type": "object",
      "required": ["new_process", "network_connection"],
      "properties": {
        "new_process": {"type": "array", "items": {"type": "object"}},
        "network_connection": {"type": "array", "items": {"type": "object"}}
      }
    }
  }
}`

func compileDocumentSchema() (*jsonschema.Schema, error) {
	return jsonschema.CompileString(documentSchemaURL, documentSchema)
}

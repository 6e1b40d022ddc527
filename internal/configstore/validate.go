package configstore

import (
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/quantive/binance-mcp/pkg/schema"
)

// documentSchemaJSON is the JSON Schema for the persisted store document.
// Embedded as a constant to avoid filesystem dependencies. Parsing succeeds
// only for documents the rest of the code can safely operate on; anything
// else is rejected as STORE_CORRUPT before a single account is touched.
const documentSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://binance-mcp.dev/schemas/store.json",
  "type": "object",
  "required": ["accounts"],
  "properties": {
    "accounts": {
      "type": "object",
      "additionalProperties": { "$ref": "#/$defs/record" }
    },
    "server": {
      "type": "object",
      "properties": {
        "log_level": { "type": "string" },
        "backup_schedule": { "type": "string" },
        "backup_retention": { "type": "integer", "minimum": 0 }
      }
    },
    "mcp": {
      "type": "object",
      "properties": {
        "server_name": { "type": "string" },
        "version": { "type": "string" }
      }
    }
  },
  "$defs": {
    "record": {
      "type": "object",
      "required": ["encrypted_api_key", "encrypted_api_secret", "market_type"],
      "properties": {
        "encrypted_api_key": { "type": "string", "minLength": 1 },
        "encrypted_api_secret": { "type": "string", "minLength": 1 },
        "market_type": { "type": "string", "minLength": 1 },
        "sandbox": { "type": "boolean" },
        "description": { "type": "string" },
        "created_at": { "type": "string" },
        "updated_at": { "type": "string" }
      }
    }
  }
}`

var (
	documentSchemaOnce sync.Once
	documentSchema     *jsonschema.Schema
	documentSchemaErr  error
)

func compiledDocumentSchema() (*jsonschema.Schema, error) {
	documentSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(documentSchemaJSON))
		if err != nil {
			documentSchemaErr = err
			return
		}
		if err := c.AddResource("https://binance-mcp.dev/schemas/store.json", doc); err != nil {
			documentSchemaErr = err
			return
		}
		documentSchema, documentSchemaErr = c.Compile("https://binance-mcp.dev/schemas/store.json")
	})
	return documentSchema, documentSchemaErr
}

// validateDocument checks raw store bytes against the document schema.
func validateDocument(data []byte) error {
	compiled, err := compiledDocumentSchema()
	if err != nil {
		return schema.NewError(schema.ErrCodeStoreCorrupt, "document schema unavailable").WithCause(err)
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		return schema.NewError(schema.ErrCodeStoreCorrupt, "store file is not valid JSON").WithCause(err)
	}
	if err := compiled.Validate(doc); err != nil {
		return schema.NewError(schema.ErrCodeStoreCorrupt, "store file violates document schema").WithCause(err)
	}
	return nil
}

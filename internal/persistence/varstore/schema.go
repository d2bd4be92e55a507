package varstore

import "github.com/santhosh-tekuri/jsonschema/v5"

const lineSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["name"],
  "additionalProperties": false,
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "region": {
      "type": "object",
      "required": ["type", "fields"],
      "additionalProperties": false,
      "properties": {
        "type": {"type": "string", "minLength": 1},
        "fields": {"type": "object"}
      }
    },
    "value": {"type": ["string", "number", "boolean"]}
  },
  "oneOf": [
    {"required": ["region"]},
    {"required": ["value"]}
  ]
}`

var lineSchema = jsonschema.MustCompileString("variable.schema.json", lineSchemaJSON)

package mapapi

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const areaSchemaURL = "https://mapassist.local/schemas/area.json"

// areaSchemaSource pins down the parts of an area response the overlay relies
// on. Unknown properties are allowed; the service adds fields over time.
const areaSchemaSource = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "point": {
      "type": "object",
      "properties": {
        "x": {"type": "integer"},
        "y": {"type": "integer"}
      },
      "required": ["x", "y"]
    },
    "pointList": {
      "type": "array",
      "items": {"$ref": "#/$defs/point"}
    },
    "idMap": {
      "type": "object",
      "additionalProperties": {"$ref": "#/$defs/pointList"}
    }
  },
  "type": "object",
  "properties": {
    "levelOrigin": {"$ref": "#/$defs/point"},
    "adjacentLevels": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "properties": {
          "exits": {"$ref": "#/$defs/pointList"},
          "origin": {"$ref": "#/$defs/point"},
          "width": {"type": "integer"},
          "height": {"type": "integer"}
        }
      }
    },
    "mapRows": {
      "type": "array",
      "items": {"type": "array", "items": {"type": "integer"}}
    },
    "npcs": {"$ref": "#/$defs/idMap"},
    "objects": {"$ref": "#/$defs/idMap"}
  },
  "required": ["levelOrigin", "mapRows"]
}`

var areaSchema = jsonschema.MustCompileString(areaSchemaURL, areaSchemaSource)

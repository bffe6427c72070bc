package config

import (
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemaJSON is the structural contract for a normalized Config.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "logging": {
      "type": "object",
      "properties": {
        "level": {"enum": ["debug", "info", "warn", "warning", "error"]}
      }
    },
    "eviction": {
      "type": "object",
      "properties": {
        "threshold_tokens": {"type": "integer", "minimum": 1},
        "chars_per_token": {"type": "integer", "minimum": 1},
        "head": {"type": "integer", "minimum": 1},
        "tail": {"type": "integer", "minimum": 1},
        "max_line_chars": {"type": "integer", "minimum": 1},
        "dir": {"type": "string", "pattern": "^/"}
      }
    },
    "skills": {
      "type": "object",
      "properties": {
        "sources": {"type": "array", "items": {"type": "string", "minLength": 1}},
        "watch": {"type": "boolean"},
        "refresh_cron": {"type": "string"}
      }
    },
    "memory": {
      "type": "object",
      "properties": {
        "sources": {"type": "array", "items": {"type": "string", "minLength": 1}}
      }
    },
    "filesystem": {
      "type": "object",
      "properties": {
        "root": {"type": "string"},
        "virtual": {"type": "boolean"}
      }
    },
    "store": {
      "type": "object",
      "properties": {
        "driver": {"enum": ["sqlite", "redis"]},
        "path": {"type": "string"},
        "url": {"type": "string"},
        "namespace": {"type": "string", "minLength": 1}
      }
    },
    "sandbox": {
      "type": "object",
      "properties": {
        "kind": {"enum": ["none", "host", "docker", "wasm"]},
        "image": {"type": "string"},
        "memory_mb": {"type": "integer", "minimum": 0},
        "network": {"type": "string"},
        "module_dir": {"type": "string"},
        "timeout_seconds": {"type": "integer", "minimum": 1}
      }
    }
  }
}`

// compiledSchema is built once at init; the schema is a compile-time
// constant, so failure here is a programming error.
var compiledSchema = mustCompile(schemaJSON)

func mustCompile(src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic("config: unmarshal embedded schema: " + err.Error())
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("config.json", doc); err != nil {
		panic("config: add schema resource: " + err.Error())
	}
	schema, err := c.Compile("config.json")
	if err != nil {
		panic("config: compile schema: " + err.Error())
	}
	return schema
}

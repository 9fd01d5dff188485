package topology

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"

	"github.com/shinji-kodama/cv-container/internal/model"
)

// containerSchema describes a topology document: a mapping of container
// name to container definition. Unknown keys are rejected so that typos
// like "parent" instead of "parent_container" fail loudly.
const containerSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "CloudVision container topology",
  "type": "object",
  "propertyNames": {
    "pattern": "^[A-Za-z0-9._%+ -]+$"
  },
  "additionalProperties": {
    "type": "object",
    "required": ["parent_container"],
    "properties": {
      "parent_container": {"type": "string", "minLength": 1},
      "configlets": {"type": "array", "items": {"type": "string"}},
      "devices": {"type": "array", "items": {"type": "string"}},
      "images": {"type": "array", "items": {"type": "string"}}
    },
    "additionalProperties": false
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(containerSchema))
	if err != nil {
		panic(fmt.Sprintf("topology: invalid built-in schema: %v", err))
	}
	return schema
}

// ValidateDocument checks a decoded topology document (as produced by
// yaml.Unmarshal into an interface{}) against the container schema.
//
// A nil document is treated as an empty topology. All violations are
// collected into a single ConfigurationError, sorted for stable output.
func ValidateDocument(doc interface{}) error {
	if doc == nil {
		doc = map[string]interface{}{}
	}

	result, err := compiledSchema.Validate(gojsonschema.NewGoLoader(normalize(doc)))
	if err != nil {
		return model.NewConfigurationError("topology could not be validated", err.Error())
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	sort.Strings(details)
	return model.NewConfigurationError("topology does not match the container schema", details...)
}

// normalize converts the map[interface{}]interface{} values yaml.v3 emits
// for mappings with non-string keys (e.g. a container named 100) into
// map[string]interface{}, which is what the JSON based validator expects.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	default:
		return v
	}
}

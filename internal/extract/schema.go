package extract

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// recordSchemaJSON checks the shape of one record: an object with string
// place_label and activity. Extra keys are ignored. Blank values are
// rejected after trimming, in toRecord.
const recordSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["place_label", "activity"],
  "properties": {
    "place_label": {"type": "string"},
    "activity":    {"type": "string"}
  }
}`

var recordSchema = mustCompileSchema("record.json", recordSchemaJSON)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile schema %s: %v", name, err))
	}
	return schema
}

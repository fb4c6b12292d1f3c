package api

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// callSchema describes the body of POST /v1/invoke. Argument values stay
// loosely typed; the dispatcher validates them per action.
const callSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["action"],
  "properties": {
    "action": {"type": "string", "enum": ["init", "set", "get", "remove", "keys", "clear"]},
    "callbackId": {"type": "string"},
    "arguments": {"type": "array", "maxItems": 4}
  },
  "additionalProperties": false
}`

var callSchemaLoader = gojsonschema.NewStringLoader(callSchema)

func validateCall(body []byte) error {
	result, err := gojsonschema.Validate(callSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("could not parse call: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return fmt.Errorf("invalid call: %s", strings.Join(msgs, "; "))
	}
	return nil
}

package engine

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/simucore/component"
	"github.com/c360/simucore/errors"
)

// Command names an inbound request
type Command string

// Inbound commands
const (
	CommandUpdateParameters      Command = "UPDATE_PARAMETERS"
	CommandUpdatePhysicalSignals Command = "UPDATE_PHYSICAL_SIGNALS"
)

// accepts reports whether a writable signal of the given role may be
// addressed by c.
func (c Command) accepts(role component.Kind) bool {
	switch c {
	case CommandUpdateParameters:
		return role == component.KindParameter
	case CommandUpdatePhysicalSignals:
		return role == component.KindPhysicalInput || role == component.KindPhysicalOutput
	default:
		return false
	}
}

// Update is one {id, value} entry of an inbound message
type Update struct {
	ID    component.ID `json:"id"`
	Value string       `json:"value"`
}

// Message is a validated inbound document
type Message struct {
	Command    Command  `json:"command"`
	Parameters []Update `json:"parameters"`
}

const messageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["command", "parameters"],
  "properties": {
    "command": {
      "type": "string",
      "enum": ["UPDATE_PARAMETERS", "UPDATE_PHYSICAL_SIGNALS"]
    },
    "parameters": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "value"],
        "properties": {
          "id": {"type": "integer", "minimum": 0, "maximum": 4294967295},
          "value": {"type": "string"}
        }
      }
    }
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(messageSchema))
})

// ParseMessage validates data against the protocol schema and decodes it
func ParseMessage(data []byte) (Message, error) {
	schema, err := compiledSchema()
	if err != nil {
		return Message{}, errors.WrapFatal(err, "engine", "ParseMessage", "compile schema")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return Message{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "engine", "ParseMessage", "decode document")
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.Field()+": "+desc.Description())
		}
		return Message{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidData, strings.Join(problems, "; ")),
			"engine", "ParseMessage", "schema validation")
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err), "engine", "ParseMessage", "decode message")
	}
	return msg, nil
}

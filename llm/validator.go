package llm

import (
	"encoding/json"
	"fmt"

	"github.com/sammcj/actorglue/types"
)

// Validator checks tool-call arguments against the advertised input schemas
type Validator struct {
	tools map[string]inputSchema
}

type inputSchema struct {
	Properties map[string]map[string]any `json:"properties"`
	Required   []string                  `json:"required"`
}

// NewValidator creates a validator for the given tools
func NewValidator(tools []types.ToolDescriptor) (*Validator, error) {
	schemas := make(map[string]inputSchema, len(tools))
	for _, tool := range tools {
		var schema inputSchema
		if len(tool.InputSchema) > 0 {
			if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
				return nil, fmt.Errorf("invalid input schema for %s: %w", tool.Name, err)
			}
		}
		schemas[tool.Name] = schema
	}
	return &Validator{tools: schemas}, nil
}

// ValidateCall checks that the tool exists and its arguments fit the schema
func (v *Validator) ValidateCall(call types.ToolCallRequest) error {
	schema, ok := v.tools[call.Name]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrToolNotFound, call.Name)
	}

	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return fmt.Errorf("arguments for %s are not a JSON object: %w", call.Name, err)
		}
	}

	if err := v.validateArguments(args, schema); err != nil {
		return fmt.Errorf("invalid arguments for tool %s: %w", call.Name, err)
	}
	return nil
}

func (v *Validator) validateArguments(args map[string]any, schema inputSchema) error {
	for _, required := range schema.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("missing required field: %s", required)
		}
	}

	for name, value := range args {
		propSchema, ok := schema.Properties[name]
		if !ok {
			return fmt.Errorf("unknown property: %s", name)
		}

		propType, ok := propSchema["type"].(string)
		if !ok {
			// untyped properties accept anything
			continue
		}

		if err := v.validateType(value, propType); err != nil {
			return fmt.Errorf("invalid value for %s: %w", name, err)
		}
	}

	return nil
}

// validateType validates a decoded JSON value against a JSON Schema type
func (v *Validator) validateType(value any, expectedType string) error {
	switch expectedType {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
	case "integer":
		f, ok := value.(float64)
		if !ok || f != float64(int64(f)) {
			return fmt.Errorf("expected integer, got %v", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	case "null":
		if value != nil {
			return fmt.Errorf("expected null, got %T", value)
		}
	default:
		return fmt.Errorf("unsupported type: %s", expectedType)
	}

	return nil
}

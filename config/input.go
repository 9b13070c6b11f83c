package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Input is a JSON object payload handed to a processor, either through
// --input or a local JSON file such as retell_config.json.
type Input map[string]any

// LoadInput reads a JSON object from path. An empty path yields an empty Input.
func LoadInput(path string) (Input, error) {
	if path == "" {
		return Input{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input %s: %w", path, err)
	}
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("parse input %s: %w", path, err)
	}
	if in == nil {
		in = Input{}
	}
	return in, nil
}

// LoadOptionalInput is LoadInput for local files that may legitimately be
// absent. ok reports whether the file existed.
func LoadOptionalInput(path string) (in Input, ok bool, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		return Input{}, false, nil
	}
	in, err = LoadInput(path)
	if err != nil {
		return Input{}, true, err
	}
	return in, true, nil
}

// String returns the value at key when it is a string
func (in Input) String(key string) string {
	if v, ok := in[key].(string); ok {
		return v
	}
	return ""
}

// Strings returns the value at key when it is a list of strings
func (in Input) Strings(key string) []string {
	raw, ok := in[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Map returns the value at key when it is an object
func (in Input) Map(key string) map[string]any {
	if v, ok := in[key].(map[string]any); ok {
		return v
	}
	return nil
}

// Has reports whether key is present
func (in Input) Has(key string) bool {
	_, ok := in[key]
	return ok
}

// types/errors.go
package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBridgeInit indicates bridge initialization failed
	ErrBridgeInit = errors.New("bridge initialization failed")

	// ErrLLMResponse indicates a failed or invalid LLM response
	ErrLLMResponse = errors.New("invalid LLM response")

	// ErrToolExecution indicates a tool execution failure
	ErrToolExecution = errors.New("tool execution failed")

	// ErrToolNotFound indicates a dispatch to an unknown tool
	ErrToolNotFound = errors.New("tool not found")

	// ErrDataset indicates a dataset store failure
	ErrDataset = errors.New("dataset operation failed")

	// ErrDeploy indicates an actor deployment step failed
	ErrDeploy = errors.New("actor deployment failed")
)

// ConfigError wraps configuration-related errors
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error in %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// Missing builds a ConfigError for a required parameter that was not supplied
func Missing(field, hint string) *ConfigError {
	return &ConfigError{Field: field, Message: "is required. Provide via " + hint}
}

// BridgeError wraps bridge-related errors
type BridgeError struct {
	Operation string
	Message   string
	Err       error
}

func (e *BridgeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bridge error during %s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("bridge error during %s: %s", e.Operation, e.Message)
}

func (e *BridgeError) Unwrap() error {
	return ErrBridgeInit
}

// LLMError wraps LLM-related errors
type LLMError struct {
	Provider string
	Message  string
	Err      error
}

func (e *LLMError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM error from %s: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("LLM error from %s: %s", e.Provider, e.Message)
}

func (e *LLMError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrLLMResponse, e.Err}
	}
	return []error{ErrLLMResponse}
}

// ToolError wraps tool-related errors
type ToolError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool error in %s: %s: %v", e.Tool, e.Message, e.Err)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error {
	return ErrToolExecution
}

// DatasetError wraps dataset store errors
type DatasetError struct {
	Operation string
	Message   string
	Err       error
}

func (e *DatasetError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("dataset error during %s: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("dataset error during %s: %s", e.Operation, e.Message)
}

func (e *DatasetError) Unwrap() error {
	return ErrDataset
}

// DeployError records which step of an actor rebuild failed
type DeployError struct {
	Step   string
	Output string
	Err    error
}

func (e *DeployError) Error() string {
	msg := fmt.Sprintf("Failed at step %s", e.Step)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Output != "" {
		msg += "\n" + e.Output
	}
	return msg
}

func (e *DeployError) Unwrap() error {
	return ErrDeploy
}

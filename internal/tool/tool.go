package tool

import (
	"context"
	"time"
)

// ParameterType enumerates the declared types a tool parameter can take.
type ParameterType string

// Supported parameter types.
const (
	TypeString  ParameterType = "string"
	TypeNumber  ParameterType = "number"
	TypeBoolean ParameterType = "boolean"
	TypeObject  ParameterType = "object"
	TypeArray   ParameterType = "array"
)

// ParameterFormat enumerates the secondary format checks applied to string
// parameters after the type check passes.
type ParameterFormat string

// Supported parameter formats.
const (
	FormatDateTime ParameterFormat = "date-time"
	FormatDate     ParameterFormat = "date"
	FormatEmail    ParameterFormat = "email"
	FormatURL      ParameterFormat = "url"
	FormatUUID     ParameterFormat = "uuid"
)

// Parameter describes a single declared tool parameter.
type Parameter struct {
	Type        ParameterType   `json:"type"`
	Description string          `json:"description,omitempty"`
	Required    bool            `json:"required,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	Format      ParameterFormat `json:"format,omitempty"`
}

// Handler is the executable unit of a tool. It receives the validated
// parameter map and returns an opaque result payload.
type Handler func(ctx context.Context, params map[string]any) (any, error)

// Definition is a named, schema-described callable unit.
type Definition struct {
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Parameters  map[string]Parameter `json:"parameters"`
	Handler     Handler              `json:"-"`
}

// CallMetadata identifies a single invocation.
type CallMetadata struct {
	ToolName  string    `json:"toolName"`
	Timestamp time.Time `json:"timestamp"`
}

// CallResult is the uniform outcome of a tool invocation. Exactly one of
// Result and Error is meaningful, discriminated by Success.
type CallResult struct {
	Success    bool         `json:"success"`
	Result     any          `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	DurationMS int64        `json:"durationMs"`
	Metadata   CallMetadata `json:"metadata"`
}

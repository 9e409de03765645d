package tool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pagepal/pagepal/internal/log"
)

// Executor invokes tools through the registry with uniform validation,
// timing, and error wrapping.
//
// Execute never panics or returns an error to its caller: every outcome,
// including unknown tools, invalid parameters, handler errors, and handler
// panics, is reported inside the returned CallResult.
type Executor struct {
	registry *Registry
	logger   log.Logger
}

// NewExecutor creates an Executor backed by the given registry.
func NewExecutor(registry *Registry, logger log.Logger) *Executor {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Executor{registry: registry, logger: logger}
}

// Execute runs the named tool with params and wraps the outcome.
func (e *Executor) Execute(ctx context.Context, name string, params map[string]any) CallResult {
	start := time.Now()
	meta := CallMetadata{ToolName: name, Timestamp: start}

	def, err := e.registry.Get(name)
	if err != nil {
		e.logger.Warn("tool lookup failed", "name", name)
		return failure(meta, start, fmt.Sprintf("Tool not found: %s", name))
	}

	if v := Validate(def, params); !v.Valid {
		e.logger.Warn("tool parameter validation failed",
			"name", name, "errors", v.Errors)
		return failure(meta, start, strings.Join(v.Errors, "; "))
	}

	result, err := e.invoke(ctx, def, params)
	if err != nil {
		e.logger.Warn("tool execution failed",
			"name", name, "error", err, "duration", time.Since(start))
		msg := err.Error()
		if msg == "" {
			msg = "Unknown error"
		}
		return failure(meta, start, msg)
	}

	e.logger.Debug("tool executed",
		"name", name, "duration", time.Since(start))
	return CallResult{
		Success:    true,
		Result:     result,
		DurationMS: time.Since(start).Milliseconds(),
		Metadata:   meta,
	}
}

// invoke runs the handler, converting panics to errors so nothing escapes
// the Execute boundary.
func (e *Executor) invoke(ctx context.Context, def Definition, params map[string]any) (result any, err error) {
	if def.Handler == nil {
		return nil, ErrNilHandler
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()

	return def.Handler(ctx, params)
}

func failure(meta CallMetadata, start time.Time, msg string) CallResult {
	return CallResult{
		Success:    false,
		Error:      msg,
		DurationMS: time.Since(start).Milliseconds(),
		Metadata:   meta,
	}
}

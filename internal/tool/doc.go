// Package tool implements the tool registry, parameter validation, and the
// execution wrapper used by the conversation agent and the HTTP tool surface.
//
// A tool is a named, schema-described callable. Definitions are registered
// once at startup into a Registry owned by the application container; lookups
// afterwards are read-only. The Executor is the single entry point for
// invoking a tool: it resolves the definition, validates the call parameters
// against the declared schema, measures execution, and wraps the outcome in a
// CallResult. Execution never panics or errors past the Executor boundary;
// callers always receive a CallResult.
package tool

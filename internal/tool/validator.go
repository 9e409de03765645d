package tool

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ValidationResult carries the outcome of validating call parameters against
// a tool's declared schema. The call is valid iff Errors is empty.
type ValidationResult struct {
	Valid  bool     `json:"isValid"`
	Errors []string `json:"errors"`
}

var (
	// Permissive by intent: catches obvious garbage, not RFC 5322 compliance.
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// Canonical 8-4-4-4-12 hex form only.
	uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

	datePrefixPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// Validate checks params against the tool's declared parameter schema.
//
// For every declared parameter: a required parameter missing from params
// emits a "missing" error and skips further checks for that parameter. A
// present value is checked for type, then enum membership, then format.
// Parameters present in params but not declared in the schema are silently
// ignored.
func Validate(def Definition, params map[string]any) ValidationResult {
	var errs []string

	for name, p := range def.Parameters {
		value, present := params[name]
		if !present {
			if p.Required {
				errs = append(errs, fmt.Sprintf("missing required parameter: %s", name))
			}
			continue
		}

		if !typeMatches(p.Type, value) {
			errs = append(errs, fmt.Sprintf("parameter %s must be of type %s", name, p.Type))
			continue
		}

		if len(p.Enum) > 0 {
			s := fmt.Sprintf("%v", value)
			if !contains(p.Enum, s) {
				errs = append(errs, fmt.Sprintf("parameter %s must be one of: %s",
					name, strings.Join(p.Enum, ", ")))
				continue
			}
		}

		if p.Format != "" {
			if s, ok := value.(string); ok && !formatMatches(p.Format, s) {
				errs = append(errs, fmt.Sprintf("parameter %s must match format %s", name, p.Format))
			}
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// typeMatches reports whether value satisfies the declared parameter type.
// Numeric values arrive as float64 from JSON decoding, but native ints from
// in-process callers are accepted too.
func typeMatches(t ParameterType, value any) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeObject:
		// Must be non-null and not an array.
		m, ok := value.(map[string]any)
		return ok && m != nil
	case TypeArray:
		_, ok := value.([]any)
		return ok
	}
	return false
}

// formatMatches applies the format-specific predicate for string values.
func formatMatches(f ParameterFormat, s string) bool {
	switch f {
	case FormatDateTime:
		if !strings.Contains(s, "T") {
			return false
		}
		_, err := time.Parse(time.RFC3339, s)
		return err == nil
	case FormatDate:
		if !datePrefixPattern.MatchString(s) {
			return false
		}
		_, err := time.Parse("2006-01-02", s[:10])
		return err == nil
	case FormatEmail:
		return emailPattern.MatchString(s)
	case FormatURL:
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	case FormatUUID:
		return uuidPattern.MatchString(s)
	}
	// Unknown formats are not enforced.
	return true
}

func contains(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

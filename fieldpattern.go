package governkit

import (
	"strings"
)

// FieldMatcher handles field-name matching with wildcard support. Field-level
// policies and immutability rules address fields by pattern so a single rule
// can cover a family of columns.
//
// Supported patterns:
//   - "*" matches all fields
//   - "payment_*" matches every field with the prefix (e.g., "payment_amount")
//   - "*_at" matches every field with the suffix (e.g., "confirmed_at")
//   - "final_grade" matches exactly
type FieldMatcher struct{}

// NewFieldMatcher creates a new FieldMatcher.
func NewFieldMatcher() *FieldMatcher {
	return &FieldMatcher{}
}

// Match checks if a field pattern matches a field name.
//
// Examples:
//
//	Match("*", "payment_amount")         // true - wildcard matches all
//	Match("payment_*", "payment_amount") // true - prefix wildcard
//	Match("payment_*", "payment_method") // true - prefix wildcard
//	Match("*_at", "confirmed_at")        // true - suffix wildcard
//	Match("final_grade", "final_grade")  // true - exact match
//	Match("payment_*", "tuition_total")  // false - different prefix
func (fm *FieldMatcher) Match(pattern, field string) bool {
	// Exact match
	if pattern == field {
		return true
	}

	// Universal wildcard
	if pattern == "*" {
		return true
	}

	if rest, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(field, rest)
	}

	if rest, ok := strings.CutPrefix(pattern, "*"); ok {
		return strings.HasSuffix(field, rest)
	}

	return false
}

// MatchAny checks if any of the patterns match the field name.
func (fm *FieldMatcher) MatchAny(patterns []string, field string) bool {
	for _, pattern := range patterns {
		if fm.Match(pattern, field) {
			return true
		}
	}
	return false
}

// ExpandFields returns all field names that a set of patterns would cover.
// This is useful for displaying what a rule protects. Note: this only works
// for known fields passed in the 'all' slice.
func (fm *FieldMatcher) ExpandFields(patterns []string, all []string) []string {
	matched := make(map[string]bool)

	for _, field := range all {
		for _, pattern := range patterns {
			if fm.Match(pattern, field) {
				matched[field] = true
				break
			}
		}
	}

	result := make([]string, 0, len(matched))
	for f := range matched {
		result = append(result, f)
	}
	return result
}

// Validate checks if a field pattern is valid. A valid pattern is "*", or an
// identifier with at most one leading or trailing "*".
func (fm *FieldMatcher) Validate(pattern string) error {
	if pattern == "" {
		return NewError(ErrInvalidFieldPattern, "field pattern cannot be empty")
	}

	if pattern == "*" {
		return nil
	}

	if strings.Count(pattern, "*") > 1 {
		return NewError(ErrInvalidFieldPattern, "field pattern may contain at most one wildcard")
	}

	if i := strings.IndexByte(pattern, '*'); i > 0 && i < len(pattern)-1 {
		return NewError(ErrInvalidFieldPattern, "wildcard must be leading or trailing")
	}

	for _, c := range pattern {
		if !isValidFieldChar(c) && c != '*' {
			return NewError(ErrInvalidFieldPattern, "field pattern contains invalid character")
		}
	}

	return nil
}

func isValidFieldChar(c rune) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '_'
}

// DefaultFieldMatcher is the default field matcher instance.
var DefaultFieldMatcher = NewFieldMatcher()

// MatchField is a convenience function using the default matcher.
func MatchField(pattern, field string) bool {
	return DefaultFieldMatcher.Match(pattern, field)
}

// MatchAnyField is a convenience function using the default matcher.
func MatchAnyField(patterns []string, field string) bool {
	return DefaultFieldMatcher.MatchAny(patterns, field)
}

// Package normalize parses raw extraction tokens into typed numbers.
// All functions are pure and never panic: a token that cannot be read is nil,
// which is distinct from the legitimate zero produced by "UNCH".
package normalize

import (
	"strconv"
	"strings"
)

// nullTokens are placeholders the extractor emits for cells with no data.
var nullTokens = map[string]bool{
	"":     true,
	"----": true,
	"---":  true,
	"--":   true,
	"-":    true,
	"—":    true, // em-dash
	"–":    true, // en-dash
	"null": true,
	"None": true,
	"N/A":  true,
	"n/a":  true,
}

// IsNullToken reports whether raw is one of the placeholders for a cell with no data.
func IsNullToken(raw string) bool {
	return nullTokens[compact(raw)]
}

// compact drops thousands separators and all whitespace.
func compact(raw string) string {
	s := strings.ReplaceAll(raw, ",", "")
	return strings.Join(strings.Fields(s), "")
}

// unchanged is the CME bulletin token for a zero change.
const unchanged = "UNCH"

// ParseToken converts a raw integer token such as "1,234", " -5 600 " or "UNCH".
// Returns nil when the token is a null placeholder or cannot be parsed.
func ParseToken(raw string) *int64 {
	s := compact(raw)

	if nullTokens[s] {
		return nil
	}
	if strings.EqualFold(s, unchanged) {
		zero := int64(0)
		return &zero
	}

	s = strings.TrimPrefix(s, "+")
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseSplitToken joins tokens the extractor split apart (e.g. "-", "64")
// before parsing. A lone sign token with no digits is treated as null.
func ParseSplitToken(tokens ...string) *int64 {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(strings.TrimSpace(t))
	}
	joined := b.String()
	if joined == "-" || joined == "+" {
		return nil
	}
	return ParseToken(joined)
}

// ParseDecimal converts a decimal token such as "2.84", "2.84%", "18.5x" or "1,050.25".
// "UNCH" reads as 0. Returns nil for null placeholders and unparseable input.
func ParseDecimal(raw string) *float64 {
	s := compact(raw)

	if nullTokens[s] {
		return nil
	}
	if strings.EqualFold(s, unchanged) {
		zero := 0.0
		return &zero
	}

	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "x"), "X")
	s = strings.TrimSuffix(s, "bps")
	s = strings.TrimPrefix(s, "+")

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

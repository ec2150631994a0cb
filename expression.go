package eprime

import "regexp"

var columnRefPattern = regexp.MustCompile(`\{([^{}]*)\}`)

// Expression is the parsed form of a column expression: the original text
// plus the column names it references. Column references are written as
// {name} in the raw text. The parsed form is immutable.
type Expression struct {
	raw     string
	columns []string
}

// ParseExpression extracts the {name} references from text, deduplicated in
// first-occurrence order. Substitution happens at evaluation time, not here.
func ParseExpression(text string) Expression {
	var cols []string
	seen := make(map[string]bool)
	for _, m := range columnRefPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, name)
	}
	return Expression{raw: text, columns: cols}
}

// Columns returns the referenced column names. The returned slice is a
// copy; mutating it does not affect the Expression.
func (e Expression) Columns() []string {
	if len(e.columns) == 0 {
		return nil
	}
	out := make([]string, len(e.columns))
	copy(out, e.columns)
	return out
}

// String returns the original, unmodified expression text, braces included.
func (e Expression) String() string { return e.raw }

package eprime

import "fmt"

// DamagedFileError reports a structurally invalid input file, such as a
// nesting level left open at end of input. Line is the 1-based input line
// at fault, or zero when no single line applies.
type DamagedFileError struct {
	Msg  string
	Line int
}

func (e *DamagedFileError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("damaged file: %s (line %d)", e.Msg, e.Line)
	}
	return "damaged file: " + e.Msg
}

// UnknownTypeError reports input that no reader recognizes.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("no reader recognizes %q", e.Name)
}

// ComputationError reports an invalid column registration or a dependency
// loop discovered during evaluation.
type ComputationError struct {
	Msg string
}

func (e *ComputationError) Error() string {
	return "computation error: " + e.Msg
}

// ColumnNotFoundError reports access to an unknown column name or an
// out-of-range column index.
type ColumnNotFoundError struct {
	Column string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column not found: %s", e.Column)
}

// ExpressionError reports a malformed or unevaluable expression.
type ExpressionError struct {
	Expr string
	Msg  string
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("bad expression %q: %s", e.Expr, e.Msg)
}

package eprime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatorCompute(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"(3+2)*4", "20"},
		{"5*(6+2)", "40"},
		{"1+2*3", "7"},
		{"2*3+1", "7"},
		{"10/4", "2.5"},
		{"1.5+2.25", "3.75"},
		{"0.5*4", "2"},
		{"-5+3", "-2"},
		{"-(3+2)", "-5"},
		{"2--3", "5"},
		{"3400-2000", "1400"},
		{"((1))", "1"},
		{"'a'&'b'&'c'", "abc"},
		{"'it''s'", "it's"},
		{"3 & 4", "34"},
		{"1+2&'ms'", "3ms"},
		{"'3'*'4'", "12"},
		{" 1 + 1 ", "2"},
	}

	calc := NewCalculator()
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			got, err := calc.Compute(test.expr)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestCalculatorComputeErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"unbalanced open", "(1+2"},
		{"unbalanced close", "2*)"},
		{"trailing operator", "1+"},
		{"empty", ""},
		{"unknown token", "1 $ 2"},
		{"unterminated string", "'abc"},
		{"non-numeric operand", "'a'-'b'"},
		{"division by zero", "1/0"},
		{"bad number", "1.2.3"},
	}

	calc := NewCalculator()
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := calc.Compute(test.expr)
			require.Error(t, err)
			var exprErr *ExpressionError
			assert.ErrorAs(t, err, &exprErr)
		})
	}
}

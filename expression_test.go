package eprime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseExpression(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"{stim_time}-{run_start}", []string{"stim_time", "run_start"}},
		{"{a}+{a}+{b}", []string{"a", "b"}},
		{"({x}*2)&'ms'", []string{"x"}},
		{"42", nil},
		{"", nil},
		{"{unclosed", nil},
	}

	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			e := ParseExpression(test.text)
			assert.Equal(t, test.want, e.Columns())
			assert.Equal(t, test.text, e.String())
		})
	}
}

func TestExpressionColumnsImmutable(t *testing.T) {
	e := ParseExpression("{a}+{b}")
	cols := e.Columns()
	cols[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, e.Columns())
}

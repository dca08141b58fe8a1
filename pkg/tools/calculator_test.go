package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculatorTool(t *testing.T) {
	calc := NewCalculatorTool()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "addition", args: map[string]any{"expression": "2 + 3"}, want: "2 + 3 = 5"},
		{name: "function", args: map[string]any{"expression": "sqrt(16)"}, want: "sqrt(16) = 4"},
		{name: "trimmed", args: map[string]any{"expression": "  10 * 5 "}, want: "10 * 5 = 50"},
		{name: "division by zero", args: map[string]any{"expression": "1 / 0"}, want: "Error: division by zero"},
		{name: "unsupported", args: map[string]any{"expression": "__import__(1)"}, want: "Error: unsupported operation"},
		{name: "missing expression", args: map[string]any{}, want: "Error: invalid arguments: expression is required"},
		{name: "wrong type", args: map[string]any{"expression": 42}, want: "Error: invalid arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := calc.Run(context.Background(), tt.args)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

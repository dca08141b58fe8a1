package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/comigor/cidion/pkg/tools/calc"
)

// CalculatorName is the registry key of the calculator tool.
const CalculatorName = "calculate"

// CalculateInput is the argument bundle of the calculator tool.
type CalculateInput struct {
	Expression string `json:"expression" required:"true" validate:"required" description:"Mathematical expression to evaluate (e.g., '2 + 3 * 4', 'sqrt(16)', 'sin(pi/2)')"`
}

// NewCalculatorTool evaluates arithmetic with the calc grammar.
func NewCalculatorTool() Tool {
	return MustNewTypedTool(CalculatorName, "Perform mathematical calculations safely", calculate)
}

func calculate(_ context.Context, in CalculateInput) (string, error) {
	expr := strings.TrimSpace(in.Expression)
	v, err := calc.Evaluate(expr)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %s", expr, calc.Format(v)), nil
}

package testutil

import (
	"errors"

	"github.com/toolrack/toolrack"
)

// NewTestRegistry returns a Registry running in thread mode with no worker
// processes, suitable for tests that do not exercise the pool.
func NewTestRegistry(tools ...*toolrack.Tool) *toolrack.Registry {
	reg := toolrack.NewRegistry(
		toolrack.WithName("test"),
		toolrack.WithDefaultMode(toolrack.ModeThread),
	)
	for _, t := range tools {
		reg.Register(t)
	}
	return reg
}

// CalculatorArgs is the argument struct shared by the calculator tools.
type CalculatorArgs struct {
	A float64 `json:"a" description:"First operand"`
	B float64 `json:"b" description:"Second operand"`
}

// NewCalculatorRegistry returns a thread-mode Registry preloaded with add,
// subtract, multiply, and divide tools. divide returns an error for a zero
// divisor, which makes it handy for error-path tests.
func NewCalculatorRegistry() *toolrack.Registry {
	reg := NewTestRegistry()
	mustRegister(reg, "add", "Add two numbers", func(args CalculatorArgs) (float64, error) {
		return args.A + args.B, nil
	})
	mustRegister(reg, "subtract", "Subtract b from a", func(args CalculatorArgs) (float64, error) {
		return args.A - args.B, nil
	})
	mustRegister(reg, "multiply", "Multiply two numbers", func(args CalculatorArgs) (float64, error) {
		return args.A * args.B, nil
	})
	mustRegister(reg, "divide", "Divide a by b", func(args CalculatorArgs) (float64, error) {
		if args.B == 0 {
			return 0, errors.New("division by zero is not allowed")
		}
		return args.A / args.B, nil
	})
	return reg
}

func mustRegister(reg *toolrack.Registry, name, description string, fn func(CalculatorArgs) (float64, error)) {
	if _, err := toolrack.RegisterFunc(reg, name, description, fn); err != nil {
		panic(err)
	}
}

package toolrack

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addNumbers(args calcArgs) (float64, error) {
	return args.A + args.B, nil
}

func TestNewTool_DerivedName(t *testing.T) {
	tool, err := NewTool("", "Add two numbers", addNumbers)
	require.NoError(t, err)
	assert.Equal(t, "add_numbers", tool.Name())
	assert.Equal(t, "add_numbers", tool.BaseName())
	assert.Empty(t, tool.Namespace())
}

func TestNewTool_AnonymousNeedsName(t *testing.T) {
	_, err := NewTool("", "No name", func(args calcArgs) (float64, error) {
		return 0, nil
	})
	require.ErrorIs(t, err, ErrAnonymousTool)
}

func TestNewTool_ExplicitName(t *testing.T) {
	tool, err := NewTool("sum", "Add", addNumbers)
	require.NoError(t, err)
	assert.Equal(t, "sum", tool.Name())
	assert.False(t, tool.Async())
}

func TestTool_Run(t *testing.T) {
	tool, err := NewTool("add", "Add", addNumbers)
	require.NoError(t, err)

	res := tool.Run(map[string]any{"a": 2, "b": 3})
	assert.Equal(t, float64(5), res)
}

func TestTool_Run_ToolErrorBecomesString(t *testing.T) {
	tool, err := NewTool("divide", "Divide", func(args calcArgs) (float64, error) {
		if args.B == 0 {
			return 0, errors.New("division by zero is not allowed")
		}
		return args.A / args.B, nil
	})
	require.NoError(t, err)

	res := tool.Run(map[string]any{"a": 1, "b": 0})
	s, ok := res.(string)
	require.True(t, ok)
	assert.Equal(t, "Error executing divide: division by zero is not allowed", s)
}

func TestTool_Run_ValidationErrorBecomesString(t *testing.T) {
	tool, err := NewTool("add", "Add", addNumbers)
	require.NoError(t, err)

	res := tool.Run(map[string]any{"a": "not a number", "b": 3})
	s, ok := res.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(s, "Error executing add: "), "got %q", s)
}

func TestTool_Run_PanicContained(t *testing.T) {
	tool, err := NewTool("boom", "Panics", func(_ calcArgs) (float64, error) {
		panic("kaboom")
	})
	require.NoError(t, err)

	res := tool.Run(map[string]any{"a": 1, "b": 1})
	s, ok := res.(string)
	require.True(t, ok)
	assert.Equal(t, "Error executing boom: panic: kaboom", s)
}

func TestTool_ARun_SyncUnsupported(t *testing.T) {
	tool, err := NewTool("add", "Add", addNumbers)
	require.NoError(t, err)

	res := tool.ARun(context.Background(), map[string]any{"a": 1, "b": 2})
	s, ok := res.(string)
	require.True(t, ok)
	assert.Contains(t, s, "async execution requires")
}

func TestAsyncTool_RunBothWays(t *testing.T) {
	tool, err := NewAsyncTool("add", "Add", func(_ context.Context, args calcArgs) (float64, error) {
		return args.A + args.B, nil
	})
	require.NoError(t, err)
	assert.True(t, tool.Async())

	assert.Equal(t, float64(3), tool.ARun(context.Background(), map[string]any{"a": 1, "b": 2}))
	assert.Equal(t, float64(3), tool.Run(map[string]any{"a": 1, "b": 2}))
}

func TestTool_NilArgs(t *testing.T) {
	tool, err := NewTool("greet", "Greet", func(args struct {
		Name string `json:"name" default:"world"`
	}) (string, error) {
		if args.Name == "" {
			args.Name = "world"
		}
		return "hello " + args.Name, nil
	})
	require.NoError(t, err)

	assert.Equal(t, "hello world", tool.Run(nil))
}

func TestTool_JSONSchema(t *testing.T) {
	tool, err := NewTool("add", "Add two numbers", addNumbers)
	require.NoError(t, err)

	def := tool.JSONSchema()
	assert.Equal(t, "function", def["type"])
	fn, ok := def["function"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "add", fn["name"])
	assert.Equal(t, "Add two numbers", fn["description"])
	assert.Equal(t, false, fn["is_async"])
	params, ok := fn["parameters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", params["type"])
}

func TestNewProxyTool(t *testing.T) {
	proxy := proxyFunc(func(_ context.Context, args map[string]any) (any, error) {
		return args["city"], nil
	})
	schemaMap := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required": []any{"city"},
	}
	tool, err := NewProxyTool("weather", "Current weather", schemaMap, proxy)
	require.NoError(t, err)
	assert.True(t, tool.Async())

	assert.Equal(t, "Oslo", tool.ARun(context.Background(), map[string]any{"city": "Oslo"}))

	res := tool.ARun(context.Background(), map[string]any{})
	s, ok := res.(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(s, "Error executing weather: "), "got %q", s)
}

func TestNewProxyTool_SchemaNotMutated(t *testing.T) {
	schemaMap := map[string]any{"type": "object", "properties": map[string]any{}}
	_, err := NewProxyTool("p", "", schemaMap, proxyFunc(func(context.Context, map[string]any) (any, error) {
		return nil, nil
	}), WithStrict())
	require.NoError(t, err)
	_, mutated := schemaMap["additionalProperties"]
	assert.False(t, mutated)
}

func TestNewProxyTool_RequiresNameAndProxy(t *testing.T) {
	_, err := NewProxyTool("", "", nil, proxyFunc(func(context.Context, map[string]any) (any, error) {
		return nil, nil
	}))
	require.ErrorIs(t, err, ErrAnonymousTool)

	_, err = NewProxyTool("p", "", nil, nil)
	require.Error(t, err)
}

// proxyFunc adapts a function to the Proxy interface for tests.
type proxyFunc func(ctx context.Context, args map[string]any) (any, error)

func (f proxyFunc) Call(ctx context.Context, args map[string]any) (any, error) {
	return f(ctx, args)
}

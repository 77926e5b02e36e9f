package toolrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema_RequiredAndDefault(t *testing.T) {
	type Args struct {
		A int    `json:"a" description:"first"`
		B string `json:"b" default:"x"`
	}
	schemaMap, resolved, err := generateSchema[Args](false)
	require.NoError(t, err)
	require.NotNil(t, resolved)

	assert.Equal(t, "object", schemaMap["type"])
	props, ok := schemaMap["properties"].(map[string]any)
	require.True(t, ok)

	a, ok := props["a"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "integer", a["type"])
	assert.Equal(t, "first", a["description"])

	b, ok := props["b"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", b["type"])
	assert.Equal(t, "x", b["default"])

	// a stays required, b became optional via its default.
	req, ok := schemaMap["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, req, "a")
	assert.NotContains(t, req, "b")
}

func TestGenerateSchema_TypedDefaults(t *testing.T) {
	type Args struct {
		N int     `json:"n" default:"7"`
		F float64 `json:"f" default:"2.5"`
		B bool    `json:"b" default:"true"`
		S string  `json:"s" default:"hi"`
	}
	schemaMap, _, err := generateSchema[Args](false)
	require.NoError(t, err)
	props := schemaMap["properties"].(map[string]any)
	assert.Equal(t, int64(7), props["n"].(map[string]any)["default"])
	assert.Equal(t, 2.5, props["f"].(map[string]any)["default"])
	assert.Equal(t, true, props["b"].(map[string]any)["default"])
	assert.Equal(t, "hi", props["s"].(map[string]any)["default"])
	_, hasRequired := schemaMap["required"]
	assert.False(t, hasRequired)
}

func TestGenerateSchema_EnumTag(t *testing.T) {
	type Args struct {
		Unit string `json:"unit" enum:"celsius,fahrenheit"`
	}
	schemaMap, _, err := generateSchema[Args](false)
	require.NoError(t, err)
	props := schemaMap["properties"].(map[string]any)
	unit := props["unit"].(map[string]any)
	assert.Equal(t, []any{"celsius", "fahrenheit"}, unit["enum"])
}

func TestGenerateSchema_StrictMode(t *testing.T) {
	type Args struct {
		A int    `json:"a"`
		B string `json:"b"`
	}
	schemaMap, _, err := generateSchema[Args](true)
	require.NoError(t, err)
	assert.Equal(t, false, schemaMap["additionalProperties"])
	req, ok := schemaMap["required"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, req)
}

func TestCompileDynamicSchema_Validates(t *testing.T) {
	schemaMap := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required": []any{"city"},
	}
	compiled, err := compileDynamicSchema(schemaMap)
	require.NoError(t, err)
	require.NoError(t, compiled.Validate(map[string]any{"city": "Oslo"}))
	require.Error(t, compiled.Validate(map[string]any{}))
	require.Error(t, compiled.Validate(map[string]any{"city": 42}))
}

func TestCompileDynamicSchema_Invalid(t *testing.T) {
	_, err := compileDynamicSchema(map[string]any{"type": 13})
	require.Error(t, err)
}

package toolrack

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Calculator", "calculator"},
		{"calculator", "calculator"},
		{"camelCase", "camel_case"},
		{"HTTPServer", "http_server"},
		{"XMLParser", "xml_parser"},
		{"getUserIDFromDB", "get_user_id_from_db"},
		{"HTTP", "http"},
		{"add2Numbers", "add2_numbers"},
		{"My Tool!", "my_tool_"},
		{"weather-api", "weather_api"},
		{"a.b.c", "a_b_c"},
		{"__keep__", "__keep__"},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestQualifiedName(t *testing.T) {
	assert.Equal(t, "add", qualifiedName("", "add"))
	assert.Equal(t, "calc.add", qualifiedName("calc", "add"))
}

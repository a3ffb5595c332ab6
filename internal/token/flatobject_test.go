package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlatObject_Scalars(t *testing.T) {
	obj, err := ParseFlatObject([]byte(` { "s" : "x\"y\\z\/\n" , "i":-12, "f":1.5e2, "t":true, "b":false, "n":null } `))
	require.NoError(t, err)

	assert.Equal(t, Value{Kind: KindString, Str: "x\"y\\z/\n"}, obj["s"])
	assert.Equal(t, Value{Kind: KindInt, Int: -12}, obj["i"])
	assert.Equal(t, Value{Kind: KindFloat, Float: 150}, obj["f"])
	assert.Equal(t, Value{Kind: KindBool, Bool: true}, obj["t"])
	assert.Equal(t, Value{Kind: KindBool, Bool: false}, obj["b"])
	assert.True(t, obj["n"].IsNull())
}

func TestParseFlatObject_EmptyObject(t *testing.T) {
	obj, err := ParseFlatObject([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, obj)
}

func TestParseFlatObject_DuplicateKeyKeepsLast(t *testing.T) {
	obj, err := ParseFlatObject([]byte(`{"a":1,"a":"two"}`))
	require.NoError(t, err)
	assert.Equal(t, "two", obj["a"].String())
}

func TestParseFlatObject_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ``},
		{"not an object", `"text"`},
		{"array", `[1,2]`},
		{"nested object", `{"a":{"b":1}}`},
		{"nested array", `{"a":[1]}`},
		{"unicode escape", `{"a":"\u00e9"}`},
		{"bad escape", `{"a":"\q"}`},
		{"missing colon", `{"a" 1}`},
		{"missing value", `{"a":}`},
		{"trailing comma", `{"a":1,}`},
		{"unterminated string", `{"a":"abc`},
		{"unterminated object", `{"a":1`},
		{"trailing data", `{"a":1} x`},
		{"bad literal", `{"a":tru}`},
		{"control character", "{\"a\":\"x\ny\"}"},
		{"unquoted key", `{a:1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := ParseFlatObject([]byte(tt.input))
				assert.Error(t, err)
			})
		})
	}
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "abc", Value{Kind: KindString, Str: "abc"}.String())
	assert.Equal(t, "42", Value{Kind: KindInt, Int: 42}.String())
	assert.Equal(t, "1.5", Value{Kind: KindFloat, Float: 1.5}.String())
	assert.Equal(t, "true", Value{Kind: KindBool, Bool: true}.String())
	assert.Equal(t, "", Value{Kind: KindNull}.String())
}

func TestValue_Number(t *testing.T) {
	n, ok := Value{Kind: KindInt, Int: 7}.Number()
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	n, ok = Value{Kind: KindFloat, Float: 7.9}.Number()
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	_, ok = Value{Kind: KindString, Str: "7"}.Number()
	assert.False(t, ok)
}

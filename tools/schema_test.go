package tools

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitSchema() Schema {
	return NewSchema(
		Required("path", TypeString, "file path"),
		Optional("limit", TypeInteger, "max lines", 10),
		Optional("ratio", TypeNumber, "", nil),
		Optional("recursive", TypeBoolean, "", false),
		Optional("tags", TypeArray, "", nil),
	)
}

func TestValidateIntegerCoercion(t *testing.T) {
	s := limitSchema()

	cases := []struct {
		name    string
		limit   any
		want    int
		wantErr bool
	}{
		{"int", 3, 3, false},
		{"integral float", 3.0, 3, false},
		{"numeric string", "42", 42, false},
		{"negative string", "-7", -7, false},
		{"fractional float", 3.5, 0, true},
		{"non numeric string", "3 lines", 0, true},
		{"float string", "3.0", 0, true},
		{"bool", true, 0, true},
		{"int64", int64(-9), -9, false},
		{"uint64", uint64(12), 12, false},
		{"uint64 above int range", uint64(math.MaxUint64), 0, true},
		{"float at 2^63", math.Pow(2, 63), 0, true},
		{"float at -2^63", -math.Pow(2, 63), math.MinInt64, false},
		{"json number above int range", json.Number("9223372036854775808"), 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			args, err := s.Validate(map[string]any{"path": "/tmp/a", "limit": tc.limit})
			if tc.wantErr {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "limit", ve.Errors[0].Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, args.Int("limit"))
		})
	}
}

func TestValidateDefaultsAndRequired(t *testing.T) {
	s := limitSchema()

	args, err := s.Validate(map[string]any{"path": "/tmp/a"})
	require.NoError(t, err)
	assert.Equal(t, 10, args.Int("limit"))
	assert.False(t, args.Bool("recursive"))
	assert.False(t, args.Has("ratio"))

	_, err = s.Validate(map[string]any{"limit": 2})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []FieldError{{Field: "path", Message: "field required"}}, ve.Errors)

	_, err = s.Validate(map[string]any{"path": nil})
	require.Error(t, err, "explicit null does not satisfy a required field")
}

func TestValidateRejectsUnknownAndWrongTypes(t *testing.T) {
	s := limitSchema()
	_, err := s.Validate(map[string]any{"path": 12, "recursive": "yes", "pathh": "x"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	fields := map[string]bool{}
	for _, fe := range ve.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["path"])
	assert.True(t, fields["recursive"])
	assert.True(t, fields["pathh"])
}

func TestValidateJSONDecodedInput(t *testing.T) {
	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"path":"a","limit":5,"ratio":"0.5","recursive":"true","tags":["x","y"]}`), &raw))

	args, err := limitSchema().Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, 5, args.Int("limit"))
	assert.InDelta(t, 0.5, args.Float("ratio"), 1e-9)
	assert.True(t, args.Bool("recursive"))
	assert.Equal(t, []string{"x", "y"}, args.Strings("tags"))
}

func TestArrayItemsAreCoerced(t *testing.T) {
	s := NewSchema(Field{Name: "ids", Type: TypeArray, Items: TypeInteger, Required: true})
	args, err := s.Validate(map[string]any{"ids": []any{1.0, "2", 3}})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, args["ids"])

	_, err = s.Validate(map[string]any{"ids": []any{1.5}})
	require.Error(t, err)
}

func TestJSONSchemaAndSignature(t *testing.T) {
	s := limitSchema()
	js := s.JSONSchema()
	assert.Equal(t, "object", js["type"])
	assert.Equal(t, []string{"path"}, js["required"])
	props := js["properties"].(map[string]any)
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, 10, props["limit"].(map[string]any)["default"])

	assert.Equal(t, "path: string, limit?: integer = 10, ratio?: number, recursive?: boolean = false, tags?: array", s.Signature())
}

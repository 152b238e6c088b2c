package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnana997/cjslexer/pkg/cjs"
)

func TestDecodeOptions(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		want cjs.Options
	}{
		{"empty", ``, cjs.Options{NodeEnv: "production"}},
		{"whitespace", "  \n", cjs.Options{NodeEnv: "production"}},
		{"null", `null`, cjs.Options{NodeEnv: "production"}},
		{"empty object", `{}`, cjs.Options{NodeEnv: "production"}},
		{"node env", `{"nodeEnv":"development"}`, cjs.Options{NodeEnv: "development"}},
		{"call mode", `{"callMode":true}`, cjs.Options{NodeEnv: "production", CallMode: true}},
		{"both", `{ "nodeEnv": "test", "callMode": false }`, cjs.Options{NodeEnv: "test"}},
		{"null values", `{"nodeEnv":null,"callMode":null}`, cjs.Options{NodeEnv: "production"}},
		{"escaped string", `{"nodeEnv":"dev\u0065lopment"}`, cjs.Options{NodeEnv: "development"}},
		{"empty node env", `{"nodeEnv":""}`, cjs.Options{NodeEnv: "production"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeOptions([]byte(tc.raw))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestDecodeOptionsRejects(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
		key  string
	}{
		{"unknown key", `{"nodeEnv":"production","minify":true}`, "minify"},
		{"snake case", `{"node_env":"production"}`, "node_env"},
		{"wrong node env type", `{"nodeEnv":1}`, "nodeEnv"},
		{"wrong call mode type", `{"callMode":"yes"}`, "callMode"},
		{"array", `["nodeEnv"]`, ""},
		{"malformed", `{"nodeEnv":`, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DecodeOptions([]byte(tc.raw))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "want *ConfigError, got %T", err)
			assert.Equal(t, tc.key, cfgErr.Key)
			assert.Equal(t, cjs.DefaultOptions(), got)
		})
	}
}

func TestOptionsFromMap(t *testing.T) {
	got, err := OptionsFromMap(cjs.DefaultOptions(), map[string]any{
		"nodeEnv":  "development",
		"callMode": true,
		"code":     "exports.a = 1",
	}, "code")
	require.NoError(t, err)
	assert.Equal(t, cjs.Options{NodeEnv: "development", CallMode: true}, got)

	got, err = OptionsFromMap(cjs.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, cjs.DefaultOptions(), got)

	base := cjs.Options{NodeEnv: "test", CallMode: true}
	got, err = OptionsFromMap(base, map[string]any{"callMode": false, "nodeEnv": nil})
	require.NoError(t, err)
	assert.Equal(t, cjs.Options{NodeEnv: "test"}, got, "absent and null keys keep the base")

	_, err = OptionsFromMap(cjs.DefaultOptions(), map[string]any{"callMode": "true"})
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "callMode", cfgErr.Key)
	assert.EqualError(t, err, `invalid option "callMode": must be a boolean, got string`)

	_, err = OptionsFromMap(cjs.DefaultOptions(), map[string]any{"extra": 1})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "extra", cfgErr.Key)
}

package extractor

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/buger/jsonparser"

	"github.com/gnana997/cjslexer/pkg/cjs"
)

const (
	optNodeEnv  = "nodeEnv"
	optCallMode = "callMode"
)

// DecodeOptions reads analysis options from a JSON object such as
// {"nodeEnv":"development","callMode":true}. Empty input, null and absent
// keys mean defaults. Unknown keys and mistyped values are a *ConfigError.
func DecodeOptions(raw []byte) (cjs.Options, error) {
	opts := cjs.DefaultOptions()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return opts, nil
	}
	if trimmed[0] != '{' {
		return opts, &ConfigError{Reason: "options must be a JSON object"}
	}

	var cfgErr *ConfigError
	err := jsonparser.ObjectEach(trimmed, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		name := string(key)
		if dataType == jsonparser.Null {
			if name != optNodeEnv && name != optCallMode {
				cfgErr = &ConfigError{Key: name, Reason: "unknown key"}
				return cfgErr
			}
			return nil
		}
		switch name {
		case optNodeEnv:
			if dataType != jsonparser.String {
				cfgErr = &ConfigError{Key: name, Reason: "must be a string, got " + dataType.String()}
				return cfgErr
			}
			s, err := jsonparser.ParseString(value)
			if err != nil {
				cfgErr = &ConfigError{Key: name, Reason: err.Error()}
				return cfgErr
			}
			if s != "" {
				opts.NodeEnv = s
			}
		case optCallMode:
			if dataType != jsonparser.Boolean {
				cfgErr = &ConfigError{Key: name, Reason: "must be a boolean, got " + dataType.String()}
				return cfgErr
			}
			b, err := jsonparser.ParseBoolean(value)
			if err != nil {
				cfgErr = &ConfigError{Key: name, Reason: err.Error()}
				return cfgErr
			}
			opts.CallMode = b
		default:
			cfgErr = &ConfigError{Key: name, Reason: "unknown key"}
			return cfgErr
		}
		return nil
	})
	if cfgErr != nil {
		return cjs.DefaultOptions(), cfgErr
	}
	if err != nil {
		return cjs.DefaultOptions(), &ConfigError{Reason: fmt.Sprintf("malformed JSON: %v", err)}
	}
	return opts, nil
}

// OptionsFromMap applies the DecodeOptions rules to an already decoded
// object, such as tool-call arguments, overriding base with the keys that
// are present. Keys listed in ignore are skipped.
func OptionsFromMap(base cjs.Options, m map[string]any, ignore ...string) (cjs.Options, error) {
	opts := base
	if opts.NodeEnv == "" {
		opts.NodeEnv = cjs.DefaultNodeEnv
	}
	for key, value := range m {
		if slices.Contains(ignore, key) {
			continue
		}
		switch key {
		case optNodeEnv:
			switch v := value.(type) {
			case nil:
			case string:
				if v != "" {
					opts.NodeEnv = v
				}
			default:
				return base, &ConfigError{Key: key, Reason: fmt.Sprintf("must be a string, got %T", value)}
			}
		case optCallMode:
			switch v := value.(type) {
			case nil:
			case bool:
				opts.CallMode = v
			default:
				return base, &ConfigError{Key: key, Reason: fmt.Sprintf("must be a boolean, got %T", value)}
			}
		default:
			return base, &ConfigError{Key: key, Reason: "unknown key"}
		}
	}
	return opts, nil
}

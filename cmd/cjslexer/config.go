package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/extractor"
	"github.com/gnana997/cjslexer/pkg/indexer"
)

// projectConfigPath is relative to the working directory.
var projectConfigPath = filepath.Join(".cjslexer", "config.yaml")

// ProjectConfig holds the contents of .cjslexer/config.yaml.
type ProjectConfig struct {
	NodeEnv   string   `yaml:"node_env"`
	CallMode  *bool    `yaml:"call_mode"`
	Include   []string `yaml:"include"`
	Exclude   []string `yaml:"exclude"`
	LogLevel  string   `yaml:"log_level"`
	LogFormat string   `yaml:"log_format"`
	MCPLog    string   `yaml:"mcp_log"`
}

// loadProjectConfig reads .cjslexer/config.yaml from the current directory.
// Returns nil (no error) if the file does not exist.
func loadProjectConfig() (*ProjectConfig, error) {
	data, err := os.ReadFile(projectConfigPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// optionFlags are the analysis flags shared by every command.
type optionFlags struct {
	nodeEnv  string
	callMode bool
	raw      string

	// set records which flags were given explicitly.
	set map[string]bool
}

// resolveOptions returns the analysis options, applying the fallback chain:
//  1. Explicit --node-env / --call-mode flags
//  2. Keys present in the --options JSON object
//  3. node_env / call_mode from .cjslexer/config.yaml
//  4. Defaults: production, call mode off
func resolveOptions(f optionFlags, cfg *ProjectConfig) (cjs.Options, error) {
	opts := cjs.DefaultOptions()
	if cfg != nil {
		if cfg.NodeEnv != "" {
			opts.NodeEnv = cfg.NodeEnv
		}
		if cfg.CallMode != nil {
			opts.CallMode = *cfg.CallMode
		}
	}

	if f.raw != "" {
		// DecodeOptions reports malformed input; the map keeps key presence.
		if _, err := extractor.DecodeOptions([]byte(f.raw)); err != nil {
			return opts, err
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(f.raw), &m); err != nil {
			return opts, &extractor.ConfigError{Reason: err.Error()}
		}
		var err error
		if opts, err = extractor.OptionsFromMap(opts, m); err != nil {
			return opts, err
		}
	}

	if f.set["node-env"] && f.nodeEnv != "" {
		opts.NodeEnv = f.nodeEnv
	}
	if f.set["call-mode"] {
		opts.CallMode = f.callMode
	}
	return opts, nil
}

// resolveScanPatterns returns the include and exclude patterns:
//  1. Explicit --include / --exclude flag values
//  2. include / exclude from .cjslexer/config.yaml
//  3. Defaults from indexer.DefaultScanOptions
func resolveScanPatterns(include, exclude []string, cfg *ProjectConfig) ([]string, []string) {
	defaults := indexer.DefaultScanOptions()
	return firstNonEmpty(include, cfgList(cfg, true), defaults.Include),
		firstNonEmpty(exclude, cfgList(cfg, false), defaults.Exclude)
}

func cfgList(cfg *ProjectConfig, include bool) []string {
	if cfg == nil {
		return nil
	}
	if include {
		return cfg.Include
	}
	return cfg.Exclude
}

func firstNonEmpty(lists ...[]string) []string {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

// resolveString applies flag > config > default to a string setting.
func resolveString(flagValue, cfgValue, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfgValue != "" {
		return cfgValue
	}
	return def
}

// Package extractor is the host boundary around the CommonJS analysis: it
// decodes caller options, parses each file once and reports the exports,
// re-exports and module format found in the same tree.
package extractor

import (
	"fmt"

	"github.com/gnana997/cjslexer/pkg/parser/queries"
)

// PerFileResult is everything extracted from one parse of a file.
type PerFileResult struct {
	FilePath string `json:"filePath"`

	// Language is "javascript", "typescript" or "tsx".
	Language string         `json:"language"`
	Format   queries.Format `json:"format"`

	Exports   []string `json:"exports"`
	Reexports []string `json:"reexports"`

	// Requires lists every literal require call, not only re-exported ones.
	Requires []queries.Dependency `json:"requires"`

	// ContentHash is the hex SHA-256 of the analyzed bytes.
	ContentHash string  `json:"contentHash"`
	DurationMs  float64 `json:"durationMs"`
}

// ConfigError reports options the boundary refuses to interpret.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return "invalid options: " + e.Reason
	}
	return fmt.Sprintf("invalid option %q: %s", e.Key, e.Reason)
}

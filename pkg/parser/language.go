package parser

import (
	"path/filepath"
	"strings"
)

// Language is a grammar the parser manager can load.
type Language int

const (
	// LanguageJavaScript covers .js, .cjs, .mjs and .jsx sources.
	LanguageJavaScript Language = iota
	// LanguageTypeScript covers .ts, .cts and .mts; .tsx uses the TSX variant.
	LanguageTypeScript
	LanguageUnknown
)

func (l Language) String() string {
	switch l {
	case LanguageJavaScript:
		return "javascript"
	case LanguageTypeScript:
		return "typescript"
	default:
		return "unknown"
	}
}

// DetectLanguage maps a file extension to its grammar.
func DetectLanguage(filePath string) Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".js", ".cjs", ".mjs", ".jsx":
		return LanguageJavaScript
	case ".ts", ".cts", ".mts", ".tsx":
		return LanguageTypeScript
	default:
		return LanguageUnknown
	}
}

// IsTSXFile reports whether a path needs the TSX grammar.
func IsTSXFile(filePath string) bool {
	return strings.EqualFold(filepath.Ext(filePath), ".tsx")
}

// LanguageName is the label reported for a file: "javascript",
// "typescript" or "tsx".
func LanguageName(lang Language, isTSX bool) string {
	if lang == LanguageTypeScript && isTSX {
		return "tsx"
	}
	return lang.String()
}

// ParseLanguageString converts a --lang flag value. "tsx" selects
// TypeScript with the isTSX flag set.
func ParseLanguageString(lang string) (Language, bool) {
	switch strings.ToLower(lang) {
	case "javascript", "js", "cjs":
		return LanguageJavaScript, false
	case "typescript", "ts", "cts":
		return LanguageTypeScript, false
	case "tsx":
		return LanguageTypeScript, true
	default:
		return LanguageUnknown, false
	}
}

// SupportedLanguages returns every grammar the manager can load.
func SupportedLanguages() []Language {
	return []Language{LanguageJavaScript, LanguageTypeScript}
}

// Package resolve flattens re-exports across files: the exports of a module
// plus, transitively, the exports of every module it re-exports.
package resolve

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/buger/jsonparser"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/indexer"
	"github.com/gnana997/cjslexer/pkg/parser"
)

// Analyzer produces the exports of one file. *indexer.FileAnalyzer
// implements it.
type Analyzer interface {
	Analyze(path string, opts cjs.Options) (*indexer.FileExports, bool, error)
}

// candidateSuffixes are tried in order when resolving a relative specifier.
var candidateSuffixes = []string{"", ".js", ".cjs", ".json", "/index.js", "/index.cjs"}

// Result is the flattened export surface of a module.
type Result struct {
	Path string `json:"path"`

	// Exports are the root's own exports followed by every forwarded name,
	// in first-seen order without duplicates.
	Exports []string `json:"exports"`

	// Files lists every module that contributed, root first.
	Files []string `json:"files"`

	// External are bare specifiers such as "lodash", which are not followed.
	External []string `json:"external"`

	Missing []Unresolved `json:"missing"`
	Errors  []FileError  `json:"errors"`
}

// Unresolved is a relative specifier that matched no file.
type Unresolved struct {
	From      string `json:"from"`
	Specifier string `json:"specifier"`
}

// FileError is a re-exported module that could not be analyzed.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Resolver follows re-exports depth-first.
type Resolver struct {
	analyzer Analyzer
	opts     cjs.Options
	logger   *slog.Logger
}

// New creates a resolver analyzing every module with opts.
func New(analyzer Analyzer, opts cjs.Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{analyzer: analyzer, opts: opts, logger: logger}
}

type walk struct {
	exports  *orderedmap.OrderedMap[string, struct{}]
	visited  map[string]bool
	external *orderedmap.OrderedMap[string, struct{}]
	result   *Result
}

// Resolve returns the flattened exports of the module at path. It fails
// only when path itself cannot be analyzed; problems below the root are
// reported in the result.
func (r *Resolver) Resolve(path string) (*Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fe, _, err := r.analyzer.Analyze(abs, r.opts)
	if err != nil {
		return nil, err
	}

	w := &walk{
		exports:  orderedmap.New[string, struct{}](),
		visited:  map[string]bool{abs: true},
		external: orderedmap.New[string, struct{}](),
		result: &Result{
			Path:    abs,
			Files:   []string{abs},
			Missing: []Unresolved{},
			Errors:  []FileError{},
		},
	}
	for _, name := range fe.Exports {
		w.exports.Set(name, struct{}{})
	}
	r.follow(w, abs, fe.Reexports)

	w.result.Exports = keys(w.exports)
	w.result.External = keys(w.external)

	r.logger.Debug("Resolved exports",
		"path", abs,
		"exports", len(w.result.Exports),
		"files", len(w.result.Files),
		"external", len(w.result.External),
		"missing", len(w.result.Missing))
	return w.result, nil
}

// follow visits the re-exports of from in order.
func (r *Resolver) follow(w *walk, from string, reexports []string) {
	for _, spec := range reexports {
		if IsBare(spec) {
			w.external.Set(spec, struct{}{})
			continue
		}

		target, ok := Probe(from, spec)
		if !ok {
			w.result.Missing = append(w.result.Missing, Unresolved{From: from, Specifier: spec})
			continue
		}
		if w.visited[target] {
			continue
		}
		w.visited[target] = true

		names, next, err := r.load(target)
		if err != nil {
			r.logger.Debug("Skipping re-exported module", "path", target, "error", err)
			w.result.Errors = append(w.result.Errors, FileError{Path: target, Error: err.Error()})
			continue
		}
		w.result.Files = append(w.result.Files, target)
		for _, name := range names {
			// a re-export never forwards the source's default
			if name != "default" {
				w.exports.Set(name, struct{}{})
			}
		}
		r.follow(w, target, next)
	}
}

// load returns the exports and re-exports of target.
func (r *Resolver) load(target string) (names, reexports []string, err error) {
	if strings.EqualFold(filepath.Ext(target), ".json") {
		names, err := jsonKeys(target)
		return names, nil, err
	}
	if parser.DetectLanguage(target) == parser.LanguageUnknown {
		return nil, nil, fmt.Errorf("unsupported module type %q", filepath.Ext(target))
	}
	fe, _, err := r.analyzer.Analyze(target, r.opts)
	if err != nil {
		return nil, nil, err
	}
	return fe.Exports, fe.Reexports, nil
}

// IsBare reports whether spec names a package rather than a path.
func IsBare(spec string) bool {
	switch {
	case spec == "." || spec == "..":
		return false
	case strings.HasPrefix(spec, "./"), strings.HasPrefix(spec, "../"), strings.HasPrefix(spec, "/"):
		return false
	case filepath.IsAbs(spec):
		return false
	}
	return true
}

// Probe resolves a relative or absolute specifier required from the file
// from, trying Node's extension and index candidates in order.
func Probe(from, spec string) (string, bool) {
	base := spec
	if !filepath.IsAbs(spec) {
		base = filepath.Join(filepath.Dir(from), filepath.FromSlash(spec))
	}
	for _, suffix := range candidateSuffixes {
		candidate := base + filepath.FromSlash(suffix)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
	}
	return "", false
}

// jsonKeys returns the top-level keys of a JSON object file. Any other
// JSON value has no named exports.
func jsonKeys(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	_, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if dataType != jsonparser.Object {
		return []string{}, nil
	}

	var names []string
	err = jsonparser.ObjectEach(data, func(key, _ []byte, _ jsonparser.ValueType, _ int) error {
		name, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, errors.Join(errors.New("invalid JSON"), err)
	}
	return names, nil
}

func keys(m *orderedmap.OrderedMap[string, struct{}]) []string {
	out := make([]string, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

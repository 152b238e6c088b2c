package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/gnana997/cjslexer/pkg/cjs"
	"github.com/gnana997/cjslexer/pkg/extractor"
	"github.com/gnana997/cjslexer/pkg/indexer"
	mcpserver "github.com/gnana997/cjslexer/pkg/mcp"
	"github.com/gnana997/cjslexer/pkg/mcplog"
	"github.com/gnana997/cjslexer/pkg/parser"
	"github.com/gnana997/cjslexer/pkg/parser/queries"
	"github.com/gnana997/cjslexer/pkg/resolve"
	"github.com/gnana997/cjslexer/pkg/util"
)

const (
	outputJSON = "json"
	outputText = "text"
)

// commonFlags are registered on every analysis command.
type commonFlags struct {
	opts      optionFlags
	logLevel  string
	logFormat string
	output    string
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func newFlagSet(name string, c *commonFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("cjslexer "+name, flag.ContinueOnError)
	fs.StringVar(&c.opts.nodeEnv, "node-env", "", "value of process.env.NODE_ENV for conditional exports (default production)")
	fs.BoolVar(&c.opts.callMode, "call-mode", false, "analyze the bodies of self-invoking wrappers")
	fs.StringVar(&c.opts.raw, "options", "", `analysis options as a JSON object, e.g. {"nodeEnv":"development","callMode":true}`)
	fs.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (default info)")
	fs.StringVar(&c.logFormat, "log-format", "", "json or text (default json)")
	fs.StringVar(&c.output, "format", outputJSON, "output format: json or text")
	return fs
}

// parseFlags parses args and records which flags were set explicitly.
func parseFlags(fs *flag.FlagSet, c *commonFlags, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.opts.set = make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { c.opts.set[f.Name] = true })
	if c.output != outputJSON && c.output != outputText {
		return fmt.Errorf("unknown output format %q (want json or text)", c.output)
	}
	return nil
}

// app is the analysis stack shared by the commands.
type app struct {
	cfg    *ProjectConfig
	opts   cjs.Options
	logger *slog.Logger

	pm        *parser.ParserManager
	qm        *queries.QueryManager
	extractor *extractor.Extractor
	sources   util.SourceCache
	index     *indexer.ExportIndex
	analyzer  *indexer.FileAnalyzer
}

// newApp loads the project config, resolves options and logging, and builds
// the analysis stack. Logs go to logOut.
func newApp(c *commonFlags, logOut io.Writer) (*app, error) {
	cfg, err := loadProjectConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", projectConfigPath, err)
	}
	var cfgLevel, cfgFormat string
	if cfg != nil {
		cfgLevel, cfgFormat = cfg.LogLevel, cfg.LogFormat
	}

	level, err := util.ParseLogLevel(resolveString(c.logLevel, cfgLevel, ""))
	if err != nil {
		return nil, err
	}
	format, err := util.ParseLogFormat(resolveString(c.logFormat, cfgFormat, ""))
	if err != nil {
		return nil, err
	}
	logger := util.NewLogger(util.LoggerConfig{Level: level, Format: format, Output: logOut})
	util.SetDefault(logger)

	opts, err := resolveOptions(c.opts, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, opts: opts, logger: logger}
	a.pm = parser.NewParserManager(logger)
	a.qm = queries.NewQueryManager(a.pm, logger)
	a.extractor = extractor.NewExtractor(a.pm, a.qm, logger)

	sourceConfig := util.DefaultSourceCacheConfig()
	sourceConfig.Logger = logger
	a.sources = util.NewSourceCache(sourceConfig)
	a.index = indexer.NewExportIndex(indexer.DefaultExportIndexConfig(), logger)
	a.analyzer = indexer.NewFileAnalyzer(a.extractor, a.sources, a.index, logger)

	logger.Debug("Analysis stack ready", "node_env", opts.NodeEnv, "call_mode", opts.CallMode)
	return a, nil
}

func (a *app) Close() {
	a.index.Close()
	if err := a.sources.Close(); err != nil {
		a.logger.Warn("Failed to close source cache", "error", err)
	}
	if err := a.qm.Close(); err != nil {
		a.logger.Warn("Failed to close query manager", "error", err)
	}
	if err := a.pm.Close(); err != nil {
		a.logger.Warn("Failed to close parser manager", "error", err)
	}
}

// scanOptions builds the scan options from the pattern flags and config.
func (a *app) scanOptions(include, exclude []string) indexer.ScanOptions {
	opts := indexer.DefaultScanOptions()
	opts.Include, opts.Exclude = resolveScanPatterns(include, exclude, a.cfg)
	opts.Options = a.opts
	return opts
}

// watchOptions mirrors scan selection for the watcher.
func (a *app) watchOptions(scan indexer.ScanOptions) indexer.WatchOptions {
	opts := indexer.DefaultWatchOptions()
	opts.Include = scan.Include
	opts.IgnorePatterns = append(opts.IgnorePatterns, scan.Exclude...)
	opts.Options = a.opts
	return opts
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printNames(w io.Writer, label string, names []string) {
	fmt.Fprintf(w, "%s (%d)\n", label, len(names))
	for _, name := range names {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

// --- parse ---

func runParse(args []string, stdin io.Reader, stdout io.Writer) error {
	var c commonFlags
	fs := newFlagSet("parse", &c)
	specifier := fs.String("specifier", "", "module name used in syntax errors when reading stdin (default stdin.js)")
	if err := parseFlags(fs, &c, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: cjslexer parse [flags] <file|->")
	}

	a, err := newApp(&c, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	path := fs.Arg(0)
	var code []byte
	if path == "-" {
		if code, err = io.ReadAll(stdin); err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		path = resolveString(*specifier, "", "stdin.js")
	} else if code, err = os.ReadFile(path); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	res, err := a.extractor.Parse(path, code, a.opts)
	if err != nil {
		return err
	}
	if c.output == outputText {
		printNames(stdout, "exports", res.Exports)
		printNames(stdout, "reexports", res.Reexports)
		return nil
	}
	return writeJSON(stdout, res)
}

// --- scan ---

// scanReport is the JSON output of scan --list.
type scanReport struct {
	Stats *indexer.ScanStats     `json:"stats"`
	Files []*indexer.FileExports `json:"files,omitempty"`
}

func runScan(args []string, stdout io.Writer) error {
	var c commonFlags
	var include, exclude stringList
	fs := newFlagSet("scan", &c)
	fs.Var(&include, "include", "doublestar pattern of files to analyze (repeatable)")
	fs.Var(&exclude, "exclude", "doublestar pattern of files or directories to skip (repeatable)")
	workers := fs.Int("workers", 0, "number of analysis workers (default 2x CPUs)")
	maxDepth := fs.Int("max-depth", 0, "maximum directory depth (0 = unlimited)")
	list := fs.Bool("list", false, "include the exports of every analyzed file")
	if err := parseFlags(fs, &c, args); err != nil {
		return err
	}
	root, err := rootArg(fs)
	if err != nil {
		return err
	}

	a, err := newApp(&c, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := a.scanOptions(include, exclude)
	opts.Workers = *workers
	opts.MaxDepth = *maxDepth

	stats, err := indexer.NewWorkspaceScanner(a.analyzer, a.logger).ScanWorkspace(ctx, root, opts, nil)
	if err != nil {
		return err
	}

	report := scanReport{Stats: stats}
	if *list {
		report.Files = a.index.All()
	}
	if c.output == outputText {
		printScan(stdout, report)
		return nil
	}
	return writeJSON(stdout, report)
}

func printScan(w io.Writer, report scanReport) {
	for _, fe := range report.Files {
		fmt.Fprintf(w, "%s [%s]\n", fe.FilePath, fe.Format)
		for _, name := range fe.Exports {
			fmt.Fprintf(w, "  export   %s\n", name)
		}
		for _, spec := range fe.Reexports {
			fmt.Fprintf(w, "  reexport %s\n", spec)
		}
	}
	s := report.Stats
	fmt.Fprintf(w, "%d files discovered, %d indexed (%d cached), %d failed in %dms\n",
		s.FilesDiscovered, s.FilesIndexed, s.FilesCached, s.FilesFailed, s.TotalTimeMs)
	fmt.Fprintf(w, "%d exports, %d re-exports\n", s.ExportsFound, s.ReexportsFound)
	for _, fe := range s.Errors {
		fmt.Fprintf(w, "  ! %s: %v\n", fe.FilePath, fe.Error)
	}
	if s.Cancelled {
		fmt.Fprintln(w, "scan cancelled")
	}
}

func rootArg(fs *flag.FlagSet) (string, error) {
	switch fs.NArg() {
	case 0:
		return ".", nil
	case 1:
		return fs.Arg(0), nil
	}
	return "", fmt.Errorf("usage: %s [flags] [dir]", fs.Name())
}

// --- resolve ---

func runResolve(args []string, stdout io.Writer) error {
	var c commonFlags
	fs := newFlagSet("resolve", &c)
	if err := parseFlags(fs, &c, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: cjslexer resolve [flags] <file>")
	}

	a, err := newApp(&c, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := resolve.New(a.analyzer, a.opts, a.logger).Resolve(fs.Arg(0))
	if err != nil {
		return err
	}
	if c.output == outputText {
		printNames(stdout, "exports", res.Exports)
		printNames(stdout, "files", res.Files)
		if len(res.External) > 0 {
			printNames(stdout, "external", res.External)
		}
		for _, m := range res.Missing {
			fmt.Fprintf(stdout, "  ! %s: cannot find %q\n", m.From, m.Specifier)
		}
		for _, e := range res.Errors {
			fmt.Fprintf(stdout, "  ! %s: %s\n", e.Path, e.Error)
		}
		return nil
	}
	return writeJSON(stdout, res)
}

// --- watch ---

// watchLine is one line of watch output.
type watchLine struct {
	Op        string   `json:"op"`
	Path      string   `json:"path"`
	Exports   []string `json:"exports,omitempty"`
	Reexports []string `json:"reexports,omitempty"`
	Error     string   `json:"error,omitempty"`
}

func newWatchLine(ev indexer.WatchEvent) watchLine {
	line := watchLine{Op: ev.Op, Path: ev.FilePath}
	if ev.Exports != nil {
		line.Exports = ev.Exports.Exports
		line.Reexports = ev.Exports.Reexports
	}
	if ev.Err != nil {
		line.Error = ev.Err.Error()
	}
	return line
}

func runWatch(args []string, stdout io.Writer) error {
	var c commonFlags
	var include, exclude stringList
	fs := newFlagSet("watch", &c)
	fs.Var(&include, "include", "doublestar pattern of files to analyze (repeatable)")
	fs.Var(&exclude, "exclude", "doublestar pattern of files or directories to skip (repeatable)")
	debounce := fs.Int("debounce", 0, "milliseconds to wait for a file to settle (default 200)")
	if err := parseFlags(fs, &c, args); err != nil {
		return err
	}
	root, err := rootArg(fs)
	if err != nil {
		return err
	}

	a, err := newApp(&c, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scanOpts := a.scanOptions(include, exclude)
	stats, err := indexer.NewWorkspaceScanner(a.analyzer, a.logger).ScanWorkspace(ctx, root, scanOpts, nil)
	if err != nil {
		return err
	}
	a.logger.Info("Initial scan complete", "files", stats.FilesIndexed, "failed", stats.FilesFailed)

	var mu sync.Mutex
	watchOpts := a.watchOptions(scanOpts)
	if *debounce > 0 {
		watchOpts.DebounceMs = *debounce
	}
	watchOpts.OnChange = func(ev indexer.WatchEvent) {
		mu.Lock()
		defer mu.Unlock()
		line := newWatchLine(ev)
		if c.output == outputText {
			switch {
			case line.Error != "":
				fmt.Fprintf(stdout, "%s %s: %s\n", line.Op, line.Path, line.Error)
			default:
				fmt.Fprintf(stdout, "%s %s exports=[%s] reexports=[%s]\n", line.Op, line.Path,
					strings.Join(line.Exports, ", "), strings.Join(line.Reexports, ", "))
			}
			return
		}
		if err := json.NewEncoder(stdout).Encode(line); err != nil {
			a.logger.Warn("Failed to write watch event", "error", err)
		}
	}

	watcher, err := indexer.NewFileWatcher(a.analyzer, watchOpts, a.logger)
	if err != nil {
		return err
	}
	if err := watcher.Start(root); err != nil {
		return err
	}
	<-ctx.Done()
	return watcher.Stop()
}

// --- serve ---

func runServe(args []string) error {
	var c commonFlags
	var include, exclude stringList
	fs := newFlagSet("serve", &c)
	root := fs.String("root", "", "directory that relative tool paths resolve against (default working directory)")
	watch := fs.Bool("watch", false, "keep the index current while files under --root change")
	mcpLog := fs.String("mcp-log", "", "append a JSONL record of every tool call to this file")
	fs.Var(&include, "include", "doublestar pattern of files to watch (repeatable)")
	fs.Var(&exclude, "exclude", "doublestar pattern of files or directories to skip (repeatable)")
	if err := parseFlags(fs, &c, args); err != nil {
		return err
	}

	// stdout carries the MCP protocol; logs always go to stderr.
	a, err := newApp(&c, os.Stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	var cfgLog string
	if a.cfg != nil {
		cfgLog = a.cfg.MCPLog
	}
	callLog, err := mcplog.Open(resolveString(*mcpLog, cfgLog, ""))
	if err != nil {
		return err
	}
	defer callLog.Close()

	rootDir := *root
	if rootDir == "" {
		if rootDir, err = os.Getwd(); err != nil {
			return err
		}
	}
	if rootDir, err = filepath.Abs(rootDir); err != nil {
		return err
	}

	var watcher *indexer.FileWatcher
	if *watch {
		watcher, err = indexer.NewFileWatcher(a.analyzer, a.watchOptions(a.scanOptions(include, exclude)), a.logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(rootDir); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	srv := mcpserver.NewServer(mcpserver.Config{
		Extractor: a.extractor,
		Analyzer:  a.analyzer,
		Parser:    a.pm,
		Watcher:   watcher,
		Options:   a.opts,
		Root:      rootDir,
		CallLog:   callLog,
		Logger:    a.logger,
	})
	a.logger.Info("Serving MCP over stdio", "root", rootDir, "watch", *watch)
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// serverName is the key of the cjslexer entry in agent MCP configs.
const serverName = "cjslexer"

// AgentDef defines how to detect and configure one AI agent.
type AgentDef struct {
	ID          string
	DisplayName string
	Method      string            // "cli" or "file"
	Binary      string            // for CLI agents: binary name on PATH
	DirMarkers  []string          // for file-based: dirs that indicate presence
	ConfigPath  func() string     // returns resolved config file path
	ServersKey  string            // JSON key: "servers" (VS Code) or "mcpServers" (others)
	NeedsScope  bool              // whether to prompt for project/user scope
	ExtraFields map[string]string // extra JSON fields (e.g. "type": "stdio" for VS Code)
}

// DetectedAgent is an agent found on the system.
type DetectedAgent struct {
	Def            AgentDef
	AlreadySetup   bool
	ResolvedConfig string // resolved config path for file-based agents
}

// setupOptions holds parsed flags for the setup command.
type setupOptions struct {
	auto  bool
	watch bool
}

// serveArgs are the arguments agents start the server with.
func (o setupOptions) serveArgs() []string {
	if o.watch {
		return []string{"serve", "--watch"}
	}
	return []string{"serve"}
}

// Replaceable for testing.
var lookPathFunc = exec.LookPath
var statFunc = os.Stat

// agentRegistry lists all supported agents in display order.
var agentRegistry = []AgentDef{
	{
		ID: "claude_code", DisplayName: "Claude Code",
		Method: "cli", Binary: "claude", NeedsScope: true,
	},
	{
		ID: "openai_codex", DisplayName: "OpenAI Codex",
		Method: "cli", Binary: "codex", NeedsScope: true,
	},
	{
		ID: "vscode_copilot", DisplayName: "VS Code Copilot",
		Method: "file", DirMarkers: []string{".vscode"},
		ConfigPath:  func() string { return filepath.Join(".vscode", "mcp.json") },
		ServersKey:  "servers",
		ExtraFields: map[string]string{"type": "stdio"},
	},
	{
		ID: "cursor", DisplayName: "Cursor",
		Method: "file", DirMarkers: []string{".cursor"},
		ConfigPath: func() string { return filepath.Join(".cursor", "mcp.json") },
		ServersKey: "mcpServers",
	},
	{
		ID: "claude_desktop", DisplayName: "Claude Desktop",
		Method:     "file",
		ConfigPath: claudeDesktopConfigPath,
		ServersKey: "mcpServers",
	},
}

// claudeDesktopConfigPath returns the OS-specific Claude Desktop config path.
func claudeDesktopConfigPath() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Claude", "claude_desktop_config.json")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Claude", "claude_desktop_config.json")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "Claude", "claude_desktop_config.json")
	}
}

// detectAgents scans the system for installed/accessible AI agents.
func detectAgents() []DetectedAgent {
	var detected []DetectedAgent

	for _, def := range agentRegistry {
		switch def.Method {
		case "cli":
			if _, err := lookPathFunc(def.Binary); err == nil {
				detected = append(detected, DetectedAgent{
					Def:          def,
					AlreadySetup: hasServerEntry(".mcp.json", "mcpServers"),
				})
			}

		case "file":
			configPath, found := locateFileAgent(def)
			if !found {
				continue
			}
			d := DetectedAgent{Def: def, ResolvedConfig: configPath}
			if configPath != "" {
				d.AlreadySetup = hasServerEntry(configPath, def.ServersKey)
			}
			detected = append(detected, d)
		}
	}

	return detected
}

// locateFileAgent reports whether a file-based agent is present: one of its
// directory markers exists or, for agents without markers, the parent of
// its config file does.
func locateFileAgent(def AgentDef) (string, bool) {
	for _, marker := range def.DirMarkers {
		if _, err := statFunc(marker); err == nil {
			if def.ConfigPath != nil {
				return def.ConfigPath(), true
			}
			return "", true
		}
	}
	if len(def.DirMarkers) > 0 || def.ConfigPath == nil {
		return "", false
	}
	configPath := def.ConfigPath()
	if _, err := statFunc(filepath.Dir(configPath)); err != nil {
		return "", false
	}
	return configPath, true
}

// hasServerEntry checks if a cjslexer entry exists under serversKey in a
// JSON config file.
func hasServerEntry(configPath, serversKey string) bool {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return false
	}
	var config map[string]any
	if err := json.Unmarshal(data, &config); err != nil {
		return false
	}
	servers, ok := config[serversKey].(map[string]any)
	if !ok {
		return false
	}
	_, exists := servers[serverName]
	return exists
}

// serverEntry returns the MCP server config object for cjslexer.
func serverEntry(args []string, extra map[string]string) map[string]any {
	argv := make([]any, len(args))
	for i, a := range args {
		argv[i] = a
	}
	entry := map[string]any{
		"command": serverName,
		"args":    argv,
	}
	for k, v := range extra {
		entry[k] = v
	}
	return entry
}

// mergeServerEntry reads existing JSON (or creates new), adds a cjslexer
// entry under serversKey, and returns the merged JSON bytes.
// Returns nil, nil if cjslexer is already configured (no-op).
func mergeServerEntry(existing []byte, serversKey string, args []string, extra map[string]string) ([]byte, error) {
	config := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &config); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	}

	servers, ok := config[serversKey].(map[string]any)
	if !ok {
		servers = make(map[string]any)
	}
	if _, exists := servers[serverName]; exists {
		return nil, nil
	}

	servers[serverName] = serverEntry(args, extra)
	config[serversKey] = servers

	out, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// configureCLIAgent runs `<binary> mcp add` with the chosen scope.
func configureCLIAgent(def AgentDef, scope string, serveArgs []string) error {
	args := []string{"mcp", "add"}
	if scope != "" {
		args = append(args, "--scope", scope)
	}
	args = append(args, serverName, "--", serverName)
	args = append(args, serveArgs...)
	cmd := exec.Command(def.Binary, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// configureFileAgent reads, merges, and writes the JSON config file.
func configureFileAgent(def AgentDef, configPath string, serveArgs []string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	var existing []byte
	if data, err := os.ReadFile(configPath); err == nil {
		existing = data
	}

	merged, err := mergeServerEntry(existing, def.ServersKey, serveArgs, def.ExtraFields)
	if err != nil {
		return err
	}
	if merged == nil {
		return nil
	}

	return os.WriteFile(configPath, merged, 0644)
}

// --- Interactive prompts ---

// promptYesNo prints a question and reads Y/n. Returns true for yes (default).
func promptYesNo(r *bufio.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s ", question)
	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return true
	}
	answer := strings.TrimSpace(strings.ToLower(line))
	return answer == "" || answer == "y" || answer == "yes"
}

// promptScope prints scope options and reads 1/2/3.
// Returns "project", "user", or "" (skip).
func promptScope(r *bufio.Reader, w io.Writer, agentName string) string {
	fmt.Fprintf(w, "\n%s: add the %s MCP server?\n", agentName, serverName)
	fmt.Fprintln(w, "  [1] Project scope (shared with team)")
	fmt.Fprintln(w, "  [2] User scope (personal, global)")
	fmt.Fprintln(w, "  [3] Skip")
	fmt.Fprintf(w, "  > ")

	line, err := r.ReadString('\n')
	if err != nil && line == "" {
		return "project"
	}
	switch strings.TrimSpace(line) {
	case "1", "":
		return "project"
	case "2":
		return "user"
	default:
		return ""
	}
}

// --- Orchestration ---

// runSetup is the entry point for `cjslexer setup`.
func runSetup(args []string) {
	executeSetup(os.Stdin, os.Stdout, parseSetupFlags(args))
}

func parseSetupFlags(args []string) setupOptions {
	var opts setupOptions
	for _, arg := range args {
		switch arg {
		case "--auto":
			opts.auto = true
		case "--watch":
			opts.watch = true
		}
	}
	return opts
}

// executeSetup contains the testable core logic, parameterized on I/O.
func executeSetup(in io.Reader, w io.Writer, opts setupOptions) {
	detected := detectAgents()
	if len(detected) == 0 {
		fmt.Fprintln(w, "No supported AI agents detected.")
		return
	}

	fmt.Fprintln(w, "Detected AI agents:")
	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(w, "  * %s (already configured)\n", d.Def.DisplayName)
		} else {
			fmt.Fprintf(w, "  * %s\n", d.Def.DisplayName)
		}
	}
	fmt.Fprintln(w)

	// One reader for every prompt so buffered answers are not lost.
	r := bufio.NewReader(in)
	if !opts.auto && !promptYesNo(r, w, "Configure agents? [Y/n]") {
		return
	}

	for _, d := range detected {
		if d.AlreadySetup {
			fmt.Fprintf(w, "\n%s: already configured, skipping\n", d.Def.DisplayName)
			continue
		}
		configureOneAgent(r, w, d, opts)
	}
}

func configureOneAgent(r *bufio.Reader, w io.Writer, d DetectedAgent, opts setupOptions) {
	switch d.Def.Method {
	case "cli":
		scope := "project"
		if !opts.auto && d.Def.NeedsScope {
			if scope = promptScope(r, w, d.Def.DisplayName); scope == "" {
				fmt.Fprintf(w, "  skipped\n")
				return
			}
		}
		if err := configureCLIAgent(d.Def, scope, opts.serveArgs()); err != nil {
			fmt.Fprintf(w, "  ! %s: failed: %v\n", d.Def.DisplayName, err)
			return
		}
		fmt.Fprintf(w, "  + %s configured (scope: %s)\n", d.Def.DisplayName, scope)

	case "file":
		if !opts.auto {
			if !promptYesNo(r, w, fmt.Sprintf("\n%s: add to %s? [Y/n]", d.Def.DisplayName, d.ResolvedConfig)) {
				fmt.Fprintf(w, "  skipped\n")
				return
			}
		}
		if err := configureFileAgent(d.Def, d.ResolvedConfig, opts.serveArgs()); err != nil {
			fmt.Fprintf(w, "  ! %s: failed: %v\n", d.Def.DisplayName, err)
			return
		}
		fmt.Fprintf(w, "  + %s configured (%s)\n", d.Def.DisplayName, d.ResolvedConfig)
	}
}

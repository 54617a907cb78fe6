package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mindforge-ai/mindforge/errs"
)

// HandsConfig configures the file-and-shell tool ("hands", spec §4.3).
type HandsConfig struct {
	// WorkspaceRoot is the absolute directory every canonicalized path
	// argument must fall under.
	WorkspaceRoot string
	// AllowedCommands is the allowlist of executable names usable in
	// direct mode. An empty list permits nothing (fail closed).
	AllowedCommands []string
	// Timeout bounds a single command invocation.
	Timeout time.Duration
}

// DirectArgs is the payload for the hands tool's direct mode: a command name
// from the allowlist plus argv-style arguments, no shell string (spec §4.3,
// §9 "Security of the shell-capable tool").
type DirectArgs struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
	Dir     string   `json:"dir"`
}

// DirectResult reports the outcome of a direct-mode invocation.
type DirectResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// Hands implements the direct-mode half of the file-and-shell tool. The
// LLM-driven mode (§4.3) is implemented by Executor in hands_llm.go, which
// dispatches each emitted tool call through the Registry (reaching RunDirect
// when the model calls the tool built by ToolDescriptor).
type Hands struct {
	cfg HandsConfig
}

// NewHands validates cfg and returns a Hands instance.
func NewHands(cfg HandsConfig) (*Hands, error) {
	root, err := filepath.Abs(cfg.WorkspaceRoot)
	if err != nil {
		return nil, errs.Wrap(errs.KindInvalidRequest, err, "hands: resolve workspace root")
	}
	cfg.WorkspaceRoot = root
	if len(cfg.AllowedCommands) == 0 {
		return nil, errs.New(errs.KindInvalidRequest, "hands: allowed command list must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Hands{cfg: cfg}, nil
}

// RunDirect executes one direct-mode command: argv, not a shell string;
// every path-shaped argument is canonicalized and confined to the
// workspace root; the command name must be allowlisted; the call is
// timeout-bounded.
func (h *Hands) RunDirect(ctx context.Context, args DirectArgs) (DirectResult, error) {
	if !h.commandAllowed(args.Command) {
		return DirectResult{}, errs.Newf(errs.KindSecurityViolation, "hands: command %q is not in the allowlist", args.Command)
	}
	canonArgs := make([]string, len(args.Args))
	for i, a := range args.Args {
		resolved, err := h.canonicalizeIfPath(a)
		if err != nil {
			return DirectResult{}, err
		}
		canonArgs[i] = resolved
	}
	dir := h.cfg.WorkspaceRoot
	if args.Dir != "" {
		resolvedDir, err := h.canonicalize(args.Dir)
		if err != nil {
			return DirectResult{}, err
		}
		dir = resolvedDir
	}

	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, args.Command, canonArgs...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := DirectResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctx.Err() != nil {
		return result, errs.Wrap(errs.KindTimeout, ctx.Err(), "hands: command timed out")
	}
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, errs.Wrap(errs.KindToolExecutionError, runErr, "hands: command exited non-zero")
		}
		return result, errs.Wrap(errs.KindToolExecutionError, runErr, "hands: command failed to start")
	}
	return result, nil
}

func (h *Hands) commandAllowed(cmd string) bool {
	for _, c := range h.cfg.AllowedCommands {
		if c == cmd {
			return true
		}
	}
	return false
}

// canonicalizeIfPath treats any argument containing a path separator as a
// path argument subject to canonicalization; plain flags/values (e.g. "-l",
// "3") pass through unchanged.
func (h *Hands) canonicalizeIfPath(arg string) (string, error) {
	if !strings.ContainsRune(arg, '/') && !strings.HasPrefix(arg, ".") {
		return arg, nil
	}
	return h.canonicalize(arg)
}

func (h *Hands) canonicalize(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(h.cfg.WorkspaceRoot, abs)
	}
	abs = filepath.Clean(abs)
	rel, err := filepath.Rel(h.cfg.WorkspaceRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errs.Newf(errs.KindSecurityViolation, "hands: path %q escapes workspace root", p)
	}
	return abs, nil
}

// ToolDescriptor builds the registry Tool wrapping Hands' direct mode.
func (h *Hands) ToolDescriptor(allowedAgents []string) Tool {
	descriptor := Descriptor{
		ID:          "hands.direct",
		ModuleRef:   "hands",
		Description: "Executes an allowlisted command with argv arguments confined to the workspace root.",
		Enabled:     true,
		AccessControl: AccessControl{
			AllowedAgents: allowedAgents,
		},
		Category: "system",
		Version:  "1",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["command"],
			"properties": {
				"command": {"type": "string", "minLength": 1},
				"args": {"type": "array", "items": {"type": "string"}},
				"dir": {"type": "string"}
			}
		}`),
		OutputSchema: json.RawMessage(`{
			"type": "object",
			"required": ["exit_code", "stdout", "stderr"],
			"properties": {
				"exit_code": {"type": "integer"},
				"stdout": {"type": "string"},
				"stderr": {"type": "string"}
			}
		}`),
	}
	handler := func(toolCtx Context, args json.RawMessage) (json.RawMessage, error) {
		var in DirectArgs
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, errs.Wrap(errs.KindInvalidParameters, err, "hands: decode direct args")
		}
		result, err := h.RunDirect(context.Background(), in)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}
	return Tool{Descriptor: descriptor, Handler: handler}
}

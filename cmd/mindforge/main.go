// Command mindforge is the supervising-process CLI (spec §6): a thin
// flag-based dispatcher wiring every core component together against a
// data directory, with no ergonomics beyond the documented subcommand set
// and exit codes (CLI polish is out of scope). It performs one subcommand's
// work and exits; the tactical/strategic loops it can also drive are
// started only by the `run` subcommand, which blocks until a shutdown
// signal is observed at a suspension point (spec §5).
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/mindforge-ai/mindforge/agents"
	"github.com/mindforge-ai/mindforge/agint"
	"github.com/mindforge-ai/mindforge/backlog"
	"github.com/mindforge-ai/mindforge/bdi"
	"github.com/mindforge-ai/mindforge/beliefs"
	"github.com/mindforge-ai/mindforge/campaign"
	"github.com/mindforge-ai/mindforge/config"
	"github.com/mindforge-ai/mindforge/coordinator"
	"github.com/mindforge-ai/mindforge/engine"
	"github.com/mindforge-ai/mindforge/engine/inmem"
	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/goals"
	"github.com/mindforge-ai/mindforge/llm"
	"github.com/mindforge-ai/mindforge/llm/providers/anthropic"
	"github.com/mindforge-ai/mindforge/mastermind"
	"github.com/mindforge-ai/mindforge/recovery"
	"github.com/mindforge-ai/mindforge/tools"
)

// Exit codes (spec §6).
const (
	exitSuccess          = 0
	exitFailure          = 1
	exitInvalidArguments = 2
	exitSafetyViolation  = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mindforge <evolve|deploy|status|backlog|agent|tools|run|shutdown> ...")
		return exitInvalidArguments
	}

	sys, err := newSystem()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mindforge:", err)
		return exitFailure
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "evolve":
		return sys.cmdEvolve(rest)
	case "deploy":
		return sys.cmdDeploy(rest)
	case "status":
		return sys.cmdStatus(rest)
	case "backlog":
		return sys.cmdBacklog(rest)
	case "agent":
		return sys.cmdAgent(rest)
	case "tools":
		return sys.cmdTools(rest)
	case "run":
		return sys.cmdRun(rest)
	case "shutdown":
		return sys.cmdShutdown(rest)
	default:
		fmt.Fprintf(os.Stderr, "mindforge: unknown subcommand %q\n", cmd)
		return exitInvalidArguments
	}
}

// system wires every core component together against one config.Config /
// data directory, mirroring what a long-running supervising process would
// hold, but built fresh for each CLI invocation since this binary has no
// ergonomics beyond the documented subcommand set.
type system struct {
	cfg config.Config

	beliefs   *beliefs.Store
	gateway   *llm.Gateway
	registry  *tools.Registry
	goalQueue *goals.Queue
	recovery  *recovery.Framework
	bdiExec   *bdi.Executor

	backlogStore *backlog.Store
	campaigns    *campaign.Store
	agentsStore  *agents.Store

	coord      *coordinator.Coordinator
	mastermind *mastermind.Mastermind
	intel      *agint.Intelligence
}

func newSystem() (*system, error) {
	cfg := config.Default()
	if dir := os.Getenv("MINDFORGE_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if root := os.Getenv("MINDFORGE_WORKSPACE_ROOT"); root != "" {
		cfg.WorkspaceRoot = root
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, sub := range []string{"state", "logs", "pids", "backups"} {
		if err := os.MkdirAll(filepath.Join(cfg.DataDir, sub), 0o755); err != nil {
			return nil, errs.Wrap(errs.KindInvalidRequest, err, "mindforge: create data subdirectory")
		}
	}

	beliefStore := beliefs.New(filepath.Join(cfg.DataDir, "state", "beliefs"), cfg.Store.BackupRotation, nil)
	backlogStore := backlog.New(filepath.Join(cfg.DataDir, "state", "backlog.json"), cfg.Store.BackupRotation)
	campaigns := campaign.New(filepath.Join(cfg.DataDir, "state", "campaigns.json"), cfg.Store.BackupRotation)
	agentsStore := agents.New(filepath.Join(cfg.DataDir, "state", "agents.json"), cfg.Store.BackupRotation)

	// Supervisor restart recovery (spec §3 invariant): an IN_PROGRESS item
	// left over from a process that died mid-cycle is reset to PENDING before
	// any new work is dispatched.
	if _, err := backlogStore.ResetOrphanedInProgress(); err != nil {
		return nil, errs.Wrap(errs.KindStoreCorruption, err, "mindforge: reset orphaned backlog items")
	}

	provider, err := buildProvider(cfg.Gateway.DefaultModel)
	if err != nil {
		return nil, err
	}
	gateway := llm.New(llm.Options{
		Provider:      provider,
		RatePerSecond: cfg.Gateway.RateLimitPerSecond,
		RateBurst:     cfg.Gateway.RateLimitBurst,
		MaxRetries:    cfg.Gateway.MaxRetries,
		BaseDelay:     cfg.Gateway.BaseRetryDelay,
		MaxDelay:      cfg.Gateway.MaxRetryDelay,
	})

	registry := tools.New(nil)
	recoveryFramework := recovery.New()
	goalQueue := goals.NewQueue()

	bdiExec := &bdi.Executor{
		Gateway:       gateway,
		Registry:      registry,
		Beliefs:       beliefStore,
		Goals:         goalQueue,
		Recovery:      recoveryFramework,
		WorkspaceRoot: cfg.WorkspaceRoot,
		AgentID:       "mindforge",
	}

	siwInvoker := &coordinator.SubprocessInvoker{
		Backlog: backlogStore,
		Config: coordinator.SubprocessConfig{
			BinaryPath:        siwBinaryPath(),
			Cycles:            1,
			SelfTestTimeout:   60 * time.Second,
			CritiqueThreshold: 0.7,
			Timeout:           10 * time.Minute,
		},
	}
	guard := coordinator.DefaultGuard{
		CPUCeiling: cfg.Budgets.CPUPercentCeiling,
		CPUSampler: coordinator.LoadAvgSampler(numCPU()),
		RemainingBudget: func() int64 {
			return int64(llm.AmountFromCents(cfg.Budgets.DailyLLMCostCents) - gateway.DailySpend())
		},
		FreeDiskFloor: cfg.Budgets.FreeDiskBytesFloor,
		FreeDiskBytes: func() (int64, error) { return freeDiskBytes(cfg.DataDir) },
	}
	coord := coordinator.New(backlogStore, siwInvoker, guard, nil, coordinator.Config{
		DefaultCooldown:    time.Duration(cfg.Loops.DefaultCooldownSeconds) * time.Second,
		CriticalComponents: cfg.Approval.CriticalComponents,
	}, nil)

	mm := &mastermind.Mastermind{
		Gateway:       gateway,
		Campaigns:     campaigns,
		Enqueuer:      coord,
		ValidateDelay: time.Duration(cfg.Loops.ValidateDelaySeconds) * time.Second,
	}

	researcher := agint.NewGatewayResearcher(gateway, beliefStore, cfg.Gateway.DefaultModel)
	intel := agint.New(beliefStore, bdiExec, researcher, coord, nil)

	return &system{
		cfg:          cfg,
		beliefs:      beliefStore,
		gateway:      gateway,
		registry:     registry,
		goalQueue:    goalQueue,
		recovery:     recoveryFramework,
		bdiExec:      bdiExec,
		backlogStore: backlogStore,
		campaigns:    campaigns,
		agentsStore:  agentsStore,
		coord:        coord,
		mastermind:   mm,
		intel:        intel,
	}, nil
}

func buildProvider(model string) (llm.Provider, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errs.New(errs.KindInvalidRequest, "mindforge: ANTHROPIC_API_KEY is required")
	}
	if model == "" || model == "default" {
		model = "claude-3-5-sonnet-latest"
	}
	return anthropic.NewFromAPIKey(apiKey, model)
}

func siwBinaryPath() string {
	if p := os.Getenv("MINDFORGE_SIW_BINARY"); p != "" {
		return p
	}
	return "siw"
}

func numCPU() int {
	return runtime.NumCPU()
}

// freeDiskBytes reports free space on the filesystem containing dir. Linux-
// only, standard library only: no third-party disk-usage library appears
// anywhere in the example corpus, matching the same stdlib exception
// LoadAvgSampler documents.
func freeDiskBytes(dir string) (int64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, err
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}

// --- evolve ---

func (s *system) cmdEvolve(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: mindforge evolve <directive>")
		return exitInvalidArguments
	}
	directive := campaign.Directive{Text: args[0]}
	id, err := s.mastermind.RunCampaign(context.Background(), directive)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: evolve:", err)
		if errs.KindOf(err) == errs.KindSecurityViolation {
			return exitSafetyViolation
		}
		return exitFailure
	}
	fmt.Println(id)
	return exitSuccess
}

// --- deploy ---

// agentSpec is the minimal JSON shape `deploy <agent_spec>` reads: a path to
// a file naming the agent id and the goal description it should pursue.
// Spec.md names the subcommand without detailing agent_spec's shape, so
// this module defines the smallest contract `agent create` also produces
// records for.
type agentSpec struct {
	AgentID  string `json:"agent_id"`
	Goal     string `json:"goal"`
	Priority int    `json:"priority"`
}

func (s *system) cmdDeploy(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: mindforge deploy <agent_spec>")
		return exitInvalidArguments
	}
	raw, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: deploy:", err)
		return exitInvalidArguments
	}
	var spec agentSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: deploy: decode agent_spec:", err)
		return exitInvalidArguments
	}
	if spec.AgentID == "" || spec.Goal == "" {
		fmt.Fprintln(os.Stderr, "mindforge: deploy: agent_spec requires agent_id and goal")
		return exitInvalidArguments
	}

	rec, err := s.agentsStore.Get(spec.AgentID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: deploy:", err)
		return exitFailure
	}

	exec := *s.bdiExec
	exec.AgentID = rec.ID
	exec.WorkspaceRoot = rec.WorkspaceRoot

	if err := exec.RunGoalDescription(context.Background(), spec.Goal, spec.Priority); err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: deploy:", err)
		if errs.KindOf(err) == errs.KindSecurityViolation {
			return exitSafetyViolation
		}
		return exitFailure
	}
	return exitSuccess
}

// --- status ---

func (s *system) cmdStatus(args []string) int {
	result, err := s.coord.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: status:", err)
		return exitFailure
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: status:", err)
		return exitFailure
	}
	fmt.Println(string(out))
	return exitSuccess
}

// --- backlog ---

func (s *system) cmdBacklog(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mindforge backlog list|approve <id>|reject <id>|process")
		return exitInvalidArguments
	}
	switch args[0] {
	case "list":
		items, err := s.coord.List(backlog.Filter{})
		if err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: backlog list:", err)
			return exitFailure
		}
		out, _ := json.MarshalIndent(items, "", "  ")
		fmt.Println(string(out))
		return exitSuccess
	case "approve":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: mindforge backlog approve <id>")
			return exitInvalidArguments
		}
		if err := s.coord.Approve(args[1]); err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: backlog approve:", err)
			return exitFailure
		}
		return exitSuccess
	case "reject":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: mindforge backlog reject <id>")
			return exitInvalidArguments
		}
		if err := s.coord.Reject(args[1]); err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: backlog reject:", err)
			return exitFailure
		}
		return exitSuccess
	case "process":
		id, err := s.coord.Tick(context.Background())
		if err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: backlog process:", err)
			return exitFailure
		}
		if id == "" {
			fmt.Println("no eligible backlog item")
		} else {
			fmt.Println(id)
		}
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "mindforge: unknown backlog subcommand %q\n", args[0])
		return exitInvalidArguments
	}
}

// --- agent ---

func (s *system) cmdAgent(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mindforge agent create|delete|list")
		return exitInvalidArguments
	}
	switch args[0] {
	case "create":
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "usage: mindforge agent create <id> <workspace_root>")
			return exitInvalidArguments
		}
		rec, err := s.agentsStore.Create(args[1], args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: agent create:", err)
			return exitFailure
		}
		out, _ := json.MarshalIndent(rec, "", "  ")
		fmt.Println(string(out))
		return exitSuccess
	case "delete":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: mindforge agent delete <id>")
			return exitInvalidArguments
		}
		if err := s.agentsStore.Delete(args[1]); err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: agent delete:", err)
			return exitFailure
		}
		return exitSuccess
	case "list":
		list, err := s.agentsStore.List()
		if err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: agent list:", err)
			return exitFailure
		}
		out, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(out))
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "mindforge: unknown agent subcommand %q\n", args[0])
		return exitInvalidArguments
	}
}

// --- tools ---

func (s *system) cmdTools(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: mindforge tools list|register <descriptor>")
		return exitInvalidArguments
	}
	switch args[0] {
	case "list":
		out, _ := json.MarshalIndent(s.registry.List(), "", "  ")
		fmt.Println(string(out))
		return exitSuccess
	case "register":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "usage: mindforge tools register <descriptor_file>")
			return exitInvalidArguments
		}
		raw, err := os.ReadFile(args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: tools register:", err)
			return exitInvalidArguments
		}
		var descriptor tools.Descriptor
		if err := json.Unmarshal(raw, &descriptor); err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: tools register: decode descriptor:", err)
			return exitInvalidArguments
		}
		if err := s.registry.Register(tools.Tool{Descriptor: descriptor, Handler: externalModuleHandler(descriptor.ModuleRef)}); err != nil {
			fmt.Fprintln(os.Stderr, "mindforge: tools register:", err)
			return exitFailure
		}
		return exitSuccess
	default:
		fmt.Fprintf(os.Stderr, "mindforge: unknown tools subcommand %q\n", args[0])
		return exitInvalidArguments
	}
}

// externalModuleHandler builds a tools.Handler that invokes moduleRef as an
// external executable: the tool call's args are written to its stdin as
// JSON, and its stdout is read to EOF and returned as the result, mirroring
// the same subprocess protocol spec §9 defines for SIW rather than
// inventing a second wire format for dynamically registered tools.
func externalModuleHandler(moduleRef string) tools.Handler {
	return func(_ tools.Context, args json.RawMessage) (json.RawMessage, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		cmd := exec.CommandContext(ctx, moduleRef)
		cmd.Stdin = bytes.NewReader(args)
		out, err := cmd.Output()
		if err != nil {
			return nil, errs.Wrap(errs.KindToolExecutionError, err, fmt.Sprintf("mindforge: invoke external tool module %q", moduleRef))
		}
		return json.RawMessage(out), nil
	}
}

// --- run ---

// cmdRun starts the cooperative scheduler (spec §5's task inventory) and
// blocks until SIGINT/SIGTERM, at which point every task observes
// cancellation at its next suspension point and Stop waits for them to
// return (spec §4.8/§4.10's graceful-shutdown note).
func (s *system) cmdRun(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pidPath := filepath.Join(s.cfg.DataDir, "pids", "mindforge.pid")
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: run: write pid file:", err)
		return exitFailure
	}
	defer os.Remove(pidPath)

	eng := inmem.New(nil)
	tacticalInterval := time.Duration(s.cfg.Loops.TacticalIntervalSeconds) * time.Second
	strategicInterval := time.Duration(s.cfg.Loops.StrategicIntervalSeconds) * time.Second

	must(eng.RegisterTask("coordinator-tactical-loop", tickLoop(tacticalInterval, func(ctx context.Context) error {
		_, err := s.coord.Tick(ctx)
		return err
	})))
	must(eng.RegisterTask("mastermind-strategic-loop", tickLoop(strategicInterval, func(ctx context.Context) error {
		_, err := s.mastermind.RunCampaign(ctx, campaign.Directive{Text: "assess and evolve"})
		return err
	})))
	must(eng.RegisterTask("intelligence-cycle", tickLoop(tacticalInterval, func(ctx context.Context) error {
		_, err := s.intel.Cycle(ctx)
		return err
	})))
	must(eng.RegisterTask("beliefs-flush", tickLoop(time.Minute, func(ctx context.Context) error {
		return s.beliefs.Flush(ctx)
	})))

	if err := eng.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: run:", err)
		return exitFailure
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := eng.Stop(stopCtx); err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: run: graceful shutdown:", err)
		return exitFailure
	}
	return exitSuccess
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// tickLoop adapts a one-shot fn into a repeating engine.TaskFunc, running fn
// once every interval until ctx is cancelled (spec §5: cooperative tasks
// observe cancellation at each suspension point, here the ticker).
func tickLoop(interval time.Duration, fn func(ctx context.Context) error) engine.TaskFunc {
	return func(ctx context.Context) error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					return err
				}
			}
		}
	}
}

// --- shutdown ---

// cmdShutdown signals a running `mindforge run` process to stop by sending
// SIGTERM to the pid recorded under data/pids, mirroring spec §6's
// "PID files removed" graceful-shutdown note.
func (s *system) cmdShutdown(args []string) int {
	pidPath := filepath.Join(s.cfg.DataDir, "pids", "mindforge.pid")
	raw, err := os.ReadFile(pidPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: shutdown: no running process found:", err)
		return exitFailure
	}
	var pid int
	if _, err := fmt.Sscanf(string(raw), "%d", &pid); err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: shutdown: malformed pid file:", err)
		return exitFailure
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: shutdown:", err)
		return exitFailure
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		fmt.Fprintln(os.Stderr, "mindforge: shutdown:", err)
		return exitFailure
	}
	return exitSuccess
}

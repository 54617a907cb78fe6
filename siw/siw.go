// Package siw implements the Self-Improvement Worker (spec §4.9, C5): a
// standalone analyze→implement→evaluate→promote/revert cycle run against one
// target file per invocation. It is designed to be driven by cmd/siw as an
// OS-isolated subprocess (spec §9: "SIW is OS-isolated; the parent reads
// stdout to EOF then parses one JSON object, and reads exit code"), but the
// cycle logic itself has no subprocess or flag-parsing concerns so it can be
// unit tested in-process. Grounded on the teacher's planner request/response
// loop shape (analyze and implement are both single gateway calls, the same
// shape as bdi.Plan's single call), generalized into a four-step cycle with
// file-level promotion instead of an in-memory action list.
package siw

import (
	"context"
	"encoding/json"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/llm"
	"github.com/mindforge-ai/mindforge/store"
	"github.com/mindforge-ai/mindforge/telemetry"
)

// Status is the terminal classification of one cycle (spec §3 SIW cycle
// result).
type Status string

const (
	StatusPromoted             Status = "PROMOTED"
	StatusEvaluatedNotPromoted Status = "EVALUATED_NOT_PROMOTED"
	StatusReverted             Status = "REVERTED"
	StatusFailedAnalysis       Status = "FAILED_ANALYSIS"
	StatusFailedImplementation Status = "FAILED_IMPLEMENTATION"
)

// Evaluation is the spec §4.9 step 3 evaluation record.
type Evaluation struct {
	SyntaxOK      bool    `json:"syntax_ok"`
	SelfTestsOK   *bool   `json:"self_tests_ok,omitempty"`
	CritiqueScore float64 `json:"critique_score"`
	Notes         string  `json:"notes,omitempty"`
}

// CycleResult is one row of improvement_history.jsonl (spec §3 SIW cycle
// result, plus SPEC_FULL.md's StartedTs/EndedTs ambient addition for
// duration metrics).
type CycleResult struct {
	CycleIndex      int        `json:"cycle_index"`
	TargetPath      string     `json:"target_path"`
	ImprovementGoal string     `json:"improvement_goal"`
	Evaluation      Evaluation `json:"evaluation"`
	Diff            string     `json:"diff"`
	Status          Status     `json:"status"`
	RequiresRestart bool       `json:"requires_restart"`
	StartedTs       time.Time  `json:"started_ts"`
	EndedTs         time.Time  `json:"ended_ts"`
}

// Config parameterizes one worker invocation (spec §4.9, §6 flag set).
type Config struct {
	// Target is either a filesystem path or the literal "self".
	Target string
	// SelfPath is the source file promoted in place of Target when Target
	// is "self". Ignored otherwise.
	SelfPath string

	Context     string
	ContextFile string
	Logs        []string

	Cycles            int
	SelfTestTimeout   time.Duration
	CritiqueThreshold float64
	ByteCap           int

	// DataRoot holds fallback_versions/, improvement_history.jsonl, and the
	// temporary self-test-* directory in which a self-target candidate is
	// staged for its self-test. No per-cycle iteration directory is created:
	// candidates are held in memory until promotion.
	DataRoot string
	// BackupRotation bounds improvement_history.jsonl's backup count.
	BackupRotation int

	// SelfTest, when non-nil, is invoked instead of spawning a real
	// subprocess for the self-test step (spec §4.9 step 3). Production
	// callers (cmd/siw) set this to a function that execs the worker's own
	// binary with --self-test; tests inject a deterministic stand-in.
	SelfTest func(ctx context.Context, candidatePath string, timeout time.Duration) (bool, error)
}

// Output is the exact stdout JSON contract (spec §4.9 Output).
type Output struct {
	Status  string     `json:"status"`
	Message string     `json:"message"`
	Data    OutputData `json:"data"`
}

// OutputData is Output.Data.
type OutputData struct {
	Cycles        []CycleResult `json:"cycles"`
	OverallStatus string        `json:"overall_status"`
}

const defaultByteCap = 64 * 1024

// Worker runs the analyze/implement/evaluate/promote cycle.
type Worker struct {
	Gateway *llm.Gateway
	Log     telemetry.Logger
	now     func() time.Time
}

// NewWorker constructs a Worker. Log defaults to a no-op logger.
func NewWorker(gateway *llm.Gateway, log telemetry.Logger) *Worker {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Worker{Gateway: gateway, Log: log, now: time.Now}
}

// Run executes cfg.Cycles cycles (spec §8 invariant: "SIW cycles = 0 returns
// status SUCCESS with empty cycles array") and returns the stdout payload
// plus the process exit code (0 iff overall success per spec §4.9 Output).
func (w *Worker) Run(ctx context.Context, cfg Config) (Output, int) {
	if cfg.Cycles <= 0 {
		return Output{Status: "SUCCESS", Data: OutputData{Cycles: []CycleResult{}, OverallStatus: "SUCCESS"}}, 0
	}

	history := newHistory(cfg)
	results := make([]CycleResult, 0, cfg.Cycles)
	anyAccepted := false

	for i := 0; i < cfg.Cycles; i++ {
		result := w.runOneCycle(ctx, cfg, i)
		results = append(results, result)
		if err := history.append(result); err != nil {
			w.Log.Warn(ctx, "siw: failed to append improvement history", "error", err)
		}
		if result.Status == StatusPromoted || (result.Status == StatusEvaluatedNotPromoted && result.Evaluation.CritiqueScore >= cfg.CritiqueThreshold) {
			anyAccepted = true
		}
	}

	overall := "SUCCESS"
	exitCode := 1
	if anyAccepted {
		overall = "SUCCESS"
		exitCode = 0
	} else {
		overall = "FAILURE"
	}
	return Output{
		Status:  overall,
		Message: fmt.Sprintf("ran %d cycle(s) against %s", len(results), cfg.Target),
		Data:    OutputData{Cycles: results, OverallStatus: overall},
	}, exitCode
}

func (w *Worker) runOneCycle(ctx context.Context, cfg Config, index int) CycleResult {
	started := w.now()
	result := CycleResult{CycleIndex: index, TargetPath: cfg.Target, StartedTs: started}

	original, readPath, err := w.readTarget(cfg)
	if err != nil {
		result.Status = StatusFailedAnalysis
		result.Evaluation.Notes = err.Error()
		result.EndedTs = w.now()
		return result
	}

	goal, err := w.analyze(ctx, cfg, original)
	if err != nil {
		result.Status = StatusFailedAnalysis
		result.Evaluation.Notes = err.Error()
		result.EndedTs = w.now()
		return result
	}
	result.ImprovementGoal = goal

	candidate, err := w.implement(ctx, original, goal)
	if err != nil {
		result.Status = StatusFailedImplementation
		result.Evaluation.Notes = err.Error()
		result.EndedTs = w.now()
		return result
	}
	result.Diff = unifiedDiff(readPath, original, candidate)

	eval, accepted := w.evaluate(ctx, cfg, candidate)
	result.Evaluation = eval
	if !accepted {
		result.Status = StatusEvaluatedNotPromoted
		result.EndedTs = w.now()
		return result
	}

	if err := w.promote(cfg, readPath, candidate); err != nil {
		result.Status = StatusFailedImplementation
		result.Evaluation.Notes = err.Error()
		result.EndedTs = w.now()
		return result
	}
	result.Status = StatusPromoted
	result.RequiresRestart = cfg.Target == "self"
	result.EndedTs = w.now()
	return result
}

func (w *Worker) readTarget(cfg Config) (content string, path string, err error) {
	path = cfg.Target
	if cfg.Target == "self" {
		path = cfg.SelfPath
	}
	byteCap := cfg.ByteCap
	if byteCap <= 0 {
		byteCap = defaultByteCap
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", path, errs.Wrap(errs.KindToolExecutionError, err, "siw: read target")
	}
	if len(data) > byteCap {
		data = data[:byteCap]
	}
	return string(data), path, nil
}

// analyze asks the LLM for exactly one actionable improvement description
// (spec §4.9 step 1).
func (w *Worker) analyze(ctx context.Context, cfg Config, current string) (string, error) {
	prompt := fmt.Sprintf("Context: %s\nCurrent file:\n%s\n\nDescribe exactly one actionable improvement to this file in one or two sentences.", cfg.Context, current)
	resp, _, err := w.Gateway.Generate(ctx, llm.Request{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	goal := strings.TrimSpace(resp.Text)
	if goal == "" {
		return "", errs.New(errs.KindPlanningError, "siw: analyze returned an empty improvement description")
	}
	return goal, nil
}

// implement asks the LLM to produce the full replacement file (spec §4.9
// step 2), stripping markdown code-fence decoration the model may add.
func (w *Worker) implement(ctx context.Context, current, goal string) (string, error) {
	prompt := fmt.Sprintf("Current file:\n%s\n\nApply this improvement: %s\n\nRespond with the full replacement file contents only, no commentary.", current, goal)
	resp, _, err := w.Gateway.Generate(ctx, llm.Request{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
	})
	if err != nil {
		return "", err
	}
	return stripCodeFence(resp.Text), nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) >= 2 {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// evaluate runs the three spec §4.9 step 3 checks in order, short-circuiting
// on the first failure.
func (w *Worker) evaluate(ctx context.Context, cfg Config, candidate string) (Evaluation, bool) {
	eval := Evaluation{}

	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "candidate.go", candidate, parser.AllErrors); err != nil {
		eval.Notes = fmt.Sprintf("syntax check failed: %v", err)
		return eval, false
	}
	eval.SyntaxOK = true

	if cfg.Target == "self" && cfg.SelfTest != nil {
		tmp, err := writeTempCandidate(cfg, candidate)
		if err != nil {
			eval.Notes = fmt.Sprintf("could not stage candidate for self-test: %v", err)
			return eval, false
		}
		defer os.RemoveAll(filepath.Dir(tmp))

		ok, err := cfg.SelfTest(ctx, tmp, cfg.SelfTestTimeout)
		selfOK := ok && err == nil
		eval.SelfTestsOK = &selfOK
		if !selfOK {
			if err != nil {
				eval.Notes = fmt.Sprintf("self-test failed: %v", err)
			} else {
				eval.Notes = "self-test reported failure"
			}
			return eval, false
		}
	}

	score, err := w.critique(ctx, candidate)
	if err != nil {
		eval.Notes = fmt.Sprintf("critique call failed: %v", err)
		return eval, false
	}
	eval.CritiqueScore = score
	if score < cfg.CritiqueThreshold {
		eval.Notes = fmt.Sprintf("critique score %.2f below threshold %.2f", score, cfg.CritiqueThreshold)
		return eval, false
	}
	return eval, true
}

// critique asks the LLM to score the candidate change in [0,1] (spec §4.9
// step 3).
func (w *Worker) critique(ctx context.Context, candidate string) (float64, error) {
	prompt := fmt.Sprintf("Candidate file:\n%s\n\nRespond with only a number between 0 and 1 scoring the quality and safety of this change.", candidate)
	resp, _, err := w.Gateway.Generate(ctx, llm.Request{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
	})
	if err != nil {
		return 0, err
	}
	text := strings.TrimSpace(resp.Text)
	score, parseErr := strconv.ParseFloat(text, 64)
	if parseErr != nil {
		return 0, errs.Wrap(errs.KindPlanningError, parseErr, fmt.Sprintf("siw: critique response %q is not a number", text))
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

func writeTempCandidate(cfg Config, candidate string) (string, error) {
	dir, err := os.MkdirTemp(cfg.DataRoot, "self-test-*")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(cfg.SelfPath))
	if err := os.WriteFile(path, []byte(candidate), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// promote replaces the production file with candidate using the atomic
// write protocol (spec §4.9 step 4, §4.4). For a self target, the prior
// contents are first backed up under fallback_versions/ with a timestamped
// name.
func (w *Worker) promote(cfg Config, targetPath, candidate string) error {
	if cfg.Target == "self" {
		if err := backupSelf(cfg, targetPath, w.now()); err != nil {
			return err
		}
	}
	rotation := cfg.BackupRotation
	if rotation <= 0 {
		rotation = 10
	}
	return store.NewAtomicFile(targetPath, rotation).Write([]byte(candidate))
}

func backupSelf(cfg Config, targetPath string, now time.Time) error {
	dir := filepath.Join(cfg.DataRoot, "fallback_versions")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := os.ReadFile(targetPath)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s.%s.bak", filepath.Base(targetPath), now.UTC().Format("20060102T150405.000000000Z"))
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func unifiedDiff(path, before, after string) string {
	if before == after {
		return ""
	}
	return fmt.Sprintf("--- a/%s\n+++ b/%s\n@@ full file replaced @@\n-%s\n+%s\n",
		path, path, strings.ReplaceAll(before, "\n", "\n-"), strings.ReplaceAll(after, "\n", "\n+"))
}

type history struct {
	path string
}

func newHistory(cfg Config) *history {
	return &history{path: filepath.Join(cfg.DataRoot, "improvement_history.jsonl")}
}

// append adds one line to improvement_history.jsonl (spec §4.9 step 5). The
// history file itself is append-only and is not a candidate for the
// atomic-rename protocol, which guards whole-file replacement, not log
// growth.
func (h *history) append(result CycleResult) error {
	if h.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	line, err := json.Marshal(result)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

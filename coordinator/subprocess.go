package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/mindforge-ai/mindforge/backlog"
	"github.com/mindforge-ai/mindforge/errs"
	"github.com/mindforge-ai/mindforge/siw"
	"github.com/mindforge-ai/mindforge/telemetry"
	"github.com/mindforge-ai/mindforge/tools"
)

// SubprocessConfig parameterizes how the tactical loop spawns cmd/siw (spec
// §4.9 "invoked as a subprocess").
type SubprocessConfig struct {
	BinaryPath        string
	Cycles            int
	SelfTestTimeout   time.Duration
	CritiqueThreshold float64
	Timeout           time.Duration
}

// SubprocessInvoker implements tools.SIWInvoker by spawning cmd/siw as an
// OS-isolated child process per spec §9 ("the parent reads stdout to EOF
// then parses one JSON object, and reads exit code; stderr is captured to
// the trace log"). Grounded on the teacher's pattern of treating each
// external capability (LLM provider, tool) as a thin adapter behind an
// interface the domain layer depends on, applied here to an OS process
// instead of an HTTP/SDK client.
type SubprocessInvoker struct {
	Backlog *backlog.Store
	Config  SubprocessConfig
	Log     telemetry.Logger
}

var _ tools.SIWInvoker = (*SubprocessInvoker)(nil)

func (s *SubprocessInvoker) log() telemetry.Logger {
	if s.Log == nil {
		return telemetry.NewNoopLogger()
	}
	return s.Log
}

// Invoke spawns the SIW subprocess against the backlog item's target
// component, using the item's suggestion as the --context argument.
func (s *SubprocessInvoker) Invoke(ctx context.Context, backlogItemID string) (tools.SIWResult, error) {
	item, err := s.Backlog.Get(backlogItemID)
	if err != nil {
		return tools.SIWResult{}, err
	}

	timeout := s.Config.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cycles := s.Config.Cycles
	if cycles <= 0 {
		cycles = 1
	}
	// Flags precede the positional target: cmd/siw's flag.Parse stops at the
	// first non-flag argument.
	args := []string{
		"--context", item.Suggestion,
		"--cycles", strconv.Itoa(cycles),
		"--critique-threshold", strconv.FormatFloat(s.Config.CritiqueThreshold, 'f', -1, 64),
		"--output-json",
	}
	if s.Config.SelfTestTimeout > 0 {
		args = append(args, "--self-test-timeout", strconv.Itoa(int(s.Config.SelfTestTimeout.Seconds())))
	}
	args = append(args, item.TargetComponent)

	cmd := exec.CommandContext(runCtx, s.Config.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if stderr.Len() > 0 {
		s.log().Info(ctx, "siw: subprocess stderr", "backlog_item_id", backlogItemID, "stderr", stderr.String())
	}

	var out siw.Output
	if parseErr := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &out); parseErr != nil {
		return tools.SIWResult{}, errs.Wrap(errs.KindToolExecutionError, parseErr, "coordinator: siw subprocess produced unparseable stdout")
	}

	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return tools.SIWResult{}, errs.Wrap(errs.KindToolExecutionError, runErr, "coordinator: siw subprocess failed to run")
		}
	}

	promoted := false
	for _, cycle := range out.Data.Cycles {
		if cycle.Status == siw.StatusPromoted {
			promoted = true
			break
		}
	}

	return tools.SIWResult{
		Success:     exitCode == 0,
		Promoted:    promoted,
		Summary:     fmt.Sprintf("%s: %s", out.Status, out.Message),
		CritiqueMsg: lastNote(out.Data.Cycles),
	}, nil
}

func lastNote(cycles []siw.CycleResult) string {
	if len(cycles) == 0 {
		return ""
	}
	return cycles[len(cycles)-1].Evaluation.Notes
}

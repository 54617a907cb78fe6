// Command siw is the standalone Self-Improvement Worker subprocess (spec
// §4.9, §6). It is invoked by the coordinator's tactical loop (C9) as an
// OS-isolated child process: stdout carries exactly one JSON object and the
// process exit code communicates overall success.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/mindforge-ai/mindforge/llm"
	"github.com/mindforge-ai/mindforge/llm/providers/anthropic"
	"github.com/mindforge-ai/mindforge/llm/providers/bedrock"
	"github.com/mindforge-ai/mindforge/llm/providers/openai"
	"github.com/mindforge-ai/mindforge/siw"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("siw", flag.ContinueOnError)
	var (
		context_     = fs.String("context", "", "free-text context describing what to improve")
		contextFile  = fs.String("context-file", "", "path to a file whose contents are appended to --context")
		logsFlag     = fs.String("logs", "", "comma-separated log file paths to include as context")
		llmProvider  = fs.String("llm-provider", "anthropic", "llm provider id: anthropic, openai, or bedrock")
		llmModel     = fs.String("llm-model", "", "llm model id; empty uses the provider default")
		cycles       = fs.Int("cycles", 1, "number of improvement cycles to run")
		selfTestSecs = fs.Int("self-test-timeout", 30, "timeout in seconds for the self-test subprocess")
		threshold    = fs.Float64("critique-threshold", 0.6, "minimum critique score in [0,1] to accept a candidate")
		outputJSON   = fs.Bool("output-json", true, "emit the stdout JSON contract (always true; kept for cmdline compatibility)")
		selfTest     = fs.Bool("self-test", false, "internal: run as a self-test harness and emit a status object instead of a cycle")
	)
	_ = outputJSON
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "siw: a target (\"self\" or a path) is required")
		return 2
	}
	target := fs.Arg(0)

	if *selfTest {
		return runSelfTestHarness(fs.Arg(0))
	}

	contextText := *context_
	if *contextFile != "" {
		data, err := os.ReadFile(*contextFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "siw: read context file: %v\n", err)
			return 2
		}
		contextText = strings.TrimSpace(contextText + "\n" + string(data))
	}
	if *logsFlag != "" {
		for _, p := range strings.Split(*logsFlag, ",") {
			data, err := os.ReadFile(strings.TrimSpace(p))
			if err != nil {
				continue
			}
			contextText += "\n" + string(data)
		}
	}

	provider, err := buildProvider(*llmProvider, *llmModel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "siw: %v\n", err)
		return 2
	}
	gateway := llm.New(llm.Options{Provider: provider, RatePerSecond: 1, RateBurst: 2})

	selfExe, _ := os.Executable()
	cfg := siw.Config{
		Target:            target,
		SelfPath:          selfExe,
		Context:           contextText,
		Cycles:            *cycles,
		SelfTestTimeout:   time.Duration(*selfTestSecs) * time.Second,
		CritiqueThreshold: *threshold,
		DataRoot:          dataRoot(),
		SelfTest:          spawnSelfTest,
	}

	worker := siw.NewWorker(gateway, nil)
	out, code := worker.Run(context.Background(), cfg)
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(out)
	return code
}

func dataRoot() string {
	if root := os.Getenv("MINDFORGE_SIW_DATA_ROOT"); root != "" {
		return root
	}
	return "data/siw"
}

func buildProvider(id, model string) (llm.Provider, error) {
	switch id {
	case "anthropic":
		return anthropic.NewFromAPIKey(os.Getenv("ANTHROPIC_API_KEY"), defaultModel(model, "claude-3-5-sonnet-latest"))
	case "openai":
		return openai.NewFromAPIKey(os.Getenv("OPENAI_API_KEY"), defaultModel(model, "gpt-4o"))
	case "bedrock":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, fmt.Errorf("load aws config for bedrock provider: %w", err)
		}
		return bedrock.New(bedrockruntime.NewFromConfig(awsCfg), bedrock.Options{DefaultModel: defaultModel(model, "anthropic.claude-3-5-sonnet-20241022-v2:0")})
	default:
		return nil, fmt.Errorf("unknown --llm-provider %q", id)
	}
}

func defaultModel(model, fallback string) string {
	if model == "" {
		return fallback
	}
	return model
}

// spawnSelfTest execs the worker's own binary against candidatePath with
// --self-test, honoring the spec §4.9 step 3 self-test contract: the child
// must emit a JSON status object, and any failure (non-zero exit, bad JSON,
// status != "ok") rejects the candidate.
func spawnSelfTest(ctx context.Context, candidatePath string, timeout time.Duration) (bool, error) {
	self, err := os.Executable()
	if err != nil {
		return false, err
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, self, "--self-test", candidatePath)
	outBytes, err := cmd.Output()
	if err != nil {
		return false, err
	}
	var status struct {
		Status string `json:"status"`
	}
	if jsonErr := json.Unmarshal(outBytes, &status); jsonErr != nil {
		return false, jsonErr
	}
	return status.Status == "ok", nil
}

// runSelfTestHarness implements the internal --self-test mode (spec §4.9
// step 3: "spawn the candidate agent with a special --self-test flag ... it
// must emit a JSON status object"). It parses the candidate source file and,
// if the go toolchain is available on PATH, additionally runs `go vet` on it
// so a candidate that parses but fails static analysis is still rejected.
func runSelfTestHarness(candidatePath string) int {
	status := "ok"
	detail := ""

	if candidatePath == "" {
		status, detail = "error", "no candidate path given"
	} else if _, err := parser.ParseFile(token.NewFileSet(), candidatePath, nil, parser.AllErrors); err != nil {
		status, detail = "error", fmt.Sprintf("parse failed: %v", err)
	} else if govet, err := exec.LookPath("go"); err == nil {
		out, vetErr := exec.Command(govet, "vet", candidatePath).CombinedOutput()
		if vetErr != nil {
			status, detail = "error", fmt.Sprintf("go vet failed: %s", strings.TrimSpace(string(out)))
		}
	}

	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(map[string]string{"status": status, "detail": detail})
	if status != "ok" {
		return 1
	}
	return 0
}

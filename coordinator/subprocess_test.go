package coordinator

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindforge-ai/mindforge/backlog"
)

// writeFakeSIWBinary writes a tiny shell script standing in for cmd/siw,
// run through /bin/sh (the test is skipped on Windows).
func writeFakeSIWBinary(t *testing.T, dir, stdout string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake subprocess script requires a POSIX shell")
	}
	path := filepath.Join(dir, "fake-siw.sh")
	script := "#!/bin/sh\ncat <<'EOF'\n" + stdout + "\nEOF\nexit " + strconv.Itoa(exitCode) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestSubprocessInvokerParsesPromotedOutput(t *testing.T) {
	dir := t.TempDir()
	store := backlog.New(filepath.Join(dir, "backlog.json"), 2)
	id, err := store.Enqueue(backlog.Item{TargetComponent: "core.tool_x", Suggestion: "improve it", Priority: 5})
	require.NoError(t, err)

	stdout := `{"status":"SUCCESS","message":"ran 1 cycle(s)","data":{"cycles":[{"cycle_index":0,"status":"PROMOTED"}],"overall_status":"SUCCESS"}}`
	bin := writeFakeSIWBinary(t, dir, stdout, 0)

	inv := &SubprocessInvoker{Backlog: store, Config: SubprocessConfig{BinaryPath: bin, Cycles: 1, CritiqueThreshold: 0.5}}
	result, err := inv.Invoke(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.True(t, result.Promoted)
}

func TestSubprocessInvokerParsesFailureExitCode(t *testing.T) {
	dir := t.TempDir()
	store := backlog.New(filepath.Join(dir, "backlog.json"), 2)
	id, err := store.Enqueue(backlog.Item{TargetComponent: "core.tool_y", Suggestion: "improve it", Priority: 1})
	require.NoError(t, err)

	stdout := `{"status":"FAILURE","message":"no cycle accepted","data":{"cycles":[{"cycle_index":0,"status":"EVALUATED_NOT_PROMOTED","evaluation":{"critique_score":0.2,"notes":"below threshold"}}],"overall_status":"FAILURE"}}`
	bin := writeFakeSIWBinary(t, dir, stdout, 1)

	inv := &SubprocessInvoker{Backlog: store, Config: SubprocessConfig{BinaryPath: bin, Cycles: 1, CritiqueThreshold: 0.8}}
	result, err := inv.Invoke(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.False(t, result.Promoted)
	assert.Contains(t, result.CritiqueMsg, "below threshold")
}

package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandsRunDirectSuccess(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHands(HandsConfig{WorkspaceRoot: dir, AllowedCommands: []string{"echo"}})
	require.NoError(t, err)

	result, err := h.RunDirect(context.Background(), DirectArgs{Command: "echo", Args: []string{"hello"}})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Stdout, "hello")
}

func TestHandsRunDirectRejectsDisallowedCommand(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHands(HandsConfig{WorkspaceRoot: dir, AllowedCommands: []string{"echo"}})
	require.NoError(t, err)

	_, err = h.RunDirect(context.Background(), DirectArgs{Command: "rm", Args: []string{"-rf", "/"}})
	require.Error(t, err)
}

func TestHandsRunDirectRejectsPathEscape(t *testing.T) {
	dir := t.TempDir()
	h, err := NewHands(HandsConfig{WorkspaceRoot: dir, AllowedCommands: []string{"cat"}})
	require.NoError(t, err)

	_, err = h.RunDirect(context.Background(), DirectArgs{Command: "cat", Args: []string{"../../../etc/passwd"}})
	require.Error(t, err)
}

func TestHandsRunDirectCanonicalizesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("contents"), 0o644))

	h, err := NewHands(HandsConfig{WorkspaceRoot: dir, AllowedCommands: []string{"cat"}})
	require.NoError(t, err)

	result, err := h.RunDirect(context.Background(), DirectArgs{Command: "cat", Args: []string{"file.txt"}})
	require.NoError(t, err)
	assert.Equal(t, "contents", result.Stdout)
}

func TestNewHandsRejectsEmptyAllowlist(t *testing.T) {
	_, err := NewHands(HandsConfig{WorkspaceRoot: t.TempDir()})
	require.Error(t, err)
}

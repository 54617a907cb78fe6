package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindforge-ai/mindforge/store"
)

func TestAtomicFileWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := store.NewAtomicFile(filepath.Join(dir, "backlog.json"), 10)

	require.NoError(t, f.Write([]byte(`{"a":1}`)))
	data, err := f.Read()
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(data))
}

func TestAtomicFileRecoversFromChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backlog.json")
	f := store.NewAtomicFile(path, 10)

	require.NoError(t, f.Write([]byte(`{"v":1}`)))
	require.NoError(t, f.Write([]byte(`{"v":2}`)))

	// Corrupt the live file in place without updating its checksum sidecar.
	require.NoError(t, os.WriteFile(path, []byte(`{"v":"corrupted"}`), 0o644))

	data, err := f.Read()
	require.NoError(t, err)
	require.JSONEq(t, `{"v":1}`, string(data), "recovery must fall back to the latest valid backup")
}

func TestAtomicFileRotatesBackups(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backlog.json")
	f := store.NewAtomicFile(path, 2)

	for i := 0; i < 5; i++ {
		require.NoError(t, f.Write([]byte(`{"n":`+string(rune('0'+i))+`}`)))
	}

	entries, err := os.ReadDir(filepath.Join(dir, "backups", "backlog.json"))
	require.NoError(t, err)
	require.LessOrEqual(t, len(entries), 2)
}

func TestJSONFileLoadMissingReturnsZeroValue(t *testing.T) {
	dir := t.TempDir()
	type doc struct {
		Items []string `json:"items"`
	}
	jf := store.NewJSONFile[doc](filepath.Join(dir, "missing.json"), 10)

	v, err := jf.Load()
	require.NoError(t, err)
	require.Nil(t, v.Items)
}

func TestJSONFileSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	type doc struct {
		Items []string `json:"items"`
	}
	jf := store.NewJSONFile[doc](filepath.Join(dir, "doc.json"), 10)

	require.NoError(t, jf.Save(doc{Items: []string{"a", "b"}}))
	v, err := jf.Load()
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, v.Items)
}

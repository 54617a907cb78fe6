package beliefs_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mindforge-ai/mindforge/beliefs"
)

func TestAddGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := beliefs.New(filepath.Join(dir, "beliefs"), 10, nil)

	require.NoError(t, s.Add(ctx, "environment.cpu_load", json.RawMessage(`0.42`), 0.8, "monitor", false))

	b, ok, err := s.Get(ctx, "environment.cpu_load")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0.8, b.Confidence)
	require.Equal(t, "monitor", b.Source)
}

func TestAddRejectsLowerConfidenceWhenRequired(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := beliefs.New(filepath.Join(dir, "beliefs"), 10, nil)

	require.NoError(t, s.Add(ctx, "environment.disk_free", json.RawMessage(`100`), 0.9, "monitor", false))
	require.NoError(t, s.Add(ctx, "environment.disk_free", json.RawMessage(`50`), 0.3, "guess", true))

	b, ok, err := s.Get(ctx, "environment.disk_free")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0.9, b.Confidence, "lower-confidence update must be rejected, store unchanged")
	require.JSONEq(t, "100", string(b.Value))
}

func TestQueryByPrefix(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := beliefs.New(filepath.Join(dir, "beliefs"), 10, nil)

	require.NoError(t, s.Add(ctx, "environment.cpu_load", json.RawMessage(`1`), 0.5, "a", false))
	require.NoError(t, s.Add(ctx, "environment.disk_free", json.RawMessage(`2`), 0.5, "a", false))
	require.NoError(t, s.Add(ctx, "other.value", json.RawMessage(`3`), 0.5, "a", false))

	got, err := s.Query(ctx, "environment.")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := beliefs.New(filepath.Join(dir, "beliefs"), 10, nil)

	require.NoError(t, s.Add(ctx, "ns.key", json.RawMessage(`1`), 0.5, "a", false))
	require.NoError(t, s.Remove(ctx, "ns.key"))

	_, ok, err := s.Get(ctx, "ns.key")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "beliefs")

	s1 := beliefs.New(path, 10, nil)
	require.NoError(t, s1.Add(ctx, "ns.key", json.RawMessage(`"v"`), 0.5, "a", false))

	s2 := beliefs.New(path, 10, nil)
	b, ok, err := s2.Get(ctx, "ns.key")
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `"v"`, string(b.Value))
}

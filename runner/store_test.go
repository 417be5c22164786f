package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/test-agent/types"
)

func TestJSONStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")
	store := NewJSONStore(dir)

	report := &types.ExecutionReport{
		RunID:    "run-123",
		Metadata: types.RunMetadata{RepoID: "repo-1", Branch: "main"},
		Status:   types.TestStatusPass,
		Stats:    types.ResultStats{Total: 2, Passed: 2},
	}

	path, err := store.Store(report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "execution-run-123.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded types.ExecutionReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Equal(t, report.Metadata, decoded.Metadata)
	assert.Equal(t, report.Stats, decoded.Stats)
}

func TestJSONStoreCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "results")
	store := NewJSONStore(dir)

	_, err := store.Store(&types.ExecutionReport{RunID: "run-1"})
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

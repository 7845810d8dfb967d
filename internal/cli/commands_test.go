package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lcagraph/internal/config"
	"github.com/roach88/lcagraph/internal/graph"
	"github.com/roach88/lcagraph/internal/store"
)

// workspace is an isolated cache directory with its own SQLite store.
type workspace struct {
	cache string
	db    string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	for _, key := range []string{
		config.EnvCache, config.EnvLegacyCache, config.EnvDatabase, config.EnvPostgresDSN,
		config.EnvBundleCacheSize, config.EnvS3Endpoint, config.EnvS3Bucket,
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	return workspace{
		cache: filepath.Join(dir, "cache"),
		db:    filepath.Join(dir, "graph.db"),
	}
}

// run executes the CLI against the workspace and returns stdout and stderr.
func (w workspace) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--cache", w.cache, "--db", w.db}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (w workspace) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	stdout, stderr, err := w.run(t, args...)
	require.NoError(t, err, "stdout: %s\nstderr: %s", stdout, stderr)
	return stdout
}

// imported returns a workspace holding the testdata graph.
func imported(t *testing.T) workspace {
	t.Helper()
	w := newWorkspace(t)
	w.mustRun(t, "init")
	w.mustRun(t, "import", "testdata/graphs")
	return w
}

func decodeData(t *testing.T, stdout string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestInit_CreatesCacheAndStore(t *testing.T) {
	w := newWorkspace(t)

	stdout := w.mustRun(t, "init")
	assert.Contains(t, stdout, "Initialized cache at "+w.cache)

	info, err := os.Stat(w.cache)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	_, err = os.Stat(w.db)
	assert.NoError(t, err)
}

func TestInit_SeedIsIdempotent(t *testing.T) {
	w := newWorkspace(t)

	var first, second InitResult
	decodeData(t, w.mustRun(t, "--format", "json", "init", "--seed"), &first)
	decodeData(t, w.mustRun(t, "--format", "json", "init", "--seed"), &second)

	assert.True(t, first.Seeded)
	assert.Equal(t, 2, first.Subgraphs)
	assert.Equal(t, first.Subgraphs, second.Subgraphs)
	assert.Equal(t, w.db, first.Store)
}

func TestCommands_RequireInit(t *testing.T) {
	w := newWorkspace(t)

	_, _, err := w.run(t, "list")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestImport(t *testing.T) {
	w := newWorkspace(t)
	w.mustRun(t, "init")

	var result ImportResult
	decodeData(t, w.mustRun(t, "--format", "json", "import", "testdata/graphs"), &result)

	assert.Equal(t, 2, result.Files)
	assert.Equal(t, map[string]int64{"US EEIO 1.1": 1, "Climate Change": 2}, result.Subgraphs)
	assert.Equal(t, 4, result.Nodes)
	assert.Equal(t, 4, result.Edges)
}

func TestImport_InvalidDefinitionsWriteNothing(t *testing.T) {
	w := newWorkspace(t)
	w.mustRun(t, "init")

	_, _, err := w.run(t, "import", "../loader/testdata/badref")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var entries []ListEntry
	decodeData(t, w.mustRun(t, "--format", "json", "list"), &entries)
	assert.Empty(t, entries)
}

func TestImport_MissingDirectory(t *testing.T) {
	w := newWorkspace(t)
	w.mustRun(t, "init")

	_, _, err := w.run(t, "import", "testdata/missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestList(t *testing.T) {
	w := imported(t)

	var entries []ListEntry
	decodeData(t, w.mustRun(t, "--format", "json", "list"), &entries)
	require.Len(t, entries, 2)

	db := entries[0]
	assert.Equal(t, "US EEIO 1.1", db.Name)
	assert.Equal(t, "database", db.Kind)
	assert.Equal(t, 3, db.Nodes)
	assert.Equal(t, 3, db.Edges)
	assert.Equal(t, filepath.Join(w.cache, "us_eeio_1.1.zip"), db.Bundle)
	assert.False(t, db.Processed)

	ic := entries[1]
	assert.Equal(t, "Climate Change", ic.Name)
	assert.Equal(t, 1, ic.Nodes)
	assert.Equal(t, 1, ic.Edges)

	w.mustRun(t, "process", "1")
	decodeData(t, w.mustRun(t, "--format", "json", "list"), &entries)
	assert.True(t, entries[0].Processed)
	assert.False(t, entries[1].Processed)
}

func TestProcess_ByNameAndID(t *testing.T) {
	w := imported(t)

	stdout := w.mustRun(t, "process", "US EEIO 1.1", "2")
	assert.Contains(t, stdout, "✓ US EEIO 1.1 (database)")
	assert.Contains(t, stdout, "✓ Climate Change (impact category)")

	for _, name := range []string{"us_eeio_1.1.zip", "climate_change.zip"} {
		_, err := os.Stat(filepath.Join(w.cache, name))
		assert.NoError(t, err, name)
	}
}

func TestProcess_All(t *testing.T) {
	w := imported(t)

	var results []struct {
		Path      string `json:"path"`
		Resources []struct {
			Name   string `json:"name"`
			Matrix string `json:"matrix"`
			Length int    `json:"length"`
		} `json:"resources"`
	}
	decodeData(t, w.mustRun(t, "--format", "json", "process", "--all", "--concurrency", "2"), &results)
	require.Len(t, results, 2)

	require.Len(t, results[0].Resources, 2)
	assert.Equal(t, "biosphere_matrix", results[0].Resources[0].Matrix)
	assert.Equal(t, 1, results[0].Resources[0].Length)
	assert.Equal(t, "technosphere_matrix", results[0].Resources[1].Matrix)
	assert.Equal(t, 2, results[0].Resources[1].Length)

	require.Len(t, results[1].Resources, 1)
	assert.Equal(t, "climate_change characterization", results[1].Resources[0].Name)
	assert.Equal(t, 1, results[1].Resources[0].Length)
}

func TestProcess_ArgumentErrors(t *testing.T) {
	w := imported(t)

	tests := []struct {
		name string
		args []string
	}{
		{"nothing named", []string{"process"}},
		{"names with all", []string{"process", "--all", "1"}},
		{"zero concurrency", []string{"process", "--all", "--concurrency", "0"}},
		{"unknown name", []string{"process", "No Such Subgraph"}},
		{"unknown id", []string{"process", "99"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := w.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestProcess_UnknownSubgraphJSON(t *testing.T) {
	w := imported(t)

	stdout, _, err := w.run(t, "--format", "json", "process", "No Such Subgraph")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestProcess_PublishRequiresBucket(t *testing.T) {
	w := imported(t)

	_, _, err := w.run(t, "process", "--all", "--publish")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestInspect_BundleFileGolden(t *testing.T) {
	w := imported(t)
	w.mustRun(t, "process", "1")

	stdout := w.mustRun(t, "inspect", filepath.Join(w.cache, "us_eeio_1.1.zip"), "--entries", "10")

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "inspect_database", []byte(stdout))
}

func TestInspect_BySubgraphName(t *testing.T) {
	w := imported(t)
	w.mustRun(t, "process", "Climate Change")

	var result InspectResult
	decodeData(t, w.mustRun(t, "--format", "json", "inspect", "Climate Change", "--entries", "1"), &result)

	assert.Equal(t, "climate_change", result.Manifest.Name)
	require.Len(t, result.Resources, 1)
	r := result.Resources[0]
	assert.Equal(t, "characterization_matrix", r.Matrix)
	require.NotNil(t, r.GlobalIndex)
	assert.Equal(t, 0, *r.GlobalIndex)
	assert.Equal(t, []InspectEntry{{Row: 30, Col: 0, Value: 1.0}}, r.Entries)
}

func TestInspect_Unprocessed(t *testing.T) {
	w := imported(t)

	_, _, err := w.run(t, "inspect", "US EEIO 1.1")
	require.Error(t, err)
	assert.NotEqual(t, ExitSuccess, GetExitCode(err))
}

func TestResolveSubgraph(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	_, err := st.CreateSubgraph(ctx, graph.Subgraph{ID: 1, Name: "US EEIO 1.1", Kind: graph.KindDatabase})
	require.NoError(t, err)
	_, err = st.CreateSubgraph(ctx, graph.Subgraph{ID: 2, Name: "2024", Kind: graph.KindImpactCategory})
	require.NoError(t, err)
	_, err = st.CreateSubgraph(ctx, graph.Subgraph{ID: 3, Name: "1", Kind: graph.KindImpactCategory})
	require.NoError(t, err)

	tests := []struct {
		arg    string
		wantID int64
	}{
		{"US EEIO 1.1", 1},
		{"2", 2},
		{"2024", 2},
		{"1", 1}, // ids win over names
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			sg, err := resolveSubgraph(ctx, st, tt.arg)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, sg.ID)
		})
	}

	_, err = resolveSubgraph(ctx, st, "99")
	require.Error(t, err)
	assert.True(t, graph.IsNotFound(err))
}

func TestRemote_RequiresBucket(t *testing.T) {
	w := imported(t)
	w.mustRun(t, "process", "1")

	for _, args := range [][]string{
		{"list", "--remote"},
		{"inspect", "US EEIO 1.1", "--remote"},
	} {
		_, _, err := w.run(t, args...)
		require.Error(t, err, "%v", args)
		assert.Equal(t, ExitCommandError, GetExitCode(err), "%v", args)
	}
}

package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceResponse struct {
	Status string      `json:"status"`
	Data   TraceResult `json:"data"`
	Error  *CLIError   `json:"error"`
}

// journaledRun lowers model into a fresh database and returns its path.
// The run is journaled as run-1.
func journaledRun(t *testing.T, model string, maxSteps int) string {
	t.Helper()
	cfgPath, _ := writeConfig(t, "io_parallel")
	opts := lowerOptions("json", cfgPath)
	opts.Database = filepath.Join(t.TempDir(), "runs.db")
	opts.MaxSteps = maxSteps
	cmd, out, _ := testCommand()

	_ = runLower(opts, model, cmd)
	var resp lowerResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	if resp.Status == "ok" {
		require.Equal(t, "run-1", resp.Data.RunID)
	}
	return opts.Database
}

func TestTraceListRuns(t *testing.T) {
	db := journaledRun(t, mlpModel, 1000)
	cmd, out, _ := testCommand()

	err := runTrace(&TraceOptions{RootOptions: &RootOptions{Format: "text"}, Database: db}, cmd)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "run-1")
	assert.Contains(t, output, "oneapi:ip")
	assert.Contains(t, output, "succeeded")
}

func TestTraceListRunsJSON(t *testing.T) {
	db := journaledRun(t, mlpModel, 1000)
	cmd, out, _ := testCommand()

	err := runTrace(&TraceOptions{RootOptions: &RootOptions{Format: "json"}, Database: db}, cmd)
	require.NoError(t, err)

	var resp struct {
		Status string    `json:"status"`
		Data   []RunInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "run-1", resp.Data[0].ID)
	assert.Equal(t, "mlp", resp.Data[0].Model)
	assert.Equal(t, "oneAPI", resp.Data[0].Backend)
	assert.NotEmpty(t, resp.Data[0].Digest)
}

func TestTraceRunJSON(t *testing.T) {
	db := journaledRun(t, mlpModel, 1000)
	cmd, out, _ := testCommand()

	err := runTrace(&TraceOptions{RootOptions: &RootOptions{Format: "json"}, Database: db, RunID: "run-1"}, cmd)
	require.NoError(t, err)

	var resp traceResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "succeeded", resp.Data.Run.Status)
	require.NotEmpty(t, resp.Data.Timeline)
	require.NotEmpty(t, resp.Data.Passes)
	require.NotEmpty(t, resp.Data.Layers)

	for i, ev := range resp.Data.Timeline {
		assert.Equal(t, int64(i+1), ev.Seq)
	}

	events := 0
	for _, ps := range resp.Data.Passes {
		events += ps.Events
	}
	assert.Equal(t, len(resp.Data.Timeline), events)

	names := make([]string, 0, len(resp.Data.Layers))
	for _, l := range resp.Data.Layers {
		names = append(names, l.Name)
		assert.NotEmpty(t, l.Digest)
	}
	assert.Contains(t, names, "fc1")
}

func TestTraceRunPassFilter(t *testing.T) {
	db := journaledRun(t, mlpModel, 1000)
	cmd, out, _ := testCommand()

	opts := &TraceOptions{RootOptions: &RootOptions{Format: "json"}, Database: db, RunID: "run-1", Pass: "oneapi:init_dense"}
	require.NoError(t, runTrace(opts, cmd))

	var resp traceResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.Len(t, resp.Data.Passes, 1)
	assert.Equal(t, "oneapi:init_dense", resp.Data.Passes[0].Pass)
	assert.Equal(t, 1, resp.Data.Passes[0].Events)
	require.Len(t, resp.Data.Timeline, 1)
	assert.Equal(t, "fc1", resp.Data.Timeline[0].Layer)
}

func TestTraceRunTextVerbose(t *testing.T) {
	db := journaledRun(t, mlpModel, 1000)
	cmd, out, _ := testCommand()

	opts := &TraceOptions{RootOptions: &RootOptions{Format: "text", Verbose: true}, Database: db, RunID: "run-1"}
	require.NoError(t, runTrace(opts, cmd))

	output := out.String()
	assert.Contains(t, output, "Trace for Run: run-1")
	assert.Contains(t, output, "=== Passes ===")
	assert.Contains(t, output, "=== Timeline ===")
	assert.Contains(t, output, "[1]")
	assert.Contains(t, output, "=== Layers ===")
	assert.Contains(t, output, "oneapi:init_base_layer")
}

func TestTraceFailedRun(t *testing.T) {
	db := journaledRun(t, linearModel, 0)
	cmd, out, _ := testCommand()

	opts := &TraceOptions{RootOptions: &RootOptions{Format: "text"}, Database: db, RunID: "run-1"}
	require.NoError(t, runTrace(opts, cmd))

	output := out.String()
	assert.Contains(t, output, "Status: failed")
	assert.Contains(t, output, "Error: ")
	assert.Contains(t, output, "(no snapshot)")
}

func TestTraceUnknownRun(t *testing.T) {
	db := journaledRun(t, mlpModel, 1000)
	cmd, out, _ := testCommand()

	err := runTrace(&TraceOptions{RootOptions: &RootOptions{Format: "json"}, Database: db, RunID: "nope"}, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp traceResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestTraceMissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")
	cmd, _, _ := testCommand()

	err := runTrace(&TraceOptions{RootOptions: &RootOptions{Format: "text"}, Database: db}, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.NoFileExists(t, db)
}

func TestTraceRequiresDB(t *testing.T) {
	cmd := NewTraceCommand(&RootOptions{Format: "text"})
	cmd.SetArgs([]string{})
	cmd.SetOut(&nopWriter{})
	cmd.SetErr(&nopWriter{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "0123456789abcdef", truncateID("0123456789abcdef"))
	assert.Equal(t, "01234567...89abcdef", truncateID("0123456789abcdef0123456789abcdef"))
}

package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileText(t *testing.T) {
	cfgPath, outDir := writeConfig(t, "io_parallel")
	runner := &fakeRunner{}
	opts := modelOptions("text", cfgPath, runner)
	cmd, out, _ := testCommand()

	err := runCompile(&opts, mlpModel, cmd)
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"cmake", ".."}, {"make", "lib"}}, runner.calls)
	output := out.String()
	assert.Contains(t, output, "✓ Compiled mlp (stamp 5eed5eed)")
	assert.Contains(t, output, "Library: "+filepath.Join(outDir, "build", "libproj-5eed5eed.so"))
}

func TestCompileJSON(t *testing.T) {
	cfgPath, outDir := writeConfig(t, "io_parallel")
	opts := modelOptions("json", cfgPath, &fakeRunner{})
	opts.Database = filepath.Join(t.TempDir(), "runs.db")
	cmd, out, _ := testCommand()

	err := runCompile(&opts, mlpModel, cmd)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CompileResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, CompileResult{
		Model:   "mlp",
		Stamp:   testStamp,
		Library: filepath.Join(outDir, "build", "libproj-5eed5eed.so"),
		RunID:   "run-1",
	}, resp.Data)
}

func TestCompileFailureJournaled(t *testing.T) {
	cfgPath, _ := writeConfig(t, "io_parallel")
	opts := modelOptions("text", cfgPath, &fakeRunner{fail: "make"})
	opts.Database = filepath.Join(t.TempDir(), "runs.db")
	cmd, _, _ := testCommand()

	err := runCompile(&opts, mlpModel, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	traceCmd, traceOut, _ := testCommand()
	require.NoError(t, runTrace(&TraceOptions{RootOptions: &RootOptions{Format: "json"}, Database: opts.Database, RunID: "run-1"}, traceCmd))
	var trace traceResponse
	require.NoError(t, json.Unmarshal(traceOut.Bytes(), &trace))
	assert.Equal(t, "failed", trace.Data.Run.Status)
	assert.Contains(t, trace.Data.Run.Error, "build step failed")
}

func TestCompileMissingModel(t *testing.T) {
	opts := modelOptions("text", "", &fakeRunner{})
	cmd, out, _ := testCommand()

	err := runCompile(&opts, "testdata/models/nope.cue", cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out.String(), "Error ["+ErrCodeNotFound+"]")
}

package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fpgalower/internal/toolchain"
)

type buildResponse struct {
	Status string      `json:"status"`
	Data   BuildResult `json:"data"`
	Error  *CLIError   `json:"error"`
}

func buildOptions(format, configPath string, runner *fakeRunner, buildType string, run bool) *BuildOptions {
	return &BuildOptions{
		ModelOptions: modelOptions(format, configPath, runner),
		BuildType:    buildType,
		Run:          run,
	}
}

// reportingRunner writes a resource summary when the report target is
// built, like the oneAPI report build does.
func reportingRunner(t *testing.T, outDir string) *fakeRunner {
	return &fakeRunner{onRun: func(_, name string, args []string) {
		if name != "make" || len(args) != 1 || args[0] != toolchain.BuildReport {
			return
		}
		path := toolchain.ReportPath(outDir, "proj")
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		summary := `{"estimated_resources": {"alm": 1200, "dsp": 8}, "fmax": 480}`
		require.NoError(t, os.WriteFile(path, []byte(summary), 0o644))
	}}
}

func TestBuildEmulation(t *testing.T) {
	cfgPath, outDir := writeConfig(t, "io_parallel")
	runner := &fakeRunner{}
	cmd, out, _ := testCommand()

	err := runBuild(buildOptions("text", cfgPath, runner, toolchain.BuildFPGAEmu, true), mlpModel, cmd)
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"cmake", ".."},
		{"make", "fpga_emu"},
		{"./proj.fpga_emu"},
	}, runner.calls)

	output := out.String()
	assert.Contains(t, output, "✓ Built and ran mlp (fpga_emu, stamp 5eed5eed)")
	assert.Contains(t, output, "Build directory: "+filepath.Join(outDir, "build"))
	assert.Contains(t, output, "No report produced.")
	assert.DirExists(t, filepath.Join(outDir, "build"))
	assert.FileExists(t, filepath.Join(outDir, "proj.ir.json"))
}

func TestBuildReport(t *testing.T) {
	cfgPath, outDir := writeConfig(t, "io_parallel")
	runner := reportingRunner(t, outDir)
	cmd, out, _ := testCommand()

	err := runBuild(buildOptions("json", cfgPath, runner, toolchain.BuildReport, false), mlpModel, cmd)
	require.NoError(t, err)

	var resp buildResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, toolchain.ReportPath(outDir, "proj"), resp.Data.Report)
	assert.Equal(t, []toolchain.Entry{
		{Key: "estimated_resources.alm", Value: "1200"},
		{Key: "estimated_resources.dsp", Value: "8"},
		{Key: "fmax", Value: "480"},
	}, resp.Data.Entries)
}

func TestBuildReportText(t *testing.T) {
	cfgPath, outDir := writeConfig(t, "io_parallel")
	runner := reportingRunner(t, outDir)
	cmd, out, _ := testCommand()

	err := runBuild(buildOptions("text", cfgPath, runner, toolchain.BuildReport, false), mlpModel, cmd)
	require.NoError(t, err)

	output := out.String()
	assert.Contains(t, output, "✓ Built mlp (report, stamp 5eed5eed)")
	assert.Contains(t, output, "estimated_resources.alm")
	assert.Contains(t, output, "1200")
}

func TestBuildInvalidRequest(t *testing.T) {
	cfgPath, outDir := writeConfig(t, "io_parallel")
	runner := &fakeRunner{}
	cmd, out, _ := testCommand()

	err := runBuild(buildOptions("json", cfgPath, runner, toolchain.BuildReport, true), mlpModel, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Empty(t, runner.calls)
	assert.NoDirExists(t, outDir)

	var resp buildResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidBuild, resp.Error.Code)
}

func TestBuildStepFails(t *testing.T) {
	cfgPath, _ := writeConfig(t, "io_parallel")
	runner := &fakeRunner{fail: "make"}
	cmd, out, errOut := testCommand()

	err := runBuild(buildOptions("text", cfgPath, runner, toolchain.BuildFPGAEmu, false), mlpModel, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Len(t, runner.calls, 2)

	assert.Contains(t, out.String(), "Error ["+ErrCodeToolchain+"]")
	assert.Contains(t, errOut.String(), "--- build output ---")
	assert.Contains(t, errOut.String(), "error: boom\n")
}

func TestBuildStepFailsJSON(t *testing.T) {
	cfgPath, _ := writeConfig(t, "io_parallel")
	runner := &fakeRunner{fail: "cmake"}
	cmd, out, errOut := testCommand()

	err := runBuild(buildOptions("json", cfgPath, runner, toolchain.BuildFPGAEmu, false), mlpModel, cmd)
	require.Error(t, err)
	assert.NotContains(t, errOut.String(), "--- configure output ---")

	var resp struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, ErrCodeToolchain, resp.Error.Code)
	assert.Equal(t, "configure", resp.Error.Details["step"])
	assert.Equal(t, "error: boom", resp.Error.Details["output"])
}

func TestBuildMissingCompiler(t *testing.T) {
	cfgPath, _ := writeConfig(t, "io_parallel")
	runner := &fakeRunner{missing: true}
	cmd, out, _ := testCommand()

	err := runBuild(buildOptions("text", cfgPath, runner, toolchain.BuildFPGAEmu, false), mlpModel, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Empty(t, runner.calls)
	assert.Contains(t, out.String(), "icpx")
}

func TestBuildJournaled(t *testing.T) {
	cfgPath, _ := writeConfig(t, "io_parallel")
	opts := buildOptions("json", cfgPath, &fakeRunner{}, toolchain.BuildFPGAEmu, false)
	opts.Database = filepath.Join(t.TempDir(), "runs.db")
	cmd, out, _ := testCommand()

	require.NoError(t, runBuild(opts, mlpModel, cmd))
	var resp buildResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.Data.RunID)

	traceCmd, traceOut, _ := testCommand()
	require.NoError(t, runTrace(&TraceOptions{RootOptions: &RootOptions{Format: "json"}, Database: opts.Database, RunID: "run-1"}, traceCmd))
	var trace traceResponse
	require.NoError(t, json.Unmarshal(traceOut.Bytes(), &trace))
	assert.Equal(t, "oneapi:write", trace.Data.Run.Flow)
	assert.Equal(t, testStamp, trace.Data.Run.Stamp)
}

func TestBuildCommandFlags(t *testing.T) {
	cmd := NewBuildCommand(&RootOptions{Format: "text"})

	typeFlag := cmd.Flags().Lookup("type")
	require.NotNil(t, typeFlag)
	assert.Equal(t, "fpga_emu", typeFlag.DefValue)

	runFlag := cmd.Flags().Lookup("run")
	require.NotNil(t, runFlag)
	assert.Equal(t, "false", runFlag.DefValue)
}

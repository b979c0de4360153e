package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/testutil"
)

const (
	mlpModel    = "testdata/models/mlp.cue"
	linearModel = "testdata/models/linear.cue"
	testStamp   = "5eed5eed"
)

// fakeRunner records toolchain invocations. onRun, if set, runs before
// each recorded call; fail names the command that exits non-zero.
type fakeRunner struct {
	calls   [][]string
	fail    string
	missing bool
	onRun   func(dir, name string, args []string)
}

func (f *fakeRunner) LookPath(file string) (string, error) {
	if f.missing {
		return "", errors.Newf("exec: %q: executable file not found in $PATH", file)
	}
	return "/opt/intel/oneapi/bin/" + file, nil
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.onRun != nil {
		f.onRun(dir, name, args)
	}
	if name == f.fail {
		return []byte("error: boom"), errors.New("exit status 1")
	}
	return nil, nil
}

// testCommand returns a bare command whose output is captured.
func testCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd, out, errOut
}

// writeConfig writes a configuration for the mlp model whose OutputDir is
// a fresh temporary directory. It returns the config path and OutputDir.
func writeConfig(t *testing.T, ioType string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	outDir := filepath.Join(dir, "proj_prj")
	doc := fmt.Sprintf(`ProjectName: proj
OutputDir: %s
IOType: %s
HLSConfig:
  LayerName:
    fc1:
      ReuseFactor: 10
`, outDir, ioType)
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path, outDir
}

// modelOptions returns options with deterministic stamps and run IDs.
func modelOptions(format, configPath string, runner *fakeRunner) ModelOptions {
	opts := ModelOptions{
		RootOptions: &RootOptions{Format: format},
		ConfigPath:  configPath,
		MaxSteps:    engine.DefaultMaxSteps,
		Stamps:      testutil.NewFixedStampGenerator(testStamp),
		RunIDs:      engine.NewFixedGenerator("run-1", "run-2", "run-3"),
	}
	if runner != nil {
		opts.Runner = runner
	}
	return opts
}

// Package toolchain drives the oneAPI build: a compiler presence check,
// a CMake configure step, the make target for the build type and an
// optional run of the produced executable.
package toolchain

import (
	"context"
	"log/slog"
	"slices"

	"github.com/cockroachdb/errors"
)

// Compiler is the executable whose presence is checked before a build.
const Compiler = "icpx"

// Build types.
const (
	BuildFPGAEmu = "fpga_emu"
	BuildFPGASim = "fpga_sim"
	BuildFPGA    = "fpga"
	BuildReport  = "report"
	BuildLib     = "lib"
)

// RunnableBuildTypes are the build types whose product can be executed.
var RunnableBuildTypes = []string{BuildFPGAEmu, BuildFPGASim, BuildFPGA}

// Request describes one build.
type Request struct {
	// Dir is the build directory, <output_dir>/build.
	Dir       string
	Project   string
	BuildType string
	Run       bool
}

// Validate rejects requests that cannot succeed without starting a
// process.
func (r Request) Validate() error {
	if r.BuildType == "" {
		return &InvalidBuildError{BuildType: r.BuildType, Run: r.Run, Reason: "build type must not be empty"}
	}
	if r.Run && !slices.Contains(RunnableBuildTypes, r.BuildType) {
		return &InvalidBuildError{BuildType: r.BuildType, Run: r.Run,
			Reason: "running is only supported for fpga_emu, fpga_sim or fpga builds"}
	}
	return nil
}

// Executable is the name of the built program for the request.
func (r Request) Executable() string {
	return "./" + r.Project + "." + r.BuildType
}

type step struct {
	name string
	argv []string
}

// Toolchain runs build requests through a Runner.
type Toolchain struct {
	runner Runner
	logger *slog.Logger
}

// New creates a toolchain. A nil runner uses ExecRunner.
func New(runner Runner, logger *slog.Logger) *Toolchain {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolchain{runner: runner, logger: logger}
}

// Build validates req and runs its steps in order. It blocks until the
// last step finishes; the first failing step aborts the build.
func (t *Toolchain) Build(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if _, err := t.runner.LookPath(Compiler); err != nil {
		return newToolchainError("check", []string{"which", Compiler}, nil,
			errors.Wrapf(err, "could not find %s, please configure oneAPI appropriately", Compiler))
	}

	steps := []step{
		{"configure", []string{"cmake", ".."}},
		{"build", []string{"make", req.BuildType}},
	}
	if req.Run {
		steps = append(steps, step{"run", []string{req.Executable()}})
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.logger.Info("running toolchain step", "step", s.name, "command", s.argv, "dir", req.Dir)
		out, err := t.runner.Run(ctx, req.Dir, s.argv[0], s.argv[1:]...)
		if err != nil {
			return newToolchainError(s.name, s.argv, out, err)
		}
		t.logger.Debug("toolchain step finished", "step", s.name, "output_bytes", len(out))
	}
	return nil
}

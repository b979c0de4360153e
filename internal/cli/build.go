package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fpgalower/internal/backend"
	"github.com/roach88/fpgalower/internal/toolchain"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	ModelOptions
	BuildType string
	Run       bool
}

// BuildResult is the output of the build command.
type BuildResult struct {
	Model     string            `json:"model"`
	BuildType string            `json:"build_type"`
	Run       bool              `json:"run"`
	Stamp     string            `json:"stamp"`
	BuildDir  string            `json:"build_dir"`
	RunID     string            `json:"run_id,omitempty"`
	Report    string            `json:"report,omitempty"`
	Entries   []toolchain.Entry `json:"entries,omitempty"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{ModelOptions: ModelOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "build <model.cue>",
		Short: "Write the project and run the oneAPI toolchain",
		Long: `Lower and write a model, then build it with the oneAPI toolchain.

The build checks for icpx, configures the project with cmake and runs
the make target of the build type. With --run the built executable is
started; only fpga_emu, fpga_sim and fpga builds can be run. When the
build produces a synthesis report it is printed.

Exit codes:
  0 - Build succeeded
  1 - Lowering or a toolchain step failed
  2 - Command error (invalid build request, bad inputs, etc.)

Examples:
  fpgalower build model.cue -c model.yaml
  fpgalower build model.cue -c model.yaml --type report
  fpgalower build model.cue -c model.yaml --type fpga_emu --run`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.BuildType, "type", toolchain.BuildFPGAEmu,
		"build type ("+strings.Join([]string{toolchain.BuildFPGAEmu, toolchain.BuildFPGASim, toolchain.BuildFPGA, toolchain.BuildReport, toolchain.BuildLib}, "|")+")")
	cmd.Flags().BoolVar(&opts.Run, "run", false, "run the built executable")

	return cmd
}

func runBuild(opts *BuildOptions, modelPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := formatterFor(opts.RootOptions, cmd)

	m, cfg, err := opts.load(modelPath)
	if err != nil {
		return formatter.FailInput("loading inputs failed", err)
	}
	b, err := opts.backend(newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail("creating backend failed", err)
	}

	journal, err := openJournal(ctx, &opts.ModelOptions, m, cfg, b.Name(), b.WriterFlow())
	if err != nil {
		return formatter.FailInput("failed to open journal", err)
	}
	defer journal.Close()

	report, buildErr := b.Build(ctx, m, cfg, opts.BuildType, opts.Run, journal.option())
	if err := journal.finish(ctx, m, buildErr); err != nil {
		return formatter.Fail("journal failed", err)
	}
	if buildErr != nil {
		printToolOutput(formatter, buildErr)
		return formatter.Fail("build failed", buildErr)
	}

	result := BuildResult{
		Model:     m.Name,
		BuildType: opts.BuildType,
		Run:       opts.Run,
		Stamp:     m.Stamp,
		BuildDir:  backend.BuildDir(cfg),
		RunID:     journal.runID,
	}
	if report != nil && report.Found {
		result.Report = report.Path
		result.Entries = report.Entries()
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputBuildText(formatter, result)
}

// printToolOutput shows what a failed tool printed. JSON output carries
// it in the error details instead.
func printToolOutput(formatter *OutputFormatter, err error) {
	var tcErr *toolchain.ToolchainError
	if formatter.Format == "json" || !errors.As(err, &tcErr) || tcErr.Output == "" {
		return
	}
	w := formatter.GetErrWriter()
	fmt.Fprintf(w, "--- %s output ---\n", tcErr.Step)
	fmt.Fprint(w, tcErr.Output)
	if !strings.HasSuffix(tcErr.Output, "\n") {
		fmt.Fprintln(w)
	}
}

func outputBuildText(formatter *OutputFormatter, result BuildResult) error {
	w := formatter.Writer
	verb := "Built"
	if result.Run {
		verb = "Built and ran"
	}
	fmt.Fprintf(w, "✓ %s %s (%s, stamp %s)\n", verb, result.Model, result.BuildType, result.Stamp)
	fmt.Fprintf(w, "Build directory: %s\n", result.BuildDir)
	if result.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", result.RunID)
	}

	if result.Report == "" {
		fmt.Fprintln(w, "No report produced.")
		return nil
	}
	fmt.Fprintf(w, "\nReport %s:\n", result.Report)
	rows := make([][]string, 0, len(result.Entries))
	for _, e := range result.Entries {
		rows = append(rows, []string{e.Key, e.Value})
	}
	formatter.Table([]string{"Key", "Value"}, rows)
	return nil
}

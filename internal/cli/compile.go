package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// CompileResult is the output of the compile command.
type CompileResult struct {
	Model   string `json:"model"`
	Stamp   string `json:"stamp"`
	Library string `json:"library"`
	RunID   string `json:"run_id,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ModelOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <model.cue>",
		Short: "Build the model as a shared library",
		Long: `Lower and write a model, then build it as a shared library.

The library name carries the build stamp, so successive compiles of the
same project do not overwrite each other:

  <OutputDir>/build/lib<ProjectName>-<stamp>.so

Examples:
  fpgalower compile model.cue -c model.yaml
  fpgalower compile model.cue -c model.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	return cmd
}

func runCompile(opts *ModelOptions, modelPath string, cmd *cobra.Command) error {
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

	journal, err := openJournal(ctx, opts, m, cfg, b.Name(), b.WriterFlow())
	if err != nil {
		return formatter.FailInput("failed to open journal", err)
	}
	defer journal.Close()

	lib, compileErr := b.Compile(ctx, m, cfg, journal.option())
	if err := journal.finish(ctx, m, compileErr); err != nil {
		return formatter.Fail("journal failed", err)
	}
	if compileErr != nil {
		printToolOutput(formatter, compileErr)
		return formatter.Fail("compile failed", compileErr)
	}

	result := CompileResult{Model: m.Name, Stamp: m.Stamp, Library: lib, RunID: journal.runID}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Compiled %s (stamp %s)\n", result.Model, result.Stamp)
	fmt.Fprintf(formatter.Writer, "Library: %s\n", result.Library)
	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/fpgalower/internal/ir"
)

// LowerOptions holds flags for the lower command.
type LowerOptions struct {
	ModelOptions
	Flow   string
	Write  bool
	Output string
}

// LayerSummary is the lowering outcome of one layer.
type LayerSummary struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Template    string `json:"template,omitempty"`
	ReuseFactor int    `json:"reuse_factor,omitempty"`
	Strategy    string `json:"strategy,omitempty"`
	ResultType  string `json:"result_type,omitempty"`
}

// LowerResult is the output of the lower command.
type LowerResult struct {
	Model   string         `json:"model"`
	Flow    string         `json:"flow"`
	RunID   string         `json:"run_id,omitempty"`
	Digest  string         `json:"digest"`
	Stamp   string         `json:"stamp,omitempty"`
	Events  int            `json:"events"`
	Changes int            `json:"changes"`
	Layers  []LayerSummary `json:"layers"`
	Output  string         `json:"output,omitempty"`
}

// NewLowerCommand creates the lower command.
func NewLowerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LowerOptions{ModelOptions: ModelOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "lower <model.cue>",
		Short: "Lower a model with the oneAPI backend",
		Long: `Apply a oneAPI flow to a model and report the lowered layers.

By default the oneapi:ip flow runs, leaving fully lowered IR. --write
runs the writer flow instead, which stamps the model and emits the
project under the configured OutputDir. With --db every executed pass
is journaled to a SQLite database for later inspection with trace.

Examples:
  fpgalower lower model.cue --config model.yaml
  fpgalower lower model.cue -c model.yaml --flow oneapi:init_layers
  fpgalower lower model.cue -c model.yaml --db runs.db -o lowered.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Flow, "flow", "", "flow to apply (default: oneapi:ip, or oneapi:write with --write)")
	cmd.Flags().BoolVar(&opts.Write, "write", false, "run the writer flow and emit the project")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the lowered IR as canonical JSON")

	return cmd
}

func runLower(opts *LowerOptions, modelPath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := formatterFor(opts.RootOptions, cmd)

	m, cfg, err := opts.load(modelPath)
	if err != nil {
		return formatter.FailInput("loading inputs failed", err)
	}
	formatter.VerboseLog("Loaded model %s with %d layer(s)", m.Name, len(m.Nodes))

	b, err := opts.backend(newLogger(opts.RootOptions, cmd.ErrOrStderr()))
	if err != nil {
		return formatter.Fail("creating backend failed", err)
	}

	flowName := opts.Flow
	if flowName == "" {
		flowName = b.DefaultFlow()
		if opts.Write {
			flowName = b.WriterFlow()
		}
	}

	journal, err := openJournal(ctx, &opts.ModelOptions, m, cfg, b.Name(), flowName)
	if err != nil {
		return formatter.FailInput("failed to open journal", err)
	}
	defer journal.Close()
	if journal.runID != "" {
		formatter.VerboseLog("Journaling run %s to %s", journal.runID, opts.Database)
	}

	lowerErr := b.Run(ctx, m, cfg, flowName, journal.option())
	if err := journal.finish(ctx, m, lowerErr); err != nil {
		return formatter.Fail("journal failed", err)
	}
	if lowerErr != nil {
		return formatter.Fail("lowering failed", lowerErr)
	}

	digest, err := ir.Digest(m)
	if err != nil {
		return formatter.Fail("digest failed", err)
	}
	result := LowerResult{
		Model:   m.Name,
		Flow:    flowName,
		RunID:   journal.runID,
		Digest:  digest,
		Stamp:   m.Stamp,
		Events:  journal.counter.events,
		Changes: journal.counter.changes,
		Layers:  summarizeLayers(m),
	}

	var written int
	if opts.Output != "" {
		if written, err = writeLoweredIR(m, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
		result.Output = opts.Output
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputLowerText(formatter, result, written)
}

// summarizeLayers reports the attributes lowering decides, in graph order.
func summarizeLayers(m *ir.Model) []LayerSummary {
	out := make([]LayerSummary, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		s := LayerSummary{
			Name:        n.Name,
			Kind:        string(n.Kind),
			Template:    n.StringAttr("template", ""),
			ReuseFactor: n.IntAttr("reuse_factor", 0),
			Strategy:    n.StringAttr("strategy", ""),
		}
		if t, ok := n.TypeAttr("result_t"); ok && t.Precision != nil {
			s.ResultType = t.Precision.String()
		}
		out = append(out, s)
	}
	return out
}

func writeLoweredIR(m *ir.Model, path string) (int, error) {
	encoded, err := ir.EncodeModel(m)
	if err != nil {
		return 0, err
	}
	data, err := ir.MarshalCanonical(encoded)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return len(data), nil
}

func outputLowerText(formatter *OutputFormatter, result LowerResult, written int) error {
	w := formatter.Writer
	fmt.Fprintf(w, "✓ Lowered %s with %s (%d pass event(s), %d change(s))\n\n",
		result.Model, result.Flow, result.Events, result.Changes)

	rows := make([][]string, 0, len(result.Layers))
	for _, l := range result.Layers {
		rf := ""
		if l.ReuseFactor > 0 {
			rf = strconv.Itoa(l.ReuseFactor)
		}
		rows = append(rows, []string{l.Name, l.Kind, l.Template, rf, l.Strategy, l.ResultType})
	}
	formatter.Table([]string{"Layer", "Kind", "Template", "Reuse", "Strategy", "Result"}, rows)

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Digest: %s\n", result.Digest)
	if result.Stamp != "" {
		fmt.Fprintf(w, "Stamp:  %s\n", result.Stamp)
	}
	if result.RunID != "" {
		fmt.Fprintf(w, "Run:    %s\n", result.RunID)
	}
	if result.Output != "" {
		fmt.Fprintf(w, "Wrote lowered IR to %s (%s)\n", result.Output, humanize.Bytes(uint64(written)))
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/fpgalower/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Pass     string // optional - filter events to one pass
}

// RunInfo summarizes one journaled run.
type RunInfo struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Backend string `json:"backend"`
	Flow    string `json:"flow"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Digest  string `json:"digest,omitempty"`
	Stamp   string `json:"stamp,omitempty"`
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Flow    string `json:"flow"`
	Pass    string `json:"pass"`
	Layer   string `json:"layer,omitempty"`
	Changed bool   `json:"changed"`
}

// PassStats counts the events of one pass.
type PassStats struct {
	Pass    string `json:"pass"`
	Events  int    `json:"events"`
	Changes int    `json:"changes"`
}

// LayerSnapshot is one layer as lowered by the run.
type LayerSnapshot struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Digest     string         `json:"digest"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// TraceResult holds the complete trace output of one run.
type TraceResult struct {
	Run      RunInfo         `json:"run"`
	Timeline []TraceEvent    `json:"timeline"`
	Passes   []PassStats     `json:"passes"`
	Layers   []LayerSnapshot `json:"layers"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect journaled lowering runs",
		Long: `Inspect the pass journal written by lower, build and compile --db.

Without --run, list the journaled runs. With --run, show the run's
per-pass statistics and the layers it produced; --verbose adds the full
event timeline.

Examples:
  fpgalower trace --db ./runs.db
  fpgalower trace --db ./runs.db --run 0190...
  fpgalower trace --db ./runs.db --run 0190... --pass oneapi:init_dense -v
  fpgalower trace --db ./runs.db --run 0190... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to trace (default: list runs)")
	cmd.Flags().StringVar(&opts.Pass, "pass", "", "filter the timeline to one pass")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := formatterFor(opts.RootOptions, cmd)

	// store.Open creates missing databases; tracing one is a mistake.
	if _, err := os.Stat(opts.Database); err != nil {
		return formatter.FailInput("database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return formatter.FailInput("failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRuns(ctx, formatter, st)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if err != nil {
		return formatter.FailInput("failed to read run", err)
	}
	events, err := st.ReadPassEvents(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read pass events", err)
	}
	summary, err := st.SummarizePasses(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize passes", err)
	}
	layers, err := st.ReadLayers(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read layers", err)
	}

	result := TraceResult{
		Run:      runInfo(run),
		Timeline: []TraceEvent{},
		Passes:   []PassStats{},
		Layers:   []LayerSnapshot{},
	}
	for _, ev := range events {
		if opts.Pass != "" && ev.Pass != opts.Pass {
			continue
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq: ev.Seq, Flow: ev.Flow, Pass: ev.Pass, Layer: ev.Node, Changed: ev.Changed,
		})
	}
	for _, ps := range summary {
		if opts.Pass != "" && ps.Pass != opts.Pass {
			continue
		}
		result.Passes = append(result.Passes, PassStats{Pass: ps.Pass, Events: ps.Events, Changes: ps.Changes})
	}
	for _, l := range layers {
		result.Layers = append(result.Layers, LayerSnapshot{
			Name: l.Name, Kind: l.Kind, Digest: l.Digest, Attributes: l.Attributes,
		})
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

func runInfo(r store.Run) RunInfo {
	return RunInfo{
		ID:      r.ID,
		Model:   r.Model,
		Backend: r.Backend,
		Flow:    r.Flow,
		Status:  r.Status,
		Error:   r.Error,
		Digest:  r.Digest,
		Stamp:   r.Stamp,
	}
}

func listRuns(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	infos := make([]RunInfo, 0, len(runs))
	for _, r := range runs {
		infos = append(infos, runInfo(r))
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs journaled.")
		return nil
	}
	rows := make([][]string, 0, len(infos))
	for _, r := range infos {
		rows = append(rows, []string{r.ID, r.Model, r.Flow, r.Status, truncateID(r.Digest)})
	}
	formatter.Table([]string{"Run", "Model", "Flow", "Status", "Digest"}, rows)
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer

	fmt.Fprintf(w, "Trace for Run: %s\n", result.Run.ID)
	fmt.Fprintf(w, "Model: %s  Flow: %s  Status: %s\n", result.Run.Model, result.Run.Flow, result.Run.Status)
	if result.Run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", result.Run.Error)
	}
	if result.Run.Digest != "" {
		fmt.Fprintf(w, "Digest: %s\n", result.Run.Digest)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Passes ===")
	if len(result.Passes) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		rows := make([][]string, 0, len(result.Passes))
		for _, ps := range result.Passes {
			rows = append(rows, []string{ps.Pass, strconv.Itoa(ps.Events), strconv.Itoa(ps.Changes)})
		}
		formatter.Table([]string{"Pass", "Events", "Changes"}, rows)
	}

	if formatter.Verbose {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Timeline ===")
		for _, ev := range result.Timeline {
			marker := " "
			if ev.Changed {
				marker = "*"
			}
			layer := ev.Layer
			if layer == "" {
				layer = "(model)"
			}
			fmt.Fprintf(w, "  [%d]%s %s %s @ %s\n", ev.Seq, marker, ev.Flow, ev.Pass, layer)
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Layers ===")
	if len(result.Layers) == 0 {
		fmt.Fprintln(w, "  (no snapshot)")
		return nil
	}
	rows := make([][]string, 0, len(result.Layers))
	for _, l := range result.Layers {
		rows = append(rows, []string{l.Name, l.Kind, truncateID(l.Digest)})
	}
	formatter.Table([]string{"Layer", "Kind", "Digest"}, rows)
	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/fpgalower/internal/backend"
)

// FlowInfo describes one registered flow.
type FlowInfo struct {
	Name     string   `json:"name"`
	Requires []string `json:"requires"`
	Passes   []string `json:"passes"`
	Lazy     bool     `json:"lazy,omitempty"`
}

// FlowsResult is the output of the flows command.
type FlowsResult struct {
	Backend     string     `json:"backend"`
	DefaultFlow string     `json:"default_flow"`
	WriterFlow  string     `json:"writer_flow"`
	Flows       []FlowInfo `json:"flows"`
	// Resolved is the full pass order of the flow named on the command line.
	Resolved []string `json:"resolved,omitempty"`
	Unused   []string `json:"unused,omitempty"`
}

// NewFlowsCommand creates the flows command.
func NewFlowsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flows [flow]",
		Short: "List the backend's flows",
		Long: `List the flows registered by the oneAPI backend with their
requirements and passes.

With a flow name, also print the complete pass order the flow applies,
its requirements first.

Examples:
  fpgalower flows
  fpgalower flows oneapi:ip
  fpgalower flows --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runFlows(rootOpts, name, cmd)
		},
	}
	return cmd
}

func runFlows(opts *RootOptions, name string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd)

	b, err := backend.NewOneAPI(backend.WithLogger(newLogger(opts, cmd.ErrOrStderr())))
	if err != nil {
		return formatter.Fail("creating backend failed", err)
	}

	result := FlowsResult{
		Backend:     b.Name(),
		DefaultFlow: b.DefaultFlow(),
		WriterFlow:  b.WriterFlow(),
		Flows:       []FlowInfo{},
		Unused:      b.Unused(),
	}
	for _, fname := range b.Flows().Names() {
		f, _ := b.Flows().Get(fname)
		passes := f.Passes()
		if passes == nil {
			passes = []string{}
		}
		requires := append([]string{}, f.Requires...)
		result.Flows = append(result.Flows, FlowInfo{Name: f.Name, Requires: requires, Passes: passes, Lazy: f.IsLazy()})
	}

	if name != "" {
		result.Resolved, err = b.Flows().Resolve(name)
		if err != nil {
			return formatter.Fail("resolving flow failed", err)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputFlowsText(formatter, result, name)
}

func outputFlowsText(formatter *OutputFormatter, result FlowsResult, name string) error {
	w := formatter.Writer
	fmt.Fprintf(w, "Backend %s: default flow %s, writer flow %s\n\n", result.Backend, result.DefaultFlow, result.WriterFlow)

	rows := make([][]string, 0, len(result.Flows))
	for _, f := range result.Flows {
		passes := strconv.Itoa(len(f.Passes))
		if f.Lazy {
			passes += " (lazy)"
		}
		rows = append(rows, []string{f.Name, strings.Join(f.Requires, ", "), passes})
	}
	formatter.Table([]string{"Flow", "Requires", "Passes"}, rows)

	if formatter.Verbose {
		for _, f := range result.Flows {
			if len(f.Passes) == 0 {
				continue
			}
			fmt.Fprintf(w, "\n%s:\n", f.Name)
			for _, p := range f.Passes {
				fmt.Fprintf(w, "  %s\n", p)
			}
		}
	}

	if name != "" {
		fmt.Fprintf(w, "\nPass order of %s:\n", name)
		for i, p := range result.Resolved {
			fmt.Fprintf(w, "  %3d. %s\n", i+1, p)
		}
	}
	if len(result.Unused) > 0 {
		fmt.Fprintf(w, "\nPasses reached by no flow: %s\n", strings.Join(result.Unused, ", "))
	}
	return nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/fpgalower/internal/backend"
	"github.com/roach88/fpgalower/internal/config"
)

// InitConfigOptions holds flags for the init-config command.
type InitConfigOptions struct {
	*RootOptions
	Part          string
	ClockPeriod   float64
	HandshakeMode bool
	IOType        string
	WriteTar      bool
	Output        string
}

// NewInitConfigCommand creates the init-config command.
func NewInitConfigCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitConfigOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "Print an initial oneAPI configuration",
		Long: `Create the initial configuration for the oneAPI backend.

The document carries the backend's fixed keys (Part, ClockPeriod,
HandshakeMode, IOType, HLSConfig and WriterConfig). Layer sections are
left empty for the user to fill in.

Examples:
  fpgalower init-config
  fpgalower init-config --part Arria10 --io-type io_stream -o model.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitConfig(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Part, "part", config.DefaultPart, "FPGA part")
	cmd.Flags().Float64Var(&opts.ClockPeriod, "clock-period", config.DefaultClockPeriod, "clock period in ns")
	cmd.Flags().BoolVar(&opts.HandshakeMode, "handshake", false, "use handshake mode")
	cmd.Flags().StringVar(&opts.IOType, "io-type", config.IOParallel, "io_parallel or io_stream")
	cmd.Flags().BoolVar(&opts.WriteTar, "write-tar", false, "archive the written project")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the configuration to this file")

	return cmd
}

func runInitConfig(opts *InitConfigOptions, cmd *cobra.Command) error {
	formatter := formatterFor(opts.RootOptions, cmd)

	b, err := backend.NewOneAPI(backend.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	if err != nil {
		return formatter.Fail("creating backend failed", err)
	}
	cfg, err := b.CreateInitialConfig(opts.Part, opts.ClockPeriod, opts.HandshakeMode, opts.IOType, opts.WriteTar)
	if err != nil {
		return formatter.Fail("invalid configuration", err)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return formatter.Fail("encoding configuration failed", err)
	}
	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, data, 0o644); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(cfg.Document())
	}
	if opts.Output != "" {
		fmt.Fprintf(formatter.Writer, "✓ Wrote configuration to %s\n", opts.Output)
		return nil
	}
	_, err = formatter.Writer.Write(data)
	return err
}

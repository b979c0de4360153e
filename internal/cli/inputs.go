package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/fpgalower/internal/backend"
	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/loader"
	"github.com/roach88/fpgalower/internal/toolchain"
)

// ModelOptions holds the flags shared by commands that lower a model.
type ModelOptions struct {
	*RootOptions
	ConfigPath string
	MaxSteps   int
	Database   string

	// Runner overrides the toolchain runner (for testing).
	// If nil, defaults to toolchain.ExecRunner.
	Runner toolchain.Runner

	// Stamps overrides the build stamp generator (for testing).
	// If nil, defaults to engine.StampGenerator.
	Stamps engine.IDGenerator

	// RunIDs overrides the journal run ID generator (for testing).
	// If nil, defaults to engine.UUIDv7Generator.
	RunIDs engine.IDGenerator
}

func (o *ModelOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.ConfigPath, "config", "c", "", "model configuration YAML (default: built-in defaults)")
	cmd.Flags().IntVar(&o.MaxSteps, "max-steps", engine.DefaultMaxSteps, "maximum graph changes per flow")
	cmd.Flags().StringVar(&o.Database, "db", "", "journal passes to this SQLite database")
}

// load reads the model description and its configuration. Without a
// configuration file the defaults of an empty document apply.
func (o *ModelOptions) load(modelPath string) (*ir.Model, *config.Config, error) {
	l := loader.New(nil)
	m, err := l.LoadModel(modelPath)
	if err != nil {
		return nil, nil, err
	}
	if o.ConfigPath == "" {
		cfg, err := config.New(config.Document{})
		return m, cfg, err
	}
	cfg, err := l.LoadConfig(o.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	return m, cfg, nil
}

func (o *ModelOptions) backend(logger *slog.Logger) (*backend.Backend, error) {
	opts := []backend.Option{
		backend.WithLogger(logger),
		backend.WithMaxSteps(o.MaxSteps),
	}
	if o.Runner != nil {
		opts = append(opts, backend.WithRunner(o.Runner))
	}
	if o.Stamps != nil {
		opts = append(opts, backend.WithStampGenerator(o.Stamps))
	}
	return backend.NewOneAPI(opts...)
}

// formatterFor builds the formatter of a command invocation.
func formatterFor(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

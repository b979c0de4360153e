// Package backend assembles the oneAPI lowering pipeline.
//
// NewOneAPI registers the backend's schema extensions, its passes and its
// flows in one place. Flow definitions are resolved during construction,
// so a cyclic or dangling flow graph is reported before any pass runs.
// After construction the registries are read-only.
package backend

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/flow"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/lowering"
	"github.com/roach88/fpgalower/internal/optimizer"
	"github.com/roach88/fpgalower/internal/pass"
	"github.com/roach88/fpgalower/internal/schema"
	"github.com/roach88/fpgalower/internal/toolchain"
	"github.com/roach88/fpgalower/internal/writer"
)

// OneAPI is the backend name.
const OneAPI = "oneAPI"

// Flow names, unqualified.
const (
	FlowOptimize       = "optimize"
	FlowInitLayers     = "init_layers"
	FlowStreaming      = "streaming"
	FlowSpecificTypes  = "specific_types"
	FlowQuantization   = "quantization"
	FlowApplyTemplates = "apply_templates"
	FlowIP             = "ip"
	FlowWrite          = "write"
)

// Backend is one configured lowering pipeline.
type Backend struct {
	name        string
	schema      *schema.Registry
	passes      *pass.Registry
	flows       *flow.Registry
	initPasses  []string
	defaultFlow string
	writerFlow  string
	unused      []string

	logger   *slog.Logger
	fs       afero.Fs
	emitter  pass.Emitter
	runner   toolchain.Runner
	reports  toolchain.ReportParser
	stamps   engine.IDGenerator
	maxSteps int
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used by the backend and its passes.
func WithLogger(l *slog.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithFs sets the filesystem the writer and build steps use.
// Default: the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(b *Backend) { b.fs = fs }
}

// WithEmitter replaces the default manifest writer.
func WithEmitter(e pass.Emitter) Option {
	return func(b *Backend) { b.emitter = e }
}

// WithRunner sets how toolchain processes are started.
func WithRunner(r toolchain.Runner) Option {
	return func(b *Backend) { b.runner = r }
}

// WithReportParser replaces the default JSON report parser.
func WithReportParser(p toolchain.ReportParser) Option {
	return func(b *Backend) { b.reports = p }
}

// WithStampGenerator sets the build stamp source. Default: engine.StampGenerator.
func WithStampGenerator(g engine.IDGenerator) Option {
	return func(b *Backend) { b.stamps = g }
}

// WithMaxSteps sets the per-flow step quota of the engine.
func WithMaxSteps(n int) Option {
	return func(b *Backend) { b.maxSteps = n }
}

// NewOneAPI builds the oneAPI backend.
func NewOneAPI(opts ...Option) (*Backend, error) {
	b := &Backend{
		name:     OneAPI,
		schema:   schema.NewRegistry(),
		passes:   pass.NewRegistry(),
		logger:   slog.Default(),
		stamps:   engine.StampGenerator{},
		maxSteps: engine.DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.fs == nil {
		b.fs = afero.NewOsFs()
	}
	if b.emitter == nil {
		b.emitter = writer.NewManifestWriter(b.fs, writer.WithLogger(b.logger))
	}
	if b.reports == nil {
		b.reports = toolchain.NewJSONReportParser(b.fs)
	}
	b.flows = flow.NewRegistry(b.passes)

	if err := lowering.ExtendSchema(b.schema, b.name); err != nil {
		return nil, errors.Wrap(err, "register layer attributes")
	}
	if err := b.registerPasses(); err != nil {
		return nil, errors.Wrap(err, "register passes")
	}
	if err := b.registerFlows(); err != nil {
		return nil, errors.Wrap(err, "register flows")
	}

	unused, err := b.flows.Unused(b.passes.Catalogue(b.name), b.defaultFlow, b.writerFlow)
	if err != nil {
		return nil, errors.Wrap(err, "resolve flows")
	}
	b.unused = unused
	flow.WarnUnused(b.logger, unused)
	return b, nil
}

func (b *Backend) registerPasses() error {
	if _, err := optimizer.Register(b.passes, "", optimizer.Generic()); err != nil {
		return err
	}
	names, err := lowering.Register(b.passes, b.name)
	if err != nil {
		return err
	}
	b.initPasses = names
	if _, err := optimizer.Register(b.passes, b.name, optimizer.OneAPI()); err != nil {
		return err
	}
	_, err = optimizer.Register(b.passes, b.name, optimizer.Templates())
	return err
}

func (b *Backend) registerFlows() error {
	q := func(name string) string { return pass.Qualify(b.name, name) }

	optimize, err := b.flows.Register(FlowOptimize, flow.Static(
		optimizer.EliminateLinearActivation,
		optimizer.FuseBatchNormalization,
	), nil, "")
	if err != nil {
		return err
	}

	initFlow, err := b.flows.Register(FlowInitLayers, flow.Static(b.initPasses...), []string{optimize}, b.name)
	if err != nil {
		return err
	}

	streaming, err := b.flows.Register(FlowStreaming, flow.Static(
		q(optimizer.CloneOutput),
	), []string{initFlow}, b.name)
	if err != nil {
		return err
	}

	typesFlow, err := b.flows.Register(FlowSpecificTypes, flow.Static(
		q(optimizer.TransformTypes),
		q(optimizer.RegisterBRAMWeights),
		q(optimizer.ApplyResourceStrategy),
		q(optimizer.ApplyWinograd),
	), []string{initFlow}, b.name)
	if err != nil {
		return err
	}

	quantization, err := b.flows.Register(FlowQuantization, flow.Static(
		optimizer.FuseBatchNormalization,
		q(optimizer.XnorPooling),
	), []string{initFlow}, b.name)
	if err != nil {
		return err
	}

	optimization, err := b.flows.Register(FlowOptimize, flow.Static(
		q(optimizer.RemoveFinalReshape),
		q(optimizer.SkipSoftmax),
		q(optimizer.FixSoftmaxTableSize),
		optimizer.InferPrecisionTypes,
	), []string{initFlow}, b.name)
	if err != nil {
		return err
	}

	backend := b.name
	templates, err := b.flows.Register(FlowApplyTemplates, flow.Lazy(func() []string {
		return optimizer.TemplateNames(backend)
	}), []string{initFlow}, b.name)
	if err != nil {
		return err
	}

	b.defaultFlow, err = b.flows.Register(FlowIP, nil, []string{
		optimize, initFlow, streaming, quantization, optimization, typesFlow, templates,
	}, b.name)
	if err != nil {
		return err
	}

	b.writerFlow, err = b.flows.Register(FlowWrite, flow.Static(
		optimizer.MakeStamp,
		q(optimizer.WriteHLS),
	), []string{b.defaultFlow}, b.name)
	return err
}

// Name returns the backend name.
func (b *Backend) Name() string { return b.name }

// Schema returns the attribute schema registry.
func (b *Backend) Schema() *schema.Registry { return b.schema }

// Passes returns the pass registry.
func (b *Backend) Passes() *pass.Registry { return b.passes }

// Flows returns the flow registry.
func (b *Backend) Flows() *flow.Registry { return b.flows }

// DefaultFlow is the flow producing fully lowered IR.
func (b *Backend) DefaultFlow() string { return b.defaultFlow }

// WriterFlow is the flow stamping and emitting the lowered IR.
func (b *Backend) WriterFlow() string { return b.writerFlow }

// Unused returns the backend passes no flow reaches.
func (b *Backend) Unused() []string { return append([]string(nil), b.unused...) }

// CreateInitialConfig returns a configuration with the backend's fixed
// keys. An empty part selects config.DefaultPart.
func (b *Backend) CreateInitialConfig(part string, clockPeriod float64, handshake bool, ioType string, writeTar bool) (*config.Config, error) {
	if part == "" {
		part = config.DefaultPart
	}
	return config.New(config.Document{
		Backend:       b.name,
		Part:          part,
		ClockPeriod:   clockPeriod,
		HandshakeMode: handshake,
		IOType:        ioType,
		HLSConfig:     config.HLSConfig{},
		WriterConfig:  config.WriterConfig{WriteTar: writeTar},
	})
}

// Bind attaches the backend schema to every unbound node of m.
func (b *Backend) Bind(m *ir.Model, cfg *config.Config) error {
	for _, n := range m.Nodes {
		if n.Bound() {
			continue
		}
		if err := b.schema.Bind(b.name, n, cfg); err != nil {
			return errors.Wrapf(err, "bind layer %s", n.Name)
		}
	}
	return nil
}

func (b *Backend) passContext(m *ir.Model, cfg *config.Config) *pass.Context {
	return &pass.Context{
		Model:   m,
		Config:  cfg,
		Backend: b.name,
		Logger:  b.logger,
		Stamper: b.stamps.Generate,
		Emitter: b.emitter,
		Binder:  func(n *ir.LayerNode) error { return b.schema.Bind(b.name, n, cfg) },
	}
}

func (b *Backend) apply(ctx context.Context, m *ir.Model, cfg *config.Config, flowName string, opts []engine.EngineOption) error {
	if err := b.Bind(m, cfg); err != nil {
		return err
	}
	all := append([]engine.EngineOption{
		engine.WithMaxSteps(b.maxSteps),
		engine.WithLogger(b.logger),
	}, opts...)
	return engine.New(b.passes, b.flows, all...).Apply(ctx, b.passContext(m, cfg), flowName)
}

// Run applies the named flow, and the flows it requires, to m.
func (b *Backend) Run(ctx context.Context, m *ir.Model, cfg *config.Config, flowName string, opts ...engine.EngineOption) error {
	return b.apply(ctx, m, cfg, flowName, opts)
}

// Lower runs the default flow on m. Extra engine options, e.g. a journal,
// apply to this run only.
func (b *Backend) Lower(ctx context.Context, m *ir.Model, cfg *config.Config, opts ...engine.EngineOption) error {
	return b.apply(ctx, m, cfg, b.defaultFlow, opts)
}

// Write runs the writer flow, lowering first if needed.
func (b *Backend) Write(ctx context.Context, m *ir.Model, cfg *config.Config, opts ...engine.EngineOption) error {
	return b.apply(ctx, m, cfg, b.writerFlow, opts)
}

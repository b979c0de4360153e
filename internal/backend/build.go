package backend

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/engine"
	"github.com/roach88/fpgalower/internal/ir"
	"github.com/roach88/fpgalower/internal/toolchain"
)

// BuildDir is the build directory of cfg's project.
func BuildDir(cfg *config.Config) string {
	return filepath.Join(cfg.OutputDir(), "build")
}

// LibraryPath is the shared library a lib build of m produces.
func LibraryPath(m *ir.Model, cfg *config.Config) string {
	return filepath.Join(BuildDir(cfg), fmt.Sprintf("lib%s-%s.so", cfg.ProjectName(), m.Stamp))
}

// Build writes the project and runs the toolchain on it. Invalid
// requests and lowering errors are reported before any process starts.
// The call blocks until the toolchain finishes.
func (b *Backend) Build(ctx context.Context, m *ir.Model, cfg *config.Config, buildType string, run bool, opts ...engine.EngineOption) (*toolchain.Report, error) {
	req := toolchain.Request{
		Dir:       BuildDir(cfg),
		Project:   cfg.ProjectName(),
		BuildType: buildType,
		Run:       run,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if cfg.Document().AcceleratorConfig != nil {
		acc, resolved, err := cfg.Accelerator(b.logger)
		if err != nil {
			return nil, err
		}
		b.logger.Info("building for accelerator", "board", acc.Board.Name, "part", resolved.Part())
		cfg = resolved
	}

	if err := b.Write(ctx, m, cfg, opts...); err != nil {
		return nil, err
	}
	if err := b.fs.MkdirAll(req.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create build directory %s", req.Dir)
	}
	if err := toolchain.New(b.runner, b.logger).Build(ctx, req); err != nil {
		return nil, err
	}
	return b.reports.Parse(cfg.OutputDir(), cfg.ProjectName())
}

// Compile builds the project as a shared library and returns its path.
func (b *Backend) Compile(ctx context.Context, m *ir.Model, cfg *config.Config, opts ...engine.EngineOption) (string, error) {
	if _, err := b.Build(ctx, m, cfg, toolchain.BuildLib, false, opts...); err != nil {
		return "", err
	}
	return LibraryPath(m, cfg), nil
}

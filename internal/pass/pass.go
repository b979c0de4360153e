// Package pass defines lowering passes and the registry that names them.
//
// A pass is either a NodePass, applied to every node it matches, or a
// ModelPass, applied to the whole graph. Pass names are qualified by
// backend ("oneapi:init_dense"); generic passes use a bare name.
package pass

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/fpgalower/internal/config"
	"github.com/roach88/fpgalower/internal/ir"
)

// Pass is a named unit of lowering work.
type Pass interface {
	Name() string
}

// NodePass transforms single nodes. Transform reports whether it changed
// the graph structure or a value other passes have already consumed; a
// change restarts the current flow.
type NodePass interface {
	Pass
	Match(node *ir.LayerNode) bool
	Transform(ctx context.Context, pc *Context, node *ir.LayerNode) (bool, error)
}

// ModelPass transforms the whole model.
type ModelPass interface {
	Pass
	TransformModel(ctx context.Context, pc *Context) (bool, error)
}

// Emitter hands a lowered model to code emission.
type Emitter interface {
	Emit(ctx context.Context, m *ir.Model, cfg *config.Config) error
}

// Context is what a pass may see while it runs. Config is immutable;
// Model is owned by the running pass until it returns.
type Context struct {
	Model   *ir.Model
	Config  *config.Config
	Backend string
	Logger  *slog.Logger
	// Stamper produces build stamps for make_stamp.
	Stamper func() string
	Emitter Emitter
	// Binder attaches the backend schema to nodes created by passes.
	Binder func(node *ir.LayerNode) error
}

// Log returns the context logger, falling back to the default logger.
func (pc *Context) Log() *slog.Logger {
	if pc.Logger == nil {
		return slog.Default()
	}
	return pc.Logger
}

// BindNode binds a node created mid-flow. Without a Binder the node stays
// unbound and accepts any attribute.
func (pc *Context) BindNode(node *ir.LayerNode) error {
	if pc.Binder == nil {
		return nil
	}
	return pc.Binder(node)
}

// Qualify returns the registry name of a pass: "backend:name" with the
// backend lower-cased, or name alone for generic passes.
func Qualify(backend, name string) string {
	if backend == "" || strings.Contains(name, ":") {
		return name
	}
	return strings.ToLower(backend) + ":" + name
}

type nodeFunc struct {
	name  string
	match func(*ir.LayerNode) bool
	fn    func(context.Context, *Context, *ir.LayerNode) (bool, error)
}

func (p *nodeFunc) Name() string { return p.name }
func (p *nodeFunc) Match(node *ir.LayerNode) bool { return p.match(node) }
func (p *nodeFunc) Transform(ctx context.Context, pc *Context, node *ir.LayerNode) (bool, error) {
	return p.fn(ctx, pc, node)
}

// NodeFunc builds a NodePass from functions.
func NodeFunc(
	name string,
	match func(*ir.LayerNode) bool,
	fn func(context.Context, *Context, *ir.LayerNode) (bool, error),
) NodePass {
	return &nodeFunc{name: name, match: match, fn: fn}
}

// MatchKind matches nodes whose kind is kind or descends from it.
func MatchKind(kind ir.LayerKind) func(*ir.LayerNode) bool {
	return func(n *ir.LayerNode) bool { return ir.KindMatches(n.Kind, kind) }
}

type modelFunc struct {
	name string
	fn   func(context.Context, *Context) (bool, error)
}

func (p *modelFunc) Name() string { return p.name }
func (p *modelFunc) TransformModel(ctx context.Context, pc *Context) (bool, error) {
	return p.fn(ctx, pc)
}

// ModelFunc builds a ModelPass from a function.
func ModelFunc(name string, fn func(context.Context, *Context) (bool, error)) ModelPass {
	return &modelFunc{name: name, fn: fn}
}

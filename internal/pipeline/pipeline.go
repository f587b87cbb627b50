// Package pipeline drives a compilation from source text to an executable
// program as a sequence of stages over one shared context. Stages keep
// running after errors so a single pass reports diagnostics from every
// stage that could still do useful work.
package pipeline

import (
	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/checker"
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/ir"
	"github.com/ruta-lang/ruta/internal/types"
	"github.com/ruta-lang/ruta/internal/vm"
)

// Context carries one compilation through the stages.
type Context struct {
	Source   string
	UnitName string
	Registry *types.Registry
	Diags    *diag.Bag

	Unit    *ast.Unit
	Info    *checker.Info
	Lowered *ir.Program
	Program *vm.Program
}

// NewContext prepares a compilation of the given source against a sealed
// registry.
func NewContext(source, unitName string, reg *types.Registry) *Context {
	return &Context{
		Source:   source,
		UnitName: unitName,
		Registry: reg,
		Diags:    diag.NewBag(),
	}
}

// Processor is one stage.
type Processor interface {
	Process(ctx *Context) *Context
}

// Pipeline is an ordered list of stages.
type Pipeline struct {
	processors []Processor
}

func New(processors ...Processor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Run executes the stages in order. Stages decide for themselves whether
// earlier diagnostics make their work impossible.
func (p *Pipeline) Run(ctx *Context) *Context {
	for _, processor := range p.processors {
		ctx = processor.Process(ctx)
	}
	return ctx
}

// Default returns the standard compilation pipeline.
func Default() *Pipeline {
	return New(&ParseStage{}, &CheckStage{}, &LowerStage{}, &CompileStage{})
}

// Result is what callers outside the package consume. Program is non-nil
// exactly when Diags holds no errors.
type Result struct {
	Program *vm.Program
	Diags   []diag.Diagnostic
}

// Compile runs the default pipeline over one unit.
func Compile(source, unitName string, reg *types.Registry) Result {
	ctx := Default().Run(NewContext(source, unitName, reg))
	return Result{Program: ctx.Program, Diags: ctx.Diags.All()}
}

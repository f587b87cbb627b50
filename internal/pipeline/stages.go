package pipeline

import (
	"github.com/ruta-lang/ruta/internal/checker"
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/ir"
	"github.com/ruta-lang/ruta/internal/lexer"
	"github.com/ruta-lang/ruta/internal/parser"
	"github.com/ruta-lang/ruta/internal/vm"
)

// ParseStage lexes and parses the source into a unit. It always produces
// a tree; syntax errors land in the bag and the parser resynchronizes so
// later stages can still report on the parts that parsed.
type ParseStage struct{}

func (*ParseStage) Process(ctx *Context) *Context {
	p := parser.New(lexer.New(ctx.Source, ctx.UnitName, ctx.Diags), ctx.Diags)
	ctx.Unit = p.ParseUnit(ctx.UnitName)
	return ctx
}

// CheckStage resolves and type-checks the unit.
type CheckStage struct{}

func (*CheckStage) Process(ctx *Context) *Context {
	if ctx.Unit == nil {
		return ctx
	}
	ctx.Info = checker.Check(ctx.Unit, ctx.Registry, ctx.Diags)
	return ctx
}

// LowerStage flattens the checked unit into basic blocks. It only runs on
// a clean bag: lowering trusts the checker's invariants.
type LowerStage struct{}

func (*LowerStage) Process(ctx *Context) *Context {
	if ctx.Unit == nil || ctx.Info == nil || ctx.Diags.HasErrors() {
		return ctx
	}
	lowered, err := ir.Lower(ctx.Unit, ctx.Info)
	if err != nil {
		ctx.Diags.Add(diag.Errorf(diag.StageCodegen, diag.KindInternalError, diag.Span{Unit: ctx.UnitName}, "lowering failed: %v", err))
		return ctx
	}
	ctx.Lowered = lowered
	return ctx
}

// CompileStage produces the verified executable program.
type CompileStage struct{}

func (*CompileStage) Process(ctx *Context) *Context {
	if ctx.Lowered == nil || ctx.Diags.HasErrors() {
		return ctx
	}
	prog, err := vm.Compile(ctx.Lowered)
	if err != nil {
		ctx.Diags.Add(diag.Errorf(diag.StageCodegen, diag.KindInternalError, diag.Span{Unit: ctx.UnitName}, "compilation failed: %v", err))
		return ctx
	}
	ctx.Program = prog
	return ctx
}

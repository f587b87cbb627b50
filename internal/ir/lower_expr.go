package ir

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/token"
	"github.com/ruta-lang/ruta/internal/types"
)

// lowerExpr emits code leaving exactly one value on the stack. Operands go
// left to right; && and || place the right operand behind a branch so it
// only runs when needed.
func (l *lowerer) lowerExpr(e ast.Expr) {
	switch e := e.(type) {
	case *ast.LiteralExpr:
		l.emit(Instr{Op: OpConst, Const: l.constOf(e), Span: e.Sp})
	case *ast.IdentExpr:
		sym, ok := l.info.Uses[e]
		if !ok {
			panic(fmt.Sprintf("identifier %s has no symbol", e.Name))
		}
		l.emit(Instr{Op: OpLoad, A: l.slotFor(sym), Span: e.Sp})
	case *ast.UnaryExpr:
		l.lowerExpr(e.Operand)
		if e.Op == token.BANG {
			l.emit(Instr{Op: OpNot, Span: e.Sp})
		} else {
			l.emit(Instr{Op: OpNeg, Span: e.Sp})
		}
	case *ast.BinaryExpr:
		l.lowerBinary(e)
	case *ast.CallExpr:
		for _, a := range e.Args {
			l.lowerExpr(a)
		}
		idx, ok := l.prog.Index[e.Fn.Name]
		if !ok {
			panic(fmt.Sprintf("call to unknown function %s", e.Fn.Name))
		}
		l.emit(Instr{Op: OpCall, A: idx, B: len(e.Args), Span: e.Sp})
	case *ast.MethodCallExpr:
		l.lowerMethodCall(e)
	case *ast.FieldExpr:
		l.lowerField(e)
	case *ast.RecordExpr:
		shape := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			l.lowerExpr(f.Value)
			shape[i] = f.Name.Name
		}
		l.emit(Instr{Op: OpMakeRecord, Shape: shape, Span: e.Sp})
	case *ast.TypedRecordExpr:
		shape := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			l.lowerExpr(f.Value)
			shape[i] = f.Name.Name
		}
		l.emit(Instr{Op: OpMakeRecord, Shape: shape, Span: e.Sp})
	case *ast.ListExpr:
		for _, el := range e.Elems {
			l.lowerExpr(el)
		}
		l.emit(Instr{Op: OpMakeList, A: len(e.Elems), Span: e.Sp})
	case *ast.EnumExpr:
		l.lowerEnumLit(e)
	case *ast.IfExpr:
		l.lowerIfValue(e)
	case *ast.MatchExpr:
		l.lowerMatchValue(e)
	default:
		panic(fmt.Sprintf("cannot lower %T", e))
	}
}

// constOf converts a literal to its runtime constant. An integer literal
// the checker widened to Asn becomes an ASN constant; PrefixLength shares
// the Int runtime representation.
func (l *lowerer) constOf(e *ast.LiteralExpr) Const {
	switch e.Kind {
	case ast.LitInt:
		v := e.Value.(int64)
		if t, ok := l.info.Types[e]; ok {
			if p, ok := t.(*types.Primitive); ok && p.Kind == types.KindAsn {
				return Const{Kind: ConstAsn, Word: uint32(v)}
			}
		}
		return Const{Kind: ConstInt, Int: v}
	case ast.LitBool:
		return Const{Kind: ConstBool, Bool: e.Value.(bool)}
	case ast.LitString:
		return Const{Kind: ConstString, Str: e.Value.(string)}
	case ast.LitIPv4:
		addr, err := netip.ParseAddr(e.Value.(string))
		if err != nil {
			panic(fmt.Sprintf("bad address literal %q", e.Value))
		}
		return Const{Kind: ConstAddr, Addr: addr}
	case ast.LitPrefix:
		pfx, err := netip.ParsePrefix(e.Value.(string))
		if err != nil {
			panic(fmt.Sprintf("bad prefix literal %q", e.Value))
		}
		return Const{Kind: ConstPrefix, Prefix: pfx}
	case ast.LitAsn:
		return Const{Kind: ConstAsn, Word: e.Value.(uint32)}
	case ast.LitCommunity:
		return Const{Kind: ConstCommunity, Word: e.Value.(uint32)}
	}
	panic("unknown literal kind")
}

var binaryOps = map[token.Type]Op{
	token.PLUS:     OpAdd,
	token.MINUS:    OpSub,
	token.ASTERISK: OpMul,
	token.SLASH:    OpDiv,
	token.PERCENT:  OpMod,
	token.EQ:       OpEq,
	token.NOT_EQ:   OpNe,
	token.LT:       OpLt,
	token.LTE:      OpLe,
	token.GT:       OpGt,
	token.GTE:      OpGe,
}

func (l *lowerer) lowerBinary(e *ast.BinaryExpr) {
	switch e.Op {
	case token.AND, token.OR:
		l.lowerShortCircuit(e)
	case token.IN:
		l.lowerMembership(e)
	default:
		op, ok := binaryOps[e.Op]
		if !ok {
			panic(fmt.Sprintf("unknown binary operator %s", e.Op))
		}
		l.lowerExpr(e.Left)
		l.lowerExpr(e.Right)
		l.emit(Instr{Op: op, Span: e.Sp})
	}
}

// lowerShortCircuit lowers && and || into a branch so the right operand
// only evaluates when it can still change the result.
func (l *lowerer) lowerShortCircuit(e *ast.BinaryExpr) {
	l.lowerExpr(e.Left)

	rhs := l.newBlock()
	short := l.newBlock()
	join := l.newBlock()

	d0 := l.depth - 1
	if e.Op == token.AND {
		l.term(&Branch{Then: rhs, Else: short})
	} else {
		l.term(&Branch{Then: short, Else: rhs})
	}

	l.startBlock(rhs, d0)
	l.lowerExpr(e.Right)
	l.term(&Goto{Target: join})

	l.startBlock(short, d0)
	l.emit(Instr{Op: OpConst, Const: Const{Kind: ConstBool, Bool: e.Op == token.OR}, Span: e.Sp})
	l.term(&Goto{Target: join})

	l.startBlock(join, d0+1)
}

// lowerMembership desugars `x in xs` into the contains builtin of the
// container. The element evaluates first, left to right, and is parked
// in a temp so the builtin still sees [container, element] on the stack.
// `not in` adds a NOT.
func (l *lowerer) lowerMembership(e *ast.BinaryExpr) {
	ct, ok := l.info.Types[e.Right]
	if !ok {
		panic("membership container has no type")
	}
	var id types.BuiltinID
	switch t := ct.(type) {
	case *types.List:
		id = types.BuiltinListContains
	case *types.Primitive:
		if t.Kind != types.KindAsPath {
			panic(fmt.Sprintf("bad membership container %s", ct))
		}
		id = types.BuiltinAsPathContains
	default:
		panic(fmt.Sprintf("bad membership container %s", ct))
	}
	l.lowerExpr(e.Left)
	tmp := l.newTemp()
	l.emit(Instr{Op: OpStore, A: tmp, Span: e.Left.Span()})
	l.lowerExpr(e.Right)
	l.emit(Instr{Op: OpLoad, A: tmp, Span: e.Left.Span()})
	l.emit(Instr{Op: OpBuiltin, A: int(id), B: 2, Span: e.Sp})
	if e.Negated {
		l.emit(Instr{Op: OpNot, Span: e.Sp})
	}
}

func (l *lowerer) lowerMethodCall(e *ast.MethodCallExpr) {
	l.lowerExpr(e.Recv)
	for _, a := range e.Args {
		l.lowerExpr(a)
	}
	if m, ok := l.info.Builtins[e]; ok {
		l.emit(Instr{Op: OpBuiltin, A: int(m.ID), B: len(e.Args) + 1, Span: e.Sp})
		return
	}
	if ref, ok := l.info.Externals[e]; ok {
		l.emit(Instr{Op: OpExternal, Ref: ref.String(), B: len(e.Args) + 1, Span: e.Sp})
		return
	}
	panic(fmt.Sprintf("method %s resolved to neither builtin nor external", e.Method.Name))
}

func (l *lowerer) lowerField(e *ast.FieldExpr) {
	l.lowerExpr(e.Recv)
	if ref, ok := l.info.Externals[e]; ok {
		l.emit(Instr{Op: OpExternal, Ref: ref.String(), B: 1, Span: e.Sp})
		return
	}
	t, ok := l.info.Types[e.Recv]
	if !ok {
		panic("field receiver has no type")
	}
	rec, ok := t.(*types.Record)
	if !ok {
		panic(fmt.Sprintf("field access on %s", t))
	}
	l.emit(Instr{
		Op:   OpGetField,
		A:    canonicalFieldIndex(rec, e.Field.Name),
		Name: e.Field.Name,
		Span: e.Sp,
	})
}

// canonicalFieldIndex returns the field's position in name order, the
// layout every record value is normalized to at construction. Structural
// typing makes declaration order meaningless at run time.
func canonicalFieldIndex(rec *types.Record, name string) int {
	names := make([]string, len(rec.Fields))
	for i, f := range rec.Fields {
		names[i] = f.Name
	}
	sort.Strings(names)
	for i, n := range names {
		if n == name {
			return i
		}
	}
	panic(fmt.Sprintf("record has no field %s", name))
}

func (l *lowerer) lowerEnumLit(e *ast.EnumExpr) {
	en := l.enumOf(e)
	tag, ok := en.VariantIndex(e.Variant.Name)
	if !ok {
		panic(fmt.Sprintf("unknown variant %s", e.Variant.Name))
	}
	payload := 0
	if e.Payload != nil {
		l.lowerExpr(e.Payload)
		payload = 1
	}
	l.emit(Instr{Op: OpMakeEnum, A: tag, B: payload, Span: e.Sp})
}

// lowerIfValue lowers an if in value position: each branch leaves one
// value for the join, unless it diverges through a terminal action.
func (l *lowerer) lowerIfValue(e *ast.IfExpr) {
	l.lowerExpr(e.Cond)

	thenB := l.newBlock()
	elseB := l.newBlock()
	join := l.newBlock()

	d0 := l.depth - 1
	l.term(&Branch{Then: thenB, Else: elseB})

	l.startBlock(thenB, d0)
	if !l.lowerBlockValue(e.Then) {
		l.term(&Goto{Target: join})
	}

	l.startBlock(elseB, d0)
	if !l.lowerBlockValue(e.Else) {
		l.term(&Goto{Target: join})
	}

	l.startBlock(join, d0+1)
}

// lowerBlockValue lowers a block whose trailing expression is its value.
// It reports whether the block diverged instead of producing one.
func (l *lowerer) lowerBlockValue(b *ast.Block) bool {
	for i, s := range b.Stmts {
		if i == len(b.Stmts)-1 {
			if es, ok := s.(*ast.ExprStmt); ok {
				l.lowerExpr(es.Value)
				return false
			}
		}
		if l.lowerStmt(s) {
			return true
		}
	}
	panic("value block without trailing expression")
}

func (l *lowerer) lowerMatchValue(e *ast.MatchExpr) {
	tmp, armBlocks, join := l.lowerMatchDispatch(e)
	d0 := l.depth

	for i, arm := range e.Arms {
		l.startBlock(armBlocks[i], d0)
		l.bindArm(tmp, arm)
		if !l.lowerBlockValue(arm.Body) {
			l.term(&Goto{Target: join})
		}
	}

	l.startBlock(join, d0+1)
}

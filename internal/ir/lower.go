package ir

import (
	"fmt"

	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/checker"
	"github.com/ruta-lang/ruta/internal/token"
	"github.com/ruta-lang/ruta/internal/types"
)

// Lower flattens a checked unit into basic blocks. It must only be called
// after checking finished without errors; anything it cannot lower is a
// compiler bug and comes back as an error, not a diagnostic.
func Lower(unit *ast.Unit, info *checker.Info) (*Program, error) {
	p := &Program{Unit: unit.Name, Index: map[string]int{}}

	// Stubs first, in declaration order, so calls can resolve the callee
	// index and result arity before bodies are lowered.
	for _, d := range unit.Decls {
		switch d := d.(type) {
		case *ast.FilterMapDecl:
			p.Index[d.Name.Name] = len(p.Funcs)
			p.Funcs = append(p.Funcs, &Func{
				Name:      d.Name.Name,
				Kind:      d.Kind,
				NumParams: len(d.Params),
			})
		case *ast.FunctionDecl:
			sig := info.Funcs[d.Name.Name]
			p.Index[d.Name.Name] = len(p.Funcs)
			p.Funcs = append(p.Funcs, &Func{
				Name:      d.Name.Name,
				Kind:      token.FUNCTION,
				NumParams: len(d.Params),
				HasResult: sig != nil && sig.Return != nil,
			})
		}
	}

	for _, d := range unit.Decls {
		l := &lowerer{info: info, prog: p}
		var err error
		switch d := d.(type) {
		case *ast.FilterMapDecl:
			err = l.lowerFunc(p.Funcs[p.Index[d.Name.Name]], d.Params, d.Body)
		case *ast.FunctionDecl:
			err = l.lowerFunc(p.Funcs[p.Index[d.Name.Name]], d.Params, d.Body)
		default:
			continue
		}
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// lowerer lowers one function. It models the operand stack depth as it
// emits, so terminators always leave the stack at the depth the calling
// convention expects.
type lowerer struct {
	info *checker.Info
	prog *Program
	fn   *Func

	cur   int // current block id
	depth int // static operand depth in the current block

	slots      map[*checker.Symbol]int
	resultTemp int // scratch slot for terminals below live temporaries
	hasResult  bool
}

func (l *lowerer) lowerFunc(fn *Func, params []*ast.Param, body *ast.Block) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lowering %s: %v", fn.Name, r)
		}
	}()

	l.fn = fn
	l.slots = make(map[*checker.Symbol]int)
	l.resultTemp = -1
	for _, p := range params {
		sym, ok := l.info.Defs[p.Name]
		if !ok {
			return fmt.Errorf("lowering %s: parameter %s has no symbol", fn.Name, p.Name.Name)
		}
		l.slots[sym] = fn.NumLocals
		fn.NumLocals++
	}

	l.startBlock(l.newBlock(), 0)
	l.lowerStmts(body.Stmts)

	// Any block left open is an unreachable join; close it so the
	// bytecode stage sees exactly one terminator per block.
	for _, b := range fn.Blocks {
		if b.Term == nil {
			if fn.Kind == token.FUNCTION {
				b.Term = &Ret{Action: ActionReturn}
			} else {
				b.Term = &Ret{Action: ActionReject}
			}
		}
	}
	return nil
}

func (l *lowerer) newBlock() int {
	l.fn.Blocks = append(l.fn.Blocks, &Block{})
	return len(l.fn.Blocks) - 1
}

func (l *lowerer) startBlock(id, depth int) {
	l.cur = id
	l.depth = depth
}

func (l *lowerer) block() *Block { return l.fn.Blocks[l.cur] }

// emit appends in to the current block and applies its stack effect.
func (l *lowerer) emit(in Instr) {
	l.block().Code = append(l.block().Code, in)
	l.depth += l.effect(in)
	if l.depth < 0 {
		panic(fmt.Sprintf("stack underflow after %s", in.Op))
	}
}

func (l *lowerer) effect(in Instr) int {
	switch in.Op {
	case OpConst, OpLoad:
		return 1
	case OpStore, OpPop:
		return -1
	case OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return -1
	case OpNeg, OpNot, OpGetField, OpEnumTag, OpEnumPay:
		return 0
	case OpCall:
		callee := l.prog.Funcs[in.A]
		if callee.HasResult {
			return 1 - in.B
		}
		return -in.B
	case OpBuiltin, OpExternal:
		return 1 - in.B
	case OpMakeList:
		return 1 - in.A
	case OpMakeRecord:
		return 1 - len(in.Shape)
	case OpMakeEnum:
		return 1 - in.B
	}
	panic(fmt.Sprintf("unknown opcode %d", in.Op))
}

// term closes the current block. Branch consumes the condition.
func (l *lowerer) term(t Terminator) {
	if l.block().Term != nil {
		panic("block terminated twice")
	}
	l.block().Term = t
	if _, ok := t.(*Branch); ok {
		l.depth--
	}
}

func (l *lowerer) slotFor(sym *checker.Symbol) int {
	if s, ok := l.slots[sym]; ok {
		return s
	}
	s := l.fn.NumLocals
	l.fn.NumLocals++
	l.slots[sym] = s
	return s
}

func (l *lowerer) newTemp() int {
	s := l.fn.NumLocals
	l.fn.NumLocals++
	return s
}

func (l *lowerer) scratchSlot() int {
	if l.resultTemp < 0 {
		l.resultTemp = l.newTemp()
	}
	return l.resultTemp
}

// lowerStmts lowers statements in order and reports whether every path
// terminated. Statements after a terminal are unreachable and skipped.
func (l *lowerer) lowerStmts(stmts []ast.Stmt) bool {
	for _, s := range stmts {
		if l.lowerStmt(s) {
			return true
		}
	}
	return false
}

func (l *lowerer) lowerStmt(s ast.Stmt) bool {
	switch s := s.(type) {
	case *ast.LetStmt:
		sym, ok := l.info.Defs[s.Name]
		if !ok {
			panic(fmt.Sprintf("let %s has no symbol", s.Name.Name))
		}
		l.lowerExpr(s.Value)
		l.emit(Instr{Op: OpStore, A: l.slotFor(sym), Span: s.Sp})
		return false
	case *ast.ReturnStmt:
		l.lowerTerminal(s)
		return true
	case *ast.ExprStmt:
		switch e := s.Value.(type) {
		case *ast.IfExpr:
			return l.lowerIfStmt(e)
		case *ast.MatchExpr:
			return l.lowerMatchStmt(e)
		default:
			l.lowerExpr(e)
			if _, produces := l.info.Types[e]; produces {
				l.emit(Instr{Op: OpPop, Span: e.Span()})
			}
			return false
		}
	}
	panic("unknown statement")
}

// lowerTerminal ends the invocation. When the terminal fires below live
// temporaries of an enclosing expression, those are drained first so the
// stack is exactly as deep as the return convention wants.
func (l *lowerer) lowerTerminal(s *ast.ReturnStmt) {
	var action Action
	switch s.Kind {
	case token.ACCEPT:
		action = ActionAccept
	case token.REJECT:
		action = ActionReject
	default:
		action = ActionReturn
	}

	hasValue := s.Value != nil
	if hasValue {
		l.lowerExpr(s.Value)
	}
	residue := l.depth
	if hasValue {
		residue--
	}
	if residue > 0 {
		if hasValue {
			scratch := l.scratchSlot()
			l.emit(Instr{Op: OpStore, A: scratch, Span: s.Sp})
			for i := 0; i < residue; i++ {
				l.emit(Instr{Op: OpPop, Span: s.Sp})
			}
			l.emit(Instr{Op: OpLoad, A: scratch, Span: s.Sp})
		} else {
			for i := 0; i < residue; i++ {
				l.emit(Instr{Op: OpPop, Span: s.Sp})
			}
		}
	}
	l.term(&Ret{Action: action, HasValue: hasValue})
}

// lowerIfStmt lowers an if in statement position and reports whether both
// branches terminated.
func (l *lowerer) lowerIfStmt(e *ast.IfExpr) bool {
	l.lowerExpr(e.Cond)

	thenB := l.newBlock()
	elseB := -1
	if e.Else != nil {
		elseB = l.newBlock()
	}
	join := l.newBlock()

	d0 := l.depth - 1 // Branch pops the condition
	if e.Else != nil {
		l.term(&Branch{Then: thenB, Else: elseB})
	} else {
		l.term(&Branch{Then: thenB, Else: join})
	}

	l.startBlock(thenB, d0)
	thenDone := l.lowerStmts(e.Then.Stmts)
	if !thenDone {
		l.term(&Goto{Target: join})
	}

	elseDone := false
	if e.Else != nil {
		l.startBlock(elseB, d0)
		elseDone = l.lowerStmts(e.Else.Stmts)
		if !elseDone {
			l.term(&Goto{Target: join})
		}
	}

	l.startBlock(join, d0)
	return thenDone && elseDone && e.Else != nil
}

// lowerMatchStmt lowers a match in statement position. Checking already
// proved the match exhaustive, so the last dispatch is unconditional.
func (l *lowerer) lowerMatchStmt(e *ast.MatchExpr) bool {
	tmp, armBlocks, join := l.lowerMatchDispatch(e)
	d0 := l.depth

	allDone := true
	for i, arm := range e.Arms {
		l.startBlock(armBlocks[i], d0)
		l.bindArm(tmp, arm)
		if l.lowerStmts(arm.Body.Stmts) {
			continue
		}
		allDone = false
		l.term(&Goto{Target: join})
	}

	l.startBlock(join, d0)
	return allDone
}

// lowerMatchDispatch stores the subject in a temp and emits the tag-test
// chain. On return the current block is fully terminated; callers lower
// the arm bodies into the returned blocks and converge on join.
func (l *lowerer) lowerMatchDispatch(e *ast.MatchExpr) (tmp int, armBlocks []int, join int) {
	en := l.enumOf(e.Subject)

	l.lowerExpr(e.Subject)
	tmp = l.newTemp()
	l.emit(Instr{Op: OpStore, A: tmp, Span: e.Subject.Span()})

	armBlocks = make([]int, len(e.Arms))
	for i := range e.Arms {
		armBlocks[i] = l.newBlock()
	}
	join = l.newBlock()

	d0 := l.depth
	for i, arm := range e.Arms {
		if arm.Wildcard || i == len(e.Arms)-1 {
			l.term(&Goto{Target: armBlocks[i]})
			break
		}
		tag, ok := en.VariantIndex(arm.Variant.Name)
		if !ok {
			panic(fmt.Sprintf("unknown variant %s", arm.Variant.Name))
		}
		l.emit(Instr{Op: OpLoad, A: tmp, Span: arm.Sp})
		l.emit(Instr{Op: OpEnumTag, Span: arm.Sp})
		l.emit(Instr{Op: OpConst, Const: Const{Kind: ConstInt, Int: int64(tag)}, Span: arm.Sp})
		l.emit(Instr{Op: OpEq, Span: arm.Sp})
		next := l.newBlock()
		l.term(&Branch{Then: armBlocks[i], Else: next})
		l.startBlock(next, d0)
	}
	return tmp, armBlocks, join
}

// bindArm stores the variant payload into the arm's binding, if any.
func (l *lowerer) bindArm(tmp int, arm *ast.MatchArm) {
	if arm.Binding == nil {
		return
	}
	sym, ok := l.info.Defs[arm.Binding]
	if !ok {
		panic(fmt.Sprintf("binding %s has no symbol", arm.Binding.Name))
	}
	l.emit(Instr{Op: OpLoad, A: tmp, Span: arm.Binding.Sp})
	l.emit(Instr{Op: OpEnumPay, Span: arm.Binding.Sp})
	l.emit(Instr{Op: OpStore, A: l.slotFor(sym), Span: arm.Binding.Sp})
}

func (l *lowerer) enumOf(subject ast.Expr) *types.Enum {
	t, ok := l.info.Types[subject]
	if !ok {
		panic("match subject has no type")
	}
	en, ok := t.(*types.Enum)
	if !ok {
		panic("match subject is not an enum")
	}
	return en
}

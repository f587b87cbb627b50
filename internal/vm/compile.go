package vm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ruta-lang/ruta/internal/ir"
)

// Compile turns the lowered unit into an executable Program. The output is
// deterministic for identical input apart from BuildID: pools are interned
// in first-use order and every chunk is verified before the Program is
// returned.
func Compile(unit *ir.Program) (*Program, error) {
	c := &compiler{
		prog: &Program{
			BuildID: uuid.NewString(),
			Unit:    unit.Unit,
			Index:   make(map[string]int, len(unit.Funcs)),
		},
		constIdx: make(map[ir.Const]int),
		shapeIdx: make(map[string]int),
		extIdx:   make(map[string]int),
	}
	for i, fn := range unit.Funcs {
		chunk, err := c.compileFunc(fn)
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", fn.Name, err)
		}
		c.prog.Funcs = append(c.prog.Funcs, chunk)
		c.prog.Index[fn.Name] = i
	}
	for _, chunk := range c.prog.Funcs {
		max, err := verifyChunk(c.prog, chunk)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", chunk.Name, err)
		}
		chunk.MaxStack = max
	}
	return c.prog, nil
}

type compiler struct {
	prog     *Program
	constIdx map[ir.Const]int
	shapeIdx map[string]int
	extIdx   map[string]int
}

func (c *compiler) internConst(k ir.Const) int {
	if i, ok := c.constIdx[k]; ok {
		return i
	}
	i := len(c.prog.Consts)
	c.prog.Consts = append(c.prog.Consts, constValue(k))
	c.constIdx[k] = i
	return i
}

func (c *compiler) internShape(pushOrder []string) int {
	key := strings.Join(pushOrder, "\x00")
	if i, ok := c.shapeIdx[key]; ok {
		return i
	}
	i := len(c.prog.Shapes)
	c.prog.Shapes = append(c.prog.Shapes, shapeOf(pushOrder))
	c.shapeIdx[key] = i
	return i
}

func (c *compiler) internExternal(ref string, argc int) int {
	if i, ok := c.extIdx[ref]; ok {
		return i
	}
	i := len(c.prog.Externals)
	c.prog.Externals = append(c.prog.Externals, ExternalDecl{Ref: ref, Argc: argc})
	c.extIdx[ref] = i
	return i
}

func constValue(k ir.Const) Value {
	switch k.Kind {
	case ir.ConstBool:
		return BoolVal(k.Bool)
	case ir.ConstInt:
		return IntVal(k.Int)
	case ir.ConstString:
		return StringVal(k.Str)
	case ir.ConstAddr:
		return AddrVal(k.Addr)
	case ir.ConstPrefix:
		return PrefixVal(k.Prefix)
	case ir.ConstAsn:
		return AsnVal(k.Word)
	case ir.ConstCommunity:
		return CommunityVal(k.Word)
	}
	panic(fmt.Sprintf("unknown constant kind %d", k.Kind))
}

// jumpFix is a 2-byte operand awaiting a block offset.
type jumpFix struct {
	at    int
	block int
}

func (c *compiler) compileFunc(fn *ir.Func) (*Chunk, error) {
	chunk := newChunk(fn.Name, fn.Kind)
	chunk.NumParams = fn.NumParams
	chunk.NumLocals = fn.NumLocals
	chunk.HasResult = fn.HasResult

	starts := make([]int, len(fn.Blocks))
	var fixes []jumpFix

	for id, bl := range fn.Blocks {
		starts[id] = len(chunk.Code)
		for _, ins := range bl.Code {
			c.compileInstr(chunk, ins)
		}
		sp := chunk.spanAt(len(chunk.Code) - 1)
		switch t := bl.Term.(type) {
		case *ir.Goto:
			// Fallthrough needs no jump.
			if t.Target != id+1 {
				chunk.writeOp(OP_JUMP, sp)
				fixes = append(fixes, jumpFix{at: len(chunk.Code), block: t.Target})
				chunk.writeU16(0, sp)
			}
		case *ir.Branch:
			chunk.writeOp(OP_JUMP_IF_FALSE, sp)
			fixes = append(fixes, jumpFix{at: len(chunk.Code), block: t.Else})
			chunk.writeU16(0, sp)
			if t.Then != id+1 {
				chunk.writeOp(OP_JUMP, sp)
				fixes = append(fixes, jumpFix{at: len(chunk.Code), block: t.Then})
				chunk.writeU16(0, sp)
			}
		case *ir.Ret:
			chunk.writeOp(terminalOp(fn, t), sp)
		default:
			return nil, fmt.Errorf("block %d has no terminator", id)
		}
	}
	for _, f := range fixes {
		chunk.patchU16(f.at, starts[f.block])
	}
	return chunk, nil
}

func terminalOp(fn *ir.Func, t *ir.Ret) Opcode {
	switch t.Action {
	case ir.ActionAccept:
		if t.HasValue {
			return OP_ACCEPT_VAL
		}
		return OP_ACCEPT
	case ir.ActionReject:
		return OP_REJECT
	default:
		if t.HasValue {
			return OP_RETURN
		}
		return OP_RETURN_VOID
	}
}

func (c *compiler) compileInstr(chunk *Chunk, ins ir.Instr) {
	sp := ins.Span
	switch ins.Op {
	case ir.OpConst:
		chunk.writeOp(OP_CONST, sp)
		chunk.writeU16(c.internConst(ins.Const), sp)
	case ir.OpLoad:
		chunk.writeOp(OP_LOAD, sp)
		chunk.writeU16(ins.A, sp)
	case ir.OpStore:
		chunk.writeOp(OP_STORE, sp)
		chunk.writeU16(ins.A, sp)
	case ir.OpPop:
		chunk.writeOp(OP_POP, sp)
	case ir.OpAdd:
		chunk.writeOp(OP_ADD, sp)
	case ir.OpSub:
		chunk.writeOp(OP_SUB, sp)
	case ir.OpMul:
		chunk.writeOp(OP_MUL, sp)
	case ir.OpDiv:
		chunk.writeOp(OP_DIV, sp)
	case ir.OpMod:
		chunk.writeOp(OP_MOD, sp)
	case ir.OpNeg:
		chunk.writeOp(OP_NEG, sp)
	case ir.OpEq:
		chunk.writeOp(OP_EQ, sp)
	case ir.OpNe:
		chunk.writeOp(OP_NE, sp)
	case ir.OpLt:
		chunk.writeOp(OP_LT, sp)
	case ir.OpLe:
		chunk.writeOp(OP_LE, sp)
	case ir.OpGt:
		chunk.writeOp(OP_GT, sp)
	case ir.OpGe:
		chunk.writeOp(OP_GE, sp)
	case ir.OpNot:
		chunk.writeOp(OP_NOT, sp)
	case ir.OpCall:
		chunk.writeOp(OP_CALL, sp)
		chunk.writeU16(ins.A, sp)
		chunk.writeU16(ins.B, sp)
	case ir.OpBuiltin:
		chunk.writeOp(OP_BUILTIN, sp)
		chunk.writeU16(ins.A, sp)
		chunk.writeU16(ins.B, sp)
	case ir.OpExternal:
		chunk.writeOp(OP_EXTERNAL, sp)
		chunk.writeU16(c.internExternal(ins.Ref, ins.B), sp)
	case ir.OpMakeList:
		chunk.writeOp(OP_MAKE_LIST, sp)
		chunk.writeU16(ins.A, sp)
	case ir.OpMakeRecord:
		chunk.writeOp(OP_MAKE_RECORD, sp)
		chunk.writeU16(c.internShape(ins.Shape), sp)
	case ir.OpGetField:
		chunk.writeOp(OP_GET_FIELD, sp)
		chunk.writeU16(ins.A, sp)
	case ir.OpMakeEnum:
		chunk.writeOp(OP_MAKE_ENUM, sp)
		chunk.writeU16(ins.A, sp)
		chunk.writeU16(ins.B, sp)
	case ir.OpEnumTag:
		chunk.writeOp(OP_ENUM_TAG, sp)
	case ir.OpEnumPay:
		chunk.writeOp(OP_ENUM_PAYLOAD, sp)
	default:
		panic(fmt.Sprintf("unknown instruction %s", ins.Op))
	}
}

package vm

import "fmt"

// verifyChunk walks every reachable path through the chunk, tracking stack
// depth. It proves three properties before a Program is released: no
// instruction pops below depth zero, every offset is reached at one
// consistent depth, and every terminal fires with the stack holding exactly
// its operands. The returned maximum depth sizes the operand stack at
// attach time.
func verifyChunk(p *Program, c *Chunk) (int, error) {
	depths := make(map[int]int)
	work := []int{0}
	depths[0] = 0
	max := 0

	push := func(offset, depth int) error {
		if offset < 0 || offset >= len(c.Code) {
			return fmt.Errorf("jump target %d outside code", offset)
		}
		if prev, seen := depths[offset]; seen {
			if prev != depth {
				return fmt.Errorf("offset %d reached at depths %d and %d", offset, prev, depth)
			}
			return nil
		}
		depths[offset] = depth
		work = append(work, offset)
		return nil
	}

	for len(work) > 0 {
		offset := work[len(work)-1]
		work = work[:len(work)-1]
		depth := depths[offset]

		op := Opcode(c.Code[offset])
		operands, known := operandCounts[op]
		if !known {
			return 0, fmt.Errorf("offset %d: unknown opcode 0x%02x", offset, byte(op))
		}
		end := offset + 1 + 2*operands
		if end > len(c.Code) {
			return 0, fmt.Errorf("offset %d: truncated %s", offset, OpcodeNames[op])
		}
		arg := func(i int) int { return c.readU16(offset + 1 + 2*i) }

		pops, pushes, err := stackEffect(p, c, op, arg)
		if err != nil {
			return 0, fmt.Errorf("offset %d: %w", offset, err)
		}
		if depth < pops {
			return 0, fmt.Errorf("offset %d: %s pops %d at depth %d", offset, OpcodeNames[op], pops, depth)
		}
		next := depth - pops + pushes
		if next > max {
			max = next
		}

		switch op {
		case OP_RETURN, OP_ACCEPT_VAL, OP_RETURN_VOID, OP_ACCEPT, OP_REJECT:
			if next != 0 {
				return 0, fmt.Errorf("offset %d: %s leaves %d residual values", offset, OpcodeNames[op], next)
			}
		case OP_JUMP:
			if err := push(arg(0), next); err != nil {
				return 0, err
			}
		case OP_JUMP_IF_FALSE:
			if err := push(arg(0), next); err != nil {
				return 0, err
			}
			if err := push(end, next); err != nil {
				return 0, err
			}
		default:
			if err := push(end, next); err != nil {
				return 0, err
			}
		}
	}
	return max, nil
}

// stackEffect reports how many values the instruction pops and pushes,
// validating its operands against the Program's tables as a side effect.
func stackEffect(p *Program, c *Chunk, op Opcode, arg func(int) int) (pops, pushes int, err error) {
	switch op {
	case OP_CONST:
		if arg(0) >= len(p.Consts) {
			return 0, 0, fmt.Errorf("constant index %d out of range", arg(0))
		}
		return 0, 1, nil
	case OP_POP:
		return 1, 0, nil
	case OP_LOAD:
		if arg(0) >= c.NumLocals {
			return 0, 0, fmt.Errorf("local slot %d out of range", arg(0))
		}
		return 0, 1, nil
	case OP_STORE:
		if arg(0) >= c.NumLocals {
			return 0, 0, fmt.Errorf("local slot %d out of range", arg(0))
		}
		return 1, 0, nil
	case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD,
		OP_EQ, OP_NE, OP_LT, OP_LE, OP_GT, OP_GE:
		return 2, 1, nil
	case OP_NEG, OP_NOT:
		return 1, 1, nil
	case OP_JUMP:
		return 0, 0, nil
	case OP_JUMP_IF_FALSE:
		return 1, 0, nil
	case OP_CALL:
		fi := arg(0)
		if fi >= len(p.Funcs) {
			return 0, 0, fmt.Errorf("function index %d out of range", fi)
		}
		callee := p.Funcs[fi]
		if arg(1) != callee.NumParams {
			return 0, 0, fmt.Errorf("call %s with %d arguments, want %d", callee.Name, arg(1), callee.NumParams)
		}
		pushes = 0
		if callee.HasResult {
			pushes = 1
		}
		return arg(1), pushes, nil
	case OP_BUILTIN:
		return arg(1), 1, nil
	case OP_EXTERNAL:
		ei := arg(0)
		if ei >= len(p.Externals) {
			return 0, 0, fmt.Errorf("external index %d out of range", ei)
		}
		return p.Externals[ei].Argc, 1, nil
	case OP_MAKE_LIST:
		return arg(0), 1, nil
	case OP_MAKE_RECORD:
		si := arg(0)
		if si >= len(p.Shapes) {
			return 0, 0, fmt.Errorf("shape index %d out of range", si)
		}
		return len(p.Shapes[si].Fields), 1, nil
	case OP_GET_FIELD:
		return 1, 1, nil
	case OP_MAKE_ENUM:
		return arg(1), 1, nil
	case OP_ENUM_TAG, OP_ENUM_PAYLOAD:
		return 1, 1, nil
	case OP_RETURN, OP_ACCEPT_VAL:
		return 1, 0, nil
	case OP_RETURN_VOID, OP_ACCEPT, OP_REJECT:
		return 0, 0, nil
	}
	return 0, 0, fmt.Errorf("no stack effect for %s", OpcodeNames[op])
}

package vm

import (
	"fmt"
	"strings"
)

// Disassemble renders the whole Program in a readable form for the CLI
// and for debugging compiler changes.
func Disassemble(p *Program) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "unit %s\n", p.Unit)
	if len(p.Consts) > 0 {
		sb.WriteString("consts:\n")
		for i, v := range p.Consts {
			fmt.Fprintf(&sb, "  [%d] %s\n", i, v)
		}
	}
	if len(p.Externals) > 0 {
		sb.WriteString("externals:\n")
		for i, e := range p.Externals {
			fmt.Fprintf(&sb, "  [%d] %s/%d\n", i, e.Ref, e.Argc)
		}
	}
	if len(p.Shapes) > 0 {
		sb.WriteString("shapes:\n")
		for i, s := range p.Shapes {
			fmt.Fprintf(&sb, "  [%d] {%s}\n", i, strings.Join(s.Fields, ", "))
		}
	}
	for _, c := range p.Funcs {
		sb.WriteString("\n")
		sb.WriteString(DisassembleChunk(p, c))
	}
	return sb.String()
}

// DisassembleChunk renders one chunk with resolved operands.
func DisassembleChunk(p *Program, c *Chunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s (params=%d locals=%d maxstack=%d)\n",
		strings.ToLower(string(c.Kind)), c.Name, c.NumParams, c.NumLocals, c.MaxStack)
	for offset := 0; offset < len(c.Code); {
		offset = disasmInstr(&sb, p, c, offset)
	}
	return sb.String()
}

func disasmInstr(sb *strings.Builder, p *Program, c *Chunk, offset int) int {
	op := Opcode(c.Code[offset])
	name, known := OpcodeNames[op]
	if !known {
		fmt.Fprintf(sb, "  %04d BAD 0x%02x\n", offset, byte(op))
		return offset + 1
	}
	operands := operandCounts[op]
	args := make([]int, operands)
	for i := range args {
		args[i] = c.readU16(offset + 1 + 2*i)
	}

	fmt.Fprintf(sb, "  %04d %-14s", offset, name)
	switch op {
	case OP_CONST:
		fmt.Fprintf(sb, "%d (%s)", args[0], p.Consts[args[0]])
	case OP_CALL:
		fmt.Fprintf(sb, "%d (%s) argc=%d", args[0], p.Funcs[args[0]].Name, args[1])
	case OP_EXTERNAL:
		fmt.Fprintf(sb, "%d (%s)", args[0], p.Externals[args[0]].Ref)
	case OP_MAKE_RECORD:
		fmt.Fprintf(sb, "%d {%s}", args[0], strings.Join(p.Shapes[args[0]].Fields, ", "))
	default:
		for i, a := range args {
			if i > 0 {
				sb.WriteString(" ")
			}
			fmt.Fprintf(sb, "%d", a)
		}
	}
	sb.WriteString("\n")
	return offset + 1 + 2*operands
}

// Package vm holds the bytecode backend: the compiler from the flattened
// middle form, the stack-effect verifier, the immutable Program artifact
// and the interpreter that runs one compiled function per invocation.
package vm

// Opcode is a single VM instruction. All operands are 2 bytes.
type Opcode byte

const (
	// Stack and locals
	OP_CONST Opcode = iota // push constant by pool index
	OP_POP                 // discard top of stack
	OP_LOAD                // push local slot
	OP_STORE               // pop into local slot

	// Arithmetic (Int)
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_NEG // unary minus

	// Comparison
	OP_EQ
	OP_NE
	OP_LT
	OP_LE
	OP_GT
	OP_GE

	// Logic
	OP_NOT

	// Control flow; jump targets are absolute chunk offsets
	OP_JUMP
	OP_JUMP_IF_FALSE

	// Calls
	OP_CALL     // function index, argument count
	OP_BUILTIN  // builtin id, operand count including receiver
	OP_EXTERNAL // external-call table index

	// Construction and access
	OP_MAKE_LIST    // element count
	OP_MAKE_RECORD  // shape table index
	OP_GET_FIELD    // canonical field index
	OP_MAKE_ENUM    // variant tag, payload flag
	OP_ENUM_TAG     // replace enum with its tag as Int
	OP_ENUM_PAYLOAD // replace enum with its payload

	// Terminal actions
	OP_RETURN      // pop result, return it
	OP_RETURN_VOID // return nothing
	OP_ACCEPT      // accept without payload
	OP_ACCEPT_VAL  // pop payload, accept with it
	OP_REJECT      // reject
)

// OpcodeNames maps opcodes to their names for disassembly.
var OpcodeNames = map[Opcode]string{
	OP_CONST:         "CONST",
	OP_POP:           "POP",
	OP_LOAD:          "LOAD",
	OP_STORE:         "STORE",
	OP_ADD:           "ADD",
	OP_SUB:           "SUB",
	OP_MUL:           "MUL",
	OP_DIV:           "DIV",
	OP_MOD:           "MOD",
	OP_NEG:           "NEG",
	OP_EQ:            "EQ",
	OP_NE:            "NE",
	OP_LT:            "LT",
	OP_LE:            "LE",
	OP_GT:            "GT",
	OP_GE:            "GE",
	OP_NOT:           "NOT",
	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_CALL:          "CALL",
	OP_BUILTIN:       "BUILTIN",
	OP_EXTERNAL:      "EXTERNAL",
	OP_MAKE_LIST:     "MAKE_LIST",
	OP_MAKE_RECORD:   "MAKE_RECORD",
	OP_GET_FIELD:     "GET_FIELD",
	OP_MAKE_ENUM:     "MAKE_ENUM",
	OP_ENUM_TAG:      "ENUM_TAG",
	OP_ENUM_PAYLOAD:  "ENUM_PAYLOAD",
	OP_RETURN:        "RETURN",
	OP_RETURN_VOID:   "RETURN_VOID",
	OP_ACCEPT:        "ACCEPT",
	OP_ACCEPT_VAL:    "ACCEPT_VAL",
	OP_REJECT:        "REJECT",
}

// operandCounts is the number of 2-byte operands each opcode carries. The
// verifier and disassembler both decode against it.
var operandCounts = map[Opcode]int{
	OP_CONST:         1,
	OP_POP:           0,
	OP_LOAD:          1,
	OP_STORE:         1,
	OP_ADD:           0,
	OP_SUB:           0,
	OP_MUL:           0,
	OP_DIV:           0,
	OP_MOD:           0,
	OP_NEG:           0,
	OP_EQ:            0,
	OP_NE:            0,
	OP_LT:            0,
	OP_LE:            0,
	OP_GT:            0,
	OP_GE:            0,
	OP_NOT:           0,
	OP_JUMP:          1,
	OP_JUMP_IF_FALSE: 1,
	OP_CALL:          2,
	OP_BUILTIN:       2,
	OP_EXTERNAL:      1,
	OP_MAKE_LIST:     1,
	OP_MAKE_RECORD:   1,
	OP_GET_FIELD:     1,
	OP_MAKE_ENUM:     2,
	OP_ENUM_TAG:      0,
	OP_ENUM_PAYLOAD:  0,
	OP_RETURN:        0,
	OP_RETURN_VOID:   0,
	OP_ACCEPT:        0,
	OP_ACCEPT_VAL:    0,
	OP_REJECT:        0,
}

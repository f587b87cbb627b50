// Package ir is the flattened middle form between the typed AST and
// bytecode. Each function becomes a list of basic blocks with exactly one
// terminator; expressions are stack-oriented instructions whose net stack
// effect is statically known, so the bytecode stage can verify depth along
// every path.
package ir

import (
	"fmt"
	"net/netip"

	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
)

// Op is an IR opcode.
type Op int

const (
	OpConst Op = iota // push Const
	OpLoad            // push local slot A
	OpStore           // pop into local slot A
	OpPop             // discard top

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpNot

	OpCall     // call function A with B arguments
	OpBuiltin  // builtin method A, B operands including the receiver
	OpExternal // external call Ref, B operands including the receiver

	OpMakeList   // pop A elements, push list
	OpMakeRecord // pop len(Shape) values, push record in canonical order
	OpGetField   // replace record with field at canonical index A
	OpMakeEnum   // pop B (0 or 1) payload values, push variant with tag A
	OpEnumTag    // replace enum value with its tag as Int
	OpEnumPay    // replace enum value with its payload
)

var opNames = map[Op]string{
	OpConst:      "CONST",
	OpLoad:       "LOAD",
	OpStore:      "STORE",
	OpPop:        "POP",
	OpAdd:        "ADD",
	OpSub:        "SUB",
	OpMul:        "MUL",
	OpDiv:        "DIV",
	OpMod:        "MOD",
	OpNeg:        "NEG",
	OpEq:         "EQ",
	OpNe:         "NE",
	OpLt:         "LT",
	OpLe:         "LE",
	OpGt:         "GT",
	OpGe:         "GE",
	OpNot:        "NOT",
	OpCall:       "CALL",
	OpBuiltin:    "BUILTIN",
	OpExternal:   "EXTERNAL",
	OpMakeList:   "MAKE_LIST",
	OpMakeRecord: "MAKE_RECORD",
	OpGetField:   "GET_FIELD",
	OpMakeEnum:   "MAKE_ENUM",
	OpEnumTag:    "ENUM_TAG",
	OpEnumPay:    "ENUM_PAY",
}

func (op Op) String() string { return opNames[op] }

// ConstKind tags a Const.
type ConstKind int

const (
	ConstBool ConstKind = iota
	ConstInt
	ConstString
	ConstAddr
	ConstPrefix
	ConstAsn
	ConstCommunity
)

// Const is a compile-time constant. The struct is comparable so the
// bytecode stage can intern by value.
type Const struct {
	Kind   ConstKind
	Bool   bool
	Int    int64
	Str    string
	Addr   netip.Addr
	Prefix netip.Prefix
	Word   uint32 // Asn and Community payloads
}

func (c Const) String() string {
	switch c.Kind {
	case ConstBool:
		return fmt.Sprintf("%t", c.Bool)
	case ConstInt:
		return fmt.Sprintf("%d", c.Int)
	case ConstString:
		return fmt.Sprintf("%q", c.Str)
	case ConstAddr:
		return c.Addr.String()
	case ConstPrefix:
		return c.Prefix.String()
	case ConstAsn:
		return fmt.Sprintf("AS%d", c.Word)
	case ConstCommunity:
		return fmt.Sprintf("%d:%d", c.Word>>16, c.Word&0xFFFF)
	}
	return "?"
}

// Instr is one IR instruction. A and B are opcode-specific small operands;
// Const, Ref, Name and Shape carry the larger payloads for the opcodes
// that need them.
type Instr struct {
	Op    Op
	A, B  int
	Const Const
	Ref   string   // OpExternal: "Type.member"
	Name  string   // OpGetField: field name, for dumps
	Shape []string // OpMakeRecord: field names in push order
	Span  diag.Span
}

// Terminator ends a basic block.
type Terminator interface {
	termNode()
}

// Goto jumps unconditionally.
type Goto struct {
	Target int
}

// Branch pops a Bool and jumps.
type Branch struct {
	Then int
	Else int
}

// Action is what a Ret terminator does.
type Action int

const (
	ActionReturn Action = iota
	ActionAccept
	ActionReject
)

// Ret ends the invocation. HasValue means one value is popped as the
// result or accept payload.
type Ret struct {
	Action   Action
	HasValue bool
}

func (*Goto) termNode()   {}
func (*Branch) termNode() {}
func (*Ret) termNode()    {}

// Block is one basic block; its position in Func.Blocks is its id.
type Block struct {
	Code []Instr
	Term Terminator
}

// Func is one lowered function or policy.
type Func struct {
	Name      string
	Kind      token.Type // token.FUNCTION, token.FILTERMAP or token.FILTER
	NumParams int
	NumLocals int // slot count, parameters included
	HasResult bool
	Blocks    []*Block
}

// Program is the lowered unit. Function order follows declaration order,
// which keeps downstream bytecode deterministic.
type Program struct {
	Unit  string
	Funcs []*Func
	Index map[string]int
}

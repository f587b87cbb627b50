package vm

import (
	"fmt"

	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
)

// FaultKind classifies a runtime failure. Termination by the program
// itself, accept or reject, is not a fault; it comes back as an Outcome.
type FaultKind int

const (
	// FaultResourceExhausted means the instruction budget ran out.
	FaultResourceExhausted FaultKind = iota
	// FaultExternalCall means a host binding returned an error.
	FaultExternalCall
	// FaultArithmetic means an integer operation had no defined
	// result, such as division by zero.
	FaultArithmetic
	// FaultInvalidState means the interpreter hit a condition the
	// verifier should have made impossible. It indicates a compiler or
	// host bug, never a user error.
	FaultInvalidState
)

var faultKindNames = map[FaultKind]string{
	FaultResourceExhausted: "resource exhausted",
	FaultExternalCall:      "external call failed",
	FaultArithmetic:        "arithmetic error",
	FaultInvalidState:      "invalid state",
}

// Fault is a runtime error with its source location.
type Fault struct {
	Kind FaultKind
	Msg  string
	Span diag.Span
	Err  error
}

func (f *Fault) Error() string {
	if f.Msg == "" {
		return faultKindNames[f.Kind]
	}
	return fmt.Sprintf("%s: %s", faultKindNames[f.Kind], f.Msg)
}

func (f *Fault) Unwrap() error { return f.Err }

// OutcomeKind says how the invocation ended.
type OutcomeKind int

const (
	OutcomeAccept OutcomeKind = iota
	OutcomeReject
	OutcomeReturn
)

var outcomeKindNames = map[OutcomeKind]string{
	OutcomeAccept: "accept",
	OutcomeReject: "reject",
	OutcomeReturn: "return",
}

func (k OutcomeKind) String() string { return outcomeKindNames[k] }

// Outcome is the normal result of running an entrypoint. HasValue is set
// when an accept carried a payload or a function returned a result.
type Outcome struct {
	Kind     OutcomeKind
	Value    Value
	HasValue bool
}

// ExternalFunc is a host callable bound to one external-call table entry.
// args[0] is the receiver. Returning an error aborts the invocation with
// an external-call fault.
type ExternalFunc func(args []Value) (Value, error)

// Options tunes a Machine.
type Options struct {
	// Budget is the instruction limit per invocation. Zero means
	// DefaultBudget.
	Budget int
}

// DefaultBudget bounds one invocation when Options.Budget is zero.
const DefaultBudget = 100000

// Machine executes one Program. It is immutable after Attach and safe for
// concurrent Run calls.
type Machine struct {
	prog      *Program
	externals []ExternalFunc // indexed like prog.Externals
	budget    int
}

// Attach binds a verified Program to its host callables. Every entry of
// the external-call table must have a binding; unused bindings are
// ignored.
func Attach(prog *Program, bindings map[string]ExternalFunc, opts Options) (*Machine, error) {
	if prog == nil {
		return nil, fmt.Errorf("attach: nil program")
	}
	externals := make([]ExternalFunc, len(prog.Externals))
	for i, decl := range prog.Externals {
		fn, ok := bindings[decl.Ref]
		if !ok {
			return nil, fmt.Errorf("attach: no binding for external call %s", decl.Ref)
		}
		externals[i] = fn
	}
	budget := opts.Budget
	if budget == 0 {
		budget = DefaultBudget
	}
	m := &Machine{prog: prog, externals: externals, budget: budget}
	return m, nil
}

// Program returns the attached Program.
func (m *Machine) Program() *Program { return m.prog }

// frame is one active function invocation. Locals live in the shared
// stack at base..base+NumLocals; the operand area sits above them.
type frame struct {
	chunk *Chunk
	ip    int
	base  int
}

type runStats struct {
	steps    int
	maxStack int // deepest operand stack of any frame
}

// Run executes the named entrypoint with the given arguments. Arguments
// fill the entry's parameter slots; for a filtermap or filter the first
// argument is the route under evaluation.
func (m *Machine) Run(entry string, args []Value) (Outcome, error) {
	out, _, err := m.run(entry, args)
	return out, err
}

func (m *Machine) run(entry string, args []Value) (out Outcome, stats runStats, err error) {
	chunk, ok := m.prog.Entry(entry)
	if !ok {
		return out, stats, fmt.Errorf("run: no entrypoint %q", entry)
	}
	if len(args) != chunk.NumParams {
		return out, stats, fmt.Errorf("run %s: got %d arguments, want %d", entry, len(args), chunk.NumParams)
	}

	var f frame
	defer func() {
		if r := recover(); r != nil {
			err = &Fault{
				Kind: FaultInvalidState,
				Msg:  fmt.Sprintf("%v", r),
				Span: f.chunk.spanAt(f.ip),
			}
		}
	}()

	stack := make([]Value, chunk.NumLocals, chunk.NumLocals+chunk.MaxStack)
	copy(stack, args)
	frames := []frame{{chunk: chunk}}
	remaining := m.budget

	for {
		f = frames[len(frames)-1]
		c := f.chunk

		if remaining == 0 {
			return out, stats, &Fault{
				Kind: FaultResourceExhausted,
				Msg:  fmt.Sprintf("instruction budget of %d exhausted in %s", m.budget, c.Name),
				Span: c.spanAt(f.ip),
			}
		}
		remaining--
		stats.steps++
		if d := len(stack) - f.base - c.NumLocals; d > stats.maxStack {
			stats.maxStack = d
		}

		op := Opcode(c.Code[f.ip])
		at := f.ip
		f.ip += 1 + 2*operandCounts[op]
		frames[len(frames)-1] = f
		arg := func(i int) int { return c.readU16(at + 1 + 2*i) }

		switch op {
		case OP_CONST:
			stack = append(stack, m.prog.Consts[arg(0)])
		case OP_POP:
			stack = stack[:len(stack)-1]
		case OP_LOAD:
			stack = append(stack, stack[f.base+arg(0)])
		case OP_STORE:
			stack[f.base+arg(0)] = stack[len(stack)-1]
			stack = stack[:len(stack)-1]

		case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD:
			b := stack[len(stack)-1].AsInt()
			a := stack[len(stack)-2].AsInt()
			stack = stack[:len(stack)-2]
			var r int64
			switch op {
			case OP_ADD:
				r = a + b
			case OP_SUB:
				r = a - b
			case OP_MUL:
				r = a * b
			case OP_DIV:
				if b == 0 {
					return out, stats, &Fault{
						Kind: FaultArithmetic,
						Msg:  "division by zero",
						Span: c.spanAt(at),
					}
				}
				r = a / b
			case OP_MOD:
				if b == 0 {
					return out, stats, &Fault{
						Kind: FaultArithmetic,
						Msg:  "modulo by zero",
						Span: c.spanAt(at),
					}
				}
				r = a % b
			}
			stack = append(stack, IntVal(r))
		case OP_NEG:
			stack[len(stack)-1] = IntVal(-stack[len(stack)-1].AsInt())

		case OP_EQ, OP_NE:
			b := stack[len(stack)-1]
			a := stack[len(stack)-2]
			stack = stack[:len(stack)-2]
			eq := valuesEqual(a, b)
			stack = append(stack, BoolVal(eq == (op == OP_EQ)))
		case OP_LT, OP_LE, OP_GT, OP_GE:
			b := orderKey(stack[len(stack)-1])
			a := orderKey(stack[len(stack)-2])
			stack = stack[:len(stack)-2]
			var r bool
			switch op {
			case OP_LT:
				r = a < b
			case OP_LE:
				r = a <= b
			case OP_GT:
				r = a > b
			case OP_GE:
				r = a >= b
			}
			stack = append(stack, BoolVal(r))
		case OP_NOT:
			stack[len(stack)-1] = BoolVal(!stack[len(stack)-1].AsBool())

		case OP_JUMP:
			f.ip = arg(0)
			frames[len(frames)-1] = f
		case OP_JUMP_IF_FALSE:
			cond := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !cond.AsBool() {
				f.ip = arg(0)
				frames[len(frames)-1] = f
			}

		case OP_CALL:
			callee := m.prog.Funcs[arg(0)]
			base := len(stack) - arg(1)
			for len(stack) < base+callee.NumLocals {
				stack = append(stack, Value{})
			}
			frames = append(frames, frame{chunk: callee, base: base})
		case OP_BUILTIN:
			argc := arg(1)
			res, ferr := callBuiltin(arg(0), stack[len(stack)-argc:])
			if ferr != nil {
				return out, stats, &Fault{
					Kind: FaultInvalidState,
					Msg:  ferr.Error(),
					Span: c.spanAt(at),
					Err:  ferr,
				}
			}
			stack = stack[:len(stack)-argc]
			stack = append(stack, res)
		case OP_EXTERNAL:
			decl := m.prog.Externals[arg(0)]
			callArgs := make([]Value, decl.Argc)
			copy(callArgs, stack[len(stack)-decl.Argc:])
			res, ferr := m.externals[arg(0)](callArgs)
			if ferr != nil {
				return out, stats, &Fault{
					Kind: FaultExternalCall,
					Msg:  fmt.Sprintf("%s: %v", decl.Ref, ferr),
					Span: c.spanAt(at),
					Err:  ferr,
				}
			}
			stack = stack[:len(stack)-decl.Argc]
			stack = append(stack, res)

		case OP_MAKE_LIST:
			n := arg(0)
			elems := make([]Value, n)
			copy(elems, stack[len(stack)-n:])
			stack = stack[:len(stack)-n]
			stack = append(stack, ListVal(elems))
		case OP_MAKE_RECORD:
			shape := m.prog.Shapes[arg(0)]
			n := len(shape.Fields)
			pushed := stack[len(stack)-n:]
			vals := make([]Value, n)
			for i, j := range shape.Perm {
				vals[i] = pushed[j]
			}
			stack = stack[:len(stack)-n]
			stack = append(stack, RecordValOf(shape.Fields, vals))
		case OP_GET_FIELD:
			rec := stack[len(stack)-1].AsRecord()
			stack[len(stack)-1] = rec.Vals[arg(0)]
		case OP_MAKE_ENUM:
			if arg(1) == 0 {
				stack = append(stack, EnumVal(arg(0), nil))
			} else {
				payload := stack[len(stack)-1]
				stack[len(stack)-1] = EnumVal(arg(0), &payload)
			}
		case OP_ENUM_TAG:
			stack[len(stack)-1] = IntVal(int64(stack[len(stack)-1].EnumTag()))
		case OP_ENUM_PAYLOAD:
			stack[len(stack)-1] = *stack[len(stack)-1].EnumPayload()

		case OP_RETURN, OP_RETURN_VOID:
			var res Value
			has := op == OP_RETURN
			if has {
				res = stack[len(stack)-1]
			}
			stack = stack[:f.base]
			frames = frames[:len(frames)-1]
			if len(frames) == 0 {
				return Outcome{Kind: OutcomeReturn, Value: res, HasValue: has}, stats, nil
			}
			if has {
				stack = append(stack, res)
			}
		case OP_ACCEPT:
			return Outcome{Kind: OutcomeAccept}, stats, nil
		case OP_ACCEPT_VAL:
			res := stack[len(stack)-1]
			return Outcome{Kind: OutcomeAccept, Value: res, HasValue: true}, stats, nil
		case OP_REJECT:
			return Outcome{Kind: OutcomeReject}, stats, nil

		default:
			return out, stats, &Fault{
				Kind: FaultInvalidState,
				Msg:  fmt.Sprintf("unknown opcode 0x%02x", byte(op)),
				Span: c.spanAt(at),
			}
		}
	}
}

// orderKey maps a value of an ordered kind to a comparable integer. The
// checker only admits Int, Asn and PrefixLength here, all of which fit.
func orderKey(v Value) int64 {
	if v.Kind == ValAsn {
		return int64(v.AsAsn())
	}
	return v.AsInt()
}

// IsEntrypoint reports whether the named function can be passed to Run as
// a policy, that is, a filtermap or filter rather than a helper function.
func (m *Machine) IsEntrypoint(name string) bool {
	c, ok := m.prog.Entry(name)
	return ok && c.Kind != token.FUNCTION
}

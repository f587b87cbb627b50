package ir

import (
	"testing"

	"github.com/ruta-lang/ruta/internal/checker"
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/lexer"
	"github.com/ruta-lang/ruta/internal/parser"
	"github.com/ruta-lang/ruta/internal/types"
)

func lowerSource(t *testing.T, src string) *Program {
	t.Helper()
	reg := types.NewRegistry()
	err := reg.Register(types.ExternalType{
		Name: "Route",
		Fields: []types.ExternalField{
			{Name: "prefix", Type: types.Prefix},
			{Name: "as_path", Type: types.AsPath},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	reg.Seal()

	bag := diag.NewBag()
	p := parser.New(lexer.New(src, "test", bag), bag)
	unit := p.ParseUnit("test")
	info := checker.Check(unit, reg, bag)
	if bag.HasErrors() {
		t.Fatalf("source does not check: %v", bag.All())
	}
	prog, err := Lower(unit, info)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	return prog
}

// walk simulates stack depth over every reachable path and fails on any
// inconsistency, the same property the bytecode verifier later proves.
func verifyDepths(t *testing.T, p *Program, f *Func) {
	t.Helper()
	seen := map[int]int{}
	var visit func(id, depth int)
	visit = func(id, depth int) {
		if prev, ok := seen[id]; ok {
			if prev != depth {
				t.Fatalf("%s block %d entered at depths %d and %d", f.Name, id, prev, depth)
			}
			return
		}
		seen[id] = depth
		b := f.Blocks[id]
		d := depth
		for _, in := range b.Code {
			d += instrEffect(p, in)
			if d < 0 {
				t.Fatalf("%s block %d underflows at %s", f.Name, id, in.Op)
			}
		}
		switch term := b.Term.(type) {
		case *Goto:
			visit(term.Target, d)
		case *Branch:
			visit(term.Then, d-1)
			visit(term.Else, d-1)
		case *Ret:
			want := 0
			if term.HasValue {
				want = 1
			}
			if d != want {
				t.Fatalf("%s block %d returns at depth %d, want %d", f.Name, id, d, want)
			}
		default:
			t.Fatalf("%s block %d has no terminator", f.Name, id)
		}
	}
	visit(0, 0)
}

func instrEffect(p *Program, in Instr) int {
	l := &lowerer{prog: p}
	return l.effect(in)
}

func TestLowerPrefixLengthPolicy(t *testing.T) {
	prog := lowerSource(t, `
filtermap drop_long(route: Route) {
	if route.prefix.len() > 24 {
		reject;
	}
	accept;
}
`)
	if len(prog.Funcs) != 1 {
		t.Fatalf("want 1 function, got %d", len(prog.Funcs))
	}
	f := prog.Funcs[0]
	if f.Name != "drop_long" || f.NumParams != 1 {
		t.Fatalf("bad function header: %+v", f)
	}
	verifyDepths(t, prog, f)

	var rejects, accepts int
	for _, b := range f.Blocks {
		if r, ok := b.Term.(*Ret); ok {
			switch r.Action {
			case ActionReject:
				rejects++
			case ActionAccept:
				accepts++
			}
		}
	}
	if rejects == 0 || accepts == 0 {
		t.Errorf("want both terminal actions, got %d reject / %d accept blocks", rejects, accepts)
	}
}

func TestShortCircuitBranches(t *testing.T) {
	prog := lowerSource(t, `
filtermap f(route: Route) {
	if route.prefix.len() > 24 && route.as_path.len() > 3 {
		reject;
	}
	accept;
}
`)
	f := prog.Funcs[0]
	verifyDepths(t, prog, f)

	// The right operand's AsPath.len builtin must sit in a block reached
	// only through a branch, never in the entry block.
	for _, in := range f.Blocks[0].Code {
		if in.Op == OpBuiltin && in.A == int(types.BuiltinAsPathLen) {
			t.Fatal("right operand of && lowered into the entry block")
		}
	}
	found := false
	for _, b := range f.Blocks[1:] {
		for _, in := range b.Code {
			if in.Op == OpBuiltin && in.A == int(types.BuiltinAsPathLen) {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("right operand of && was not lowered at all")
	}
}

func TestMatchDispatchExhaustsWithoutFinalTest(t *testing.T) {
	prog := lowerSource(t, `
enum Origin { Igp, Egp, Incomplete }
filtermap f(route: Route) {
	let o = Origin.Egp;
	match o {
		Igp -> { accept; }
		Egp -> { accept; }
		Incomplete -> { reject; }
	}
}
`)
	f := prog.Funcs[0]
	verifyDepths(t, prog, f)

	// Exhaustiveness is proven statically, so exactly two tag tests are
	// emitted for three variants; the last arm is an unconditional Goto.
	tags := 0
	for _, b := range f.Blocks {
		for _, in := range b.Code {
			if in.Op == OpEnumTag {
				tags++
			}
		}
	}
	if tags != 2 {
		t.Errorf("want 2 tag tests for 3 arms, got %d", tags)
	}
}

func TestMatchBindingUsesPayload(t *testing.T) {
	prog := lowerSource(t, `
enum Decision { Keep(Int), Drop }
filtermap f(route: Route) {
	let d = Decision.Keep(10);
	match d {
		Keep(n) -> {
			if n > 5 {
				accept;
			}
			reject;
		}
		Drop -> { reject; }
	}
}
`)
	f := prog.Funcs[0]
	verifyDepths(t, prog, f)

	found := false
	for _, b := range f.Blocks {
		for _, in := range b.Code {
			if in.Op == OpEnumPay {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("payload binding emitted no ENUM_PAY")
	}
}

func TestTerminalDrainsTemporaries(t *testing.T) {
	prog := lowerSource(t, `
filtermap f(route: Route) {
	let n = 1 + if route.prefix.len() > 24 { 2 } else { reject; };
	if n > 2 {
		reject;
	}
	accept;
}
`)
	f := prog.Funcs[0]
	verifyDepths(t, prog, f)
}

func TestFunctionCallsResolveToIndices(t *testing.T) {
	prog := lowerSource(t, `
function too_long(route: Route) -> Bool {
	return route.prefix.len() > 24;
}
filtermap f(route: Route) {
	if too_long(route) {
		reject;
	}
	accept;
}
`)
	if len(prog.Funcs) != 2 {
		t.Fatalf("want 2 functions, got %d", len(prog.Funcs))
	}
	if prog.Index["too_long"] != 0 || prog.Index["f"] != 1 {
		t.Fatalf("bad index: %v", prog.Index)
	}
	for _, f := range prog.Funcs {
		verifyDepths(t, prog, f)
	}

	found := false
	for _, b := range prog.Funcs[1].Blocks {
		for _, in := range b.Code {
			if in.Op == OpCall && in.A == 0 && in.B == 1 {
				found = true
			}
		}
	}
	if !found {
		t.Fatal("no CALL to function index 0")
	}
}

func TestMembershipDesugarsToContains(t *testing.T) {
	prog := lowerSource(t, `
filtermap f(route: Route) {
	let bogons = [AS64512, AS65535];
	if route.as_path.origin() not in bogons {
		accept;
	}
	reject;
}
`)
	f := prog.Funcs[0]
	verifyDepths(t, prog, f)

	containsAt := -1
	notAfter := false
	for _, b := range f.Blocks {
		for i, in := range b.Code {
			if in.Op == OpBuiltin && in.A == int(types.BuiltinListContains) {
				containsAt = i
				if i+1 < len(b.Code) && b.Code[i+1].Op == OpNot {
					notAfter = true
				}
			}
		}
	}
	if containsAt < 0 {
		t.Fatal("not in did not lower to List.contains")
	}
	if !notAfter {
		t.Fatal("not in is missing the trailing NOT")
	}
}

func TestMembershipEvaluatesElementFirst(t *testing.T) {
	prog := lowerSource(t, `
filtermap f(route: Route) {
	let bogons = [AS64512, AS65535];
	if route.as_path.origin() in bogons {
		reject;
	}
	accept;
}
`)
	f := prog.Funcs[0]
	verifyDepths(t, prog, f)

	for _, b := range f.Blocks {
		originAt, containsAt := -1, -1
		for i, in := range b.Code {
			if in.Op == OpBuiltin && in.A == int(types.BuiltinAsPathOrigin) {
				originAt = i
			}
			if in.Op == OpBuiltin && in.A == int(types.BuiltinListContains) {
				containsAt = i
			}
		}
		if containsAt < 0 {
			continue
		}
		if originAt < 0 || originAt > containsAt {
			t.Fatal("element must evaluate before the container")
		}
		prev := b.Code[containsAt-1]
		if prev.Op != OpLoad {
			t.Fatalf("contains must read the element back from a temp, got %s", prev.Op)
		}
		stored := false
		for i := originAt + 1; i < containsAt; i++ {
			if b.Code[i].Op == OpStore && b.Code[i].A == prev.A {
				stored = true
			}
		}
		if !stored {
			t.Fatal("element result never stored into the temp the contains reads")
		}
		return
	}
	t.Fatal("no contains builtin emitted")
}

func TestRecordRoundTripUsesCanonicalLayout(t *testing.T) {
	prog := lowerSource(t, `
record Attrs { pref: Int, med: Int }
filtermap f(route: Route) {
	let a = Attrs { pref: 100, med: 80 };
	if a.med > a.pref {
		reject;
	}
	accept;
}
`)
	f := prog.Funcs[0]
	verifyDepths(t, prog, f)

	// Canonical layout is name order: med before pref.
	for _, b := range f.Blocks {
		for _, in := range b.Code {
			if in.Op == OpGetField {
				switch in.Name {
				case "med":
					if in.A != 0 {
						t.Errorf("med at canonical index %d, want 0", in.A)
					}
				case "pref":
					if in.A != 1 {
						t.Errorf("pref at canonical index %d, want 1", in.A)
					}
				}
			}
		}
	}
}

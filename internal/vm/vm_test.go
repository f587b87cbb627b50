package vm

import (
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/ruta-lang/ruta/internal/checker"
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/ir"
	"github.com/ruta-lang/ruta/internal/lexer"
	"github.com/ruta-lang/ruta/internal/parser"
	"github.com/ruta-lang/ruta/internal/types"
)

type testRoute struct {
	prefix      netip.Prefix
	asPath      []uint32
	communities []uint32
	med         int64
}

func testRegistry(t *testing.T) *types.Registry {
	t.Helper()
	reg := types.NewRegistry()
	err := reg.Register(types.ExternalType{
		Name: "Route",
		Fields: []types.ExternalField{
			{Name: "prefix", Type: types.Prefix},
			{Name: "as_path", Type: types.AsPath},
			{Name: "communities", Type: &types.List{Elem: types.Community}},
		},
		Methods: []types.ExternalMethod{
			{Name: "med", Return: types.Int},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	reg.Seal()
	return reg
}

func testBindings() map[string]ExternalFunc {
	route := func(v Value) *testRoute { return v.Obj.(*testRoute) }
	return map[string]ExternalFunc{
		"Route.prefix": func(args []Value) (Value, error) {
			return PrefixVal(route(args[0]).prefix), nil
		},
		"Route.as_path": func(args []Value) (Value, error) {
			return AsPathVal(route(args[0]).asPath), nil
		},
		"Route.communities": func(args []Value) (Value, error) {
			r := route(args[0])
			elems := make([]Value, len(r.communities))
			for i, c := range r.communities {
				elems[i] = CommunityVal(c)
			}
			return ListVal(elems), nil
		},
		"Route.med": func(args []Value) (Value, error) {
			return IntVal(route(args[0]).med), nil
		},
	}
}

func compileSource(t *testing.T, src string) *Program {
	t.Helper()
	bag := diag.NewBag()
	p := parser.New(lexer.New(src, "test", bag), bag)
	unit := p.ParseUnit("test")
	info := checker.Check(unit, testRegistry(t), bag)
	if bag.HasErrors() {
		t.Fatalf("source does not check: %v", bag.All())
	}
	lowered, err := ir.Lower(unit, info)
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	prog, err := Compile(lowered)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return prog
}

func attachSource(t *testing.T, src string, opts Options) *Machine {
	t.Helper()
	m, err := Attach(compileSource(t, src), testBindings(), opts)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	return m
}

const dropLongSrc = `
filtermap drop_long(route: Route) {
	if route.prefix.len() > 24 {
		reject;
	}
	accept;
}
`

func TestPrefixLengthPolicy(t *testing.T) {
	m := attachSource(t, dropLongSrc, Options{})

	long := ExternalVal(&testRoute{prefix: netip.MustParsePrefix("10.1.2.0/26")})
	out, err := m.Run("drop_long", []Value{long})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeReject {
		t.Fatalf("26-bit prefix: got %s, want reject", out.Kind)
	}

	short := ExternalVal(&testRoute{prefix: netip.MustParsePrefix("10.0.0.0/20")})
	out, err = m.Run("drop_long", []Value{short})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeAccept {
		t.Fatalf("20-bit prefix: got %s, want accept", out.Kind)
	}
}

func TestFunctionCallAndAcceptPayload(t *testing.T) {
	src := `
function double(n: Int) -> Int {
	return n * 2;
}

filtermap tag(route: Route) {
	accept double(route.med());
}
`
	m := attachSource(t, src, Options{})
	out, err := m.Run("tag", []Value{ExternalVal(&testRoute{med: 21})})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeAccept || !out.HasValue {
		t.Fatalf("got %+v, want accept with payload", out)
	}
	if got := out.Value.AsInt(); got != 42 {
		t.Fatalf("payload = %d, want 42", got)
	}
}

func TestMembershipAndPathBuiltins(t *testing.T) {
	src := `
filtermap from_peer(route: Route) {
	if AS64512 in route.as_path {
		accept;
	}
	if 64999:100 in route.communities {
		accept;
	}
	reject;
}
`
	m := attachSource(t, src, Options{})

	cases := []struct {
		name  string
		route *testRoute
		want  OutcomeKind
	}{
		{"asn on path", &testRoute{asPath: []uint32{64500, 64512}}, OutcomeAccept},
		{"community present", &testRoute{asPath: []uint32{64500}, communities: []uint32{64999<<16 | 100}}, OutcomeAccept},
		{"neither", &testRoute{asPath: []uint32{64500}, communities: []uint32{64999<<16 | 200}}, OutcomeReject},
	}
	for _, tc := range cases {
		out, err := m.Run("from_peer", []Value{ExternalVal(tc.route)})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if out.Kind != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, out.Kind, tc.want)
		}
	}
}

func TestMatchOnEnum(t *testing.T) {
	src := `
enum Origin { Igp, Egp, Incomplete(Int) }

filtermap by_origin(route: Route) {
	let o = if route.as_path.len() == 0 { Origin.Igp } else { Origin.Incomplete(3) };
	match o {
		Igp -> { accept; }
		Egp -> { reject; }
		Incomplete(code) -> {
			if code > 2 {
				reject;
			}
			accept;
		}
	}
}
`
	m := attachSource(t, src, Options{})

	out, err := m.Run("by_origin", []Value{ExternalVal(&testRoute{})})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeAccept {
		t.Fatalf("empty path: got %s, want accept", out.Kind)
	}

	out, err = m.Run("by_origin", []Value{ExternalVal(&testRoute{asPath: []uint32{64500}})})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeReject {
		t.Fatalf("incomplete(3): got %s, want reject", out.Kind)
	}
}

func TestRecordConstructionAndFieldAccess(t *testing.T) {
	src := `
record Decision { pref: Int, tagged: Bool }

filtermap decide(route: Route) {
	let d = Decision { pref: route.med() + 100, tagged: true };
	if d.tagged {
		accept d.pref;
	}
	reject;
}
`
	m := attachSource(t, src, Options{})
	out, err := m.Run("decide", []Value{ExternalVal(&testRoute{med: 50})})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeAccept || !out.HasValue || out.Value.AsInt() != 150 {
		t.Fatalf("got %+v, want accept 150", out)
	}
}

func TestDeterministicCompilation(t *testing.T) {
	a := compileSource(t, dropLongSrc)
	b := compileSource(t, dropLongSrc)
	if a.BuildID == b.BuildID {
		t.Fatal("distinct compilations share a build id")
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("identical source produced different fingerprints")
	}
}

func TestBudgetExhaustion(t *testing.T) {
	m := attachSource(t, dropLongSrc, Options{Budget: 2})
	_, err := m.Run("drop_long", []Value{ExternalVal(&testRoute{prefix: netip.MustParsePrefix("10.0.0.0/8")})})
	var fault *Fault
	if !errors.As(err, &fault) || fault.Kind != FaultResourceExhausted {
		t.Fatalf("got %v, want resource exhausted fault", err)
	}
}

func TestExternalCallFault(t *testing.T) {
	prog := compileSource(t, dropLongSrc)
	boom := errors.New("rib unavailable")
	bindings := testBindings()
	bindings["Route.prefix"] = func([]Value) (Value, error) {
		return Value{}, boom
	}
	m, err := Attach(prog, bindings, Options{})
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.Run("drop_long", []Value{ExternalVal(&testRoute{})})
	var fault *Fault
	if !errors.As(err, &fault) || fault.Kind != FaultExternalCall {
		t.Fatalf("got %v, want external call fault", err)
	}
	if !errors.Is(err, boom) {
		t.Fatal("fault does not wrap the binding error")
	}
}

func TestDivisionByZeroFaultsArithmetic(t *testing.T) {
	src := `
filtermap halve(n: Int) {
	if n / 0 == 1 {
		accept;
	}
	reject;
}
`
	m := attachSource(t, src, Options{})
	_, err := m.Run("halve", []Value{IntVal(7)})
	var fault *Fault
	if !errors.As(err, &fault) {
		t.Fatalf("got %v, want a fault", err)
	}
	if fault.Kind != FaultArithmetic {
		t.Fatalf("got fault kind %v, want arithmetic", fault.Kind)
	}
}

func TestAttachRequiresAllBindings(t *testing.T) {
	prog := compileSource(t, dropLongSrc)
	_, err := Attach(prog, map[string]ExternalFunc{}, Options{})
	if err == nil {
		t.Fatal("attach succeeded without bindings for the external table")
	}
}

func TestVerifiedStackBoundsActual(t *testing.T) {
	src := `
function score(route: Route) -> Int {
	return route.med() + route.as_path.len() * 10;
}

filtermap rank(route: Route) {
	let deep = [score(route), score(route) + 1, score(route) + 2];
	if deep.contains(route.med()) {
		reject;
	}
	accept score(route);
}
`
	m := attachSource(t, src, Options{})
	route := ExternalVal(&testRoute{med: 7, asPath: []uint32{64500, 64501}})
	_, stats, err := m.run("rank", []Value{route})
	if err != nil {
		t.Fatal(err)
	}
	// stats.maxStack is per-frame operand depth, which the verifier
	// bounds chunk by chunk.
	bound := 0
	for _, c := range m.prog.Funcs {
		if c.MaxStack > bound {
			bound = c.MaxStack
		}
	}
	if stats.maxStack > bound {
		t.Fatalf("observed depth %d exceeds verified bound %d", stats.maxStack, bound)
	}
}

func TestDisassembleRoundsTrip(t *testing.T) {
	prog := compileSource(t, dropLongSrc)
	text := Disassemble(prog)
	for _, want := range []string{"drop_long", "EXTERNAL", "JUMP_IF_FALSE", "REJECT", "ACCEPT"} {
		if !strings.Contains(text, want) {
			t.Fatalf("disassembly missing %q:\n%s", want, text)
		}
	}
}

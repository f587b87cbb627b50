package pipeline

import (
	"net/netip"
	"testing"

	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/types"
	"github.com/ruta-lang/ruta/internal/vm"
)

type fakeRoute struct {
	prefix netip.Prefix
	asPath []uint32
}

func routeRegistry(t *testing.T) *types.Registry {
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
	return reg
}

func routeBindings() map[string]vm.ExternalFunc {
	return map[string]vm.ExternalFunc{
		"Route.prefix": func(args []vm.Value) (vm.Value, error) {
			return vm.PrefixVal(args[0].Obj.(*fakeRoute).prefix), nil
		},
		"Route.as_path": func(args []vm.Value) (vm.Value, error) {
			return vm.AsPathVal(args[0].Obj.(*fakeRoute).asPath), nil
		},
	}
}

func TestCompileAndRunLengthFilter(t *testing.T) {
	src := `
filtermap drop_specifics(route: Route) {
	if route.prefix.len() > 24 {
		reject;
	}
	accept;
}
`
	res := Compile(src, "policy.ruta", routeRegistry(t))
	if res.Program == nil {
		t.Fatalf("no program: %v", res.Diags)
	}
	m, err := vm.Attach(res.Program, routeBindings(), vm.Options{})
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		prefix string
		want   vm.OutcomeKind
	}{
		{"192.0.2.0/26", vm.OutcomeReject},
		{"10.0.0.0/20", vm.OutcomeAccept},
		{"10.0.0.0/24", vm.OutcomeAccept},
	}
	for _, tc := range cases {
		route := vm.ExternalVal(&fakeRoute{prefix: netip.MustParsePrefix(tc.prefix)})
		out, err := m.Run("drop_specifics", []vm.Value{route})
		if err != nil {
			t.Fatalf("%s: %v", tc.prefix, err)
		}
		if out.Kind != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.prefix, out.Kind, tc.want)
		}
	}
}

func TestTypeErrorYieldsNoProgram(t *testing.T) {
	src := `
filtermap f(route: Route) {
	if route.prefix.len() + true {
		reject;
	}
	accept;
}
`
	res := Compile(src, "bad.ruta", routeRegistry(t))
	if res.Program != nil {
		t.Fatal("program produced despite type error")
	}
	hasError := false
	for _, d := range res.Diags {
		if d.Severity == diag.SeverityError {
			hasError = true
		}
	}
	if !hasError {
		t.Fatalf("no error diagnostics: %v", res.Diags)
	}
}

func TestSyntaxAndSemanticErrorsReportedTogether(t *testing.T) {
	// The bad second declaration must not hide the undefined symbol in
	// the first.
	src := `
filtermap f(route: Route) {
	if unknown_thing {
		reject;
	}
	accept;
}

function g( {
}
`
	res := Compile(src, "bad.ruta", routeRegistry(t))
	if res.Program != nil {
		t.Fatal("program produced despite errors")
	}
	stages := map[diag.Stage]bool{}
	for _, d := range res.Diags {
		if d.Severity == diag.SeverityError {
			stages[d.Stage] = true
		}
	}
	if !stages[diag.StageParser] || !stages[diag.StageChecker] {
		t.Fatalf("want parser and checker errors, got %v", res.Diags)
	}
}

func TestDiagnosticsArriveInSourceOrder(t *testing.T) {
	src := `
filtermap f(route: Route) {
	if first_missing {
		reject;
	}
	if second_missing {
		reject;
	}
	accept;
}
`
	res := Compile(src, "bad.ruta", routeRegistry(t))
	var errs []diag.Diagnostic
	for _, d := range res.Diags {
		if d.Severity == diag.SeverityError {
			errs = append(errs, d)
		}
	}
	if len(errs) != 2 {
		t.Fatalf("got %d errors, want 2: %v", len(errs), res.Diags)
	}
	if errs[0].Primary().Start >= errs[1].Primary().Start {
		t.Fatalf("errors out of source order: %v then %v", errs[0], errs[1])
	}
}

func TestIdenticalSourceSameFingerprint(t *testing.T) {
	src := `
filtermap f(route: Route) {
	accept;
}
`
	a := Compile(src, "p.ruta", routeRegistry(t))
	b := Compile(src, "p.ruta", routeRegistry(t))
	if a.Program == nil || b.Program == nil {
		t.Fatal("compilation failed")
	}
	if a.Program.Fingerprint() != b.Program.Fingerprint() {
		t.Fatal("identical source produced different fingerprints")
	}
}

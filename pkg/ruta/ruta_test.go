package ruta

import (
	"errors"
	"net/netip"
	"testing"
)

type announcement struct {
	prefix      netip.Prefix
	asPath      []uint32
	communities []uint32
}

func testHost(t *testing.T) *Host {
	t.Helper()
	h := NewHost()
	err := h.Register(TypeDef{
		Name: "Route",
		Fields: []FieldDef{
			{Name: "prefix", Type: Prefix, Get: func(recv any) (Value, error) {
				return PrefixVal(recv.(*announcement).prefix), nil
			}},
			{Name: "as_path", Type: AsPath, Get: func(recv any) (Value, error) {
				return AsPathVal(recv.(*announcement).asPath), nil
			}},
			{Name: "communities", Type: ListOf(Community), Get: func(recv any) (Value, error) {
				a := recv.(*announcement)
				elems := make([]Value, len(a.communities))
				for i, c := range a.communities {
					elems[i] = CommunityVal(c)
				}
				return ListVal(elems), nil
			}},
		},
		Methods: []MethodDef{
			{Name: "path_len", Return: Int, Call: func(recv any, args []Value) (Value, error) {
				return IntVal(int64(len(recv.(*announcement).asPath))), nil
			}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	h.Seal()
	return h
}

func TestCommunityScreening(t *testing.T) {
	h := testHost(t)
	policy, diags, err := h.Compile(`
filtermap no_export_screen(route: Route) {
	if 65535:65281 in route.communities {
		reject;
	}
	accept;
}
`, "screen.ruta")
	if err != nil {
		t.Fatalf("%v (%v)", err, diags)
	}

	tagged := ExternalVal(&announcement{communities: []uint32{65535<<16 | 65281}})
	out, err := policy.Run("no_export_screen", []Value{tagged})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeReject {
		t.Fatalf("got %s, want reject", out.Kind)
	}

	plain := ExternalVal(&announcement{communities: []uint32{65000<<16 | 40}})
	out, err = policy.Run("no_export_screen", []Value{plain})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeAccept {
		t.Fatalf("got %s, want accept", out.Kind)
	}
}

func TestPolicyLifecycle(t *testing.T) {
	h := testHost(t)
	policy, diags, err := h.Compile(`
filtermap drop_long_paths(route: Route) {
	if route.path_len() > 5 {
		reject;
	}
	accept;
}
`, "paths.ruta")
	if err != nil {
		t.Fatalf("%v (%v)", err, diags)
	}

	long := ExternalVal(&announcement{asPath: []uint32{1, 2, 3, 4, 5, 6}})
	out, err := policy.Run("drop_long_paths", []Value{long})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeReject {
		t.Fatalf("got %s, want reject", out.Kind)
	}

	short := ExternalVal(&announcement{asPath: []uint32{1, 2}})
	out, err = policy.Run("drop_long_paths", []Value{short})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != OutcomeAccept {
		t.Fatalf("got %s, want accept", out.Kind)
	}

	if got := policy.Entrypoints(); len(got) != 1 || got[0] != "drop_long_paths" {
		t.Fatalf("entrypoints = %v", got)
	}
}

func TestCompileErrorsSurfaceDiagnostics(t *testing.T) {
	h := testHost(t)
	policy, diags, err := h.Compile(`
filtermap f(route: Route) {
	if route.nonexistent > 3 {
		reject;
	}
	accept;
}
`, "bad.ruta")
	if err == nil || policy != nil {
		t.Fatal("bad policy compiled")
	}
	if len(diags) == 0 {
		t.Fatal("no diagnostics")
	}
}

func TestUnsealedHostRefusesCompile(t *testing.T) {
	h := NewHost()
	if _, _, err := h.Compile(`filtermap f(route: Route) { accept; }`, "u.ruta"); err == nil {
		t.Fatal("unsealed host compiled")
	}
}

func TestBudgetFaultSurfaces(t *testing.T) {
	h := testHost(t)
	h.SetBudget(1)
	policy, _, err := h.Compile(`
filtermap f(route: Route) {
	if route.path_len() > 5 {
		reject;
	}
	accept;
}
`, "tiny.ruta")
	if err != nil {
		t.Fatal(err)
	}
	_, err = policy.Run("f", []Value{ExternalVal(&announcement{})})
	var fault *Fault
	if !errors.As(err, &fault) || fault.Kind != FaultResourceExhausted {
		t.Fatalf("got %v, want resource exhausted", err)
	}
}

func TestFingerprintStableAcrossCompiles(t *testing.T) {
	h := testHost(t)
	src := `filtermap f(route: Route) { accept; }`
	a, _, err := h.Compile(src, "f.ruta")
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := h.Compile(src, "f.ruta")
	if err != nil {
		t.Fatal(err)
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatal("fingerprints differ for identical source")
	}
}

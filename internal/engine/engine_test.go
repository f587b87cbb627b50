package engine

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruta-lang/ruta/internal/types"
	"github.com/ruta-lang/ruta/internal/vm"
)

const acceptAll = `
filtermap pass(route: Route) {
	accept;
}
`

const rejectLong = `
filtermap pass(route: Route) {
	if route.prefix.len() > 24 {
		reject;
	}
	accept;
}
`

type stubRoute struct {
	prefix netip.Prefix
}

func testConfig(t *testing.T, path string) Config {
	t.Helper()
	reg := types.NewRegistry()
	err := reg.Register(types.ExternalType{
		Name: "Route",
		Fields: []types.ExternalField{
			{Name: "prefix", Type: types.Prefix},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	reg.Seal()
	return Config{
		Path:     path,
		Registry: reg,
		Bindings: map[string]vm.ExternalFunc{
			"Route.prefix": func(args []vm.Value) (vm.Value, error) {
				return vm.PrefixVal(args[0].Obj.(*stubRoute).prefix), nil
			},
		},
	}
}

func writePolicy(t *testing.T, path, src string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAndRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass.ruta")
	writePolicy(t, path, acceptAll)

	e, err := New(testConfig(t, path))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Load(); err != nil {
		t.Fatal(err)
	}

	route := vm.ExternalVal(&stubRoute{prefix: netip.MustParsePrefix("10.0.0.0/26")})
	out, err := e.Run([]vm.Value{route})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != vm.OutcomeAccept {
		t.Fatalf("got %s, want accept", out.Kind)
	}
	if e.Generation() != 1 {
		t.Fatalf("generation = %d, want 1", e.Generation())
	}
}

func TestReloadSwapsBehavior(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass.ruta")
	writePolicy(t, path, acceptAll)

	e, err := New(testConfig(t, path))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Load(); err != nil {
		t.Fatal(err)
	}
	first := e.Program().BuildID

	writePolicy(t, path, rejectLong)
	if _, err := e.Load(); err != nil {
		t.Fatal(err)
	}
	if e.Program().BuildID == first {
		t.Fatal("reload kept the old build")
	}

	route := vm.ExternalVal(&stubRoute{prefix: netip.MustParsePrefix("10.0.0.0/26")})
	out, err := e.Run([]vm.Value{route})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != vm.OutcomeReject {
		t.Fatalf("got %s, want reject after reload", out.Kind)
	}
}

func TestBrokenReloadKeepsServing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass.ruta")
	writePolicy(t, path, acceptAll)

	e, err := New(testConfig(t, path))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Load(); err != nil {
		t.Fatal(err)
	}

	writePolicy(t, path, `filtermap pass(route: Route) { if nonsense { } }`)
	diags, err := e.Load()
	if err == nil {
		t.Fatal("broken policy loaded")
	}
	if len(diags) == 0 {
		t.Fatal("no diagnostics for broken policy")
	}
	if e.Generation() != 1 {
		t.Fatalf("generation = %d, want 1 after failed reload", e.Generation())
	}

	route := vm.ExternalVal(&stubRoute{prefix: netip.MustParsePrefix("10.0.0.0/26")})
	out, err := e.Run([]vm.Value{route})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != vm.OutcomeAccept {
		t.Fatalf("got %s, want accept from the surviving program", out.Kind)
	}
}

func TestEntryResolution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.ruta")
	writePolicy(t, path, `
filtermap a(route: Route) { accept; }
filtermap b(route: Route) { reject; }
`)
	cfg := testConfig(t, path)

	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Load(); err == nil {
		t.Fatal("ambiguous entry accepted")
	}

	cfg.Entry = "b"
	e, err = New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Load(); err != nil {
		t.Fatal(err)
	}
	out, err := e.Run([]vm.Value{vm.ExternalVal(&stubRoute{prefix: netip.MustParsePrefix("10.0.0.0/8")})})
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != vm.OutcomeReject {
		t.Fatalf("got %s, want reject from entry b", out.Kind)
	}
}

func TestRunBeforeLoadFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pass.ruta")
	writePolicy(t, path, acceptAll)
	e, err := New(testConfig(t, path))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Run(nil); err == nil {
		t.Fatal("run succeeded with nothing loaded")
	}
}

package rib

import (
	"context"
	"net/netip"
	"testing"

	"github.com/ruta-lang/ruta/internal/pipeline"
	"github.com/ruta-lang/ruta/internal/types"
	"github.com/ruta-lang/ruta/internal/vm"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLongestMatchPicksMostSpecific(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	for _, p := range []string{"10.0.0.0/8", "10.1.0.0/16", "10.1.2.0/24"} {
		if err := s.AddRoute(ctx, netip.MustParsePrefix(p)); err != nil {
			t.Fatal(err)
		}
	}

	match, ok, err := s.LongestMatch(ctx, netip.MustParsePrefix("10.1.2.128/25"))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if want := netip.MustParsePrefix("10.1.2.0/24"); match != want {
		t.Fatalf("got %s, want %s", match, want)
	}

	match, ok, err = s.LongestMatch(ctx, netip.MustParsePrefix("10.9.0.0/16"))
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if want := netip.MustParsePrefix("10.0.0.0/8"); match != want {
		t.Fatalf("got %s, want %s", match, want)
	}

	_, ok, err = s.LongestMatch(ctx, netip.MustParsePrefix("192.0.2.0/24"))
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("matched a route outside the stored space")
	}
}

func TestAsnSets(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.AddToSet(ctx, "peers", 64512); err != nil {
		t.Fatal(err)
	}
	// Duplicate insert is a no-op.
	if err := s.AddToSet(ctx, "peers", 64512); err != nil {
		t.Fatal(err)
	}

	ok, err := s.SetContains(ctx, "peers", 64512)
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	ok, err = s.SetContains(ctx, "peers", 64513)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("64513 reported present")
	}
	ok, err = s.SetContains(ctx, "transits", 64512)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("unknown set reported members")
	}
}

func TestPolicyQueriesStore(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	if err := s.AddRoute(ctx, netip.MustParsePrefix("10.0.0.0/8")); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToSet(ctx, "blocked", 64666); err != nil {
		t.Fatal(err)
	}

	reg := types.NewRegistry()
	err := reg.Register(types.ExternalType{
		Name: "Route",
		Fields: []types.ExternalField{
			{Name: "prefix", Type: types.Prefix},
			{Name: "origin", Type: types.Asn},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, et := range ExternalTypes() {
		if err := reg.Register(et); err != nil {
			t.Fatal(err)
		}
	}
	reg.Seal()

	src := `
filtermap screen(route: Route, rib: Rib, blocked: AsnSet) {
	if blocked.contains(route.origin) {
		reject;
	}
	if rib.covers(route.prefix) {
		accept;
	}
	reject;
}
`
	res := pipeline.Compile(src, "screen.ruta", reg)
	if res.Program == nil {
		t.Fatalf("no program: %v", res.Diags)
	}

	type route struct {
		prefix netip.Prefix
		origin uint32
	}
	bindings := Bindings(ctx)
	bindings["Route.prefix"] = func(args []vm.Value) (vm.Value, error) {
		return vm.PrefixVal(args[0].Obj.(*route).prefix), nil
	}
	bindings["Route.origin"] = func(args []vm.Value) (vm.Value, error) {
		return vm.AsnVal(args[0].Obj.(*route).origin), nil
	}
	m, err := vm.Attach(res.Program, bindings, vm.Options{})
	if err != nil {
		t.Fatal(err)
	}

	run := func(r *route) vm.OutcomeKind {
		t.Helper()
		out, err := m.Run("screen", []vm.Value{
			vm.ExternalVal(r),
			vm.ExternalVal(s),
			vm.ExternalVal(&SetHandle{Store: s, Name: "blocked"}),
		})
		if err != nil {
			t.Fatal(err)
		}
		return out.Kind
	}

	covered := &route{prefix: netip.MustParsePrefix("10.1.0.0/16"), origin: 64500}
	if got := run(covered); got != vm.OutcomeAccept {
		t.Fatalf("covered route: got %s, want accept", got)
	}
	blocked := &route{prefix: netip.MustParsePrefix("10.1.0.0/16"), origin: 64666}
	if got := run(blocked); got != vm.OutcomeReject {
		t.Fatalf("blocked origin: got %s, want reject", got)
	}
	uncovered := &route{prefix: netip.MustParsePrefix("192.0.2.0/24"), origin: 64500}
	if got := run(uncovered); got != vm.OutcomeReject {
		t.Fatalf("uncovered route: got %s, want reject", got)
	}
}

package vm

import (
	"errors"
	"net/netip"
	"testing"
)

// Every program the compiler accepts must run to an outcome or a
// user-attributable fault. An invalid-state fault on accepted input is a
// compiler or verifier bug.
func TestAcceptedProgramsNeverFaultInvalidState(t *testing.T) {
	sources := []struct {
		name string
		src  string
	}{
		{"nested arithmetic", `
function weight(route: Route) -> Int {
	return (route.med() + 10) * 2 - route.as_path.len() % 3;
}

filtermap f(route: Route) {
	if weight(route) > 50 {
		reject;
	}
	accept;
}
`},
		{"short circuit chains", `
filtermap f(route: Route) {
	if route.prefix.len() > 8 && route.prefix.len() < 30 || route.med() == 0 {
		accept;
	}
	reject;
}
`},
		{"records and lists", `
record Tally { hits: Int, wide: Bool }

filtermap f(route: Route) {
	let t = Tally { hits: route.as_path.len(), wide: route.prefix.len() < 16 };
	let limits = [8, 16, 24];
	if t.wide && t.hits in limits {
		reject;
	}
	accept;
}
`},
		{"enum round trip", `
enum Class { Small, Large(Int) }

filtermap f(route: Route) {
	let c = if route.prefix.len() > 24 { Class.Large(route.prefix.len().int()) } else { Class.Small };
	match c {
		Small -> { accept; }
		Large(bits) -> {
			if bits > 28 {
				reject;
			}
			accept;
		}
	}
}
`},
		{"value terminal inside expression", `
filtermap f(route: Route) {
	let n = 1 + if route.prefix.len() > 30 { reject; } else { 2 };
	if n == 3 {
		accept;
	}
	reject;
}
`},
	}

	routes := []*testRoute{
		{prefix: netip.MustParsePrefix("10.0.0.0/8"), asPath: []uint32{64500}},
		{prefix: netip.MustParsePrefix("192.0.2.0/26"), asPath: []uint32{64500, 64501, 64502}, med: 40},
		{prefix: netip.MustParsePrefix("198.51.100.0/31"), med: 99},
		{prefix: netip.MustParsePrefix("203.0.113.0/24"), asPath: []uint32{1, 2, 3, 4, 5}},
	}

	for _, tc := range sources {
		t.Run(tc.name, func(t *testing.T) {
			m := attachSource(t, tc.src, Options{})
			for _, r := range routes {
				_, err := m.Run("f", []Value{ExternalVal(r)})
				if err == nil {
					continue
				}
				var fault *Fault
				if errors.As(err, &fault) && fault.Kind == FaultInvalidState {
					t.Fatalf("route %s: %v", r.prefix, err)
				}
				t.Fatalf("route %s: unexpected error %v", r.prefix, err)
			}
		})
	}
}

package cli

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/ruta-lang/ruta/internal/rib"
	"github.com/ruta-lang/ruta/internal/types"
	"github.com/ruta-lang/ruta/internal/vm"
)

// Route is the announcement surface the CLI offers to policies: enough of
// a BGP route to exercise every policy construct from the command line.
type Route struct {
	Prefix      netip.Prefix
	NextHop     netip.Addr
	AsPath      []uint32
	Communities []uint32
	Med         int64
	LocalPref   int64
}

// DefaultRegistry is the sealed type surface for standalone check,
// compile and run. Hosts embedding the compiler register their own.
func DefaultRegistry() (*types.Registry, error) {
	reg := types.NewRegistry()
	err := reg.Register(types.ExternalType{
		Name: "Route",
		Fields: []types.ExternalField{
			{Name: "prefix", Type: types.Prefix},
			{Name: "next_hop", Type: types.IpAddr},
			{Name: "as_path", Type: types.AsPath},
			{Name: "communities", Type: &types.List{Elem: types.Community}},
			{Name: "med", Type: types.Int},
			{Name: "local_pref", Type: types.Int},
		},
	})
	if err != nil {
		return nil, err
	}
	for _, et := range rib.ExternalTypes() {
		if err := reg.Register(et); err != nil {
			return nil, err
		}
	}
	reg.Seal()
	return reg, nil
}

// routeBindings exposes a Route's fields to the VM.
func routeBindings() map[string]vm.ExternalFunc {
	return map[string]vm.ExternalFunc{
		"Route.prefix": func(args []vm.Value) (vm.Value, error) {
			return vm.PrefixVal(args[0].Obj.(*Route).Prefix), nil
		},
		"Route.next_hop": func(args []vm.Value) (vm.Value, error) {
			return vm.AddrVal(args[0].Obj.(*Route).NextHop), nil
		},
		"Route.as_path": func(args []vm.Value) (vm.Value, error) {
			return vm.AsPathVal(args[0].Obj.(*Route).AsPath), nil
		},
		"Route.communities": func(args []vm.Value) (vm.Value, error) {
			r := args[0].Obj.(*Route)
			elems := make([]vm.Value, len(r.Communities))
			for i, c := range r.Communities {
				elems[i] = vm.CommunityVal(c)
			}
			return vm.ListVal(elems), nil
		},
		"Route.med": func(args []vm.Value) (vm.Value, error) {
			return vm.IntVal(args[0].Obj.(*Route).Med), nil
		},
		"Route.local_pref": func(args []vm.Value) (vm.Value, error) {
			return vm.IntVal(args[0].Obj.(*Route).LocalPref), nil
		},
	}
}

// parseAsPath reads "64500,64501" or "64500 64501".
func parseAsPath(s string) ([]uint32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	path := make([]uint32, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimPrefix(f, "AS")
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad AS number %q", f)
		}
		path = append(path, uint32(n))
	}
	return path, nil
}

// parseCommunities reads "65000:100,65000:200".
func parseCommunities(s string) ([]uint32, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []uint32
	for _, f := range strings.Split(s, ",") {
		asn, val, ok := strings.Cut(strings.TrimSpace(f), ":")
		if !ok {
			return nil, fmt.Errorf("bad community %q, want asn:value", f)
		}
		hi, err := strconv.ParseUint(asn, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad community %q: %v", f, err)
		}
		lo, err := strconv.ParseUint(val, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("bad community %q: %v", f, err)
		}
		out = append(out, uint32(hi)<<16|uint32(lo))
	}
	return out, nil
}

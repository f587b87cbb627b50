package rib

import (
	"context"
	"fmt"

	"github.com/ruta-lang/ruta/internal/types"
	"github.com/ruta-lang/ruta/internal/vm"
)

// SetHandle is the policy-visible value of an AsnSet. The receiver the VM
// hands back to us carries the set name; the store is shared.
type SetHandle struct {
	Store *Store
	Name  string
}

// ExternalTypes returns the type surface the store offers to policies.
// Register them alongside the host's own route types before sealing.
func ExternalTypes() []types.ExternalType {
	return []types.ExternalType{
		{
			Name: "Rib",
			Methods: []types.ExternalMethod{
				{Name: "longest_match", Params: []types.Type{types.Prefix}, Return: types.Prefix},
				{Name: "covers", Params: []types.Type{types.Prefix}, Return: types.Bool},
			},
		},
		{
			Name: "AsnSet",
			Methods: []types.ExternalMethod{
				{Name: "contains", Params: []types.Type{types.Asn}, Return: types.Bool},
			},
		},
	}
}

// Bindings wires the store's lookups into the external-call table. The
// context bounds every query an invocation makes.
func Bindings(ctx context.Context) map[string]vm.ExternalFunc {
	return map[string]vm.ExternalFunc{
		"Rib.longest_match": func(args []vm.Value) (vm.Value, error) {
			store := args[0].Obj.(*Store)
			p := args[1].AsPrefix()
			match, ok, err := store.LongestMatch(ctx, p)
			if err != nil {
				return vm.Value{}, err
			}
			if !ok {
				return vm.Value{}, fmt.Errorf("no route covers %s", p)
			}
			return vm.PrefixVal(match), nil
		},
		"Rib.covers": func(args []vm.Value) (vm.Value, error) {
			store := args[0].Obj.(*Store)
			ok, err := store.Covers(ctx, args[1].AsPrefix())
			if err != nil {
				return vm.Value{}, err
			}
			return vm.BoolVal(ok), nil
		},
		"AsnSet.contains": func(args []vm.Value) (vm.Value, error) {
			h := args[0].Obj.(*SetHandle)
			ok, err := h.Store.SetContains(ctx, h.Name, args[1].AsAsn())
			if err != nil {
				return vm.Value{}, err
			}
			return vm.BoolVal(ok), nil
		},
	}
}

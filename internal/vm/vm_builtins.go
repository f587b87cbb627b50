package vm

import (
	"fmt"

	"github.com/ruta-lang/ruta/internal/types"
)

// callBuiltin dispatches one built-in method. args[0] is the receiver;
// the checker has already proven arity and kinds, so accessors may assert.
func callBuiltin(id int, args []Value) (Value, error) {
	switch types.BuiltinID(id) {
	case types.BuiltinPrefixLen:
		return IntVal(int64(args[0].AsPrefix().Bits())), nil
	case types.BuiltinPrefixAddress:
		return AddrVal(args[0].AsPrefix().Addr()), nil
	case types.BuiltinPrefixCovers:
		p, q := args[0].AsPrefix(), args[1].AsPrefix()
		return BoolVal(p.Bits() <= q.Bits() && p.Contains(q.Addr())), nil
	case types.BuiltinPrefixContainsAddr:
		return BoolVal(args[0].AsPrefix().Contains(args[1].AsAddr())), nil

	case types.BuiltinAsPathOrigin:
		// The origin AS sits at the end of the path. An empty path
		// reads as AS0, matching how collectors render it.
		path := args[0].AsAsPath()
		if len(path) == 0 {
			return AsnVal(0), nil
		}
		return AsnVal(path[len(path)-1]), nil
	case types.BuiltinAsPathContains:
		want := args[1].AsAsn()
		for _, asn := range args[0].AsAsPath() {
			if asn == want {
				return BoolVal(true), nil
			}
		}
		return BoolVal(false), nil
	case types.BuiltinAsPathLen:
		return IntVal(int64(len(args[0].AsAsPath()))), nil

	case types.BuiltinCommunityAsn:
		return IntVal(int64(args[0].AsCommunity() >> 16)), nil
	case types.BuiltinCommunityValue:
		return IntVal(int64(args[0].AsCommunity() & 0xFFFF)), nil

	case types.BuiltinListContains:
		for _, el := range args[0].AsList() {
			if valuesEqual(el, args[1]) {
				return BoolVal(true), nil
			}
		}
		return BoolVal(false), nil
	case types.BuiltinListLen:
		return IntVal(int64(len(args[0].AsList()))), nil

	case types.BuiltinStringLen:
		return IntVal(int64(len(args[0].AsString()))), nil

	case types.BuiltinPrefixLengthInt:
		return IntVal(args[0].AsInt()), nil
	case types.BuiltinAsnInt:
		return IntVal(int64(args[0].AsAsn())), nil
	}
	return Value{}, fmt.Errorf("unknown builtin id %d", id)
}

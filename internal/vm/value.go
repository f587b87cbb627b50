package vm

import (
	"fmt"
	"net/netip"
	"strings"
)

// ValueKind identifies the runtime type of a Value.
type ValueKind uint8

const (
	ValBool ValueKind = iota
	ValInt
	ValString
	ValBytes
	ValAddr
	ValPrefix
	ValAsn
	ValCommunity
	ValAsPath
	ValList
	ValRecord
	ValEnum
	ValExternal
)

var valueKindNames = map[ValueKind]string{
	ValBool:      "Bool",
	ValInt:       "Int",
	ValString:    "String",
	ValBytes:     "Bytes",
	ValAddr:      "IpAddr",
	ValPrefix:    "Prefix",
	ValAsn:       "Asn",
	ValCommunity: "Community",
	ValAsPath:    "AsPath",
	ValList:      "List",
	ValRecord:    "Record",
	ValEnum:      "Enum",
	ValExternal:  "External",
}

func (k ValueKind) String() string { return valueKindNames[k] }

// Value is a stack-allocated tagged union. Scalars live in Data; everything
// variable-sized goes through Obj. PrefixLength shares the Int
// representation, the distinction is purely compile time.
type Value struct {
	Kind ValueKind
	Data uint64 // Bool (0/1), Int bits, Asn, Community, Enum tag
	Obj  any    // string, []byte, netip.Addr, netip.Prefix, []uint32, []Value, *RecordVal, *Value, host handle
}

// RecordVal is a record in canonical layout: Names is sorted and shared
// with the Program's shape table, Vals is parallel to it.
type RecordVal struct {
	Names []string
	Vals  []Value
}

func BoolVal(b bool) Value {
	var d uint64
	if b {
		d = 1
	}
	return Value{Kind: ValBool, Data: d}
}

func IntVal(v int64) Value { return Value{Kind: ValInt, Data: uint64(v)} }

func StringVal(s string) Value { return Value{Kind: ValString, Obj: s} }

func BytesVal(b []byte) Value { return Value{Kind: ValBytes, Obj: b} }

func AddrVal(a netip.Addr) Value { return Value{Kind: ValAddr, Obj: a} }

func PrefixVal(p netip.Prefix) Value { return Value{Kind: ValPrefix, Obj: p} }

func AsnVal(asn uint32) Value { return Value{Kind: ValAsn, Data: uint64(asn)} }

func CommunityVal(c uint32) Value { return Value{Kind: ValCommunity, Data: uint64(c)} }

func AsPathVal(path []uint32) Value { return Value{Kind: ValAsPath, Obj: path} }

func ListVal(elems []Value) Value { return Value{Kind: ValList, Obj: elems} }

func RecordValOf(names []string, vals []Value) Value {
	return Value{Kind: ValRecord, Obj: &RecordVal{Names: names, Vals: vals}}
}

// EnumVal builds a variant value; payload may be nil.
func EnumVal(tag int, payload *Value) Value {
	return Value{Kind: ValEnum, Data: uint64(tag), Obj: payload}
}

// ExternalVal wraps an opaque host handle.
func ExternalVal(handle any) Value { return Value{Kind: ValExternal, Obj: handle} }

func (v Value) AsBool() bool { return v.Data != 0 }

func (v Value) AsInt() int64 { return int64(v.Data) }

func (v Value) AsAsn() uint32 { return uint32(v.Data) }

func (v Value) AsCommunity() uint32 { return uint32(v.Data) }

func (v Value) AsString() string { return v.Obj.(string) }

func (v Value) AsAddr() netip.Addr { return v.Obj.(netip.Addr) }

func (v Value) AsPrefix() netip.Prefix { return v.Obj.(netip.Prefix) }

func (v Value) AsAsPath() []uint32 { return v.Obj.([]uint32) }

func (v Value) AsList() []Value { return v.Obj.([]Value) }

func (v Value) AsRecord() *RecordVal { return v.Obj.(*RecordVal) }

// EnumTag returns the variant tag of an enum value.
func (v Value) EnumTag() int { return int(v.Data) }

// EnumPayload returns the payload of an enum value, or nil.
func (v Value) EnumPayload() *Value {
	if v.Obj == nil {
		return nil
	}
	return v.Obj.(*Value)
}

func (v Value) String() string {
	switch v.Kind {
	case ValBool:
		return fmt.Sprintf("%t", v.AsBool())
	case ValInt:
		return fmt.Sprintf("%d", v.AsInt())
	case ValString:
		return fmt.Sprintf("%q", v.AsString())
	case ValBytes:
		return fmt.Sprintf("0x%x", v.Obj.([]byte))
	case ValAddr:
		return v.AsAddr().String()
	case ValPrefix:
		return v.AsPrefix().String()
	case ValAsn:
		return fmt.Sprintf("AS%d", v.AsAsn())
	case ValCommunity:
		return fmt.Sprintf("%d:%d", v.Data>>16, v.Data&0xFFFF)
	case ValAsPath:
		parts := make([]string, len(v.AsAsPath()))
		for i, asn := range v.AsAsPath() {
			parts[i] = fmt.Sprintf("AS%d", asn)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case ValList:
		parts := make([]string, len(v.AsList()))
		for i, e := range v.AsList() {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ValRecord:
		r := v.AsRecord()
		parts := make([]string, len(r.Names))
		for i, n := range r.Names {
			parts[i] = n + ": " + r.Vals[i].String()
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case ValEnum:
		if p := v.EnumPayload(); p != nil {
			return fmt.Sprintf("variant(%d, %s)", v.EnumTag(), p)
		}
		return fmt.Sprintf("variant(%d)", v.EnumTag())
	case ValExternal:
		return fmt.Sprintf("external(%T)", v.Obj)
	}
	return "?"
}

// valuesEqual is the == the language exposes. The checker only admits
// comparisons between equal types, so mismatched kinds simply compare
// unequal.
func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValBool, ValInt, ValAsn, ValCommunity:
		return a.Data == b.Data
	case ValString:
		return a.AsString() == b.AsString()
	case ValBytes:
		ab, bb := a.Obj.([]byte), b.Obj.([]byte)
		if len(ab) != len(bb) {
			return false
		}
		for i := range ab {
			if ab[i] != bb[i] {
				return false
			}
		}
		return true
	case ValAddr:
		return a.AsAddr() == b.AsAddr()
	case ValPrefix:
		return a.AsPrefix() == b.AsPrefix()
	case ValAsPath:
		ap, bp := a.AsAsPath(), b.AsAsPath()
		if len(ap) != len(bp) {
			return false
		}
		for i := range ap {
			if ap[i] != bp[i] {
				return false
			}
		}
		return true
	case ValList:
		al, bl := a.AsList(), b.AsList()
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !valuesEqual(al[i], bl[i]) {
				return false
			}
		}
		return true
	case ValRecord:
		ar, br := a.AsRecord(), b.AsRecord()
		if len(ar.Names) != len(br.Names) {
			return false
		}
		for i := range ar.Names {
			if ar.Names[i] != br.Names[i] || !valuesEqual(ar.Vals[i], br.Vals[i]) {
				return false
			}
		}
		return true
	case ValEnum:
		if a.Data != b.Data {
			return false
		}
		ap, bp := a.EnumPayload(), b.EnumPayload()
		if (ap == nil) != (bp == nil) {
			return false
		}
		return ap == nil || valuesEqual(*ap, *bp)
	case ValExternal:
		return a.Obj == b.Obj
	}
	return false
}

// Package types defines the Ruta type model: primitives, records, enums,
// lists, functions, and host-registered external types. Primitives, records,
// enums and lists compare structurally; external types compare nominally.
package types

import (
	"fmt"
	"strings"
)

// Type is the closed union of all Ruta types.
type Type interface {
	typeNode()
	String() string
}

// Kind enumerates the primitive types.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindString
	KindBytes
	KindAsn
	KindIpAddr
	KindPrefix
	KindPrefixLength
	KindCommunity
	KindAsPath
)

var kindNames = map[Kind]string{
	KindBool:         "Bool",
	KindInt:          "Int",
	KindString:       "String",
	KindBytes:        "Bytes",
	KindAsn:          "Asn",
	KindIpAddr:       "IpAddr",
	KindPrefix:       "Prefix",
	KindPrefixLength: "PrefixLength",
	KindCommunity:    "Community",
	KindAsPath:       "AsPath",
}

// Primitive is a built-in scalar type.
type Primitive struct {
	Kind Kind
}

func (p *Primitive) typeNode()      {}
func (p *Primitive) String() string { return kindNames[p.Kind] }

// Shared instances; primitives are immutable, so one value per kind serves
// the whole compiler.
var (
	Bool         = &Primitive{KindBool}
	Int          = &Primitive{KindInt}
	String       = &Primitive{KindString}
	Bytes        = &Primitive{KindBytes}
	Asn          = &Primitive{KindAsn}
	IpAddr       = &Primitive{KindIpAddr}
	Prefix       = &Primitive{KindPrefix}
	PrefixLength = &Primitive{KindPrefixLength}
	Community    = &Primitive{KindCommunity}
	AsPath       = &Primitive{KindAsPath}
)

// primitivesByName lets the checker resolve type annotations.
var primitivesByName = map[string]*Primitive{
	"Bool":         Bool,
	"Int":          Int,
	"String":       String,
	"Bytes":        Bytes,
	"Asn":          Asn,
	"IpAddr":       IpAddr,
	"Prefix":       Prefix,
	"PrefixLength": PrefixLength,
	"Community":    Community,
	"AsPath":       AsPath,
}

// PrimitiveByName returns the primitive with the given source-level name.
func PrimitiveByName(name string) (*Primitive, bool) {
	p, ok := primitivesByName[name]
	return p, ok
}

// List is `[T]`.
type List struct {
	Elem Type
}

func (l *List) typeNode()      {}
func (l *List) String() string { return "[" + l.Elem.String() + "]" }

// Field is one named record field.
type Field struct {
	Name string
	Type Type
}

// Record is a record type. Name is empty for anonymous record literals;
// comparison is structural either way.
type Record struct {
	Name   string
	Fields []Field
}

func (r *Record) typeNode() {}
func (r *Record) String() string {
	if r.Name != "" {
		return r.Name
	}
	parts := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		parts[i] = f.Name + ": " + f.Type.String()
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// FieldType returns the type of the named field.
func (r *Record) FieldType(name string) (Type, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return nil, false
}

// Variant is one enum variant; Payload is nil for bare variants.
type Variant struct {
	Name    string
	Payload Type
}

// Enum is a named enum type with payload-carrying variants.
type Enum struct {
	Name     string
	Variants []Variant
}

func (e *Enum) typeNode()      {}
func (e *Enum) String() string { return e.Name }

// VariantIndex returns the position of the named variant.
func (e *Enum) VariantIndex(name string) (int, bool) {
	for i, v := range e.Variants {
		if v.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Function is the type of a declared helper function.
type Function struct {
	Params []Type
	Return Type // nil when the function returns nothing
}

func (f *Function) typeNode() {}
func (f *Function) String() string {
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		parts[i] = p.String()
	}
	s := "function(" + strings.Join(parts, ", ") + ")"
	if f.Return != nil {
		s += " -> " + f.Return.String()
	}
	return s
}

// External is an opaque host-registered type, compared nominally.
type External struct {
	Name string
}

func (e *External) typeNode()      {}
func (e *External) String() string { return e.Name }

// Equal reports type compatibility: structural for primitives, lists,
// records and enums, nominal for externals.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	switch at := a.(type) {
	case *Primitive:
		bt, ok := b.(*Primitive)
		return ok && at.Kind == bt.Kind
	case *List:
		bt, ok := b.(*List)
		return ok && Equal(at.Elem, bt.Elem)
	case *Record:
		bt, ok := b.(*Record)
		if !ok || len(at.Fields) != len(bt.Fields) {
			return false
		}
		// Structural: same field set, order-insensitive.
		for _, f := range at.Fields {
			other, found := bt.FieldType(f.Name)
			if !found || !Equal(f.Type, other) {
				return false
			}
		}
		return true
	case *Enum:
		bt, ok := b.(*Enum)
		if !ok || len(at.Variants) != len(bt.Variants) {
			return false
		}
		for i, v := range at.Variants {
			if v.Name != bt.Variants[i].Name || !Equal(v.Payload, bt.Variants[i].Payload) {
				return false
			}
		}
		return true
	case *Function:
		bt, ok := b.(*Function)
		if !ok || len(at.Params) != len(bt.Params) || !Equal(at.Return, bt.Return) {
			return false
		}
		for i := range at.Params {
			if !Equal(at.Params[i], bt.Params[i]) {
				return false
			}
		}
		return true
	case *External:
		bt, ok := b.(*External)
		return ok && at.Name == bt.Name
	default:
		panic(fmt.Sprintf("types: unknown type %T", a))
	}
}

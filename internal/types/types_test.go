package types

import "testing"

func TestPrimitiveEquality(t *testing.T) {
	if !Equal(Int, Int) {
		t.Error("Int != Int")
	}
	if Equal(Int, Bool) {
		t.Error("Int == Bool")
	}
	if Equal(Asn, Int) {
		t.Error("Asn == Int, conversions must be explicit")
	}
}

func TestRecordStructuralEquality(t *testing.T) {
	a := &Record{Name: "A", Fields: []Field{{"x", Int}, {"y", Bool}}}
	b := &Record{Name: "B", Fields: []Field{{"y", Bool}, {"x", Int}}}
	if !Equal(a, b) {
		t.Error("records with the same field set must compare equal regardless of name and order")
	}
	c := &Record{Fields: []Field{{"x", Int}}}
	if Equal(a, c) {
		t.Error("records with different field sets compared equal")
	}
}

func TestEnumStructuralEquality(t *testing.T) {
	a := &Enum{Name: "Origin", Variants: []Variant{{"Igp", nil}, {"Egp", nil}, {"Incomplete", Int}}}
	b := &Enum{Name: "Other", Variants: []Variant{{"Igp", nil}, {"Egp", nil}, {"Incomplete", Int}}}
	if !Equal(a, b) {
		t.Error("structurally identical enums must compare equal")
	}
	c := &Enum{Name: "Origin", Variants: []Variant{{"Igp", nil}, {"Egp", nil}}}
	if Equal(a, c) {
		t.Error("enums with different variants compared equal")
	}
}

func TestExternalNominalEquality(t *testing.T) {
	if !Equal(&External{Name: "Route"}, &External{Name: "Route"}) {
		t.Error("same-name externals must compare equal")
	}
	if Equal(&External{Name: "Route"}, &External{Name: "BmpMessage"}) {
		t.Error("distinct externals compared equal")
	}
}

func TestRegistrySealing(t *testing.T) {
	r := NewRegistry()
	route := ExternalType{
		Name: "Route",
		Fields: []ExternalField{
			{Name: "prefix", Type: Prefix},
			{Name: "as_path", Type: AsPath},
		},
	}
	if err := r.Register(route); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register(route); err == nil {
		t.Error("duplicate registration must fail")
	}
	r.Seal()
	if err := r.Register(ExternalType{Name: "Late"}); err == nil {
		t.Error("registration after Seal must fail")
	}
	et, ok := r.Lookup("Route")
	if !ok {
		t.Fatal("lookup after seal failed")
	}
	if f, ok := et.Field("prefix"); !ok || !Equal(f.Type, Prefix) {
		t.Errorf("field lookup got %+v", f)
	}
}

func TestBuiltinMethodLookup(t *testing.T) {
	m, ok := LookupBuiltinMethod(Prefix, "len")
	if !ok || !Equal(m.Return, PrefixLength) {
		t.Errorf("Prefix.len got %+v ok=%v", m, ok)
	}
	m, ok = LookupBuiltinMethod(&List{Elem: Community}, "contains")
	if !ok || len(m.Params) != 1 || !Equal(m.Params[0], Community) {
		t.Errorf("[Community].contains got %+v ok=%v", m, ok)
	}
	if _, ok := LookupBuiltinMethod(Bool, "len"); ok {
		t.Error("Bool.len should not resolve")
	}
}

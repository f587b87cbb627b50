package types

import "fmt"

// ExternalField describes one host-provided field of an external type. The
// checker resolves `value.field` against it; at run time the read goes
// through the Program's external-call table.
type ExternalField struct {
	Name string
	Type Type
}

// ExternalMethod describes one host-provided method of an external type.
type ExternalMethod struct {
	Name   string
	Params []Type
	Return Type
}

// ExternalType is the registered surface of one opaque host type.
type ExternalType struct {
	Name    string
	Fields  []ExternalField
	Methods []ExternalMethod
}

// Field returns the named field declaration.
func (e *ExternalType) Field(name string) (*ExternalField, bool) {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i], true
		}
	}
	return nil, false
}

// Method returns the named method declaration.
func (e *ExternalType) Method(name string) (*ExternalMethod, bool) {
	for i := range e.Methods {
		if e.Methods[i].Name == name {
			return &e.Methods[i], true
		}
	}
	return nil, false
}

// Registry is the closed table of external types the host exposes to
// policies. It must be fully populated and sealed before any compilation
// that references its names; a sealed registry is immutable and safe for
// concurrent reads.
type Registry struct {
	types  map[string]*ExternalType
	order  []string
	sealed bool
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*ExternalType)}
}

// Register adds an external type. It fails once the registry is sealed and
// on duplicate names.
func (r *Registry) Register(et ExternalType) error {
	if r.sealed {
		return fmt.Errorf("registry is sealed, cannot register %q", et.Name)
	}
	if _, dup := r.types[et.Name]; dup {
		return fmt.Errorf("external type %q registered twice", et.Name)
	}
	cp := et
	r.types[et.Name] = &cp
	r.order = append(r.order, et.Name)
	return nil
}

// Seal closes the registry. After Seal no further registration is accepted.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether the registry has been closed.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Lookup returns the registered external type with the given name.
func (r *Registry) Lookup(name string) (*ExternalType, bool) {
	et, ok := r.types[name]
	return et, ok
}

// Names returns the registered type names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

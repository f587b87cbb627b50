package ruta

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ruta-lang/ruta/internal/pipeline"
	"github.com/ruta-lang/ruta/internal/types"
	"github.com/ruta-lang/ruta/internal/vm"
)

// FieldDef exposes one readable field of a host type. Get receives the
// value the host passed in for the receiver.
type FieldDef struct {
	Name string
	Type Type
	Get  func(recv any) (Value, error)
}

// MethodDef exposes one callable method of a host type.
type MethodDef struct {
	Name   string
	Params []Type
	Return Type
	Call   func(recv any, args []Value) (Value, error)
}

// TypeDef is one opaque host type as policies see it.
type TypeDef struct {
	Name    string
	Fields  []FieldDef
	Methods []MethodDef
}

// Host owns the external type surface and its bindings.
type Host struct {
	reg      *types.Registry
	bindings map[string]vm.ExternalFunc
	budget   int
}

// NewHost returns an empty, unsealed host.
func NewHost() *Host {
	return &Host{
		reg:      types.NewRegistry(),
		bindings: make(map[string]vm.ExternalFunc),
	}
}

// SetBudget caps instructions per invocation for policies compiled after
// the call. Zero keeps the default.
func (h *Host) SetBudget(budget int) { h.budget = budget }

// Register adds one host type. All registrations must happen before Seal.
func (h *Host) Register(def TypeDef) error {
	et := types.ExternalType{Name: def.Name}
	for _, f := range def.Fields {
		if f.Get == nil {
			return fmt.Errorf("ruta: %s.%s has no getter", def.Name, f.Name)
		}
		et.Fields = append(et.Fields, types.ExternalField{Name: f.Name, Type: f.Type})
		get := f.Get
		h.bindings[def.Name+"."+f.Name] = func(args []Value) (Value, error) {
			return get(args[0].Obj)
		}
	}
	for _, m := range def.Methods {
		if m.Call == nil {
			return fmt.Errorf("ruta: %s.%s has no implementation", def.Name, m.Name)
		}
		et.Methods = append(et.Methods, types.ExternalMethod{
			Name:   m.Name,
			Params: m.Params,
			Return: m.Return,
		})
		call := m.Call
		h.bindings[def.Name+"."+m.Name] = func(args []Value) (Value, error) {
			return call(args[0].Obj, args[1:])
		}
	}
	return h.reg.Register(et)
}

// Seal fixes the type surface. Compile refuses to run before Seal.
func (h *Host) Seal() { h.reg.Seal() }

// Compile builds one policy unit against the sealed surface. On any
// error diagnostic the returned policy is nil and the diagnostics carry
// the findings; err then summarizes.
func (h *Host) Compile(source, unitName string) (*Policy, []Diagnostic, error) {
	if !h.reg.Sealed() {
		return nil, nil, fmt.Errorf("ruta: host is not sealed")
	}
	res := pipeline.Compile(source, unitName, h.reg)
	if res.Program == nil {
		return nil, res.Diags, fmt.Errorf("ruta: %s does not compile", unitName)
	}
	machine, err := vm.Attach(res.Program, h.bindings, vm.Options{Budget: h.budget})
	if err != nil {
		return nil, res.Diags, err
	}
	return &Policy{machine: machine}, res.Diags, nil
}

// CompileFile is Compile over a file on disk.
func (h *Host) CompileFile(path string) (*Policy, []Diagnostic, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	return h.Compile(string(src), filepath.Base(path))
}

// Policy is one compiled, bound unit. Safe for concurrent Run.
type Policy struct {
	machine *vm.Machine
}

// Run invokes the named filtermap, filter or function.
func (p *Policy) Run(entry string, args []Value) (Outcome, error) {
	return p.machine.Run(entry, args)
}

// Entrypoints lists the unit's filtermaps and filters.
func (p *Policy) Entrypoints() []string {
	return p.machine.Program().Entrypoints()
}

// Fingerprint identifies the compiled artifact; identical source against
// an identical surface yields an identical fingerprint.
func (p *Policy) Fingerprint() [32]byte {
	return p.machine.Program().Fingerprint()
}

// Disassemble renders the compiled bytecode.
func (p *Policy) Disassemble() string {
	return vm.Disassemble(p.machine.Program())
}

// Package checker resolves names and types over the parsed AST. It never
// stops at the first error: every declaration is checked, diagnostics
// accumulate in the shared bag, and the returned Info is complete for all
// parts that checked cleanly.
package checker

import (
	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
	"github.com/ruta-lang/ruta/internal/types"
)

// SymbolKind distinguishes how a name was introduced.
type SymbolKind int

const (
	SymLet SymbolKind = iota
	SymParam
	SymBinding // match-arm payload binding
)

// Symbol is one resolved value binding. Lowering uses Symbol identity to
// assign local slots, so every occurrence of a name must resolve to the
// same *Symbol.
type Symbol struct {
	Name string
	Kind SymbolKind
	Type types.Type
	Decl diag.Span

	used bool
}

// FuncSig is the checked signature of a function, filter or filtermap.
type FuncSig struct {
	Name   string
	Kind   token.Type // token.FUNCTION, token.FILTERMAP or token.FILTER
	Params []types.Type
	Return types.Type // nil when nothing is returned; for policies, the accept payload type

	decl ast.Decl
	used bool
}

// ExternalRef names one external-call-table entry, "Type.member".
type ExternalRef struct {
	Type   string
	Member string
}

func (r ExternalRef) String() string { return r.Type + "." + r.Member }

// Info carries everything later stages need from checking. Maps are keyed
// by AST node identity.
type Info struct {
	// Types holds the resolved type of every expression that checked
	// cleanly. Nodes with errors have no entry.
	Types map[ast.Expr]types.Type
	// Defs maps declaration sites (let names, params, match bindings) to
	// their symbol.
	Defs map[*ast.Ident]*Symbol
	// Uses maps identifier expressions to the symbol they resolve to.
	Uses map[*ast.IdentExpr]*Symbol
	// Builtins maps method calls on built-in receivers to the resolved
	// builtin signature.
	Builtins map[*ast.MethodCallExpr]types.BuiltinMethod
	// Externals maps field reads and method calls on external receivers
	// to their call-table entry. Keyed by *ast.FieldExpr or
	// *ast.MethodCallExpr.
	Externals map[ast.Expr]ExternalRef
	// Funcs holds every checked signature by name.
	Funcs map[string]*FuncSig
	// Records and Enums hold the declared named types.
	Records map[string]*types.Record
	Enums   map[string]*types.Enum
}

// scope is one arena entry. parent is an index into the arena, -1 at the
// root. The arena lives for a single Check call.
type scope struct {
	parent  int
	symbols map[string]*Symbol
	order   []*Symbol
}

type checker struct {
	reg   *types.Registry
	diags *diag.Bag
	info  *Info

	scopes []scope
	cur    int

	// call graph, caller name to callee names, for recursion detection
	calls map[string][]string
	curFn string

	// current function context
	fnKind   token.Type
	fnReturn types.Type
	// payload type accepted so far in the current policy; set by the
	// first value-carrying accept, later accepts must agree
	acceptType types.Type
	acceptSeen bool
}

// Check resolves and type-checks one compilation unit against a sealed
// external-type registry. Diagnostics go to diags; the returned Info is
// valid even when errors were recorded, but only error-free declarations
// are fully annotated.
func Check(unit *ast.Unit, reg *types.Registry, diags *diag.Bag) *Info {
	c := &checker{
		reg:   reg,
		diags: diags,
		info: &Info{
			Types:     make(map[ast.Expr]types.Type),
			Defs:      make(map[*ast.Ident]*Symbol),
			Uses:      make(map[*ast.IdentExpr]*Symbol),
			Builtins:  make(map[*ast.MethodCallExpr]types.BuiltinMethod),
			Externals: make(map[ast.Expr]ExternalRef),
			Funcs:     make(map[string]*FuncSig),
			Records:   make(map[string]*types.Record),
			Enums:     make(map[string]*types.Enum),
		},
		calls: make(map[string][]string),
		cur:   -1,
	}

	c.collectTypeDecls(unit)
	c.collectSignatures(unit)
	for _, d := range unit.Decls {
		switch d := d.(type) {
		case *ast.FilterMapDecl:
			c.checkPolicy(d)
		case *ast.FunctionDecl:
			c.checkFunction(d)
		}
	}
	c.checkRecursion(unit)
	c.reportUnusedFunctions(unit)
	return c.info
}

// checkRecursion rejects call cycles. The language guarantees termination,
// so neither direct nor mutual recursion may reach the VM.
func (c *checker) checkRecursion(unit *ast.Unit) {
	reaches := func(from, to string) bool {
		seen := map[string]bool{from: true}
		work := []string{from}
		for len(work) > 0 {
			cur := work[0]
			work = work[1:]
			for _, callee := range c.calls[cur] {
				if callee == to {
					return true
				}
				if !seen[callee] {
					seen[callee] = true
					work = append(work, callee)
				}
			}
		}
		return false
	}
	for _, d := range unit.Decls {
		fd, ok := d.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		if reaches(fd.Name.Name, fd.Name.Name) {
			c.errorf(diag.KindRecursiveCall, fd.Name.Sp,
				"%q calls itself, directly or through another function", fd.Name.Name)
		}
	}
}

// collectTypeDecls builds the named record and enum types before any body
// is checked, so declaration order does not matter.
func (c *checker) collectTypeDecls(unit *ast.Unit) {
	for _, d := range unit.Decls {
		switch d := d.(type) {
		case *ast.RecordDecl:
			if c.typeNameTaken(d.Name) {
				continue
			}
			c.info.Records[d.Name.Name] = &types.Record{Name: d.Name.Name}
		case *ast.EnumDecl:
			if c.typeNameTaken(d.Name) {
				continue
			}
			c.info.Enums[d.Name.Name] = &types.Enum{Name: d.Name.Name}
		}
	}
	// Second pass: fill in field and variant types, which may reference
	// any declared name.
	for _, d := range unit.Decls {
		switch d := d.(type) {
		case *ast.RecordDecl:
			rec, ok := c.info.Records[d.Name.Name]
			if !ok || len(rec.Fields) > 0 {
				continue
			}
			for _, f := range d.Fields {
				ft := c.resolveType(f.Type)
				if ft == nil {
					ft = types.Int // placeholder after an error
				}
				rec.Fields = append(rec.Fields, types.Field{Name: f.Name.Name, Type: ft})
			}
		case *ast.EnumDecl:
			en, ok := c.info.Enums[d.Name.Name]
			if !ok || len(en.Variants) > 0 {
				continue
			}
			seen := map[string]bool{}
			for _, v := range d.Variants {
				if seen[v.Name.Name] {
					c.errorf(diag.KindDuplicateSymbol, v.Name.Sp,
						"variant %q declared twice in enum %q", v.Name.Name, d.Name.Name)
					continue
				}
				seen[v.Name.Name] = true
				var payload types.Type
				if v.Payload != nil {
					payload = c.resolveType(v.Payload)
				}
				en.Variants = append(en.Variants, types.Variant{Name: v.Name.Name, Payload: payload})
			}
		}
	}
}

func (c *checker) typeNameTaken(name *ast.Ident) bool {
	_, isRec := c.info.Records[name.Name]
	_, isEnum := c.info.Enums[name.Name]
	_, isPrim := types.PrimitiveByName(name.Name)
	_, isExt := c.reg.Lookup(name.Name)
	if isRec || isEnum || isPrim || isExt {
		c.errorf(diag.KindDuplicateSymbol, name.Sp, "type %q is already declared", name.Name)
		return true
	}
	return false
}

// collectSignatures registers every callable before bodies are checked, so
// forward calls resolve.
func (c *checker) collectSignatures(unit *ast.Unit) {
	for _, d := range unit.Decls {
		var name *ast.Ident
		var params []*ast.Param
		var ret *ast.TypeName
		var kind token.Type
		switch d := d.(type) {
		case *ast.FilterMapDecl:
			name, params, kind = d.Name, d.Params, d.Kind
		case *ast.FunctionDecl:
			name, params, ret, kind = d.Name, d.Params, d.Return, token.FUNCTION
		default:
			continue
		}
		if _, dup := c.info.Funcs[name.Name]; dup {
			c.errorf(diag.KindDuplicateSymbol, name.Sp, "%q is already declared", name.Name)
			continue
		}
		sig := &FuncSig{Name: name.Name, Kind: kind, decl: d}
		for _, p := range params {
			pt := c.resolveType(p.Type)
			if pt == nil {
				pt = types.Int
			}
			sig.Params = append(sig.Params, pt)
		}
		if ret != nil {
			sig.Return = c.resolveType(ret)
		}
		c.info.Funcs[name.Name] = sig
	}
}

// resolveType maps a source type reference to a type. Emits UndefinedType
// and returns nil when the name is unknown.
func (c *checker) resolveType(tn *ast.TypeName) types.Type {
	var base types.Type
	if p, ok := types.PrimitiveByName(tn.Name); ok {
		base = p
	} else if r, ok := c.info.Records[tn.Name]; ok {
		base = r
	} else if e, ok := c.info.Enums[tn.Name]; ok {
		base = e
	} else if _, ok := c.reg.Lookup(tn.Name); ok {
		base = &types.External{Name: tn.Name}
	} else {
		c.errorf(diag.KindUndefinedType, tn.Sp, "undefined type %q", tn.Name)
		return nil
	}
	if tn.IsList {
		return &types.List{Elem: base}
	}
	return base
}

// pushScope allocates a new arena entry under the current one.
func (c *checker) pushScope() {
	c.scopes = append(c.scopes, scope{parent: c.cur, symbols: map[string]*Symbol{}})
	c.cur = len(c.scopes) - 1
}

// popScope returns to the parent scope, reporting unused let bindings on
// the way out. The arena entry itself is kept until the Check call ends.
func (c *checker) popScope() {
	s := &c.scopes[c.cur]
	for _, sym := range s.order {
		if !sym.used && sym.Kind == SymLet {
			c.diags.Add(diag.Warnf(diag.StageChecker, diag.KindUnusedDeclaration, sym.Decl,
				"%q is declared but never used", sym.Name))
		}
	}
	c.cur = s.parent
}

// define introduces a symbol in the current scope. Shadowing an outer
// binding is fine; redeclaring within the same scope is an error.
func (c *checker) define(name *ast.Ident, kind SymbolKind, t types.Type) *Symbol {
	s := &c.scopes[c.cur]
	if prev, dup := s.symbols[name.Name]; dup {
		c.diags.Add(diag.Errorf(diag.StageChecker, diag.KindDuplicateSymbol, name.Sp,
			"%q is already declared in this scope", name.Name).
			WithLabel(prev.Decl, "previous declaration"))
		return prev
	}
	sym := &Symbol{Name: name.Name, Kind: kind, Type: t, Decl: name.Sp}
	s.symbols[name.Name] = sym
	s.order = append(s.order, sym)
	c.info.Defs[name] = sym
	return sym
}

// resolve walks the scope chain for a name.
func (c *checker) resolve(name string) *Symbol {
	for i := c.cur; i >= 0; i = c.scopes[i].parent {
		if sym, ok := c.scopes[i].symbols[name]; ok {
			return sym
		}
	}
	return nil
}

func (c *checker) errorf(kind diag.Kind, span diag.Span, format string, args ...any) {
	c.diags.Add(diag.Errorf(diag.StageChecker, kind, span, format, args...))
}

// reportUnusedFunctions walks declarations in source order so warnings come
// out deterministically.
func (c *checker) reportUnusedFunctions(unit *ast.Unit) {
	for _, d := range unit.Decls {
		fd, ok := d.(*ast.FunctionDecl)
		if !ok {
			continue
		}
		sig, ok := c.info.Funcs[fd.Name.Name]
		if ok && sig.decl == ast.Decl(fd) && !sig.used {
			c.diags.Add(diag.Warnf(diag.StageChecker, diag.KindUnusedDeclaration,
				fd.Name.Sp, "function %q is declared but never called", sig.Name))
		}
	}
}

package checker

import (
	"strings"

	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
	"github.com/ruta-lang/ruta/internal/types"
)

// checkExpr infers the type of e, records it in Info.Types and returns it.
// A nil result means the expression (or one of its parts) already produced
// a diagnostic; callers treat nil as "do not pile on".
//
// want is a hint, not a demand: it steers integer literals to Asn or
// PrefixLength and gives empty list literals an element type. Callers that
// require the hint to hold still compare the result themselves.
func (c *checker) checkExpr(e ast.Expr, want types.Type) types.Type {
	t := c.inferExpr(e, want)
	if t != nil {
		c.info.Types[e] = t
	}
	return t
}

func (c *checker) inferExpr(e ast.Expr, want types.Type) types.Type {
	switch e := e.(type) {
	case *ast.LiteralExpr:
		return c.literalType(e, want)
	case *ast.IdentExpr:
		return c.checkIdent(e)
	case *ast.UnaryExpr:
		return c.checkUnary(e)
	case *ast.BinaryExpr:
		return c.checkBinary(e)
	case *ast.CallExpr:
		return c.checkCall(e)
	case *ast.MethodCallExpr:
		return c.checkMethodCall(e)
	case *ast.FieldExpr:
		return c.checkField(e)
	case *ast.RecordExpr:
		return c.checkRecordLit(e)
	case *ast.TypedRecordExpr:
		return c.checkTypedRecordLit(e)
	case *ast.ListExpr:
		return c.checkList(e, want)
	case *ast.EnumExpr:
		return c.checkEnumLit(e)
	case *ast.IfExpr:
		return c.checkIfValue(e, want)
	case *ast.MatchExpr:
		return c.checkMatchValue(e, want)
	case *ast.BadExpr:
		return nil
	default:
		return nil
	}
}

// literalType maps literal kinds to types. Integer literals default to Int
// and widen to Asn or PrefixLength when the context asks for one; this is
// the only implicit conversion in the language.
func (c *checker) literalType(e *ast.LiteralExpr, want types.Type) types.Type {
	switch e.Kind {
	case ast.LitInt:
		if p, ok := want.(*types.Primitive); ok {
			if p.Kind == types.KindAsn || p.Kind == types.KindPrefixLength {
				return p
			}
		}
		return types.Int
	case ast.LitBool:
		return types.Bool
	case ast.LitString:
		return types.String
	case ast.LitIPv4:
		return types.IpAddr
	case ast.LitPrefix:
		return types.Prefix
	case ast.LitAsn:
		return types.Asn
	case ast.LitCommunity:
		return types.Community
	}
	return nil
}

func (c *checker) checkIdent(e *ast.IdentExpr) types.Type {
	if sym := c.resolve(e.Name); sym != nil {
		sym.used = true
		c.info.Uses[e] = sym
		return sym.Type
	}
	if _, isFunc := c.info.Funcs[e.Name]; isFunc {
		c.errorf(diag.KindTypeMismatch, e.Sp, "%q is a function and must be called", e.Name)
		return nil
	}
	c.errorf(diag.KindUndefinedSymbol, e.Sp, "undefined symbol %q", e.Name)
	return nil
}

func (c *checker) checkUnary(e *ast.UnaryExpr) types.Type {
	t := c.checkExpr(e.Operand, nil)
	if t == nil {
		return nil
	}
	switch e.Op {
	case token.BANG:
		if !types.Equal(t, types.Bool) {
			c.errorf(diag.KindTypeMismatch, e.Operand.Span(), "operator ! needs Bool, got %s", t)
			return nil
		}
		return types.Bool
	case token.MINUS:
		if !types.Equal(t, types.Int) {
			c.errorf(diag.KindTypeMismatch, e.Operand.Span(), "operator - needs Int, got %s", t)
			return nil
		}
		return types.Int
	}
	return nil
}

// checkOperands types both sides of a binary expression. When the left side
// is a bare integer literal the right side is typed first so the literal
// can widen toward it; otherwise left leads.
func (c *checker) checkOperands(e *ast.BinaryExpr) (lt, rt types.Type) {
	if lit, ok := e.Left.(*ast.LiteralExpr); ok && lit.Kind == ast.LitInt {
		rt = c.checkExpr(e.Right, nil)
		lt = c.checkExpr(e.Left, rt)
		return lt, rt
	}
	lt = c.checkExpr(e.Left, nil)
	rt = c.checkExpr(e.Right, lt)
	return lt, rt
}

func (c *checker) checkBinary(e *ast.BinaryExpr) types.Type {
	if e.Op == token.IN {
		return c.checkMembership(e)
	}
	lt, rt := c.checkOperands(e)
	if lt == nil || rt == nil {
		return nil
	}
	switch e.Op {
	case token.AND, token.OR:
		if !types.Equal(lt, types.Bool) || !types.Equal(rt, types.Bool) {
			c.errorf(diag.KindTypeMismatch, e.Sp,
				"operator %s needs Bool operands, got %s and %s", e.Op, lt, rt)
			return nil
		}
		return types.Bool
	case token.EQ, token.NOT_EQ:
		if !types.Equal(lt, rt) {
			c.errorf(diag.KindTypeMismatch, e.Sp, "cannot compare %s with %s", lt, rt)
			return nil
		}
		return types.Bool
	case token.LT, token.LTE, token.GT, token.GTE:
		if !types.Equal(lt, rt) {
			c.errorf(diag.KindTypeMismatch, e.Sp, "cannot compare %s with %s", lt, rt)
			return nil
		}
		if !ordered(lt) {
			c.errorf(diag.KindTypeMismatch, e.Sp, "%s values have no ordering", lt)
			return nil
		}
		return types.Bool
	case token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.PERCENT:
		if !types.Equal(lt, types.Int) || !types.Equal(rt, types.Int) {
			c.errorf(diag.KindTypeMismatch, e.Sp,
				"operator %s needs Int operands, got %s and %s", e.Op, lt, rt)
			return nil
		}
		return types.Int
	}
	return nil
}

// checkMembership types `x in xs` and `x not in xs`. The container is a
// list or an AS path; lowering turns both into the matching contains
// builtin.
func (c *checker) checkMembership(e *ast.BinaryExpr) types.Type {
	rt := c.checkExpr(e.Right, nil)
	if rt == nil {
		c.checkExpr(e.Left, nil)
		return nil
	}
	var elem types.Type
	switch ct := rt.(type) {
	case *types.List:
		elem = ct.Elem
	case *types.Primitive:
		if ct.Kind == types.KindAsPath {
			elem = types.Asn
			break
		}
		c.errorf(diag.KindTypeMismatch, e.Right.Span(), "%s is not a container", rt)
		return nil
	default:
		c.errorf(diag.KindTypeMismatch, e.Right.Span(), "%s is not a container", rt)
		return nil
	}
	lt := c.checkExpr(e.Left, elem)
	if lt == nil {
		return nil
	}
	if !types.Equal(lt, elem) {
		c.errorf(diag.KindTypeMismatch, e.Sp, "cannot look for %s in %s", lt, rt)
		return nil
	}
	return types.Bool
}

func ordered(t types.Type) bool {
	p, ok := t.(*types.Primitive)
	if !ok {
		return false
	}
	switch p.Kind {
	case types.KindInt, types.KindAsn, types.KindPrefixLength:
		return true
	}
	return false
}

func (c *checker) checkCall(e *ast.CallExpr) types.Type {
	sig, ok := c.info.Funcs[e.Fn.Name]
	if !ok {
		c.errorf(diag.KindUndefinedSymbol, e.Fn.Sp, "undefined symbol %q", e.Fn.Name)
		for _, a := range e.Args {
			c.checkExpr(a, nil)
		}
		return nil
	}
	if sig.Kind != token.FUNCTION {
		c.errorf(diag.KindTypeMismatch, e.Fn.Sp,
			"%q is a %s entry point, not a callable function", e.Fn.Name, lowerKind(sig.Kind))
		return nil
	}
	sig.used = true
	c.calls[c.curFn] = append(c.calls[c.curFn], e.Fn.Name)
	if len(e.Args) != len(sig.Params) {
		c.errorf(diag.KindArityMismatch, e.Sp,
			"%q takes %d argument(s), got %d", e.Fn.Name, len(sig.Params), len(e.Args))
		for _, a := range e.Args {
			c.checkExpr(a, nil)
		}
		return sig.Return
	}
	for i, a := range e.Args {
		at := c.checkExpr(a, sig.Params[i])
		if at != nil && !types.Equal(at, sig.Params[i]) {
			c.errorf(diag.KindTypeMismatch, a.Span(),
				"argument %d of %q needs %s, got %s", i+1, e.Fn.Name, sig.Params[i], at)
		}
	}
	return sig.Return
}

func (c *checker) checkMethodCall(e *ast.MethodCallExpr) types.Type {
	rt := c.checkExpr(e.Recv, nil)
	if rt == nil {
		for _, a := range e.Args {
			c.checkExpr(a, nil)
		}
		return nil
	}
	if ext, ok := rt.(*types.External); ok {
		return c.checkExternalCall(e, ext)
	}
	m, ok := types.LookupBuiltinMethod(rt, e.Method.Name)
	if !ok {
		c.errorf(diag.KindUnknownMethod, e.Method.Sp, "%s has no method %q", rt, e.Method.Name)
		for _, a := range e.Args {
			c.checkExpr(a, nil)
		}
		return nil
	}
	c.info.Builtins[e] = m
	c.checkArgs(e.Method.Name, e.Args, m.Params, e.Sp)
	return m.Return
}

func (c *checker) checkExternalCall(e *ast.MethodCallExpr, ext *types.External) types.Type {
	et, ok := c.reg.Lookup(ext.Name)
	if !ok {
		c.errorf(diag.KindUndefinedType, e.Recv.Span(), "external type %q is not registered", ext.Name)
		return nil
	}
	m, ok := et.Method(e.Method.Name)
	if !ok {
		c.errorf(diag.KindUnknownMethod, e.Method.Sp, "%s has no method %q", ext.Name, e.Method.Name)
		for _, a := range e.Args {
			c.checkExpr(a, nil)
		}
		return nil
	}
	c.info.Externals[e] = ExternalRef{Type: ext.Name, Member: m.Name}
	c.checkArgs(e.Method.Name, e.Args, m.Params, e.Sp)
	return m.Return
}

func (c *checker) checkArgs(name string, args []ast.Expr, params []types.Type, sp diag.Span) {
	if len(args) != len(params) {
		c.errorf(diag.KindArityMismatch, sp,
			"%q takes %d argument(s), got %d", name, len(params), len(args))
		for _, a := range args {
			c.checkExpr(a, nil)
		}
		return
	}
	for i, a := range args {
		at := c.checkExpr(a, params[i])
		if at != nil && !types.Equal(at, params[i]) {
			c.errorf(diag.KindTypeMismatch, a.Span(),
				"argument %d of %q needs %s, got %s", i+1, name, params[i], at)
		}
	}
}

func (c *checker) checkField(e *ast.FieldExpr) types.Type {
	rt := c.checkExpr(e.Recv, nil)
	if rt == nil {
		return nil
	}
	switch t := rt.(type) {
	case *types.Record:
		ft, ok := t.FieldType(e.Field.Name)
		if !ok {
			c.errorf(diag.KindUnknownField, e.Field.Sp, "%s has no field %q", t, e.Field.Name)
			return nil
		}
		return ft
	case *types.External:
		et, ok := c.reg.Lookup(t.Name)
		if !ok {
			c.errorf(diag.KindUndefinedType, e.Recv.Span(), "external type %q is not registered", t.Name)
			return nil
		}
		f, ok := et.Field(e.Field.Name)
		if !ok {
			c.errorf(diag.KindUnknownField, e.Field.Sp, "%s has no field %q", t.Name, e.Field.Name)
			return nil
		}
		c.info.Externals[e] = ExternalRef{Type: t.Name, Member: f.Name}
		return f.Type
	default:
		c.errorf(diag.KindUnknownField, e.Field.Sp, "%s has no fields", rt)
		return nil
	}
}

func (c *checker) checkRecordLit(e *ast.RecordExpr) types.Type {
	rec := &types.Record{}
	seen := map[string]bool{}
	bad := false
	for _, f := range e.Fields {
		if seen[f.Name.Name] {
			c.errorf(diag.KindDuplicateSymbol, f.Name.Sp, "field %q given twice", f.Name.Name)
			bad = true
			continue
		}
		seen[f.Name.Name] = true
		ft := c.checkExpr(f.Value, nil)
		if ft == nil {
			bad = true
			continue
		}
		rec.Fields = append(rec.Fields, types.Field{Name: f.Name.Name, Type: ft})
	}
	if bad {
		return nil
	}
	return rec
}

func (c *checker) checkTypedRecordLit(e *ast.TypedRecordExpr) types.Type {
	rec, ok := c.info.Records[e.Type.Name]
	if !ok {
		c.errorf(diag.KindUndefinedType, e.Type.Sp, "undefined type %q", e.Type.Name)
		for _, f := range e.Fields {
			c.checkExpr(f.Value, nil)
		}
		return nil
	}
	given := map[string]bool{}
	for _, f := range e.Fields {
		if given[f.Name.Name] {
			c.errorf(diag.KindDuplicateSymbol, f.Name.Sp, "field %q given twice", f.Name.Name)
			continue
		}
		given[f.Name.Name] = true
		ft, ok := rec.FieldType(f.Name.Name)
		if !ok {
			c.errorf(diag.KindUnknownField, f.Name.Sp, "%s has no field %q", rec.Name, f.Name.Name)
			c.checkExpr(f.Value, nil)
			continue
		}
		vt := c.checkExpr(f.Value, ft)
		if vt != nil && !types.Equal(vt, ft) {
			c.errorf(diag.KindTypeMismatch, f.Value.Span(),
				"field %q of %s needs %s, got %s", f.Name.Name, rec.Name, ft, vt)
		}
	}
	var missing []string
	for _, f := range rec.Fields {
		if !given[f.Name] {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		c.errorf(diag.KindTypeMismatch, e.Sp,
			"%s literal is missing field(s) %s", rec.Name, strings.Join(missing, ", "))
	}
	return rec
}

func (c *checker) checkList(e *ast.ListExpr, want types.Type) types.Type {
	var elemWant types.Type
	if lw, ok := want.(*types.List); ok {
		elemWant = lw.Elem
	}
	if len(e.Elems) == 0 {
		if elemWant == nil {
			c.errorf(diag.KindTypeMismatch, e.Sp, "cannot infer the element type of an empty list")
			return nil
		}
		return &types.List{Elem: elemWant}
	}
	elem := elemWant
	for _, el := range e.Elems {
		et := c.checkExpr(el, elem)
		if et == nil {
			continue
		}
		if elem == nil {
			elem = et
			continue
		}
		if !types.Equal(et, elem) {
			c.errorf(diag.KindTypeMismatch, el.Span(),
				"list elements disagree, %s after %s", et, elem)
		}
	}
	if elem == nil {
		return nil
	}
	return &types.List{Elem: elem}
}

func (c *checker) checkEnumLit(e *ast.EnumExpr) types.Type {
	en, ok := c.info.Enums[e.Type.Name]
	if !ok {
		c.errorf(diag.KindUndefinedType, e.Type.Sp, "undefined type %q", e.Type.Name)
		if e.Payload != nil {
			c.checkExpr(e.Payload, nil)
		}
		return nil
	}
	idx, ok := en.VariantIndex(e.Variant.Name)
	if !ok {
		c.errorf(diag.KindUnknownVariant, e.Variant.Sp,
			"enum %s has no variant %q", en.Name, e.Variant.Name)
		return nil
	}
	v := en.Variants[idx]
	switch {
	case v.Payload == nil && e.Payload != nil:
		c.errorf(diag.KindArityMismatch, e.Payload.Span(),
			"variant %s.%s carries no payload", en.Name, v.Name)
		c.checkExpr(e.Payload, nil)
	case v.Payload != nil && e.Payload == nil:
		c.errorf(diag.KindArityMismatch, e.Variant.Sp,
			"variant %s.%s needs a %s payload", en.Name, v.Name, v.Payload)
	case v.Payload != nil:
		pt := c.checkExpr(e.Payload, v.Payload)
		if pt != nil && !types.Equal(pt, v.Payload) {
			c.errorf(diag.KindTypeMismatch, e.Payload.Span(),
				"variant %s.%s needs a %s payload, got %s", en.Name, v.Name, v.Payload, pt)
		}
	}
	return en
}

func (c *checker) checkCond(e ast.Expr) {
	t := c.checkExpr(e, nil)
	if t != nil && !types.Equal(t, types.Bool) {
		c.errorf(diag.KindTypeMismatch, e.Span(), "condition must be Bool, got %s", t)
	}
}

// checkIfValue checks an if in expression position: else is mandatory and
// both branches must produce the same type. A branch that ends in a
// terminal action contributes no value and no constraint.
func (c *checker) checkIfValue(e *ast.IfExpr, want types.Type) types.Type {
	c.checkCond(e.Cond)
	if e.Else == nil {
		c.errorf(diag.KindTypeMismatch, e.Sp, "if used as a value needs an else branch")
		c.checkBlock(e.Then)
		return nil
	}
	tt := c.checkBlockValue(e.Then, want)
	et := c.checkBlockValue(e.Else, want)
	switch {
	case tt == nil:
		return et
	case et == nil:
		return tt
	case !types.Equal(tt, et):
		c.errorf(diag.KindTypeMismatch, e.Sp, "if branches disagree, %s versus %s", tt, et)
		return nil
	}
	return tt
}

// checkBlockValue checks a block whose last expression statement is the
// block's value. A block ending in return/accept/reject diverges and
// yields nil without complaint.
func (c *checker) checkBlockValue(b *ast.Block, want types.Type) types.Type {
	c.pushScope()
	defer c.popScope()
	for i, s := range b.Stmts {
		last := i == len(b.Stmts)-1
		if !last {
			c.checkStmt(s)
			continue
		}
		switch s := s.(type) {
		case *ast.ExprStmt:
			return c.checkExpr(s.Value, want)
		case *ast.ReturnStmt:
			c.checkTerminal(s)
			return nil
		default:
			c.checkStmt(s)
		}
	}
	c.errorf(diag.KindTypeMismatch, b.Sp, "block used as a value must end in an expression")
	return nil
}

func (c *checker) checkMatchValue(e *ast.MatchExpr, want types.Type) types.Type {
	en := c.checkMatchSubject(e)
	var out types.Type = want
	for _, arm := range e.Arms {
		at := c.checkMatchArm(en, arm, out)
		if at == nil {
			continue
		}
		if out == nil {
			out = at
			continue
		}
		if !types.Equal(at, out) {
			c.errorf(diag.KindTypeMismatch, arm.Sp, "match arms disagree, %s after %s", at, out)
		}
	}
	c.checkExhaustive(e, en)
	return out
}

// checkMatchSubject types the subject and requires it to be an enum.
func (c *checker) checkMatchSubject(e *ast.MatchExpr) *types.Enum {
	t := c.checkExpr(e.Subject, nil)
	if t == nil {
		return nil
	}
	en, ok := t.(*types.Enum)
	if !ok {
		c.errorf(diag.KindTypeMismatch, e.Subject.Span(), "match needs an enum subject, got %s", t)
		return nil
	}
	return en
}

// checkMatchArm checks one arm. want is nil in statement position; in
// value position the arm body's value type is returned.
func (c *checker) checkMatchArm(en *types.Enum, arm *ast.MatchArm, want types.Type) types.Type {
	c.pushScope()
	defer c.popScope()
	if !arm.Wildcard && en != nil {
		idx, ok := en.VariantIndex(arm.Variant.Name)
		if !ok {
			c.errorf(diag.KindUnknownVariant, arm.Variant.Sp,
				"enum %s has no variant %q", en.Name, arm.Variant.Name)
		} else {
			v := en.Variants[idx]
			switch {
			case arm.Binding != nil && v.Payload == nil:
				c.errorf(diag.KindArityMismatch, arm.Binding.Sp,
					"variant %s.%s carries no payload to bind", en.Name, v.Name)
			case arm.Binding != nil:
				c.define(arm.Binding, SymBinding, v.Payload)
			}
		}
	}
	if want != nil || isValueArm(arm) {
		return c.checkBlockValue(arm.Body, want)
	}
	for _, s := range arm.Body.Stmts {
		c.checkStmt(s)
	}
	return nil
}

// isValueArm reports whether the arm body is a single bare expression, the
// shape the parser produces for `Variant(x) -> expr` arms.
func isValueArm(arm *ast.MatchArm) bool {
	if len(arm.Body.Stmts) != 1 {
		return false
	}
	_, ok := arm.Body.Stmts[0].(*ast.ExprStmt)
	return ok
}

// checkExhaustive requires every variant to be covered by an arm or a
// wildcard. Duplicate arms for one variant are an error in their own right.
func (c *checker) checkExhaustive(e *ast.MatchExpr, en *types.Enum) {
	if en == nil {
		return
	}
	covered := map[string]bool{}
	hasWildcard := false
	for _, arm := range e.Arms {
		if arm.Wildcard {
			hasWildcard = true
			continue
		}
		if covered[arm.Variant.Name] {
			c.errorf(diag.KindDuplicateSymbol, arm.Variant.Sp,
				"duplicate arm for variant %q", arm.Variant.Name)
			continue
		}
		covered[arm.Variant.Name] = true
	}
	if hasWildcard {
		return
	}
	var missing []string
	for _, v := range en.Variants {
		if !covered[v.Name] {
			missing = append(missing, v.Name)
		}
	}
	if len(missing) > 0 {
		c.errorf(diag.KindNonExhaustiveMatch, e.Sp,
			"match does not cover variant %s of %s", strings.Join(missing, ", "), en.Name)
	}
}

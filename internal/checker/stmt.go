package checker

import (
	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
	"github.com/ruta-lang/ruta/internal/types"
)

// checkPolicy checks a filtermap or filter body. Every control path must
// end in accept or reject; plain return is not available in policies.
func (c *checker) checkPolicy(d *ast.FilterMapDecl) {
	sig := c.info.Funcs[d.Name.Name]
	if sig == nil || sig.decl != ast.Decl(d) {
		return // duplicate declaration, already reported
	}
	c.fnKind = d.Kind
	c.fnReturn = nil
	c.curFn = d.Name.Name
	c.acceptType = nil
	c.acceptSeen = false

	c.pushScope()
	for i, p := range d.Params {
		c.define(p.Name, SymParam, sig.Params[i]).used = true
	}
	c.checkBlock(d.Body)
	c.popScope()

	if !c.terminates(d.Body) {
		c.errorf(diag.KindMissingReturn, d.Name.Sp,
			"not every path through %q ends in accept or reject", d.Name.Name)
	}
	sig.Return = c.acceptType
}

func (c *checker) checkFunction(d *ast.FunctionDecl) {
	sig := c.info.Funcs[d.Name.Name]
	if sig == nil || sig.decl != ast.Decl(d) {
		return
	}
	c.fnKind = token.FUNCTION
	c.fnReturn = sig.Return
	c.curFn = d.Name.Name

	c.pushScope()
	for i, p := range d.Params {
		c.define(p.Name, SymParam, sig.Params[i]).used = true
	}
	c.checkBlock(d.Body)
	c.popScope()

	if sig.Return != nil && !c.terminates(d.Body) {
		c.errorf(diag.KindMissingReturn, d.Name.Sp,
			"not every path through %q returns a %s", d.Name.Name, sig.Return)
	}
}

// checkBlock checks statements in a fresh child scope.
func (c *checker) checkBlock(b *ast.Block) {
	c.pushScope()
	for _, s := range b.Stmts {
		c.checkStmt(s)
	}
	c.popScope()
}

func (c *checker) checkStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.LetStmt:
		t := c.checkExpr(s.Value, nil)
		c.define(s.Name, SymLet, t)
	case *ast.ReturnStmt:
		c.checkTerminal(s)
	case *ast.ExprStmt:
		// if/match in statement position get block semantics; anything
		// else is checked for effect.
		switch e := s.Value.(type) {
		case *ast.IfExpr:
			c.checkIfStmt(e)
		case *ast.MatchExpr:
			c.checkMatchStmt(e)
		default:
			c.checkExpr(s.Value, nil)
		}
	}
}

// checkTerminal checks return, accept and reject against the enclosing
// declaration kind.
func (c *checker) checkTerminal(s *ast.ReturnStmt) {
	inPolicy := c.fnKind == token.FILTERMAP || c.fnKind == token.FILTER
	switch s.Kind {
	case token.RETURN:
		if inPolicy {
			c.errorf(diag.KindTypeMismatch, s.Sp,
				"return is not valid in a %s, use accept or reject", lowerKind(c.fnKind))
			return
		}
		switch {
		case c.fnReturn == nil && s.Value != nil:
			t := c.checkExpr(s.Value, nil)
			if t != nil {
				c.errorf(diag.KindTypeMismatch, s.Value.Span(),
					"function declares no return type but returns %s", t)
			}
		case c.fnReturn != nil && s.Value == nil:
			c.errorf(diag.KindTypeMismatch, s.Sp,
				"function declares return type %s but returns nothing", c.fnReturn)
		case c.fnReturn != nil:
			t := c.checkExpr(s.Value, c.fnReturn)
			if t != nil && !types.Equal(t, c.fnReturn) {
				c.errorf(diag.KindTypeMismatch, s.Value.Span(),
					"function declares return type %s, body returns %s", c.fnReturn, t)
			}
		}
	case token.ACCEPT:
		if !inPolicy {
			c.errorf(diag.KindTypeMismatch, s.Sp, "accept is only valid in a filtermap or filter")
			return
		}
		if s.Value == nil {
			c.acceptSeen = true
			return
		}
		if c.fnKind == token.FILTER {
			c.errorf(diag.KindTypeMismatch, s.Value.Span(),
				"a filter may not transform its payload, accept takes no value here")
			return
		}
		t := c.checkExpr(s.Value, c.acceptType)
		if t == nil {
			return
		}
		if c.acceptSeen && c.acceptType != nil && !types.Equal(t, c.acceptType) {
			c.errorf(diag.KindTypeMismatch, s.Value.Span(),
				"accept payload is %s here but %s earlier", t, c.acceptType)
			return
		}
		if !c.acceptSeen || c.acceptType == nil {
			c.acceptType = t
		}
		c.acceptSeen = true
	case token.REJECT:
		if !inPolicy {
			c.errorf(diag.KindTypeMismatch, s.Sp, "reject is only valid in a filtermap or filter")
		}
	}
}

// checkIfStmt checks an if in statement position, where else is optional
// and the branches produce no value.
func (c *checker) checkIfStmt(e *ast.IfExpr) {
	c.checkCond(e.Cond)
	c.checkBlock(e.Then)
	if e.Else != nil {
		c.checkBlock(e.Else)
	}
}

// checkMatchStmt checks a match in statement position. Exhaustiveness is
// required in both positions.
func (c *checker) checkMatchStmt(e *ast.MatchExpr) {
	en := c.checkMatchSubject(e)
	for _, arm := range e.Arms {
		c.checkMatchArm(en, arm, nil)
	}
	c.checkExhaustive(e, en)
}

// terminates reports whether every control path through the block reaches
// return, accept or reject.
func (c *checker) terminates(b *ast.Block) bool {
	for _, s := range b.Stmts {
		switch s := s.(type) {
		case *ast.ReturnStmt:
			return true
		case *ast.ExprStmt:
			switch e := s.Value.(type) {
			case *ast.IfExpr:
				if e.Else != nil && c.terminates(e.Then) && c.terminates(e.Else) {
					return true
				}
			case *ast.MatchExpr:
				if len(e.Arms) == 0 {
					continue
				}
				all := true
				for _, arm := range e.Arms {
					if !c.terminates(arm.Body) {
						all = false
						break
					}
				}
				if all && c.matchCoversAll(e) {
					return true
				}
			}
		}
	}
	return false
}

// matchCoversAll reports whether the match has a wildcard arm or one arm
// per variant of its subject enum.
func (c *checker) matchCoversAll(e *ast.MatchExpr) bool {
	for _, arm := range e.Arms {
		if arm.Wildcard {
			return true
		}
	}
	t, ok := c.info.Types[e.Subject]
	if !ok {
		return false
	}
	en, ok := t.(*types.Enum)
	if !ok {
		return false
	}
	covered := map[string]bool{}
	for _, arm := range e.Arms {
		if arm.Variant != nil {
			covered[arm.Variant.Name] = true
		}
	}
	for _, v := range en.Variants {
		if !covered[v.Name] {
			return false
		}
	}
	return true
}

func lowerKind(k token.Type) string {
	if k == token.FILTER {
		return "filter"
	}
	return "filtermap"
}

package ast

import (
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
)

// LetStmt binds the value of an expression to a new local.
type LetStmt struct {
	Name  *Ident
	Value Expr
	Sp    diag.Span
}

func (s *LetStmt) stmtNode()       {}
func (s *LetStmt) Span() diag.Span { return s.Sp }

// ExprStmt evaluates an expression for its control-flow effect (if/match
// statements); the produced value, if any, is discarded.
type ExprStmt struct {
	Value Expr
}

func (s *ExprStmt) stmtNode()       {}
func (s *ExprStmt) Span() diag.Span { return s.Value.Span() }

// ReturnStmt ends evaluation. Kind is token.RETURN, token.ACCEPT or
// token.REJECT; Value is optional and only legal for RETURN and ACCEPT.
type ReturnStmt struct {
	Kind  token.Type
	Value Expr // may be nil
	Sp    diag.Span
}

func (s *ReturnStmt) stmtNode()       {}
func (s *ReturnStmt) Span() diag.Span { return s.Sp }

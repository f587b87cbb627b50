package ast

import (
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
)

// LiteralKind tags the payload of a LiteralExpr.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitBool
	LitString
	LitIPv4
	LitPrefix
	LitAsn
	LitCommunity
)

// LiteralExpr is a literal of any lexical form. Value holds int64 for
// LitInt, bool for LitBool, string for LitString/LitIPv4/LitPrefix and
// uint32 for LitAsn/LitCommunity.
type LiteralExpr struct {
	Kind  LiteralKind
	Value any
	Sp    diag.Span
}

func (e *LiteralExpr) exprNode()       {}
func (e *LiteralExpr) Span() diag.Span { return e.Sp }

// IdentExpr is a variable reference.
type IdentExpr struct {
	Name string
	Sp   diag.Span
}

func (e *IdentExpr) exprNode()       {}
func (e *IdentExpr) Span() diag.Span { return e.Sp }

// UnaryExpr is `!x` or `-x`.
type UnaryExpr struct {
	Op      token.Type
	Operand Expr
	Sp      diag.Span
}

func (e *UnaryExpr) exprNode()       {}
func (e *UnaryExpr) Span() diag.Span { return e.Sp }

// BinaryExpr covers arithmetic, comparison, logical and membership
// operators. `not in` is represented as Op == token.IN with Negated set.
type BinaryExpr struct {
	Op      token.Type
	Negated bool // only for token.IN: `not in`
	Left    Expr
	Right   Expr
	Sp      diag.Span
}

func (e *BinaryExpr) exprNode()       {}
func (e *BinaryExpr) Span() diag.Span { return e.Sp }

// CallExpr is a plain function call, f(args).
type CallExpr struct {
	Fn   *Ident
	Args []Expr
	Sp   diag.Span
}

func (e *CallExpr) exprNode()       {}
func (e *CallExpr) Span() diag.Span { return e.Sp }

// MethodCallExpr is recv.method(args). Depending on the receiver type this
// resolves to a builtin method or an external (host) call.
type MethodCallExpr struct {
	Recv   Expr
	Method *Ident
	Args   []Expr
	Sp     diag.Span
}

func (e *MethodCallExpr) exprNode()       {}
func (e *MethodCallExpr) Span() diag.Span { return e.Sp }

// FieldExpr is recv.field.
type FieldExpr struct {
	Recv  Expr
	Field *Ident
	Sp    diag.Span
}

func (e *FieldExpr) exprNode()       {}
func (e *FieldExpr) Span() diag.Span { return e.Sp }

// RecordExpr is an anonymous record literal, `{ a: 1, b: 2 }`.
type RecordExpr struct {
	Fields []*FieldInit
	Sp     diag.Span
}

func (e *RecordExpr) exprNode()       {}
func (e *RecordExpr) Span() diag.Span { return e.Sp }

// TypedRecordExpr is `Name { a: 1 }` for a declared record type.
type TypedRecordExpr struct {
	Type   *Ident
	Fields []*FieldInit
	Sp     diag.Span
}

func (e *TypedRecordExpr) exprNode()       {}
func (e *TypedRecordExpr) Span() diag.Span { return e.Sp }

// FieldInit is one `name: value` pair in a record literal.
type FieldInit struct {
	Name  *Ident
	Value Expr
}

// ListExpr is `[a, b, c]`.
type ListExpr struct {
	Elems []Expr
	Sp    diag.Span
}

func (e *ListExpr) exprNode()       {}
func (e *ListExpr) Span() diag.Span { return e.Sp }

// EnumExpr constructs an enum variant: `Name.Variant` or
// `Name.Variant(payload)`.
type EnumExpr struct {
	Type    *Ident
	Variant *Ident
	Payload Expr // may be nil
	Sp      diag.Span
}

func (e *EnumExpr) exprNode()       {}
func (e *EnumExpr) Span() diag.Span { return e.Sp }

// IfExpr is `if cond { ... } else { ... }`. Else may be nil only in
// statement position; in expression position the checker requires it.
type IfExpr struct {
	Cond Expr
	Then *Block
	Else *Block // nil, or a Block, for `else if` the parser nests blocks
	Sp   diag.Span
}

func (e *IfExpr) exprNode()       {}
func (e *IfExpr) Span() diag.Span { return e.Sp }

// MatchExpr matches an enum value against its variants.
type MatchExpr struct {
	Subject Expr
	Arms    []*MatchArm
	Sp      diag.Span
}

func (e *MatchExpr) exprNode()       {}
func (e *MatchExpr) Span() diag.Span { return e.Sp }

// MatchArm is one `Variant(binding) -> body` arm. Wildcard arms have
// Wildcard set and no Variant. Binding is nil for payload-less arms.
type MatchArm struct {
	Wildcard bool
	Variant  *Ident
	Binding  *Ident
	Body     *Block
	Sp       diag.Span
}

// BadExpr is a placeholder recorded after parse-error recovery.
type BadExpr struct {
	Sp diag.Span
}

func (e *BadExpr) exprNode()       {}
func (e *BadExpr) Span() diag.Span { return e.Sp }

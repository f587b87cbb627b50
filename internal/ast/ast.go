// Package ast defines the abstract syntax tree of the Ruta policy language.
// Nodes form closed tagged unions over the Decl, Stmt and Expr interfaces;
// consumers dispatch with exhaustive type switches. Every node carries the
// source span it was parsed from.
package ast

import (
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	Span() diag.Span
}

// Decl is a top-level declaration.
type Decl interface {
	Node
	declNode()
}

// Stmt is a statement inside a block.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression.
type Expr interface {
	Node
	exprNode()
}

// Unit is the root node of one compilation unit.
type Unit struct {
	Name  string // compilation-unit identifier
	Decls []Decl
}

// Ident is a name occurrence with its span.
type Ident struct {
	Name string
	Sp   diag.Span
}

func (i *Ident) Span() diag.Span { return i.Sp }

// TypeName is a type reference in source: a named type or a list of one.
type TypeName struct {
	Name   string
	IsList bool
	Sp     diag.Span
}

func (t *TypeName) Span() diag.Span { return t.Sp }

// Param is one declared parameter.
type Param struct {
	Name *Ident
	Type *TypeName
}

// FilterMapDecl declares a policy entry point. Kind distinguishes the
// `filtermap` form (may transform the payload) from `filter` (may not).
type FilterMapDecl struct {
	Kind   token.Type // token.FILTERMAP or token.FILTER
	Name   *Ident
	Params []*Param
	Body   *Block
	Sp     diag.Span
}

func (d *FilterMapDecl) declNode()       {}
func (d *FilterMapDecl) Span() diag.Span { return d.Sp }

// FunctionDecl declares a helper function.
type FunctionDecl struct {
	Name   *Ident
	Params []*Param
	Return *TypeName // nil when the function returns nothing
	Body   *Block
	Sp     diag.Span
}

func (d *FunctionDecl) declNode()       {}
func (d *FunctionDecl) Span() diag.Span { return d.Sp }

// RecordDecl declares a named record type.
type RecordDecl struct {
	Name   *Ident
	Fields []*Param
	Sp     diag.Span
}

func (d *RecordDecl) declNode()       {}
func (d *RecordDecl) Span() diag.Span { return d.Sp }

// EnumDecl declares a named enum type with payload-carrying variants.
type EnumDecl struct {
	Name     *Ident
	Variants []*Variant
	Sp       diag.Span
}

func (d *EnumDecl) declNode()       {}
func (d *EnumDecl) Span() diag.Span { return d.Sp }

// Variant is one enum variant; Payload is nil for bare variants.
type Variant struct {
	Name    *Ident
	Payload *TypeName
}

// BadDecl is a placeholder kept in the tree after parse-error recovery, so
// tooling still sees a declaration at that position.
type BadDecl struct {
	Sp diag.Span
}

func (d *BadDecl) declNode()       {}
func (d *BadDecl) Span() diag.Span { return d.Sp }

// Block is a braced statement sequence.
type Block struct {
	Stmts []Stmt
	Sp    diag.Span
}

func (b *Block) Span() diag.Span { return b.Sp }

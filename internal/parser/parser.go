// Package parser builds the Ruta AST from a token stream by recursive
// descent with Pratt-style expression parsing. Parse errors are recorded as
// diagnostics and the parser resynchronizes to the next statement or
// declaration boundary, so one call surfaces many independent errors and
// still returns a best-effort partial tree.
package parser

import (
	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/lexer"
	"github.com/ruta-lang/ruta/internal/token"
)

// Operator precedence, lowest binds loosest.
const (
	LOWEST      = iota
	LOGICAL_OR  // ||
	LOGICAL_AND // &&
	COMPARISON  // == != < <= > >= in
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // ! -x
	POSTFIX     // call, field access, method call
)

var precedences = map[token.Type]int{
	token.OR:       LOGICAL_OR,
	token.AND:      LOGICAL_AND,
	token.EQ:       COMPARISON,
	token.NOT_EQ:   COMPARISON,
	token.LT:       COMPARISON,
	token.LTE:      COMPARISON,
	token.GT:       COMPARISON,
	token.GTE:      COMPARISON,
	token.IN:       COMPARISON,
	token.NOT:      COMPARISON, // `not in`
	token.PLUS:     SUM,
	token.MINUS:    SUM,
	token.ASTERISK: PRODUCT,
	token.SLASH:    PRODUCT,
	token.PERCENT:  PRODUCT,
	token.LPAREN:   POSTFIX,
	token.DOT:      POSTFIX,
}

// MaxRecursionDepth bounds nested expressions so hostile input cannot blow
// the Go stack.
const MaxRecursionDepth = 256

type (
	prefixParseFn func() ast.Expr
	infixParseFn  func(ast.Expr) ast.Expr
)

type Parser struct {
	lx    *lexer.Lexer
	diags *diag.Bag

	curToken  token.Token
	peekToken token.Token

	depth int

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn
}

func New(lx *lexer.Lexer, diags *diag.Bag) *Parser {
	p := &Parser{lx: lx, diags: diags}

	p.prefixParseFns = map[token.Type]prefixParseFn{
		token.IDENT:     p.parseIdentOrConstruct,
		token.INT:       p.parseIntLiteral,
		token.STRING:    p.parseStringLiteral,
		token.TRUE:      p.parseBoolLiteral,
		token.FALSE:     p.parseBoolLiteral,
		token.IPV4:      p.parseIPv4Literal,
		token.PREFIX:    p.parsePrefixLiteral,
		token.ASN:       p.parseAsnLiteral,
		token.COMMUNITY: p.parseCommunityLiteral,
		token.BANG:      p.parseUnaryExpr,
		token.MINUS:     p.parseUnaryExpr,
		token.LPAREN:    p.parseGroupedExpr,
		token.LBRACKET:  p.parseListExpr,
		token.LBRACE:    p.parseRecordExpr,
		token.IF:        p.parseIfExpr,
		token.MATCH:     p.parseMatchExpr,
	}
	p.infixParseFns = map[token.Type]infixParseFn{
		token.OR:       p.parseBinaryExpr,
		token.AND:      p.parseBinaryExpr,
		token.EQ:       p.parseBinaryExpr,
		token.NOT_EQ:   p.parseBinaryExpr,
		token.LT:       p.parseBinaryExpr,
		token.LTE:      p.parseBinaryExpr,
		token.GT:       p.parseBinaryExpr,
		token.GTE:      p.parseBinaryExpr,
		token.IN:       p.parseMembershipExpr,
		token.NOT:      p.parseMembershipExpr,
		token.PLUS:     p.parseBinaryExpr,
		token.MINUS:    p.parseBinaryExpr,
		token.ASTERISK: p.parseBinaryExpr,
		token.SLASH:    p.parseBinaryExpr,
		token.PERCENT:  p.parseBinaryExpr,
		token.LPAREN:   p.parseCallExpr,
		token.DOT:      p.parseAccessExpr,
	}

	// Prime curToken and peekToken.
	p.nextToken()
	p.nextToken()
	return p
}

// ParseUnit consumes the whole token stream and returns the (possibly
// partial) syntax tree. Callers must inspect the diagnostic bag: the tree is
// only meaningful for compilation when no error was recorded.
func (p *Parser) ParseUnit(name string) *ast.Unit {
	unit := &ast.Unit{Name: name}
	for !p.curTokenIs(token.EOF) {
		decl := p.parseDecl()
		if decl != nil {
			unit.Decls = append(unit.Decls, decl)
		}
	}
	return unit
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.lx.NextToken()
}

func (p *Parser) curTokenIs(t token.Type) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t token.Type) bool { return p.peekToken.Type == t }

// expectPeek advances when the next token matches, otherwise records an
// UnexpectedToken diagnostic and leaves the parser in place.
func (p *Parser) expectPeek(t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf(p.peekToken.Span, "expected %q, found %q", t, describe(p.peekToken))
	return false
}

func (p *Parser) errorf(span diag.Span, format string, args ...any) {
	p.diags.Add(diag.Errorf(diag.StageParser, diag.KindUnexpectedToken, span, format, args...))
}

func describe(tok token.Token) string {
	if tok.Type == token.EOF {
		return "end of input"
	}
	return tok.Lexeme
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

// syncToStmtBoundary skips tokens until the start of the next statement, a
// closing brace, or EOF. Used after a statement-level parse error.
func (p *Parser) syncToStmtBoundary() {
	if !p.curTokenIs(token.EOF) && !p.curTokenIs(token.RBRACE) {
		p.nextToken() // always make progress
	}
	for !p.curTokenIs(token.EOF) {
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
			return
		}
		if p.curTokenIs(token.RBRACE) {
			return
		}
		switch p.curToken.Type {
		case token.LET, token.IF, token.MATCH, token.RETURN, token.ACCEPT, token.REJECT:
			return
		}
		p.nextToken()
	}
}

// syncToDeclBoundary skips tokens until the start of the next top-level
// declaration or EOF. Used after a declaration-level parse error.
func (p *Parser) syncToDeclBoundary() {
	depth := 0
	if !p.curTokenIs(token.EOF) {
		p.nextToken() // always make progress
	}
	for !p.curTokenIs(token.EOF) {
		switch p.curToken.Type {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
			if depth <= 0 {
				p.nextToken()
				return
			}
		case token.FILTERMAP, token.FILTER, token.FUNCTION, token.RECORD, token.ENUM:
			if depth == 0 {
				return
			}
		}
		p.nextToken()
	}
}

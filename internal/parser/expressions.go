package parser

import (
	"unicode"
	"unicode/utf8"

	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
)

// parseExpression is the Pratt core. On entry curToken is the first token of
// the expression; on exit it is the last.
func (p *Parser) parseExpression(precedence int) ast.Expr {
	p.depth++
	defer func() { p.depth-- }()

	if p.depth > MaxRecursionDepth {
		p.errorf(p.curToken.Span, "expression too deeply nested")
		return nil
	}

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.errorf(p.curToken.Span, "expected an expression, found %q", describe(p.curToken))
		return nil
	}
	left := prefix()
	if left == nil {
		return nil
	}

	for precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		next := infix(left)
		if next == nil {
			return nil
		}
		left = next
	}

	return left
}

func (p *Parser) parseIntLiteral() ast.Expr {
	return &ast.LiteralExpr{Kind: ast.LitInt, Value: p.curToken.Literal, Sp: p.curToken.Span}
}

func (p *Parser) parseStringLiteral() ast.Expr {
	return &ast.LiteralExpr{Kind: ast.LitString, Value: p.curToken.Literal, Sp: p.curToken.Span}
}

func (p *Parser) parseBoolLiteral() ast.Expr {
	return &ast.LiteralExpr{Kind: ast.LitBool, Value: p.curTokenIs(token.TRUE), Sp: p.curToken.Span}
}

func (p *Parser) parseIPv4Literal() ast.Expr {
	return &ast.LiteralExpr{Kind: ast.LitIPv4, Value: p.curToken.Literal, Sp: p.curToken.Span}
}

func (p *Parser) parsePrefixLiteral() ast.Expr {
	return &ast.LiteralExpr{Kind: ast.LitPrefix, Value: p.curToken.Literal, Sp: p.curToken.Span}
}

func (p *Parser) parseAsnLiteral() ast.Expr {
	return &ast.LiteralExpr{Kind: ast.LitAsn, Value: p.curToken.Literal, Sp: p.curToken.Span}
}

func (p *Parser) parseCommunityLiteral() ast.Expr {
	return &ast.LiteralExpr{Kind: ast.LitCommunity, Value: p.curToken.Literal, Sp: p.curToken.Span}
}

// parseIdentOrConstruct handles a bare identifier and the two constructs
// introduced by a type name: `Name { ... }` (typed record) and
// `Name.Variant(...)` (enum construction). Type names start uppercase by
// convention, which is what disambiguates `Name {` from `if cond {`.
func (p *Parser) parseIdentOrConstruct() ast.Expr {
	name := p.curToken.Lexeme
	sp := p.curToken.Span

	if isTypeName(name) {
		switch {
		case p.peekTokenIs(token.LBRACE):
			return p.parseTypedRecordExpr()
		case p.peekTokenIs(token.DOT):
			return p.parseEnumExpr()
		}
	}

	return &ast.IdentExpr{Name: name, Sp: sp}
}

func isTypeName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

// Name { field: expr, ... } with curToken on Name.
func (p *Parser) parseTypedRecordExpr() ast.Expr {
	typeName := p.parseIdentHere()
	p.nextToken() // {
	fields, end, ok := p.parseFieldInits()
	if !ok {
		return nil
	}
	return &ast.TypedRecordExpr{Type: typeName, Fields: fields, Sp: typeName.Sp.Join(end)}
}

// { field: expr, ... } with curToken on '{'.
func (p *Parser) parseRecordExpr() ast.Expr {
	start := p.curToken.Span
	fields, end, ok := p.parseFieldInits()
	if !ok {
		return nil
	}
	return &ast.RecordExpr{Fields: fields, Sp: start.Join(end)}
}

// parseFieldInits parses the braced field list with curToken on '{'; on
// success curToken is the closing '}'.
func (p *Parser) parseFieldInits() ([]*ast.FieldInit, diag.Span, bool) {
	var fields []*ast.FieldInit
	for !p.peekTokenIs(token.RBRACE) && !p.peekTokenIs(token.EOF) {
		if !p.expectPeek(token.IDENT) {
			return nil, diag.Span{}, false
		}
		name := p.parseIdentHere()
		if !p.expectPeek(token.COLON) {
			return nil, diag.Span{}, false
		}
		p.nextToken()
		value := p.parseExpression(LOWEST)
		if value == nil {
			return nil, diag.Span{}, false
		}
		fields = append(fields, &ast.FieldInit{Name: name, Value: value})

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RBRACE) {
			p.errorf(p.peekToken.Span, "expected ',' or '}' in record literal, found %q",
				describe(p.peekToken))
			return nil, diag.Span{}, false
		}
	}
	if !p.expectPeek(token.RBRACE) {
		return nil, diag.Span{}, false
	}
	return fields, p.curToken.Span, true
}

// Name.Variant or Name.Variant(payload) with curToken on Name.
func (p *Parser) parseEnumExpr() ast.Expr {
	typeName := p.parseIdentHere()
	p.nextToken() // .
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	variant := p.parseIdentHere()
	end := variant.Sp

	var payload ast.Expr
	if p.peekTokenIs(token.LPAREN) {
		p.nextToken() // (
		p.nextToken()
		payload = p.parseExpression(LOWEST)
		if payload == nil {
			return nil
		}
		if !p.expectPeek(token.RPAREN) {
			return nil
		}
		end = p.curToken.Span
	}

	return &ast.EnumExpr{Type: typeName, Variant: variant, Payload: payload, Sp: typeName.Sp.Join(end)}
}

func (p *Parser) parseUnaryExpr() ast.Expr {
	op := p.curToken.Type
	start := p.curToken.Span
	p.nextToken()
	operand := p.parseExpression(PREFIX)
	if operand == nil {
		return nil
	}
	return &ast.UnaryExpr{Op: op, Operand: operand, Sp: start.Join(operand.Span())}
}

func (p *Parser) parseGroupedExpr() ast.Expr {
	p.nextToken() // past (
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	if !p.expectPeek(token.RPAREN) {
		return nil
	}
	return expr
}

// [a, b, c] with curToken on '['.
func (p *Parser) parseListExpr() ast.Expr {
	start := p.curToken.Span

	var elems []ast.Expr
	for !p.peekTokenIs(token.RBRACKET) && !p.peekTokenIs(token.EOF) {
		p.nextToken()
		elem := p.parseExpression(LOWEST)
		if elem == nil {
			return nil
		}
		elems = append(elems, elem)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RBRACKET) {
			p.errorf(p.peekToken.Span, "expected ',' or ']' in list literal, found %q",
				describe(p.peekToken))
			return nil
		}
	}
	if !p.expectPeek(token.RBRACKET) {
		return nil
	}
	return &ast.ListExpr{Elems: elems, Sp: start.Join(p.curToken.Span)}
}

// if cond { ... } else { ... } with curToken on 'if'. On exit curToken is
// the final closing brace.
func (p *Parser) parseIfExpr() ast.Expr {
	start := p.curToken.Span

	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if cond == nil {
		return nil
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}
	then := p.parseBlock()
	end := then.Sp

	var elseBlock *ast.Block
	if p.peekTokenIs(token.ELSE) {
		p.nextToken() // else
		switch {
		case p.peekTokenIs(token.LBRACE):
			p.nextToken()
			elseBlock = p.parseBlock()
			end = elseBlock.Sp
		case p.peekTokenIs(token.IF):
			p.nextToken()
			nested := p.parseIfExpr()
			if nested == nil {
				return nil
			}
			elseBlock = &ast.Block{
				Stmts: []ast.Stmt{&ast.ExprStmt{Value: nested}},
				Sp:    nested.Span(),
			}
			end = nested.Span()
		default:
			p.errorf(p.peekToken.Span, "expected '{' or 'if' after else, found %q",
				describe(p.peekToken))
			return nil
		}
	}

	return &ast.IfExpr{Cond: cond, Then: then, Else: elseBlock, Sp: start.Join(end)}
}

// match subject { Variant(x) -> body, ... } with curToken on 'match'. On
// exit curToken is the closing brace.
func (p *Parser) parseMatchExpr() ast.Expr {
	start := p.curToken.Span

	p.nextToken()
	subject := p.parseExpression(LOWEST)
	if subject == nil {
		return nil
	}

	if !p.expectPeek(token.LBRACE) {
		return nil
	}

	var arms []*ast.MatchArm
	for !p.peekTokenIs(token.RBRACE) && !p.peekTokenIs(token.EOF) {
		arm := p.parseMatchArm()
		if arm == nil {
			return nil
		}
		arms = append(arms, arm)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		}
	}
	if !p.expectPeek(token.RBRACE) {
		return nil
	}

	return &ast.MatchExpr{Subject: subject, Arms: arms, Sp: start.Join(p.curToken.Span)}
}

func (p *Parser) parseMatchArm() *ast.MatchArm {
	arm := &ast.MatchArm{}

	switch {
	case p.peekTokenIs(token.UNDER):
		p.nextToken()
		arm.Wildcard = true
		arm.Sp = p.curToken.Span
	case p.peekTokenIs(token.IDENT):
		p.nextToken()
		arm.Variant = p.parseIdentHere()
		arm.Sp = p.curToken.Span
		if p.peekTokenIs(token.LPAREN) {
			p.nextToken() // (
			if !p.expectPeek(token.IDENT) {
				return nil
			}
			arm.Binding = p.parseIdentHere()
			if !p.expectPeek(token.RPAREN) {
				return nil
			}
		}
	default:
		p.errorf(p.peekToken.Span, "expected a variant name or '_' in match arm, found %q",
			describe(p.peekToken))
		return nil
	}

	if !p.expectPeek(token.ARROW) {
		return nil
	}

	if p.peekTokenIs(token.LBRACE) {
		p.nextToken()
		arm.Body = p.parseBlock()
		return arm
	}

	// Single-expression arm; wrap it in a one-statement block.
	p.nextToken()
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	arm.Body = &ast.Block{Stmts: []ast.Stmt{&ast.ExprStmt{Value: expr}}, Sp: expr.Span()}
	return arm
}

func (p *Parser) parseBinaryExpr(left ast.Expr) ast.Expr {
	op := p.curToken.Type
	prec := p.curPrecedence()
	p.nextToken()
	right := p.parseExpression(prec)
	if right == nil {
		return nil
	}
	return &ast.BinaryExpr{Op: op, Left: left, Right: right, Sp: left.Span().Join(right.Span())}
}

// parseMembershipExpr handles `in` and `not in` with curToken on 'in' or
// 'not'.
func (p *Parser) parseMembershipExpr(left ast.Expr) ast.Expr {
	negated := false
	if p.curTokenIs(token.NOT) {
		if !p.expectPeek(token.IN) {
			return nil
		}
		negated = true
	}
	p.nextToken()
	right := p.parseExpression(COMPARISON)
	if right == nil {
		return nil
	}
	return &ast.BinaryExpr{
		Op: token.IN, Negated: negated,
		Left: left, Right: right,
		Sp: left.Span().Join(right.Span()),
	}
}

// parseCallExpr handles f(args) with curToken on '('.
func (p *Parser) parseCallExpr(left ast.Expr) ast.Expr {
	ident, ok := left.(*ast.IdentExpr)
	if !ok {
		p.errorf(p.curToken.Span, "only named functions can be called")
		return nil
	}
	args, end, ok := p.parseArgs()
	if !ok {
		return nil
	}
	return &ast.CallExpr{
		Fn:   &ast.Ident{Name: ident.Name, Sp: ident.Sp},
		Args: args,
		Sp:   ident.Sp.Join(end),
	}
}

// parseAccessExpr handles recv.field and recv.method(args) with curToken on
// '.'.
func (p *Parser) parseAccessExpr(left ast.Expr) ast.Expr {
	if !p.expectPeek(token.IDENT) {
		return nil
	}
	name := p.parseIdentHere()

	if p.peekTokenIs(token.LPAREN) {
		p.nextToken() // (
		args, end, ok := p.parseArgs()
		if !ok {
			return nil
		}
		return &ast.MethodCallExpr{Recv: left, Method: name, Args: args, Sp: left.Span().Join(end)}
	}

	return &ast.FieldExpr{Recv: left, Field: name, Sp: left.Span().Join(name.Sp)}
}

// parseArgs parses `(a, b, ...)` with curToken on '('; on success curToken
// is the closing ')'.
func (p *Parser) parseArgs() ([]ast.Expr, diag.Span, bool) {
	var args []ast.Expr
	for !p.peekTokenIs(token.RPAREN) && !p.peekTokenIs(token.EOF) {
		p.nextToken()
		arg := p.parseExpression(LOWEST)
		if arg == nil {
			return nil, diag.Span{}, false
		}
		args = append(args, arg)
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RPAREN) {
			p.errorf(p.peekToken.Span, "expected ',' or ')' in argument list, found %q",
				describe(p.peekToken))
			return nil, diag.Span{}, false
		}
	}
	if !p.expectPeek(token.RPAREN) {
		return nil, diag.Span{}, false
	}
	return args, p.curToken.Span, true
}

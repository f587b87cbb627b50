package parser

import (
	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/token"
)

// parseBlock parses `{ stmt* }`. On entry curToken is the opening brace; on
// exit curToken is the closing brace.
func (p *Parser) parseBlock() *ast.Block {
	start := p.curToken.Span
	p.nextToken() // past {

	block := &ast.Block{}
	for !p.curTokenIs(token.RBRACE) && !p.curTokenIs(token.EOF) {
		if stmt := p.parseStmt(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
	}
	if p.curTokenIs(token.EOF) {
		p.errorf(p.curToken.Span, "unexpected end of input, expected '}'")
	}
	block.Sp = start.Join(p.curToken.Span)
	return block
}

// parseStmt parses one statement and leaves curToken at the first token of
// the next one.
func (p *Parser) parseStmt() ast.Stmt {
	switch p.curToken.Type {
	case token.LET:
		return p.parseLetStmt()
	case token.RETURN, token.ACCEPT, token.REJECT:
		return p.parseReturnStmt()
	case token.SEMICOLON:
		// Stray semicolon; harmless.
		p.nextToken()
		return nil
	default:
		return p.parseExprStmt()
	}
}

// let name = expr;
func (p *Parser) parseLetStmt() ast.Stmt {
	start := p.curToken.Span

	if !p.expectPeek(token.IDENT) {
		p.syncToStmtBoundary()
		return nil
	}
	name := p.parseIdentHere()

	if !p.expectPeek(token.ASSIGN) {
		p.syncToStmtBoundary()
		return nil
	}

	p.nextToken() // to first expression token
	value := p.parseExpression(LOWEST)
	if value == nil {
		p.syncToStmtBoundary()
		return nil
	}

	if !p.expectPeek(token.SEMICOLON) {
		p.syncToStmtBoundary()
		return nil
	}
	end := p.curToken.Span
	p.nextToken() // past ;

	return &ast.LetStmt{Name: name, Value: value, Sp: start.Join(end)}
}

// return expr?; | accept expr?; | reject;
func (p *Parser) parseReturnStmt() ast.Stmt {
	kind := p.curToken.Type
	start := p.curToken.Span

	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken() // ;
		end := p.curToken.Span
		p.nextToken()
		return &ast.ReturnStmt{Kind: kind, Sp: start.Join(end)}
	}

	if kind == token.REJECT {
		p.errorf(p.peekToken.Span, "reject does not take a value")
		p.syncToStmtBoundary()
		return nil
	}

	p.nextToken()
	value := p.parseExpression(LOWEST)
	if value == nil {
		p.syncToStmtBoundary()
		return nil
	}

	if !p.expectPeek(token.SEMICOLON) {
		p.syncToStmtBoundary()
		return nil
	}
	end := p.curToken.Span
	p.nextToken()

	return &ast.ReturnStmt{Kind: kind, Value: value, Sp: start.Join(end)}
}

func (p *Parser) parseExprStmt() ast.Stmt {
	value := p.parseExpression(LOWEST)
	if value == nil {
		p.syncToStmtBoundary()
		return nil
	}

	// Block-shaped expressions (if, match) stand on their own; everything
	// else requires a terminating semicolon.
	switch value.(type) {
	case *ast.IfExpr, *ast.MatchExpr:
		p.nextToken() // past closing brace
		if p.curTokenIs(token.SEMICOLON) {
			p.nextToken()
		}
	default:
		if !p.expectPeek(token.SEMICOLON) {
			p.syncToStmtBoundary()
			return &ast.ExprStmt{Value: value}
		}
		p.nextToken() // past ;
	}

	return &ast.ExprStmt{Value: value}
}

package parser

import (
	"github.com/ruta-lang/ruta/internal/ast"
	"github.com/ruta-lang/ruta/internal/token"
)

func (p *Parser) parseDecl() ast.Decl {
	switch p.curToken.Type {
	case token.FILTERMAP, token.FILTER:
		return p.parseFilterMapDecl()
	case token.FUNCTION:
		return p.parseFunctionDecl()
	case token.RECORD:
		return p.parseRecordDecl()
	case token.ENUM:
		return p.parseEnumDecl()
	default:
		start := p.curToken.Span
		p.errorf(start, "expected a declaration (filtermap, filter, function, record, enum), found %q",
			describe(p.curToken))
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}
}

// filtermap name(param: Type, ...) { ... }
func (p *Parser) parseFilterMapDecl() ast.Decl {
	kind := p.curToken.Type
	start := p.curToken.Span

	if !p.expectPeek(token.IDENT) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}
	name := p.parseIdentHere()

	params, ok := p.parseParamList()
	if !ok {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}

	if !p.expectPeek(token.LBRACE) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}
	body := p.parseBlock()
	p.nextToken() // past closing brace

	return &ast.FilterMapDecl{
		Kind:   kind,
		Name:   name,
		Params: params,
		Body:   body,
		Sp:     start.Join(body.Sp),
	}
}

// function name(param: Type, ...) -> Type { ... }
func (p *Parser) parseFunctionDecl() ast.Decl {
	start := p.curToken.Span

	if !p.expectPeek(token.IDENT) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}
	name := p.parseIdentHere()

	params, ok := p.parseParamList()
	if !ok {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}

	var ret *ast.TypeName
	if p.peekTokenIs(token.ARROW) {
		p.nextToken() // ->
		var rok bool
		ret, rok = p.parseTypeName()
		if !rok {
			p.syncToDeclBoundary()
			return &ast.BadDecl{Sp: start}
		}
	}

	if !p.expectPeek(token.LBRACE) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}
	body := p.parseBlock()
	p.nextToken() // past closing brace

	return &ast.FunctionDecl{
		Name:   name,
		Params: params,
		Return: ret,
		Body:   body,
		Sp:     start.Join(body.Sp),
	}
}

// record Name { field: Type, ... }
func (p *Parser) parseRecordDecl() ast.Decl {
	start := p.curToken.Span

	if !p.expectPeek(token.IDENT) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}
	name := p.parseIdentHere()

	if !p.expectPeek(token.LBRACE) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}

	var fields []*ast.Param
	for !p.peekTokenIs(token.RBRACE) && !p.peekTokenIs(token.EOF) {
		if !p.expectPeek(token.IDENT) {
			p.syncToDeclBoundary()
			return &ast.BadDecl{Sp: start}
		}
		fieldName := p.parseIdentHere()
		if !p.expectPeek(token.COLON) {
			p.syncToDeclBoundary()
			return &ast.BadDecl{Sp: start}
		}
		fieldType, ok := p.parseTypeName()
		if !ok {
			p.syncToDeclBoundary()
			return &ast.BadDecl{Sp: start}
		}
		fields = append(fields, &ast.Param{Name: fieldName, Type: fieldType})

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RBRACE) {
			p.errorf(p.peekToken.Span, "expected ',' or '}' in record declaration, found %q",
				describe(p.peekToken))
			p.syncToDeclBoundary()
			return &ast.BadDecl{Sp: start}
		}
	}

	if !p.expectPeek(token.RBRACE) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}
	end := p.curToken.Span
	p.nextToken()

	return &ast.RecordDecl{Name: name, Fields: fields, Sp: start.Join(end)}
}

// enum Name { Variant(Type), Variant, ... }
func (p *Parser) parseEnumDecl() ast.Decl {
	start := p.curToken.Span

	if !p.expectPeek(token.IDENT) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}
	name := p.parseIdentHere()

	if !p.expectPeek(token.LBRACE) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}

	var variants []*ast.Variant
	for !p.peekTokenIs(token.RBRACE) && !p.peekTokenIs(token.EOF) {
		if !p.expectPeek(token.IDENT) {
			p.syncToDeclBoundary()
			return &ast.BadDecl{Sp: start}
		}
		variant := &ast.Variant{Name: p.parseIdentHere()}

		if p.peekTokenIs(token.LPAREN) {
			p.nextToken() // (
			payload, ok := p.parseTypeName()
			if !ok {
				p.syncToDeclBoundary()
				return &ast.BadDecl{Sp: start}
			}
			variant.Payload = payload
			if !p.expectPeek(token.RPAREN) {
				p.syncToDeclBoundary()
				return &ast.BadDecl{Sp: start}
			}
		}
		variants = append(variants, variant)

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RBRACE) {
			p.errorf(p.peekToken.Span, "expected ',' or '}' in enum declaration, found %q",
				describe(p.peekToken))
			p.syncToDeclBoundary()
			return &ast.BadDecl{Sp: start}
		}
	}

	if !p.expectPeek(token.RBRACE) {
		p.syncToDeclBoundary()
		return &ast.BadDecl{Sp: start}
	}
	end := p.curToken.Span
	p.nextToken()

	return &ast.EnumDecl{Name: name, Variants: variants, Sp: start.Join(end)}
}

// parseParamList parses `(name: Type, ...)` with curToken on the token
// before '('.
func (p *Parser) parseParamList() ([]*ast.Param, bool) {
	if !p.expectPeek(token.LPAREN) {
		return nil, false
	}

	var params []*ast.Param
	for !p.peekTokenIs(token.RPAREN) {
		if !p.expectPeek(token.IDENT) {
			return nil, false
		}
		name := p.parseIdentHere()
		if !p.expectPeek(token.COLON) {
			return nil, false
		}
		typ, ok := p.parseTypeName()
		if !ok {
			return nil, false
		}
		params = append(params, &ast.Param{Name: name, Type: typ})

		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
		} else if !p.peekTokenIs(token.RPAREN) {
			p.errorf(p.peekToken.Span, "expected ',' or ')' in parameter list, found %q",
				describe(p.peekToken))
			return nil, false
		}
	}

	if !p.expectPeek(token.RPAREN) {
		return nil, false
	}
	return params, true
}

// parseTypeName parses `Name` or `[Name]` with curToken on the preceding
// token; on success curToken is the last token of the type.
func (p *Parser) parseTypeName() (*ast.TypeName, bool) {
	if p.peekTokenIs(token.LBRACKET) {
		p.nextToken() // [
		start := p.curToken.Span
		if !p.expectPeek(token.IDENT) {
			return nil, false
		}
		name := p.curToken.Lexeme
		if !p.expectPeek(token.RBRACKET) {
			return nil, false
		}
		return &ast.TypeName{Name: name, IsList: true, Sp: start.Join(p.curToken.Span)}, true
	}
	if !p.expectPeek(token.IDENT) {
		return nil, false
	}
	return &ast.TypeName{Name: p.curToken.Lexeme, Sp: p.curToken.Span}, true
}

// parseIdentHere builds an Ident from curToken.
func (p *Parser) parseIdentHere() *ast.Ident {
	return &ast.Ident{Name: p.curToken.Lexeme, Sp: p.curToken.Span}
}

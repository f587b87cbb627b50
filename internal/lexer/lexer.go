// Package lexer turns Ruta source text into a token stream. The lexer never
// aborts on bad input: unrecognized characters and malformed literals become
// ILLEGAL tokens plus a diagnostic, and scanning continues so one pass can
// surface every lexical error in a unit.
package lexer

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
)

type Lexer struct {
	input        string
	unit         string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	diags        *diag.Bag
}

func New(input, unit string, diags *diag.Bag) *Lexer {
	l := &Lexer{input: input, unit: unit, diags: diags}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = len(l.input)
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) span(start int) diag.Span {
	return diag.Span{Start: start, End: l.position, Unit: l.unit}
}

// spanNext is span() but including the current character, for tokens emitted
// before readChar advances past their last rune.
func (l *Lexer) spanNext(start int) diag.Span {
	return diag.Span{Start: start, End: l.readPosition, Unit: l.unit}
}

func (l *Lexer) NextToken() token.Token {
	l.skipTrivia()

	start := l.position

	switch l.ch {
	case 0:
		return token.Token{Type: token.EOF, Span: l.span(start)}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			return l.emit(token.EQ, "==", start)
		}
		return l.emit(token.ASSIGN, "=", start)
	case '!':
		if l.peekChar() == '=' {
			l.readChar()
			return l.emit(token.NOT_EQ, "!=", start)
		}
		return l.emit(token.BANG, "!", start)
	case '<':
		if l.peekChar() == '=' {
			l.readChar()
			return l.emit(token.LTE, "<=", start)
		}
		return l.emit(token.LT, "<", start)
	case '>':
		if l.peekChar() == '=' {
			l.readChar()
			return l.emit(token.GTE, ">=", start)
		}
		return l.emit(token.GT, ">", start)
	case '&':
		if l.peekChar() == '&' {
			l.readChar()
			return l.emit(token.AND, "&&", start)
		}
		return l.illegal(start, "unexpected character '&', did you mean '&&'?")
	case '|':
		if l.peekChar() == '|' {
			l.readChar()
			return l.emit(token.OR, "||", start)
		}
		return l.illegal(start, "unexpected character '|', did you mean '||'?")
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			return l.emit(token.ARROW, "->", start)
		}
		return l.emit(token.MINUS, "-", start)
	case '+':
		return l.emit(token.PLUS, "+", start)
	case '*':
		return l.emit(token.ASTERISK, "*", start)
	case '/':
		return l.emit(token.SLASH, "/", start)
	case '%':
		return l.emit(token.PERCENT, "%", start)
	case ',':
		return l.emit(token.COMMA, ",", start)
	case ';':
		return l.emit(token.SEMICOLON, ";", start)
	case ':':
		return l.emit(token.COLON, ":", start)
	case '.':
		return l.emit(token.DOT, ".", start)
	case '(':
		return l.emit(token.LPAREN, "(", start)
	case ')':
		return l.emit(token.RPAREN, ")", start)
	case '{':
		return l.emit(token.LBRACE, "{", start)
	case '}':
		return l.emit(token.RBRACE, "}", start)
	case '[':
		return l.emit(token.LBRACKET, "[", start)
	case ']':
		return l.emit(token.RBRACKET, "]", start)
	case '"':
		return l.readString(start)
	}

	if isDigit(l.ch) {
		return l.readNumeric(start)
	}
	if isIdentStart(l.ch) {
		return l.readIdentifier(start)
	}

	return l.illegal(start, "unrecognized character %q", l.ch)
}

// emit builds a token whose last rune is the current one, then advances.
func (l *Lexer) emit(t token.Type, lexeme string, start int) token.Token {
	tok := token.Token{Type: t, Lexeme: lexeme, Literal: lexeme, Span: l.spanNext(start)}
	l.readChar()
	return tok
}

func (l *Lexer) illegal(start int, format string, args ...any) token.Token {
	lexeme := string(l.ch)
	tok := token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Literal: lexeme, Span: l.spanNext(start)}
	l.readChar()
	l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindIllegalToken, tok.Span, format, args...))
	return tok
}

func (l *Lexer) skipTrivia() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

func (l *Lexer) readString(start int) token.Token {
	var sb strings.Builder
	l.readChar() // consume opening quote
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			sp := l.span(start)
			l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindUnterminatedString, sp,
				"unterminated string literal"))
			return token.Token{Type: token.ILLEGAL, Lexeme: l.input[start:l.position], Span: sp}
		}
		if l.ch == '\\' {
			escStart := l.position
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			default:
				l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindBadLiteral, l.spanNext(escStart),
					"unknown escape sequence '\\%c'", l.ch))
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	tok := token.Token{
		Type:    token.STRING,
		Lexeme:  l.input[start:l.readPosition],
		Literal: sb.String(),
		Span:    l.spanNext(start),
	}
	l.readChar() // consume closing quote
	return tok
}

// readNumeric scans everything that starts with a digit: plain and hex
// integers, IPv4 addresses, prefixes, and standard community literals.
func (l *Lexer) readNumeric(start int) token.Token {
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar() // 0
		l.readChar() // x
		digitStart := l.position
		for isHexDigit(l.ch) {
			l.readChar()
		}
		lexeme := l.input[start:l.position]
		if digitStart == l.position {
			sp := l.span(start)
			l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindBadLiteral, sp, "hex literal has no digits"))
			return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Span: sp}
		}
		v, err := strconv.ParseInt(l.input[digitStart:l.position], 16, 64)
		if err != nil {
			sp := l.span(start)
			l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindBadLiteral, sp, "hex literal out of range"))
			return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Span: sp}
		}
		return token.Token{Type: token.INT, Lexeme: lexeme, Literal: v, Span: l.span(start)}
	}

	l.readDigits()

	// Dotted quad: 192.0.2.0, optionally followed by /len.
	if l.ch == '.' && isDigit(l.peekChar()) {
		return l.readAddress(start)
	}

	// Standard community: 65000:120 with no intervening space.
	if l.ch == ':' && isDigit(l.peekChar()) {
		l.readChar() // :
		l.readDigits()
		lexeme := l.input[start:l.position]
		parts := strings.SplitN(lexeme, ":", 2)
		hi, err1 := strconv.ParseUint(parts[0], 10, 16)
		lo, err2 := strconv.ParseUint(parts[1], 10, 16)
		sp := l.span(start)
		if err1 != nil || err2 != nil {
			l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindBadLiteral, sp,
				"community parts must fit in 16 bits: %s", lexeme))
			return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Span: sp}
		}
		return token.Token{Type: token.COMMUNITY, Lexeme: lexeme, Literal: uint32(hi)<<16 | uint32(lo), Span: sp}
	}

	lexeme := l.input[start:l.position]
	v, err := strconv.ParseInt(lexeme, 10, 64)
	if err != nil {
		sp := l.span(start)
		l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindBadLiteral, sp, "integer literal out of range: %s", lexeme))
		return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Span: sp}
	}
	return token.Token{Type: token.INT, Lexeme: lexeme, Literal: v, Span: l.span(start)}
}

// readAddress continues after the first octet of a dotted quad. On success
// the token is IPV4, or PREFIX when a /len suffix follows.
func (l *Lexer) readAddress(start int) token.Token {
	octets := 1
	for l.ch == '.' && isDigit(l.peekChar()) && octets < 4 {
		l.readChar() // .
		l.readDigits()
		octets++
	}
	addrLexeme := l.input[start:l.position]
	if octets != 4 || !validQuad(addrLexeme) {
		sp := l.span(start)
		l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindBadLiteral, sp,
			"malformed IPv4 address literal: %s", addrLexeme))
		return token.Token{Type: token.ILLEGAL, Lexeme: addrLexeme, Span: sp}
	}

	if l.ch == '/' && isDigit(l.peekChar()) {
		l.readChar() // /
		lenStart := l.position
		l.readDigits()
		lexeme := l.input[start:l.position]
		plen, err := strconv.Atoi(l.input[lenStart:l.position])
		sp := l.span(start)
		if err != nil || plen > 32 {
			l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindBadLiteral, sp,
				"prefix length out of range in %s", lexeme))
			return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Span: sp}
		}
		return token.Token{Type: token.PREFIX, Lexeme: lexeme, Literal: lexeme, Span: sp}
	}

	return token.Token{Type: token.IPV4, Lexeme: addrLexeme, Literal: addrLexeme, Span: l.span(start)}
}

func (l *Lexer) readIdentifier(start int) token.Token {
	for isIdentPart(l.ch) {
		l.readChar()
	}
	lexeme := l.input[start:l.position]
	sp := l.span(start)

	// AS64512 is an ASN literal, not an identifier.
	if len(lexeme) > 2 && strings.HasPrefix(lexeme, "AS") && allDigits(lexeme[2:]) {
		v, err := strconv.ParseUint(lexeme[2:], 10, 32)
		if err != nil {
			l.diags.Add(diag.Errorf(diag.StageLexer, diag.KindBadLiteral, sp,
				"ASN out of range: %s", lexeme))
			return token.Token{Type: token.ILLEGAL, Lexeme: lexeme, Span: sp}
		}
		return token.Token{Type: token.ASN, Lexeme: lexeme, Literal: uint32(v), Span: sp}
	}

	return token.Token{Type: token.LookupIdent(lexeme), Lexeme: lexeme, Literal: lexeme, Span: sp}
}

func (l *Lexer) readDigits() {
	for isDigit(l.ch) {
		l.readChar()
	}
}

func validQuad(s string) bool {
	for _, part := range strings.Split(s, ".") {
		n, err := strconv.Atoi(part)
		if err != nil || n > 255 || (len(part) > 1 && part[0] == '0') {
			return false
		}
	}
	return true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isHexDigit(ch rune) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || unicode.IsDigit(ch)
}

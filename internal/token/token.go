// Package token defines the lexical tokens of the Ruta policy language.
package token

import "github.com/ruta-lang/ruta/internal/diag"

type Type string

const (
	ILLEGAL Type = "ILLEGAL"
	EOF     Type = "EOF"

	// Identifiers and literals
	IDENT     Type = "IDENT"     // route, my_asn
	INT       Type = "INT"       // 42, 0xFFFF
	STRING    Type = "STRING"    // "backup"
	IPV4      Type = "IPV4"      // 192.0.2.1
	PREFIX    Type = "PREFIX"    // 192.0.2.0/24
	ASN       Type = "ASN"       // AS64512
	COMMUNITY Type = "COMMUNITY" // 65000:120

	// Operators
	ASSIGN   Type = "="
	PLUS     Type = "+"
	MINUS    Type = "-"
	ASTERISK Type = "*"
	SLASH    Type = "/"
	PERCENT  Type = "%"
	BANG     Type = "!"

	EQ     Type = "=="
	NOT_EQ Type = "!="
	LT     Type = "<"
	LTE    Type = "<="
	GT     Type = ">"
	GTE    Type = ">="

	AND Type = "&&"
	OR  Type = "||"

	ARROW Type = "->"

	// Delimiters
	COMMA     Type = ","
	SEMICOLON Type = ";"
	COLON     Type = ":"
	DOT       Type = "."
	LPAREN    Type = "("
	RPAREN    Type = ")"
	LBRACE    Type = "{"
	RBRACE    Type = "}"
	LBRACKET  Type = "["
	RBRACKET  Type = "]"
	UNDER     Type = "_"

	// Keywords
	FILTERMAP Type = "FILTERMAP"
	FILTER    Type = "FILTER"
	FUNCTION  Type = "FUNCTION"
	RECORD    Type = "RECORD"
	ENUM      Type = "ENUM"
	LET       Type = "LET"
	IF        Type = "IF"
	ELSE      Type = "ELSE"
	MATCH     Type = "MATCH"
	RETURN    Type = "RETURN"
	ACCEPT    Type = "ACCEPT"
	REJECT    Type = "REJECT"
	IN        Type = "IN"
	NOT       Type = "NOT"
	TRUE      Type = "TRUE"
	FALSE     Type = "FALSE"
)

// Token is one lexeme with its source span. Literal carries the decoded
// payload for literal tokens (int64 for INT, string for STRING, the raw
// lexeme otherwise).
type Token struct {
	Type    Type
	Lexeme  string
	Literal any
	Span    diag.Span
}

var keywords = map[string]Type{
	"filtermap": FILTERMAP,
	"filter":    FILTER,
	"function":  FUNCTION,
	"record":    RECORD,
	"enum":      ENUM,
	"let":       LET,
	"if":        IF,
	"else":      ELSE,
	"match":     MATCH,
	"return":    RETURN,
	"accept":    ACCEPT,
	"reject":    REJECT,
	"in":        IN,
	"not":       NOT,
	"true":      TRUE,
	"false":     FALSE,
}

// LookupIdent maps an identifier lexeme to its keyword type, or IDENT.
func LookupIdent(ident string) Type {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	if ident == "_" {
		return UNDER
	}
	return IDENT
}

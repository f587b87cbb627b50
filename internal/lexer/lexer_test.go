package lexer

import (
	"strings"
	"testing"

	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
)

func lexAll(t *testing.T, input string) ([]token.Token, *diag.Bag) {
	t.Helper()
	bag := diag.NewBag()
	l := New(input, "test", bag)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.EOF {
			return toks, bag
		}
		toks = append(toks, tok)
		if len(toks) > 10000 {
			t.Fatal("lexer did not terminate")
		}
	}
}

func TestNextTokenBasics(t *testing.T) {
	input := `let x = 5; if x <= 10 && !done { accept; } else { reject; }`

	expected := []struct {
		typ    token.Type
		lexeme string
	}{
		{token.LET, "let"},
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.INT, "5"},
		{token.SEMICOLON, ";"},
		{token.IF, "if"},
		{token.IDENT, "x"},
		{token.LTE, "<="},
		{token.INT, "10"},
		{token.AND, "&&"},
		{token.BANG, "!"},
		{token.IDENT, "done"},
		{token.LBRACE, "{"},
		{token.ACCEPT, "accept"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
		{token.ELSE, "else"},
		{token.LBRACE, "{"},
		{token.REJECT, "reject"},
		{token.SEMICOLON, ";"},
		{token.RBRACE, "}"},
	}

	toks, bag := lexAll(t, input)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.All())
	}
	if len(toks) != len(expected) {
		t.Fatalf("token count: got %d, want %d", len(toks), len(expected))
	}
	for i, exp := range expected {
		if toks[i].Type != exp.typ {
			t.Errorf("token %d: type got %q, want %q", i, toks[i].Type, exp.typ)
		}
		if toks[i].Lexeme != exp.lexeme {
			t.Errorf("token %d: lexeme got %q, want %q", i, toks[i].Lexeme, exp.lexeme)
		}
	}
}

func TestDomainLiterals(t *testing.T) {
	tests := []struct {
		input   string
		typ     token.Type
		literal any
	}{
		{"42", token.INT, int64(42)},
		{"0xFF", token.INT, int64(255)},
		{"192.0.2.1", token.IPV4, "192.0.2.1"},
		{"192.0.2.0/24", token.PREFIX, "192.0.2.0/24"},
		{"AS64512", token.ASN, uint32(64512)},
		{"65000:120", token.COMMUNITY, uint32(65000)<<16 | 120},
		{`"backup"`, token.STRING, "backup"},
	}

	for _, tt := range tests {
		toks, bag := lexAll(t, tt.input)
		if bag.HasErrors() {
			t.Errorf("%q: unexpected diagnostics: %v", tt.input, bag.All())
			continue
		}
		if len(toks) != 1 {
			t.Errorf("%q: got %d tokens, want 1", tt.input, len(toks))
			continue
		}
		if toks[0].Type != tt.typ {
			t.Errorf("%q: type got %q, want %q", tt.input, toks[0].Type, tt.typ)
		}
		if toks[0].Literal != tt.literal {
			t.Errorf("%q: literal got %v (%T), want %v (%T)",
				tt.input, toks[0].Literal, toks[0].Literal, tt.literal, tt.literal)
		}
	}
}

func TestPrefixVersusDivision(t *testing.T) {
	toks, bag := lexAll(t, "a / 24")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.All())
	}
	want := []token.Type{token.IDENT, token.SLASH, token.INT}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: got %q, want %q", i, toks[i].Type, w)
		}
	}
}

func TestRecordFieldColonIsNotCommunity(t *testing.T) {
	toks, bag := lexAll(t, "{ med: 80 }")
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.All())
	}
	want := []token.Type{token.LBRACE, token.IDENT, token.COLON, token.INT, token.RBRACE}
	for i, w := range want {
		if toks[i].Type != w {
			t.Errorf("token %d: got %q, want %q", i, toks[i].Type, w)
		}
	}
}

func TestIllegalCharacterRecovers(t *testing.T) {
	toks, bag := lexAll(t, "let x = 1 @ 2;")
	if !bag.HasErrors() {
		t.Fatal("expected a diagnostic for '@'")
	}
	if bag.ErrorCount() != 1 {
		t.Fatalf("expected exactly one error, got %d: %v", bag.ErrorCount(), bag.All())
	}
	// Scanning must continue past the bad character.
	last := toks[len(toks)-1]
	if last.Type != token.SEMICOLON {
		t.Errorf("expected lexing to continue to ';', last token %q", last.Type)
	}
}

func TestMultipleErrorsOnePass(t *testing.T) {
	_, bag := lexAll(t, "@ let # x")
	if bag.ErrorCount() != 2 {
		t.Fatalf("expected two diagnostics, got %d: %v", bag.ErrorCount(), bag.All())
	}
}

// Concatenating token lexemes in span order must reproduce the source,
// modulo whitespace and comments.
func TestSpanRoundTrip(t *testing.T) {
	input := "filtermap f(route: Route) {\n\t// drop long prefixes\n\tif route.prefix.len() > AS64512.int() { reject; }\n\taccept;\n}\n"
	toks, bag := lexAll(t, input)
	if bag.HasErrors() {
		t.Fatalf("unexpected diagnostics: %v", bag.All())
	}
	var rebuilt strings.Builder
	for _, tok := range toks {
		rebuilt.WriteString(input[tok.Span.Start:tok.Span.End])
		rebuilt.WriteByte(' ')
	}
	squash := func(s string) string {
		fields := strings.FieldsFunc(s, func(r rune) bool {
			return r == ' ' || r == '\t' || r == '\n'
		})
		return strings.Join(fields, "")
	}
	stripped := input
	if i := strings.Index(stripped, "//"); i >= 0 {
		j := strings.Index(stripped[i:], "\n")
		stripped = stripped[:i] + stripped[i+j:]
	}
	if squash(rebuilt.String()) != squash(stripped) {
		t.Errorf("span round-trip mismatch:\n got %q\nwant %q", squash(rebuilt.String()), squash(stripped))
	}
}

func TestSpanOffsets(t *testing.T) {
	toks, _ := lexAll(t, "ab == cd")
	if toks[0].Span.Start != 0 || toks[0].Span.End != 2 {
		t.Errorf("ident span got %d..%d, want 0..2", toks[0].Span.Start, toks[0].Span.End)
	}
	if toks[1].Span.Start != 3 || toks[1].Span.End != 5 {
		t.Errorf("== span got %d..%d, want 3..5", toks[1].Span.Start, toks[1].Span.End)
	}
	if toks[2].Span.Start != 6 || toks[2].Span.End != 8 {
		t.Errorf("ident span got %d..%d, want 6..8", toks[2].Span.Start, toks[2].Span.End)
	}
}

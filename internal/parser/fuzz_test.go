package parser

import (
	"testing"

	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/lexer"
)

// FuzzParseUnit feeds arbitrary bytes through the lexer and parser. The
// contract under fuzzing is no panic and no silent success on garbage:
// every input yields a tree or diagnostics, never a crash.
func FuzzParseUnit(f *testing.F) {
	f.Add("filtermap f(route: Route) { accept; }")
	f.Add("filter short(route: Route) { if route.prefix.len() > 24 { reject; } accept; }")
	f.Add("function t(n: Int) -> Int { return n + 1; }")
	f.Add("record R { a: Int, b: Bool }")
	f.Add("enum E { A, B(Int) }")
	f.Add("filtermap f(route: Route) { match x { A -> { accept; } _ -> { reject; } } }")
	f.Add("filtermap f(r: Route) { let p = 10.0.0.0/8; accept; }")
	f.Add("{{{{")
	f.Add("filtermap")

	f.Fuzz(func(t *testing.T, src string) {
		bag := diag.NewBag()
		p := New(lexer.New(src, "fuzz", bag), bag)
		unit := p.ParseUnit("fuzz")
		if unit == nil {
			t.Fatal("parser returned nil unit")
		}
	})
}

// Package diag holds the structured diagnostics produced by every stage of
// the compilation pipeline. Rendering is left to the caller; this package
// only defines the values and the ordered collection they accumulate in.
package diag

import "fmt"

// Stage identifies which compiler phase produced the diagnostic.
type Stage string

const (
	StageLexer   Stage = "lexer"
	StageParser  Stage = "parser"
	StageChecker Stage = "checker"
	StageCodegen Stage = "codegen"
)

// Severity captures how impactful the diagnostic is.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Kind is a stable identifier for a class of diagnostics.
type Kind string

const (
	// Lexer
	KindIllegalToken       Kind = "IllegalToken"
	KindUnterminatedString Kind = "UnterminatedString"
	KindBadLiteral         Kind = "BadLiteral"

	// Parser
	KindUnexpectedToken Kind = "UnexpectedToken"

	// Checker
	KindUndefinedSymbol    Kind = "UndefinedSymbol"
	KindUndefinedType      Kind = "UndefinedType"
	KindTypeMismatch       Kind = "TypeMismatch"
	KindArityMismatch      Kind = "ArityMismatch"
	KindUnknownField       Kind = "UnknownField"
	KindUnknownMethod      Kind = "UnknownMethod"
	KindUnknownVariant     Kind = "UnknownVariant"
	KindNonExhaustiveMatch Kind = "NonExhaustiveMatch"
	KindDuplicateSymbol    Kind = "DuplicateSymbol"
	KindMissingReturn      Kind = "MissingReturn"
	KindRecursiveCall      Kind = "RecursiveCall"
	KindUnusedDeclaration  Kind = "UnusedDeclaration"

	// Codegen / verifier
	KindInternalError Kind = "InternalError"
)

// Span is a half-open byte range [Start, End) inside one compilation unit.
// Unit is the identifier the caller handed to Compile; the compiler never
// interprets it.
type Span struct {
	Start int
	End   int
	Unit  string
}

func (s Span) String() string {
	if s.Unit != "" {
		return fmt.Sprintf("%s:%d..%d", s.Unit, s.Start, s.End)
	}
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// Join returns the smallest span covering both s and o.
func (s Span) Join(o Span) Span {
	out := s
	if o.Start < out.Start {
		out.Start = o.Start
	}
	if o.End > out.End {
		out.End = o.End
	}
	return out
}

// Label attaches a message to a span. The first label on a diagnostic is the
// primary one.
type Label struct {
	Span    Span
	Message string
}

// Diagnostic is a single structured finding surfaced to the caller.
type Diagnostic struct {
	Stage    Stage
	Severity Severity
	Kind     Kind
	Message  string
	Labels   []Label
}

// Primary returns the primary span of the diagnostic.
func (d Diagnostic) Primary() Span {
	if len(d.Labels) == 0 {
		return Span{}
	}
	return d.Labels[0].Span
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s (%s)", d.Severity, d.Kind, d.Message, d.Primary())
}

// Errorf builds an error-severity diagnostic with a single primary label.
func Errorf(stage Stage, kind Kind, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{
		Stage:    stage,
		Severity: SeverityError,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Labels:   []Label{{Span: span}},
	}
}

// Warnf builds a warning-severity diagnostic with a single primary label.
func Warnf(stage Stage, kind Kind, span Span, format string, args ...any) Diagnostic {
	return Diagnostic{
		Stage:    stage,
		Severity: SeverityWarning,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Labels:   []Label{{Span: span}},
	}
}

// WithLabel returns d with an extra secondary label appended.
func (d Diagnostic) WithLabel(span Span, format string, args ...any) Diagnostic {
	d.Labels = append(d.Labels, Label{Span: span, Message: fmt.Sprintf(format, args...)})
	return d
}

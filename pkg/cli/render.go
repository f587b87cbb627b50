package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ruta-lang/ruta/internal/diag"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiBold   = "\x1b[1m"
)

func stdoutIsTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func stderrIsTTY() bool {
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// renderDiagnostics prints findings with their source line and a caret
// under the primary span.
func renderDiagnostics(w io.Writer, source string, diags []diag.Diagnostic, color bool) {
	for _, d := range diags {
		renderDiagnostic(w, source, d, color)
	}
}

func renderDiagnostic(w io.Writer, source string, d diag.Diagnostic, color bool) {
	span := d.Primary()
	line, col := lineCol(source, span.Start)

	sev := string(d.Severity)
	if color {
		tint := ansiRed
		if d.Severity == diag.SeverityWarning {
			tint = ansiYellow
		}
		sev = tint + sev + ansiReset
	}
	head := fmt.Sprintf("%s:%d:%d", span.Unit, line, col)
	if color {
		head = ansiBold + head + ansiReset
	}
	fmt.Fprintf(w, "%s: %s: %s [%s]\n", head, sev, d.Message, d.Kind)

	text, start := lineAt(source, span.Start)
	if text == "" {
		return
	}
	fmt.Fprintf(w, "  %s\n", text)
	width := span.End - span.Start
	if width < 1 {
		width = 1
	}
	if max := len(text) - (span.Start - start); width > max {
		width = max
	}
	fmt.Fprintf(w, "  %s%s\n", strings.Repeat(" ", span.Start-start), strings.Repeat("^", width))
}

// lineCol converts a byte offset to 1-based line and column.
func lineCol(source string, offset int) (int, int) {
	if offset > len(source) {
		offset = len(source)
	}
	line, col := 1, 1
	for _, r := range source[:offset] {
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// lineAt returns the line containing offset and the offset of its first
// byte.
func lineAt(source string, offset int) (string, int) {
	if offset > len(source) {
		offset = len(source)
	}
	start := strings.LastIndexByte(source[:offset], '\n') + 1
	end := strings.IndexByte(source[start:], '\n')
	if end < 0 {
		return source[start:], start
	}
	return source[start : start+end], start
}

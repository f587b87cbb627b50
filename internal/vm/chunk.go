package vm

import (
	"github.com/ruta-lang/ruta/internal/diag"
	"github.com/ruta-lang/ruta/internal/token"
)

// Chunk is the compiled body of one function or policy. Spans parallels
// Code byte for byte so runtime faults can point back at source.
type Chunk struct {
	Name      string
	Kind      token.Type // token.FUNCTION, token.FILTERMAP or token.FILTER
	Code      []byte
	Spans     []diag.Span
	NumParams int
	NumLocals int
	HasResult bool
	MaxStack  int // proven by the verifier
}

func newChunk(name string, kind token.Type) *Chunk {
	return &Chunk{
		Name: name,
		Kind: kind,
		Code: make([]byte, 0, 64),
	}
}

func (c *Chunk) write(b byte, sp diag.Span) {
	c.Code = append(c.Code, b)
	c.Spans = append(c.Spans, sp)
}

func (c *Chunk) writeOp(op Opcode, sp diag.Span) {
	c.write(byte(op), sp)
}

// writeU16 writes a 2-byte big-endian operand.
func (c *Chunk) writeU16(v int, sp diag.Span) {
	c.write(byte(v>>8), sp)
	c.write(byte(v), sp)
}

// patchU16 overwrites a previously written operand, for jump backpatching.
func (c *Chunk) patchU16(at, v int) {
	c.Code[at] = byte(v >> 8)
	c.Code[at+1] = byte(v)
}

// readU16 reads the 2-byte operand at offset.
func (c *Chunk) readU16(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

func (c *Chunk) spanAt(offset int) diag.Span {
	if offset >= 0 && offset < len(c.Spans) {
		return c.Spans[offset]
	}
	return diag.Span{}
}

package vm

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/ruta-lang/ruta/internal/token"
)

// Shape describes one record constructor: Fields in canonical (name) order
// and Perm mapping canonical position to push position, so MAKE_RECORD can
// reorder the popped values without sorting at run time.
type Shape struct {
	Fields []string
	Perm   []int
}

// shapeOf computes the canonical shape for fields pushed in the given
// order.
func shapeOf(pushOrder []string) Shape {
	fields := make([]string, len(pushOrder))
	copy(fields, pushOrder)
	sort.Strings(fields)
	perm := make([]int, len(fields))
	for i, name := range fields {
		for j, pushed := range pushOrder {
			if pushed == name {
				perm[i] = j
				break
			}
		}
	}
	return Shape{Fields: fields, Perm: perm}
}

// ExternalDecl is one entry of the external-call table: a symbolic
// "Type.member" name and its operand count including the receiver. The
// concrete callable binds at attach time.
type ExternalDecl struct {
	Ref  string
	Argc int
}

// Program is the immutable compilation artifact: shared constant pool,
// shape and external-call tables, and one chunk per function. A Program is
// safe for concurrent read-only use by any number of invocations.
type Program struct {
	BuildID   string // fresh UUID per compilation, excluded from Fingerprint
	Unit      string
	Consts    []Value
	Shapes    []Shape
	Externals []ExternalDecl
	Funcs     []*Chunk
	Index     map[string]int
}

// Entry returns the chunk for the named function.
func (p *Program) Entry(name string) (*Chunk, bool) {
	i, ok := p.Index[name]
	if !ok {
		return nil, false
	}
	return p.Funcs[i], true
}

// Entrypoints returns the filtermap and filter names in compiled order.
func (p *Program) Entrypoints() []string {
	var out []string
	for _, c := range p.Funcs {
		if c.Kind != token.FUNCTION {
			out = append(out, c.Name)
		}
	}
	return out
}

// Fingerprint hashes everything that defines the Program's behavior. The
// build id is deliberately excluded: compiling identical source must yield
// an identical fingerprint.
func (p *Program) Fingerprint() [32]byte {
	h := sha256.New()
	writeStr := func(s string) {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(s)))
		h.Write(n[:])
		h.Write([]byte(s))
	}
	writeInt := func(v int) {
		var n [8]byte
		binary.BigEndian.PutUint64(n[:], uint64(v))
		h.Write(n[:])
	}

	writeStr(p.Unit)
	writeInt(len(p.Consts))
	for _, v := range p.Consts {
		writeStr(fingerprintValue(v))
	}
	writeInt(len(p.Shapes))
	for _, s := range p.Shapes {
		writeInt(len(s.Fields))
		for i, f := range s.Fields {
			writeStr(f)
			writeInt(s.Perm[i])
		}
	}
	writeInt(len(p.Externals))
	for _, e := range p.Externals {
		writeStr(e.Ref)
		writeInt(e.Argc)
	}
	writeInt(len(p.Funcs))
	for _, c := range p.Funcs {
		writeStr(c.Name)
		writeStr(string(c.Kind))
		writeInt(c.NumParams)
		writeInt(c.NumLocals)
		writeInt(c.MaxStack)
		if c.HasResult {
			writeInt(1)
		} else {
			writeInt(0)
		}
		writeInt(len(c.Code))
		h.Write(c.Code)
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// fingerprintValue renders a constant to a stable textual form. Constants
// only ever hold scalar kinds, everything composite is built at run time.
func fingerprintValue(v Value) string {
	return fmt.Sprintf("%d:%s", v.Kind, v.String())
}

// Package chunk implements the append-only bytecode container: a byte
// stream, a parallel source-line map, and a deduplicated constant pool.
package chunk

import (
	"fmt"

	"github.com/mray/scriptvm/pkg/value"
)

// MaxConstants is the ceiling on distinct constants in one chunk, imposed
// by the 8-bit constant id.
const MaxConstants = 256

// Chunk owns three parallel arrays: code, lines (one entry per code byte),
// and an ordered constant pool addressed by an 8-bit id. Once written, code
// bytes are only ever mutated by jump patching at positions the compiler
// itself reserved.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []value.Value
}

// New returns an empty chunk ready for code generation.
func New() *Chunk {
	return &Chunk{}
}

// WriteByte appends one byte of bytecode, recording the source line it
// came from.
func (c *Chunk) WriteByte(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op OpCode, line int) {
	c.WriteByte(byte(op), line)
}

// AddConstant appends v to the constant pool and returns its id. Returns an
// error if the pool is already full (256 entries).
func (c *Chunk) AddConstant(v value.Value) (byte, error) {
	if len(c.Constants) >= MaxConstants {
		return 0, fmt.Errorf("too many constants in one chunk")
	}
	id := byte(len(c.Constants))
	c.Constants = append(c.Constants, v)
	return id, nil
}

// FindConstant linearly searches for a structurally equal existing constant,
// enabling deduplication of identifier names and literals.
func (c *Chunk) FindConstant(v value.Value) (byte, bool) {
	for i, existing := range c.Constants {
		if value.Equal(existing, v) {
			return byte(i), true
		}
	}
	return 0, false
}

// GetConstant returns the constant stored at id.
func (c *Chunk) GetConstant(id byte) value.Value {
	return c.Constants[id]
}

// Len returns the current code length as a u16 (jump offsets are 16-bit).
func (c *Chunk) Len() uint16 {
	return uint16(len(c.Code))
}

// GetLine returns the source line recorded for a given code offset.
func (c *Chunk) GetLine(offset int) int {
	return c.Lines[offset]
}

// GetLineIfFirst returns the line for offset unless it equals the line
// recorded for offset-1; used by disassembly to avoid repeating the line
// number on every instruction of a multi-instruction source line.
func (c *Chunk) GetLineIfFirst(offset int) (int, bool) {
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		return 0, false
	}
	return c.Lines[offset], true
}

// PatchJump backpatches the 2-byte little-endian operand at offset (which
// must point at the first of the two placeholder bytes) with the distance
// from just after the operand to the chunk's current end. Returns an error
// if that distance doesn't fit in 16 bits.
func (c *Chunk) PatchJump(offset int) error {
	jump := len(c.Code) - offset - 2
	if jump > 0xFFFF {
		return fmt.Errorf("too much code to jump over")
	}
	c.Code[offset] = byte(jump & 0xFF)
	c.Code[offset+1] = byte((jump >> 8) & 0xFF)
	return nil
}

package chunk

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble renders the whole chunk as human-readable text, one line per
// instruction, under the given section name. It is a development affordance
// only: callers gate it behind a trace/debug flag so it never runs on the
// hot execution path.
func (c *Chunk) Disassemble(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		var line string
		line, offset = c.disassembleInstruction(offset)
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// DisassembleInstruction formats the single instruction at offset and
// returns the offset of the next one; used by the VM's trace mode to print
// one line per executed instruction.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	return c.disassembleInstruction(offset)
}

// disassembleInstruction formats the instruction at offset and returns the
// offset of the next one.
func (c *Chunk) disassembleInstruction(offset int) (string, int) {
	var b strings.Builder
	fmt.Fprintf(&b, "%04d ", offset)
	if line, first := c.GetLineIfFirst(offset); first {
		fmt.Fprintf(&b, "%4d ", line)
	} else {
		b.WriteString("   | ")
	}

	op := OpCode(c.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal:
		return c.constantInstruction(op, offset, &b)
	case OpGetLocal, OpSetLocal:
		return c.byteInstruction(op, offset, &b)
	case OpJump, OpJumpIfFalse:
		return c.jumpInstruction(op, 1, offset, &b)
	case OpLoop:
		return c.jumpInstruction(op, -1, offset, &b)
	default:
		fmt.Fprintf(&b, "%s", op)
		return b.String(), offset + 1
	}
}

func (c *Chunk) constantInstruction(op OpCode, offset int, b *strings.Builder) (string, int) {
	id := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d '%s'", op, id, c.GetConstant(id))
	return b.String(), offset + 2
}

func (c *Chunk) byteInstruction(op OpCode, offset int, b *strings.Builder) (string, int) {
	slot := c.Code[offset+1]
	fmt.Fprintf(b, "%-16s %4d", op, slot)
	return b.String(), offset + 2
}

func (c *Chunk) jumpInstruction(op OpCode, sign int, offset int, b *strings.Builder) (string, int) {
	jump := int(binary.LittleEndian.Uint16(c.Code[offset+1 : offset+3]))
	target := offset + 3 + sign*jump
	fmt.Fprintf(b, "%-16s %4d -> %d", op, offset, target)
	return b.String(), offset + 3
}

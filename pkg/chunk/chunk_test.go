package chunk

import (
	"testing"

	"github.com/mray/scriptvm/pkg/value"
)

func TestWriteByteTracksLines(t *testing.T) {
	c := New()
	c.WriteOp(OpNil, 1)
	c.WriteOp(OpTrue, 1)
	c.WriteOp(OpReturn, 2)

	if len(c.Code) != len(c.Lines) {
		t.Fatalf("code/lines length mismatch: %d vs %d", len(c.Code), len(c.Lines))
	}
	want := []int{1, 1, 2}
	for i, line := range want {
		if c.Lines[i] != line {
			t.Errorf("line[%d] = %d, want %d", i, c.Lines[i], line)
		}
	}
}

func TestAddConstantAndDedup(t *testing.T) {
	c := New()
	id1, err := c.AddConstant(value.Number(42))
	if err != nil {
		t.Fatalf("AddConstant: %v", err)
	}
	id2, ok := c.FindConstant(value.Number(42))
	if !ok || id2 != id1 {
		t.Errorf("FindConstant did not dedup: got id=%d ok=%v, want id=%d ok=true", id2, ok, id1)
	}
	id3, err := c.AddConstant(value.String("hi"))
	if err != nil {
		t.Fatalf("AddConstant: %v", err)
	}
	if id3 == id1 {
		t.Errorf("distinct constants got the same id %d", id3)
	}
}

func TestAddConstantOverflow(t *testing.T) {
	c := New()
	for i := 0; i < MaxConstants; i++ {
		if _, err := c.AddConstant(value.Number(float64(i))); err != nil {
			t.Fatalf("AddConstant %d: %v", i, err)
		}
	}
	if _, err := c.AddConstant(value.Number(999)); err == nil {
		t.Error("expected error on 257th constant, got nil")
	}
}

func TestPatchJumpRoundTrip(t *testing.T) {
	c := New()
	c.WriteOp(OpJumpIfFalse, 1)
	patchAt := len(c.Code)
	c.WriteByte(0xFF, 1)
	c.WriteByte(0xFF, 1)
	c.WriteOp(OpPop, 1)
	c.WriteOp(OpNil, 1)

	target := len(c.Code)
	if err := c.PatchJump(patchAt); err != nil {
		t.Fatalf("PatchJump: %v", err)
	}
	got := int(c.Code[patchAt]) | int(c.Code[patchAt+1])<<8
	want := target - patchAt - 2
	if got != want {
		t.Errorf("patched operand = %d, want %d", got, want)
	}
}

func TestGetLineIfFirst(t *testing.T) {
	c := New()
	c.WriteOp(OpConstant, 5)
	c.WriteByte(0, 5)
	c.WriteOp(OpPop, 6)

	if line, first := c.GetLineIfFirst(0); !first || line != 5 {
		t.Errorf("offset 0: line=%d first=%v, want 5,true", line, first)
	}
	if _, first := c.GetLineIfFirst(1); first {
		t.Errorf("offset 1: expected first=false (same line as offset 0)")
	}
	if line, first := c.GetLineIfFirst(2); !first || line != 6 {
		t.Errorf("offset 2: line=%d first=%v, want 6,true", line, first)
	}
}

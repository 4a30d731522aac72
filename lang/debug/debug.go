// Package debug implements a disassembler for inspecting compiled chunks.
// It is a read-only diagnostic: nothing in the language's core modules
// depends on it, and there is no corresponding assembler — bytecode is
// never persisted, so there is nothing to round-trip.
package debug

import (
	"fmt"
	"io"

	"github.com/emberlang/ember/lang/chunk"
	"github.com/emberlang/ember/lang/compiler"
)

// DisassembleFunction writes a human-readable listing of every instruction
// in fn's chunk to w, labeled with fn's own name (or "<script>"). natives is
// the set of native-function names currently registered in the VM; an
// OP_GET_GLOBAL that resolves to one of them is annotated "(native)" so a
// reader can tell a builtin call apart from a user global without cross-
// referencing the source. A nil or empty map disables the annotation.
func DisassembleFunction(w io.Writer, fn *chunk.Function, natives map[string]bool) {
	fmt.Fprintf(w, "== %s ==\n", fn.String())
	offset := 0
	for offset < len(fn.Chunk.Code) {
		offset = disassembleInstruction(w, &fn.Chunk, offset, natives)
	}
}

func disassembleInstruction(w io.Writer, c *chunk.Chunk, offset int, natives map[string]bool) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.Lines[offset])
	}

	op := compiler.OpCode(c.Code[offset])
	switch op {
	case compiler.OpConstant, compiler.OpGetGlobal, compiler.OpSetGlobal, compiler.OpDefineGlobal, compiler.OpClosure:
		return constantInstruction(w, op, c, offset, natives)
	case compiler.OpGetLocal, compiler.OpSetLocal, compiler.OpGetUpvalue, compiler.OpSetUpvalue, compiler.OpCall:
		return byteInstruction(w, op, c, offset)
	case compiler.OpJump, compiler.OpJumpIfFalse:
		return jumpInstruction(w, op, c, offset, 1)
	case compiler.OpLoop:
		return jumpInstruction(w, op, c, offset, -1)
	default:
		fmt.Fprintln(w, op.String())
		return offset + 1
	}
}

func constantInstruction(w io.Writer, op compiler.OpCode, c *chunk.Chunk, offset int, natives map[string]bool) int {
	idx := read24(c.Code, offset+1)
	fmt.Fprintf(w, "%-18s %4d '%s'", op, idx, c.Constants[idx])
	if op == compiler.OpGetGlobal {
		if name := c.Constants[idx].String(); natives[name] {
			fmt.Fprint(w, " (native)")
		}
	}
	fmt.Fprintln(w)

	next := offset + 4
	if op == compiler.OpClosure {
		fn, ok := c.Constants[idx].AsObject().(*chunk.Function)
		if ok {
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := c.Code[next]
				index := c.Code[next+1]
				kind := "upvalue"
				if isLocal != 0 {
					kind = "local"
				}
				fmt.Fprintf(w, "%04d      |                     %s %d\n", next, kind, index)
				next += 2
			}
		}
	}
	return next
}

func byteInstruction(w io.Writer, op compiler.OpCode, c *chunk.Chunk, offset int) int {
	slot := c.Code[offset+1]
	fmt.Fprintf(w, "%-18s %4d\n", op, slot)
	return offset + 2
}

func jumpInstruction(w io.Writer, op compiler.OpCode, c *chunk.Chunk, offset int, sign int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	fmt.Fprintf(w, "%-18s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

func read24(code []byte, offset int) int {
	return int(code[offset]) | int(code[offset+1])<<8 | int(code[offset+2])<<16
}

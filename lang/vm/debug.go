package vm

import (
	"io"

	"github.com/emberlang/ember/lang/chunk"
	"github.com/emberlang/ember/lang/debug"
)

// Disassemble writes a human-readable listing of fn's compiled chunk to w,
// annotating any OP_GET_GLOBAL that resolves to one of this VM's registered
// native functions. This is the native registry's one real reader: it is
// what makes vm.natives more than write-only bookkeeping.
func (vm *VM) Disassemble(w io.Writer, fn *chunk.Function) {
	debug.DisassembleFunction(w, fn, vm.NativeNames())
}

package vm

import (
	"time"

	"github.com/emberlang/ember/lang/value"
)

func nativeClock(argCount int, args []value.Value) (value.Value, error) {
	return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

// defineNative registers fn under name in both the globals table (so
// scripts can call it) and the native registry (host-side bookkeeping, used
// by the disassembler to annotate OP_GET_GLOBAL targets that resolve to a
// builtin rather than a user function). It panics if name is already
// registered: native registration only ever happens at VM construction
// time, so a collision is a host programming error, not something a script
// can trigger.
func (vm *VM) defineNative(name string, fn value.NativeFn) {
	if _, ok := vm.natives.Get(name); ok {
		panic("vm: native already registered: " + name)
	}

	native := value.NewNative(name, fn)
	vm.registerObject(native)

	// Root both the interned name and the Native object across the table
	// write, same convention as Intern.
	interned := vm.Intern(name)
	vm.Push(value.FromObject(interned))
	vm.Push(value.FromObject(native))
	vm.globals.Set(interned, vm.peek(0))
	vm.Pop()
	vm.Pop()

	vm.natives.Put(name, native)
}

// NativeNames returns the name of every registered native function, as a
// set for fast membership tests. Used by Disassemble to annotate globals
// that resolve to a builtin.
func (vm *VM) NativeNames() map[string]bool {
	names := make(map[string]bool, int(vm.natives.Count()))
	vm.natives.Iter(func(name string, _ *value.Native) bool {
		names[name] = true
		return false
	})
	return names
}

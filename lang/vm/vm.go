// Package vm implements Ember's stack-based bytecode interpreter: the
// operand stack, call frames, globals and string-intern tables, the single
// dispatch loop, and the mark-sweep garbage collector that reclaims every
// heap object the compiler and the loop allocate.
package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/dolthub/swiss"

	"github.com/emberlang/ember/lang/chunk"
	"github.com/emberlang/ember/lang/compiler"
	"github.com/emberlang/ember/lang/table"
	"github.com/emberlang/ember/lang/value"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// frame is one active call's bookkeeping: the closure it is executing, its
// instruction pointer (an offset into that closure's function's chunk), and
// the base stack index of its local slots. slots[0] is always the callee
// itself, per the calling convention; slots[1..arity] are its arguments.
type frame struct {
	closure *chunk.Closure
	ip      int
	slots   int
}

// compilerRootWalker is satisfied by *compiler.Compiler. It is the type of
// the VM's activeCompiler field, the only part of the compiler the garbage
// collector needs: a way to walk the functions still under construction.
type compilerRootWalker interface {
	WalkRoots(func(*chunk.Function))
}

// VM is one instance of the Ember runtime: an operand stack, a stack of
// call frames, the canonical globals and string-intern tables, the
// intrusive list of every live heap object, and the open-upvalue list
// shared by every frame currently on the stack.
type VM struct {
	stack    [stackMax]value.Value
	stackTop int

	frames     [framesMax]frame
	frameCount int

	globals *table.Table
	strings *table.Table

	objects value.Object // head of the list of every heap object ever allocated

	// openUpvalues holds every OPEN upvalue currently aliasing a live stack
	// slot, kept sorted by descending Slot exactly as the design calls for,
	// so that captureUpvalue and closeUpvalues can both work with a simple
	// scan from the front. A slice stands in for the source's hand-rolled
	// intrusive linked list — the sort-by-descending-slot contract is the
	// part that matters, not the storage.
	openUpvalues []*value.Upvalue

	out io.Writer

	bytesAllocated int64
	nextGC         int64
	stressGC       bool

	// natives records every registered native function by name, purely as
	// host-side bookkeeping (duplicate-registration detection, introspection
	// for the disassembler); the globals table above is what scripts
	// actually resolve calls through.
	natives *swiss.Map[string, *value.Native]

	// activeCompiler is set for the duration of a Compile call so that a GC
	// triggered by a constant-pool allocation mid-compile can still walk
	// every Function under construction as a root.
	activeCompiler compilerRootWalker
}

// New creates a VM that writes script `print` output to out.
func New(out io.Writer) *VM {
	vm := &VM{
		globals: table.New(),
		strings: table.New(),
		natives: swiss.NewMap[string, *value.Native](8),
		nextGC:  1 << 20,
		out:     out,
	}
	vm.defineNative("clock", nativeClock)
	return vm
}

// SetStressGC forces a collection on every heap allocation, for tests that
// want to exercise the collector aggressively.
func (vm *VM) SetStressGC(stress bool) { vm.stressGC = stress }

// --- compiler.Allocator ---

func (vm *VM) Push(v value.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) Pop() value.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[vm.stackTop-1-distance]
}

// Intern returns the canonical *value.String for chars, allocating and
// registering a new one only if the table doesn't already hold an equal
// string. This is the single path by which String objects enter the heap,
// so no two String objects with equal bytes ever coexist.
func (vm *VM) Intern(chars string) *value.String {
	hash := value.HashString(chars)
	if s := vm.strings.FindString(chars, hash); s != nil {
		return s
	}
	s := value.NewString(chars)
	vm.registerObject(s)
	// Root the new string on the stack across the table write: Set can grow
	// the entries slice, and a future allocation-triggered GC must not
	// collect a string reachable only from a local variable.
	vm.Push(value.FromObject(s))
	vm.strings.Set(s, value.Bool(true))
	vm.Pop()
	return s
}

// NewFunction allocates a Function through the VM's object bookkeeping, so
// compile-time functions are swept exactly like any other heap object.
func (vm *VM) NewFunction() *chunk.Function {
	fn := chunk.NewFunction()
	vm.registerObject(fn)
	return fn
}

func (vm *VM) newClosure(fn *chunk.Function) *chunk.Closure {
	c := chunk.NewClosure(fn)
	vm.registerObject(c)
	return c
}

func (vm *VM) newUpvalue(slot int) *value.Upvalue {
	uv := value.NewOpenUpvalue(slot)
	vm.registerObject(uv)
	return uv
}

func (vm *VM) registerObject(o value.Object) {
	// Collect before linking o: the caller has not rooted o yet, so a
	// collection that saw it on the objects list would sweep it.
	size := objectSize(o)
	if vm.stressGC || vm.bytesAllocated+size > vm.nextGC {
		vm.collectGarbage()
	}
	o.SetNext(vm.objects)
	vm.objects = o
	vm.bytesAllocated += size
}

func objectSize(o value.Object) int64 {
	switch o.Kind() {
	case value.ObjString:
		return 48
	case value.ObjFunction:
		return 96
	case value.ObjNative:
		return 64
	case value.ObjClosure:
		return 64
	case value.ObjUpvalue:
		return 32
	default:
		return 32
	}
}

// --- top-level entry point ---

// RuntimeError is returned by Interpret when compilation succeeded but
// execution failed. Error returns the formatted message followed by a
// stack trace walking frames top to bottom, one "[line L] in <name>" per
// frame, in the form the CLI prints to stderr.
type RuntimeError struct {
	Message string
	Trace   string
}

func (e *RuntimeError) Error() string { return e.Trace }

// Interpret compiles source as a new top-level script and, if compilation
// succeeds, runs it. Compile errors are returned as *compiler.CompileError;
// runtime errors as *RuntimeError. Either way the operand stack and frame
// stack are reset before returning, so the VM (and a REPL built on it) can
// keep going after a failed input.
func (vm *VM) Interpret(source string) error {
	c := compiler.New(vm)
	vm.activeCompiler = c
	fn, err := c.Compile(source)
	vm.activeCompiler = nil
	if err != nil {
		return err
	}

	vm.Push(value.FromObject(fn))
	closure := vm.newClosure(fn)
	vm.Pop()
	vm.Push(value.FromObject(closure))
	if err := vm.callValue(value.FromObject(closure), 0); err != nil {
		vm.resetStack()
		return err
	}

	err = vm.run()
	vm.resetStack()
	return err
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = vm.openUpvalues[:0]
}

func (vm *VM) runtimeError(format string, args ...interface{}) error {
	message := fmt.Sprintf(format, args...)

	var trace strings.Builder
	fmt.Fprintln(&trace, message)
	for i := vm.frameCount - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fn := fr.closure.Function
		line := 0
		if fr.ip-1 >= 0 && fr.ip-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[fr.ip-1]
		}
		name := "script"
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		fmt.Fprintf(&trace, "[line %d] in %s\n", line, name)
	}

	return &RuntimeError{Message: message, Trace: strings.TrimRight(trace.String(), "\n")}
}

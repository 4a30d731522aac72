package vm

import (
	"fmt"

	"github.com/emberlang/ember/lang/chunk"
	"github.com/emberlang/ember/lang/compiler"
	"github.com/emberlang/ember/lang/value"
)

// run executes bytecode starting at the current top call frame until either
// the outermost frame returns or a runtime error occurs. It is the single
// dispatch loop: every opcode in lang/compiler is handled by exactly one
// case here.
func (vm *VM) run() error {
	fr := &vm.frames[vm.frameCount-1]

	readByte := func() byte {
		b := fr.closure.Function.Chunk.Code[fr.ip]
		fr.ip++
		return b
	}
	readShort := func() int {
		hi := readByte()
		lo := readByte()
		return int(hi)<<8 | int(lo)
	}
	read24 := func() int {
		b0 := int(readByte())
		b1 := int(readByte())
		b2 := int(readByte())
		return b0 | b1<<8 | b2<<16
	}
	readConstant := func() value.Value {
		return fr.closure.Function.Chunk.Constants[read24()]
	}
	readString := func() *value.String {
		return readConstant().AsString()
	}

	for {
		op := compiler.OpCode(readByte())

		switch op {
		case compiler.OpConstant:
			vm.Push(readConstant())

		case compiler.OpNil:
			vm.Push(value.Nil)
		case compiler.OpTrue:
			vm.Push(value.Bool(true))
		case compiler.OpFalse:
			vm.Push(value.Bool(false))
		case compiler.OpPop:
			vm.Pop()

		case compiler.OpGetLocal:
			slot := int(readByte())
			vm.Push(vm.stack[fr.slots+slot])
		case compiler.OpSetLocal:
			slot := int(readByte())
			vm.stack[fr.slots+slot] = vm.peek(0)

		case compiler.OpGetGlobal:
			name := readString()
			v, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.Push(v)

		case compiler.OpDefineGlobal:
			name := readString()
			vm.globals.Set(name, vm.peek(0))
			vm.Pop()

		case compiler.OpSetGlobal:
			name := readString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}

		case compiler.OpGetUpvalue:
			slot := int(readByte())
			vm.Push(fr.closure.Upvalues[slot].Get(vm.stack[:]))

		case compiler.OpSetUpvalue:
			slot := int(readByte())
			fr.closure.Upvalues[slot].Set(vm.stack[:], vm.peek(0))

		case compiler.OpCloseUpvalue:
			vm.closeUpvalues(vm.stackTop - 1)
			vm.Pop()

		case compiler.OpEqual:
			b := vm.Pop()
			a := vm.Pop()
			vm.Push(value.Bool(value.Equal(a, b)))

		case compiler.OpGreater:
			if err := vm.binaryCompare(true); err != nil {
				return err
			}
		case compiler.OpLess:
			if err := vm.binaryCompare(false); err != nil {
				return err
			}

		case compiler.OpAdd:
			if err := vm.add(); err != nil {
				return err
			}
		case compiler.OpSub, compiler.OpMul, compiler.OpDiv:
			if err := vm.binaryArith(op); err != nil {
				return err
			}

		case compiler.OpNot:
			vm.Push(value.Bool(vm.Pop().IsFalsey()))

		case compiler.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.Push(value.Number(-vm.Pop().AsNumber()))

		case compiler.OpPrint:
			fmt.Fprintln(vm.out, vm.Pop().String())

		case compiler.OpJump:
			off := readShort()
			fr.ip += off

		case compiler.OpJumpIfFalse:
			off := readShort()
			if vm.peek(0).IsFalsey() {
				fr.ip += off
			}

		case compiler.OpLoop:
			off := readShort()
			fr.ip -= off

		case compiler.OpCall:
			argc := int(readByte())
			callee := vm.peek(argc)
			if err := vm.callValue(callee, argc); err != nil {
				return err
			}
			fr = &vm.frames[vm.frameCount-1]

		case compiler.OpClosure:
			fn := readConstant().AsObject().(*chunk.Function)
			cl := vm.newClosure(fn)
			vm.Push(value.FromObject(cl))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte() != 0
				index := readByte()
				if isLocal {
					cl.Upvalues[i] = vm.captureUpvalue(fr.slots + int(index))
				} else {
					cl.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}

		case compiler.OpReturn:
			result := vm.Pop()
			vm.closeUpvalues(fr.slots)
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.Pop() // the top-level script closure itself
				return nil
			}
			vm.stackTop = fr.slots
			vm.Push(result)
			fr = &vm.frames[vm.frameCount-1]

		default:
			return vm.runtimeError("Unknown opcode %d.", byte(op))
		}
	}
}

func (vm *VM) add() error {
	b := vm.peek(0)
	a := vm.peek(1)
	switch {
	case a.IsNumber() && b.IsNumber():
		vm.Pop()
		vm.Pop()
		vm.Push(value.Number(a.AsNumber() + b.AsNumber()))
	case a.IsString() && b.IsString():
		vm.Pop()
		vm.Pop()
		vm.Push(value.FromObject(vm.Intern(a.AsString().Chars + b.AsString().Chars)))
	default:
		return vm.runtimeError("Operands must be two numbers or two strings.")
	}
	return nil
}

func (vm *VM) binaryArith(op compiler.OpCode) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.Pop().AsNumber()
	a := vm.Pop().AsNumber()
	switch op {
	case compiler.OpSub:
		vm.Push(value.Number(a - b))
	case compiler.OpMul:
		vm.Push(value.Number(a * b))
	case compiler.OpDiv:
		vm.Push(value.Number(a / b))
	}
	return nil
}

func (vm *VM) binaryCompare(greater bool) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeError("Operands must be numbers.")
	}
	b := vm.Pop().AsNumber()
	a := vm.Pop().AsNumber()
	if greater {
		vm.Push(value.Bool(a > b))
	} else {
		vm.Push(value.Bool(a < b))
	}
	return nil
}

// --- calls ---

func (vm *VM) callValue(callee value.Value, argc int) error {
	if callee.IsObject() {
		switch o := callee.AsObject(); o.Kind() {
		case value.ObjClosure:
			return vm.call(o.(*chunk.Closure), argc)
		case value.ObjNative:
			return vm.callNative(o.(*value.Native), argc)
		}
	}
	return vm.runtimeError("Can only call functions and classes.")
}

func (vm *VM) call(closure *chunk.Closure, argc int) error {
	if argc != closure.Function.Arity {
		return vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argc)
	}
	if vm.frameCount == framesMax {
		return vm.runtimeError("Stack overflow.")
	}
	fr := &vm.frames[vm.frameCount]
	vm.frameCount++
	fr.closure = closure
	fr.ip = 0
	fr.slots = vm.stackTop - argc - 1
	return nil
}

func (vm *VM) callNative(native *value.Native, argc int) error {
	args := vm.stack[vm.stackTop-argc : vm.stackTop]
	result, err := native.Fn(argc, args)
	if err != nil {
		return vm.runtimeError("%s", err.Error())
	}
	vm.stackTop -= argc + 1
	vm.Push(result)
	return nil
}

// --- upvalues ---

// captureUpvalue returns the open upvalue already aliasing slot, or creates
// one, keeping vm.openUpvalues sorted by descending Slot.
func (vm *VM) captureUpvalue(slot int) *value.Upvalue {
	insertAt := len(vm.openUpvalues)
	for i, uv := range vm.openUpvalues {
		if uv.Slot == slot {
			return uv
		}
		if uv.Slot < slot {
			insertAt = i
			break
		}
	}
	created := vm.newUpvalue(slot)
	vm.openUpvalues = append(vm.openUpvalues, nil)
	copy(vm.openUpvalues[insertAt+1:], vm.openUpvalues[insertAt:])
	vm.openUpvalues[insertAt] = created
	return created
}

// closeUpvalues closes every open upvalue aliasing a slot at or above
// fromSlot — exactly the ones about to go out of scope when the frame
// owning them returns — and drops them from the open list.
func (vm *VM) closeUpvalues(fromSlot int) {
	i := 0
	for i < len(vm.openUpvalues) && vm.openUpvalues[i].Slot >= fromSlot {
		vm.openUpvalues[i].Close(vm.stack[:])
		i++
	}
	vm.openUpvalues = vm.openUpvalues[i:]
}

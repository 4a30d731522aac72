package vm

import (
	"github.com/emberlang/ember/lang/chunk"
	"github.com/emberlang/ember/lang/value"
)

// collectGarbage runs one full mark-sweep cycle: mark every root, trace
// from there until the gray worklist is empty, then sweep every unmarked
// heap object, pruning the string-intern table of any string that turned
// out unreachable before the objects themselves are unlinked.
func (vm *VM) collectGarbage() {
	var gray []value.Object

	mark := func(o value.Object) {
		if o == nil || o.Marked() {
			return
		}
		o.SetMarked(true)
		gray = append(gray, o)
	}
	markValue := func(v value.Value) {
		if v.IsObject() {
			mark(v.AsObject())
		}
	}

	vm.markRoots(mark, markValue)

	for len(gray) > 0 {
		o := gray[len(gray)-1]
		gray = gray[:len(gray)-1]
		vm.blacken(o, mark, markValue)
	}

	vm.sweep()

	vm.nextGC = vm.bytesAllocated * 2
	if vm.nextGC < 1<<20 {
		vm.nextGC = 1 << 20
	}
}

func (vm *VM) markRoots(mark func(value.Object), markValue func(value.Value)) {
	for i := 0; i < vm.stackTop; i++ {
		markValue(vm.stack[i])
	}
	for i := 0; i < vm.frameCount; i++ {
		mark(vm.frames[i].closure)
	}
	for _, uv := range vm.openUpvalues {
		mark(uv)
	}
	vm.globals.Each(func(key *value.String, v value.Value) {
		mark(key)
		markValue(v)
	})
	if vm.activeCompiler != nil {
		vm.activeCompiler.WalkRoots(func(fn *chunk.Function) {
			mark(fn)
		})
	}
}

// blacken marks every object a gray object refers to, the "trace" half of
// mark-sweep: Function reaches its name and constant pool, Closure reaches
// its Function and captured upvalues, a closed Upvalue reaches the value it
// now owns. String and Native are leaves.
func (vm *VM) blacken(o value.Object, mark func(value.Object), markValue func(value.Value)) {
	switch o.Kind() {
	case value.ObjFunction:
		fn := o.(*chunk.Function)
		if fn.Name != nil {
			mark(fn.Name)
		}
		for _, c := range fn.Chunk.Constants {
			markValue(c)
		}

	case value.ObjClosure:
		cl := o.(*chunk.Closure)
		mark(cl.Function)
		for _, uv := range cl.Upvalues {
			// slots OP_CLOSURE has not filled yet are nil
			if uv != nil {
				mark(uv)
			}
		}

	case value.ObjUpvalue:
		uv := o.(*value.Upvalue)
		if uv.Closed {
			markValue(uv.Get(nil))
		}
	}
}

func (vm *VM) sweep() {
	var dead []*value.String
	vm.strings.Each(func(key *value.String, _ value.Value) {
		if !key.Marked() {
			dead = append(dead, key)
		}
	})
	for _, s := range dead {
		vm.strings.Delete(s)
	}

	var prev value.Object
	obj := vm.objects
	for obj != nil {
		next := obj.Next()
		if obj.Marked() {
			obj.SetMarked(false)
			prev = obj
			obj = next
			continue
		}
		if prev == nil {
			vm.objects = next
		} else {
			prev.SetNext(next)
		}
		vm.bytesAllocated -= objectSize(obj)
		obj = next
	}
}

package oba

import (
	"errors"
	"fmt"
)

// maxErrorSize bounds a raised error string's length. The reference
// compiler's own bounds check on this constant was inverted (see
// DESIGN.md); RuntimeErrorf implements the corrected form.
const maxErrorSize = 1024

var errTypeMismatch = errors.New("oba: type mismatch")

// callValue dispatches a CALL opcode against whatever is on the stack
// at calleeSlot: a Closure starts a new frame, a Native runs
// synchronously and replaces its own call window with the result, a
// Ctor builds an Instance from its arguments. Anything else is a type
// error. Returns false if the call raised (caller should loop back to
// the top of run() and let the error check fire).
func (vm *VM) callValue(callee Value, argCount int) bool {
	if !callee.IsObj() {
		vm.TypeError("function")
		return false
	}
	switch obj := callee.AsObj().(type) {
	case *ObjClosure:
		return vm.callClosure(obj, argCount)
	case *ObjNative:
		return vm.callNative(obj, argCount)
	case *ObjCtor:
		return vm.callCtor(obj, argCount)
	default:
		vm.TypeError("function")
		return false
	}
}

func (vm *VM) callClosure(closure *ObjClosure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.ArityError(closure.Function.Arity, argCount)
		return false
	}
	if vm.frameCount == framesMax {
		vm.RuntimeErrorf("Stack overflow.")
		return false
	}
	frame := &vm.frames[vm.frameCount]
	frame.closure = closure
	frame.ip = 0
	frame.slots = vm.stackTop - argCount - 1
	vm.frameCount++
	return true
}

func (vm *VM) callNative(native *ObjNative, argCount int) bool {
	base := vm.stackTop - argCount
	args := append([]Value(nil), vm.stack[base:vm.stackTop]...)
	result := native.Fn(vm, args)
	if vm.hasError {
		return false
	}
	vm.stackTop = base - 1
	vm.push(result)
	return true
}

func (vm *VM) callCtor(ctor *ObjCtor, argCount int) bool {
	if argCount != ctor.Arity {
		vm.ArityError(ctor.Arity, argCount)
		return false
	}
	base := vm.stackTop - argCount
	fields := append([]Value(nil), vm.stack[base:vm.stackTop]...)
	inst := vm.heap.NewInstance(ctor, fields)
	vm.stackTop = base - 1
	vm.push(ObjVal(inst))
	return true
}

// doReturn pops the current frame, closes any upvalues it captured,
// and leaves its result (the top of the stack) where the caller's
// call expression used to sit.
func (vm *VM) doReturn() {
	result := vm.pop()
	frame := &vm.frames[vm.frameCount-1]
	vm.closeUpvalues(frame.slots)

	vm.frameCount--
	if vm.frameCount == 0 {
		vm.pop()
		vm.push(result)
		return
	}
	vm.stackTop = frame.slots
	vm.push(result)
}

// captureUpvalue returns the open Upvalue for the stack slot at
// absolute index slot, reusing an existing one if the open list
// already has it (so two closures capturing the same local share one
// cell). The open list stays sorted by strictly descending slot so a
// single forward scan can find-or-insert in the right place.
func (vm *VM) captureUpvalue(slot int) *ObjUpvalue {
	var prev *ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil && uv.slot > slot {
		prev = uv
		uv = uv.Next
	}
	if uv != nil && uv.slot == slot {
		return uv
	}

	created := vm.heap.NewUpvalue(&vm.stack[slot])
	created.slot = slot
	created.Next = uv
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above floor, copying
// its value out of the stack slot it pointed at and into its own
// Closed field before the slot is reused or discarded.
func (vm *VM) closeUpvalues(floor int) {
	for vm.openUpvalues != nil && vm.openUpvalues.slot >= floor {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.Next
	}
}

// closeUpvalueAt closes the single open upvalue at exactly slot, if
// any, without touching any other open upvalue or the stack itself.
func (vm *VM) closeUpvalueAt(slot int) {
	var prev *ObjUpvalue
	uv := vm.openUpvalues
	for uv != nil {
		if uv.slot == slot {
			uv.Closed = *uv.Location
			uv.Location = &uv.Closed
			if prev == nil {
				vm.openUpvalues = uv.Next
			} else {
				prev.Next = uv.Next
			}
			return
		}
		prev = uv
		uv = uv.Next
	}
}

func (vm *VM) reportRuntimeError() {
	trace := make([]string, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		frame := &vm.frames[i]
		fn := frame.closure.Function
		line := 0
		if frame.ip-1 >= 0 && frame.ip-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[frame.ip-1]
		}
		name := fn.Name
		if name == "" {
			name = "<script>"
		}
		trace = append(trace, formatStackFrame(name, line))
	}
	vm.lastError = RuntimeError{Value: vm.errorValue, StackTrace: trace}

	fmt.Fprintln(errWriter{}, vm.lastError.Error())
	for _, line := range trace {
		fmt.Fprintln(errWriter{}, "  at "+line)
	}
}

func formatStackFrame(name string, line int) string {
	return name + ":" + formatNumber(float64(line))
}

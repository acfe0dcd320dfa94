package oba

// execJumpIfNotMatch implements a single `match` equation test. The
// stack, from the top down, holds the lambda for this equation, the
// pattern value compiled for it, and (below both) the scrutinee being
// matched. A pattern matches either by constructor identity (pattern
// is a Ctor, scrutinee is an Instance built from that same Ctor) or,
// for anything else, by structural equality against the scrutinee -
// this is what lets a bare variable or literal pattern act as an
// equality constant.
//
// On a match: the pattern is discarded, the scrutinee is discarded,
// and the lambda is left on top followed by the scrutinee's fields
// pushed in declaration order (none, for a non-Ctor pattern) so the
// next CALL invokes it with the destructured arguments.
//
// On a mismatch: the pattern and lambda are discarded and the ip jumps
// forward by the operand, leaving the scrutinee in place for the next
// equation's own test.
func (vm *VM) execJumpIfNotMatch(frame *callFrame) {
	offset := vm.readUint16(frame)

	lambda := vm.peek(0)
	pattern := vm.peek(1)
	scrutinee := vm.peek(2)

	matched := false
	var fields []Value
	if ctor, ok := pattern.AsObj().(*ObjCtor); pattern.IsObj() && ok {
		if inst, ok := scrutinee.AsObj().(*ObjInstance); scrutinee.IsObj() && ok && inst.Ctor == ctor {
			matched = true
			fields = inst.Fields
		}
	} else if ValuesEqual(pattern, scrutinee) {
		matched = true
	}

	vm.pop() // lambda
	vm.pop() // pattern
	if !matched {
		frame.ip += int(offset)
		return
	}
	vm.pop() // scrutinee
	vm.push(lambda)
	for _, f := range fields {
		vm.push(f)
	}
}

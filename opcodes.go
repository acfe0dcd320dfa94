package oba

// OpCode is a single bytecode instruction tag. Operand widths are
// fixed per opcode and documented alongside each constant; the
// compiler and VM agree on them out of band (there is no opcode
// table describing operand shapes at runtime, mirroring the
// reference VM's READ_BYTE/READ_SHORT macros).
type OpCode byte

const (
	// OpConstant pushes chunk.Constants[u8 index].
	OpConstant OpCode = iota
	// OpError sets the error value to constants[u8 index] and raises.
	OpError
	// OpAdd concatenates if both operands are strings, else adds
	// numbers.
	OpAdd
	OpMinus
	OpMultiply
	OpDivide
	// OpModulo truncates both operands to int and takes the
	// remainder. No surface syntax reaches this opcode (see
	// DESIGN.md); it exists for parity with the VM's opcode table.
	OpModulo
	OpNot
	OpGt
	OpLt
	OpGte
	OpLte
	OpEq
	OpNeq
	OpTrue
	OpFalse
	// OpJump: u16 relative forward offset, unconditional.
	OpJump
	// OpJumpIfFalse/OpJumpIfTrue: u16 relative offset; pops a bool.
	OpJumpIfFalse
	OpJumpIfTrue
	// OpJumpIfNotMatch: u16 relative offset. See vm_match.go.
	OpJumpIfNotMatch
	// OpLoop: u16 absolute offset within the current chunk (backward
	// edge).
	OpLoop
	// OpDefineGlobal/OpGetGlobal: u8 name-constant index.
	OpDefineGlobal
	OpGetGlobal
	// OpSetLocal/OpGetLocal: u8 stack-slot index (relative to the
	// current frame).
	OpSetLocal
	OpGetLocal
	// OpSetUpvalue/OpGetUpvalue: u8 upvalue index.
	OpSetUpvalue
	OpGetUpvalue
	// OpCloseUpvalue: u8 frame-relative slot index. If that slot has an
	// open upvalue, close it (copy its current value into the
	// upvalue's own cell, unlink from the open list) without otherwise
	// touching the stack. Unlike the reference VM's top-of-stack-only
	// CLOSE_UPVALUE, this implementation addresses the slot directly,
	// which is what lets a block used as an expression close upvalues
	// for locals that sit underneath its still-live result value (see
	// OpSlide).
	OpCloseUpvalue
	// OpSlide: u8 count. Let v be the current top-of-stack value;
	// discard the count stack slots immediately below it and leave v
	// as the new top, with stackTop reduced by count. This is how a
	// block expression's locals are torn down without disturbing the
	// value the block produced - an implementation detail with no
	// counterpart in the opcode table, needed because blocks are
	// expressions here, not bare statements.
	OpSlide
	// OpGetImportedVariable: u8 name-constant index; pops a module.
	OpGetImportedVariable
	OpString
	// OpCall: u8 argument count.
	OpCall
	// OpClosure: u8 function-constant index, then upvalueCount pairs
	// of (u8 isLocal, u8 slot).
	OpClosure
	OpReturn
	OpPop
	OpDebug
	// OpImportModule: u8 name-constant index.
	OpImportModule
	OpEndModule
	OpExit
)

var opCodeNames = map[OpCode]string{
	OpConstant:             "CONSTANT",
	OpError:                "ERROR",
	OpAdd:                  "ADD",
	OpMinus:                "MINUS",
	OpMultiply:             "MULTIPLY",
	OpDivide:               "DIVIDE",
	OpModulo:               "MODULO",
	OpNot:                  "NOT",
	OpGt:                   "GT",
	OpLt:                   "LT",
	OpGte:                  "GTE",
	OpLte:                  "LTE",
	OpEq:                   "EQ",
	OpNeq:                  "NEQ",
	OpTrue:                 "TRUE",
	OpFalse:                "FALSE",
	OpJump:                 "JUMP",
	OpJumpIfFalse:          "JUMP_IF_FALSE",
	OpJumpIfTrue:           "JUMP_IF_TRUE",
	OpJumpIfNotMatch:       "JUMP_IF_NOT_MATCH",
	OpLoop:                 "LOOP",
	OpDefineGlobal:         "DEFINE_GLOBAL",
	OpGetGlobal:            "GET_GLOBAL",
	OpSetLocal:             "SET_LOCAL",
	OpGetLocal:             "GET_LOCAL",
	OpSetUpvalue:           "SET_UPVALUE",
	OpGetUpvalue:           "GET_UPVALUE",
	OpCloseUpvalue:         "CLOSE_UPVALUE",
	OpSlide:                "SLIDE",
	OpGetImportedVariable:  "GET_IMPORTED_VARIABLE",
	OpString:               "STRING",
	OpCall:                 "CALL",
	OpClosure:              "CLOSURE",
	OpReturn:               "RETURN",
	OpPop:                  "POP",
	OpDebug:                "DEBUG",
	OpImportModule:         "IMPORT_MODULE",
	OpEndModule:            "END_MODULE",
	OpExit:                 "EXIT",
}

func (op OpCode) String() string {
	if name, ok := opCodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

package oba

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueType tags the scalar/heap variants of a Value.
type ValueType int

const (
	ValNil ValueType = iota
	ValBool
	ValNumber
	ValObj
)

// Value is the tagged sum every Oba runtime datum is represented with:
// nil, bool, number (float64) or a heap object. It is deliberately a
// plain struct rather than an interface so that nil/bool/number never
// allocate.
type Value struct {
	typ     ValueType
	boolean bool
	number  float64
	obj     Obj
}

func NilVal() Value              { return Value{typ: ValNil} }
func BoolVal(b bool) Value       { return Value{typ: ValBool, boolean: b} }
func NumberVal(n float64) Value  { return Value{typ: ValNumber, number: n} }
func ObjVal(o Obj) Value         { return Value{typ: ValObj, obj: o} }

func (v Value) IsNil() bool    { return v.typ == ValNil }
func (v Value) IsBool() bool   { return v.typ == ValBool }
func (v Value) IsNumber() bool { return v.typ == ValNumber }
func (v Value) IsObj() bool    { return v.typ == ValObj }

func (v Value) AsBool() bool     { return v.boolean }
func (v Value) AsNumber() float64 { return v.number }
func (v Value) AsObj() Obj       { return v.obj }

func (v Value) Type() ValueType { return v.typ }

// IsString reports whether v holds a *ObjString.
func (v Value) IsString() bool { _, ok := v.obj.(*ObjString); return v.typ == ValObj && ok }

// IsFunctionLike reports whether v is a Closure or a Native, the two
// callable shapes SET_LOCAL treats as mutually assignable (see
// canAssignType).
func (v Value) IsFunctionLike() bool {
	if v.typ != ValObj {
		return false
	}
	switch v.obj.(type) {
	case *ObjClosure, *ObjNative:
		return true
	default:
		return false
	}
}

// TypeName returns the user-facing type name used in runtime error
// messages (SET_LOCAL's "Cannot assign '<name>' to variable of type
// '<name>'").
func (v Value) TypeName() string {
	switch v.typ {
	case ValNil:
		return "nil"
	case ValBool:
		return "boolean"
	case ValNumber:
		return "number"
	case ValObj:
		switch v.obj.(type) {
		case *ObjString:
			return "string"
		case *ObjClosure, *ObjNative:
			return "function"
		case *ObjModule:
			return "module"
		case *ObjCtor:
			return "constructor"
		case *ObjInstance:
			return "instance"
		default:
			return "object"
		}
	}
	return "unknown"
}

// ValuesEqual implements structural equality: instances compare equal
// iff they share a Ctor identity and all fields are pairwise equal;
// everything else compares by value (strings compare by their interned
// identity, which is equivalent to byte-for-byte equality).
func ValuesEqual(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case ValNil:
		return true
	case ValBool:
		return a.boolean == b.boolean
	case ValNumber:
		return a.number == b.number
	case ValObj:
		return objEqual(a.obj, b.obj)
	}
	return false
}

func objEqual(a, b Obj) bool {
	if a == b {
		return true
	}
	as, aok := a.(*ObjString)
	bs, bok := b.(*ObjString)
	if aok && bok {
		// Strings are interned, so pointer equality above should
		// already have caught every real match; this is a defensive
		// fallback for strings built outside the interner.
		return as.Hash == bs.Hash && string(as.Bytes) == string(bs.Bytes)
	}
	ai, aok := a.(*ObjInstance)
	bi, bok := b.(*ObjInstance)
	if aok && bok {
		if ai.Ctor != bi.Ctor {
			return false
		}
		if len(ai.Fields) != len(bi.Fields) {
			return false
		}
		for i := range ai.Fields {
			if !ValuesEqual(ai.Fields[i], bi.Fields[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// FormatValue renders v the way the DEBUG opcode and the str() native
// do: numbers without a trailing ".0" when they're integral, strings
// unquoted, instances as "Ctor(f1, f2)" (a bare "Ctor" when it has no
// fields; the family name is not shown).
func FormatValue(v Value) string {
	switch v.typ {
	case ValNil:
		return "nil"
	case ValBool:
		if v.boolean {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.number)
	case ValObj:
		return formatObj(v.obj)
	}
	return "?"
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func formatObj(o Obj) string {
	switch obj := o.(type) {
	case *ObjString:
		return string(obj.Bytes)
	case *ObjFunction:
		if obj.Name == "" {
			return "<script>"
		}
		return fmt.Sprintf("<fn %s>", obj.Name)
	case *ObjClosure:
		return formatObj(obj.Function)
	case *ObjNative:
		return fmt.Sprintf("<native %s>", obj.Name)
	case *ObjUpvalue:
		return "<upvalue>"
	case *ObjModule:
		return fmt.Sprintf("<module %s>", string(obj.Name.Bytes))
	case *ObjCtor:
		return fmt.Sprintf("<ctor %s.%s/%d>", obj.Family, obj.Name, obj.Arity)
	case *ObjInstance:
		var sb strings.Builder
		sb.WriteString(obj.Ctor.Name)
		if len(obj.Fields) > 0 {
			sb.WriteByte('(')
			for i, f := range obj.Fields {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(FormatValue(f))
			}
			sb.WriteByte(')')
		}
		return sb.String()
	}
	return "<object>"
}

// ObjType enumerates the heap object variants.
type ObjType int

const (
	ObjTypeString ObjType = iota
	ObjTypeFunction
	ObjTypeClosure
	ObjTypeUpvalue
	ObjTypeNative
	ObjTypeModule
	ObjTypeCtor
	ObjTypeInstance
)

// header is embedded in every heap object. next links the object into
// the heap's allocation list (used only for sweeping); marked is the
// GC's per-object mark bit.
type header struct {
	typ    ObjType
	next   Obj
	marked bool
}

func (h *header) ObjType() ObjType { return h.typ }

// Obj is implemented by every heap object variant.
type Obj interface {
	ObjType() ObjType
	objHeader() *header
}

func (h *header) objHeader() *header { return h }

// ObjString is an interned, immutable byte string.
type ObjString struct {
	header
	Bytes []byte
	Hash  uint32
}

// fnvHash computes the FNV-1a hash spec.md requires strings to carry.
func fnvHash(b []byte) uint32 {
	const (
		offset = 2166136261
		prime  = 16777619
	)
	h := uint32(offset)
	for _, c := range b {
		h ^= uint32(c)
		h *= prime
	}
	return h
}

// ObjFunction is a compiled function body: its owning module, arity,
// upvalue count and chunk. Closures wrap a Function with the upvalues
// it actually captured at the call site that created them.
type ObjFunction struct {
	header
	Module       *ObjModule
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         string
}

// ObjClosure pairs a Function with the live Upvalue cells it captured.
type ObjClosure struct {
	header
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

// ObjUpvalue is either open (Location points into a live stack slot) or
// closed (Location points at Closed, a value the Upvalue itself owns).
// Open upvalues form a singly linked list, kept sorted by strictly
// descending stack address, so the VM can close every upvalue at or
// above a given floor in one pass.
type ObjUpvalue struct {
	header
	Location *Value
	Closed   Value
	Next     *ObjUpvalue

	// slot is the absolute stack index Location points into while the
	// upvalue is open; it's what lets the VM keep the open list sorted
	// by descending address without a linear scan over the stack.
	// Meaningless once the upvalue is closed.
	slot int
}

// NativeFn is a host-provided function. It receives the VM (to read
// arguments from the stack window, raise errors, or push temporary
// roots) and the argument slice; it returns the call's result, or
// NilVal() with vm.HasError() true on failure.
type NativeFn func(vm *VM, args []Value) Value

// ObjNative wraps a NativeFn with the name it was registered under.
type ObjNative struct {
	header
	Name string
	Fn   NativeFn
}

// ObjModule is a named compilation unit with its own top-level variable
// table. The root module the host's source compiles into is always
// named "main".
type ObjModule struct {
	header
	Name      *ObjString
	Variables *Table
}

// ObjCtor is a declared data-constructor: "data Option = None | Some
// value" declares two Ctors, family "Option", named "None" (arity 0)
// and "Some" (arity 1).
type ObjCtor struct {
	header
	Family string
	Name   string
	Arity  int
}

// ObjInstance is the runtime value produced by calling a Ctor. Fields
// always has length equal to Ctor.Arity.
type ObjInstance struct {
	header
	Ctor   *ObjCtor
	Fields []Value
}

// Each variant's ObjType/objHeader are provided by the embedded header;
// the Heap's NewXxx constructors (heap.go) are responsible for setting
// header.typ.

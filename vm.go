package oba

import (
	"fmt"
	"os"
)

const (
	framesMax = 256
	stackMax  = 256
)

// callFrame tracks one active call: the closure being executed, the
// instruction pointer into its chunk, and the base stack slot its
// locals start at.
type callFrame struct {
	closure *ObjClosure
	ip      int
	slots   int
}

// ModuleResolver looks up the source for a named module that isn't one
// of the bundled core modules (list, option, strings, system, time).
// Hosts that want file-based `import "./util"` resolution implement
// this; a nil resolver means only core modules can be imported.
type ModuleResolver interface {
	ResolveModule(name string) (source string, ok bool)
}

// VM is a single-threaded bytecode interpreter: a value stack, a
// bounded array of call frames, a singly linked open-upvalue list, a
// globals table and an intern table (owned by Heap), and an error
// slot that's nil when nothing has gone wrong.
type VM struct {
	heap *Heap

	stack      []Value
	stackTop   int
	frames     [framesMax]callFrame
	frameCount int

	openUpvalues *ObjUpvalue

	// globals is the VM-wide table only the privileged "globals"
	// module's __native_global native may write into; every other
	// module's DEFINE_GLOBAL only ever touches its own Module.Variables.
	globals *Table

	mainModule *ObjModule

	errorValue Value
	hasError   bool

	config   *Config
	resolver ModuleResolver

	// importing records which modules are currently mid-compile. A
	// module's own imports run only when its body executes, after its
	// compile has finished and its entry is cleared, so this does not
	// catch an import cycle: a cycle keeps re-importing until the frame
	// or value stack limit raises "Stack overflow.". There is no
	// companion cache of finished modules: a second `import "list"`
	// recompiles and re-executes the module body from scratch rather
	// than sharing state with the first import.
	importing map[string]bool

	stdout Stdout
	stdin  Stdin

	lastError RuntimeError
}

// Stdout is where DEBUG and the print natives write; Interpret callers
// inject a buffer in tests instead of the real os.Stdout.
type Stdout interface {
	WriteString(s string) (int, error)
}

// Stdin is where the read natives read from.
type Stdin interface {
	ReadByte() (byte, error)
	ReadString(delim byte) (string, error)
}

// NativeBinding names a host function the embedding contract installs
// into the VM's globals before compiling anything, e.g. {"str",
// toStringNative}. Unlike the reference VM's null-terminated Builtin
// array, a []NativeBinding has no sentinel: NewVM registers every
// entry in the slice.
type NativeBinding struct {
	Name string
	Fn   NativeFn
}

// NewVM creates a VM, registers natives, and prepares it to Interpret
// source. frameDepth() and similar natives can be called from the
// first instruction; no source has been compiled yet.
func NewVM(natives []NativeBinding, opts ...VMOption) *VM {
	vm := &VM{
		config: NewConfig(),
		stdout: stdWriter{},
	}
	vm.heap = NewHeap(vm)
	vm.globals = NewTable()
	vm.importing = make(map[string]bool)
	// Allocated at fixed capacity and never regrown: open upvalues hold
	// a *Value pointing directly into this backing array, which a
	// reallocating append would invalidate.
	vm.stack = make([]Value, stackMax)

	for _, opt := range opts {
		opt(vm)
	}
	vm.heap.SetStressGC(vm.config.GetBool("vm.stress_gc"))

	for _, nb := range natives {
		vm.defineNative(nb.Name, nb.Fn)
	}
	return vm
}

// VMOption configures a VM at construction time.
type VMOption func(*VM)

// WithStressGC forces a collection on every allocation growth.
func WithStressGC(stress bool) VMOption {
	return func(vm *VM) { vm.config.SetBool("vm.stress_gc", stress) }
}

// WithModuleResolver installs a resolver for imports that aren't one
// of the bundled core modules.
func WithModuleResolver(r ModuleResolver) VMOption {
	return func(vm *VM) { vm.resolver = r }
}

// WithStdout redirects DEBUG/print output away from os.Stdout.
func WithStdout(w Stdout) VMOption {
	return func(vm *VM) { vm.stdout = w }
}

// WithStdin redirects the read natives away from os.Stdin.
func WithStdin(r Stdin) VMOption {
	return func(vm *VM) { vm.stdin = r }
}

// Stdin returns the Stdin a host installed with WithStdin, or nil if none
// was - in which case the read natives fall back to their own os.Stdin
// reader.
func (vm *VM) Stdin() Stdin { return vm.stdin }

// Stdout returns the writer DEBUG and the print/println natives share -
// either a host's WithStdout or, by default, the real process stdout.
func (vm *VM) Stdout() Stdout { return vm.stdout }

func (vm *VM) defineNative(name string, fn NativeFn) {
	native := vm.heap.NewNative(name, fn)
	nameStr := vm.heap.InternString([]byte(name))
	vm.globals.Set(nameStr, ObjVal(native))
}

// SetGlobal writes into the VM-wide globals table directly, bypassing
// the module-scoped DEFINE_GLOBAL path. Only __native_global should
// call this - it's the one native allowed to mutate global state other
// modules' GET_GLOBAL falls back to.
func (vm *VM) SetGlobal(name *ObjString, v Value) {
	vm.globals.Set(name, v)
}

// Heap exposes the VM's allocator/collector, for natives that need to
// build strings or anchor temporary roots.
func (vm *VM) Heap() *Heap { return vm.heap }

// CollectGarbage triggers a collection on demand (embedding contract).
func (vm *VM) CollectGarbage() { vm.heap.CollectGarbage() }

// HasError reports whether a runtime error is pending.
func (vm *VM) HasError() bool { return vm.hasError }

// LastError returns the RuntimeError assembled once Interpret returns
// ResultRuntimeError.
func (vm *VM) LastError() RuntimeError { return vm.lastError }

// RuntimeErrorf sets the pending error from a formatted message. Used
// by natives and by the dispatch loop itself.
func (vm *VM) RuntimeErrorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if len(msg) >= maxErrorSize {
		msg = msg[:maxErrorSize-1]
	}
	vm.errorValue = ObjVal(vm.heap.InternString([]byte(msg)))
	vm.hasError = true
}

// ArityError raises "expected N arguments, got M".
func (vm *VM) ArityError(want, got int) {
	vm.RuntimeErrorf("Expected %d argument(s), got %d.", want, got)
}

// TypeError raises "expected a <name> value".
func (vm *VM) TypeError(expected string) {
	vm.RuntimeErrorf("Expected a %s value.", expected)
}

// Panic is what the `panic` native raises: v becomes the error value
// verbatim, which may be any Value, not just a string.
func (vm *VM) Panic(v Value) {
	vm.errorValue = v
	vm.hasError = true
}

// FrameDepth returns the number of active call frames, for
// __native_frame_depth.
func (vm *VM) FrameDepth() int { return vm.frameCount }

// CurrentModule returns the module owning the function that's calling
// into a native right now - natives run synchronously without pushing
// their own frame, so the top of the frame array is still the caller.
// __native_global uses this to confirm it's only ever invoked from the
// privileged "globals" module.
func (vm *VM) CurrentModule() *ObjModule {
	if vm.frameCount == 0 {
		return vm.mainModule
	}
	return vm.frames[vm.frameCount-1].closure.Function.Module
}

func (vm *VM) push(v Value) {
	if vm.stackTop == len(vm.stack) {
		vm.RuntimeErrorf("Stack overflow.")
		return
	}
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(lookback int) Value {
	return vm.stack[vm.stackTop-1-lookback]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// Interpret compiles and runs source as the root "main" module.
func (vm *VM) Interpret(source string) InterpretResult {
	name := vm.heap.InternString([]byte("main"))
	module := vm.heap.NewModule(name)
	vm.mainModule = module

	fn, errs := Compile(vm, module, source)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(errWriter{}, e.Error())
		}
		return ResultCompileError
	}

	vm.heap.PushTempRoot(ObjVal(fn))
	closure := vm.heap.NewClosure(fn)
	vm.heap.PopTempRoot()

	vm.push(ObjVal(closure))
	vm.callClosure(closure, 0)

	result := vm.run()
	return result
}

// run is the dispatch loop. It returns once an EXIT opcode is reached
// or a runtime error halts execution.
func (vm *VM) run() InterpretResult {
	for {
		if vm.hasError {
			vm.reportRuntimeError()
			vm.resetStack()
			return ResultRuntimeError
		}

		frame := &vm.frames[vm.frameCount-1]
		chunk := &frame.closure.Function.Chunk
		op := OpCode(chunk.Code[frame.ip])
		frame.ip++

		switch op {
		case OpConstant:
			idx := vm.readByte(frame)
			vm.push(chunk.Constants[idx])

		case OpError:
			idx := vm.readByte(frame)
			vm.errorValue = chunk.Constants[idx]
			vm.hasError = true

		case OpAdd:
			if err := vm.binaryAdd(); err != nil {
				continue
			}

		case OpMinus:
			vm.binaryNumeric(func(a, b float64) float64 { return a - b })
		case OpMultiply:
			vm.binaryNumeric(func(a, b float64) float64 { return a * b })
		case OpDivide:
			vm.binaryNumeric(func(a, b float64) float64 { return a / b })
		case OpModulo:
			vm.binaryNumeric(func(a, b float64) float64 { return float64(int64(a) % int64(b)) })

		case OpNot:
			v := vm.pop()
			if !v.IsBool() {
				vm.TypeError("boolean")
				continue
			}
			vm.push(BoolVal(!v.AsBool()))

		case OpGt:
			vm.binaryCompare(func(a, b float64) bool { return a > b })
		case OpLt:
			vm.binaryCompare(func(a, b float64) bool { return a < b })
		case OpGte:
			vm.binaryCompare(func(a, b float64) bool { return a >= b })
		case OpLte:
			vm.binaryCompare(func(a, b float64) bool { return a <= b })

		case OpEq:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(ValuesEqual(a, b)))
		case OpNeq:
			b := vm.pop()
			a := vm.pop()
			vm.push(BoolVal(!ValuesEqual(a, b)))

		case OpTrue:
			vm.push(BoolVal(true))
		case OpFalse:
			vm.push(BoolVal(false))

		case OpJump:
			offset := vm.readUint16(frame)
			frame.ip += int(offset)

		case OpJumpIfFalse:
			offset := vm.readUint16(frame)
			cond := vm.pop()
			if !cond.IsBool() {
				vm.TypeError("boolean")
				continue
			}
			if !cond.AsBool() {
				frame.ip += int(offset)
			}

		case OpJumpIfTrue:
			offset := vm.readUint16(frame)
			cond := vm.pop()
			if !cond.IsBool() {
				vm.TypeError("boolean")
				continue
			}
			if cond.AsBool() {
				frame.ip += int(offset)
			}

		case OpJumpIfNotMatch:
			vm.execJumpIfNotMatch(frame)

		case OpLoop:
			target := vm.readUint16(frame)
			frame.ip = int(target)

		case OpDefineGlobal:
			idx := vm.readByte(frame)
			name := chunk.Constants[idx].AsObj().(*ObjString)
			frame.closure.Function.Module.Variables.Set(name, vm.peek(0))
			vm.pop()

		case OpGetGlobal:
			idx := vm.readByte(frame)
			name := chunk.Constants[idx].AsObj().(*ObjString)
			if v, ok := frame.closure.Function.Module.Variables.Get(name); ok {
				vm.push(v)
			} else if v, ok := vm.globals.Get(name); ok {
				vm.push(v)
			} else {
				vm.RuntimeErrorf("Undefined variable: %s", string(name.Bytes))
			}

		case OpSetLocal:
			slot := int(vm.readByte(frame))
			old := vm.stack[frame.slots+slot]
			next := vm.peek(0)
			if !canAssignType(old, next) {
				vm.RuntimeErrorf("Cannot assign '%s' to variable of type '%s'", next.TypeName(), old.TypeName())
				continue
			}
			vm.stack[frame.slots+slot] = next

		case OpGetLocal:
			slot := int(vm.readByte(frame))
			vm.push(vm.stack[frame.slots+slot])

		case OpSetUpvalue:
			idx := vm.readByte(frame)
			*frame.closure.Upvalues[idx].Location = vm.peek(0)

		case OpGetUpvalue:
			idx := vm.readByte(frame)
			vm.push(*frame.closure.Upvalues[idx].Location)

		case OpCloseUpvalue:
			slot := int(vm.readByte(frame))
			vm.closeUpvalueAt(frame.slots + slot)

		case OpSlide:
			count := int(vm.readByte(frame))
			top := vm.pop()
			vm.stackTop -= count
			vm.push(top)

		case OpGetImportedVariable:
			idx := vm.readByte(frame)
			name := chunk.Constants[idx].AsObj().(*ObjString)
			receiver := vm.pop()
			module, ok := receiver.AsObj().(*ObjModule)
			if !receiver.IsObj() || !ok {
				vm.TypeError("module")
				continue
			}
			v, ok := module.Variables.Get(name)
			if !ok {
				vm.RuntimeErrorf("Variable '%s' not found in module '%s'", string(name.Bytes), string(module.Name.Bytes))
				continue
			}
			vm.push(v)

		case OpString:
			v := vm.pop()
			vm.push(ObjVal(vm.heap.InternString([]byte(FormatValue(v)))))

		case OpCall:
			argc := int(vm.readByte(frame))
			if !vm.callValue(vm.peek(argc), argc) {
				continue
			}

		case OpClosure:
			idx := vm.readByte(frame)
			fn := chunk.Constants[idx].AsObj().(*ObjFunction)
			closure := vm.heap.NewClosure(fn)
			vm.push(ObjVal(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(frame)
				slot := vm.readByte(frame)
				if isLocal != 0 {
					closure.Upvalues[i] = vm.captureUpvalue(frame.slots + int(slot))
				} else {
					closure.Upvalues[i] = frame.closure.Upvalues[slot]
				}
			}

		case OpReturn:
			vm.doReturn()

		case OpPop:
			vm.pop()

		case OpDebug:
			v := vm.pop()
			vm.stdout.WriteString(FormatValue(v))
			vm.stdout.WriteString("\n")

		case OpImportModule:
			idx := vm.readByte(frame)
			nameValue := chunk.Constants[idx]
			if !vm.execImportModule(nameValue) {
				continue
			}

		case OpEndModule:
			vm.push(ObjVal(frame.closure.Function.Module))
			vm.doReturn()

		case OpExit:
			// Tear down the script's own frame and closure slot so a
			// finished run leaves the stack empty.
			vm.closeUpvalues(frame.slots)
			vm.stackTop = frame.slots
			vm.frameCount--
			return ResultSuccess

		default:
			vm.RuntimeErrorf("Unknown opcode %d", byte(op))
		}
	}
}

func (vm *VM) readByte(frame *callFrame) byte {
	b := frame.closure.Function.Chunk.Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readUint16(frame *callFrame) uint16 {
	v := frame.closure.Function.Chunk.ReadUint16(frame.ip)
	frame.ip += 2
	return v
}

func (vm *VM) binaryAdd() error {
	b := vm.peek(0)
	a := vm.peek(1)
	if a.IsString() && b.IsString() {
		vm.pop()
		vm.pop()
		as := a.AsObj().(*ObjString)
		bs := b.AsObj().(*ObjString)
		concatenated := append(append([]byte(nil), as.Bytes...), bs.Bytes...)
		vm.push(ObjVal(vm.heap.InternString(concatenated)))
		return nil
	}
	if a.IsNumber() && b.IsNumber() {
		vm.pop()
		vm.pop()
		vm.push(NumberVal(a.AsNumber() + b.AsNumber()))
		return nil
	}
	vm.RuntimeErrorf("Operands to '+' must both be numbers or both be strings.")
	return errTypeMismatch
}

func (vm *VM) binaryNumeric(op func(a, b float64) float64) {
	b := vm.peek(0)
	a := vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		vm.TypeError("number")
		return
	}
	vm.pop()
	vm.pop()
	vm.push(NumberVal(op(a.AsNumber(), b.AsNumber())))
}

func (vm *VM) binaryCompare(op func(a, b float64) bool) {
	b := vm.peek(0)
	a := vm.peek(1)
	if !a.IsNumber() || !b.IsNumber() {
		vm.TypeError("number")
		return
	}
	vm.pop()
	vm.pop()
	vm.push(BoolVal(op(a.AsNumber(), b.AsNumber())))
}

// canAssignType implements SET_LOCAL's assignability check: the new
// value's type tag must match the old one, except that closures and
// natives are interchangeable (both are "function-shaped"). Whether
// this breadth of polymorphism is intentional or just looseness in the
// reference compiler is left open by spec.md; it's implemented as
// documented.
func canAssignType(old, next Value) bool {
	if old.IsFunctionLike() && next.IsFunctionLike() {
		return true
	}
	return old.Type() == next.Type()
}

type stdWriter struct{}

func (stdWriter) WriteString(s string) (int, error) {
	return fmt.Print(s)
}

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) {
	return os.Stderr.Write(p)
}

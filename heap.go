package oba

// gcHeapGrowFactor is the multiplier applied to bytesAllocated (at the
// moment a collection finishes) to compute the threshold for the next
// one.
const gcHeapGrowFactor = 2

// initialGCThreshold is the number of bytes the allocator lets through
// before it ever triggers a collection for the first time.
const initialGCThreshold = 1 << 20

// objSize is a rough per-object byte charge used to decide when to
// collect. Oba doesn't need byte-perfect accounting (unlike the C
// reference, Go's allocator already tracks real memory); this exists
// so DEBUG_STRESS_GC - collecting on every single allocation - and the
// normal grow-by-factor policy both have something to charge against.
func objSize(o Obj) int {
	switch v := o.(type) {
	case *ObjString:
		return 32 + len(v.Bytes)
	case *ObjFunction:
		return 64 + len(v.Chunk.Code) + len(v.Chunk.Constants)*16
	case *ObjClosure:
		return 32 + len(v.Upvalues)*8
	case *ObjUpvalue:
		return 32
	case *ObjNative:
		return 32
	case *ObjModule:
		return 32
	case *ObjCtor:
		return 32
	case *ObjInstance:
		return 32 + len(v.Fields)*16
	}
	return 16
}

// Heap is the VM's allocator and tracing mark-sweep collector. It owns
// every heap object via an intrusive linked list (Obj.next); the
// stack, tables, upvalues and constant pools that reference those
// objects are non-owning: the root set is what keeps them alive.
type Heap struct {
	vm *VM

	objects Obj
	strings map[string]*ObjString

	bytesAllocated int
	nextGC         int
	stressGC       bool

	// tempRoots anchors objects that are mid-construction - allocated
	// but not yet linked into any long-lived holder (a Module being
	// built still needs its name String and variables Table kept
	// alive across the allocations that produce them; a Closure needs
	// its Upvalue array kept alive while it's built one element at a
	// time; the compiler needs its in-progress Function kept alive
	// across every constant/chunk allocation during compilation).
	// Anything pushed here is a GC root until popped.
	tempRoots []Value
}

// NewHeap creates a Heap bound to vm. vm may still be mid-construction;
// Heap only dereferences it during collectGarbage, by which point the
// VM must be fully initialized.
func NewHeap(vm *VM) *Heap {
	return &Heap{
		vm:       vm,
		strings:  make(map[string]*ObjString),
		nextGC:   initialGCThreshold,
	}
}

// SetStressGC forces a collection on every allocation growth, used by
// tests (and the -stress-gc CLI flag) to check GC safety: a program
// that runs to completion under stress GC must produce identical
// output to a normal run.
func (h *Heap) SetStressGC(stress bool) { h.stressGC = stress }

func (h *Heap) link(o Obj) {
	hdr := o.objHeader()
	hdr.next = h.objects
	h.objects = o
}

func (h *Heap) charge(n int) {
	h.bytesAllocated += n
	if h.stressGC || h.bytesAllocated > h.nextGC {
		// Every caller links its new object just before charging for
		// it, so h.objects is that object; it isn't reachable from any
		// root yet and must not be swept by the collection it triggers.
		h.PushTempRoot(ObjVal(h.objects))
		h.collectGarbage()
		h.PopTempRoot()
	}
}

// PushTempRoot anchors v against collection until a matching
// PopTempRoot. See the Heap.tempRoots doc comment for when this is
// required.
func (h *Heap) PushTempRoot(v Value) {
	h.tempRoots = append(h.tempRoots, v)
}

// PopTempRoot releases the most recently pushed temporary root.
func (h *Heap) PopTempRoot() {
	h.tempRoots = h.tempRoots[:len(h.tempRoots)-1]
}

// InternString returns the canonical *ObjString for b, allocating a
// new one only the first time these bytes are seen. This is what
// guarantees the "exactly one String per byte sequence" invariant.
func (h *Heap) InternString(b []byte) *ObjString {
	if existing, ok := h.strings[string(b)]; ok {
		return existing
	}
	str := &ObjString{Bytes: append([]byte(nil), b...), Hash: fnvHash(b)}
	str.typ = ObjTypeString
	h.link(str)
	h.charge(objSize(str))
	h.strings[string(str.Bytes)] = str
	return str
}

// NewFunction allocates a Function for a freshly-compiled chunk.
func (h *Heap) NewFunction(module *ObjModule, name string, arity int) *ObjFunction {
	fn := &ObjFunction{Module: module, Name: name, Arity: arity}
	fn.typ = ObjTypeFunction
	h.link(fn)
	h.charge(objSize(fn))
	return fn
}

// NewClosure allocates a Closure over fn with upvalueCount empty
// upvalue slots. The CLOSURE opcode pushes it onto the stack (keeping
// it rooted while its upvalues are allocated) and fills every slot
// before executing any further instruction, so user code never sees a
// nil upvalue slot, per spec's Closure invariant.
func (h *Heap) NewClosure(fn *ObjFunction) *ObjClosure {
	h.PushTempRoot(ObjVal(fn))
	cl := &ObjClosure{Function: fn, Upvalues: make([]*ObjUpvalue, fn.UpvalueCount)}
	cl.typ = ObjTypeClosure
	h.link(cl)
	h.charge(objSize(cl))
	h.PopTempRoot()
	return cl
}

// NewUpvalue allocates an open Upvalue pointing at slot.
func (h *Heap) NewUpvalue(slot *Value) *ObjUpvalue {
	uv := &ObjUpvalue{Location: slot}
	uv.typ = ObjTypeUpvalue
	h.link(uv)
	h.charge(objSize(uv))
	return uv
}

// NewNative wraps fn as a callable native value.
func (h *Heap) NewNative(name string, fn NativeFn) *ObjNative {
	n := &ObjNative{Name: name, Fn: fn}
	n.typ = ObjTypeNative
	h.link(n)
	h.charge(objSize(n))
	return n
}

// NewModule allocates a Module named name with a fresh, empty
// variables table.
func (h *Heap) NewModule(name *ObjString) *ObjModule {
	h.PushTempRoot(ObjVal(name))
	m := &ObjModule{Name: name, Variables: NewTable()}
	m.typ = ObjTypeModule
	h.link(m)
	h.charge(objSize(m))
	h.PopTempRoot()
	return m
}

// NewCtor allocates a data-constructor descriptor.
func (h *Heap) NewCtor(family, name string, arity int) *ObjCtor {
	c := &ObjCtor{Family: family, Name: name, Arity: arity}
	c.typ = ObjTypeCtor
	h.link(c)
	h.charge(objSize(c))
	return c
}

// NewInstance allocates an Instance of ctor with fields already fully
// populated (fields must have length ctor.Arity - the caller builds
// them before calling NewInstance so the object is never visible to
// user code half-initialized).
func (h *Heap) NewInstance(ctor *ObjCtor, fields []Value) *ObjInstance {
	inst := &ObjInstance{Ctor: ctor, Fields: fields}
	inst.typ = ObjTypeInstance
	h.link(inst)
	h.charge(objSize(inst))
	return inst
}

// CollectGarbage runs a collection unconditionally (the embedding
// contract's "trigger GC on demand").
func (h *Heap) CollectGarbage() { h.collectGarbage() }

func (h *Heap) collectGarbage() {
	gray := h.markRoots()
	for len(gray) > 0 {
		obj := gray[len(gray)-1]
		gray = gray[:len(gray)-1]
		gray = h.blacken(obj, gray)
	}
	h.sweep()
	h.nextGC = h.bytesAllocated * gcHeapGrowFactor
}

func (h *Heap) markRoots() []Obj {
	var gray []Obj
	mark := func(v Value) {
		if v.IsObj() && v.AsObj() != nil {
			gray = h.markObject(v.AsObj(), gray)
		}
	}

	if h.vm != nil {
		for i := 0; i < h.vm.stackTop; i++ {
			mark(h.vm.stack[i])
		}
		for i := 0; i < h.vm.frameCount; i++ {
			if h.vm.frames[i].closure != nil {
				gray = h.markObject(h.vm.frames[i].closure, gray)
			}
		}
		for uv := h.vm.openUpvalues; uv != nil; uv = uv.Next {
			gray = h.markObject(uv, gray)
		}
		h.vm.globals.Each(func(k *ObjString, v Value) {
			gray = h.markObject(k, gray)
			mark(v)
		})
		if h.vm.mainModule != nil {
			gray = h.markObject(h.vm.mainModule, gray)
		}
	}

	for _, v := range h.tempRoots {
		mark(v)
	}

	return gray
}

func (h *Heap) markObject(o Obj, gray []Obj) []Obj {
	if o == nil {
		return gray
	}
	hdr := o.objHeader()
	if hdr.marked {
		return gray
	}
	hdr.marked = true
	return append(gray, o)
}

func (h *Heap) blacken(o Obj, gray []Obj) []Obj {
	mark := func(v Value) {
		if v.IsObj() {
			gray = h.markObject(v.AsObj(), gray)
		}
	}
	switch obj := o.(type) {
	case *ObjString:
		// No children.
	case *ObjFunction:
		if obj.Module != nil {
			gray = h.markObject(obj.Module, gray)
		}
		for _, c := range obj.Chunk.Constants {
			mark(c)
		}
	case *ObjClosure:
		gray = h.markObject(obj.Function, gray)
		for _, uv := range obj.Upvalues {
			if uv != nil {
				gray = h.markObject(uv, gray)
			}
		}
	case *ObjUpvalue:
		if obj.Location != nil {
			mark(*obj.Location)
		}
		mark(obj.Closed)
	case *ObjNative:
		// No children.
	case *ObjModule:
		gray = h.markObject(obj.Name, gray)
		obj.Variables.Each(func(k *ObjString, v Value) {
			gray = h.markObject(k, gray)
			mark(v)
		})
	case *ObjCtor:
		// No children.
	case *ObjInstance:
		gray = h.markObject(obj.Ctor, gray)
		for _, f := range obj.Fields {
			mark(f)
		}
	}
	return gray
}

func (h *Heap) sweep() {
	var prev Obj
	obj := h.objects
	for obj != nil {
		hdr := obj.objHeader()
		if hdr.marked {
			hdr.marked = false
			prev = obj
			obj = hdr.next
			continue
		}

		unreached := obj
		obj = hdr.next
		if prev != nil {
			prev.objHeader().next = obj
		} else {
			h.objects = obj
		}

		if s, ok := unreached.(*ObjString); ok {
			if h.strings[string(s.Bytes)] == s {
				delete(h.strings, string(s.Bytes))
			}
		}
		h.bytesAllocated -= objSize(unreached)
	}
}

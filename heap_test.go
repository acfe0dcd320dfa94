package oba

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHeap_CollectGarbageSweepsUnreachedInternedStrings checks the
// allocator side of string interning in isolation from a running VM: a
// Heap with no vm (so markRoots contributes nothing from a stack/frame
// set) and nothing holding a temp root must sweep every object a
// collection finds unmarked, including entries in its own intern table.
func TestHeap_CollectGarbageSweepsUnreachedInternedStrings(t *testing.T) {
	h := NewHeap(nil)
	first := h.InternString([]byte("reused"))
	h.CollectGarbage()

	second := h.InternString([]byte("reused"))
	assert.NotSame(t, first, second, "the first string was swept as unreached, so interning it again must allocate fresh")
}

// TestHeap_TempRootSurvivesCollection is the complementary case: a value
// explicitly pushed as a temp root is not swept, and popping it makes it
// collectible again.
func TestHeap_TempRootSurvivesCollection(t *testing.T) {
	h := NewHeap(nil)
	s := h.InternString([]byte("anchored"))
	h.PushTempRoot(ObjVal(s))
	h.CollectGarbage()

	stillThere := h.InternString([]byte("anchored"))
	assert.Same(t, s, stillThere, "a pushed temp root must survive the collection")

	h.PopTempRoot()
	h.CollectGarbage()
	afterPop := h.InternString([]byte("anchored"))
	assert.NotSame(t, s, afterPop, "once popped, the string is no longer rooted and must be swept")
}

// TestHeap_NewClosureKeepsFunctionAliveDuringConstruction exercises the
// PushTempRoot/PopTempRoot pair inside NewClosure itself: collecting
// mid-construction (simulated here by forcing stress GC right before the
// call) must not sweep the Function out from under the Closure being
// built.
func TestHeap_NewClosureKeepsFunctionAliveDuringConstruction(t *testing.T) {
	h := NewHeap(nil)
	h.SetStressGC(true)

	module := h.NewModule(h.InternString([]byte("main")))
	fn := h.NewFunction(module, "f", 0)
	fn.UpvalueCount = 2

	cl := h.NewClosure(fn)
	require.NotNil(t, cl)
	assert.Same(t, fn, cl.Function)
	assert.Len(t, cl.Upvalues, 2)
}

// TestHeap_UpvalueIdentity checks the invariant the VM's captureUpvalue
// relies on: allocating two distinct Upvalues over two distinct slots
// gives two distinct objects, never aliased.
func TestHeap_UpvalueIdentity(t *testing.T) {
	h := NewHeap(nil)
	a := NumberVal(1)
	b := NumberVal(2)
	uvA := h.NewUpvalue(&a)
	uvB := h.NewUpvalue(&b)
	assert.NotSame(t, uvA, uvB)
	assert.Equal(t, 1.0, uvA.Location.AsNumber())
	assert.Equal(t, 2.0, uvB.Location.AsNumber())
}

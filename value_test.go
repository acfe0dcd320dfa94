package oba

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue_ScalarConstructorsAndPredicates(t *testing.T) {
	assert.True(t, NilVal().IsNil())
	assert.True(t, BoolVal(true).IsBool())
	assert.True(t, BoolVal(true).AsBool())
	assert.True(t, NumberVal(3).IsNumber())
	assert.Equal(t, 3.0, NumberVal(3).AsNumber())
}

func TestValue_FormatNumberDropsTrailingZero(t *testing.T) {
	assert.Equal(t, "3", FormatValue(NumberVal(3)))
	assert.Equal(t, "3.5", FormatValue(NumberVal(3.5)))
	assert.Equal(t, "-2", FormatValue(NumberVal(-2)))
}

func TestValue_FormatBoolAndNil(t *testing.T) {
	assert.Equal(t, "true", FormatValue(BoolVal(true)))
	assert.Equal(t, "false", FormatValue(BoolVal(false)))
	assert.Equal(t, "nil", FormatValue(NilVal()))
}

func TestValue_StringInterningGivesIdenticalPointers(t *testing.T) {
	h := NewHeap(nil)
	a := h.InternString([]byte("hello"))
	b := h.InternString([]byte("hello"))
	assert.Same(t, a, b, "two InternString calls over equal bytes must return the same object")

	c := h.InternString([]byte("world"))
	assert.NotSame(t, a, c)
}

func TestValue_ValuesEqual_ScalarsAndStrings(t *testing.T) {
	h := NewHeap(nil)
	s1 := ObjVal(h.InternString([]byte("x")))
	s2 := ObjVal(h.InternString([]byte("x")))
	s3 := ObjVal(h.InternString([]byte("y")))

	assert.True(t, ValuesEqual(NumberVal(1), NumberVal(1)))
	assert.False(t, ValuesEqual(NumberVal(1), NumberVal(2)))
	assert.True(t, ValuesEqual(s1, s2))
	assert.False(t, ValuesEqual(s1, s3))
	assert.False(t, ValuesEqual(NumberVal(1), BoolVal(true)), "different ValueTypes are never equal")
}

func TestValue_ValuesEqual_InstancesCompareStructurally(t *testing.T) {
	h := NewHeap(nil)
	some := h.NewCtor("Option", "Some", 1)
	none := h.NewCtor("Option", "None", 0)

	a := ObjVal(h.NewInstance(some, []Value{NumberVal(1)}))
	b := ObjVal(h.NewInstance(some, []Value{NumberVal(1)}))
	c := ObjVal(h.NewInstance(some, []Value{NumberVal(2)}))
	d := ObjVal(h.NewInstance(none, nil))

	assert.True(t, ValuesEqual(a, b), "same Ctor identity and equal fields")
	assert.False(t, ValuesEqual(a, c), "differing field")
	assert.False(t, ValuesEqual(a, d), "differing Ctor")
}

func TestValue_TypeName(t *testing.T) {
	h := NewHeap(nil)
	assert.Equal(t, "nil", NilVal().TypeName())
	assert.Equal(t, "boolean", BoolVal(false).TypeName())
	assert.Equal(t, "number", NumberVal(1).TypeName())
	assert.Equal(t, "string", ObjVal(h.InternString([]byte("s"))).TypeName())
}

func TestValue_FormatInstanceIncludesFields(t *testing.T) {
	h := NewHeap(nil)
	some := h.NewCtor("Option", "Some", 1)
	inst := h.NewInstance(some, []Value{NumberVal(42)})
	assert.Equal(t, "Some(42)", FormatValue(ObjVal(inst)))

	none := h.NewCtor("Option", "None", 0)
	assert.Equal(t, "None", FormatValue(ObjVal(h.NewInstance(none, nil))))
}

package oba

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func internedTestString(t *testing.T, h *Heap, s string) *ObjString {
	t.Helper()
	return h.InternString([]byte(s))
}

func TestTable_SetGet(t *testing.T) {
	h := NewHeap(nil)
	tbl := NewTable()

	foo := internedTestString(t, h, "foo")
	bar := internedTestString(t, h, "bar")

	assert.True(t, tbl.Set(foo, NumberVal(1)))
	assert.True(t, tbl.Set(bar, NumberVal(2)))
	assert.False(t, tbl.Set(foo, NumberVal(3)), "re-setting an existing key is not a new key")

	v, ok := tbl.Get(foo)
	require.True(t, ok)
	assert.Equal(t, 3.0, v.AsNumber())

	v, ok = tbl.Get(bar)
	require.True(t, ok)
	assert.Equal(t, 2.0, v.AsNumber())

	_, ok = tbl.Get(internedTestString(t, h, "missing"))
	assert.False(t, ok)
}

func TestTable_DeleteLeavesTombstoneButGetStillFindsLaterKeys(t *testing.T) {
	h := NewHeap(nil)
	tbl := NewTable()

	a := internedTestString(t, h, "a")
	b := internedTestString(t, h, "b")
	tbl.Set(a, NumberVal(1))
	tbl.Set(b, NumberVal(2))

	require.True(t, tbl.Delete(a))
	assert.False(t, tbl.Delete(a), "deleting twice is a no-op")

	_, ok := tbl.Get(a)
	assert.False(t, ok)

	v, ok := tbl.Get(b)
	require.True(t, ok, "tombstone left by deleting a must not break the probe chain to b")
	assert.Equal(t, 2.0, v.AsNumber())
}

func TestTable_GrowsAndKeepsAllEntries(t *testing.T) {
	h := NewHeap(nil)
	tbl := NewTable()

	const n = 200
	keys := make([]*ObjString, n)
	for i := 0; i < n; i++ {
		keys[i] = internedTestString(t, h, string(rune('a'))+string(rune(i)))
		tbl.Set(keys[i], NumberVal(float64(i)))
	}

	for i := 0; i < n; i++ {
		v, ok := tbl.Get(keys[i])
		require.True(t, ok)
		assert.Equal(t, float64(i), v.AsNumber())
	}
	assert.Equal(t, n, tbl.Count())
}

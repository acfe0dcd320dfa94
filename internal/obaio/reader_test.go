package obaio

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader_ReadByteReturnsBytesInOrder(t *testing.T) {
	r := NewReader(strings.NewReader("ab"))

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('a'), b)

	b, err = r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte('b'), b)

	_, err = r.ReadByte()
	assert.Equal(t, io.EOF, err)
}

func TestReader_ReadStringIncludesTheDelimiter(t *testing.T) {
	r := NewReader(strings.NewReader("line one\nline two"))

	s, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "line one\n", s)

	s, err = r.ReadString('\n')
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "line two", s, "whatever was read before EOF is still returned alongside the error")
}

func TestReader_ReadStringOnEmptyInputReturnsEOFImmediately(t *testing.T) {
	r := NewReader(strings.NewReader(""))
	s, err := r.ReadString('\n')
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "", s)
}

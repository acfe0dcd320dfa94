package oba

import "encoding/binary"

// maxConstants is the number of entries a Chunk's constant pool can
// hold before AddConstant starts returning -1: constants are addressed
// by a single byte operand. See spec's Open Questions - a real
// implementation would widen this with a second opcode for functions
// that need more than 256 constants; oba does not.
const maxConstants = 256

// Chunk is one function's compiled bytecode: the opcode stream, a
// parallel per-byte source line map (used for stack traces), and the
// constant pool CONSTANT/ERROR/CLOSURE opcodes index into.
type Chunk struct {
	Code      []byte
	Lines     []int
	Constants []Value
}

// Write appends a single bytecode byte, recording the source line it
// came from.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteUint16 appends a big-endian u16 operand (used by JUMP/LOOP/
// JUMP_IF_* offsets).
func (c *Chunk) WriteUint16(v uint16, line int) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	c.Write(buf[0], line)
	c.Write(buf[1], line)
}

// ReadUint16 decodes the big-endian u16 operand starting at ip.
func (c *Chunk) ReadUint16(ip int) uint16 {
	return binary.BigEndian.Uint16(c.Code[ip : ip+2])
}

// PatchUint16 overwrites the u16 operand at ip; used to back-patch
// forward jumps once their target is known.
func (c *Chunk) PatchUint16(ip int, v uint16) {
	binary.BigEndian.PutUint16(c.Code[ip:ip+2], v)
}

// AddConstant appends v to the constant pool (without reusing an
// existing equal entry) and returns its index, or -1 if the pool is
// already full.
func (c *Chunk) AddConstant(v Value) int {
	if len(c.Constants) >= maxConstants {
		return -1
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

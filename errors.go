package oba

import "fmt"

// CompileError is a lex or parse/compile error collected while
// compiling a module. Compilation keeps going after one (to surface
// as many as possible in a single pass), but the resulting Function is
// discarded if any were recorded.
type CompileError struct {
	Module  string
	Line    int
	Message string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Module, e.Line, e.Message)
}

// RuntimeError is raised by the VM's dispatch loop once it halts: it
// carries the Oba value the error slot held (usually a string, but a
// user panic(v) may raise any Value) along with the call stack at the
// point of failure.
type RuntimeError struct {
	Value     Value
	StackTrace []string
}

func (e RuntimeError) Error() string {
	return FormatValue(e.Value)
}

// InterpretResult is the three-way outcome of Interpret, matching the
// embedding contract in spec.md §6.
type InterpretResult int

const (
	ResultSuccess InterpretResult = iota
	ResultCompileError
	ResultRuntimeError
)

package oba

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compileMain(t *testing.T, source string) (*ObjFunction, []CompileError) {
	t.Helper()
	vm := NewVM(nil)
	name := vm.heap.InternString([]byte("main"))
	module := vm.heap.NewModule(name)
	return Compile(vm, module, source)
}

func TestCompiler_RedeclaringALocalInTheSameScopeIsAnError(t *testing.T) {
	_, errs := compileMain(t, "fn f {\n  let x = 1\n  let x = 2\n  x\n}\n")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "already declared")
}

func TestCompiler_ShadowingInANestedScopeIsAllowed(t *testing.T) {
	_, errs := compileMain(t, "fn f {\n  let x = 1\n  { let x = 2\n    x\n  }\n}\n")
	assert.Empty(t, errs)
}

func TestCompiler_ReassigningAnUndeclaredGlobalIsAnError(t *testing.T) {
	_, errs := compileMain(t, "x = 1\n")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Cannot reassign")
}

func TestCompiler_AssigningToAConstructorNameIsAnError(t *testing.T) {
	_, errs := compileMain(t, "data Option = None\nNone = 1\n")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "Cannot assign to a constructor")
}

func TestCompiler_WrongPatternArityIsAnError(t *testing.T) {
	_, errs := compileMain(t, "data Pair = Pair a b\nfn f p = match p | Pair x = x ;\n")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs[0].Message, "expects 2 argument")
}

func TestCompiler_UndeclaredVariableCompilesToAGlobalLookup(t *testing.T) {
	// Resolution of a name that isn't a known local/upvalue falls
	// through to GET_GLOBAL optimistically; whether it's actually
	// defined is only checked at runtime, so this must compile clean.
	_, errs := compileMain(t, "debug doesNotExist\n")
	assert.Empty(t, errs)
}

func TestCompiler_CompileErrorsAreCollectedNotAborted(t *testing.T) {
	_, errs := compileMain(t, "x = 1\ny = 2\n")
	assert.Len(t, errs, 2, "both undeclared-global reassignments should be reported in one pass")
}

package oba

import (
	"strings"
	"testing"

	"github.com/oba-lang/oba/internal/natives"
	"github.com/oba-lang/oba/internal/obaio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout is the Stdout a test installs with WithStdout to check
// what DEBUG and the print natives wrote without touching the real
// process stdout.
type captureStdout struct {
	sb strings.Builder
}

func (c *captureStdout) WriteString(s string) (int, error) { return c.sb.WriteString(s) }

func runSource(t *testing.T, source string, opts ...VMOption) (string, *VM, InterpretResult) {
	t.Helper()
	out := &captureStdout{}
	allOpts := append([]VMOption{WithStdout(out)}, opts...)
	vm := NewVM(natives.Bindings(), allOpts...)
	result := vm.Interpret(source)
	return out.sb.String(), vm, result
}

func TestVM_Arithmetic(t *testing.T) {
	out, _, result := runSource(t, "let x = 1 + 2 * 3\ndebug x\n")
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "7\n", out)
}

func TestVM_FunctionCallAndArithmetic(t *testing.T) {
	out, _, result := runSource(t, "fn add a b = a + b\ndebug add(2, 3)\n")
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "5\n", out)
}

func TestVM_PatternMatchOverDataType(t *testing.T) {
	src := `data Option = None | Some value
fn m o = match o | None = 0 | Some x = x ;
debug m(Some(42))
debug m(None())
`
	out, _, result := runSource(t, src)
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "42\n0\n", out)
}

func TestVM_ModuleImportAndQualifiedAccess(t *testing.T) {
	src := `import "list"
let xs = list::Cons(1, list::Cons(2, list::Cons(3, list::Empty())))
debug list::length(xs)
`
	out, _, result := runSource(t, src)
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "3\n", out)
}

func TestVM_StringInterpolation(t *testing.T) {
	src := "let name = \"world\"\ndebug \"hello %(name)!\"\n"
	out, _, result := runSource(t, src)
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "hello world!\n", out)
}

func TestVM_RecursiveIfExpression(t *testing.T) {
	src := "fn f n = if n == 0 0 else n + f(n - 1)\ndebug f(5)\n"
	out, _, result := runSource(t, src)
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "15\n", out, "if must preserve both branches' values for this to fold to 5+4+3+2+1+0")
}

func TestVM_WhileLoop(t *testing.T) {
	src := `fn sumTo n {
  let total = 0
  let i = 0
  while i < n {
    total = total + i
    i = i + 1
  }
  total
}
debug sumTo(5)
`
	out, _, result := runSource(t, src)
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "10\n", out)
}

// TestVM_WhileLoopDoesNotLeakTheConditionOntoTheStack runs a loop well
// past the value stack's capacity in iteration count: if
// JUMP_IF_FALSE left its condition behind on every pass, this would
// raise "Stack overflow." instead of returning 300.
func TestVM_WhileLoopDoesNotLeakTheConditionOntoTheStack(t *testing.T) {
	src := `fn c n {
  let i = 0
  while i < n {
    i = i + 1
  }
  i
}
debug c(300)
`
	out, _, result := runSource(t, src)
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "300\n", out)
}

// TestVM_ClosureUpvalueSharing checks that two closures created inside
// the same call, both capturing the same local, observe each other's
// mutations through it - this only holds if captureUpvalue reuses a
// single open cell rather than handing out a fresh copy per closure.
func TestVM_ClosureUpvalueSharing(t *testing.T) {
	src := `data Pair = Pair a b
fn counter {
  let n = 0
  fn inc { n = n + 1 }
  fn get = n
  Pair(inc, get)
}
fn run {
  match counter() | Pair inc get =
    {
      inc()
      inc()
      get()
    }
  ;
}
debug run()
`
	out, _, result := runSource(t, src)
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "2\n", out)
}

func TestVM_CompileErrorIsReported(t *testing.T) {
	_, _, result := runSource(t, "let x = \n")
	assert.Equal(t, ResultCompileError, result)
}

// TestVM_ScopeExitMakesLocalUnreachable checks that a local declared
// inside a block is gone once the block ends: referencing it
// afterward falls through to a GET_GLOBAL lookup that finds nothing.
func TestVM_ScopeExitMakesLocalUnreachable(t *testing.T) {
	src := "{\n  let x = 1\n}\ndebug x\n"
	_, vm, result := runSource(t, src)
	require.Equal(t, ResultRuntimeError, result)
	assert.Contains(t, vm.LastError().Error(), "Undefined variable")
}

// TestVM_StackIsBalancedAfterSuccess checks that a successful run
// leaves nothing behind on the value stack: every pushed intermediate
// was consumed by the opcode that needed it.
func TestVM_StackIsBalancedAfterSuccess(t *testing.T) {
	_, vm, result := runSource(t, "fn add a b = a + b\ndebug add(2, 3)\n")
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, 0, vm.stackTop)
	assert.Equal(t, 0, vm.frameCount)
}

// TestVM_StressGCMatchesNormalRun is the GC-safety property: a program
// that allocates heavily (recursive string-building here) must produce
// identical output whether or not every allocation triggers a
// collection.
func TestVM_StressGCMatchesNormalRun(t *testing.T) {
	src := `fn build n = if n == 0 "" else "%(n)-%(build(n - 1))"
debug build(30)
`
	normalOut, _, normalResult := runSource(t, src)
	stressOut, _, stressResult := runSource(t, src, WithStressGC(true))

	require.Equal(t, ResultSuccess, normalResult)
	require.Equal(t, ResultSuccess, stressResult)
	assert.Equal(t, normalOut, stressOut)
}

// TestVM_CaptureUpvalueReusesOpenCell is the white-box counterpart of
// TestVM_ClosureUpvalueSharing: two captures of the same absolute slot
// while it's still open must return the identical *ObjUpvalue.
func TestVM_CaptureUpvalueReusesOpenCell(t *testing.T) {
	vm := NewVM(nil)
	vm.stack[0] = NumberVal(1)
	vm.stack[1] = NumberVal(2)
	vm.stackTop = 2

	a := vm.captureUpvalue(0)
	b := vm.captureUpvalue(0)
	c := vm.captureUpvalue(1)

	assert.Same(t, a, b, "capturing the same slot twice must share one cell")
	assert.NotSame(t, a, c, "capturing a different slot must not alias")
}

// TestVM_StdinRedirection confirms a host-installed Stdin is what the
// read natives consult, not the process's own os.Stdin.
func TestVM_StdinRedirection(t *testing.T) {
	in := obaio.NewReader(strings.NewReader("hello\n"))
	out, _, result := runSource(t, "debug __native_read_line()\n", WithStdin(in))
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "hello\n", out)
}

func TestVM_DivisionAndUnaryMinus(t *testing.T) {
	out, _, result := runSource(t, "debug 7 / 2\ndebug -3\n")
	require.Equal(t, ResultSuccess, result)
	assert.Equal(t, "3.5\n-3\n", out)
}

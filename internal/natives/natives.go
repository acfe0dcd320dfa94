// Package natives implements the baseline host functions every VM
// registers before compiling anything: I/O, timing, stringification,
// and the two escape hatches (panic, the privileged globals setter)
// that can't be expressed in Oba itself.
package natives

import (
	"os"
	"strings"
	"time"

	oba "github.com/oba-lang/oba"
	"github.com/oba-lang/oba/internal/obaio"
)

// startTime anchors __native_now's "seconds since process start"
// reading. It's a package-level var rather than something read inside
// the native itself purely so a future test harness could override it;
// nothing in this package currently does.
var startTime = time.Now()

// Bindings returns the baseline NativeBinding table, ready to pass to
// oba.NewVM. Unless a host installed oba.WithStdin, stdin is read
// through one unbuffered obaio.Reader, created lazily and shared by
// __native_read_byte and __native_read_line.
func Bindings() []oba.NativeBinding {
	return []oba.NativeBinding{
		{Name: "__native_sleep", Fn: nativeSleep},
		{Name: "__native_now", Fn: nativeNow},
		{Name: "__native_read_byte", Fn: nativeReadByte},
		{Name: "__native_read_line", Fn: nativeReadLine},
		{Name: "__native_print", Fn: nativePrint},
		{Name: "__native_println", Fn: nativePrintln},
		{Name: "__native_global", Fn: nativeGlobal},
		{Name: "__native_is_nil", Fn: nativeIsNil},
		{Name: "__native_frame_depth", Fn: nativeFrameDepth},
		{Name: "str", Fn: nativeStr},
		{Name: "__native_string_trim", Fn: nativeStringTrim},
		{Name: "panic", Fn: nativePanic},
	}
}

func nativeSleep(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 1 || !args[0].IsNumber() {
		vm.ArityError(1, len(args))
		return oba.NilVal()
	}
	time.Sleep(time.Duration(args[0].AsNumber() * float64(time.Second)))
	return oba.NumberVal(0)
}

func nativeNow(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 0 {
		vm.ArityError(0, len(args))
		return oba.NilVal()
	}
	return oba.NumberVal(time.Since(startTime).Seconds())
}

func nativeReadByte(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 0 {
		vm.ArityError(0, len(args))
		return oba.NilVal()
	}
	b, err := stdinSource(vm).ReadByte()
	if err != nil {
		return oba.NilVal()
	}
	return oba.ObjVal(vm.Heap().InternString([]byte{b}))
}

func nativeReadLine(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 0 {
		vm.ArityError(0, len(args))
		return oba.NilVal()
	}
	line, err := stdinSource(vm).ReadString('\n')
	if err != nil && line == "" {
		return oba.NilVal()
	}
	return oba.ObjVal(vm.Heap().InternString([]byte(trimNewline(line))))
}

func nativePrint(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 1 {
		vm.ArityError(1, len(args))
		return oba.NilVal()
	}
	vm.Stdout().WriteString(oba.FormatValue(args[0]))
	return oba.NilVal()
}

func nativePrintln(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 1 {
		vm.ArityError(1, len(args))
		return oba.NilVal()
	}
	vm.Stdout().WriteString(oba.FormatValue(args[0]))
	vm.Stdout().WriteString("\n")
	return oba.NilVal()
}

// nativeGlobal backs the "globals" core module's privileged setter: it
// writes directly into the VM-wide globals table rather than the
// calling module's own, and refuses to do so from anywhere else.
func nativeGlobal(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 2 || !args[0].IsString() {
		vm.ArityError(2, len(args))
		return oba.NilVal()
	}
	if vm.CurrentModule() == nil || string(vm.CurrentModule().Name.Bytes) != "globals" {
		vm.RuntimeErrorf("__native_global can only be called from the privileged globals module.")
		return oba.NilVal()
	}
	vm.SetGlobal(args[0].AsObj().(*oba.ObjString), args[1])
	return oba.NilVal()
}

func nativeIsNil(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 1 {
		vm.ArityError(1, len(args))
		return oba.NilVal()
	}
	return oba.BoolVal(args[0].IsNil())
}

func nativeFrameDepth(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 0 {
		vm.ArityError(0, len(args))
		return oba.NilVal()
	}
	return oba.NumberVal(float64(vm.FrameDepth()))
}

func nativeStr(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 1 {
		vm.ArityError(1, len(args))
		return oba.NilVal()
	}
	return oba.ObjVal(vm.Heap().InternString([]byte(oba.FormatValue(args[0]))))
}

func nativeStringTrim(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) != 1 || !args[0].IsString() {
		vm.TypeError("string")
		return oba.NilVal()
	}
	s := string(args[0].AsObj().(*oba.ObjString).Bytes)
	trimmed := strings.TrimSpace(s)
	return oba.ObjVal(vm.Heap().InternString([]byte(trimmed)))
}

// nativePanic sets the VM's error to its single argument verbatim (or
// nil if called with none), which is what lets user code panic with a
// non-string Value.
func nativePanic(vm *oba.VM, args []oba.Value) oba.Value {
	if len(args) > 1 {
		vm.ArityError(1, len(args))
		return oba.NilVal()
	}
	v := oba.NilVal()
	if len(args) == 1 {
		v = args[0]
	}
	vm.Panic(v)
	return oba.NilVal()
}

// byteLineSource is the read shape both oba.Stdin and *obaio.Reader
// satisfy; stdinSource picks whichever a host installed with
// oba.WithStdin, falling back to stdin itself read one byte at a time.
type byteLineSource interface {
	ReadByte() (byte, error)
	ReadString(delim byte) (string, error)
}

var stdinBuf *obaio.Reader

func stdinSource(vm *oba.VM) byteLineSource {
	if s := vm.Stdin(); s != nil {
		return s
	}
	if stdinBuf == nil {
		stdinBuf = obaio.NewReader(os.Stdin)
	}
	return stdinBuf
}

// trimNewline strips a trailing "\r\n" or "\n" left by ReadString('\n').
func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		s = s[:n-1]
	}
	if n := len(s); n > 0 && s[n-1] == '\r' {
		s = s[:n-1]
	}
	return s
}

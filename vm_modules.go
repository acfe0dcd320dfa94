package oba

import "github.com/oba-lang/oba/internal/stdlib"

// execImportModule implements IMPORT_MODULE: resolve name against the
// bundled core modules and then the host resolver, compile it fresh
// against a new Module object, run its top-level code to completion,
// and leave the resulting Module on the stack.
//
// Re-import of an already-loaded module recompiles and re-executes it
// every time rather than sharing state with an earlier import of the
// same name - this mirrors the reference interpreter's documented TODO
// rather than adding caching it never had.
func (vm *VM) execImportModule(nameValue Value) bool {
	nameObj, ok := nameValue.AsObj().(*ObjString)
	if !nameValue.IsObj() || !ok {
		vm.RuntimeErrorf("Module name must be a string constant.")
		return false
	}
	name := string(nameObj.Bytes)

	if vm.importing[name] {
		vm.RuntimeErrorf("Circular import of module '%s'.", name)
		return false
	}

	source, ok := stdlib.Source(name)
	if !ok && vm.resolver != nil {
		source, ok = vm.resolver.ResolveModule(name)
	}
	if !ok {
		vm.RuntimeErrorf("Module '%s' not found.", name)
		return false
	}

	moduleName := vm.heap.InternString([]byte(name))
	module := vm.heap.NewModule(moduleName)

	vm.importing[name] = true
	fn, errs := Compile(vm, module, source)
	delete(vm.importing, name)
	if len(errs) > 0 {
		vm.RuntimeErrorf("Failed to compile module '%s': %s", name, errs[0].Error())
		return false
	}

	vm.heap.PushTempRoot(ObjVal(fn))
	closure := vm.heap.NewClosure(fn)
	vm.heap.PopTempRoot()

	vm.push(ObjVal(closure))
	return vm.callClosure(closure, 0)
}

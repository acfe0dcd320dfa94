// Command oba runs an Oba source file.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	oba "github.com/oba-lang/oba"
	"github.com/oba-lang/oba/internal/natives"
	"github.com/oba-lang/oba/internal/stdlib"
)

type args struct {
	stressGC    *bool
	listModules *bool
	scriptPath  *string
}

func readArgs() *args {
	a := &args{
		stressGC:    flag.Bool("stress-gc", false, "Collect garbage on every allocation, for testing"),
		listModules: flag.Bool("list-modules", false, "Print the bundled core module names and exit"),
	}
	flag.Parse()
	if flag.NArg() > 0 {
		p := flag.Arg(0)
		a.scriptPath = &p
	}
	return a
}

func main() {
	a := readArgs()

	if *a.listModules {
		for _, name := range stdlib.Names() {
			fmt.Println(name)
		}
		return
	}

	if a.scriptPath == nil {
		log.Fatal("Usage: oba [-stress-gc] <script.oba>")
	}

	source, err := os.ReadFile(*a.scriptPath)
	if err != nil {
		log.Fatalf("Can't open script: %s", err.Error())
	}

	vm := oba.NewVM(
		natives.Bindings(),
		oba.WithStressGC(*a.stressGC),
		oba.WithModuleResolver(fileResolver{dir: filepath.Dir(*a.scriptPath)}),
	)

	switch vm.Interpret(string(source)) {
	case oba.ResultCompileError:
		os.Exit(65)
	case oba.ResultRuntimeError:
		os.Exit(70)
	}
}

// fileResolver resolves an import name that isn't one of the bundled
// core modules to a "<name>.oba" file alongside the script being run.
type fileResolver struct {
	dir string
}

func (r fileResolver) ResolveModule(name string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(r.dir, name+".oba"))
	if err != nil {
		return "", false
	}
	return string(data), true
}

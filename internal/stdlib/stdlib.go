// Package stdlib embeds the bundled core module sources (list, option,
// strings, system, time, globals) the VM's IMPORT_MODULE opcode
// resolves by name before ever consulting a host resolver.
package stdlib

import _ "embed"

//go:embed list.oba
var listSource string

//go:embed option.oba
var optionSource string

//go:embed strings.oba
var stringsSource string

//go:embed system.oba
var systemSource string

//go:embed time.oba
var timeSource string

//go:embed globals.oba
var globalsSource string

var sources = map[string]string{
	"list":    listSource,
	"option":  optionSource,
	"strings": stringsSource,
	"system":  systemSource,
	"time":    timeSource,
	"globals": globalsSource,
}

// Source returns the bundled source for name, if name is one of the
// static core modules.
func Source(name string) (string, bool) {
	s, ok := sources[name]
	return s, ok
}

// Names returns the bundled module names, for tests and for a CLI
// -list-modules flag.
func Names() []string {
	names := make([]string, 0, len(sources))
	for n := range sources {
		names = append(names, n)
	}
	return names
}

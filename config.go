package oba

import "fmt"

// Config is a small typed settings map, in the same shape the teacher
// grammar's configuration object uses: each SetXxx stores the path
// with that type (replacing any earlier entry, whatever its type), and
// GetXxx panics on a path that was never set or was last set with a
// different type. It exists so VM construction has a single place for
// its knobs without growing NewVM's parameter list. NewVM reads only
// "vm.stress_gc"; "vm.frames_max" and "vm.stack_max" record the
// compiled-in limits and are not consulted.
type Config map[string]*cfgVal

// NewConfig returns a Config primed with the defaults every VM is
// constructed with unless overridden.
func NewConfig() *Config {
	c := make(Config)
	c.SetBool("vm.stress_gc", false)
	c.SetInt("vm.frames_max", framesMax)
	c.SetInt("vm.stack_max", stackMax)
	return &c
}

type cfgValType int

const (
	cfgValTypeUndefined cfgValType = iota
	cfgValTypeBool
	cfgValTypeInt
	cfgValTypeString
)

func (vt cfgValType) String() string {
	switch vt {
	case cfgValTypeBool:
		return "bool"
	case cfgValTypeInt:
		return "int"
	case cfgValTypeString:
		return "string"
	default:
		return "undefined"
	}
}

type cfgVal struct {
	typ      cfgValType
	asBool   bool
	asInt    int
	asString string
}

func (v *cfgVal) assignType(vt cfgValType) {
	if v.typ != vt && v.typ != cfgValTypeUndefined {
		panic(fmt.Sprintf("cannot assign %s to a %s setting", vt, v.typ))
	}
	v.typ = vt
}

func (v *cfgVal) checkType(vt cfgValType) {
	if v.typ != vt {
		panic(fmt.Sprintf("cannot retrieve %s from a %s setting", vt, v.typ))
	}
}

func (c *Config) SetBool(path string, v bool) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValTypeBool)
	(*c)[path].asBool = v
}

func (c *Config) SetInt(path string, v int) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValTypeInt)
	(*c)[path].asInt = v
}

func (c *Config) SetString(path string, v string) {
	(*c)[path] = &cfgVal{}
	(*c)[path].assignType(cfgValTypeString)
	(*c)[path].asString = v
}

func (c *Config) GetBool(path string) bool {
	if v, ok := (*c)[path]; ok {
		v.checkType(cfgValTypeBool)
		return v.asBool
	}
	panic(fmt.Sprintf("bool setting %q does not exist", path))
}

func (c *Config) GetInt(path string) int {
	if v, ok := (*c)[path]; ok {
		v.checkType(cfgValTypeInt)
		return v.asInt
	}
	panic(fmt.Sprintf("int setting %q does not exist", path))
}

func (c *Config) GetString(path string) string {
	if v, ok := (*c)[path]; ok {
		v.checkType(cfgValTypeString)
		return v.asString
	}
	panic(fmt.Sprintf("string setting %q does not exist", path))
}

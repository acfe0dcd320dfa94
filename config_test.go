package oba

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DefaultsAreSeeded(t *testing.T) {
	c := NewConfig()
	assert.False(t, c.GetBool("vm.stress_gc"))
	assert.Equal(t, framesMax, c.GetInt("vm.frames_max"))
	assert.Equal(t, stackMax, c.GetInt("vm.stack_max"))
}

func TestConfig_SetThenGetRoundTrips(t *testing.T) {
	c := NewConfig()
	c.SetBool("vm.stress_gc", true)
	assert.True(t, c.GetBool("vm.stress_gc"))

	c.SetString("module.path", "./util")
	assert.Equal(t, "./util", c.GetString("module.path"))
}

func TestConfig_GetOnMissingPathPanics(t *testing.T) {
	c := NewConfig()
	assert.Panics(t, func() { c.GetBool("does.not.exist") })
}

func TestConfig_GetWithWrongTypePanics(t *testing.T) {
	c := NewConfig()
	c.SetBool("vm.stress_gc", true)
	assert.Panics(t, func() { c.GetInt("vm.stress_gc") })
}

// Package jsatest provides helpers for testing code built on jsa.
package jsatest

import (
	"github.com/deepnoodle-ai/jsa"
)

// Counts records how often each engine operation was reached.
type Counts struct {
	CloneSymbol  int
	CloneString  int
	CloneObject  int
	StrictEquals int
	Global       int
	Call         int
}

// Clones returns the total number of clone operations.
func (c Counts) Clones() int {
	return c.CloneSymbol + c.CloneString + c.CloneObject
}

// CountingRuntime wraps a jsa.Runtime and counts the calls that clone,
// compare or invoke. Every other operation is forwarded unchanged.
type CountingRuntime struct {
	jsa.Runtime
	Counts Counts
}

// NewCountingRuntime wraps rt.
func NewCountingRuntime(rt jsa.Runtime) *CountingRuntime {
	return &CountingRuntime{Runtime: rt}
}

// Reset zeroes the counters.
func (c *CountingRuntime) Reset() {
	c.Counts = Counts{}
}

func (c *CountingRuntime) CloneSymbol(ptr jsa.PointerValue) (jsa.PointerValue, error) {
	c.Counts.CloneSymbol++
	return c.Runtime.CloneSymbol(ptr)
}

func (c *CountingRuntime) CloneString(ptr jsa.PointerValue) (jsa.PointerValue, error) {
	c.Counts.CloneString++
	return c.Runtime.CloneString(ptr)
}

func (c *CountingRuntime) CloneObject(ptr jsa.PointerValue) (jsa.PointerValue, error) {
	c.Counts.CloneObject++
	return c.Runtime.CloneObject(ptr)
}

func (c *CountingRuntime) StrictEquals(kind jsa.Kind, a, b jsa.PointerValue) bool {
	c.Counts.StrictEquals++
	return c.Runtime.StrictEquals(kind, a, b)
}

func (c *CountingRuntime) Global() (*jsa.Object, error) {
	c.Counts.Global++
	return c.Runtime.Global()
}

func (c *CountingRuntime) Call(fn *jsa.Function, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
	c.Counts.Call++
	return c.Runtime.Call(fn, this, args)
}

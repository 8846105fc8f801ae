package jsa

import (
	"context"
	"errors"
)

// HostFunction is native code callable from script. Arguments are borrowed
// for the duration of the call. Ownership of the returned Value passes to the
// engine; a nil Value means undefined.
type HostFunction func(rt Runtime, this *Value, args []*Value) (*Value, error)

// Runtime is the capability set an embedded scripting engine provides to
// this package. Implementations are not safe for concurrent use: every
// Runtime and every Value it produces belong to one goroutine at a time.
//
// Values and views passed as arguments are borrowed. Values and views
// returned are owned by the caller, who must Release them.
type Runtime interface {

	// Description returns a short name for the engine, e.g. "goja".
	Description() string

	// CloneSymbol, CloneString and CloneObject return a new, independently
	// owned handle to the same underlying script value.
	CloneSymbol(ptr PointerValue) (PointerValue, error)
	CloneString(ptr PointerValue) (PointerValue, error)
	CloneObject(ptr PointerValue) (PointerValue, error)

	// StrictEquals compares two handles of the given pointer kind using the
	// engine's own strict equality.
	StrictEquals(kind Kind, a, b PointerValue) bool

	// Global returns the global scope object.
	Global() (*Object, error)

	// EvaluateScript runs source in the global scope and returns the
	// completion value.
	EvaluateScript(ctx context.Context, source, url string) (*Value, error)

	CreateStringFromUTF8(data []byte) (*String, error)
	UTF8(s *String) (string, error)
	SymbolToString(s *Symbol) (string, error)

	CreateObject() (*Object, error)
	GetProperty(obj *Object, name string) (*Value, error)
	SetProperty(obj *Object, name string, value *Value) error
	HasProperty(obj *Object, name string) (bool, error)
	GetPropertyNames(obj *Object) ([]string, error)

	// IsArray and IsFunction are the refinement predicates of ObjectKind.
	IsArray(obj *Object) bool
	IsFunction(obj *Object) bool

	CreateArray(length int) (*Array, error)
	ArrayLength(arr *Array) (int, error)
	GetValueAtIndex(arr *Array, index int) (*Value, error)
	SetValueAtIndex(arr *Array, index int, value *Value) error

	CreateFunctionFromHostFunction(name string, paramCount int, fn HostFunction) (*Function, error)
	Call(fn *Function, this *Value, args []*Value) (*Value, error)
	CallAsConstructor(fn *Function, args []*Value) (*Value, error)
}

// ErrAccessorsUnsupported is returned by Object.DefineAccessor when the
// engine cannot define accessor properties.
var ErrAccessorsUnsupported = errors.New("engine does not support accessor properties")

// AccessorDefiner is implemented by engines that can define properties
// backed by native getters and setters. The getter receives no arguments and
// the setter receives the assigned value; both receive the object as this.
type AccessorDefiner interface {
	DefineAccessor(obj *Object, name string, get, set HostFunction) error
}

package jsa

import (
	"fmt"
	"strconv"
)

// Value is a script value held by native code. Undefined, null, booleans and
// numbers are stored inline; symbols, strings and objects are stored as an
// engine handle owned by the Value.
//
// The zero Value is undefined. Values are passed by pointer and never copied:
// use Move to transfer one and Clone to duplicate one.
type Value struct {
	// kind selects the live payload field: boolean for BooleanKind, number
	// for NumberKind, pointer for pointer kinds. The others stay zero.
	kind    Kind
	boolean bool
	number  float64
	pointer Pointer
}

// Undefined returns a new undefined Value.
func Undefined() *Value {
	return &Value{kind: UndefinedKind}
}

// Null returns a new null Value.
func Null() *Value {
	return &Value{kind: NullKind}
}

// Bool returns a new boolean Value.
func Bool(b bool) *Value {
	return &Value{kind: BooleanKind, boolean: b}
}

// Number returns a new number Value.
func Number(n float64) *Value {
	return &Value{kind: NumberKind, number: n}
}

// WrapValue takes ownership of an engine handle of the given pointer kind.
// It is intended for Runtime implementations.
func WrapValue(kind Kind, ptr PointerValue) *Value {
	if !kind.IsPointer() {
		panic(fmt.Sprintf("jsa: %s is not a pointer kind", kind))
	}
	if ptr == nil {
		panic("jsa: nil handle")
	}
	v := &Value{kind: kind}
	v.pointer.ptr = ptr
	return v
}

// NewObjectValue moves the handle of obj into a new Value. Arrays and
// functions are passed through their embedded Object.
func NewObjectValue(obj *Object) *Value {
	return WrapValue(ObjectKind, obj.Take())
}

// NewStringValue moves the handle of s into a new Value.
func NewStringValue(s *String) *Value {
	return WrapValue(StringKind, s.Take())
}

// NewSymbolValue moves the handle of sym into a new Value.
func NewSymbolValue(sym *Symbol) *Value {
	return WrapValue(SymbolKind, sym.Take())
}

// CreateFromJSONUTF8 parses data with the global JSON.parse function.
// Errors raised by the parser are returned unchanged.
func CreateFromJSONUTF8(rt Runtime, data []byte) (*Value, error) {
	global, err := rt.Global()
	if err != nil {
		return nil, err
	}
	defer global.Release()
	json, err := global.GetPropertyAsObject(rt, "JSON")
	if err != nil {
		return nil, err
	}
	defer json.Release()
	parse, err := json.GetPropertyAsFunction(rt, "parse")
	if err != nil {
		return nil, err
	}
	defer parse.Release()
	text, err := CreateStringFromUTF8(rt, data)
	if err != nil {
		return nil, err
	}
	arg := NewStringValue(text)
	defer arg.Release()
	return parse.Call(rt, arg)
}

// Kind returns the kind of the value.
func (v *Value) Kind() Kind {
	return v.kind
}

func (v *Value) IsUndefined() bool { return v.kind == UndefinedKind }
func (v *Value) IsNull() bool      { return v.kind == NullKind }
func (v *Value) IsBool() bool      { return v.kind == BooleanKind }
func (v *Value) IsNumber() bool    { return v.kind == NumberKind }
func (v *Value) IsSymbol() bool    { return v.kind == SymbolKind }
func (v *Value) IsString() bool    { return v.kind == StringKind }
func (v *Value) IsObject() bool    { return v.kind == ObjectKind }

// GetBool returns the boolean payload, or false if v is not a boolean.
func (v *Value) GetBool() bool {
	return v.kind == BooleanKind && v.boolean
}

// GetNumber returns the number payload, or 0 if v is not a number.
func (v *Value) GetNumber() float64 {
	if v.kind != NumberKind {
		return 0
	}
	return v.number
}

// Raw returns the engine handle of a pointer kind without transferring
// ownership, or nil for scalar kinds.
func (v *Value) Raw() PointerValue {
	if !v.kind.IsPointer() {
		return nil
	}
	return v.pointer.Raw()
}

// Move transfers the payload of v into a new Value and leaves v undefined.
// The engine is not involved.
func (v *Value) Move() *Value {
	out := &Value{}
	out.Assign(v)
	return out
}

// Assign releases whatever v holds and moves the payload of other into v.
// other is left undefined.
func (v *Value) Assign(other *Value) {
	if v == other {
		return
	}
	v.Release()
	v.kind = other.kind
	switch {
	case other.kind == BooleanKind:
		v.boolean = other.boolean
	case other.kind == NumberKind:
		v.number = other.number
	case other.kind.IsPointer():
		v.pointer.Assign(&other.pointer)
	}
	other.clear()
}

// Clone returns a new Value referring to the same script value. Scalars are
// copied; symbols, strings and objects get a new handle from the engine.
func (v *Value) Clone(rt Runtime) (*Value, error) {
	var (
		ptr PointerValue
		err error
	)
	switch v.kind {
	case UndefinedKind, NullKind:
		return &Value{kind: v.kind}, nil
	case BooleanKind:
		return Bool(v.boolean), nil
	case NumberKind:
		return Number(v.number), nil
	case SymbolKind:
		ptr, err = rt.CloneSymbol(v.pointer.Raw())
	case StringKind:
		ptr, err = rt.CloneString(v.pointer.Raw())
	case ObjectKind:
		ptr, err = rt.CloneObject(v.pointer.Raw())
	default:
		return nil, fmt.Errorf("jsa: cannot clone value of kind %d", v.kind)
	}
	if err != nil {
		return nil, err
	}
	return WrapValue(v.kind, ptr), nil
}

// Release invalidates the handle held by v, if any, and leaves v undefined.
// It is safe to call more than once.
func (v *Value) Release() {
	if v.kind.IsPointer() {
		v.pointer.Invalidate()
	}
	v.clear()
}

func (v *Value) clear() {
	v.kind = UndefinedKind
	v.boolean = false
	v.number = 0
	v.pointer.ptr = nil
}

// StrictEquals compares two values without type coercion. Values of
// different kinds are never equal; symbols, strings and objects are compared
// by the engine.
func StrictEquals(rt Runtime, a, b *Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case UndefinedKind, NullKind:
		return true
	case BooleanKind:
		return a.boolean == b.boolean
	case NumberKind:
		return a.number == b.number
	case SymbolKind, StringKind, ObjectKind:
		return rt.StrictEquals(a.kind, a.pointer.Raw(), b.pointer.Raw())
	}
	return false
}

// AsBool returns the boolean payload or a TypeMismatchError.
func (v *Value) AsBool() (bool, error) {
	if !v.IsBool() {
		return false, valueMismatch(v, nil, "a boolean")
	}
	return v.boolean, nil
}

// AsNumber returns the number payload or a TypeMismatchError.
func (v *Value) AsNumber() (float64, error) {
	if !v.IsNumber() {
		return 0, valueMismatch(v, nil, "a number")
	}
	return v.number, nil
}

// AsObject returns a new Object view of v, which keeps its own handle.
func (v *Value) AsObject(rt Runtime) (*Object, error) {
	if !v.IsObject() {
		return nil, valueMismatch(v, rt, "an Object")
	}
	ptr, err := rt.CloneObject(v.pointer.Raw())
	if err != nil {
		return nil, err
	}
	return WrapObject(ptr), nil
}

// TakeObject moves the handle of v into a new Object view and leaves v
// undefined. On failure v is unchanged.
func (v *Value) TakeObject(rt Runtime) (*Object, error) {
	if !v.IsObject() {
		return nil, valueMismatch(v, rt, "an Object")
	}
	ptr := v.pointer.Take()
	v.clear()
	return WrapObject(ptr), nil
}

// AsSymbol returns a new Symbol view of v, which keeps its own handle.
func (v *Value) AsSymbol(rt Runtime) (*Symbol, error) {
	if !v.IsSymbol() {
		return nil, valueMismatch(v, rt, "a Symbol")
	}
	ptr, err := rt.CloneSymbol(v.pointer.Raw())
	if err != nil {
		return nil, err
	}
	return WrapSymbol(ptr), nil
}

// TakeSymbol moves the handle of v into a new Symbol view.
func (v *Value) TakeSymbol(rt Runtime) (*Symbol, error) {
	if !v.IsSymbol() {
		return nil, valueMismatch(v, rt, "a Symbol")
	}
	ptr := v.pointer.Take()
	v.clear()
	return WrapSymbol(ptr), nil
}

// AsString returns a new String view of v, which keeps its own handle.
func (v *Value) AsString(rt Runtime) (*String, error) {
	if !v.IsString() {
		return nil, valueMismatch(v, rt, "a String")
	}
	ptr, err := rt.CloneString(v.pointer.Raw())
	if err != nil {
		return nil, err
	}
	return WrapString(ptr), nil
}

// TakeString moves the handle of v into a new String view.
func (v *Value) TakeString(rt Runtime) (*String, error) {
	if !v.IsString() {
		return nil, valueMismatch(v, rt, "a String")
	}
	ptr := v.pointer.Take()
	v.clear()
	return WrapString(ptr), nil
}

// ToString converts v with the global String function, so the result
// follows the engine's own conversion rules.
func (v *Value) ToString(rt Runtime) (*String, error) {
	global, err := rt.Global()
	if err != nil {
		return nil, err
	}
	defer global.Release()
	toString, err := global.GetPropertyAsFunction(rt, "String")
	if err != nil {
		return nil, err
	}
	defer toString.Release()
	result, err := toString.Call(rt, v)
	if err != nil {
		return nil, err
	}
	s, err := result.TakeString(rt)
	if err != nil {
		result.Release()
		return nil, err
	}
	return s, nil
}

// String describes the value for debugging. It never calls the engine.
func (v *Value) String() string {
	switch v.kind {
	case BooleanKind:
		return strconv.FormatBool(v.boolean)
	case NumberKind:
		return strconv.FormatFloat(v.number, 'g', -1, 64)
	case SymbolKind, StringKind, ObjectKind:
		if v.pointer.IsNull() {
			return "<" + v.kind.String() + " released>"
		}
		return "<" + v.kind.String() + ">"
	default:
		return v.kind.String()
	}
}

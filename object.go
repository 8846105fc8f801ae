package jsa

import "fmt"

// Object is a view of a script object. Array and Function refine it.
type Object struct {
	Pointer
}

// WrapObject takes ownership of an object handle. It is intended for Runtime
// implementations.
func WrapObject(ptr PointerValue) *Object {
	obj := &Object{}
	obj.ptr = ptr
	return obj
}

// CreateObject returns a new empty script object.
func CreateObject(rt Runtime) (*Object, error) {
	return rt.CreateObject()
}

// Release invalidates the handle held by the view. It is safe to call more
// than once.
func (o *Object) Release() {
	o.Invalidate()
}

// Clone returns a new Object view with its own handle to the same object.
func (o *Object) Clone(rt Runtime) (*Object, error) {
	ptr, err := rt.CloneObject(o.Raw())
	if err != nil {
		return nil, err
	}
	return WrapObject(ptr), nil
}

// GetProperty returns the value of property name, or undefined if it is missing.
func (o *Object) GetProperty(rt Runtime, name string) (*Value, error) {
	return rt.GetProperty(o, name)
}

// SetProperty assigns value to property name. The value is borrowed.
func (o *Object) SetProperty(rt Runtime, name string, value *Value) error {
	return rt.SetProperty(o, name, value)
}

// HasProperty reports whether property name is present on the object.
func (o *Object) HasProperty(rt Runtime, name string) (bool, error) {
	return rt.HasProperty(o, name)
}

// GetPropertyNames returns the enumerable own property names of the object.
func (o *Object) GetPropertyNames(rt Runtime) ([]string, error) {
	return rt.GetPropertyNames(o)
}

// DefineAccessor defines property name on the object with native get and
// set functions. Either may be nil. It fails with ErrAccessorsUnsupported if
// rt does not implement AccessorDefiner.
func (o *Object) DefineAccessor(rt Runtime, name string, get, set HostFunction) error {
	definer, ok := rt.(AccessorDefiner)
	if !ok {
		return NewEngineError("define accessor "+name, ErrAccessorsUnsupported)
	}
	if get == nil && set == nil {
		return fmt.Errorf("accessor %q needs a getter or a setter", name)
	}
	return definer.DefineAccessor(o, name, get, set)
}

// GetPropertyAsObject reads property name and requires it to be an object.
func (o *Object) GetPropertyAsObject(rt Runtime, name string) (*Object, error) {
	v, err := rt.GetProperty(o, name)
	if err != nil {
		return nil, err
	}
	if !v.IsObject() {
		err := &TypeMismatchError{
			Operation: "GetPropertyAsObject",
			Property:  name,
			Actual:    KindToString(v, rt),
			Expected:  "an Object",
		}
		v.Release()
		return nil, err
	}
	return v.TakeObject(rt)
}

// GetPropertyAsFunction reads property name and requires it to be a
// function. The intermediate object handle is moved into the result.
func (o *Object) GetPropertyAsFunction(rt Runtime, name string) (*Function, error) {
	obj, err := o.GetPropertyAsObject(rt, name)
	if err != nil {
		return nil, err
	}
	if !rt.IsFunction(obj) {
		err := &TypeMismatchError{
			Operation: "GetPropertyAsFunction",
			Property:  name,
			Actual:    objectKindString(obj, rt),
			Expected:  "a Function",
		}
		obj.Release()
		return nil, err
	}
	return WrapFunction(obj.Take()), nil
}

// IsArray reports whether the object is an array.
func (o *Object) IsArray(rt Runtime) bool {
	return rt.IsArray(o)
}

// IsFunction reports whether the object can be called.
func (o *Object) IsFunction(rt Runtime) bool {
	return rt.IsFunction(o)
}

// AsArray returns a new Array view of the object, which keeps its own handle.
func (o *Object) AsArray(rt Runtime) (*Array, error) {
	if !rt.IsArray(o) {
		return nil, objectMismatch(o, rt, "an array")
	}
	ptr, err := rt.CloneObject(o.Raw())
	if err != nil {
		return nil, err
	}
	return WrapArray(ptr), nil
}

// TakeArray moves the handle of the object into a new Array view. On failure
// the object is unchanged.
func (o *Object) TakeArray(rt Runtime) (*Array, error) {
	if !rt.IsArray(o) {
		return nil, objectMismatch(o, rt, "an array")
	}
	return WrapArray(o.Take()), nil
}

// AsFunction returns a new Function view of the object, which keeps its own
// handle.
func (o *Object) AsFunction(rt Runtime) (*Function, error) {
	if !rt.IsFunction(o) {
		return nil, objectMismatch(o, rt, "a function")
	}
	ptr, err := rt.CloneObject(o.Raw())
	if err != nil {
		return nil, err
	}
	return WrapFunction(ptr), nil
}

// TakeFunction moves the handle of the object into a new Function view.
func (o *Object) TakeFunction(rt Runtime) (*Function, error) {
	if !rt.IsFunction(o) {
		return nil, objectMismatch(o, rt, "a function")
	}
	return WrapFunction(o.Take()), nil
}

// Array is a view of a script array.
type Array struct {
	Object
}

// WrapArray takes ownership of an array handle.
func WrapArray(ptr PointerValue) *Array {
	arr := &Array{}
	arr.ptr = ptr
	return arr
}

// CreateArray returns a new array of the given length.
func CreateArray(rt Runtime, length int) (*Array, error) {
	return rt.CreateArray(length)
}

// CreateArrayWithElements returns a new array sized to len(elements) with
// each element assigned by index in order. The elements are borrowed.
func CreateArrayWithElements(rt Runtime, elements ...*Value) (*Array, error) {
	arr, err := rt.CreateArray(len(elements))
	if err != nil {
		return nil, err
	}
	for i, element := range elements {
		if err := rt.SetValueAtIndex(arr, i, element); err != nil {
			arr.Release()
			return nil, err
		}
	}
	return arr, nil
}

// Length returns the length of the array.
func (a *Array) Length(rt Runtime) (int, error) {
	return rt.ArrayLength(a)
}

// GetValueAtIndex returns the element at index, or undefined past the end.
func (a *Array) GetValueAtIndex(rt Runtime, index int) (*Value, error) {
	return rt.GetValueAtIndex(a, index)
}

// SetValueAtIndex assigns value to the element at index. The value is borrowed.
func (a *Array) SetValueAtIndex(rt Runtime, index int, value *Value) error {
	return rt.SetValueAtIndex(a, index, value)
}

// Function is a view of a callable script object.
type Function struct {
	Object
}

// WrapFunction takes ownership of a function handle.
func WrapFunction(ptr PointerValue) *Function {
	fn := &Function{}
	fn.ptr = ptr
	return fn
}

// CreateFunctionFromHostFunction exposes fn to script as a function object.
func CreateFunctionFromHostFunction(rt Runtime, name string, paramCount int, fn HostFunction) (*Function, error) {
	return rt.CreateFunctionFromHostFunction(name, paramCount, fn)
}

// Call invokes the function with an undefined receiver. Arguments are
// borrowed.
func (f *Function) Call(rt Runtime, args ...*Value) (*Value, error) {
	return rt.Call(f, nil, args)
}

// CallWithThis invokes the function with this bound to the given object.
func (f *Function) CallWithThis(rt Runtime, this *Object, args ...*Value) (*Value, error) {
	if this == nil {
		return rt.Call(f, nil, args)
	}
	receiver := borrowedValue(ObjectKind, this.Raw())
	return rt.Call(f, receiver, args)
}

// CallAsConstructor invokes the function with new.
func (f *Function) CallAsConstructor(rt Runtime, args ...*Value) (*Value, error) {
	return rt.CallAsConstructor(f, args)
}

// borrowedValue wraps a handle owned elsewhere. The result must not be
// released and must not outlive the owner.
func borrowedValue(kind Kind, ptr PointerValue) *Value {
	v := &Value{kind: kind}
	v.pointer.ptr = ptr
	return v
}

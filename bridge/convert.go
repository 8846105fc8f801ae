// Package bridge connects native Go code to script values. It converts Go
// values to and from jsa.Value, binds native objects to script objects and
// dispatches named native methods.
package bridge

import (
	"errors"
	"fmt"
	"sort"

	"github.com/deepnoodle-ai/jsa"
)

// MaxDepth limits how deeply ToValue and ToGo descend into nested arrays and
// objects. Cyclic script objects fail with ErrTooDeep.
const MaxDepth = 64

// ErrTooDeep is returned when a value nests deeper than MaxDepth.
var ErrTooDeep = errors.New("value nests too deeply")

// ToValue converts a Go value into a new caller-owned Value. Existing jsa
// values and views are cloned, never consumed.
func ToValue(rt jsa.Runtime, value any) (*jsa.Value, error) {
	return toValue(rt, value, 0)
}

func toValue(rt jsa.Runtime, value any, depth int) (*jsa.Value, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	switch v := value.(type) {
	case nil:
		return jsa.Null(), nil
	case *jsa.Value:
		if v == nil {
			return jsa.Undefined(), nil
		}
		return v.Clone(rt)
	case *jsa.Object:
		return cloneObject(rt, v)
	case *jsa.Array:
		return cloneObject(rt, &v.Object)
	case *jsa.Function:
		return cloneObject(rt, &v.Object)
	case *jsa.String:
		s, err := v.Clone(rt)
		if err != nil {
			return nil, err
		}
		return jsa.NewStringValue(s), nil
	case bool:
		return jsa.Bool(v), nil
	case int:
		return jsa.Number(float64(v)), nil
	case int8:
		return jsa.Number(float64(v)), nil
	case int16:
		return jsa.Number(float64(v)), nil
	case int32:
		return jsa.Number(float64(v)), nil
	case int64:
		return jsa.Number(float64(v)), nil
	case uint:
		return jsa.Number(float64(v)), nil
	case uint8:
		return jsa.Number(float64(v)), nil
	case uint16:
		return jsa.Number(float64(v)), nil
	case uint32:
		return jsa.Number(float64(v)), nil
	case uint64:
		return jsa.Number(float64(v)), nil
	case float32:
		return jsa.Number(float64(v)), nil
	case float64:
		return jsa.Number(v), nil
	case string:
		s, err := jsa.CreateStringFromUTF8(rt, []byte(v))
		if err != nil {
			return nil, err
		}
		return jsa.NewStringValue(s), nil
	case []string:
		items := make([]any, len(v))
		for i, s := range v {
			items[i] = s
		}
		return toArray(rt, items, depth)
	case []float64:
		items := make([]any, len(v))
		for i, n := range v {
			items[i] = n
		}
		return toArray(rt, items, depth)
	case []int:
		items := make([]any, len(v))
		for i, n := range v {
			items[i] = n
		}
		return toArray(rt, items, depth)
	case []any:
		return toArray(rt, v, depth)
	case map[string]string:
		fields := make(map[string]any, len(v))
		for key, s := range v {
			fields[key] = s
		}
		return toObject(rt, fields, depth)
	case map[string]any:
		return toObject(rt, v, depth)
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
}

func cloneObject(rt jsa.Runtime, obj *jsa.Object) (*jsa.Value, error) {
	clone, err := obj.Clone(rt)
	if err != nil {
		return nil, err
	}
	return jsa.NewObjectValue(clone), nil
}

func toArray(rt jsa.Runtime, items []any, depth int) (*jsa.Value, error) {
	elements := make([]*jsa.Value, 0, len(items))
	defer func() {
		for _, element := range elements {
			element.Release()
		}
	}()
	for i, item := range items {
		element, err := toValue(rt, item, depth+1)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		elements = append(elements, element)
	}
	arr, err := jsa.CreateArrayWithElements(rt, elements...)
	if err != nil {
		return nil, err
	}
	return jsa.NewObjectValue(&arr.Object), nil
}

func toObject(rt jsa.Runtime, fields map[string]any, depth int) (*jsa.Value, error) {
	obj, err := jsa.CreateObject(rt)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		field, err := toValue(rt, fields[key], depth+1)
		if err != nil {
			obj.Release()
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		err = obj.SetProperty(rt, key, field)
		field.Release()
		if err != nil {
			obj.Release()
			return nil, err
		}
	}
	return jsa.NewObjectValue(obj), nil
}

// ToGo exports a borrowed Value as plain Go data: nil, bool, float64,
// string, []any or map[string]any. Symbols export as their description and
// functions cannot be exported.
func ToGo(rt jsa.Runtime, value *jsa.Value) (any, error) {
	return toGo(rt, value, 0)
}

func toGo(rt jsa.Runtime, value *jsa.Value, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}
	switch value.Kind() {
	case jsa.UndefinedKind, jsa.NullKind:
		return nil, nil
	case jsa.BooleanKind:
		return value.GetBool(), nil
	case jsa.NumberKind:
		return value.GetNumber(), nil
	case jsa.StringKind:
		return ToString(rt, value)
	case jsa.SymbolKind:
		sym, err := value.AsSymbol(rt)
		if err != nil {
			return nil, err
		}
		defer sym.Release()
		return sym.ToString(rt)
	}

	obj, err := value.AsObject(rt)
	if err != nil {
		return nil, err
	}
	defer obj.Release()

	switch {
	case obj.IsFunction(rt):
		return nil, &jsa.TypeMismatchError{Subject: "Value", Actual: "a function", Expected: "exportable data"}
	case obj.IsArray(rt):
		arr, err := obj.AsArray(rt)
		if err != nil {
			return nil, err
		}
		defer arr.Release()
		return arrayToGo(rt, arr, depth)
	default:
		return objectToGo(rt, obj, depth)
	}
}

func arrayToGo(rt jsa.Runtime, arr *jsa.Array, depth int) ([]any, error) {
	length, err := arr.Length(rt)
	if err != nil {
		return nil, err
	}
	out := make([]any, length)
	for i := range length {
		element, err := arr.GetValueAtIndex(rt, i)
		if err != nil {
			return nil, err
		}
		out[i], err = toGo(rt, element, depth+1)
		element.Release()
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
	}
	return out, nil
}

func objectToGo(rt jsa.Runtime, obj *jsa.Object, depth int) (map[string]any, error) {
	names, err := obj.GetPropertyNames(rt)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		if name == BindingProperty {
			continue
		}
		field, err := obj.GetProperty(rt, name)
		if err != nil {
			return nil, err
		}
		if field.IsObject() {
			if fn, err := field.AsObject(rt); err == nil {
				isFunction := fn.IsFunction(rt)
				fn.Release()
				if isFunction {
					field.Release()
					continue
				}
			}
		}
		out[name], err = toGo(rt, field, depth+1)
		field.Release()
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
	}
	return out, nil
}

// ToString reads a string result. Null and undefined read as the empty
// string; any other kind is a type mismatch.
func ToString(rt jsa.Runtime, value *jsa.Value) (string, error) {
	if value.IsNull() || value.IsUndefined() {
		return "", nil
	}
	s, err := value.AsString(rt)
	if err != nil {
		return "", err
	}
	defer s.Release()
	return s.UTF8(rt)
}

// ToBool reads a boolean result.
func ToBool(value *jsa.Value) (bool, error) {
	return value.AsBool()
}

// ToDouble reads a number result.
func ToDouble(value *jsa.Value) (float64, error) {
	return value.AsNumber()
}

// ToPointer resolves a script object to the native value bound to it in reg.
// Null and undefined resolve to the zero T.
func ToPointer[T any](rt jsa.Runtime, reg *Registry, value *jsa.Value) (T, error) {
	var zero T
	if value.IsNull() || value.IsUndefined() {
		return zero, nil
	}
	obj, err := value.AsObject(rt)
	if err != nil {
		return zero, err
	}
	defer obj.Release()
	native, err := reg.Lookup(rt, obj)
	if err != nil {
		return zero, err
	}
	typed, ok := native.(T)
	if !ok {
		return zero, fmt.Errorf("bound value is %T, expected %T", native, zero)
	}
	return typed, nil
}

// ToPointerSlice resolves each element of a script array with ToPointer.
func ToPointerSlice[T any](rt jsa.Runtime, reg *Registry, value *jsa.Value) ([]T, error) {
	if value.IsNull() || value.IsUndefined() {
		return nil, nil
	}
	obj, err := value.AsObject(rt)
	if err != nil {
		return nil, err
	}
	defer obj.Release()
	arr, err := obj.AsArray(rt)
	if err != nil {
		return nil, err
	}
	defer arr.Release()

	length, err := arr.Length(rt)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, length)
	for i := range length {
		element, err := arr.GetValueAtIndex(rt, i)
		if err != nil {
			return nil, err
		}
		native, err := ToPointer[T](rt, reg, element)
		element.Release()
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out = append(out, native)
	}
	return out, nil
}

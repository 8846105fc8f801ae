package jsa_test

import (
	"errors"
	"testing"

	"github.com/deepnoodle-ai/jsa"
	"github.com/deepnoodle-ai/jsa/jsatest"
	"github.com/stretchr/testify/require"
)

func TestGetPropertyAsFunctionMismatch(t *testing.T) {
	_, rt := newRuntime(t)
	obj := jsatest.MustObject(t, rt, "({foo: {}})")

	_, err := obj.GetPropertyAsFunction(rt, "foo")
	require.Error(t, err)
	require.Equal(t, "GetPropertyAsFunction: property 'foo' is an object, expected a Function", err.Error())

	var mismatch *jsa.TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, "GetPropertyAsFunction", mismatch.Operation)
	require.Equal(t, "foo", mismatch.Property)
}

func TestGetPropertyAsObjectMismatch(t *testing.T) {
	tests := []struct {
		name     string
		property string
		want     string
	}{
		{name: "missing", property: "x", want: "GetPropertyAsObject: property 'x' is undefined, expected an Object"},
		{name: "number", property: "n", want: "GetPropertyAsObject: property 'n' is a number, expected an Object"},
		{name: "null", property: "z", want: "GetPropertyAsObject: property 'z' is null, expected an Object"},
		{name: "boolean", property: "b", want: "GetPropertyAsObject: property 'b' is true, expected an Object"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, rt := newRuntime(t)
			obj := jsatest.MustObject(t, rt, "({n: 1, z: null, b: true})")
			live := engine.LiveHandles()

			_, err := obj.GetPropertyAsObject(rt, tt.property)
			require.EqualError(t, err, tt.want)
			require.True(t, jsa.IsTypeMismatch(err))
			require.Equal(t, live, engine.LiveHandles())
		})
	}
}

func TestGetPropertyAsFunctionConsumesIntermediate(t *testing.T) {
	engine, rt := newRuntime(t)
	obj := jsatest.MustObject(t, rt, "({add(a, b) { return a + b }})")
	live := engine.LiveHandles()
	rt.Reset()

	fn, err := obj.GetPropertyAsFunction(rt, "add")
	require.NoError(t, err)
	require.Equal(t, 0, rt.Counts.CloneObject)
	require.Equal(t, live+1, engine.LiveHandles())

	result, err := fn.Call(rt, jsa.Number(2), jsa.Number(3))
	require.NoError(t, err)
	require.Equal(t, 5.0, result.GetNumber())

	fn.Release()
	require.Equal(t, live, engine.LiveHandles())
}

func TestObjectRefinement(t *testing.T) {
	tests := []struct {
		source     string
		isArray    bool
		isFunction bool
		actual     string
	}{
		{source: "({})", actual: "an object"},
		{source: "[1, 2]", isArray: true, actual: "an object"},
		{source: "(function () {})", isFunction: true, actual: "a function"},
		{source: "(class Point {})", isFunction: true, actual: "a function"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			engine, rt := newRuntime(t)
			obj := jsatest.MustObject(t, rt, tt.source)
			live := engine.LiveHandles()

			require.Equal(t, tt.isArray, obj.IsArray(rt))
			require.Equal(t, tt.isFunction, obj.IsFunction(rt))

			arr, err := obj.AsArray(rt)
			if tt.isArray {
				require.NoError(t, err)
				arr.Release()
			} else {
				require.EqualError(t, err, "Object is "+tt.actual+", expected an array")
			}

			fn, err := obj.AsFunction(rt)
			if tt.isFunction {
				require.NoError(t, err)
				fn.Release()
			} else {
				require.EqualError(t, err, "Object is "+tt.actual+", expected a function")
			}

			require.False(t, obj.IsNull(), "borrowing refinement keeps the object")
			require.Equal(t, live, engine.LiveHandles())
		})
	}
}

func TestTakeArrayFailureKeepsObject(t *testing.T) {
	_, rt := newRuntime(t)
	obj := jsatest.MustObject(t, rt, "({})")
	_, err := obj.TakeArray(rt)
	require.Error(t, err)
	require.False(t, obj.IsNull())

	arrObj := jsatest.MustObject(t, rt, "[1]")
	raw := arrObj.Raw()
	arr, err := arrObj.TakeArray(rt)
	require.NoError(t, err)
	defer arr.Release()
	require.True(t, arrObj.IsNull())
	require.Same(t, raw, arr.Raw())
}

func TestObjectProperties(t *testing.T) {
	engine, rt := newRuntime(t)
	obj, err := jsa.CreateObject(rt)
	require.NoError(t, err)
	defer obj.Release()

	has, err := obj.HasProperty(rt, "name")
	require.NoError(t, err)
	require.False(t, has)

	name, err := jsa.CreateStringFromASCII(rt, "widget")
	require.NoError(t, err)
	nameValue := jsa.NewStringValue(name)
	defer nameValue.Release()

	require.NoError(t, obj.SetProperty(rt, "name", nameValue))
	require.NoError(t, obj.SetProperty(rt, "count", jsa.Number(3)))
	require.NoError(t, obj.SetProperty(rt, "missing", jsa.Undefined()))

	has, err = obj.HasProperty(rt, "name")
	require.NoError(t, err)
	require.True(t, has)
	has, err = obj.HasProperty(rt, "missing")
	require.NoError(t, err)
	require.True(t, has, "a property holding undefined still exists")

	names, err := obj.GetPropertyNames(rt)
	require.NoError(t, err)
	require.Equal(t, []string{"name", "count", "missing"}, names)

	got, err := obj.GetProperty(rt, "name")
	require.NoError(t, err)
	defer got.Release()
	require.True(t, jsa.StrictEquals(rt, nameValue, got))

	count, err := obj.GetProperty(rt, "count")
	require.NoError(t, err)
	n, err := count.AsNumber()
	require.NoError(t, err)
	require.Equal(t, 3.0, n)

	got.Release()
	nameValue.Release()
	obj.Release()
	jsatest.RequireLiveHandles(t, engine, 0)
}

func TestCreateArrayWithElements(t *testing.T) {
	engine, rt := newRuntime(t)
	text := jsatest.MustEval(t, rt, "'three'")

	arr, err := jsa.CreateArrayWithElements(rt, jsa.Number(1), jsa.Bool(true), text, jsa.Null())
	require.NoError(t, err)
	defer arr.Release()
	require.True(t, arr.IsArray(rt))
	require.False(t, text.IsUndefined(), "elements are borrowed")

	length, err := arr.Length(rt)
	require.NoError(t, err)
	require.Equal(t, 4, length)

	first, err := arr.GetValueAtIndex(rt, 0)
	require.NoError(t, err)
	require.Equal(t, 1.0, first.GetNumber())

	second, err := arr.GetValueAtIndex(rt, 1)
	require.NoError(t, err)
	require.True(t, second.GetBool())

	third, err := arr.GetValueAtIndex(rt, 2)
	require.NoError(t, err)
	defer third.Release()
	require.True(t, jsa.StrictEquals(rt, text, third))

	fourth, err := arr.GetValueAtIndex(rt, 3)
	require.NoError(t, err)
	require.True(t, fourth.IsNull())

	past, err := arr.GetValueAtIndex(rt, 10)
	require.NoError(t, err)
	require.True(t, past.IsUndefined())

	live := engine.LiveHandles()
	require.NoError(t, arr.SetValueAtIndex(rt, 0, jsa.Number(9)))
	first, err = arr.GetValueAtIndex(rt, 0)
	require.NoError(t, err)
	require.Equal(t, 9.0, first.GetNumber())
	require.Equal(t, live, engine.LiveHandles())
}

func TestCreateArray(t *testing.T) {
	_, rt := newRuntime(t)
	arr, err := jsa.CreateArray(rt, 3)
	require.NoError(t, err)
	defer arr.Release()

	length, err := arr.Length(rt)
	require.NoError(t, err)
	require.Equal(t, 3, length)

	v, err := arr.GetValueAtIndex(rt, 2)
	require.NoError(t, err)
	require.True(t, v.IsUndefined())
}

func TestFunctionCallWithThis(t *testing.T) {
	_, rt := newRuntime(t)
	fn, err := jsatest.MustObject(t, rt, "(function (suffix) { return this.name + suffix })").TakeFunction(rt)
	require.NoError(t, err)
	defer fn.Release()

	receiver := jsatest.MustObject(t, rt, "({name: 'box'})")
	suffix := jsatest.MustEval(t, rt, "'!'")

	result, err := fn.CallWithThis(rt, receiver, suffix)
	require.NoError(t, err)
	defer result.Release()

	s, err := result.AsString(rt)
	require.NoError(t, err)
	defer s.Release()
	text, err := s.UTF8(rt)
	require.NoError(t, err)
	require.Equal(t, "box!", text)
	require.False(t, receiver.IsNull(), "the receiver is borrowed")
}

func TestFunctionCallPropagatesThrow(t *testing.T) {
	_, rt := newRuntime(t)
	fn, err := jsatest.MustObject(t, rt, "(function () { throw new RangeError('out of range') })").TakeFunction(rt)
	require.NoError(t, err)
	defer fn.Release()

	_, err = fn.Call(rt)
	require.Error(t, err)
	require.True(t, jsa.IsEngineError(err))
	require.Contains(t, err.Error(), "RangeError: out of range")
}

func TestFunctionCallAsConstructor(t *testing.T) {
	_, rt := newRuntime(t)
	ctor, err := jsatest.MustObject(t, rt, "(class Point { constructor(x, y) { this.x = x; this.y = y } })").TakeFunction(rt)
	require.NoError(t, err)
	defer ctor.Release()

	result, err := ctor.CallAsConstructor(rt, jsa.Number(1), jsa.Number(2))
	require.NoError(t, err)
	point, err := result.TakeObject(rt)
	require.NoError(t, err)
	defer point.Release()

	y, err := point.GetProperty(rt, "y")
	require.NoError(t, err)
	require.Equal(t, 2.0, y.GetNumber())

	_, err = ctor.Call(rt)
	require.Error(t, err, "classes cannot be called without new")
}

func TestHostFunction(t *testing.T) {
	_, rt := newRuntime(t)
	add, err := jsa.CreateFunctionFromHostFunction(rt, "add", 2,
		func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
			var sum float64
			for _, arg := range args {
				n, err := arg.AsNumber()
				if err != nil {
					return nil, err
				}
				sum += n
			}
			return jsa.Number(sum), nil
		})
	require.NoError(t, err)
	defer add.Release()

	result, err := add.Call(rt, jsa.Number(2), jsa.Number(40))
	require.NoError(t, err)
	require.Equal(t, 42.0, result.GetNumber())

	global, err := rt.Global()
	require.NoError(t, err)
	defer global.Release()
	require.NoError(t, global.SetProperty(rt, "add", borrowFunction(t, rt, add)))

	v := jsatest.MustEval(t, rt, "add(1, 2, 3) + ':' + add.name + ':' + add.length")
	s, err := v.AsString(rt)
	require.NoError(t, err)
	defer s.Release()
	text, err := s.UTF8(rt)
	require.NoError(t, err)
	require.Equal(t, "6:add:2", text)

	v = jsatest.MustEval(t, rt, `(function () {
		try {
			add(1, 'two')
			return 'no error'
		} catch (e) {
			return e instanceof TypeError ? e.message : 'wrong error'
		}
	})()`)
	s, err = v.AsString(rt)
	require.NoError(t, err)
	defer s.Release()
	text, err = s.UTF8(rt)
	require.NoError(t, err)
	require.Equal(t, "Value is a string, expected a number", text)
}

func borrowFunction(t *testing.T, rt jsa.Runtime, fn *jsa.Function) *jsa.Value {
	t.Helper()
	clone, err := fn.Clone(rt)
	require.NoError(t, err)
	v := jsa.NewObjectValue(clone)
	t.Cleanup(v.Release)
	return v
}

func TestKindToString(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{source: "undefined", want: "undefined"},
		{source: "null", want: "null"},
		{source: "true", want: "true"},
		{source: "false", want: "false"},
		{source: "0", want: "a number"},
		{source: "'s'", want: "a string"},
		{source: "Symbol()", want: "a symbol"},
		{source: "({})", want: "an object"},
		{source: "[]", want: "an object"},
		{source: "(() => 1)", want: "a function"},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, rt := newRuntime(t)
			v := jsatest.MustEval(t, rt, tt.source)
			require.Equal(t, tt.want, jsa.KindToString(v, rt))
		})
	}
}

func TestKindToStringWithoutRuntime(t *testing.T) {
	_, rt := newRuntime(t)
	fn := jsatest.MustEval(t, rt, "(() => 1)")
	require.Equal(t, "an object", jsa.KindToString(fn, nil))
	require.Equal(t, "a number", jsa.KindToString(jsa.Number(1), nil))
}

func TestSymbolToString(t *testing.T) {
	_, rt := newRuntime(t)
	sym, err := jsatest.MustEval(t, rt, "Symbol('foo')").TakeSymbol(rt)
	require.NoError(t, err)
	defer sym.Release()

	text, err := sym.ToString(rt)
	require.NoError(t, err)
	require.Equal(t, "Symbol(foo)", text)
}

func TestObjectDefineAccessor(t *testing.T) {
	engine, counting := newRuntime(t)
	obj := jsatest.MustObject(t, engine, "({})")

	stored := jsa.Number(1)
	get := func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
		return stored.Clone(rt)
	}
	set := func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
		n, err := args[0].AsNumber()
		if err != nil {
			return nil, err
		}
		stored = jsa.Number(n * 10)
		return nil, nil
	}

	// The counting wrapper only forwards the core contract
	err := obj.DefineAccessor(counting, "value", get, set)
	require.ErrorIs(t, err, jsa.ErrAccessorsUnsupported)
	require.True(t, jsa.IsEngineError(err))

	require.Error(t, obj.DefineAccessor(engine, "value", nil, nil))
	require.NoError(t, obj.DefineAccessor(engine, "value", get, set))

	require.NoError(t, obj.SetProperty(engine, "value", jsa.Number(4)))
	v, err := obj.GetProperty(engine, "value")
	require.NoError(t, err)
	require.Equal(t, 40.0, v.GetNumber())

	names, err := obj.GetPropertyNames(engine)
	require.NoError(t, err)
	require.Equal(t, []string{"value"}, names)

	err = obj.SetProperty(engine, "value", jsa.Bool(true))
	require.True(t, jsa.IsEngineError(err))
	require.Contains(t, err.Error(), "expected a number")
}

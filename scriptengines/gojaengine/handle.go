package gojaengine

import (
	"fmt"

	"github.com/deepnoodle-ai/jsa"
	"github.com/dop251/goja"
)

// handle is the jsa.PointerValue issued by a Runtime. goja values are
// garbage collected by Go; the live table keeps track of which ones native
// code still claims.
type handle struct {
	rt       *Runtime
	id       uint64
	value    goja.Value
	released bool
}

func (h *handle) Invalidate() {
	h.rt.release(h)
}

func (r *Runtime) newHandle(value goja.Value) (*handle, error) {
	if r.closed {
		return nil, ErrClosed
	}
	r.nextID++
	h := &handle{rt: r, id: r.nextID, value: value}
	r.handles[h.id] = h
	return h, nil
}

func (r *Runtime) release(h *handle) {
	if h.released {
		return
	}
	h.released = true
	delete(r.handles, h.id)
}

func (r *Runtime) handleOf(ptr jsa.PointerValue) (*handle, error) {
	if r.closed {
		return nil, ErrClosed
	}
	h, ok := ptr.(*handle)
	if !ok || h == nil || h.rt != r {
		return nil, ErrForeignHandle
	}
	if h.released {
		return nil, ErrReleasedHandle
	}
	return h, nil
}

func (r *Runtime) object(ptr jsa.PointerValue) (*goja.Object, error) {
	h, err := r.handleOf(ptr)
	if err != nil {
		return nil, err
	}
	o, ok := h.value.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("handle does not refer to an object")
	}
	return o, nil
}

// wrap converts a goja value into a caller-owned jsa.Value. A nil value, as
// returned by goja for missing properties, is undefined.
func (r *Runtime) wrap(value goja.Value) (*jsa.Value, error) {
	if value == nil || goja.IsUndefined(value) {
		return jsa.Undefined(), nil
	}
	if goja.IsNull(value) {
		return jsa.Null(), nil
	}
	var kind jsa.Kind
	switch v := value.(type) {
	case *goja.Object:
		kind = jsa.ObjectKind
	case *goja.Symbol:
		kind = jsa.SymbolKind
	default:
		switch {
		case goja.IsString(value):
			kind = jsa.StringKind
		case goja.IsNumber(value):
			return jsa.Number(value.ToFloat()), nil
		default:
			b, ok := v.Export().(bool)
			if !ok {
				return nil, &jsa.EngineError{
					Operation: "wrap",
					Cause:     fmt.Sprintf("unsupported value type %s", value.ExportType()),
				}
			}
			return jsa.Bool(b), nil
		}
	}
	h, err := r.newHandle(value)
	if err != nil {
		return nil, err
	}
	return jsa.WrapValue(kind, h), nil
}

// unwrap returns the goja value a borrowed jsa.Value refers to. A nil Value
// is undefined.
func (r *Runtime) unwrap(value *jsa.Value) (goja.Value, error) {
	if value == nil {
		return goja.Undefined(), nil
	}
	switch value.Kind() {
	case jsa.UndefinedKind:
		return goja.Undefined(), nil
	case jsa.NullKind:
		return goja.Null(), nil
	case jsa.BooleanKind:
		return r.vm.ToValue(value.GetBool()), nil
	case jsa.NumberKind:
		return r.vm.ToValue(value.GetNumber()), nil
	default:
		h, err := r.handleOf(value.Raw())
		if err != nil {
			return nil, err
		}
		return h.value, nil
	}
}

func (r *Runtime) unwrapAll(values []*jsa.Value) ([]goja.Value, error) {
	out := make([]goja.Value, len(values))
	for i, value := range values {
		v, err := r.unwrap(value)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// CreateFunctionFromHostFunction exposes fn as a JavaScript function. Errors
// returned by fn are thrown into script: type mismatches as TypeError, all
// others as GoError.
func (r *Runtime) CreateFunctionFromHostFunction(name string, paramCount int, fn jsa.HostFunction) (*jsa.Function, error) {
	obj := r.vm.ToValue(r.native(fn)).(*goja.Object)
	if err := obj.DefineDataProperty("name", r.vm.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		r.logger.Debug("could not set host function name", "name", name, "error", err)
	}
	if err := obj.DefineDataProperty("length", r.vm.ToValue(paramCount), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		r.logger.Debug("could not set host function length", "name", name, "error", err)
	}
	h, err := r.newHandle(obj)
	if err != nil {
		return nil, err
	}
	return jsa.WrapFunction(h), nil
}

// DefineAccessor defines an enumerable, configurable accessor property on
// obj. Either get or set may be nil.
func (r *Runtime) DefineAccessor(obj *jsa.Object, name string, get, set jsa.HostFunction) error {
	target, err := r.object(obj.Raw())
	if err != nil {
		return err
	}
	var getter, setter goja.Value
	if get != nil {
		getter = r.vm.ToValue(r.native(get))
	}
	if set != nil {
		setter = r.vm.ToValue(r.native(set))
	}
	if err := target.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		return jsa.NewEngineError("define accessor "+name, err)
	}
	return nil
}

// native adapts fn to a goja native function.
func (r *Runtime) native(fn jsa.HostFunction) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		this, err := r.wrap(call.This)
		if err != nil {
			panic(r.vm.NewGoError(err))
		}
		defer this.Release()

		args := make([]*jsa.Value, 0, len(call.Arguments))
		defer func() {
			for _, arg := range args {
				arg.Release()
			}
		}()
		for _, a := range call.Arguments {
			arg, err := r.wrap(a)
			if err != nil {
				panic(r.vm.NewGoError(err))
			}
			args = append(args, arg)
		}

		result, err := fn(r, this, args)
		if err != nil {
			if jsa.IsTypeMismatch(err) {
				panic(r.vm.NewTypeError("%s", err.Error()))
			}
			panic(r.vm.NewGoError(err))
		}
		if result == nil {
			return goja.Undefined()
		}
		defer result.Release()
		out, err := r.unwrap(result)
		if err != nil {
			panic(r.vm.NewGoError(err))
		}
		return out
	}
}

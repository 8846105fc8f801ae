package risorengine

import (
	"fmt"

	"github.com/deepnoodle-ai/jsa"
	"github.com/risor-io/risor/object"
)

type handle struct {
	rt       *Runtime
	id       uint64
	value    object.Object
	released bool
}

func (h *handle) Invalidate() {
	h.rt.release(h)
}

func (r *Runtime) newHandle(value object.Object) (*handle, error) {
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

// wrap converts a Risor object into a caller-owned jsa.Value. Risor's nil
// maps to null; a missing object maps to undefined. Error values are objects.
func (r *Runtime) wrap(obj object.Object) (*jsa.Value, error) {
	var kind jsa.Kind
	switch o := obj.(type) {
	case nil:
		return jsa.Undefined(), nil
	case *object.NilType:
		return jsa.Null(), nil
	case *object.Bool:
		return jsa.Bool(o.Value()), nil
	case *object.Int:
		return jsa.Number(float64(o.Value())), nil
	case *object.Float:
		return jsa.Number(o.Value()), nil
	case *object.String:
		kind = jsa.StringKind
	default:
		kind = jsa.ObjectKind
	}
	h, err := r.newHandle(obj)
	if err != nil {
		return nil, err
	}
	return jsa.WrapValue(kind, h), nil
}

// unwrap returns the Risor object a borrowed jsa.Value refers to. Integral
// numbers become Risor ints.
func (r *Runtime) unwrap(value *jsa.Value) (object.Object, error) {
	if value == nil {
		return object.Nil, nil
	}
	switch value.Kind() {
	case jsa.UndefinedKind, jsa.NullKind:
		return object.Nil, nil
	case jsa.BooleanKind:
		return object.NewBool(value.GetBool()), nil
	case jsa.NumberKind:
		n := value.GetNumber()
		if isIntegral(n) {
			return object.NewInt(int64(n)), nil
		}
		return object.NewFloat(n), nil
	case jsa.SymbolKind:
		return nil, jsa.NewEngineError("unwrap", ErrNoSymbols)
	default:
		h, err := r.handleOf(value.Raw())
		if err != nil {
			return nil, err
		}
		return h.value, nil
	}
}

func (r *Runtime) unwrapAll(values []*jsa.Value) ([]object.Object, error) {
	out := make([]object.Object, len(values))
	for i, value := range values {
		v, err := r.unwrap(value)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

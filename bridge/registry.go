package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/deepnoodle-ai/jsa"
)

// BindingProperty is the script property holding the binding ID of an
// object that stands in for a native value.
const BindingProperty = "__jsa_binding__"

var (
	// ErrNotBound is returned by Lookup and Unbind for objects without a
	// native binding.
	ErrNotBound = errors.New("object is not bound to a native value")

	// ErrAlreadyBound is returned when binding an object twice.
	ErrAlreadyBound = errors.New("object is already bound to a native value")
)

// Registry maps script objects to the native values they represent. Script
// objects carry only a numeric binding ID; the native value stays in Go,
// together with a handle to the object it was bound to. A Registry belongs to
// a single Runtime.
type Registry struct {
	logger   *slog.Logger
	nextID   uint64
	bindings map[uint64]*binding
}

type binding struct {
	native any
	owner  *jsa.Object
}

// NewRegistry returns an empty Registry. A nil logger discards output.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = jsa.NewDiscardLogger()
	}
	return &Registry{logger: logger, bindings: map[uint64]*binding{}}
}

// Len returns the number of live bindings.
func (r *Registry) Len() int {
	return len(r.bindings)
}

// Bind associates obj with native and returns the binding ID.
func (r *Registry) Bind(rt jsa.Runtime, obj *jsa.Object, native any) (uint64, error) {
	if native == nil {
		return 0, fmt.Errorf("cannot bind a nil native value")
	}
	if _, _, err := r.lookup(rt, obj); err == nil {
		return 0, ErrAlreadyBound
	} else if !errors.Is(err, ErrNotBound) {
		return 0, err
	}
	owner, err := obj.Clone(rt)
	if err != nil {
		return 0, err
	}
	r.nextID++
	id := r.nextID
	if err := obj.SetProperty(rt, BindingProperty, jsa.Number(float64(id))); err != nil {
		owner.Release()
		return 0, err
	}
	r.bindings[id] = &binding{native: native, owner: owner}
	r.logger.Debug("bound native value", "binding_id", id, "type", fmt.Sprintf("%T", native))
	return id, nil
}

// Wrap creates a new script object bound to native.
func (r *Registry) Wrap(rt jsa.Runtime, native any) (*jsa.Object, error) {
	obj, err := jsa.CreateObject(rt)
	if err != nil {
		return nil, err
	}
	if _, err := r.Bind(rt, obj, native); err != nil {
		obj.Release()
		return nil, err
	}
	return obj, nil
}

// Lookup returns the native value bound to obj. Objects that merely carry a
// binding ID, such as copies made by script, are not bound.
func (r *Registry) Lookup(rt jsa.Runtime, obj *jsa.Object) (any, error) {
	_, b, err := r.lookup(rt, obj)
	if err != nil {
		return nil, err
	}
	return b.native, nil
}

// Unbind forgets the native value bound to obj. The script object keeps its
// binding ID, which no longer resolves.
func (r *Registry) Unbind(rt jsa.Runtime, obj *jsa.Object) error {
	id, b, err := r.lookup(rt, obj)
	if err != nil {
		return err
	}
	b.owner.Release()
	delete(r.bindings, id)
	r.logger.Debug("unbound native value", "binding_id", id)
	return nil
}

// Clear forgets every binding and releases the object handles the Registry
// holds. It must be called before the Runtime is closed.
func (r *Registry) Clear() {
	for id, b := range r.bindings {
		b.owner.Release()
		delete(r.bindings, id)
	}
}

func (r *Registry) lookup(rt jsa.Runtime, obj *jsa.Object) (uint64, *binding, error) {
	prop, err := obj.GetProperty(rt, BindingProperty)
	if err != nil {
		return 0, nil, err
	}
	defer prop.Release()
	if !prop.IsNumber() {
		return 0, nil, ErrNotBound
	}
	n := prop.GetNumber()
	if n < 1 || n != math.Trunc(n) || n > float64(r.nextID) {
		return 0, nil, ErrNotBound
	}
	id := uint64(n)
	b, ok := r.bindings[id]
	if !ok || !rt.StrictEquals(jsa.ObjectKind, b.owner.Raw(), obj.Raw()) {
		return 0, nil, ErrNotBound
	}
	return id, b, nil
}

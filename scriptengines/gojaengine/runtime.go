// Package gojaengine implements jsa.Runtime on top of the goja JavaScript
// engine.
package gojaengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/deepnoodle-ai/jsa"
	"github.com/dop251/goja"
	"go.jetify.com/typeid"
)

var (
	// ErrForeignHandle is returned when a handle created by another Runtime is
	// passed to this one.
	ErrForeignHandle = errors.New("handle belongs to a different runtime")

	// ErrReleasedHandle is returned when a handle is used after its owner
	// invalidated it.
	ErrReleasedHandle = errors.New("handle has been released")

	// ErrClosed is returned by operations on a closed Runtime.
	ErrClosed = errors.New("runtime is closed")
)

// NewRuntimeID returns a new prefixed ID identifying a runtime in logs.
func NewRuntimeID() string {
	id, err := typeid.WithPrefix("rt")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// Options configures a new Runtime
type Options struct {
	Logger           *slog.Logger
	ID               string
	MaxCallStackSize int
}

// Runtime is a jsa.Runtime backed by a goja VM. Like the VM itself, it must
// only be used from one goroutine at a time.
type Runtime struct {
	id      string
	vm      *goja.Runtime
	logger  *slog.Logger
	handles map[uint64]*handle
	nextID  uint64
	closed  bool
}

var (
	_ jsa.Runtime         = (*Runtime)(nil)
	_ jsa.AccessorDefiner = (*Runtime)(nil)
)

// New creates a Runtime with a fresh goja VM.
func New(opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = jsa.NewDiscardLogger()
	}
	if opts.ID == "" {
		opts.ID = NewRuntimeID()
	}
	vm := goja.New()
	if opts.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(opts.MaxCallStackSize)
	}
	return &Runtime{
		id:      opts.ID,
		vm:      vm,
		logger:  opts.Logger.With("runtime_id", opts.ID, "engine", "goja"),
		handles: map[uint64]*handle{},
	}
}

// ID returns the runtime ID used in log records.
func (r *Runtime) ID() string {
	return r.id
}

// VM returns the underlying goja runtime.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

func (r *Runtime) Description() string {
	return "goja"
}

// LiveHandles returns the number of handles native code has not released.
func (r *Runtime) LiveHandles() int {
	return len(r.handles)
}

// Close drops every outstanding handle and makes further operations fail.
// Leaked handles are reported at warn level.
func (r *Runtime) Close() error {
	if r.closed {
		return nil
	}
	if n := len(r.handles); n > 0 {
		r.logger.Warn("closing runtime with live handles", "count", n)
	}
	for _, h := range r.handles {
		h.released = true
	}
	r.handles = map[uint64]*handle{}
	r.closed = true
	return nil
}

func (r *Runtime) CloneSymbol(ptr jsa.PointerValue) (jsa.PointerValue, error) {
	return r.clone(ptr)
}

func (r *Runtime) CloneString(ptr jsa.PointerValue) (jsa.PointerValue, error) {
	return r.clone(ptr)
}

func (r *Runtime) CloneObject(ptr jsa.PointerValue) (jsa.PointerValue, error) {
	return r.clone(ptr)
}

func (r *Runtime) clone(ptr jsa.PointerValue) (jsa.PointerValue, error) {
	h, err := r.handleOf(ptr)
	if err != nil {
		return nil, err
	}
	return r.newHandle(h.value)
}

func (r *Runtime) StrictEquals(kind jsa.Kind, a, b jsa.PointerValue) bool {
	ha, err := r.handleOf(a)
	if err != nil {
		return false
	}
	hb, err := r.handleOf(b)
	if err != nil {
		return false
	}
	return ha.value.StrictEquals(hb.value)
}

func (r *Runtime) Global() (*jsa.Object, error) {
	ptr, err := r.newHandle(r.vm.GlobalObject())
	if err != nil {
		return nil, err
	}
	return jsa.WrapObject(ptr), nil
}

// EvaluateScript runs source as a classic script. Cancelling ctx interrupts
// the running script.
func (r *Runtime) EvaluateScript(ctx context.Context, source, url string) (*jsa.Value, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(ctx.Err())
	})
	defer stop()

	r.logger.Debug("evaluating script", "url", url, "size", len(source))
	result, err := r.vm.RunScript(url, source)
	if !stop() {
		r.vm.ClearInterrupt()
	}
	if err != nil {
		return nil, jsa.NewEngineError("evaluate "+url, err)
	}
	return r.wrap(result)
}

func (r *Runtime) CreateStringFromUTF8(data []byte) (*jsa.String, error) {
	ptr, err := r.newHandle(r.vm.ToValue(string(data)))
	if err != nil {
		return nil, err
	}
	return jsa.WrapString(ptr), nil
}

func (r *Runtime) UTF8(s *jsa.String) (string, error) {
	h, err := r.handleOf(s.Raw())
	if err != nil {
		return "", err
	}
	return h.value.String(), nil
}

func (r *Runtime) SymbolToString(s *jsa.Symbol) (string, error) {
	h, err := r.handleOf(s.Raw())
	if err != nil {
		return "", err
	}
	sym, ok := h.value.(*goja.Symbol)
	if !ok {
		return "", fmt.Errorf("handle does not refer to a symbol")
	}
	return "Symbol(" + sym.String() + ")", nil
}

func (r *Runtime) CreateObject() (*jsa.Object, error) {
	ptr, err := r.newHandle(r.vm.NewObject())
	if err != nil {
		return nil, err
	}
	return jsa.WrapObject(ptr), nil
}

func (r *Runtime) GetProperty(obj *jsa.Object, name string) (*jsa.Value, error) {
	o, err := r.object(obj.Raw())
	if err != nil {
		return nil, err
	}
	var value goja.Value
	if ex := r.vm.Try(func() { value = o.Get(name) }); ex != nil {
		return nil, jsa.NewEngineError("get property "+name, ex)
	}
	return r.wrap(value)
}

func (r *Runtime) SetProperty(obj *jsa.Object, name string, value *jsa.Value) error {
	o, err := r.object(obj.Raw())
	if err != nil {
		return err
	}
	v, err := r.unwrap(value)
	if err != nil {
		return err
	}
	if err := o.Set(name, v); err != nil {
		return jsa.NewEngineError("set property "+name, err)
	}
	return nil
}

func (r *Runtime) HasProperty(obj *jsa.Object, name string) (bool, error) {
	o, err := r.object(obj.Raw())
	if err != nil {
		return false, err
	}
	var value goja.Value
	if ex := r.vm.Try(func() { value = o.Get(name) }); ex != nil {
		return false, jsa.NewEngineError("has property "+name, ex)
	}
	return value != nil, nil
}

func (r *Runtime) GetPropertyNames(obj *jsa.Object) ([]string, error) {
	o, err := r.object(obj.Raw())
	if err != nil {
		return nil, err
	}
	var keys []string
	if ex := r.vm.Try(func() { keys = o.Keys() }); ex != nil {
		return nil, jsa.NewEngineError("property names", ex)
	}
	return keys, nil
}

func (r *Runtime) IsArray(obj *jsa.Object) bool {
	o, err := r.object(obj.Raw())
	if err != nil {
		return false
	}
	return o.ClassName() == "Array"
}

func (r *Runtime) IsFunction(obj *jsa.Object) bool {
	o, err := r.object(obj.Raw())
	if err != nil {
		return false
	}
	_, ok := goja.AssertFunction(o)
	return ok
}

func (r *Runtime) CreateArray(length int) (*jsa.Array, error) {
	if length < 0 {
		return nil, fmt.Errorf("invalid array length %d", length)
	}
	items := make([]any, length)
	for i := range items {
		items[i] = goja.Undefined()
	}
	ptr, err := r.newHandle(r.vm.NewArray(items...))
	if err != nil {
		return nil, err
	}
	return jsa.WrapArray(ptr), nil
}

func (r *Runtime) ArrayLength(arr *jsa.Array) (int, error) {
	o, err := r.object(arr.Raw())
	if err != nil {
		return 0, err
	}
	var length int64
	if ex := r.vm.Try(func() { length = o.Get("length").ToInteger() }); ex != nil {
		return 0, jsa.NewEngineError("array length", ex)
	}
	return int(length), nil
}

func (r *Runtime) GetValueAtIndex(arr *jsa.Array, index int) (*jsa.Value, error) {
	o, err := r.object(arr.Raw())
	if err != nil {
		return nil, err
	}
	var value goja.Value
	if ex := r.vm.Try(func() { value = o.Get(strconv.Itoa(index)) }); ex != nil {
		return nil, jsa.NewEngineError("get index", ex)
	}
	return r.wrap(value)
}

func (r *Runtime) SetValueAtIndex(arr *jsa.Array, index int, value *jsa.Value) error {
	o, err := r.object(arr.Raw())
	if err != nil {
		return err
	}
	v, err := r.unwrap(value)
	if err != nil {
		return err
	}
	if err := o.Set(strconv.Itoa(index), v); err != nil {
		return jsa.NewEngineError("set index", err)
	}
	return nil
}

func (r *Runtime) Call(fn *jsa.Function, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
	o, err := r.object(fn.Raw())
	if err != nil {
		return nil, err
	}
	callable, ok := goja.AssertFunction(o)
	if !ok {
		return nil, fmt.Errorf("object is not callable")
	}
	receiver, err := r.unwrap(this)
	if err != nil {
		return nil, err
	}
	values, err := r.unwrapAll(args)
	if err != nil {
		return nil, err
	}
	result, err := callable(receiver, values...)
	if err != nil {
		return nil, jsa.NewEngineError("call", err)
	}
	return r.wrap(result)
}

func (r *Runtime) CallAsConstructor(fn *jsa.Function, args []*jsa.Value) (*jsa.Value, error) {
	o, err := r.object(fn.Raw())
	if err != nil {
		return nil, err
	}
	ctor, ok := goja.AssertConstructor(o)
	if !ok {
		return nil, fmt.Errorf("object is not a constructor")
	}
	values, err := r.unwrapAll(args)
	if err != nil {
		return nil, err
	}
	result, err := ctor(nil, values...)
	if err != nil {
		return nil, jsa.NewEngineError("construct", err)
	}
	return r.wrap(result)
}

// Package risorengine implements jsa.Runtime on top of the Risor scripting
// language.
//
// Risor has no symbols and no receivers. Its global scope is presented as a
// map holding the Risor builtins plus the two functions the value layer
// requires: String (the Risor string builtin) and JSON.parse (json.unmarshal).
package risorengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/deepnoodle-ai/jsa"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
	"github.com/risor-io/risor/vm"
	"go.jetify.com/typeid"
)

var (
	ErrForeignHandle  = errors.New("handle belongs to a different runtime")
	ErrReleasedHandle = errors.New("handle has been released")
	ErrClosed         = errors.New("runtime is closed")
	ErrNoSymbols      = errors.New("risor has no symbols")
	ErrForeignCode    = errors.New("function was not compiled by this runtime")
	ErrReentrantCall  = errors.New("function belongs to a script that is already running")
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
	Logger *slog.Logger
	ID     string

	// Globals are made visible to evaluated scripts in addition to the
	// Risor builtins. Values that are already Risor objects are also
	// reachable through Global().
	Globals map[string]any

	// Restricted limits the builtins to those without side effects. See
	// SafeBuiltins.
	Restricted bool
}

// Runtime is a jsa.Runtime backed by Risor. It must only be used from one
// goroutine at a time.
type Runtime struct {
	id      string
	logger  *slog.Logger
	globals map[string]any
	scope   *object.Map
	handles map[uint64]*handle
	nextID  uint64
	closed  bool

	// machines holds the VM of every evaluated script that defines
	// functions, keyed by its root code. Compiled functions only run on the
	// VM that compiled them.
	machines map[*compiler.Code]*vm.VirtualMachine

	// running is the stack of VMs currently executing, innermost last.
	running []*frame
}

// frame is a VM on the running stack. ctx is set while one of our builtins
// is being called by that VM and carries its call function.
type frame struct {
	machine *vm.VirtualMachine
	ctx     context.Context
}

var _ jsa.Runtime = (*Runtime)(nil)

// New creates a Runtime.
func New(opts Options) *Runtime {
	if opts.Logger == nil {
		opts.Logger = jsa.NewDiscardLogger()
	}
	if opts.ID == "" {
		opts.ID = NewRuntimeID()
	}
	globals := DefaultGlobals()
	if opts.Restricted {
		globals = RestrictedGlobals()
	}
	for name, value := range opts.Globals {
		globals[name] = value
	}
	scope := map[string]object.Object{}
	for name, value := range globals {
		if obj, ok := value.(object.Object); ok {
			scope[name] = obj
		}
	}
	return &Runtime{
		id:       opts.ID,
		logger:   opts.Logger.With("runtime_id", opts.ID, "engine", "risor"),
		globals:  globals,
		scope:    object.NewMap(scope),
		handles:  map[uint64]*handle{},
		machines: map[*compiler.Code]*vm.VirtualMachine{},
	}
}

func (r *Runtime) ID() string {
	return r.id
}

func (r *Runtime) Description() string {
	return "risor"
}

// LiveHandles returns the number of handles native code has not released.
func (r *Runtime) LiveHandles() int {
	return len(r.handles)
}

// Close drops every outstanding handle and makes further operations fail.
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
	r.machines = map[*compiler.Code]*vm.VirtualMachine{}
	r.closed = true
	return nil
}

func (r *Runtime) CloneSymbol(ptr jsa.PointerValue) (jsa.PointerValue, error) {
	return nil, jsa.NewEngineError("clone symbol", ErrNoSymbols)
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

// StrictEquals compares strings by content and every other object by
// identity.
func (r *Runtime) StrictEquals(kind jsa.Kind, a, b jsa.PointerValue) bool {
	ha, err := r.handleOf(a)
	if err != nil {
		return false
	}
	hb, err := r.handleOf(b)
	if err != nil {
		return false
	}
	if kind == jsa.StringKind {
		sa, okA := ha.value.(*object.String)
		sb, okB := hb.value.(*object.String)
		return okA && okB && sa.Value() == sb.Value()
	}
	return ha.value == hb.value
}

func (r *Runtime) Global() (*jsa.Object, error) {
	h, err := r.newHandle(r.scope)
	if err != nil {
		return nil, err
	}
	return jsa.WrapObject(h), nil
}

// EvaluateScript parses, compiles and runs source with the runtime globals.
func (r *Runtime) EvaluateScript(ctx context.Context, source, url string) (*jsa.Value, error) {
	if r.closed {
		return nil, ErrClosed
	}
	ast, err := parser.Parse(ctx, source)
	if err != nil {
		return nil, jsa.NewEngineError("parse "+url, err)
	}

	globals := make(map[string]any, len(r.globals))
	for name, value := range r.globals {
		globals[name] = value
	}
	// Properties assigned through Global() are visible to scripts
	for name, value := range r.scope.Value() {
		globals[name] = value
	}
	var globalNames []string
	for name := range globals {
		globalNames = append(globalNames, name)
	}
	sort.Strings(globalNames)

	code, err := compiler.Compile(ast, compiler.WithGlobalNames(globalNames))
	if err != nil {
		return nil, jsa.NewEngineError("compile "+url, err)
	}
	r.logger.Debug("evaluating script", "url", url, "size", len(source))
	machine := vm.New(code, vm.WithGlobals(globals))
	// Child code means the script defines functions, which may be handed to
	// builtins during the run or outlive it
	if len(code.Flatten()) > 1 {
		r.machines[code] = machine
	}
	if err := r.run(machine, func() error { return machine.Run(ctx) }); err != nil {
		return nil, jsa.NewEngineError("evaluate "+url, err)
	}
	result, ok := machine.TOS()
	if !ok {
		result = object.Nil
	}
	return r.wrap(result)
}

// run executes fn with machine pushed on the running stack.
func (r *Runtime) run(machine *vm.VirtualMachine, fn func() error) error {
	r.running = append(r.running, &frame{machine: machine})
	defer func() {
		r.running = r.running[:len(r.running)-1]
	}()
	return fn()
}

// callContext returns the context of the innermost builtin call, if any.
func (r *Runtime) callContext() (context.Context, *vm.VirtualMachine) {
	if n := len(r.running); n > 0 && r.running[n-1].ctx != nil {
		return r.running[n-1].ctx, r.running[n-1].machine
	}
	return context.Background(), nil
}

func (r *Runtime) isRunning(machine *vm.VirtualMachine) bool {
	for _, f := range r.running {
		if f.machine == machine {
			return true
		}
	}
	return false
}

func (r *Runtime) CreateStringFromUTF8(data []byte) (*jsa.String, error) {
	h, err := r.newHandle(object.NewString(string(data)))
	if err != nil {
		return nil, err
	}
	return jsa.WrapString(h), nil
}

func (r *Runtime) UTF8(s *jsa.String) (string, error) {
	h, err := r.handleOf(s.Raw())
	if err != nil {
		return "", err
	}
	str, ok := h.value.(*object.String)
	if !ok {
		return "", fmt.Errorf("handle does not refer to a string")
	}
	return str.Value(), nil
}

func (r *Runtime) SymbolToString(s *jsa.Symbol) (string, error) {
	return "", jsa.NewEngineError("symbol to string", ErrNoSymbols)
}

func (r *Runtime) CreateObject() (*jsa.Object, error) {
	h, err := r.newHandle(object.NewMap(map[string]object.Object{}))
	if err != nil {
		return nil, err
	}
	return jsa.WrapObject(h), nil
}

func (r *Runtime) GetProperty(obj *jsa.Object, name string) (*jsa.Value, error) {
	h, err := r.handleOf(obj.Raw())
	if err != nil {
		return nil, err
	}
	switch o := h.value.(type) {
	case *object.Map:
		if value, ok := o.Value()[name]; ok {
			return r.wrap(value)
		}
		return jsa.Undefined(), nil
	case *object.List:
		if name == "length" {
			return jsa.Number(float64(len(o.Value()))), nil
		}
	}
	if value, ok := getAttr(h.value, name); ok {
		return r.wrap(value)
	}
	return jsa.Undefined(), nil
}

func (r *Runtime) SetProperty(obj *jsa.Object, name string, value *jsa.Value) error {
	h, err := r.handleOf(obj.Raw())
	if err != nil {
		return err
	}
	v, err := r.unwrap(value)
	if err != nil {
		return err
	}
	if m, ok := h.value.(*object.Map); ok {
		m.Value()[name] = v
		return nil
	}
	setter, ok := h.value.(interface {
		SetAttr(name string, value object.Object) error
	})
	if !ok {
		return jsa.NewEngineError("set property "+name, fmt.Errorf("%s does not support attributes", h.value.Type()))
	}
	if err := setter.SetAttr(name, v); err != nil {
		return jsa.NewEngineError("set property "+name, err)
	}
	return nil
}

func (r *Runtime) HasProperty(obj *jsa.Object, name string) (bool, error) {
	h, err := r.handleOf(obj.Raw())
	if err != nil {
		return false, err
	}
	if m, ok := h.value.(*object.Map); ok {
		_, found := m.Value()[name]
		return found, nil
	}
	_, found := getAttr(h.value, name)
	return found, nil
}

func (r *Runtime) GetPropertyNames(obj *jsa.Object) ([]string, error) {
	h, err := r.handleOf(obj.Raw())
	if err != nil {
		return nil, err
	}
	m, ok := h.value.(*object.Map)
	if !ok {
		return nil, nil
	}
	names := make([]string, 0, len(m.Value()))
	for name := range m.Value() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (r *Runtime) IsArray(obj *jsa.Object) bool {
	h, err := r.handleOf(obj.Raw())
	if err != nil {
		return false
	}
	_, ok := h.value.(*object.List)
	return ok
}

func (r *Runtime) IsFunction(obj *jsa.Object) bool {
	h, err := r.handleOf(obj.Raw())
	if err != nil {
		return false
	}
	if f, ok := h.value.(*object.Function); ok {
		_, compiled := r.machines[f.Code().Root()]
		return compiled
	}
	_, ok := h.value.(callable)
	return ok
}

func (r *Runtime) CreateArray(length int) (*jsa.Array, error) {
	if length < 0 {
		return nil, fmt.Errorf("invalid array length %d", length)
	}
	items := make([]object.Object, length)
	for i := range items {
		items[i] = object.Nil
	}
	h, err := r.newHandle(object.NewList(items))
	if err != nil {
		return nil, err
	}
	return jsa.WrapArray(h), nil
}

func (r *Runtime) ArrayLength(arr *jsa.Array) (int, error) {
	list, err := r.list(arr.Raw())
	if err != nil {
		return 0, err
	}
	return len(list.Value()), nil
}

func (r *Runtime) GetValueAtIndex(arr *jsa.Array, index int) (*jsa.Value, error) {
	list, err := r.list(arr.Raw())
	if err != nil {
		return nil, err
	}
	items := list.Value()
	if index < 0 || index >= len(items) {
		return jsa.Undefined(), nil
	}
	return r.wrap(items[index])
}

// SetValueAtIndex assigns within the current length. Risor lists do not
// grow through index assignment.
func (r *Runtime) SetValueAtIndex(arr *jsa.Array, index int, value *jsa.Value) error {
	list, err := r.list(arr.Raw())
	if err != nil {
		return err
	}
	v, err := r.unwrap(value)
	if err != nil {
		return err
	}
	items := list.Value()
	if index < 0 || index >= len(items) {
		return jsa.NewEngineError("set index", fmt.Errorf("index %d out of range [0:%d]", index, len(items)))
	}
	items[index] = v
	return nil
}

// Call invokes a builtin or a compiled function. Risor has no receivers, so
// this is ignored.
func (r *Runtime) Call(fn *jsa.Function, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
	h, err := r.handleOf(fn.Raw())
	if err != nil {
		return nil, err
	}
	values, err := r.unwrapAll(args)
	if err != nil {
		return nil, err
	}
	result, err := r.invoke(h.value, values)
	if err != nil {
		return nil, jsa.NewEngineError("call", err)
	}
	return r.wrap(result)
}

func (r *Runtime) invoke(fn object.Object, args []object.Object) (object.Object, error) {
	ctx, current := r.callContext()
	switch f := fn.(type) {
	case *object.Function:
		machine, ok := r.machines[f.Code().Root()]
		if !ok {
			return nil, ErrForeignCode
		}
		if machine == current {
			// Called back from one of our builtins while the VM is running
			call, ok := object.GetCallFunc(ctx)
			if !ok {
				return nil, errors.New("context did not contain a call function")
			}
			return call(ctx, f, args)
		}
		if r.isRunning(machine) {
			return nil, ErrReentrantCall
		}
		var result object.Object
		err := r.run(machine, func() error {
			var err error
			result, err = machine.Call(ctx, f, args)
			return err
		})
		return result, err
	case callable:
		result := f.Call(ctx, args...)
		if err := errorFromObject(result); err != nil {
			return nil, err
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%s is not callable", fn.Type())
	}
}

func (r *Runtime) CallAsConstructor(fn *jsa.Function, args []*jsa.Value) (*jsa.Value, error) {
	return nil, jsa.NewEngineError("construct", errors.New("risor has no constructors"))
}

func (r *Runtime) CreateFunctionFromHostFunction(name string, paramCount int, fn jsa.HostFunction) (*jsa.Function, error) {
	builtin := object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if n := len(r.running); n > 0 {
			top := r.running[n-1]
			prev := top.ctx
			top.ctx = ctx
			defer func() { top.ctx = prev }()
		}
		values := make([]*jsa.Value, 0, len(args))
		defer func() {
			for _, v := range values {
				v.Release()
			}
		}()
		for _, arg := range args {
			v, err := r.wrap(arg)
			if err != nil {
				return object.NewError(err)
			}
			values = append(values, v)
		}
		result, err := fn(r, jsa.Undefined(), values)
		if err != nil {
			return object.NewError(err)
		}
		if result == nil {
			return object.Nil
		}
		defer result.Release()
		out, err := r.unwrap(result)
		if err != nil {
			return object.NewError(err)
		}
		return out
	})
	h, err := r.newHandle(builtin)
	if err != nil {
		return nil, err
	}
	return jsa.WrapFunction(h), nil
}

func (r *Runtime) list(ptr jsa.PointerValue) (*object.List, error) {
	h, err := r.handleOf(ptr)
	if err != nil {
		return nil, err
	}
	list, ok := h.value.(*object.List)
	if !ok {
		return nil, fmt.Errorf("%s is not a list", h.value.Type())
	}
	return list, nil
}

// callable is satisfied by Risor builtins. Compiled functions also satisfy
// it but are called through the VM that compiled them.
type callable interface {
	Call(ctx context.Context, args ...object.Object) object.Object
}

func getAttr(obj object.Object, name string) (object.Object, bool) {
	getter, ok := obj.(interface {
		GetAttr(name string) (object.Object, bool)
	})
	if !ok {
		return nil, false
	}
	return getter.GetAttr(name)
}

// errorFromObject returns the error carried by a raised Risor error. Error
// values that were not raised are ordinary data.
func errorFromObject(obj object.Object) error {
	errObj, ok := obj.(*object.Error)
	if !ok || !errObj.IsRaised() {
		return nil
	}
	if v, ok := any(errObj).(interface{ Value() error }); ok && v.Value() != nil {
		return v.Value()
	}
	return errors.New(errObj.Inspect())
}

// isIntegral reports whether n converts to an int64 without loss. Negative
// zero stays a float so its sign survives.
func isIntegral(n float64) bool {
	if n == 0 {
		return !math.Signbit(n)
	}
	return n == math.Trunc(n) && n >= math.MinInt64 && n < 1<<63
}

package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/deepnoodle-ai/jsa"
)

// ErrUnknownMethod is returned by Invoke for names that were never
// registered.
var ErrUnknownMethod = errors.New("unknown method")

type method struct {
	name       string
	paramCount int
	fn         jsa.HostFunction
}

type property struct {
	name string
	get  jsa.HostFunction
	set  jsa.HostFunction
}

// DispatcherOptions configures a new Dispatcher
type DispatcherOptions struct {
	Logger *slog.Logger
}

// Dispatcher holds named native methods and accessor properties. Methods can
// be invoked directly from Go with native arguments, or installed on a script
// object so that scripts can call them. Properties are installed as
// accessors backed by native getters and setters.
type Dispatcher struct {
	logger     *slog.Logger
	methods    map[string]*method
	properties map[string]*property
}

// NewDispatcher returns an empty Dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = jsa.NewDiscardLogger()
	}
	return &Dispatcher{
		logger:     opts.Logger,
		methods:    map[string]*method{},
		properties: map[string]*property{},
	}
}

// Register adds a method. Names must be unique.
func (d *Dispatcher) Register(name string, paramCount int, fn jsa.HostFunction) error {
	if name == "" {
		return fmt.Errorf("method name is required")
	}
	if fn == nil {
		return fmt.Errorf("method %q has no function", name)
	}
	if d.registered(name) {
		return fmt.Errorf("method %q is already registered", name)
	}
	d.methods[name] = &method{name: name, paramCount: paramCount, fn: fn}
	return nil
}

// RegisterProperty adds an accessor property. get is called with no
// arguments and set with the assigned value; either may be nil for a
// write-only or read-only property. Installing properties requires an engine
// that implements jsa.AccessorDefiner.
func (d *Dispatcher) RegisterProperty(name string, get, set jsa.HostFunction) error {
	if name == "" {
		return fmt.Errorf("property name is required")
	}
	if get == nil && set == nil {
		return fmt.Errorf("property %q needs a getter or a setter", name)
	}
	if d.registered(name) {
		return fmt.Errorf("property %q is already registered", name)
	}
	d.properties[name] = &property{name: name, get: get, set: set}
	return nil
}

func (d *Dispatcher) registered(name string) bool {
	_, isMethod := d.methods[name]
	_, isProperty := d.properties[name]
	return isMethod || isProperty
}

// Names returns the registered method names in sorted order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.methods))
	for name := range d.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PropertyNames returns the registered property names in sorted order.
func (d *Dispatcher) PropertyNames() []string {
	names := make([]string, 0, len(d.properties))
	for name := range d.properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke calls the named method with native arguments. The arguments are
// converted with ToValue and released once the method returns; the result
// is owned by the caller.
func (d *Dispatcher) Invoke(rt jsa.Runtime, name string, args ...any) (*jsa.Value, error) {
	m, ok := d.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownMethod, name)
	}
	values := make([]*jsa.Value, 0, len(args))
	defer func() {
		for _, v := range values {
			v.Release()
		}
	}()
	for i, arg := range args {
		v, err := ToValue(rt, arg)
		if err != nil {
			return nil, fmt.Errorf("%s: argument %d: %w", name, i, err)
		}
		values = append(values, v)
	}
	return d.call(m.name, m.fn, rt, jsa.Undefined(), values)
}

// Install defines every registered method as a function property of target
// and every registered property as an accessor of target.
func (d *Dispatcher) Install(rt jsa.Runtime, target *jsa.Object) error {
	for _, name := range d.Names() {
		m := d.methods[name]
		fn, err := jsa.CreateFunctionFromHostFunction(rt, m.name, m.paramCount,
			func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
				return d.call(m.name, m.fn, rt, this, args)
			})
		if err != nil {
			return err
		}
		value := jsa.NewObjectValue(&fn.Object)
		err = target.SetProperty(rt, m.name, value)
		value.Release()
		if err != nil {
			return err
		}
	}
	for _, name := range d.PropertyNames() {
		p := d.properties[name]
		var get, set jsa.HostFunction
		if p.get != nil {
			get = func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
				return d.call("get "+p.name, p.get, rt, this, nil)
			}
		}
		if p.set != nil {
			set = func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
				if len(args) == 0 {
					args = []*jsa.Value{jsa.Undefined()}
				}
				result, err := d.call("set "+p.name, p.set, rt, this, args[:1])
				if err != nil {
					return nil, err
				}
				result.Release()
				return nil, nil
			}
		}
		if err := target.DefineAccessor(rt, p.name, get, set); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) call(name string, fn jsa.HostFunction, rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
	d.logger.Debug("invoking method", "method", name, "args", len(args))
	result, err := fn(rt, this, args)
	if err != nil {
		d.logger.Debug("method failed", "method", name, "error", err)
		return nil, err
	}
	if result == nil {
		return jsa.Undefined(), nil
	}
	return result, nil
}

// TypedMethod adapts a function taking a single structured argument into a
// jsa.HostFunction. The first script argument is exported with ToGo and
// decoded into TArgs through its JSON form; the result is converted back the
// same way.
func TypedMethod[TArgs, TResult any](fn func(args TArgs) (TResult, error)) jsa.HostFunction {
	return func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
		var params TArgs
		if len(args) > 0 {
			exported, err := ToGo(rt, args[0])
			if err != nil {
				return nil, err
			}
			if err := decode(exported, &params); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		result, err := fn(params)
		if err != nil {
			return nil, err
		}
		var plain any
		if err := decode(result, &plain); err != nil {
			return nil, fmt.Errorf("invalid result: %w", err)
		}
		return ToValue(rt, plain)
	}
}

func decode(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

package bridge_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/jsa"
	"github.com/deepnoodle-ai/jsa/bridge"
	"github.com/deepnoodle-ai/jsa/jsatest"
	"github.com/deepnoodle-ai/jsa/scriptengines/risorengine"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T) *bridge.Dispatcher {
	t.Helper()
	d := bridge.NewDispatcher(bridge.DispatcherOptions{})
	require.NoError(t, d.Register("upper", 1,
		func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
			if len(args) == 0 {
				return nil, errors.New("upper requires an argument")
			}
			s, err := bridge.ToString(rt, args[0])
			if err != nil {
				return nil, err
			}
			return bridge.ToValue(rt, strings.ToUpper(s))
		}))
	require.NoError(t, d.Register("noop", 0,
		func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
			return nil, nil
		}))
	return d
}

func TestDispatcherRegister(t *testing.T) {
	d := newDispatcher(t)
	require.Equal(t, []string{"noop", "upper"}, d.Names())

	err := d.Register("upper", 1, func(jsa.Runtime, *jsa.Value, []*jsa.Value) (*jsa.Value, error) {
		return nil, nil
	})
	require.ErrorContains(t, err, "already registered")
	require.Error(t, d.Register("", 0, nil))
	require.Error(t, d.Register("missing", 0, nil))
}

func TestDispatcherInvoke(t *testing.T) {
	rt := newRuntime(t)
	d := newDispatcher(t)

	result, err := d.Invoke(rt, "upper", "query")
	require.NoError(t, err)
	defer result.Release()
	s, err := bridge.ToString(rt, result)
	require.NoError(t, err)
	require.Equal(t, "QUERY", s)

	empty, err := d.Invoke(rt, "noop")
	require.NoError(t, err)
	require.True(t, empty.IsUndefined())

	_, err = d.Invoke(rt, "missing")
	require.ErrorIs(t, err, bridge.ErrUnknownMethod)

	_, err = d.Invoke(rt, "upper", 12)
	require.True(t, jsa.IsTypeMismatch(err))

	// Converted arguments are released after the call
	result.Release()
	jsatest.RequireLiveHandles(t, rt, 0)
}

func TestDispatcherInstall(t *testing.T) {
	rt := newRuntime(t)
	d := newDispatcher(t)

	global, err := rt.Global()
	require.NoError(t, err)
	defer global.Release()
	require.NoError(t, d.Install(rt, global))

	v := jsatest.MustEval(t, rt, "upper('a') + typeof noop() + upper.length")
	s, err := bridge.ToString(rt, v)
	require.NoError(t, err)
	require.Equal(t, "Aundefined1", s)
}

type point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func TestTypedMethod(t *testing.T) {
	rt := newRuntime(t)
	d := bridge.NewDispatcher(bridge.DispatcherOptions{})
	require.NoError(t, d.Register("scale", 1, bridge.TypedMethod(func(p point) (point, error) {
		return point{X: p.X * 2, Y: p.Y * 2}, nil
	})))
	require.NoError(t, d.Register("fail", 1, bridge.TypedMethod(func(p point) (point, error) {
		return point{}, errors.New("out of bounds")
	})))

	result, err := d.Invoke(rt, "scale", map[string]any{"x": 1, "y": 1.5})
	require.NoError(t, err)
	defer result.Release()

	got, err := bridge.ToGo(rt, result)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"x": 2.0, "y": 3.0}, got)

	_, err = d.Invoke(rt, "fail", map[string]any{})
	require.EqualError(t, err, "out of bounds")

	_, err = d.Invoke(rt, "scale", "not an object")
	require.ErrorContains(t, err, "invalid arguments")
}

type counter struct {
	label string
	hits  int
}

func TestDispatcherProperties(t *testing.T) {
	rt := newRuntime(t)
	reg := bridge.NewRegistry(nil)
	t.Cleanup(reg.Clear)

	native := &counter{label: "start"}
	obj, err := reg.Wrap(rt, native)
	require.NoError(t, err)
	defer obj.Release()

	self := func(rt jsa.Runtime, this *jsa.Value) (*counter, error) {
		return bridge.ToPointer[*counter](rt, reg, this)
	}

	d := bridge.NewDispatcher(bridge.DispatcherOptions{})
	require.NoError(t, d.RegisterProperty("label",
		func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
			c, err := self(rt, this)
			if err != nil {
				return nil, err
			}
			return bridge.ToValue(rt, c.label)
		},
		func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
			c, err := self(rt, this)
			if err != nil {
				return nil, err
			}
			label, err := bridge.ToString(rt, args[0])
			if err != nil {
				return nil, err
			}
			c.label = label
			c.hits++
			return nil, nil
		}))
	require.NoError(t, d.RegisterProperty("hits",
		func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
			c, err := self(rt, this)
			if err != nil {
				return nil, err
			}
			return bridge.ToValue(rt, c.hits)
		}, nil))
	require.Equal(t, []string{"hits", "label"}, d.PropertyNames())
	require.Empty(t, d.Names())

	require.ErrorContains(t, d.RegisterProperty("label", nil, nil), "needs a getter or a setter")
	require.ErrorContains(t, d.RegisterProperty("hits", nil, func(jsa.Runtime, *jsa.Value, []*jsa.Value) (*jsa.Value, error) {
		return nil, nil
	}), "already registered")

	require.NoError(t, d.Install(rt, obj))

	global, err := rt.Global()
	require.NoError(t, err)
	defer global.Release()
	value, err := bridge.ToValue(rt, obj)
	require.NoError(t, err)
	defer value.Release()
	require.NoError(t, global.SetProperty(rt, "counter", value))

	v := jsatest.MustEval(t, rt, `counter.label = "renamed"; counter.hits = 99; counter.label + ":" + counter.hits`)
	s, err := bridge.ToString(rt, v)
	require.NoError(t, err)
	require.Equal(t, "renamed:1", s)
	require.Equal(t, "renamed", native.label)

	// Setters see values set from Go too
	require.NoError(t, obj.SetProperty(rt, "label", jsa.Null()))
	require.Equal(t, "", native.label)

	exported, err := bridge.ToGo(rt, value)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"label": "", "hits": 2.0}, exported)

	_, err = rt.EvaluateScript(context.Background(), `counter.label = 5`, "bad.js")
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected a String")
}

func TestDispatcherPropertiesNeedAccessorSupport(t *testing.T) {
	rt := risorengine.New(risorengine.Options{})
	defer rt.Close()

	d := bridge.NewDispatcher(bridge.DispatcherOptions{})
	require.NoError(t, d.RegisterProperty("answer",
		func(rt jsa.Runtime, this *jsa.Value, args []*jsa.Value) (*jsa.Value, error) {
			return jsa.Number(42), nil
		}, nil))

	obj, err := jsa.CreateObject(rt)
	require.NoError(t, err)
	defer obj.Release()
	err = d.Install(rt, obj)
	require.ErrorIs(t, err, jsa.ErrAccessorsUnsupported)
}

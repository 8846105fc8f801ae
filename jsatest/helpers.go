package jsatest

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/jsa"
	"github.com/stretchr/testify/require"
)

// HandleCounter is implemented by runtimes that track live handles.
type HandleCounter interface {
	LiveHandles() int
}

// MustEval evaluates source and fails the test on error. The returned value
// is released when the test finishes unless it has been moved or released.
func MustEval(t testing.TB, rt jsa.Runtime, source string) *jsa.Value {
	t.Helper()
	v, err := rt.EvaluateScript(context.Background(), source, "test")
	require.NoError(t, err, "evaluating %q", source)
	t.Cleanup(v.Release)
	return v
}

// MustObject evaluates source and narrows the result to an Object.
func MustObject(t testing.TB, rt jsa.Runtime, source string) *jsa.Object {
	t.Helper()
	obj, err := MustEval(t, rt, source).TakeObject(rt)
	require.NoError(t, err)
	t.Cleanup(obj.Release)
	return obj
}

// RequireLiveHandles asserts the number of handles rt still tracks.
func RequireLiveHandles(t testing.TB, rt HandleCounter, expected int) {
	t.Helper()
	require.Equal(t, expected, rt.LiveHandles(), "live handles")
}

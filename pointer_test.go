package jsa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	name        string
	invalidated int
}

func (h *fakeHandle) Invalidate() {
	h.invalidated++
}

func TestPointerAssignInvalidatesPrevious(t *testing.T) {
	first := &fakeHandle{name: "first"}
	second := &fakeHandle{name: "second"}

	var p, other Pointer
	p.ptr = first
	other.ptr = second

	p.Assign(&other)
	require.Equal(t, 1, first.invalidated)
	require.Equal(t, 0, second.invalidated)
	require.Same(t, second, p.Raw())
	require.True(t, other.IsNull())

	// Self assignment keeps the handle
	p.Assign(&p)
	require.Equal(t, 0, second.invalidated)
	require.Same(t, second, p.Raw())
}

func TestPointerInvalidateIsIdempotent(t *testing.T) {
	h := &fakeHandle{}
	var p Pointer
	p.ptr = h

	p.Invalidate()
	p.Invalidate()
	require.Equal(t, 1, h.invalidated)
	require.True(t, p.IsNull())

	var empty Pointer
	empty.Invalidate()
	require.True(t, empty.IsNull())
}

func TestPointerTake(t *testing.T) {
	h := &fakeHandle{}
	var p Pointer
	p.ptr = h

	taken := p.Take()
	require.Same(t, h, taken)
	require.True(t, p.IsNull())
	p.Invalidate()
	require.Equal(t, 0, h.invalidated)
}

func TestValueMoveWithoutEngine(t *testing.T) {
	h := &fakeHandle{}
	v := WrapValue(ObjectKind, h)

	moved := v.Move()
	require.Equal(t, UndefinedKind, v.Kind())
	require.Nil(t, v.Raw())
	require.Equal(t, ObjectKind, moved.Kind())
	require.Same(t, h, moved.Raw())

	// Releasing the moved-from value must not touch the handle
	v.Release()
	require.Equal(t, 0, h.invalidated)

	moved.Release()
	moved.Release()
	require.Equal(t, 1, h.invalidated)
	require.True(t, moved.IsUndefined())
}

func TestValueAssignReleasesCurrentHandle(t *testing.T) {
	old := &fakeHandle{name: "old"}
	incoming := &fakeHandle{name: "incoming"}
	v := WrapValue(StringKind, old)
	other := WrapValue(ObjectKind, incoming)

	v.Assign(other)
	require.Equal(t, 1, old.invalidated)
	require.Equal(t, 0, incoming.invalidated)
	require.Equal(t, ObjectKind, v.Kind())
	require.True(t, other.IsUndefined())

	v.Assign(Number(3))
	require.Equal(t, 1, incoming.invalidated)
	require.Equal(t, 3.0, v.GetNumber())
}

func TestWrapValueRejectsScalarKinds(t *testing.T) {
	require.Panics(t, func() { WrapValue(NumberKind, &fakeHandle{}) })
	require.Panics(t, func() { WrapValue(ObjectKind, nil) })
}

func TestKindOrdering(t *testing.T) {
	for _, k := range []Kind{UndefinedKind, NullKind, BooleanKind, NumberKind} {
		require.False(t, k.IsPointer(), k.String())
	}
	for _, k := range []Kind{SymbolKind, StringKind, ObjectKind} {
		require.True(t, k.IsPointer(), k.String())
	}
}

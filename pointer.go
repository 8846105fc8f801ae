package jsa

// PointerValue is an opaque handle allocated by a Runtime. The engine owns
// whatever it refers to; native code only tells the engine when it stops
// referencing it.
type PointerValue interface {
	// Invalidate informs the engine that native code no longer references
	// this handle. It is called at most once per handle by Pointer.
	Invalidate()
}

// noCopy may be embedded in structs which must not be copied after first
// use. See https://golang.org/issues/8005#issuecomment-190753527 for details.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Pointer exclusively owns a single PointerValue.
//
// A Pointer is never copied. A second, independent reference to the same
// script value is only obtained through one of the Runtime clone operations.
type Pointer struct {
	_   noCopy
	ptr PointerValue
}

// Raw returns the handle without transferring ownership. The result must not
// outlive the Pointer.
func (p *Pointer) Raw() PointerValue {
	return p.ptr
}

// IsNull returns true if the Pointer holds no handle.
func (p *Pointer) IsNull() bool {
	return p.ptr == nil
}

// Take transfers the handle to the caller and leaves the Pointer null.
func (p *Pointer) Take() PointerValue {
	ptr := p.ptr
	p.ptr = nil
	return ptr
}

// Assign moves the handle held by other into p. The handle previously held by
// p is invalidated first, and other is left null.
func (p *Pointer) Assign(other *Pointer) {
	if p == other {
		return
	}
	if p.ptr != nil {
		p.ptr.Invalidate()
	}
	p.ptr = other.ptr
	other.ptr = nil
}

// Invalidate releases the held handle. Calling it on a null Pointer is a no-op.
func (p *Pointer) Invalidate() {
	if p.ptr == nil {
		return
	}
	ptr := p.ptr
	p.ptr = nil
	ptr.Invalidate()
}

func (p *Pointer) reset(ptr PointerValue) {
	p.Invalidate()
	p.ptr = ptr
}

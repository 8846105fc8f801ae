package jsa

// String is a view of a script string.
type String struct {
	Pointer
}

// WrapString takes ownership of a string handle.
func WrapString(ptr PointerValue) *String {
	s := &String{}
	s.ptr = ptr
	return s
}

// CreateStringFromUTF8 returns a new script string holding data.
func CreateStringFromUTF8(rt Runtime, data []byte) (*String, error) {
	return rt.CreateStringFromUTF8(data)
}

// CreateStringFromASCII returns a new script string holding s.
func CreateStringFromASCII(rt Runtime, s string) (*String, error) {
	return rt.CreateStringFromUTF8([]byte(s))
}

// UTF8 returns the contents of the string as Go text.
func (s *String) UTF8(rt Runtime) (string, error) {
	return rt.UTF8(s)
}

// Clone returns a new String view with its own handle to the same string.
func (s *String) Clone(rt Runtime) (*String, error) {
	ptr, err := rt.CloneString(s.Raw())
	if err != nil {
		return nil, err
	}
	return WrapString(ptr), nil
}

// Release invalidates the handle held by the view.
func (s *String) Release() {
	s.Invalidate()
}

// Symbol is a view of a script symbol.
type Symbol struct {
	Pointer
}

// WrapSymbol takes ownership of a symbol handle.
func WrapSymbol(ptr PointerValue) *Symbol {
	sym := &Symbol{}
	sym.ptr = ptr
	return sym
}

// ToString returns the engine's description of the symbol, e.g. "Symbol(foo)".
func (s *Symbol) ToString(rt Runtime) (string, error) {
	return rt.SymbolToString(s)
}

// Clone returns a new Symbol view with its own handle to the same symbol.
func (s *Symbol) Clone(rt Runtime) (*Symbol, error) {
	ptr, err := rt.CloneSymbol(s.Raw())
	if err != nil {
		return nil, err
	}
	return WrapSymbol(ptr), nil
}

// Release invalidates the handle held by the view.
func (s *Symbol) Release() {
	s.Invalidate()
}

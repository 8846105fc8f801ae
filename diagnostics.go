package jsa

// KindToString returns a short description of the value's kind for error
// messages, such as "a number" or "an object". Booleans report their value.
// When rt is not nil, callable objects are reported as "a function".
func KindToString(v *Value, rt Runtime) string {
	switch v.Kind() {
	case UndefinedKind:
		return "undefined"
	case NullKind:
		return "null"
	case BooleanKind:
		if v.GetBool() {
			return "true"
		}
		return "false"
	case NumberKind:
		return "a number"
	case StringKind:
		return "a string"
	case SymbolKind:
		return "a symbol"
	default:
		if rt == nil || v.Raw() == nil {
			return "an object"
		}
		obj := &Object{}
		obj.ptr = v.Raw()
		return objectKindString(obj, rt)
	}
}

// objectKindString describes a borrowed object without consuming it.
func objectKindString(obj *Object, rt Runtime) string {
	if rt != nil && rt.IsFunction(obj) {
		return "a function"
	}
	return "an object"
}

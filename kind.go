package jsa

// Kind is the discriminant of a Value.
//
// The order of the constants matters: every kind at or above PointerKind
// stores its payload in a Pointer, every kind below it is an inline scalar.
type Kind int

const (
	UndefinedKind Kind = iota
	NullKind
	BooleanKind
	NumberKind
	SymbolKind
	StringKind
	ObjectKind
)

// PointerKind is the first kind whose payload is an engine handle.
const PointerKind = SymbolKind

// IsPointer returns true if values of this kind hold an engine handle.
func (k Kind) IsPointer() bool {
	return k >= PointerKind
}

func (k Kind) String() string {
	switch k {
	case UndefinedKind:
		return "undefined"
	case NullKind:
		return "null"
	case BooleanKind:
		return "boolean"
	case NumberKind:
		return "number"
	case SymbolKind:
		return "symbol"
	case StringKind:
		return "string"
	case ObjectKind:
		return "object"
	default:
		return "unknown"
	}
}

package risorengine

import (
	"github.com/risor-io/risor/modules/all"
	"github.com/risor-io/risor/object"
)

// DefaultGlobals returns the Risor builtins along with the String and JSON
// globals expected by the value layer.
func DefaultGlobals() map[string]any {
	globals := map[string]any{}
	for name, value := range all.Builtins() {
		globals[name] = value
	}
	addValueLayerGlobals(globals)
	return globals
}

// RestrictedGlobals is like DefaultGlobals but only keeps the builtins listed
// by SafeBuiltins.
func RestrictedGlobals() map[string]any {
	safe := SafeBuiltins()
	globals := map[string]any{}
	for name, value := range all.Builtins() {
		if safe[name] {
			globals[name] = value
		}
	}
	addValueLayerGlobals(globals)
	return globals
}

// addValueLayerGlobals aliases the string builtin as String and exposes the
// json module as JSON with parse and stringify.
func addValueLayerGlobals(globals map[string]any) {
	if str, ok := globals["string"].(object.Object); ok {
		globals["String"] = str
	}
	mod, ok := globals["json"].(object.Object)
	if !ok {
		return
	}
	jsonScope := map[string]object.Object{}
	if parse, ok := getAttr(mod, "unmarshal"); ok {
		jsonScope["parse"] = parse
	}
	if stringify, ok := getAttr(mod, "marshal"); ok {
		jsonScope["stringify"] = stringify
	}
	globals["JSON"] = object.NewMap(jsonScope)
}

// SafeBuiltins returns the Risor builtin names that are deterministic and
// have no side effects. string and json are always included since String
// and JSON.parse depend on them.
func SafeBuiltins() map[string]bool {
	return map[string]bool{
		"all":         true,
		"any":         true,
		"base64":      true,
		"bool":        true,
		"byte_slice":  true,
		"byte":        true,
		"bytes":       true,
		"chunk":       true,
		"coalesce":    true,
		"decode":      true,
		"encode":      true,
		"error":       true,
		"errorf":      true,
		"errors":      true,
		"float_slice": true,
		"float":       true,
		"getattr":     true,
		"int":         true,
		"is_hashable": true,
		"iter":        true,
		"json":        true,
		"keys":        true,
		"len":         true,
		"list":        true,
		"map":         true,
		"math":        true,
		"regexp":      true,
		"reversed":    true,
		"set":         true,
		"sorted":      true,
		"sprintf":     true,
		"string":      true,
		"strings":     true,
		"try":         true,
		"type":        true,
	}
}

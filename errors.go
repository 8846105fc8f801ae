package jsa

import (
	"errors"
	"fmt"
)

// Error type constants for classification and matching
const (
	// ErrorTypeTypeMismatch is reported when a value does not have the kind
	// or refinement a narrowing operation asked for.
	ErrorTypeTypeMismatch = "type_mismatch"

	// ErrorTypeEngine is reported for failures raised by the scripting engine
	// itself while running a delegated operation.
	ErrorTypeEngine = "engine_error"

	// ErrorTypeUnknown is returned by ClassifyError for errors that did not
	// originate in this package or an engine.
	ErrorTypeUnknown = "unknown"
)

// TypeMismatchError is returned by every narrowing operation (AsNumber,
// AsObject, AsArray, GetPropertyAsFunction, ...) when the actual kind does
// not match the requested one.
type TypeMismatchError struct {
	// Subject is "Value" or "Object" for direct narrowing.
	Subject string `json:"subject,omitempty"`

	// Operation and Property are set by the property accessors.
	Operation string `json:"operation,omitempty"`
	Property  string `json:"property,omitempty"`

	// Actual is the diagnostic description of the value, e.g. "a number".
	Actual string `json:"actual"`

	// Expected names the requested type, e.g. "an Object".
	Expected string `json:"expected"`
}

// Error implements the error interface
func (e *TypeMismatchError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("%s: property '%s' is %s, expected %s",
			e.Operation, e.Property, e.Actual, e.Expected)
	}
	return fmt.Sprintf("%s is %s, expected %s", e.Subject, e.Actual, e.Expected)
}

func (e *TypeMismatchError) Type() string {
	return ErrorTypeTypeMismatch
}

// EngineError carries a failure raised by the scripting engine. The original
// engine error is available through Unwrap.
type EngineError struct {
	Operation string `json:"operation,omitempty"`
	Cause     string `json:"cause"`
	Wrapped   error  `json:"-"`
}

// NewEngineError wraps err raised by the engine during operation. It returns
// nil if err is nil and returns err unchanged if it is already an EngineError.
func NewEngineError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return err
	}
	return &EngineError{Operation: operation, Cause: err.Error(), Wrapped: err}
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Operation == "" {
		return e.Cause
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Cause)
}

// Unwrap implements the error unwrapping interface for Go's errors.Is and errors.As
func (e *EngineError) Unwrap() error {
	return e.Wrapped
}

func (e *EngineError) Type() string {
	return ErrorTypeEngine
}

// ClassifyError returns the error type constant for err.
func ClassifyError(err error) string {
	var mismatch *TypeMismatchError
	if errors.As(err, &mismatch) {
		return ErrorTypeTypeMismatch
	}
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return ErrorTypeEngine
	}
	return ErrorTypeUnknown
}

// IsTypeMismatch returns true if err is or wraps a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	return ClassifyError(err) == ErrorTypeTypeMismatch
}

// IsEngineError returns true if err is or wraps an EngineError.
func IsEngineError(err error) bool {
	return ClassifyError(err) == ErrorTypeEngine
}

func valueMismatch(v *Value, rt Runtime, expected string) *TypeMismatchError {
	return &TypeMismatchError{
		Subject:  "Value",
		Actual:   KindToString(v, rt),
		Expected: expected,
	}
}

func objectMismatch(o *Object, rt Runtime, expected string) *TypeMismatchError {
	return &TypeMismatchError{
		Subject:  "Object",
		Actual:   objectKindString(o, rt),
		Expected: expected,
	}
}
